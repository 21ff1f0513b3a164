package cellar

import (
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/coolbeans/cellarbuild/pkg/celex"
)

// WorkProperties is the structured query result for one work: title and
// adoption date when present, plus the typed relation mapping. Absent
// fields stay zero-valued rather than being null-filled.
type WorkProperties struct {
	// Title is the English expression title, or empty when not found.
	Title string

	// Date is the work document date in YYYY-MM-DD form, or empty.
	Date string

	// Relations maps a relation type (cites, amends, adopts, based_on,
	// proposes_to_amend, consolidates) to the target CELEX identifiers in
	// result order.
	Relations map[string][]string
}

// relationTypes is the closed set of relation predicates queried from the
// CDM ontology.
var relationTypes = map[string]bool{
	"cites":             true,
	"amends":            true,
	"adopts":            true,
	"based_on":          true,
	"proposes_to_amend": true,
	"consolidates":      true,
}

// sparqlValue is one RDF term in a SPARQL JSON results binding.
type sparqlValue struct {
	Type     string `json:"type"`
	Value    string `json:"value"`
	Datatype string `json:"datatype"`
}

// sparqlResults mirrors the SPARQL 1.1 JSON results format.
type sparqlResults struct {
	Results struct {
		Bindings []map[string]sparqlValue `json:"bindings"`
	} `json:"results"`
}

const workPropertiesQueryTemplate = `
PREFIX cdm: <http://publications.europa.eu/ontology/cdm#>
PREFIX owl: <http://www.w3.org/2002/07/owl#>

SELECT DISTINCT ?data_type ?value
WHERE {
    ?work owl:sameAs <http://publications.europa.eu/resource/celex/%s> .

    {
        ?expression cdm:expression_belongs_to_work ?work .
        ?expression cdm:expression_title ?value .

        FILTER EXISTS {
            ?expression cdm:expression_uses_language ?lang .
            FILTER(STRENDS(STR(?lang), "ENG"))
        }

        BIND("title" AS ?data_type)
    }
    UNION
    {
        ?work cdm:work_date_document ?value .
        BIND("date" AS ?data_type)
    }
    UNION
    {
        ?work cdm:work_cites_work ?w .
        ?w cdm:resource_legal_id_celex ?value .
        BIND("cites" AS ?data_type)
    }
    UNION
    {
        ?work cdm:resource_legal_amends_resource_legal ?w .
        ?w cdm:resource_legal_id_celex ?value .
        BIND("amends" AS ?data_type)
    }
    UNION
    {
        ?work cdm:resource_legal_adopts_resource_legal ?w .
        ?w cdm:resource_legal_id_celex ?value .
        BIND("adopts" AS ?data_type)
    }
    UNION
    {
        ?work cdm:resource_legal_based_on_resource_legal ?w .
        ?w cdm:resource_legal_id_celex ?value .
        BIND("based_on" AS ?data_type)
    }
    UNION
    {
        ?work cdm:resource_legal_proposes_to_amend_resource_legal ?w .
        ?w cdm:resource_legal_id_celex ?value .
        BIND("proposes_to_amend" AS ?data_type)
    }
    UNION
    {
        ?work cdm:act_consolidated_consolidates_resource_legal ?w .
        ?w cdm:resource_legal_id_celex ?value .
        BIND("consolidates" AS ?data_type)
    }
}
`

// WorkProperties resolves title, document date, and typed relations for
// one CELEX identifier through the SPARQL endpoint.
func (client *Client) WorkProperties(celexID string) (*WorkProperties, error) {
	validated, err := celex.Validate(celexID)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(workPropertiesQueryTemplate, url.PathEscape(validated))
	results, err := client.runSPARQL(query)
	if err != nil {
		return nil, err
	}

	properties := &WorkProperties{Relations: make(map[string][]string)}
	for _, binding := range results.Results.Bindings {
		dataType := binding["data_type"].Value
		value := binding["value"].Value

		switch {
		case relationTypes[dataType]:
			properties.Relations[dataType] = append(properties.Relations[dataType], value)
		case dataType == "title":
			properties.Title = value
		case dataType == "date":
			properties.Date = value
		}
	}

	return properties, nil
}

const procedureQueryTemplate = `
PREFIX cdm: <http://publications.europa.eu/ontology/cdm#>
PREFIX owl: <http://www.w3.org/2002/07/owl#>

SELECT DISTINCT ?procedure ?proposalCelex ?availableWorkCelex
WHERE {
    VALUES ?procedure {
        %s
    }

    ?dossier cdm:procedure_code_interinstitutional_reference_procedure ?ref .
    ?proposal cdm:work_part_of_dossier ?dossier .
    ?proposal cdm:resource_legal_id_celex ?proposalCelex .

    OPTIONAL {
        ?work cdm:resource_legal_adopts_resource_legal ?proposal .
        ?work cdm:resource_legal_id_celex ?workCelex .
    }

    FILTER(CONTAINS(STR(?ref), ?procedure))
    FILTER(CONTAINS(STR(?proposalCelex), "PC"))
    FILTER(!CONTAINS(STR(?proposalCelex), "("))

    BIND(COALESCE(?workCelex, "") AS ?availableWorkCelex)
}
`

// CelexIDsByProcedure resolves interinstitutional procedure numbers to
// CELEX identifiers, preferring the adopted act over the proposal when
// both exist. Unresolvable procedures are logged and skipped.
func (client *Client) CelexIDsByProcedure(procedureNumbers []string) ([]string, error) {
	if len(procedureNumbers) == 0 {
		return nil, nil
	}

	values := make([]string, 0, len(procedureNumbers))
	for _, procedureNumber := range procedureNumbers {
		values = append(values, fmt.Sprintf("%q", procedureNumber))
	}

	query := fmt.Sprintf(procedureQueryTemplate, strings.Join(values, " "))
	results, err := client.runSPARQL(query)
	if err != nil {
		return nil, err
	}

	resolved := make(map[string]bool)
	for _, binding := range results.Results.Bindings {
		procedure := binding["procedure"].Value
		proposalCelex := binding["proposalCelex"].Value
		availableWorkCelex := binding["availableWorkCelex"].Value

		switch {
		case availableWorkCelex != "":
			resolved[availableWorkCelex] = true
			client.log.Debugw("procedure resolved to adopted legislation", "procedure", procedure, "celex_id", availableWorkCelex)
		case proposalCelex != "":
			resolved[proposalCelex] = true
			client.log.Debugw("procedure resolved to proposal", "procedure", procedure, "celex_id", proposalCelex)
		default:
			client.log.Warnw("could not resolve procedure, skipping", "procedure", procedure)
		}
	}

	return sortedKeys(resolved), nil
}

// DescriptiveQuery selects documents by date range, document type, CELEX
// sector and optional EuroVoc concepts.
type DescriptiveQuery struct {
	StartDate time.Time
	EndDate   time.Time

	EuroVocURIs []string

	IncludeRegulations bool
	IncludeDirectives  bool
	IncludeDecisions   bool
	IncludeProposals   bool

	IncludeCorrigenda             bool
	IncludeConsolidatedTexts      bool
	IncludeNationalTranspositions bool
}

const descriptiveQueryTemplate = `
PREFIX cdm: <http://publications.europa.eu/ontology/cdm#>
PREFIX xsd: <http://www.w3.org/2001/XMLSchema#>

SELECT DISTINCT ?celex
WHERE {
    ?work cdm:work_date_document ?date .
    ?work cdm:resource_legal_type ?type .
    ?work cdm:resource_legal_id_celex ?celex .
    ?work cdm:resource_legal_id_sector ?sector .
    %s
    %s
    %s
    %s
    %s
}
`

// CelexIDsByDescriptor discovers documents matching the descriptive query.
func (client *Client) CelexIDsByDescriptor(descriptor DescriptiveQuery) ([]string, error) {
	var dateFilters strings.Builder
	if !descriptor.StartDate.IsZero() {
		fmt.Fprintf(&dateFilters, `FILTER(?date > "%s"^^xsd:date)`, descriptor.StartDate.Format("2006-01-02"))
	}
	if !descriptor.EndDate.IsZero() {
		fmt.Fprintf(&dateFilters, `FILTER(?date < "%s"^^xsd:date)`, descriptor.EndDate.Format("2006-01-02"))
	}

	eurovocFilter := ""
	if len(descriptor.EuroVocURIs) > 0 {
		uris := make([]string, 0, len(descriptor.EuroVocURIs))
		for _, conceptURI := range descriptor.EuroVocURIs {
			uris = append(uris, "<"+conceptURI+">")
		}
		eurovocFilter = fmt.Sprintf(`
    ?work cdm:work_is_about_concept_eurovoc ?eurovoc .
    VALUES ?eurovoc { %s }`, strings.Join(uris, " "))
	}

	var typeConditions []string
	if descriptor.IncludeRegulations {
		typeConditions = append(typeConditions, `?type = "R"^^xsd:string`)
	}
	if descriptor.IncludeDirectives {
		typeConditions = append(typeConditions, `?type = "L"^^xsd:string`)
	}
	if descriptor.IncludeDecisions {
		typeConditions = append(typeConditions, `?type = "D"^^xsd:string`)
	}
	if descriptor.IncludeProposals {
		typeConditions = append(typeConditions, `?type = "PC"^^xsd:string`)
	}
	typeFilter := ""
	if len(typeConditions) > 0 {
		typeFilter = fmt.Sprintf("FILTER(%s)", strings.Join(typeConditions, " || "))
	}

	sectorConditions := []string{`?sector = "3"^^xsd:string`}
	if descriptor.IncludeProposals {
		sectorConditions = append(sectorConditions, `?sector = "5"^^xsd:string`)
	}
	if descriptor.IncludeConsolidatedTexts {
		sectorConditions = append(sectorConditions, `?sector = "0"^^xsd:string`)
	}
	if descriptor.IncludeNationalTranspositions {
		sectorConditions = append(sectorConditions, `?sector = "7"^^xsd:string`)
	}
	sectorFilter := fmt.Sprintf("FILTER(%s)", strings.Join(sectorConditions, " || "))

	corrigendaFilter := ""
	if !descriptor.IncludeCorrigenda {
		corrigendaFilter = `FILTER(!REGEX(STR(?celex), "\\([0-9]{2}\\)$"))`
	}

	query := fmt.Sprintf(descriptiveQueryTemplate,
		eurovocFilter, dateFilters.String(), typeFilter, sectorFilter, corrigendaFilter)

	results, err := client.runSPARQL(query)
	if err != nil {
		return nil, err
	}

	ids := make(map[string]bool)
	for _, binding := range results.Results.Bindings {
		if celexID := binding["celex"].Value; celexID != "" {
			ids[celexID] = true
		}
	}
	return sortedKeys(ids), nil
}

const eurovocLabelQueryTemplate = `
PREFIX skos: <http://www.w3.org/2004/02/skos/core#>
PREFIX eurovoc: <http://eurovoc.europa.eu/>

SELECT DISTINCT ?concept ?label ?keyword
WHERE {
    VALUES ?keyword {
        %s
    }

    ?concept skos:inScheme eurovoc:100141 .
    ?concept skos:%s ?label .

    FILTER(
        LANGMATCHES(LANG(?label), "en") &&
        CONTAINS(LCASE(STR(?label)), LCASE(?keyword))
    )
}
ORDER BY ?keyword ?label
`

// EuroVocLabels looks up EuroVoc concepts whose preferred or alternative
// English labels contain any of the given keywords. The result maps
// keyword -> concept URI -> matching labels.
func (client *Client) EuroVocLabels(keywords []string) (map[string]map[string][]string, error) {
	merged := make(map[string]map[string][]string)
	if len(keywords) == 0 {
		return merged, nil
	}

	for _, labelType := range []string{"prefLabel", "altLabel"} {
		labels, err := client.eurovocLabelsByType(keywords, labelType)
		if err != nil {
			return nil, err
		}
		for keyword, concepts := range labels {
			if merged[keyword] == nil {
				merged[keyword] = make(map[string][]string)
			}
			for conceptURI, conceptLabels := range concepts {
				merged[keyword][conceptURI] = appendUnique(merged[keyword][conceptURI], conceptLabels...)
			}
		}
	}

	return merged, nil
}

func (client *Client) eurovocLabelsByType(keywords []string, labelType string) (map[string]map[string][]string, error) {
	values := make([]string, 0, len(keywords))
	for _, keyword := range keywords {
		values = append(values, fmt.Sprintf("%q", keyword))
	}

	query := fmt.Sprintf(eurovocLabelQueryTemplate, strings.Join(values, " "), labelType)
	results, err := client.runSPARQL(query)
	if err != nil {
		return nil, err
	}

	labels := make(map[string]map[string][]string)
	for _, binding := range results.Results.Bindings {
		keyword := binding["keyword"].Value
		label := binding["label"].Value
		concept := binding["concept"].Value
		if keyword == "" || label == "" || concept == "" {
			continue
		}

		if labels[keyword] == nil {
			labels[keyword] = make(map[string][]string)
		}
		labels[keyword][concept] = appendUnique(labels[keyword][concept], label)
	}

	return labels, nil
}

// runSPARQL executes one query against the SPARQL endpoint and decodes
// the JSON results document.
func (client *Client) runSPARQL(query string) (*sparqlResults, error) {
	response, err := client.http.R().
		SetQueryParam("query", query).
		SetHeader("Accept", "application/sparql-results+json").
		Get(client.sparqlEndpoint)
	if err != nil {
		return nil, classifyTransportError(client.sparqlEndpoint, err)
	}
	if statusErr := checkStatus(response, client.sparqlEndpoint); statusErr != nil {
		return nil, statusErr
	}

	var results sparqlResults
	if err := json.Unmarshal(response.Body(), &results); err != nil {
		return nil, fmt.Errorf("failed to decode SPARQL results: %w", err)
	}

	client.log.Debugw("SPARQL query executed", "query", celex.NormalizeText(query))
	return &results, nil
}

func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for key := range set {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func appendUnique(existing []string, values ...string) []string {
	for _, value := range values {
		found := false
		for _, current := range existing {
			if current == value {
				found = true
				break
			}
		}
		if !found {
			existing = append(existing, value)
		}
	}
	return existing
}
