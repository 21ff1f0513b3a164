// Package resolve turns a CELEX identifier into dataset records: work
// metadata (title, adoption date, document type), full text markup,
// structural text units (recitals, articles, annexes), and typed
// relations to other works. Retrieval and parsing failures degrade along
// documented fallback chains instead of aborting the document.
package resolve

import (
	"bytes"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/coolbeans/cellarbuild/pkg/celex"
	"github.com/coolbeans/cellarbuild/pkg/cellar"
)

// Fetcher retrieves document representations from the resource endpoint.
// *cellar.Client implements it.
type Fetcher interface {
	FullTextXHTML(celexID string) ([]byte, error)
	FullTextHTML(celexID string) ([]byte, error)
	AnnexXHTML(celexID string) ([]byte, error)
	AnnexHTML(celexID string) ([]byte, error)
	NoticeMetadata(celexID string) ([]byte, error)
}

// PropertyResolver queries structured work properties. *cellar.Client
// implements it.
type PropertyResolver interface {
	WorkProperties(celexID string) (*cellar.WorkProperties, error)
}

// relationOrder fixes the emission order of the known relation types so
// record output is deterministic.
var relationOrder = []string{"cites", "amends", "adopts", "based_on", "proposes_to_amend", "consolidates"}

// orderedRelationTypes returns the relation types present in the mapping:
// known types in their fixed order first, anything else sorted.
func orderedRelationTypes(relations map[string][]string) []string {
	known := make(map[string]bool, len(relationOrder))
	var types []string
	for _, relationType := range relationOrder {
		known[relationType] = true
		if _, present := relations[relationType]; present {
			types = append(types, relationType)
		}
	}
	var extra []string
	for relationType := range relations {
		if !known[relationType] {
			extra = append(extra, relationType)
		}
	}
	sort.Strings(extra)
	return append(types, extra...)
}

// Resolver resolves all data for one document. Remote lookups are
// performed lazily and memoized, so repeated getters do not refetch.
// A Resolver is not safe for concurrent use; the pipeline gives each
// document its own.
type Resolver struct {
	celexID    string
	fetcher    Fetcher
	properties PropertyResolver
	log        *zap.SugaredLogger

	fullTextDoc        *goquery.Document
	fullTextDocLoaded  bool
	plainTextDoc       *goquery.Document
	plainTextDocLoaded bool

	workProps       *cellar.WorkProperties
	workPropsLoaded bool

	noticeXML       []byte
	noticeXMLLoaded bool

	title        string
	documentType string

	originalResolver *Resolver
}

// New creates a Resolver for one CELEX identifier. A nil logger is
// replaced with a no-op logger.
func New(celexID string, fetcher Fetcher, properties PropertyResolver, log *zap.SugaredLogger) *Resolver {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Resolver{
		celexID:    celexID,
		fetcher:    fetcher,
		properties: properties,
		log:        log,
	}
}

// CelexID returns the identifier this resolver was created for.
func (resolver *Resolver) CelexID() string {
	return resolver.celexID
}

// OriginalCelexID returns the original act's identifier for a
// consolidated text, and the resolver's own identifier otherwise.
func (resolver *Resolver) OriginalCelexID() string {
	if celex.IsConsolidated(resolver.celexID) {
		if original, err := celex.ToOriginal(resolver.celexID); err == nil {
			return original
		}
	}
	return resolver.celexID
}

// originalForConsolidated returns a resolver for the original act of a
// consolidated text, memoized, or the resolver itself for any other
// document.
func (resolver *Resolver) originalForConsolidated() *Resolver {
	if !celex.IsConsolidated(resolver.celexID) {
		return resolver
	}
	if resolver.originalResolver == nil {
		resolver.originalResolver = New(resolver.OriginalCelexID(), resolver.fetcher, resolver.properties, resolver.log)
	}
	return resolver.originalResolver
}

// fullTextDocument fetches and parses the XHTML rendition, flattening
// content wrapper divs. The parse is memoized; fetch failures are not, so
// a later call may retry.
func (resolver *Resolver) fullTextDocument() (*goquery.Document, error) {
	if resolver.fullTextDocLoaded {
		return resolver.fullTextDoc, nil
	}

	body, err := resolver.fetcher.FullTextXHTML(resolver.celexID)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	flattenContentDivs(doc)

	resolver.fullTextDoc = doc
	resolver.fullTextDocLoaded = true
	return doc, nil
}

// plainTextDocument is the plain HTML counterpart of fullTextDocument.
func (resolver *Resolver) plainTextDocument() (*goquery.Document, error) {
	if resolver.plainTextDocLoaded {
		return resolver.plainTextDoc, nil
	}

	body, err := resolver.fetcher.FullTextHTML(resolver.celexID)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	flattenContentDivs(doc)

	resolver.plainTextDoc = doc
	resolver.plainTextDocLoaded = true
	return doc, nil
}

// workProperties memoizes the SPARQL property lookup.
func (resolver *Resolver) workProperties() (*cellar.WorkProperties, error) {
	if resolver.workPropsLoaded {
		return resolver.workProps, nil
	}
	properties, err := resolver.properties.WorkProperties(resolver.celexID)
	if err != nil {
		return nil, err
	}
	resolver.workProps = properties
	resolver.workPropsLoaded = true
	return properties, nil
}

// metadataNotice memoizes the expression metadata notice XML.
func (resolver *Resolver) metadataNotice() ([]byte, error) {
	if resolver.noticeXMLLoaded {
		return resolver.noticeXML, nil
	}
	notice, err := resolver.fetcher.NoticeMetadata(resolver.celexID)
	if err != nil {
		return nil, err
	}
	resolver.noticeXML = notice
	resolver.noticeXMLLoaded = true
	return notice, nil
}

// FullTextHTML returns the document markup after content div flattening,
// preferring the XHTML rendition and falling back to plain HTML. Returns
// the empty string when neither rendition can be retrieved.
func (resolver *Resolver) FullTextHTML() string {
	doc, err := resolver.fullTextDocument()
	if err == nil {
		if rendered, renderErr := renderDocument(doc); renderErr == nil {
			return rendered
		}
	} else {
		resolver.log.Errorw("failed to retrieve full text XHTML, trying plain HTML",
			"celex_id", resolver.celexID, "error", err)
	}

	doc, err = resolver.plainTextDocument()
	if err != nil {
		resolver.log.Errorw("failed to retrieve full text plain HTML", "celex_id", resolver.celexID, "error", err)
		return ""
	}
	rendered, err := renderDocument(doc)
	if err != nil {
		resolver.log.Errorw("failed to serialize full text", "celex_id", resolver.celexID, "error", err)
		return ""
	}
	return rendered
}

// bestDocument returns the XHTML rendition when it parses into a
// recognized structure, and otherwise retries with the plain HTML
// rendition, which is accepted as-is. Returns nil when neither rendition
// is available.
func (resolver *Resolver) bestDocument() *goquery.Document {
	doc, err := resolver.fullTextDocument()
	if err == nil && classifyStructure(doc) != structureUnrecognized {
		return doc
	}
	if err != nil {
		resolver.log.Warnw("failed to parse full text XHTML, retrying with plain HTML",
			"celex_id", resolver.celexID, "error", err)
	} else {
		resolver.log.Warnw("unrecognized structure in XHTML rendition, retrying with plain HTML",
			"celex_id", resolver.celexID)
	}

	doc, err = resolver.plainTextDocument()
	if err != nil {
		resolver.log.Errorw("failed to parse full text plain HTML", "celex_id", resolver.celexID, "error", err)
		return nil
	}
	return doc
}

// annexDocument fetches the independent annex part published for
// proposals, with the same XHTML-then-HTML fallback as bestDocument.
func (resolver *Resolver) annexDocument() *goquery.Document {
	body, err := resolver.fetcher.AnnexXHTML(resolver.celexID)
	if err == nil {
		if doc, parseErr := goquery.NewDocumentFromReader(bytes.NewReader(body)); parseErr == nil {
			flattenContentDivs(doc)
			if classifyStructure(doc) != structureUnrecognized {
				return doc
			}
		}
	}
	resolver.log.Warnw("failed to parse annex XHTML, retrying with plain HTML", "celex_id", resolver.celexID)

	body, err = resolver.fetcher.AnnexHTML(resolver.celexID)
	if err != nil {
		resolver.log.Errorw("failed to retrieve annex plain HTML", "celex_id", resolver.celexID, "error", err)
		return nil
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		resolver.log.Errorw("failed to parse annex plain HTML", "celex_id", resolver.celexID, "error", err)
		return nil
	}
	flattenContentDivs(doc)
	return doc
}

// TextUnits extracts the requested structural units. Each section
// (recitals, articles, annexes) is dispatched independently on the
// structure of the document that carries it: consolidated texts read
// recitals from their original act, and proposals read annexes from the
// separately published annex part.
func (resolver *Resolver) TextUnits(includeRecitals, includeArticles, includeAnnexes bool) []TextUnit {
	if !includeRecitals && !includeArticles && !includeAnnexes {
		resolver.log.Warnw("all text unit types disabled, skipping extraction", "celex_id", resolver.celexID)
		return nil
	}

	doc := resolver.bestDocument()
	if doc == nil {
		resolver.log.Errorw("no parseable full text available", "celex_id", resolver.celexID)
		return nil
	}

	recitalsDoc := doc
	if includeRecitals && celex.IsConsolidated(resolver.celexID) {
		resolver.log.Debugw("consolidated text, reading recitals from original act",
			"celex_id", resolver.celexID, "original_celex_id", resolver.OriginalCelexID())
		if originalDoc := resolver.originalForConsolidated().bestDocument(); originalDoc != nil {
			recitalsDoc = originalDoc
		}
	}

	annexesDoc := doc
	if includeAnnexes && resolver.DocumentType() == "proposal" {
		if proposalAnnexDoc := resolver.annexDocument(); proposalAnnexDoc != nil {
			annexesDoc = proposalAnnexDoc
		}
	}

	var units []TextUnit

	if includeRecitals {
		switch classifyStructure(recitalsDoc) {
		case structureStandard:
			units = append(units, resolver.extractStandardRecitals(recitalsDoc)...)
		case structureManual:
			units = append(units, resolver.extractManualRecitals(recitalsDoc)...)
		case structureTextOnly:
			units = append(units, resolver.extractTextOnlyUnits(recitalsDoc, true, false, false)...)
		default:
			resolver.log.Errorw("no recognized structure for recitals", "celex_id", resolver.celexID)
		}
	}

	if includeArticles {
		switch classifyStructure(doc) {
		case structureStandard:
			units = append(units, resolver.extractStandardArticles(doc)...)
		case structureManual:
			units = append(units, resolver.extractManualArticles(doc)...)
		case structureTextOnly:
			units = append(units, resolver.extractTextOnlyUnits(doc, false, true, false)...)
		default:
			resolver.log.Errorw("no recognized structure for articles", "celex_id", resolver.celexID)
		}
	}

	if includeAnnexes {
		switch classifyStructure(annexesDoc) {
		case structureStandard:
			units = append(units, resolver.extractStandardAnnexes(annexesDoc)...)
		case structureManual:
			units = append(units, resolver.extractManualAnnexes(annexesDoc)...)
		case structureTextOnly:
			units = append(units, resolver.extractTextOnlyUnits(annexesDoc, false, false, true)...)
		default:
			resolver.log.Errorw("no recognized structure for annexes", "celex_id", resolver.celexID)
		}
	}

	resolver.log.Debugw("extracted text units", "celex_id", resolver.celexID, "count", len(units))
	return units
}

// Relations returns the typed work relations from the property lookup.
// Empty targets are dropped. For a consolidated text,
// includeOriginalActRelations additionally appends the original act's
// relations, attributed to the original act's identifier.
func (resolver *Resolver) Relations(includeRelations, includeOriginalActRelations bool) []Relation {
	if !includeRelations {
		resolver.log.Debugw("relations extraction disabled", "celex_id", resolver.celexID)
		return nil
	}

	properties, err := resolver.workProperties()
	if err != nil {
		resolver.log.Warnw("failed to retrieve relations", "celex_id", resolver.celexID, "error", err)
		return nil
	}

	var relations []Relation
	for _, relationType := range orderedRelationTypes(properties.Relations) {
		for _, target := range properties.Relations[relationType] {
			if strings.TrimSpace(target) == "" {
				continue
			}
			relations = append(relations, Relation{
				SourceID: resolver.celexID,
				Type:     relationType,
				TargetID: target,
			})
		}
	}

	if includeOriginalActRelations && celex.IsConsolidated(resolver.celexID) {
		resolver.log.Debugw("appending original act relations for consolidated text",
			"celex_id", resolver.celexID, "original_celex_id", resolver.OriginalCelexID())
		relations = append(relations, resolver.originalForConsolidated().Relations(true, false)...)
	}

	resolver.log.Debugw("extracted relations", "celex_id", resolver.celexID, "count", len(relations))
	return relations
}
