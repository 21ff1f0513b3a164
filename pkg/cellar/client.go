// Package cellar provides a client for the EUR-Lex CELLAR repository: the
// resource REST endpoint for document markup and metadata notices, and the
// SPARQL endpoint for structured work properties and bulk discovery.
package cellar

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/coolbeans/cellarbuild/pkg/celex"
)

const (
	// DefaultResourceBaseURL is the CELLAR resource endpoint prefix; a
	// URL-escaped CELEX identifier is appended.
	DefaultResourceBaseURL = "http://publications.europa.eu/resource/celex/"

	// DefaultSPARQLEndpoint is the public CELLAR SPARQL endpoint.
	DefaultSPARQLEndpoint = "https://publications.europa.eu/webapi/rdf/sparql"

	// DefaultLanguage is the three-letter expression language requested
	// for document markup and titles.
	DefaultLanguage = "eng"

	DefaultTimeout    = 20 * time.Second
	DefaultRetryCount = 5
	DefaultUserAgent  = "cellarbuild/1.0"
)

// Content negotiation values understood by the resource endpoint.
const (
	acceptXHTML  = "application/xhtml+xml"
	acceptHTML   = "text/html"
	acceptNotice = "application/xml;notice=object"
)

// Keyword sets for multi-choice selection. Full-text fetches prefer the
// main act and exclude supplementary parts; annex fetches invert that.
var (
	actIncludeKeywords = []string{"ACT"}
	actExcludeKeywords = []string{"annexe", "annex", "cover", "erratum", "corrigendum"}

	annexIncludeKeywords = []string{"annex", "annexe"}
	annexExcludeKeywords = []string{"ACT", "cover", "erratum", "corrigendum"}
)

// Config holds configuration for a Client.
type Config struct {
	// ResourceBaseURL is the resource endpoint prefix. Default:
	// DefaultResourceBaseURL.
	ResourceBaseURL string

	// SPARQLEndpoint is the SPARQL query endpoint. Default:
	// DefaultSPARQLEndpoint.
	SPARQLEndpoint string

	// Language is the three-letter expression language code sent as
	// Accept-Language. Default: "eng".
	Language string

	// Timeout bounds each HTTP request. Default: 20 seconds.
	Timeout time.Duration

	// RetryCount is the number of retries for 429/5xx responses.
	// Default: 5, with exponential backoff.
	RetryCount int

	// UserAgent is sent with every request.
	UserAgent string

	// Logger receives selection and retry diagnostics. If nil, a no-op
	// logger is used.
	Logger *zap.SugaredLogger
}

// DefaultConfig returns a Config with production defaults.
func DefaultConfig() Config {
	return Config{
		ResourceBaseURL: DefaultResourceBaseURL,
		SPARQLEndpoint:  DefaultSPARQLEndpoint,
		Language:        DefaultLanguage,
		Timeout:         DefaultTimeout,
		RetryCount:      DefaultRetryCount,
		UserAgent:       DefaultUserAgent,
	}
}

// Client retrieves document representations, metadata notices and SPARQL
// query results from CELLAR. Safe for concurrent use.
type Client struct {
	http            *resty.Client
	resourceBaseURL string
	sparqlEndpoint  string
	language        string
	log             *zap.SugaredLogger
}

// NewClient creates a Client from the given configuration, filling in
// defaults for zero-valued fields.
func NewClient(config Config) *Client {
	if config.ResourceBaseURL == "" {
		config.ResourceBaseURL = DefaultResourceBaseURL
	}
	if config.SPARQLEndpoint == "" {
		config.SPARQLEndpoint = DefaultSPARQLEndpoint
	}
	if config.Language == "" {
		config.Language = DefaultLanguage
	}
	if config.Timeout == 0 {
		config.Timeout = DefaultTimeout
	}
	if config.RetryCount == 0 {
		config.RetryCount = DefaultRetryCount
	}
	if config.UserAgent == "" {
		config.UserAgent = DefaultUserAgent
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop().Sugar()
	}

	httpClient := resty.New().
		SetTimeout(config.Timeout).
		SetRetryCount(config.RetryCount).
		SetRetryWaitTime(1*time.Second).
		SetRetryMaxWaitTime(30*time.Second).
		SetHeader("User-Agent", config.UserAgent).
		AddRetryCondition(func(response *resty.Response, err error) bool {
			if err != nil || response == nil {
				return false
			}
			return response.StatusCode() == http.StatusTooManyRequests || response.StatusCode() >= 500
		})

	return &Client{
		http:            httpClient,
		resourceBaseURL: config.ResourceBaseURL,
		sparqlEndpoint:  config.SPARQLEndpoint,
		language:        config.Language,
		log:             config.Logger,
	}
}

// FullTextXHTML retrieves the main act full text as XHTML.
func (client *Client) FullTextXHTML(celexID string) ([]byte, error) {
	return client.fetchWithChoices(celexID, acceptXHTML, actIncludeKeywords, actExcludeKeywords)
}

// FullTextHTML retrieves the main act full text as plain HTML.
func (client *Client) FullTextHTML(celexID string) ([]byte, error) {
	return client.fetchWithChoices(celexID, acceptHTML, actIncludeKeywords, actExcludeKeywords)
}

// AnnexXHTML retrieves the annex document part as XHTML. Proposal annexes
// are published as an independent part, hence the inverted keyword sets.
func (client *Client) AnnexXHTML(celexID string) ([]byte, error) {
	return client.fetchWithChoices(celexID, acceptXHTML, annexIncludeKeywords, annexExcludeKeywords)
}

// AnnexHTML retrieves the annex document part as plain HTML.
func (client *Client) AnnexHTML(celexID string) ([]byte, error) {
	return client.fetchWithChoices(celexID, acceptHTML, annexIncludeKeywords, annexExcludeKeywords)
}

// NoticeMetadata retrieves the expression metadata notice XML.
func (client *Client) NoticeMetadata(celexID string) ([]byte, error) {
	resourceURL, err := client.resourceURL(celexID)
	if err != nil {
		return nil, err
	}

	response, err := client.get(resourceURL, acceptNotice)
	if err != nil {
		return nil, err
	}
	if statusErr := checkStatus(response, resourceURL); statusErr != nil {
		return nil, statusErr
	}
	return response.Body(), nil
}

// fetchWithChoices performs a resource GET, transparently resolving a 300
// Multiple Choices response by parsing the candidate list and following
// the representation selected by the keyword heuristic.
func (client *Client) fetchWithChoices(celexID, accept string, includeKeywords, excludeKeywords []string) ([]byte, error) {
	resourceURL, err := client.resourceURL(celexID)
	if err != nil {
		return nil, err
	}

	response, err := client.get(resourceURL, accept)
	if err != nil {
		return nil, err
	}

	if response.StatusCode() == http.StatusMultipleChoices {
		candidates, parseErr := parseMultipleChoices(response.Body())
		if parseErr != nil {
			return nil, &RetrievalError{Kind: KindBadChoice, URL: resourceURL, Err: parseErr}
		}
		client.log.Debugw("received multiple choices response", "celex_id", celexID, "candidates", len(candidates))

		selectedURL, excludedAll, selectErr := selectRepresentation(candidates, includeKeywords, excludeKeywords)
		if selectErr != nil {
			return nil, &RetrievalError{Kind: KindBadChoice, URL: resourceURL, Err: selectErr}
		}
		if excludedAll {
			client.log.Warnw("all representations excluded by keyword filter, falling back to first candidate",
				"celex_id", celexID, "url", selectedURL)
		}

		response, err = client.get(selectedURL, accept)
		if err != nil {
			return nil, err
		}
	}

	if statusErr := checkStatus(response, resourceURL); statusErr != nil {
		return nil, statusErr
	}
	return response.Body(), nil
}

// resourceURL validates the identifier and builds the resource endpoint URL.
func (client *Client) resourceURL(celexID string) (string, error) {
	validated, err := celex.Validate(celexID)
	if err != nil {
		return "", err
	}
	return client.resourceBaseURL + url.PathEscape(validated), nil
}

// get performs one GET request with content negotiation headers and maps
// transport failures to retrieval error kinds.
func (client *Client) get(requestURL, accept string) (*resty.Response, error) {
	response, err := client.http.R().
		SetHeader("Accept", accept).
		SetHeader("Accept-Language", client.language).
		Get(requestURL)
	if err != nil {
		return nil, classifyTransportError(requestURL, err)
	}
	return response, nil
}

// classifyTransportError distinguishes timeouts from other connection
// failures.
func classifyTransportError(requestURL string, err error) *RetrievalError {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &RetrievalError{Kind: KindTimeout, URL: requestURL, Err: err}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &RetrievalError{Kind: KindTimeout, URL: requestURL, Err: err}
	}
	return &RetrievalError{Kind: KindConnection, URL: requestURL, Err: err}
}

// checkStatus maps HTTP failure statuses to retrieval error kinds.
func checkStatus(response *resty.Response, requestURL string) error {
	switch {
	case response.StatusCode() == http.StatusNotFound:
		return &RetrievalError{Kind: KindNotFound, URL: requestURL, StatusCode: response.StatusCode()}
	case response.StatusCode() == http.StatusForbidden:
		return &RetrievalError{Kind: KindForbidden, URL: requestURL, StatusCode: response.StatusCode()}
	case response.StatusCode() >= 400:
		return &RetrievalError{Kind: KindHTTPStatus, URL: requestURL, StatusCode: response.StatusCode()}
	}
	return nil
}
