package cellar

import "fmt"

// RetrievalErrorKind distinguishes the failure conditions of a CELLAR
// retrieval. Callers fold these into fallback chains rather than failing.
type RetrievalErrorKind string

const (
	KindNotFound   RetrievalErrorKind = "not_found"
	KindForbidden  RetrievalErrorKind = "forbidden"
	KindHTTPStatus RetrievalErrorKind = "http_status"
	KindTimeout    RetrievalErrorKind = "timeout"
	KindConnection RetrievalErrorKind = "connection"
	KindBadChoice  RetrievalErrorKind = "bad_multiple_choices"
)

// RetrievalError is returned by the CELLAR client for failed document or
// metadata retrievals. The Kind field makes the failure conditions
// distinguishable without string matching.
type RetrievalError struct {
	Kind       RetrievalErrorKind
	URL        string
	StatusCode int
	Err        error
}

func (retrievalError *RetrievalError) Error() string {
	switch retrievalError.Kind {
	case KindNotFound:
		return fmt.Sprintf("document not found at %s", retrievalError.URL)
	case KindForbidden:
		return fmt.Sprintf("access forbidden for %s", retrievalError.URL)
	case KindHTTPStatus:
		return fmt.Sprintf("request to %s failed with status %d", retrievalError.URL, retrievalError.StatusCode)
	case KindTimeout:
		return fmt.Sprintf("request to %s timed out: %v", retrievalError.URL, retrievalError.Err)
	case KindConnection:
		return fmt.Sprintf("connection error fetching %s: %v", retrievalError.URL, retrievalError.Err)
	case KindBadChoice:
		return fmt.Sprintf("failed to resolve multiple choices response for %s: %v", retrievalError.URL, retrievalError.Err)
	default:
		return fmt.Sprintf("retrieval failed for %s: %v", retrievalError.URL, retrievalError.Err)
	}
}

func (retrievalError *RetrievalError) Unwrap() error {
	return retrievalError.Err
}
