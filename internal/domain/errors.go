package domain

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a detail page or stored record does not exist.
var ErrNotFound = errors.New("not found")

// NetworkError wraps a transport-level failure. Network errors are
// retryable with bounded backoff; everything else is not.
type NetworkError struct {
	URL string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error fetching %s: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ParseError marks a page that fetched fine but could not be turned into a
// valid item. Parse errors are counted and skipped, never fatal to a run.
type ParseError struct {
	URL    string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at %s: %s", e.URL, e.Reason)
}

// EnrichmentServiceError wraps a failure of the external NLP service.
// Enrichment failures are non-fatal: the item persists without the derived
// fields.
type EnrichmentServiceError struct {
	Endpoint string
	Err      error
}

func (e *EnrichmentServiceError) Error() string {
	return fmt.Sprintf("enrichment service %s: %v", e.Endpoint, e.Err)
}

func (e *EnrichmentServiceError) Unwrap() error { return e.Err }

// IsRetryable reports whether an error should be retried with backoff.
func IsRetryable(err error) bool {
	var netErr *NetworkError
	return errors.As(err, &netErr)
}

// IsParseError reports whether an error is a skip-and-count parse failure.
func IsParseError(err error) bool {
	var parseErr *ParseError
	return errors.As(err, &parseErr)
}
