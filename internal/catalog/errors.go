package catalog

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNotFound means the resolver could not locate a series or book page.
	ErrNotFound = errors.New("series or book not found")
	// ErrNoMatch means no search candidate cleared the similarity threshold.
	ErrNoMatch = errors.New("no search result matched the query")
	// ErrTransport is the sentinel matched by every TransportError.
	ErrTransport = errors.New("transport failure")
	// ErrParseIncomplete means a page was fetched but required fields were missing.
	ErrParseIncomplete = errors.New("book info incomplete")
	// ErrExhausted means an identifier used its whole retry budget.
	ErrExhausted = errors.New("retry budget exhausted")
)

// TransportError describes a failed GET: either a non-200 status or an
// underlying network error.
type TransportError struct {
	URL        string
	StatusCode int
	Err        error
}

// NewStatusError reports an unexpected HTTP status for url.
func NewStatusError(url string, status int) *TransportError {
	return &TransportError{URL: url, StatusCode: status}
}

// NewTransportError wraps a network level failure for url.
func NewTransportError(url string, err error) *TransportError {
	return &TransportError{URL: url, Err: err}
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("fetch %s: unexpected status %d %s", e.URL, e.StatusCode, http.StatusText(e.StatusCode))
}

// Unwrap exposes the underlying cause.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrTransport) match any TransportError.
func (e *TransportError) Is(target error) bool {
	return target == ErrTransport
}
