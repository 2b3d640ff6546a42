package catalog

import (
	"net/http"
	"strings"
	"time"
)

// SeriesInfo is the series-level metadata collected from the first listing
// page plus the book identifiers discovered across every listing page.
type SeriesInfo struct {
	Title        string   `json:"title"`
	ImageURL     string   `json:"image_url"`
	Description  string   `json:"description"`
	Authors      Names    `json:"authors"`
	Illustrators Names    `json:"illustrators"`
	BookIDs      []string `json:"book_ids"`
}

// BookInfo is the normalized metadata for one book detail page.
type BookInfo struct {
	ID           string  `json:"id"`
	Title        string  `json:"title"`
	Thumbnail    string  `json:"thumbnail"`
	LargeImage   string  `json:"large_image"`
	Details      Details `json:"details"`
	Authors      Names   `json:"authors"`
	Illustrators Names   `json:"illustrators"`
	Preface      string  `json:"preface"`
}

// Usable reports whether the book passes the completeness gate: authors,
// illustrators, description details and preface must all be present.
func (b *BookInfo) Usable() bool {
	if b == nil {
		return false
	}
	return len(b.Authors) > 0 &&
		len(b.Illustrators) > 0 &&
		b.Details.Len() > 0 &&
		b.Preface != ""
}

// Field is one label/value pair from a detail block.
type Field struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Details is an insertion-ordered label/value mapping. Setting an existing
// key replaces its value without moving it.
type Details struct {
	fields []Field
	index  map[string]int
}

// Set inserts or overwrites key.
func (d *Details) Set(key, value string) {
	if d.index == nil {
		d.index = make(map[string]int)
	}
	if i, ok := d.index[key]; ok {
		d.fields[i].Value = value
		return
	}
	d.index[key] = len(d.fields)
	d.fields = append(d.fields, Field{Key: key, Value: value})
}

// Get returns the value stored under key.
func (d Details) Get(key string) (string, bool) {
	i, ok := d.index[key]
	if !ok {
		return "", false
	}
	return d.fields[i].Value, true
}

// Len returns the number of distinct keys.
func (d Details) Len() int {
	return len(d.fields)
}

// Fields returns a copy of the pairs in page order.
func (d Details) Fields() []Field {
	out := make([]Field, len(d.fields))
	copy(out, d.fields)
	return out
}

// MarshalJSON encodes the pairs as an ordered array.
func (d Details) MarshalJSON() ([]byte, error) {
	return marshalFields(d.Fields())
}

// Names is a set of contributor names that keeps first-seen order so output
// stays deterministic.
type Names []string

// Add appends name unless it is blank or already present. Names are trimmed
// but otherwise compared exactly.
func (n Names) Add(name string) Names {
	name = strings.TrimSpace(name)
	if name == "" {
		return n
	}
	for _, existing := range n {
		if existing == name {
			return n
		}
	}
	return append(n, name)
}

// Contains reports whether name is in the set.
func (n Names) Contains(name string) bool {
	for _, existing := range n {
		if existing == name {
			return true
		}
	}
	return false
}

// OutcomeKind classifies a single BookFetcher call.
type OutcomeKind string

// Fetch outcome kinds.
const (
	OutcomeComplete         OutcomeKind = "complete"
	OutcomeIncomplete       OutcomeKind = "incomplete"
	OutcomeTransportFailure OutcomeKind = "transport_failure"
)

// FetchOutcome is the tagged result of fetching one book. Book is set for
// Complete and, when something was parsed, for Incomplete. Err carries the
// last transport error for TransportFailure.
type FetchOutcome struct {
	Kind OutcomeKind
	Book *BookInfo
	Err  error
}

// Complete wraps a usable book.
func Complete(book *BookInfo) FetchOutcome {
	return FetchOutcome{Kind: OutcomeComplete, Book: book}
}

// Incomplete wraps a partial (possibly nil) book.
func Incomplete(book *BookInfo) FetchOutcome {
	return FetchOutcome{Kind: OutcomeIncomplete, Book: book, Err: ErrParseIncomplete}
}

// TransportFailure wraps the last error seen across every candidate URL.
func TransportFailure(err error) FetchOutcome {
	return FetchOutcome{Kind: OutcomeTransportFailure, Err: err}
}

// OK reports whether the outcome carries a usable book.
func (o FetchOutcome) OK() bool {
	return o.Kind == OutcomeComplete && o.Book != nil
}

// FetchRequest captures everything needed to fetch a URL.
type FetchRequest struct {
	URL     string
	Headers http.Header
}

// FetchResponse is the result returned by a PageSource implementation.
type FetchResponse struct {
	URL        string
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
}
