// Package catalogtest provides an in-memory PageSource for tests.
package catalogtest

import (
	"context"
	"net/http"
	"sync"

	"github.com/JakeFAU/series-collector/internal/catalog"
)

// Reply is one scripted response. A non-nil Err is returned as a transport
// failure instead of a response.
type Reply struct {
	Status int
	Body   string
	Err    error
}

// OK is a 200 reply with body.
func OK(body string) Reply {
	return Reply{Status: http.StatusOK, Body: body}
}

// Status is an empty reply with the given status code.
func Status(code int) Reply {
	return Reply{Status: code}
}

// Source serves scripted replies keyed by exact URL. Replies for a URL are
// consumed in order and the last one repeats; unknown URLs get a 404.
type Source struct {
	mu     sync.Mutex
	routes map[string][]Reply
	calls  []catalog.FetchRequest
}

// NewSource returns an empty Source.
func NewSource() *Source {
	return &Source{routes: make(map[string][]Reply)}
}

// Page serves body with status 200 for url on every call.
func (s *Source) Page(url, body string) *Source {
	return s.Script(url, OK(body))
}

// Script queues replies for url.
func (s *Source) Script(url string, replies ...Reply) *Source {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.routes[url] = append(s.routes[url], replies...)
	return s
}

// Fetch implements catalog.PageSource.
func (s *Source) Fetch(ctx context.Context, request catalog.FetchRequest) (catalog.FetchResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, request)
	if err := ctx.Err(); err != nil {
		return catalog.FetchResponse{}, catalog.NewTransportError(request.URL, err)
	}
	replies := s.routes[request.URL]
	if len(replies) == 0 {
		return catalog.FetchResponse{URL: request.URL, StatusCode: http.StatusNotFound}, nil
	}
	reply := replies[0]
	if len(replies) > 1 {
		s.routes[request.URL] = replies[1:]
	}
	if reply.Err != nil {
		return catalog.FetchResponse{}, catalog.NewTransportError(request.URL, reply.Err)
	}
	return catalog.FetchResponse{
		URL:        request.URL,
		StatusCode: reply.Status,
		Body:       []byte(reply.Body),
	}, nil
}

// Calls returns every request seen so far.
func (s *Source) Calls() []catalog.FetchRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]catalog.FetchRequest(nil), s.calls...)
}

// URLs returns the requested URLs in order.
func (s *Source) URLs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.calls))
	for i, call := range s.calls {
		out[i] = call.URL
	}
	return out
}

// Count reports how many times url was requested.
func (s *Source) Count(url string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, call := range s.calls {
		if call.URL == url {
			n++
		}
	}
	return n
}
