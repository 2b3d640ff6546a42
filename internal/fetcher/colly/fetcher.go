// Package collyfetcher fetches catalog pages with gocolly. Each request runs
// on its own clone of a shared collector so concurrent callers never share
// callbacks, while the clones reuse one HTTP transport.
package collyfetcher

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/JakeFAU/series-collector/internal/catalog"
)

const (
	defaultTimeout        = 15 * time.Second
	defaultAcceptLanguage = "ja-JP,ja;q=0.9,en;q=0.8"
)

// Config controls collector behavior.
type Config struct {
	// UserAgent is sent when the request carries no identity header.
	UserAgent string
	// AcceptLanguage defaults to Japanese first, matching the primary
	// storefront locale.
	AcceptLanguage string
	Timeout        time.Duration
	// MaxBodySize caps the bytes read per page; 0 keeps colly's default.
	MaxBodySize int
}

// Fetcher implements catalog.PageSource.
type Fetcher struct {
	base     *colly.Collector
	language string
}

// New builds a Fetcher.
func New(cfg Config) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.AcceptLanguage == "" {
		cfg.AcceptLanguage = defaultAcceptLanguage
	}

	c := colly.NewCollector(colly.Async(false))
	// Retries revisit the same URL, and non-2xx pages are classified by the
	// caller rather than reported as collector errors.
	c.AllowURLRevisit = true
	c.ParseHTTPErrorResponse = true
	c.IgnoreRobotsTxt = true
	if cfg.UserAgent != "" {
		c.UserAgent = cfg.UserAgent
	}
	if cfg.MaxBodySize > 0 {
		c.MaxBodySize = cfg.MaxBodySize
	}
	c.SetRequestTimeout(cfg.Timeout)
	c.WithTransport(&http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout: 15 * time.Second,
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     90 * time.Second,
	})

	return &Fetcher{base: c, language: cfg.AcceptLanguage}
}

// page collects what one visit produced.
type page struct {
	language string
	headers  http.Header
	resp     catalog.FetchResponse
	err      error
}

// Fetch GETs request.URL. Any status code comes back as a response; only
// network failures and cancellation produce a *catalog.TransportError.
func (f *Fetcher) Fetch(ctx context.Context, request catalog.FetchRequest) (catalog.FetchResponse, error) {
	p := &page{language: f.language, headers: request.Headers}
	// Clones share the backend and settings but start without callbacks.
	c := f.base.Clone()
	start := time.Now()
	p.bind(c, start)

	done := make(chan error, 1)
	go func() { done <- c.Visit(request.URL) }()

	select {
	case <-ctx.Done():
		return catalog.FetchResponse{}, catalog.NewTransportError(request.URL, fmt.Errorf("fetch canceled: %w", ctx.Err()))
	case err := <-done:
		if err == nil {
			err = p.err
		}
		if err != nil {
			return catalog.FetchResponse{}, catalog.NewTransportError(request.URL, err)
		}
		return p.resp, nil
	}
}

// bind registers the per-visit callbacks. The caller's headers replace
// collector defaults, so a rotated User-Agent wins over the configured one.
func (p *page) bind(c *colly.Collector, start time.Time) {
	c.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept-Language", p.language)
		for key, values := range p.headers {
			r.Headers.Del(key)
			for _, v := range values {
				r.Headers.Add(key, v)
			}
		}
	})
	c.OnResponse(func(r *colly.Response) {
		p.resp = catalog.FetchResponse{
			URL:        r.Request.URL.String(),
			StatusCode: r.StatusCode,
			Headers:    r.Headers.Clone(),
			Body:       append([]byte(nil), r.Body...),
			Duration:   time.Since(start),
		}
	})
	c.OnError(func(_ *colly.Response, err error) {
		p.err = err
	})
}
