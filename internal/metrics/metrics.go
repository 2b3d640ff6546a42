// Package metrics exposes Prometheus collectors for outbound catalog fetches
// and the control API.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/JakeFAU/series-collector/internal/catalog"
)

// Metrics groups the fetch and HTTP collectors.
type Metrics struct {
	fetchesTotal          *prometheus.CounterVec
	fetchBytesTotal       *prometheus.CounterVec
	fetchDurationSeconds  *prometheus.HistogramVec
	rateLimitDelaySeconds *prometheus.HistogramVec

	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec
}

// New registers the collectors on reg, or the default registerer when reg is
// nil. Registering twice on the same registry panics.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		fetchesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "collector_fetches_total",
				Help: "Total catalog pages requested, labeled by site and status.",
			},
			[]string{"site", "status"},
		),
		fetchBytesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "collector_fetch_bytes_total",
				Help: "Total bytes fetched from the catalog, labeled by site.",
			},
			[]string{"site"},
		),
		fetchDurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "collector_fetch_duration_seconds",
				Help:    "Histogram of catalog fetch latencies, labeled by site.",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"site"},
		),
		rateLimitDelaySeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "collector_rate_limit_delays_seconds",
				Help:    "Histogram of rate limit wait durations.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"site"},
		),
		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		),
		httpRequestDurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		),
	}
}

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// ObserveRateLimitDelay records a rate-limiter pause for host.
func (m *Metrics) ObserveRateLimitDelay(host string, waited time.Duration) {
	m.rateLimitDelaySeconds.WithLabelValues(SanitizeSite(host)).Observe(waited.Seconds())
}

// Source records every fetch made through the wrapped PageSource.
type Source struct {
	next    catalog.PageSource
	metrics *Metrics
}

// Instrument wraps next so each fetch is counted and timed.
func (m *Metrics) Instrument(next catalog.PageSource) *Source {
	return &Source{next: next, metrics: m}
}

// Fetch delegates to the wrapped source. Transport errors are counted under
// status "error" and canceled requests under "canceled".
func (s *Source) Fetch(ctx context.Context, request catalog.FetchRequest) (catalog.FetchResponse, error) {
	site := SanitizeSite(request.URL)
	start := time.Now()
	resp, err := s.next.Fetch(ctx, request)
	s.metrics.fetchDurationSeconds.WithLabelValues(site).Observe(time.Since(start).Seconds())

	status := strconv.Itoa(resp.StatusCode)
	switch {
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		status = "canceled"
	case err != nil:
		status = "error"
	default:
		s.metrics.fetchBytesTotal.WithLabelValues(site).Add(float64(len(resp.Body)))
	}
	s.metrics.fetchesTotal.WithLabelValues(site, status).Inc()
	return resp, err
}

// Middleware is a chi middleware that records HTTP request metrics.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)

		routePattern := "unknown"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			routePattern = rctx.RoutePattern()
		}
		m.httpRequestsTotal.WithLabelValues(r.Method, strconv.Itoa(ww.status)).Inc()
		m.httpRequestDurationSeconds.WithLabelValues(r.Method, routePattern).Observe(time.Since(start).Seconds())
	})
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}
