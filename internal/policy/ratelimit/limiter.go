// Package ratelimit implements a per-host token bucket that sits in front of
// a catalog.PageSource so every outbound GET is paced, whichever component
// issues it.
package ratelimit

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/JakeFAU/series-collector/internal/catalog"
)

// Limiter manages per-host rate limits.
type Limiter struct {
	mu           sync.Mutex
	limiters     map[string]*rate.Limiter
	defaultRate  rate.Limit
	defaultBurst int
	onDelay      func(host string, waited time.Duration)
	logger       *zap.Logger
}

// Config holds rate limiter configuration. A non-positive RPS disables
// limiting.
type Config struct {
	DefaultRPS   float64
	DefaultBurst int
	// OnDelay, when set, is told about every pause longer than a millisecond.
	OnDelay func(host string, waited time.Duration)
}

// New creates a new Limiter.
func New(cfg Config, logger *zap.Logger) *Limiter {
	r := rate.Limit(cfg.DefaultRPS)
	if cfg.DefaultRPS <= 0 {
		r = rate.Inf
	}
	burst := cfg.DefaultBurst
	if burst <= 0 {
		burst = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Limiter{
		limiters:     make(map[string]*rate.Limiter),
		defaultRate:  r,
		defaultBurst: burst,
		onDelay:      cfg.OnDelay,
		logger:       logger,
	}
}

// Wait blocks until a token is available for the host of rawURL, respecting
// the context.
func (l *Limiter) Wait(ctx context.Context, rawURL string) error {
	host := "unknown"
	if u, err := url.Parse(rawURL); err == nil && u.Hostname() != "" {
		host = u.Hostname()
	}
	l.mu.Lock()
	limiter, exists := l.limiters[host]
	if !exists {
		limiter = rate.NewLimiter(l.defaultRate, l.defaultBurst)
		l.limiters[host] = limiter
	}
	l.mu.Unlock()

	start := time.Now()
	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	if waited := time.Since(start); waited > time.Millisecond {
		l.logger.Debug("rate limit delay", zap.String("host", host), zap.Duration("waited", waited))
		if l.onDelay != nil {
			l.onDelay(host, waited)
		}
	}
	return nil
}

// Source paces an underlying PageSource through a Limiter.
type Source struct {
	next    catalog.PageSource
	limiter *Limiter
}

// Wrap returns next guarded by limiter.
func Wrap(next catalog.PageSource, limiter *Limiter) *Source {
	return &Source{next: next, limiter: limiter}
}

// Fetch waits for a token and delegates to the wrapped source.
func (s *Source) Fetch(ctx context.Context, request catalog.FetchRequest) (catalog.FetchResponse, error) {
	if err := s.limiter.Wait(ctx, request.URL); err != nil {
		return catalog.FetchResponse{}, err
	}
	return s.next.Fetch(ctx, request)
}
