// Package manual provides a deterministic clock for tests: Sleep advances
// virtual time and records the requested pause instead of blocking.
package manual

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Clock is a virtual clock. The zero value starts at the Unix epoch.
type Clock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
	// OnSleep, when set, runs after each recorded pause. Tests use it to
	// cancel a context at a precise point.
	OnSleep func(n int, d time.Duration)
}

// New returns a Clock starting at start.
func New(start time.Time) *Clock {
	return &Clock{now: start}
}

// Now returns the virtual time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Sleep records d, advances virtual time and returns immediately unless ctx
// is already done.
func (c *Clock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("sleep canceled: %w", err)
	}
	c.mu.Lock()
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
	n := len(c.sleeps)
	hook := c.OnSleep
	c.mu.Unlock()
	if hook != nil {
		hook(n, d)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("sleep canceled: %w", err)
	}
	return nil
}

// Sleeps returns every pause requested so far.
func (c *Clock) Sleeps() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]time.Duration, len(c.sleeps))
	copy(out, c.sleeps)
	return out
}
