// Package scheduler drives BookFetcher over a list of identifiers: one
// initial pass in discovery order, then bounded retry rounds with a global
// delay that doubles after a round without progress.
package scheduler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/series-collector/internal/catalog"
	"github.com/JakeFAU/series-collector/internal/progress"
)

// Fetcher retrieves one book. book.Fetcher satisfies it.
type Fetcher interface {
	Fetch(ctx context.Context, id string, headers http.Header) catalog.FetchOutcome
}

// Config bounds the retry loop.
type Config struct {
	// MaxRetries caps the number of fetch attempts per identifier.
	MaxRetries int
	// BaseDelay is the pause before every request and the value the delay
	// resets to after a round with progress.
	BaseDelay time.Duration
	// MaxDelay caps backoff growth; zero leaves it uncapped.
	MaxDelay time.Duration
}

// DefaultConfig returns the stock retry bounds.
func DefaultConfig() Config {
	return Config{MaxRetries: 5, BaseDelay: time.Second}
}

// Status is the lifecycle state of one identifier.
type Status string

// Slot states.
const (
	StatusPending   Status = "pending"
	StatusDone      Status = "done"
	StatusFailed    Status = "failed"
	StatusExhausted Status = "exhausted"
)

// Slot is the scheduler's record for one identifier.
type Slot struct {
	ID string
	// Book is set once a usable book was fetched.
	Book *catalog.BookInfo
	// Partial is the most recent incomplete parse, if any.
	Partial *catalog.BookInfo
	// Attempts counts fetches made for this identifier.
	Attempts int
	Status   Status
	Err      error
}

// Result is the outcome of a Run. Slots align with the input order.
type Result struct {
	Slots []Slot
	// Failed lists identifiers without a usable book, in input order.
	Failed    []string
	Cancelled bool
	// Delay is the global delay when the run ended.
	Delay time.Duration
}

// Resolved counts slots holding a usable book.
func (r Result) Resolved() int {
	n := 0
	for _, s := range r.Slots {
		if s.Status == StatusDone {
			n++
		}
	}
	return n
}

// Scheduler owns the retry state for one run. It is not safe for concurrent
// use; every fetch happens on the calling goroutine.
type Scheduler struct {
	fetcher  Fetcher
	identity catalog.IdentityPolicy
	clock    catalog.Clock
	cfg      Config
	events   progress.Emitter
	logger   *zap.Logger
}

// New constructs a Scheduler. A nil emitter discards progress events.
func New(
	fetcher Fetcher,
	identity catalog.IdentityPolicy,
	clock catalog.Clock,
	cfg Config,
	events progress.Emitter,
	logger *zap.Logger,
) *Scheduler {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultConfig().MaxRetries
	}
	if events == nil {
		events = progress.Discard
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		fetcher:  fetcher,
		identity: identity,
		clock:    clock,
		cfg:      cfg,
		events:   events,
		logger:   logger,
	}
}

// Run fetches every identifier and retries failures until each one is done
// or exhausted, or ctx is canceled. Cancellation is not an error: the slots
// collected so far are returned with Cancelled set.
func (s *Scheduler) Run(ctx context.Context, ids []string) Result {
	r := &run{
		Scheduler: s,
		slots:     make([]Slot, len(ids)),
		delay:     s.cfg.BaseDelay,
	}
	for i, id := range ids {
		r.slots[i] = Slot{ID: id, Status: StatusPending}
	}

	r.initialPass(ctx)
	for len(r.failed) > 0 && !r.cancelled {
		r.retryRound(ctx)
	}
	if r.cancelled {
		s.logger.Warn("collection canceled", zap.Int("resolved", r.resolved), zap.Int("total", len(ids)))
	}
	return r.result()
}

type run struct {
	*Scheduler
	slots     []Slot
	failed    []int
	delay     time.Duration
	resolved  int
	cancelled bool
}

func (r *run) initialPass(ctx context.Context) {
	for i := range r.slots {
		if !r.pause(ctx) {
			return
		}
		if !r.attempt(ctx, i) {
			r.failed = append(r.failed, i)
		}
	}
}

func (r *run) retryRound(ctx context.Context) {
	if ctx.Err() != nil {
		r.cancelled = true
		return
	}
	r.logger.Info("retrying failed books", zap.Int("failed", len(r.failed)), zap.Duration("delay", r.delay))
	r.emit(progress.Event{Stage: progress.StageRetryRound, Delay: r.delay, Note: strconv.Itoa(len(r.failed)) + " failed"})
	if err := r.clock.Sleep(ctx, r.delay); err != nil {
		r.cancelled = true
		return
	}

	entering := len(r.failed)
	var still []int
	for k, i := range r.failed {
		if ctx.Err() != nil {
			r.cancelled = true
			still = append(still, r.failed[k:]...)
			break
		}
		slot := &r.slots[i]
		if slot.Attempts >= r.cfg.MaxRetries {
			slot.Status = StatusExhausted
			r.logger.Error("max retries reached", zap.String("asin", slot.ID), zap.Int("attempts", slot.Attempts))
			r.emit(progress.Event{Stage: progress.StageBookExhausted, BookID: slot.ID, Attempt: slot.Attempts, Note: errText(slot.Err)})
			continue
		}
		if err := r.clock.Sleep(ctx, r.delay); err != nil {
			r.cancelled = true
			still = append(still, r.failed[k:]...)
			break
		}
		if !r.attempt(ctx, i) {
			still = append(still, i)
		}
	}
	r.failed = still
	if r.cancelled {
		return
	}

	// still is an ordered subset of the failed set, so an unchanged length
	// means no book finished or was given up on this round.
	if len(still) == entering {
		r.delay = r.backoff(r.delay)
		r.logger.Warn("no progress in retry round, backing off", zap.Duration("delay", r.delay))
		r.emit(progress.Event{Stage: progress.StageBackoff, Delay: r.delay})
		return
	}
	r.delay = r.cfg.BaseDelay
}

// pause waits the current delay, or marks the run canceled.
func (r *run) pause(ctx context.Context) bool {
	if ctx.Err() != nil {
		r.cancelled = true
		return false
	}
	if err := r.clock.Sleep(ctx, r.delay); err != nil {
		r.cancelled = true
		return false
	}
	return true
}

// attempt fetches slot i with a fresh identity and records the outcome. It
// reports whether the slot is now done.
func (r *run) attempt(ctx context.Context, i int) bool {
	slot := &r.slots[i]
	var headers http.Header
	if r.identity != nil {
		headers = r.identity.Headers()
	}
	outcome := r.fetcher.Fetch(ctx, slot.ID, headers)
	slot.Attempts++
	if outcome.OK() {
		slot.Book = outcome.Book
		slot.Status = StatusDone
		slot.Err = nil
		r.resolved++
		r.logger.Info("book collected",
			zap.String("asin", slot.ID),
			zap.Int("attempt", slot.Attempts),
			zap.Int("resolved", r.resolved),
			zap.Int("total", len(r.slots)),
		)
		r.emit(progress.Event{Stage: progress.StageBookDone, BookID: slot.ID, Attempt: slot.Attempts, Note: outcome.Book.Title})
		return true
	}
	if outcome.Book != nil {
		slot.Partial = outcome.Book
	}
	slot.Status = StatusFailed
	slot.Err = outcome.Err
	r.logger.Warn("book fetch failed",
		zap.String("asin", slot.ID),
		zap.Int("attempt", slot.Attempts),
		zap.String("kind", string(outcome.Kind)),
		zap.Error(outcome.Err),
	)
	r.emit(progress.Event{Stage: progress.StageBookFailed, BookID: slot.ID, Attempt: slot.Attempts, Note: errText(outcome.Err)})
	return false
}

func (r *run) backoff(d time.Duration) time.Duration {
	next := d * 2
	if next == 0 {
		next = r.cfg.BaseDelay
	}
	if r.cfg.MaxDelay > 0 && next > r.cfg.MaxDelay {
		next = r.cfg.MaxDelay
	}
	return next
}

func (r *run) emit(evt progress.Event) {
	evt.Resolved = r.resolved
	evt.Total = len(r.slots)
	if evt.Delay == 0 {
		evt.Delay = r.delay
	}
	r.events.Emit(evt)
}

func (r *run) result() Result {
	out := Result{
		Slots:     r.slots,
		Cancelled: r.cancelled,
		Delay:     r.delay,
	}
	for _, slot := range r.slots {
		if slot.Status != StatusDone {
			out.Failed = append(out.Failed, slot.ID)
		}
	}
	return out
}

func errText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
