package progress

import (
	"context"
	"sync"
	"time"
)

// Sink consumes batches of progress events. Implementations must be safe for
// repeated calls, honor ctx deadlines, and may be invoked concurrently.
type Sink interface {
	Consume(ctx context.Context, batch []Event) error
	Close(ctx context.Context) error
}

// Emitter publishes individual events; Hub satisfies this interface so the
// pipeline can remain agnostic about how events are buffered or persisted.
type Emitter interface {
	Emit(evt Event)
}

// Discard is an Emitter that drops everything.
var Discard Emitter = discard{}

type discard struct{}

func (discard) Emit(Event) {}

// Scoped stamps the run ID and timestamp on every event before handing it to
// the next emitter, so components only fill in what they know.
type Scoped struct {
	next  Emitter
	runID [16]byte
	now   func() time.Time
}

// NewScoped returns an emitter bound to one run. A nil next discards events;
// a nil now uses time.Now.
func NewScoped(next Emitter, runID [16]byte, now func() time.Time) *Scoped {
	if next == nil {
		next = Discard
	}
	if now == nil {
		now = time.Now
	}
	return &Scoped{next: next, runID: runID, now: now}
}

// Emit fills RunID and TS when unset and forwards the event.
func (s *Scoped) Emit(evt Event) {
	if evt.RunID == [16]byte{} {
		evt.RunID = s.runID
	}
	if evt.TS.IsZero() {
		evt.TS = s.now().UTC()
	}
	s.next.Emit(evt)
}

// Recorder is a synchronous Emitter that keeps every event in memory. It is
// handy for callers that want the full event stream after a run.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Emit appends evt.
func (r *Recorder) Emit(evt Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Stages returns the recorded stages in order.
func (r *Recorder) Stages() []Stage {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Stage, len(r.events))
	for i, evt := range r.events {
		out[i] = evt.Stage
	}
	return out
}

// Count returns how many events of the given stage were recorded.
func (r *Recorder) Count(stage Stage) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, evt := range r.events {
		if evt.Stage == stage {
			n++
		}
	}
	return n
}
