package sinks

import (
	"context"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/JakeFAU/series-collector/internal/progress"
)

// PrometheusSink exports run and book counters via Prometheus.
type PrometheusSink struct {
	runsStarted   prometheus.Counter
	runsCompleted *prometheus.CounterVec
	runsRunning   prometheus.Gauge
	runRuntime    *prometheus.HistogramVec

	books        *prometheus.CounterVec
	seriesPages  prometheus.Counter
	retryRounds  prometheus.Counter
	backoffDelay prometheus.Gauge

	tracker *runTracker
}

// NewPrometheusSink registers the collectors against reg, or the default
// registerer when reg is nil.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		runsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "collector_runs_started_total",
			Help: "Total collection runs that have started.",
		}),
		runsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "collector_runs_completed_total",
			Help: "Total collection runs completed partitioned by result.",
		}, []string{"result"}),
		runsRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "collector_runs_running",
			Help: "Current number of running collection runs.",
		}),
		runRuntime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "collector_run_runtime_seconds",
			Help:    "Wall time per completed run.",
			Buckets: []float64{5, 15, 30, 60, 120, 300, 600, 1200, 2400},
		}, []string{"result"}),
		books: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "collector_books_total",
			Help: "Book fetch outcomes partitioned by outcome.",
		}, []string{"outcome"}),
		seriesPages: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "collector_series_pages_total",
			Help: "Series listing pages fetched.",
		}),
		retryRounds: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "collector_retry_rounds_total",
			Help: "Retry rounds started by the scheduler.",
		}),
		backoffDelay: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "collector_backoff_delay_seconds",
			Help: "Current inter-request delay after the last backoff.",
		}),
		tracker: newRunTracker(),
	}
	for _, collector := range []prometheus.Collector{
		s.runsStarted,
		s.runsCompleted,
		s.runsRunning,
		s.runRuntime,
		s.books,
		s.seriesPages,
		s.retryRounds,
		s.backoffDelay,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register progress collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the collectors for every event in batch.
func (s *PrometheusSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		s.consumeEvent(evt)
	}
	return nil
}

func (s *PrometheusSink) consumeEvent(evt progress.Event) {
	switch evt.Stage {
	case progress.StageRunStart:
		s.runsStarted.Inc()
		if s.tracker.start(evt.RunID) {
			s.runsRunning.Inc()
		}
	case progress.StageRunDone:
		s.finishRun(evt, "success")
	case progress.StageRunError:
		s.finishRun(evt, "error")
	case progress.StageRunCanceled:
		s.finishRun(evt, "canceled")
	case progress.StageSeriesPage:
		s.seriesPages.Inc()
	case progress.StageBookDone:
		s.books.WithLabelValues("done").Inc()
	case progress.StageBookFailed:
		s.books.WithLabelValues("failed").Inc()
	case progress.StageBookExhausted:
		s.books.WithLabelValues("exhausted").Inc()
	case progress.StageRetryRound:
		s.retryRounds.Inc()
	case progress.StageBackoff:
		s.backoffDelay.Set(evt.Delay.Seconds())
	}
}

func (s *PrometheusSink) finishRun(evt progress.Event, result string) {
	s.runsCompleted.WithLabelValues(result).Inc()
	if evt.Dur > 0 {
		s.runRuntime.WithLabelValues(result).Observe(evt.Dur.Seconds())
	}
	if s.tracker.complete(evt.RunID) {
		s.runsRunning.Dec()
	}
}

// Close implements the Sink interface; it performs no action.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}

type runTracker struct {
	mu      sync.Mutex
	running map[[16]byte]struct{}
}

func newRunTracker() *runTracker {
	return &runTracker{running: make(map[[16]byte]struct{})}
}

func (t *runTracker) start(id [16]byte) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.running[id]; ok {
		return false
	}
	t.running[id] = struct{}{}
	return true
}

func (t *runTracker) complete(id [16]byte) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.running[id]; !ok {
		return false
	}
	delete(t.running, id)
	return true
}
