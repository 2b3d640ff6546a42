// Package memory keeps run records in process memory. Runs do not survive a
// restart.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/JakeFAU/series-collector/internal/catalog"
)

var (
	// ErrRunNotFound is returned for unknown run IDs.
	ErrRunNotFound = errors.New("run not found")
	// ErrRunExists is returned when CreateRun sees a duplicate ID.
	ErrRunExists = errors.New("run already exists")
)

// RunStore is an in-memory registry of runs.
type RunStore struct {
	mu   sync.RWMutex
	runs map[string]catalog.Run
	now  func() time.Time
}

// NewRunStore constructs an empty RunStore.
func NewRunStore() *RunStore {
	return &RunStore{
		runs: make(map[string]catalog.Run),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// CreateRun stores a new run in queued status.
func (s *RunStore) CreateRun(_ context.Context, run catalog.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.runs[run.ID]; exists {
		return fmt.Errorf("create run %s: %w", run.ID, ErrRunExists)
	}
	if run.Status == "" {
		run.Status = catalog.RunStatusQueued
	}
	if run.Created.IsZero() {
		run.Created = s.now()
	}
	s.runs[run.ID] = run.Clone()
	return nil
}

// UpdateRun applies fn to the stored run under the write lock. Entering the
// running state stamps Started; entering a terminal state stamps Finished.
// Terminal runs are not moved back to a non-terminal status.
func (s *RunStore) UpdateRun(_ context.Context, runID string, fn func(*catalog.Run)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[runID]
	if !ok {
		return fmt.Errorf("update run %s: %w", runID, ErrRunNotFound)
	}
	previous := run.Status
	fn(&run)
	if previous.Terminal() && !run.Status.Terminal() {
		run.Status = previous
	}
	now := s.now()
	if run.Status == catalog.RunStatusRunning && run.Started == nil {
		run.Started = &now
	}
	if run.Status.Terminal() && run.Finished == nil {
		run.Finished = &now
	}
	s.runs[runID] = run
	return nil
}

// GetRun returns a copy of the run.
func (s *RunStore) GetRun(_ context.Context, runID string) (catalog.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[runID]
	if !ok {
		return catalog.Run{}, fmt.Errorf("get run %s: %w", runID, ErrRunNotFound)
	}
	return run.Clone(), nil
}

// ListRuns returns every run, newest first.
func (s *RunStore) ListRuns(_ context.Context) []catalog.Run {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]catalog.Run, 0, len(s.runs))
	for _, run := range s.runs {
		out = append(out, run.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Created.After(out[j].Created)
	})
	return out
}
