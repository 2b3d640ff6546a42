package sinks

import (
	"context"
	"fmt"

	"github.com/JakeFAU/series-collector/internal/catalog"
	"github.com/JakeFAU/series-collector/internal/progress"
)

// RunUpdater mutates a stored run record in place.
type RunUpdater interface {
	UpdateRun(ctx context.Context, runID string, fn func(*catalog.Run)) error
}

// StoreSink folds progress events into run records so the control API can
// report live progress.
type StoreSink struct {
	runs RunUpdater
}

// NewStoreSink constructs a StoreSink over runs.
func NewStoreSink(runs RunUpdater) *StoreSink {
	return &StoreSink{runs: runs}
}

// Consume applies each event to its run. Events for unknown runs surface as
// errors from the updater.
func (s *StoreSink) Consume(ctx context.Context, batch []progress.Event) error {
	if s == nil || s.runs == nil {
		return nil
	}
	for _, evt := range batch {
		runID := evt.RunUUID().String()
		if err := s.runs.UpdateRun(ctx, runID, func(run *catalog.Run) { apply(run, evt) }); err != nil {
			return fmt.Errorf("apply %s to run: %w", evt.Stage, err)
		}
	}
	return nil
}

func apply(run *catalog.Run, evt progress.Event) {
	if evt.Total > 0 {
		run.Total = evt.Total
		run.Resolved = evt.Resolved
	}
	switch evt.Stage {
	case progress.StageRunStart:
		run.Status = catalog.RunStatusRunning
	case progress.StageResolved:
		run.SeriesURL = evt.URL
	case progress.StageSeriesDone:
		run.Title = evt.Note
	case progress.StageBookExhausted:
		run.Exhausted = append(run.Exhausted, evt.BookID)
	case progress.StageBackoff, progress.StageRetryRound:
		run.Delay = evt.Delay
	case progress.StageExported:
		run.Location = evt.URL
	case progress.StageRunDone:
		run.Status = catalog.RunStatusSucceeded
	case progress.StageRunCanceled:
		run.Status = catalog.RunStatusCanceled
	case progress.StageRunError:
		run.Status = catalog.RunStatusFailed
		run.ErrorText = evt.Note
	}
}

// Close implements the Sink interface; it performs no action.
func (s *StoreSink) Close(context.Context) error {
	return nil
}
