package sinks

import (
	"context"

	"go.uber.org/zap"

	"github.com/JakeFAU/series-collector/internal/progress"
)

// LogSink turns progress events into operator-facing log lines.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink wires a Zap logger to the sink interface.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Consume logs each event in the batch.
func (s *LogSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		s.log(evt)
	}
	return nil
}

func (s *LogSink) log(evt progress.Event) {
	fields := []zap.Field{
		zap.String("run_id", evt.RunUUID().String()),
		zap.String("stage", string(evt.Stage)),
	}
	if evt.BookID != "" {
		fields = append(fields, zap.String("asin", evt.BookID), zap.Int("attempt", evt.Attempt))
	}
	if evt.URL != "" {
		fields = append(fields, zap.String("url", evt.URL))
	}
	if evt.Total > 0 {
		fields = append(fields, zap.Int("resolved", evt.Resolved), zap.Int("total", evt.Total))
	}
	if evt.Delay > 0 {
		fields = append(fields, zap.Duration("delay", evt.Delay))
	}
	if evt.Note != "" {
		fields = append(fields, zap.String("note", evt.Note))
	}

	switch evt.Stage {
	case progress.StageRunStart:
		s.logger.Info("collection started", fields...)
	case progress.StageResolved:
		s.logger.Info("series page resolved", fields...)
	case progress.StageSeriesPage:
		s.logger.Debug("series page fetched", append(fields, zap.Int("page", evt.Page))...)
	case progress.StageSeriesDone:
		s.logger.Info("series enumerated", fields...)
	case progress.StageBookDone:
		s.logger.Info("book collected", fields...)
	case progress.StageBookFailed:
		s.logger.Warn("book fetch failed", fields...)
	case progress.StageBookExhausted:
		s.logger.Error("book retry budget exhausted", fields...)
	case progress.StageRetryRound:
		s.logger.Info("retrying failed books", fields...)
	case progress.StageBackoff:
		s.logger.Warn("no progress in retry round, backing off", fields...)
	case progress.StageExported:
		s.logger.Info("report exported", fields...)
	case progress.StageRunDone:
		s.logger.Info("collection finished", append(fields, zap.Duration("dur", evt.Dur))...)
	case progress.StageRunCanceled:
		s.logger.Warn("collection canceled", fields...)
	case progress.StageRunError:
		s.logger.Error("collection failed", fields...)
	default:
		s.logger.Debug("progress event", fields...)
	}
}

// Close implements the Sink interface; it performs no action.
func (s *LogSink) Close(context.Context) error {
	return nil
}
