package sinks

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/JakeFAU/series-collector/internal/catalog"
	"github.com/JakeFAU/series-collector/internal/progress"
	"github.com/JakeFAU/series-collector/internal/storage/memory"
)

func runEvents(id uuid.UUID) []progress.Event {
	runID := progress.UUIDToBytes(id)
	ts := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	return []progress.Event{
		{RunID: runID, TS: ts, Stage: progress.StageRunStart},
		{RunID: runID, TS: ts, Stage: progress.StageResolved, URL: "https://www.example.jp/dp/B0SERIES01"},
		{RunID: runID, TS: ts, Stage: progress.StageSeriesPage, Page: 1},
		{RunID: runID, TS: ts, Stage: progress.StageSeriesDone, Note: "Series", Total: 2},
		{RunID: runID, TS: ts, Stage: progress.StageBookDone, BookID: "B000000001", Attempt: 1, Resolved: 1, Total: 2},
		{RunID: runID, TS: ts, Stage: progress.StageBookFailed, BookID: "B000000002", Attempt: 1, Resolved: 1, Total: 2},
		{RunID: runID, TS: ts, Stage: progress.StageRetryRound, Delay: time.Second, Resolved: 1, Total: 2},
		{RunID: runID, TS: ts, Stage: progress.StageBackoff, Delay: 2 * time.Second, Resolved: 1, Total: 2},
		{RunID: runID, TS: ts, Stage: progress.StageBookExhausted, BookID: "B000000002", Attempt: 5, Resolved: 1, Total: 2},
		{RunID: runID, TS: ts, Stage: progress.StageExported, URL: "output/Series.html"},
		{RunID: runID, TS: ts, Stage: progress.StageRunDone, Dur: 3 * time.Second},
	}
}

func TestStoreSinkFoldsRunProgress(t *testing.T) {
	t.Parallel()

	store := memory.NewRunStore()
	id := uuid.New()
	ctx := context.Background()
	require.NoError(t, store.CreateRun(ctx, catalog.Run{ID: id.String(), Query: "series"}))

	sink := NewStoreSink(store)
	require.NoError(t, sink.Consume(ctx, runEvents(id)))
	require.NoError(t, sink.Close(ctx))

	run, err := store.GetRun(ctx, id.String())
	require.NoError(t, err)
	require.Equal(t, catalog.RunStatusSucceeded, run.Status)
	require.Equal(t, "https://www.example.jp/dp/B0SERIES01", run.SeriesURL)
	require.Equal(t, "Series", run.Title)
	require.Equal(t, 1, run.Resolved)
	require.Equal(t, 2, run.Total)
	require.Equal(t, []string{"B000000002"}, run.Exhausted)
	require.Equal(t, 2*time.Second, run.Delay)
	require.Equal(t, "output/Series.html", run.Location)
	require.NotNil(t, run.Finished)
}

func TestStoreSinkRecordsErrors(t *testing.T) {
	t.Parallel()

	store := memory.NewRunStore()
	id := uuid.New()
	ctx := context.Background()
	require.NoError(t, store.CreateRun(ctx, catalog.Run{ID: id.String()}))

	runID := progress.UUIDToBytes(id)
	err := NewStoreSink(store).Consume(ctx, []progress.Event{
		{RunID: runID, TS: time.Now(), Stage: progress.StageRunStart},
		{RunID: runID, TS: time.Now(), Stage: progress.StageRunError, Note: "no search result matched the query"},
	})
	require.NoError(t, err)

	run, err := store.GetRun(ctx, id.String())
	require.NoError(t, err)
	require.Equal(t, catalog.RunStatusFailed, run.Status)
	require.Equal(t, "no search result matched the query", run.ErrorText)
}

func TestStoreSinkUnknownRun(t *testing.T) {
	t.Parallel()

	err := NewStoreSink(memory.NewRunStore()).Consume(context.Background(), runEvents(uuid.New())[:1])
	require.ErrorIs(t, err, memory.ErrRunNotFound)
}

func TestPrometheusSinkCounts(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	sink, err := NewPrometheusSink(reg)
	require.NoError(t, err)

	require.NoError(t, sink.Consume(context.Background(), runEvents(uuid.New())))

	require.InDelta(t, 1, testutil.ToFloat64(sink.runsStarted), 0)
	require.InDelta(t, 1, testutil.ToFloat64(sink.runsCompleted.WithLabelValues("success")), 0)
	require.InDelta(t, 0, testutil.ToFloat64(sink.runsRunning), 0)
	require.InDelta(t, 1, testutil.ToFloat64(sink.books.WithLabelValues("done")), 0)
	require.InDelta(t, 1, testutil.ToFloat64(sink.books.WithLabelValues("failed")), 0)
	require.InDelta(t, 1, testutil.ToFloat64(sink.books.WithLabelValues("exhausted")), 0)
	require.InDelta(t, 1, testutil.ToFloat64(sink.seriesPages), 0)
	require.InDelta(t, 1, testutil.ToFloat64(sink.retryRounds), 0)
	require.InDelta(t, 2, testutil.ToFloat64(sink.backoffDelay), 0)

	_, err = NewPrometheusSink(reg)
	require.Error(t, err, "duplicate registration must fail")
}

func TestLogSinkMessages(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.DebugLevel)
	sink := NewLogSink(zap.New(core))
	require.NoError(t, sink.Consume(context.Background(), runEvents(uuid.New())))

	require.Equal(t, 1, logs.FilterMessage("book collected").Len())
	require.Equal(t, 1, logs.FilterMessage("book retry budget exhausted").Len())
	exhausted := logs.FilterMessage("book retry budget exhausted").All()[0]
	require.Equal(t, "B000000002", exhausted.ContextMap()["asin"])
	require.Equal(t, 1, logs.FilterMessage("collection finished").Len())
}
