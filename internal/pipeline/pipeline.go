// Package pipeline runs one collection end to end: resolve the query, crawl
// the series, fetch every book with retries, assemble and export the report.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/series-collector/internal/book"
	"github.com/JakeFAU/series-collector/internal/catalog"
	"github.com/JakeFAU/series-collector/internal/progress"
	"github.com/JakeFAU/series-collector/internal/report"
	"github.com/JakeFAU/series-collector/internal/resolver"
	"github.com/JakeFAU/series-collector/internal/scheduler"
	"github.com/JakeFAU/series-collector/internal/series"
)

// Exporter persists an assembled report. report.Exporter satisfies it.
type Exporter interface {
	Export(ctx context.Context, m report.Model) (string, error)
}

// Config holds the per-component settings.
type Config struct {
	BaseURL   string
	Resolver  resolver.Config
	Series    series.Config
	Scheduler scheduler.Config
}

// Deps are the collaborators shared by every run.
type Deps struct {
	Source   catalog.PageSource
	Identity catalog.IdentityPolicy
	Clock    catalog.Clock
	Exporter Exporter
	// Events receives progress for every run; nil discards.
	Events progress.Emitter
	Logger *zap.Logger
}

// Result summarizes a finished run.
type Result struct {
	RunID     string
	Model     report.Model
	Location  string
	Failed    []string
	Cancelled bool
}

// Pipeline wires the collection stages together.
type Pipeline struct {
	cfg      Config
	deps     Deps
	resolver *resolver.Resolver
	books    *book.Fetcher
}

// New validates deps and builds a Pipeline.
func New(cfg Config, deps Deps) (*Pipeline, error) {
	switch {
	case deps.Source == nil:
		return nil, errors.New("page source is required")
	case deps.Identity == nil:
		return nil, errors.New("identity policy is required")
	case deps.Clock == nil:
		return nil, errors.New("clock is required")
	case deps.Exporter == nil:
		return nil, errors.New("exporter is required")
	case strings.TrimSpace(cfg.BaseURL) == "":
		return nil, errors.New("base url is required")
	}
	if deps.Events == nil {
		deps.Events = progress.Discard
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if cfg.Resolver.BaseURL == "" {
		cfg.Resolver.BaseURL = cfg.BaseURL
	}
	return &Pipeline{
		cfg:      cfg,
		deps:     deps,
		resolver: resolver.New(deps.Source, deps.Identity, cfg.Resolver, deps.Logger.Named("resolver")),
		books:    book.New(deps.Source, cfg.BaseURL, deps.Logger.Named("book")),
	}, nil
}

// Run collects query under a fresh run ID.
func (p *Pipeline) Run(ctx context.Context, query string) (Result, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return Result{}, fmt.Errorf("generate run id: %w", err)
	}
	return p.RunWithID(ctx, id, query)
}

// RunWithID collects query, tagging every progress event with runID.
// Resolution and first-page failures abort the run. Per-book failures never
// do: the report is exported with whatever was collected, including after
// cancellation during the fetch phase.
func (p *Pipeline) RunWithID(ctx context.Context, runID uuid.UUID, query string) (Result, error) {
	started := p.deps.Clock.Now()
	events := progress.NewScoped(p.deps.Events, progress.UUIDToBytes(runID), p.deps.Clock.Now)
	logger := p.deps.Logger.With(zap.String("run_id", runID.String()))
	res := Result{RunID: runID.String()}

	fail := func(err error) (Result, error) {
		stage := progress.StageRunError
		if errors.Is(err, context.Canceled) {
			stage = progress.StageRunCanceled
		}
		events.Emit(progress.Event{Stage: stage, Note: err.Error(), Dur: p.deps.Clock.Now().Sub(started)})
		logger.Warn("collection aborted", zap.String("query", query), zap.Error(err))
		return res, err
	}

	events.Emit(progress.Event{Stage: progress.StageRunStart, Note: query})
	logger.Info("collection started", zap.String("query", query))

	seriesURL, err := p.resolver.Resolve(ctx, query)
	if err != nil {
		return fail(fmt.Errorf("resolve %q: %w", query, err))
	}
	events.Emit(progress.Event{Stage: progress.StageResolved, URL: seriesURL})

	crawler := series.New(p.deps.Source, p.deps.Identity, p.deps.Clock, p.cfg.Series, events, logger.Named("series"))
	info, err := crawler.Crawl(ctx, seriesURL)
	if err != nil {
		return fail(fmt.Errorf("crawl %s: %w", seriesURL, err))
	}

	var seriesInfo *catalog.SeriesInfo
	ids := info.BookIDs
	if len(ids) > 0 {
		seriesInfo = &info
	} else {
		id, ok := catalog.IdentifierFromURL(seriesURL)
		if !ok {
			return fail(fmt.Errorf("%s has no books and no book identifier: %w", seriesURL, catalog.ErrNotFound))
		}
		logger.Info("no series listing, collecting single book", zap.String("asin", id))
		ids = []string{id}
	}
	events.Emit(progress.Event{Stage: progress.StageSeriesDone, URL: seriesURL, Total: len(ids), Note: info.Title})

	sched := scheduler.New(p.books, p.deps.Identity, p.deps.Clock, p.cfg.Scheduler, events, logger.Named("scheduler"))
	outcome := sched.Run(ctx, ids)

	model := report.Assemble(seriesInfo, outcome.Slots, p.cfg.BaseURL)
	model.RunID = res.RunID
	model.Cancelled = outcome.Cancelled
	res.Model = model
	res.Failed = model.Failed
	res.Cancelled = outcome.Cancelled
	if model.SingleBook && model.Empty() {
		return fail(fmt.Errorf("book %s could not be parsed: %w", ids[0], catalog.ErrNotFound))
	}

	// Export outlives cancellation so a canceled run still leaves its
	// partial report behind.
	location, err := p.deps.Exporter.Export(context.WithoutCancel(ctx), model)
	if err != nil {
		return fail(fmt.Errorf("export report: %w", err))
	}
	res.Location = location
	events.Emit(progress.Event{Stage: progress.StageExported, URL: location, Resolved: len(model.Books), Total: len(ids)})

	final := progress.StageRunDone
	if outcome.Cancelled {
		final = progress.StageRunCanceled
	}
	events.Emit(progress.Event{
		Stage:    final,
		Resolved: outcome.Resolved(),
		Total:    len(ids),
		Dur:      p.deps.Clock.Now().Sub(started),
	})
	logger.Info("collection finished",
		zap.String("location", location),
		zap.Int("resolved", outcome.Resolved()),
		zap.Int("total", len(ids)),
		zap.Strings("failed", res.Failed),
		zap.Bool("cancelled", outcome.Cancelled),
		zap.Duration("elapsed", p.deps.Clock.Now().Sub(started)),
	)
	return res, nil
}
