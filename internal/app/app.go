// Package app initializes and holds long-lived application services, acting
// as the dependency injection container shared by the CLI commands.
package app

import (
	"context"
	"errors"
	"fmt"

	gpubsub "cloud.google.com/go/pubsub"
	gstorage "cloud.google.com/go/storage"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/JakeFAU/series-collector/internal/catalog"
	"github.com/JakeFAU/series-collector/internal/clock/system"
	"github.com/JakeFAU/series-collector/internal/config"
	collyfetcher "github.com/JakeFAU/series-collector/internal/fetcher/colly"
	"github.com/JakeFAU/series-collector/internal/hash/sha256"
	idgen "github.com/JakeFAU/series-collector/internal/id/uuid"
	"github.com/JakeFAU/series-collector/internal/identity"
	"github.com/JakeFAU/series-collector/internal/metrics"
	"github.com/JakeFAU/series-collector/internal/pipeline"
	"github.com/JakeFAU/series-collector/internal/policy/ratelimit"
	"github.com/JakeFAU/series-collector/internal/progress"
	"github.com/JakeFAU/series-collector/internal/progress/sinks"
	"github.com/JakeFAU/series-collector/internal/publisher/pubsub"
	"github.com/JakeFAU/series-collector/internal/report"
	"github.com/JakeFAU/series-collector/internal/resolver"
	"github.com/JakeFAU/series-collector/internal/scheduler"
	"github.com/JakeFAU/series-collector/internal/series"
	"github.com/JakeFAU/series-collector/internal/storage/gcs"
	"github.com/JakeFAU/series-collector/internal/storage/local"
	"github.com/JakeFAU/series-collector/internal/storage/memory"
)

// Option overrides a collaborator, mainly for tests.
type Option func(*options)

type options struct {
	source   catalog.PageSource
	clock    catalog.Clock
	identity catalog.IdentityPolicy
	google   []option.ClientOption
}

// WithPageSource replaces the colly page source. Rate limiting and fetch
// metrics still wrap it.
func WithPageSource(src catalog.PageSource) Option {
	return func(o *options) { o.source = src }
}

// WithClock replaces the system clock.
func WithClock(c catalog.Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithIdentity replaces the random User-Agent policy.
func WithIdentity(p catalog.IdentityPolicy) Option {
	return func(o *options) { o.identity = p }
}

// WithGoogleOptions passes client options to the Cloud Storage and Pub/Sub
// clients.
func WithGoogleOptions(opts ...option.ClientOption) Option {
	return func(o *options) { o.google = append(o.google, opts...) }
}

// App holds all the shared, long-lived services for the application.
type App struct {
	cfg      config.Config
	logger   *zap.Logger
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	runs     *memory.RunStore
	hub      *progress.Hub
	pipeline *pipeline.Pipeline
	ids      *idgen.Generator

	closers []func() error
}

// New creates and initializes every service from cfg. It fails fast if a
// required service cannot be built.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger, opts ...Option) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	a := &App{
		cfg:      cfg,
		logger:   logger,
		registry: prometheus.NewRegistry(),
		runs:     memory.NewRunStore(),
		ids:      idgen.New(),
	}
	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	a.metrics = metrics.New(a.registry)

	promSink, err := sinks.NewPrometheusSink(a.registry)
	if err != nil {
		return nil, fmt.Errorf("init progress metrics: %w", err)
	}
	a.hub = progress.NewHub(progress.Config{Logger: logger.Named("progress")},
		sinks.NewLogSink(logger.Named("progress")),
		promSink,
		sinks.NewStoreSink(a.runs),
	)

	exporter, err := a.buildExporter(ctx, o.google)
	if err != nil {
		_ = a.Close(ctx)
		return nil, err
	}

	source := o.source
	if source == nil {
		source = collyfetcher.New(collyfetcher.Config{
			UserAgent: cfg.Fetch.UserAgents[0],
			Timeout:   cfg.Fetch.Timeout,
		})
	}
	limiter := ratelimit.New(ratelimit.Config{
		DefaultRPS:   cfg.Fetch.RateLimitRPS,
		DefaultBurst: cfg.Fetch.RateLimitBurst,
		OnDelay:      a.metrics.ObserveRateLimitDelay,
	}, logger.Named("ratelimit"))
	source = ratelimit.Wrap(a.metrics.Instrument(source), limiter)

	clock := o.clock
	if clock == nil {
		clock = system.New()
	}
	ident := o.identity
	if ident == nil {
		ident = identity.NewRandom(cfg.Fetch.UserAgents)
	}

	similarity, err := resolver.ParseSimilarity(cfg.Resolver.Similarity)
	if err != nil {
		_ = a.Close(ctx)
		return nil, fmt.Errorf("init resolver: %w", err)
	}
	a.pipeline, err = pipeline.New(pipeline.Config{
		BaseURL: cfg.Catalog.BaseURL,
		Resolver: resolver.Config{
			BaseURL:          cfg.Catalog.BaseURL,
			MinSimilarity:    cfg.Resolver.MinSimilarity,
			PreferenceWindow: cfg.Resolver.PreferenceWindow,
			PreferredMarker:  cfg.Resolver.PreferredMarker,
			Similarity:       similarity,
		},
		Series: series.Config{
			PageSize:  cfg.Series.PageSize,
			PageDelay: cfg.Series.PageDelay,
		},
		Scheduler: scheduler.Config{
			MaxRetries: cfg.Scheduler.MaxRetries,
			BaseDelay:  cfg.Scheduler.BaseDelay,
			MaxDelay:   cfg.Scheduler.MaxDelay,
		},
	}, pipeline.Deps{
		Source:   source,
		Identity: ident,
		Clock:    clock,
		Exporter: exporter,
		Events:   a.hub,
		Logger:   logger.Named("pipeline"),
	})
	if err != nil {
		_ = a.Close(ctx)
		return nil, fmt.Errorf("init pipeline: %w", err)
	}
	logger.Info("application services initialized",
		zap.String("base_url", cfg.Catalog.BaseURL),
		zap.String("format", cfg.Output.Format),
	)
	return a, nil
}

func (a *App) buildExporter(ctx context.Context, google []option.ClientOption) (*report.Exporter, error) {
	renderer, err := report.NewRenderer(a.cfg.Output.Format)
	if err != nil {
		return nil, fmt.Errorf("init renderer: %w", err)
	}

	var store report.BlobStore
	if a.cfg.Output.GCSBucket != "" {
		client, err := gstorage.NewClient(ctx, google...)
		if err != nil {
			return nil, fmt.Errorf("init storage client: %w", err)
		}
		a.closers = append(a.closers, client.Close)
		store, err = gcs.New(client, gcs.Config{Bucket: a.cfg.Output.GCSBucket, Prefix: a.cfg.Output.Prefix})
		if err != nil {
			return nil, fmt.Errorf("init gcs store: %w", err)
		}
		a.logger.Info("reports go to cloud storage", zap.String("bucket", a.cfg.Output.GCSBucket))
	} else {
		store, err = local.New(local.Config{Dir: a.cfg.Output.Dir})
		if err != nil {
			return nil, fmt.Errorf("init local store: %w", err)
		}
		a.logger.Info("reports go to local directory", zap.String("dir", a.cfg.Output.Dir))
	}

	var notifier report.Notifier
	if a.cfg.PubSub.ProjectID != "" {
		client, err := gpubsub.NewClient(ctx, a.cfg.PubSub.ProjectID, google...)
		if err != nil {
			return nil, fmt.Errorf("init pubsub client: %w", err)
		}
		a.closers = append(a.closers, client.Close)
		pub, err := pubsub.New(client, a.cfg.PubSub.TopicName, map[string]string{"source": "series-collector"})
		if err != nil {
			return nil, fmt.Errorf("init publisher: %w", err)
		}
		// Stop flushes the topic before the client closes.
		a.closers = append(a.closers, func() error { pub.Stop(); return nil })
		notifier = pub
		a.logger.Info("export notifications enabled", zap.String("topic", a.cfg.PubSub.TopicName))
	}

	exporter, err := report.NewExporter(store, renderer, notifier, a.logger.Named("report"),
		report.WithHasher(sha256.New()))
	if err != nil {
		return nil, fmt.Errorf("init exporter: %w", err)
	}
	return exporter, nil
}

// Config returns the loaded configuration.
func (a *App) Config() config.Config { return a.cfg }

// Logger returns the shared logger.
func (a *App) Logger() *zap.Logger { return a.logger }

// Registry returns the Prometheus registry backing /metrics.
func (a *App) Registry() *prometheus.Registry { return a.registry }

// Metrics returns the fetch and HTTP collectors.
func (a *App) Metrics() *metrics.Metrics { return a.metrics }

// Runs returns the run registry fed by the progress hub.
func (a *App) Runs() *memory.RunStore { return a.runs }

// Pipeline returns the collection pipeline.
func (a *App) Pipeline() *pipeline.Pipeline { return a.pipeline }

// Collect registers a run and executes it in the foreground.
func (a *App) Collect(ctx context.Context, query string) (pipeline.Result, error) {
	id, err := a.ids.NewRunID()
	if err != nil {
		return pipeline.Result{}, err
	}
	if err := a.runs.CreateRun(ctx, catalog.Run{ID: id.String(), Query: query}); err != nil {
		return pipeline.Result{}, fmt.Errorf("register run: %w", err)
	}
	return a.pipeline.RunWithID(ctx, id, query)
}

// NewRunID exposes the run ID generator to the API server.
func (a *App) NewRunID() (uuid.UUID, error) {
	return a.ids.NewRunID()
}

// Close flushes progress sinks and releases cloud clients. Closers run in
// reverse order of creation.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.hub != nil {
		if err := a.hub.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close progress hub: %w", err))
		}
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
