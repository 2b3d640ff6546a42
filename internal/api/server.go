package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/JakeFAU/series-collector/internal/catalog"
	"github.com/JakeFAU/series-collector/internal/pipeline"
	"github.com/JakeFAU/series-collector/internal/storage/memory"
)

// Runner executes one collection. pipeline.Pipeline satisfies it.
type Runner interface {
	RunWithID(ctx context.Context, runID uuid.UUID, query string) (pipeline.Result, error)
}

// Options carries the optional collaborators of a Server.
type Options struct {
	// Gatherer backs /metrics; nil uses the default registry.
	Gatherer prometheus.Gatherer
	// Middleware is applied after the built-in request middleware, e.g.
	// metrics.Metrics.Middleware.
	Middleware []func(http.Handler) http.Handler
	// NewID generates run IDs; nil uses uuid.NewV7.
	NewID  func() (uuid.UUID, error)
	Logger *zap.Logger
}

// Server wires HTTP handlers to the pipeline and the run registry.
type Server struct {
	router chi.Router
	runner Runner
	runs   *memory.RunStore
	newID  func() (uuid.UUID, error)
	logger *zap.Logger

	mu     sync.Mutex
	active string
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer constructs a Server with middleware and routes.
func NewServer(runner Runner, runs *memory.RunStore, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewV7
	}
	s := &Server{
		runner: runner,
		runs:   runs,
		newID:  opts.NewID,
		logger: opts.Logger,
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(s.logger))
	r.Use(recoverMiddleware(s.logger))
	r.Use(timeoutMiddleware(requestTimeout))
	for _, mw := range opts.Middleware {
		r.Use(mw)
	}

	r.Get("/healthz", s.healthz)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))

	r.Route("/v1/runs", func(r chi.Router) {
		r.Post("/", s.startRun)
		r.Get("/", s.listRuns)
		r.Route("/{run_id}", func(r chi.Router) {
			r.Get("/", s.getRun)
			r.Post("/cancel", s.cancelRun)
		})
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Shutdown cancels the active run and waits for it to export and record its
// final state, or for ctx to end.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait for active run: %w", ctx.Err())
	}
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type startRunRequest struct {
	Query string `json:"query"`
}

func (s *Server) startRun(w http.ResponseWriter, r *http.Request) {
	var req startRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	query := strings.TrimSpace(req.Query)
	if query == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active != "" {
		writeJSON(w, http.StatusConflict, map[string]string{
			"error":  "a run is already active",
			"run_id": s.active,
		})
		return
	}
	id, err := s.newID()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "generate run id")
		return
	}
	runID := id.String()
	if err := s.runs.CreateRun(r.Context(), catalog.Run{ID: runID, Query: query}); err != nil {
		s.logger.Error("create run failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "create run")
		return
	}

	// The run outlives the request.
	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	s.active = runID
	s.cancel = cancel
	s.wg.Add(1)
	go s.execute(ctx, cancel, id, query)

	writeJSON(w, http.StatusAccepted, map[string]string{"run_id": runID})
}

func (s *Server) execute(ctx context.Context, cancel context.CancelFunc, id uuid.UUID, query string) {
	defer s.wg.Done()
	defer cancel()
	runID := id.String()
	logger := s.logger.With(zap.String("run_id", runID))

	res, err := s.runner.RunWithID(ctx, id, query)

	// Record the final state directly; progress sinks are asynchronous.
	updateErr := s.runs.UpdateRun(context.Background(), runID, func(run *catalog.Run) {
		run.Failed = append([]string(nil), res.Failed...)
		if res.Location != "" {
			run.Location = res.Location
		}
		if n := len(res.Model.Books) + len(res.Failed); n > 0 {
			run.Total = n
			run.Resolved = resolved(res)
		}
		switch {
		case err != nil && errors.Is(err, context.Canceled):
			run.Status = catalog.RunStatusCanceled
			run.ErrorText = err.Error()
		case err != nil:
			run.Status = catalog.RunStatusFailed
			run.ErrorText = err.Error()
		case res.Cancelled:
			run.Status = catalog.RunStatusCanceled
		default:
			run.Status = catalog.RunStatusSucceeded
		}
	})
	if updateErr != nil {
		logger.Error("record run result failed", zap.Error(updateErr))
	}
	if err != nil {
		logger.Warn("run failed", zap.Error(err))
	}

	s.mu.Lock()
	if s.active == runID {
		s.active = ""
		s.cancel = nil
	}
	s.mu.Unlock()
}

func resolved(res pipeline.Result) int {
	n := 0
	for _, b := range res.Model.Books {
		if !b.Partial {
			n++
		}
	}
	return n
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	runs := s.runs.ListRuns(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func (s *Server) getRun(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "run_id")
	run, err := s.runs.GetRun(r.Context(), runID)
	if err != nil {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *Server) cancelRun(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "run_id")
	run, err := s.runs.GetRun(r.Context(), runID)
	if err != nil {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active != runID || s.cancel == nil {
		writeJSON(w, http.StatusConflict, map[string]string{
			"error":  "run is not active",
			"run_id": runID,
			"status": string(run.Status),
		})
		return
	}
	s.cancel()
	s.logger.Info("run cancel requested", zap.String("run_id", runID))
	writeJSON(w, http.StatusAccepted, map[string]string{"run_id": runID, "status": "canceling"})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
