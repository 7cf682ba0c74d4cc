package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/sirup-adspend/internal/config"
	"github.com/JakeFAU/sirup-adspend/internal/dispatcher"
	"github.com/JakeFAU/sirup-adspend/internal/export"
	"github.com/JakeFAU/sirup-adspend/internal/hash/sha256"
	"github.com/JakeFAU/sirup-adspend/internal/metrics"
	"github.com/JakeFAU/sirup-adspend/internal/procurement"
	"github.com/JakeFAU/sirup-adspend/internal/storage/memory"
	"github.com/JakeFAU/sirup-adspend/internal/worker"
)

const enqueueTimeout = 5 * time.Second

// ArtifactStore caches rendered result files.
type ArtifactStore interface {
	PutObject(ctx context.Context, path, contentType string, data io.Reader) (string, error)
	GetObject(ctx context.Context, path string) (memory.Artifact, bool)
}

// Server wires HTTP handlers to the dispatcher and stores.
type Server struct {
	router     chi.Router
	store      procurement.RunStore
	dispatcher *dispatcher.Dispatcher
	registry   *worker.Registry
	artifacts  ArtifactStore
	idGen      procurement.IDGenerator
	clock      procurement.Clock
	cfg        config.Config
	logger     *zap.Logger
	runs       *RunHandler
	hasher     *sha256.Hasher
}

// NewServer constructs a Server with middleware and routes.
func NewServer(
	store procurement.RunStore,
	dispatcher *dispatcher.Dispatcher,
	registry *worker.Registry,
	artifacts ArtifactStore,
	idGen procurement.IDGenerator,
	clock procurement.Clock,
	cfg config.Config,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if artifacts == nil {
		artifacts = memory.NewArtifactStore()
	}
	metrics.Init()
	s := &Server{
		store:      store,
		dispatcher: dispatcher,
		registry:   registry,
		artifacts:  artifacts,
		idGen:      idGen,
		clock:      clock,
		cfg:        cfg,
		logger:     logger,
		runs:       NewRunHandler(store, logger),
		hasher:     sha256.New(),
	}
	timeout := time.Duration(cfg.Server.RequestTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(metrics.Middleware)
	r.Use(timeoutMiddleware(timeout))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		if cfg.Auth.Enabled {
			r.Use(apiKeyMiddleware(cfg.Auth.APIKey))
		}
		r.Route("/runs", func(r chi.Router) {
			r.Post("/", s.submitRun)
			r.Get("/", s.runs.ListRuns)
			r.Route("/{run_id}", func(r chi.Router) {
				r.Get("/", s.runs.GetRun)
				r.Get("/units", s.runs.ListRunUnits)
				r.Get("/result", s.getRunResult)
				r.Post("/cancel", s.cancelRun)
			})
		})
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	if s.dispatcher == nil || s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "not ready")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ready",
		"workers": s.dispatcher.Workers(),
		"pending": s.dispatcher.Pending(),
	})
}

func (s *Server) submitRun(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON")
			return
		}
	}
	params := s.toRunParams(req)
	if err := params.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	runID, err := s.enqueueRun(r.Context(), params)
	if err != nil {
		s.logger.Error("enqueue run failed", zap.Error(err))
		status := http.StatusInternalServerError
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, procurement.ErrQueueClosed) {
			status = http.StatusServiceUnavailable
		}
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{
		"run_id": runID,
		"status": string(procurement.RunStatusQueued),
	})
}

func (s *Server) getRunResult(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "run_id")
	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	run, err := s.store.GetRun(r.Context(), runID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if !run.Status.Terminal() {
		writeError(w, http.StatusConflict, fmt.Sprintf("run is %s", run.Status))
		return
	}

	key := fmt.Sprintf("%s/result.%s", runID, format)
	artifact, ok := s.artifacts.GetObject(r.Context(), key)
	if !ok {
		result, err := s.store.GetResult(r.Context(), runID)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		var buf bytes.Buffer
		if err := export.Write(&buf, format, result.Records); err != nil {
			s.logger.Error("render result failed", zap.String("run_id", runID), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to render result")
			return
		}
		artifact = memory.Artifact{ContentType: format.ContentType(), Data: buf.Bytes()}
		if _, err := s.artifacts.PutObject(r.Context(), key, artifact.ContentType, bytes.NewReader(artifact.Data)); err != nil {
			s.logger.Warn("cache result failed", zap.String("run_id", runID), zap.Error(err))
		}
	}

	etag := s.hasher.ETag(artifact.Data)
	w.Header().Set("ETag", etag)
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("Content-Type", artifact.ContentType)
	if format != export.FormatJSON {
		name := export.FileName(run.Params.OrgGroupID, run.Params.FiscalYear, format)
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	}
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(artifact.Data); err != nil {
		s.logger.Warn("write result failed", zap.Error(err))
	}
}

func (s *Server) cancelRun(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "run_id")
	run, err := s.store.GetRun(r.Context(), runID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if run.Status.Terminal() {
		writeError(w, http.StatusConflict, fmt.Sprintf("run already %s", run.Status))
		return
	}
	if s.registry != nil && s.registry.Cancel(runID) {
		writeJSON(w, http.StatusAccepted, map[string]string{"run_id": runID, "status": "canceling"})
		return
	}
	if err := s.store.UpdateRunStatus(
		r.Context(),
		runID,
		procurement.RunStatusCanceled,
		"canceled via API",
	); err != nil {
		writeStoreError(w, err)
		return
	}
	// A worker may have claimed the run between the checks above.
	if s.registry != nil {
		s.registry.Cancel(runID)
	}
	writeJSON(w, http.StatusOK, map[string]string{"run_id": runID, "status": string(procurement.RunStatusCanceled)})
}

func (s *Server) enqueueRun(ctx context.Context, params procurement.RunParams) (string, error) {
	runID, err := s.idGen.NewID()
	if err != nil {
		return "", fmt.Errorf("generate run id: %w", err)
	}
	now := s.clock.Now()
	run := procurement.Run{
		ID:        runID,
		Status:    procurement.RunStatusQueued,
		Submitted: now,
		Params:    params,
	}
	if err := s.store.CreateRun(ctx, run); err != nil {
		return "", fmt.Errorf("create run: %w", err)
	}
	queueCtx, cancel := context.WithTimeout(ctx, enqueueTimeout)
	defer cancel()
	item := procurement.QueueItem{
		RunID:     runID,
		Params:    params,
		Submitted: now.Unix(),
	}
	if err := s.dispatcher.Submit(queueCtx, item); err != nil {
		if uerr := s.store.UpdateRunStatus(ctx, runID, procurement.RunStatusFailed, err.Error()); uerr != nil {
			s.logger.Warn("mark unqueued run failed", zap.String("run_id", runID), zap.Error(uerr))
		}
		return "", fmt.Errorf("enqueue run: %w", err)
	}
	return runID, nil
}

func (s *Server) toRunParams(req runRequest) procurement.RunParams {
	defaults := s.cfg.RunParams()
	return procurement.RunParams{
		OrgGroupID:        stringOrDefault(req.OrgGroupID, defaults.OrgGroupID),
		FiscalYear:        stringOrDefault(req.FiscalYear, defaults.FiscalYear),
		UnitConcurrency:   valueOrDefault(req.UnitConcurrency, defaults.UnitConcurrency),
		DetailConcurrency: valueOrDefault(req.DetailConcurrency, defaults.DetailConcurrency),
	}
}

type runRequest struct {
	OrgGroupID        string `json:"org_group_id"`
	FiscalYear        string `json:"fiscal_year"`
	UnitConcurrency   *int   `json:"unit_concurrency"`
	DetailConcurrency *int   `json:"detail_concurrency"`
}

func valueOrDefault[T any](ptr *T, def T) T {
	if ptr == nil {
		return def
	}
	return *ptr
}

func stringOrDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func loggingMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			reqID, _ := r.Context().Value(requestIDKey{}).(string)
			logger.Info("request completed",
				zap.String("request_id", reqID),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.status),
				zap.Int64("duration_ms", time.Since(start).Milliseconds()),
			)
		})
	}
}

func recoverMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("panic recovered", zap.Any("error", rec), zap.String("path", r.URL.Path))
					writeError(w, http.StatusInternalServerError, "internal server error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	if err != nil {
		return n, fmt.Errorf("write response: %w", err)
	}
	return n, nil
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := rw.ResponseWriter.(http.Hijacker); ok {
		conn, buf, err := h.Hijack()
		if err != nil {
			return nil, nil, fmt.Errorf("hijack connection: %w", err)
		}
		return conn, buf, nil
	}
	return nil, nil, errors.New("hijacker not supported")
}

type requestIDKey struct{}

func apiKeyMiddleware(expected string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("X-API-Key")
			if key == "" {
				key = r.URL.Query().Get("api_key")
			}
			if key != expected {
				writeError(w, http.StatusForbidden, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
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

func writeStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, procurement.ErrRunNotFound) {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	if errors.Is(err, procurement.ErrRunTerminal) {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeError(w, http.StatusInternalServerError, err.Error())
}
