package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/sirup-adspend/internal/api"
	"github.com/JakeFAU/sirup-adspend/internal/clock/system"
	"github.com/JakeFAU/sirup-adspend/internal/dispatcher"
	ids "github.com/JakeFAU/sirup-adspend/internal/id/uuid"
	"github.com/JakeFAU/sirup-adspend/internal/progress"
	"github.com/JakeFAU/sirup-adspend/internal/progress/sinks"
	queueMemory "github.com/JakeFAU/sirup-adspend/internal/queue/memory"
	"github.com/JakeFAU/sirup-adspend/internal/storage/local"
	"github.com/JakeFAU/sirup-adspend/internal/storage/memory"
	"github.com/JakeFAU/sirup-adspend/internal/worker"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the run API",
		Long: `Starts the HTTP API. Runs submitted to POST /v1/runs are queued and
executed by a fixed pool of run workers; their status, per-unit progress
and results stay available until the process exits.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := envFrom(cmd.Context())
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), e)
		},
	}
	fs := cmd.Flags()
	fs.Int("port", 0, "listen port (PORT env also honored)")
	fs.Int("run-workers", 0, "runs executed concurrently")
	bindFlag(fs, "port", "server.port")
	bindFlag(fs, "run-workers", "scrape.run_workers")
	return cmd
}

func runServe(ctx context.Context, e *env) error {
	cfg, logger := e.cfg, e.logger
	ctx, stop := context.WithCancel(ctx)
	defer stop()

	store := memory.NewRunStore()
	queue := queueMemory.NewQueue(cfg.Scrape.QueueDepth)

	promSink, err := sinks.NewPrometheusSink(prometheus.DefaultRegisterer)
	if err != nil {
		return fmt.Errorf("progress metrics: %w", err)
	}
	hub := progress.NewHub(
		progress.Config{Logger: logger.Named("progress")},
		sinks.NewLogSink(logger.Named("events")),
		sinks.NewStoreSink(store, logger.Named("store")),
		promSink,
	)

	orch, err := newOrchestrator(cfg, logger, hub)
	if err != nil {
		return err
	}
	registry := worker.NewRegistry()
	workers := make([]*worker.Worker, 0, cfg.Scrape.RunWorkers)
	for i := 0; i < cfg.Scrape.RunWorkers; i++ {
		workers = append(workers, worker.New(
			queue,
			store,
			orch,
			registry,
			logger.Named("worker").With(zap.Int("index", i)),
		))
	}
	dispatch := dispatcher.New(queue, workers)

	artifacts, err := newArtifactStore(cfg.Export.ArtifactDir)
	if err != nil {
		return err
	}
	apiServer := api.NewServer(
		store,
		dispatch,
		registry,
		artifacts,
		ids.New(),
		system.New(),
		cfg,
		logger.Named("api"),
	)

	port := cfg.Server.Port
	if p, err := strconv.Atoi(os.Getenv("PORT")); err == nil && p > 0 {
		port = p
	}
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	dispatchDone := make(chan struct{})
	go func() {
		defer close(dispatchDone)
		logger.Info("dispatcher started", zap.Int("workers", dispatch.Workers()))
		dispatch.Run(ctx)
	}()

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("http server started", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
			stop()
		}
		close(serveErr)
	}()

	<-ctx.Done()
	logger.Info("shutdown initiated")

	shutdownTimeout := time.Duration(cfg.Server.ShutdownTimeoutSeconds) * time.Second
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	queue.Close()
	select {
	case <-dispatchDone:
	case <-shutdownCtx.Done():
		logger.Warn("run workers still busy at shutdown deadline")
	}
	if err := hub.Close(shutdownCtx); err != nil {
		logger.Warn("progress hub close", zap.Error(err))
	}
	logger.Info("shutdown complete")

	if err := <-serveErr; err != nil {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

func newArtifactStore(dir string) (api.ArtifactStore, error) {
	if dir == "" {
		return memory.NewArtifactStore(), nil
	}
	store, err := local.New(local.Config{BaseDir: dir})
	if err != nil {
		return nil, fmt.Errorf("artifact store: %w", err)
	}
	return store, nil
}
