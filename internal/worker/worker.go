// Package worker executes queued scrape runs.
package worker

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/sirup-adspend/internal/metrics"
	"github.com/JakeFAU/sirup-adspend/internal/procurement"
)

// Runner executes one scrape run under a caller-chosen ID.
type Runner interface {
	RunWithID(ctx context.Context, runID string, params procurement.RunParams) (procurement.RunResult, error)
}

// Worker consumes queue items and drives the orchestrator.
type Worker struct {
	queue    procurement.Queue
	store    procurement.RunStore
	runner   Runner
	registry *Registry
	logger   *zap.Logger
}

// New constructs a Worker. A nil registry disables cancellation of
// in-flight runs.
func New(
	queue procurement.Queue,
	store procurement.RunStore,
	runner Runner,
	registry *Registry,
	logger *zap.Logger,
) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if registry == nil {
		registry = NewRegistry()
	}
	return &Worker{
		queue:    queue,
		store:    store,
		runner:   runner,
		registry: registry,
		logger:   logger,
	}
}

// Run blocks, consuming queue items until the context finishes or the
// queue is closed.
func (w *Worker) Run(ctx context.Context) {
	for {
		item, err := w.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.logger.Error("queue dequeue failed", zap.Error(err))
			if errors.Is(err, procurement.ErrQueueClosed) {
				return
			}
			continue
		}
		w.logger.Debug("dequeued run", zap.String("run_id", item.RunID))
		w.processRun(ctx, item)
	}
}

func (w *Worker) processRun(ctx context.Context, item procurement.QueueItem) {
	logger := w.logger.With(zap.String("run_id", item.RunID))

	run, err := w.store.GetRun(ctx, item.RunID)
	if err != nil {
		logger.Error("load run failed", zap.Error(err))
		return
	}
	if run.Status.Terminal() {
		logger.Info("skipping run", zap.String("status", string(run.Status)))
		return
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	w.registry.register(item.RunID, cancel)
	defer w.registry.remove(item.RunID)

	// The run may have been canceled while this worker was picking it up.
	if err := w.store.UpdateRunStatus(ctx, item.RunID, procurement.RunStatusRunning, ""); err != nil {
		if errors.Is(err, procurement.ErrRunTerminal) {
			logger.Info("skipping run", zap.Error(err))
			return
		}
		logger.Error("update run status failed", zap.Error(err))
		return
	}
	metrics.IncActiveRuns()
	defer metrics.DecActiveRuns()

	result, runErr := w.runner.RunWithID(runCtx, item.RunID, item.Params)

	// Bookkeeping must land even when shutdown canceled the run.
	storeCtx := context.WithoutCancel(ctx)
	if err := w.store.CompleteRun(storeCtx, item.RunID, result); err != nil {
		logger.Error("complete run failed", zap.Error(err))
	}

	status, errText := deriveFinalStatus(runErr)
	if err := w.store.UpdateRunStatus(storeCtx, item.RunID, status, errText); err != nil {
		if !errors.Is(err, procurement.ErrRunTerminal) {
			logger.Error("final run status update failed", zap.Error(err))
		}
		if current, gerr := w.store.GetRun(storeCtx, item.RunID); gerr == nil {
			status = current.Status
		}
	}
	metrics.ObserveRun(string(status))
	logger.Info("run settled",
		zap.String("status", string(status)),
		zap.Int("records", len(result.Records)),
		zap.Duration("elapsed", result.Elapsed))
}

func deriveFinalStatus(err error) (procurement.RunStatus, string) {
	switch {
	case err == nil:
		return procurement.RunStatusSucceeded, ""
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return procurement.RunStatusCanceled, err.Error()
	default:
		return procurement.RunStatusFailed, fmt.Sprint(err)
	}
}
