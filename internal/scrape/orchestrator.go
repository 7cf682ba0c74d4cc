package scrape

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/sirup-adspend/internal/clock/system"
	ids "github.com/JakeFAU/sirup-adspend/internal/id/uuid"
	"github.com/JakeFAU/sirup-adspend/internal/procurement"
	"github.com/JakeFAU/sirup-adspend/internal/progress"
)

// Orchestrator lists a KLDI's units and processes them with a bounded pool.
type Orchestrator struct {
	units     procurement.UnitLister
	processor Processor
	emitter   progress.Emitter
	clock     procurement.Clock
	ids       procurement.IDGenerator
	logger    *zap.Logger
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithEmitter sets the progress emitter.
func WithEmitter(emitter progress.Emitter) Option {
	return func(o *Orchestrator) {
		if emitter != nil {
			o.emitter = emitter
		}
	}
}

// WithClock injects the clock used for timestamps and elapsed time.
func WithClock(clock procurement.Clock) Option {
	return func(o *Orchestrator) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// WithIDGenerator sets the run ID source used by Run.
func WithIDGenerator(ids procurement.IDGenerator) Option {
	return func(o *Orchestrator) {
		if ids != nil {
			o.ids = ids
		}
	}
}

// WithLogger sets the orchestrator logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// NewOrchestrator builds an Orchestrator.
func NewOrchestrator(units procurement.UnitLister, processor Processor, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		units:     units,
		processor: processor,
		emitter:   progress.Nop,
		clock:     system.New(),
		ids:       ids.New(),
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = o.logger.Named("orchestrator")
	return o
}

type unitTask struct {
	index int
	unit  procurement.OrganizationalUnit
}

type unitOutcome struct {
	index  int
	result UnitResult
}

// Run executes a run under a freshly generated ID.
func (o *Orchestrator) Run(ctx context.Context, params procurement.RunParams) (procurement.RunResult, error) {
	runID, err := o.ids.NewID()
	if err != nil {
		return procurement.RunResult{}, fmt.Errorf("generate run id: %w", err)
	}
	return o.RunWithID(ctx, runID, params)
}

// RunWithID executes a run. A unit listing failure is fatal and no unit is
// processed. On cancellation the records merged so far are returned together
// with an error wrapping the context error.
func (o *Orchestrator) RunWithID(
	ctx context.Context,
	runID string,
	params procurement.RunParams,
) (procurement.RunResult, error) {
	result := procurement.RunResult{
		RunID:   runID,
		Params:  params,
		Records: []procurement.PackageRecord{},
		Units:   []procurement.UnitSummary{},
	}
	if err := params.Validate(); err != nil {
		return result, err
	}
	eventID, err := progress.ParseRunID(runID)
	if err != nil {
		return result, fmt.Errorf("%w: %w", procurement.ErrInvalidParams, err)
	}

	logger := o.logger.With(
		zap.String("run_id", runID),
		zap.String("org_group_id", params.OrgGroupID),
		zap.String("fiscal_year", params.FiscalYear),
	)
	result.StartedAt = o.clock.Now()
	finish := func() {
		result.FinishedAt = o.clock.Now()
		result.Elapsed = result.FinishedAt.Sub(result.StartedAt)
	}

	units, err := o.units.ListUnits(ctx, params.OrgGroupID, params.FiscalYear)
	if err != nil {
		if !errors.Is(err, procurement.ErrListUnits) {
			err = fmt.Errorf("%w: %w", procurement.ErrListUnits, err)
		}
		finish()
		o.emit(progress.Event{
			RunID: eventID, TS: result.FinishedAt, Stage: progress.StageRunError,
			Dur: result.Elapsed, Note: err.Error(),
		})
		logger.Error("unit listing failed", zap.Error(err))
		return result, err
	}

	total := len(units)
	o.emit(progress.Event{RunID: eventID, TS: o.clock.Now(), Stage: progress.StageRunStart, UnitTotal: total})
	logger.Info("run started", zap.Int("units", total),
		zap.Int("unit_concurrency", params.UnitConcurrency),
		zap.Int("detail_concurrency", params.DetailConcurrency))

	var merged []procurement.PackageRecord
	packages := 0
	waitErr := o.processUnits(ctx, units, params, func(out unitOutcome) {
		summary := summarize(out, total)
		result.Units = append(result.Units, summary)
		merged = append(merged, out.result.Records...)
		packages += summary.Packages
		o.emit(progress.UnitDone(eventID, o.clock.Now(), summary))
	})

	sort.Slice(result.Units, func(i, j int) bool { return result.Units[i].Index < result.Units[j].Index })
	result.Merged = len(merged)
	result.Records = procurement.Dedup(merged)
	finish()

	if err := firstErr(waitErr, ctx.Err()); err != nil {
		err = fmt.Errorf("run %s stopped after %d of %d units: %w", runID, len(result.Units), total, err)
		o.emit(progress.Event{
			RunID: eventID, TS: result.FinishedAt, Stage: progress.StageRunError, UnitTotal: total,
			Packages: packages, MatchedCount: len(result.Records), Dur: result.Elapsed, Note: err.Error(),
		})
		logger.Warn("run canceled", zap.Int("records", len(result.Records)), zap.Error(err))
		return result, err
	}

	o.emit(progress.Event{
		RunID: eventID, TS: result.FinishedAt, Stage: progress.StageRunDone,
		UnitTotal: total, Packages: packages, MatchedCount: len(result.Records), Dur: result.Elapsed,
	})
	logger.Info("run finished",
		zap.Int("records", len(result.Records)),
		zap.Int("merged", result.Merged),
		zap.Duration("elapsed", result.Elapsed))
	return result, nil
}

// processUnits runs the outer pool and calls merge for every finished unit
// on the calling goroutine, in completion order.
func (o *Orchestrator) processUnits(
	ctx context.Context,
	units []procurement.OrganizationalUnit,
	params procurement.RunParams,
	merge func(unitOutcome),
) error {
	if len(units) == 0 {
		return nil
	}
	workers := min(params.UnitConcurrency, len(units))
	tasks := make(chan unitTask)
	results := make(chan unitOutcome, len(units))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(tasks)
		for i, unit := range units {
			select {
			case tasks <- unitTask{index: i, unit: unit}:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})
	for range workers {
		g.Go(func() error {
			for task := range tasks {
				if err := gctx.Err(); err != nil {
					return err
				}
				res := o.processor.Process(gctx, task.unit, params.FiscalYear, params.DetailConcurrency)
				results <- unitOutcome{index: task.index, result: res}
			}
			return nil
		})
	}

	var waitErr error
	go func() {
		waitErr = g.Wait()
		close(results)
	}()
	for out := range results {
		merge(out)
	}
	return waitErr
}

func (o *Orchestrator) emit(evt progress.Event) {
	o.emitter.Emit(evt)
}

func summarize(out unitOutcome, total int) procurement.UnitSummary {
	summary := procurement.UnitSummary{
		Index:    out.index + 1,
		Total:    total,
		UnitID:   out.result.Unit.ID,
		UnitName: out.result.Unit.Name,
		Packages: out.result.Packages,
		Matched:  len(out.result.Records),
		Status:   out.result.Status,
		Duration: out.result.Duration,
	}
	if out.result.Err != nil {
		summary.Error = out.result.Err.Error()
	}
	return summary
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
