package scrape

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/sirup-adspend/internal/clock/system"
	"github.com/JakeFAU/sirup-adspend/internal/keyword"
	"github.com/JakeFAU/sirup-adspend/internal/procurement"
)

// UnitResult is what a unit worker hands back to the orchestrator.
type UnitResult struct {
	Unit     procurement.OrganizationalUnit
	Records  []procurement.PackageRecord
	Packages int
	Status   procurement.UnitStatus
	Err      error
	Duration time.Duration
}

// Processor processes a single organizational unit.
type Processor interface {
	Process(ctx context.Context, unit procurement.OrganizationalUnit, fiscalYear string, detailConcurrency int) UnitResult
}

// UnitProcessor lists a unit's packages, fetches their details concurrently,
// and keeps the packages whose combined text matches.
type UnitProcessor struct {
	packages procurement.PackageLister
	details  procurement.DetailSource
	matcher  procurement.Matcher
	clock    procurement.Clock
	logger   *zap.Logger
}

var _ Processor = (*UnitProcessor)(nil)

// NewUnitProcessor wires a UnitProcessor. A nil matcher selects the default
// vocabulary; a nil clock uses wall time.
func NewUnitProcessor(
	packages procurement.PackageLister,
	details procurement.DetailSource,
	matcher procurement.Matcher,
	clock procurement.Clock,
	logger *zap.Logger,
) *UnitProcessor {
	if matcher == nil {
		matcher = keyword.Default()
	}
	if clock == nil {
		clock = system.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UnitProcessor{
		packages: packages,
		details:  details,
		matcher:  matcher,
		clock:    clock,
		logger:   logger.Named("unit"),
	}
}

type detailResult struct {
	index  int
	detail string
}

// Process never returns an error: listing failures and cancellation are
// reported through UnitResult.Status and UnitResult.Err.
func (p *UnitProcessor) Process(
	ctx context.Context,
	unit procurement.OrganizationalUnit,
	fiscalYear string,
	detailConcurrency int,
) UnitResult {
	start := p.clock.Now()
	logger := p.logger.With(zap.String("unit_id", unit.ID), zap.String("unit_name", unit.Name))
	result := UnitResult{Unit: unit, Records: []procurement.PackageRecord{}}
	finish := func() UnitResult {
		result.Duration = p.clock.Now().Sub(start)
		return result
	}

	stubs, err := p.packages.ListPackages(ctx, unit.ID, fiscalYear)
	if err != nil {
		result.Status = procurement.UnitStatusError
		result.Err = err
		logger.Warn("package listing failed", zap.Error(err))
		return finish()
	}
	result.Packages = len(stubs)
	if len(stubs) == 0 {
		result.Status = procurement.UnitStatusEmpty
		return finish()
	}

	matched, err := p.matchAll(ctx, unit, stubs, detailConcurrency, logger)
	if err == nil {
		err = ctx.Err()
	}
	for _, rec := range matched {
		if rec != nil {
			result.Records = append(result.Records, *rec)
		}
	}
	if err != nil {
		result.Status = procurement.UnitStatusError
		result.Err = fmt.Errorf("unit %s interrupted: %w", unit.ID, err)
		return finish()
	}
	result.Status = procurement.UnitStatusOK
	return finish()
}

// matchAll fans the stubs out to detail workers and returns one slot per
// stub, nil where the package did not match, so callers keep listing order.
func (p *UnitProcessor) matchAll(
	ctx context.Context,
	unit procurement.OrganizationalUnit,
	stubs []procurement.PackageStub,
	detailConcurrency int,
	logger *zap.Logger,
) ([]*procurement.PackageRecord, error) {
	workers := min(max(detailConcurrency, 1), len(stubs))
	tasks := make(chan int)
	results := make(chan detailResult, len(stubs))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(tasks)
		for i := range stubs {
			select {
			case tasks <- i:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})
	for range workers {
		g.Go(func() error {
			for i := range tasks {
				if err := gctx.Err(); err != nil {
					return err
				}
				results <- detailResult{index: i, detail: p.details.FetchDetail(gctx, stubs[i].ID)}
			}
			return nil
		})
	}

	var waitErr error
	go func() {
		waitErr = g.Wait()
		close(results)
	}()

	matched := make([]*procurement.PackageRecord, len(stubs))
	for r := range results {
		stub := stubs[r.index]
		text := keyword.Combine(stub.Name, r.detail)
		if !p.matcher.Matches(text) {
			continue
		}
		if fm, ok := p.matcher.(interface{ FirstMatch(string) (string, bool) }); ok {
			if term, hit := fm.FirstMatch(text); hit {
				logger.Debug("package matched", zap.String("package_id", stub.ID), zap.String("term", term))
			}
		}
		matched[r.index] = &procurement.PackageRecord{
			UnitName:        unit.Name,
			PackageName:     stub.Name,
			DetailText:      r.detail,
			SelectionMethod: stub.SelectionMethod,
			Pagu:            stub.Pagu,
		}
	}
	return matched, waitErr
}
