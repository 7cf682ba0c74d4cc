// Package memory keeps run bookkeeping and rendered artifacts in-memory.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/JakeFAU/sirup-adspend/internal/procurement"
)

// RunStore provides an in-memory procurement.RunStore.
type RunStore struct {
	mu      sync.RWMutex
	now     func() time.Time
	runs    map[string]procurement.Run
	results map[string]procurement.RunResult
}

// NewRunStore constructs a RunStore.
func NewRunStore() *RunStore {
	return &RunStore{
		now:     func() time.Time { return time.Now().UTC() },
		runs:    make(map[string]procurement.Run),
		results: make(map[string]procurement.RunResult),
	}
}

// CreateRun stores a new run.
func (s *RunStore) CreateRun(_ context.Context, run procurement.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.runs[run.ID]; exists {
		return fmt.Errorf("%w: %s", procurement.ErrRunExists, run.ID)
	}
	if run.Status == "" {
		run.Status = procurement.RunStatusQueued
	}
	if run.Submitted.IsZero() {
		run.Submitted = s.now()
	}
	s.runs[run.ID] = run
	return nil
}

// UpdateRunStatus moves a run to status. Terminal runs are not reopened;
// such updates return procurement.ErrRunTerminal.
func (s *RunStore) UpdateRunStatus(
	_ context.Context,
	runID string,
	status procurement.RunStatus,
	errText string,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[runID]
	if !ok {
		return fmt.Errorf("%w: %s", procurement.ErrRunNotFound, runID)
	}
	if run.Status.Terminal() {
		return fmt.Errorf("%w: %s is %s", procurement.ErrRunTerminal, runID, run.Status)
	}
	run.Status = status
	run.ErrorText = errText
	now := s.now()
	if status == procurement.RunStatusRunning && run.Started == nil {
		run.Started = pointerTime(now)
	}
	if status.Terminal() {
		run.Finished = pointerTime(now)
	}
	s.runs[runID] = run
	return nil
}

// RecordUnit upserts a unit summary by index and refreshes the counters.
func (s *RunStore) RecordUnit(_ context.Context, runID string, unit procurement.UnitSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[runID]
	if !ok {
		return fmt.Errorf("%w: %s", procurement.ErrRunNotFound, runID)
	}
	replaced := false
	for i := range run.Units {
		if run.Units[i].Index == unit.Index {
			run.Units[i] = unit
			replaced = true
			break
		}
	}
	if !replaced {
		run.Units = append(run.Units, unit)
		sort.Slice(run.Units, func(i, j int) bool { return run.Units[i].Index < run.Units[j].Index })
	}
	run.Counters = countUnits(run.Units)
	s.runs[runID] = run
	return nil
}

// CompleteRun stores the final result and replaces the unit summaries with
// the authoritative set from the orchestrator.
func (s *RunStore) CompleteRun(_ context.Context, runID string, result procurement.RunResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[runID]
	if !ok {
		return fmt.Errorf("%w: %s", procurement.ErrRunNotFound, runID)
	}
	run.Units = append([]procurement.UnitSummary(nil), result.Units...)
	run.Counters = result.Summary()
	run.Elapsed = result.Elapsed
	s.runs[runID] = run
	s.results[runID] = result
	return nil
}

// GetRun fetches a run by ID.
func (s *RunStore) GetRun(_ context.Context, runID string) (procurement.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[runID]
	if !ok {
		return procurement.Run{}, fmt.Errorf("%w: %s", procurement.ErrRunNotFound, runID)
	}
	return copyRun(run), nil
}

// GetResult returns the stored result of a completed run.
func (s *RunStore) GetResult(_ context.Context, runID string) (procurement.RunResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result, ok := s.results[runID]
	if !ok {
		return procurement.RunResult{}, fmt.Errorf("%w: %s", procurement.ErrRunNotFound, runID)
	}
	out := result
	out.Records = append([]procurement.PackageRecord(nil), result.Records...)
	out.Units = append([]procurement.UnitSummary(nil), result.Units...)
	return out, nil
}

// ListRuns returns runs newest first, optionally filtered by status.
func (s *RunStore) ListRuns(
	_ context.Context,
	status procurement.RunStatus,
	limit, offset int,
) ([]procurement.Run, error) {
	s.mu.RLock()
	runs := make([]procurement.Run, 0, len(s.runs))
	for _, run := range s.runs {
		if status != "" && run.Status != status {
			continue
		}
		run.Units = nil
		runs = append(runs, run)
	}
	s.mu.RUnlock()

	sort.Slice(runs, func(i, j int) bool {
		if runs[i].Submitted.Equal(runs[j].Submitted) {
			return runs[i].ID > runs[j].ID
		}
		return runs[i].Submitted.After(runs[j].Submitted)
	})
	if offset >= len(runs) {
		return []procurement.Run{}, nil
	}
	runs = runs[offset:]
	if limit > 0 && limit < len(runs) {
		runs = runs[:limit]
	}
	return runs, nil
}

func countUnits(units []procurement.UnitSummary) procurement.RunCounters {
	var c procurement.RunCounters
	for _, u := range units {
		c.Add(u)
	}
	return c
}

func copyRun(run procurement.Run) procurement.Run {
	run.Units = append([]procurement.UnitSummary(nil), run.Units...)
	return run
}

func pointerTime(t time.Time) *time.Time {
	ts := t
	return &ts
}
