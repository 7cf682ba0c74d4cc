package sinks

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/sirup-adspend/internal/procurement"
	"github.com/JakeFAU/sirup-adspend/internal/progress"
)

// StoreSink records finished units in the run store so run status reflects
// progress while a run is still executing.
type StoreSink struct {
	store  procurement.RunStore
	logger *zap.Logger
}

// NewStoreSink constructs a StoreSink for the provided store.
func NewStoreSink(store procurement.RunStore, logger *zap.Logger) *StoreSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StoreSink{store: store, logger: logger}
}

// Consume forwards UNIT_DONE events; other stages are owned by the run worker.
func (s *StoreSink) Consume(ctx context.Context, batch []progress.Event) error {
	if s == nil || s.store == nil {
		return nil
	}
	for _, evt := range batch {
		if evt.Stage != progress.StageUnitDone {
			continue
		}
		runID := evt.RunUUID().String()
		if err := s.store.RecordUnit(ctx, runID, evt.Unit()); err != nil {
			return fmt.Errorf("record unit %d of run %s: %w", evt.UnitIndex, runID, err)
		}
		s.logger.Debug("unit recorded", zap.String("run_id", runID), zap.Int("unit_index", evt.UnitIndex))
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *StoreSink) Close(context.Context) error {
	return nil
}
