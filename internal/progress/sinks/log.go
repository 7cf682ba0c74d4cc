package sinks

import (
	"context"

	"go.uber.org/zap"

	"github.com/JakeFAU/sirup-adspend/internal/procurement"
	"github.com/JakeFAU/sirup-adspend/internal/progress"
)

// LogSink writes each event as a structured log line.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink wires a Zap logger to the sink interface.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Consume logs each event in the batch.
func (s *LogSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		fields := []zap.Field{
			zap.String("run_id", evt.RunUUID().String()),
			zap.String("stage", string(evt.Stage)),
			zap.Duration("dur", evt.Dur),
		}
		switch evt.Stage {
		case progress.StageUnitDone:
			fields = append(fields,
				zap.Int("unit_index", evt.UnitIndex),
				zap.Int("unit_total", evt.UnitTotal),
				zap.String("unit_id", evt.UnitID),
				zap.String("unit_name", evt.UnitName),
				zap.Int("packages", evt.Packages),
				zap.Int("matched", evt.MatchedCount),
				zap.String("status", string(evt.Status)),
			)
		case progress.StageRunStart:
			fields = append(fields, zap.Int("unit_total", evt.UnitTotal))
		case progress.StageRunDone:
			fields = append(fields, zap.Int("packages", evt.Packages), zap.Int("matched", evt.MatchedCount))
		}
		if evt.Note != "" {
			fields = append(fields, zap.String("note", evt.Note))
		}
		if evt.Stage == progress.StageRunError || evt.Status == procurement.UnitStatusError {
			s.logger.Warn("progress event", fields...)
			continue
		}
		s.logger.Info("progress event", fields...)
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *LogSink) Close(context.Context) error {
	return nil
}
