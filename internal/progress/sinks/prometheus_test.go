package sinks

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/sirup-adspend/internal/procurement"
	"github.com/JakeFAU/sirup-adspend/internal/progress"
)

func TestPrometheusSinkRecordsMetrics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	sink, err := NewPrometheusSink(reg)
	require.NoError(t, err)

	runID := progress.UUIDToBytes(uuid.New())
	now := time.Now()
	batch := []progress.Event{
		{RunID: runID, TS: now, Stage: progress.StageRunStart, UnitTotal: 2},
		progress.UnitDone(runID, now, procurement.UnitSummary{
			Index: 1, Total: 2, UnitName: "U1", Packages: 2, Matched: 1,
			Status: procurement.UnitStatusOK, Duration: 2 * time.Second,
		}),
		progress.UnitDone(runID, now, procurement.UnitSummary{
			Index: 2, Total: 2, UnitName: "U2", Status: procurement.UnitStatusEmpty,
		}),
		{RunID: runID, TS: now, Stage: progress.StageRunDone, Dur: 5 * time.Second},
	}

	require.NoError(t, sink.Consume(context.Background(), batch))

	require.Equal(t, 1.0, testutil.ToFloat64(sink.runsStarted))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.runsCompleted.WithLabelValues("success")))
	require.Equal(t, 0.0, testutil.ToFloat64(sink.runsCompleted.WithLabelValues("error")))
	require.Equal(t, 0.0, testutil.ToFloat64(sink.runsRunning))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.unitsProcessed.WithLabelValues("ok")))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.unitsProcessed.WithLabelValues("empty")))
	require.InDelta(t, 2.0, testutil.ToFloat64(sink.unitPackages), 1e-9)
	require.InDelta(t, 1.0, testutil.ToFloat64(sink.unitMatched), 1e-9)
	require.Equal(t, 1, testutil.CollectAndCount(sink.unitDuration, "adspend_unit_duration_seconds"))
}

func TestPrometheusSinkRejectsDuplicateRegistration(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	_, err := NewPrometheusSink(reg)
	require.NoError(t, err)
	_, err = NewPrometheusSink(reg)
	require.Error(t, err)
}
