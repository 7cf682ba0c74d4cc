package progress

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/JakeFAU/sirup-adspend/internal/procurement"
)

// Stage denotes the type of milestone represented by an Event.
type Stage string

// Supported progress stages.
const (
	StageRunStart Stage = "RUN_START"
	StageUnitDone Stage = "UNIT_DONE"
	StageRunDone  Stage = "RUN_DONE"
	StageRunError Stage = "RUN_ERROR"
)

// Event captures one run milestone.
type Event struct {
	// RunID is the 16-byte UUID of the run.
	RunID [16]byte
	// TS is the UTC timestamp recorded by the emitter.
	TS    time.Time
	Stage Stage
	// UnitIndex is the 1-based submission position of the unit; UnitTotal
	// is the number of units in the run (also set on RUN_START).
	UnitIndex int
	UnitTotal int
	UnitID    string
	UnitName  string
	// Packages is the number of packages listed for the unit, or for the
	// whole run on RUN_DONE.
	Packages     int
	MatchedCount int
	Status       procurement.UnitStatus
	Dur          time.Duration
	// Note carries error text for failed units and runs.
	Note string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.RunID == [16]byte{} {
		return errors.New("run id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageRunStart, StageRunDone, StageRunError:
	case StageUnitDone:
		if e.UnitIndex < 1 || (e.UnitTotal > 0 && e.UnitIndex > e.UnitTotal) {
			return fmt.Errorf("unit index %d out of range 1..%d", e.UnitIndex, e.UnitTotal)
		}
		switch e.Status {
		case procurement.UnitStatusOK, procurement.UnitStatusEmpty, procurement.UnitStatusError:
		default:
			return fmt.Errorf("unit done requires status, got %q", e.Status)
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	if e.Packages < 0 || e.MatchedCount < 0 {
		return errors.New("counts must be >= 0")
	}
	return nil
}

// RunUUID converts the binary run ID to uuid.UUID.
func (e Event) RunUUID() uuid.UUID {
	return uuid.UUID(e.RunID)
}

// Unit rebuilds the unit summary carried by a UNIT_DONE event.
func (e Event) Unit() procurement.UnitSummary {
	return procurement.UnitSummary{
		Index:    e.UnitIndex,
		Total:    e.UnitTotal,
		UnitID:   e.UnitID,
		UnitName: e.UnitName,
		Packages: e.Packages,
		Matched:  e.MatchedCount,
		Status:   e.Status,
		Error:    e.Note,
		Duration: e.Dur,
	}
}

// UnitDone builds the UNIT_DONE event for a finished unit.
func UnitDone(runID [16]byte, ts time.Time, s procurement.UnitSummary) Event {
	return Event{
		RunID:        runID,
		TS:           ts.UTC(),
		Stage:        StageUnitDone,
		UnitIndex:    s.Index,
		UnitTotal:    s.Total,
		UnitID:       s.UnitID,
		UnitName:     s.UnitName,
		Packages:     s.Packages,
		MatchedCount: s.Matched,
		Status:       s.Status,
		Dur:          s.Duration,
		Note:         s.Error,
	}
}

// UUIDToBytes encodes a uuid.UUID into the Event form.
func UUIDToBytes(id uuid.UUID) [16]byte {
	var dest [16]byte
	copy(dest[:], id[:])
	return dest
}

// ParseRunID converts a textual run ID into the Event form.
func ParseRunID(runID string) ([16]byte, error) {
	id, err := uuid.Parse(runID)
	if err != nil {
		return [16]byte{}, fmt.Errorf("parse run id %q: %w", runID, err)
	}
	return UUIDToBytes(id), nil
}
