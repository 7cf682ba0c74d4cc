package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/sirup-adspend/internal/procurement"
)

const (
	defaultRunLimit  = 50
	maxRunLimit      = 500
	defaultUnitLimit = 100
	maxUnitLimit     = 1000
	storeTimeout     = 3 * time.Second
)

// RunHandler exposes read-only run progress endpoints.
type RunHandler struct {
	store   procurement.RunStore
	timeout time.Duration
	logger  *zap.Logger
}

// NewRunHandler wires the store and logger.
func NewRunHandler(store procurement.RunStore, logger *zap.Logger) *RunHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RunHandler{
		store:   store,
		timeout: storeTimeout,
		logger:  logger,
	}
}

// ListRuns handles GET /v1/runs?status=&limit=&offset=. It returns
// {"runs": [...]} newest first, or 400 for invalid filters.
func (h *RunHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeError(w, http.StatusServiceUnavailable, "run store unavailable")
		return
	}
	limit, offset, err := parseLimitOffset(r, defaultRunLimit, maxRunLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	status, err := parseStatus(r.URL.Query().Get("status"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	runs, err := h.store.ListRuns(ctx, status, limit, offset)
	if err != nil {
		h.logger.Error("list runs failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": toRunDTOs(runs)})
}

// GetRun handles GET /v1/runs/{run_id}.
func (h *RunHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	run, ok := h.loadRun(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"run": toRunDTO(run)})
}

// ListRunUnits handles GET /v1/runs/{run_id}/units?limit=&offset=, returning
// per-unit summaries in unit order.
func (h *RunHandler) ListRunUnits(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := parseLimitOffset(r, defaultUnitLimit, maxUnitLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	run, ok := h.loadRun(w, r)
	if !ok {
		return
	}
	units := run.Units
	if offset >= len(units) {
		units = nil
	} else {
		units = units[offset:]
	}
	if len(units) > limit {
		units = units[:limit]
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"units": toUnitDTOs(units),
		"total": len(run.Units),
	})
}

func (h *RunHandler) loadRun(w http.ResponseWriter, r *http.Request) (procurement.Run, bool) {
	if h.store == nil {
		writeError(w, http.StatusServiceUnavailable, "run store unavailable")
		return procurement.Run{}, false
	}
	runID := strings.TrimSpace(chi.URLParam(r, "run_id"))
	if runID == "" {
		writeError(w, http.StatusBadRequest, "run_id is required")
		return procurement.Run{}, false
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	run, err := h.store.GetRun(ctx, runID)
	if err != nil {
		if errors.Is(err, procurement.ErrRunNotFound) {
			writeError(w, http.StatusNotFound, "run not found")
			return procurement.Run{}, false
		}
		h.logger.Error("get run failed", zap.String("run_id", runID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load run")
		return procurement.Run{}, false
	}
	return run, true
}

func parseLimitOffset(r *http.Request, def, maxLimit int) (int, int, error) {
	q := r.URL.Query()
	limit := def
	if limStr := q.Get("limit"); limStr != "" {
		val, err := strconv.Atoi(limStr)
		if err != nil || val <= 0 {
			return 0, 0, errors.New("invalid limit")
		}
		if val > maxLimit {
			val = maxLimit
		}
		limit = val
	}
	offset := 0
	if offStr := q.Get("offset"); offStr != "" {
		val, err := strconv.Atoi(offStr)
		if err != nil || val < 0 {
			return 0, 0, errors.New("invalid offset")
		}
		offset = val
	}
	return limit, offset, nil
}

func parseStatus(input string) (procurement.RunStatus, error) {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "":
		return "", nil
	case "queued":
		return procurement.RunStatusQueued, nil
	case "running":
		return procurement.RunStatusRunning, nil
	case "succeeded", "success":
		return procurement.RunStatusSucceeded, nil
	case "failed", "error", "failure":
		return procurement.RunStatusFailed, nil
	case "canceled", "cancelled":
		return procurement.RunStatusCanceled, nil
	default:
		return "", errors.New("invalid status")
	}
}

func toRunDTOs(in []procurement.Run) []runDTO {
	out := make([]runDTO, 0, len(in))
	for _, run := range in {
		out = append(out, toRunDTO(run))
	}
	return out
}

func toRunDTO(run procurement.Run) runDTO {
	dto := runDTO{
		ID:                run.ID,
		Status:            string(run.Status),
		SubmittedAt:       run.Submitted,
		StartedAt:         run.Started,
		FinishedAt:        run.Finished,
		OrgGroupID:        run.Params.OrgGroupID,
		FiscalYear:        run.Params.FiscalYear,
		UnitConcurrency:   run.Params.UnitConcurrency,
		DetailConcurrency: run.Params.DetailConcurrency,
		Counters:          run.Counters,
		ElapsedSeconds:    run.Elapsed.Seconds(),
	}
	if run.ErrorText != "" {
		dto.Error = &run.ErrorText
	}
	return dto
}

func toUnitDTOs(in []procurement.UnitSummary) []unitDTO {
	out := make([]unitDTO, 0, len(in))
	for _, u := range in {
		out = append(out, unitDTO{
			Index:           u.Index,
			UnitID:          u.UnitID,
			UnitName:        u.UnitName,
			Packages:        u.Packages,
			Matched:         u.Matched,
			Status:          string(u.Status),
			Error:           u.Error,
			DurationSeconds: u.Duration.Seconds(),
		})
	}
	return out
}

type runDTO struct {
	ID                string                  `json:"id"`
	Status            string                  `json:"status"`
	SubmittedAt       time.Time               `json:"submitted_at"`
	StartedAt         *time.Time              `json:"started_at,omitempty"`
	FinishedAt        *time.Time              `json:"finished_at,omitempty"`
	OrgGroupID        string                  `json:"org_group_id"`
	FiscalYear        string                  `json:"fiscal_year"`
	UnitConcurrency   int                     `json:"unit_concurrency"`
	DetailConcurrency int                     `json:"detail_concurrency"`
	Counters          procurement.RunCounters `json:"counters"`
	ElapsedSeconds    float64                 `json:"elapsed_seconds"`
	Error             *string                 `json:"error,omitempty"`
}

type unitDTO struct {
	Index           int     `json:"index"`
	UnitID          string  `json:"unit_id"`
	UnitName        string  `json:"unit_name"`
	Packages        int     `json:"packages"`
	Matched         int     `json:"matched"`
	Status          string  `json:"status"`
	Error           string  `json:"error,omitempty"`
	DurationSeconds float64 `json:"duration_seconds"`
}
