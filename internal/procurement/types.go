package procurement

import (
	"fmt"
	"net/http"
	"time"
)

// Reference bounds for the two worker pools.
const (
	MaxUnitConcurrency   = 20
	MaxDetailConcurrency = 50
)

// OrganizationalUnit is a budget-holding work unit (satker) under a KLDI.
type OrganizationalUnit struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// PackageStub is one row of a unit's package listing.
type PackageStub struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Pagu            string `json:"pagu"`
	SelectionMethod string `json:"selection_method"`
}

// PackageRecord is a package whose name or detail text matched the vocabulary.
// DetailText is empty when the detail page could not be fetched or carried no
// work description.
type PackageRecord struct {
	UnitName        string `json:"satuanKerja"`
	PackageName     string `json:"namaPaket"`
	DetailText      string `json:"uraianPekerjaan"`
	SelectionMethod string `json:"metodePemilihan"`
	Pagu            string `json:"pagu"`
}

// UnitStatus is the terminal outcome of processing one unit.
type UnitStatus string

// Unit outcomes reported through progress events.
const (
	UnitStatusOK    UnitStatus = "ok"
	UnitStatusEmpty UnitStatus = "empty"
	UnitStatusError UnitStatus = "error"
)

// UnitSummary records how a single unit fared during a run.
type UnitSummary struct {
	Index    int           `json:"index"`
	Total    int           `json:"total"`
	UnitID   string        `json:"unit_id"`
	UnitName string        `json:"unit_name"`
	Packages int           `json:"packages"`
	Matched  int           `json:"matched"`
	Status   UnitStatus    `json:"status"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration_ns"`
}

// RunParams are the caller-supplied inputs of one scrape run.
type RunParams struct {
	OrgGroupID        string `json:"org_group_id" mapstructure:"org_group_id"`
	FiscalYear        string `json:"fiscal_year" mapstructure:"fiscal_year"`
	UnitConcurrency   int    `json:"unit_concurrency" mapstructure:"unit_concurrency"`
	DetailConcurrency int    `json:"detail_concurrency" mapstructure:"detail_concurrency"`
}

// Validate checks identifiers and the pool bounds.
func (p RunParams) Validate() error {
	if p.OrgGroupID == "" {
		return fmt.Errorf("%w: org_group_id is required", ErrInvalidParams)
	}
	if p.FiscalYear == "" {
		return fmt.Errorf("%w: fiscal_year is required", ErrInvalidParams)
	}
	if p.UnitConcurrency < 1 || p.UnitConcurrency > MaxUnitConcurrency {
		return fmt.Errorf("%w: unit_concurrency must be between 1 and %d", ErrInvalidParams, MaxUnitConcurrency)
	}
	if p.DetailConcurrency < 1 || p.DetailConcurrency > MaxDetailConcurrency {
		return fmt.Errorf("%w: detail_concurrency must be between 1 and %d", ErrInvalidParams, MaxDetailConcurrency)
	}
	return nil
}

// RunResult is the outcome of one orchestrator run.
type RunResult struct {
	RunID      string          `json:"run_id"`
	Params     RunParams       `json:"params"`
	Records    []PackageRecord `json:"records"`
	Units      []UnitSummary   `json:"units"`
	Merged     int             `json:"merged"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
	Elapsed    time.Duration   `json:"elapsed_ns"`
}

// RunCounters aggregates unit outcomes for status reporting.
type RunCounters struct {
	UnitsTotal  int `json:"units_total"`
	UnitsDone   int `json:"units_done"`
	UnitsOK     int `json:"units_ok"`
	UnitsEmpty  int `json:"units_empty"`
	UnitsFailed int `json:"units_failed"`
	Packages    int `json:"packages"`
	Matched     int `json:"matched"`
}

// Add folds one unit summary into the counters.
func (c *RunCounters) Add(u UnitSummary) {
	if u.Total > c.UnitsTotal {
		c.UnitsTotal = u.Total
	}
	c.UnitsDone++
	c.Packages += u.Packages
	c.Matched += u.Matched
	switch u.Status {
	case UnitStatusOK:
		c.UnitsOK++
	case UnitStatusEmpty:
		c.UnitsEmpty++
	case UnitStatusError:
		c.UnitsFailed++
	}
}

// Summary derives counters from the unit summaries of a finished run.
func (r RunResult) Summary() RunCounters {
	var c RunCounters
	for _, u := range r.Units {
		c.Add(u)
	}
	c.UnitsTotal = len(r.Units)
	return c
}

// RunStatus represents the lifecycle state of a queued run.
type RunStatus string

// Run status values kept by the run store.
const (
	RunStatusQueued    RunStatus = "queued"
	RunStatusRunning   RunStatus = "running"
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCanceled  RunStatus = "canceled"
)

// Terminal reports whether no further transitions are expected.
func (s RunStatus) Terminal() bool {
	switch s {
	case RunStatusSucceeded, RunStatusFailed, RunStatusCanceled:
		return true
	default:
		return false
	}
}

// Run is the bookkeeping entry for a run submitted through the API.
type Run struct {
	ID        string        `json:"id"`
	Status    RunStatus     `json:"status"`
	Submitted time.Time     `json:"submitted_at"`
	Started   *time.Time    `json:"started_at,omitempty"`
	Finished  *time.Time    `json:"finished_at,omitempty"`
	ErrorText string        `json:"error_text,omitempty"`
	Params    RunParams     `json:"params"`
	Counters  RunCounters   `json:"counters"`
	Units     []UnitSummary `json:"units,omitempty"`
	Elapsed   time.Duration `json:"elapsed_ns,omitempty"`
}

// FetchResponse is the result returned by a Fetcher implementation.
type FetchResponse struct {
	URL        string
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
	Attempts   int
}
