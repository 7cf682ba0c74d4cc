package procurement

import (
	"context"
	"net/url"
	"time"
)

// Fetcher issues GET requests against the portal. Implementations retry
// transient failures and are shared by every concurrent caller.
type Fetcher interface {
	Get(ctx context.Context, rawURL string, params url.Values) (FetchResponse, error)
}

// UnitLister lists the organizational units of a KLDI for a fiscal year.
type UnitLister interface {
	ListUnits(ctx context.Context, orgGroupID, fiscalYear string) ([]OrganizationalUnit, error)
}

// PackageLister lists one unit's packages for a fiscal year.
type PackageLister interface {
	ListPackages(ctx context.Context, unitID, fiscalYear string) ([]PackageStub, error)
}

// DetailSource returns a package's work description. It never fails; an
// unavailable detail yields the empty string.
type DetailSource interface {
	FetchDetail(ctx context.Context, packageID string) string
}

// Matcher decides whether combined package text is advertising spend.
type Matcher interface {
	Matches(text string) bool
}

// RunStore keeps run bookkeeping for the lifetime of the process.
type RunStore interface {
	CreateRun(ctx context.Context, run Run) error
	UpdateRunStatus(ctx context.Context, runID string, status RunStatus, errText string) error
	RecordUnit(ctx context.Context, runID string, unit UnitSummary) error
	CompleteRun(ctx context.Context, runID string, result RunResult) error
	GetRun(ctx context.Context, runID string) (Run, error)
	GetResult(ctx context.Context, runID string) (RunResult, error)
	ListRuns(ctx context.Context, status RunStatus, limit, offset int) ([]Run, error)
}

// Queue provides enqueue/dequeue semantics for submitted runs.
type Queue interface {
	Enqueue(ctx context.Context, item QueueItem) error
	Dequeue(ctx context.Context) (QueueItem, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}

// QueueItem wraps a run ready to execute.
type QueueItem struct {
	RunID     string
	Params    RunParams
	Submitted int64
}
