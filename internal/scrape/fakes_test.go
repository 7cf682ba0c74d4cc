package scrape

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/JakeFAU/sirup-adspend/internal/procurement"
	"github.com/JakeFAU/sirup-adspend/internal/progress"
)

const testRunID = "0190b6a4-3f6e-7c3a-9a51-3c2f8d9e1a7b"

type fakeUnits struct {
	units []procurement.OrganizationalUnit
	err   error
}

func (f fakeUnits) ListUnits(context.Context, string, string) ([]procurement.OrganizationalUnit, error) {
	return f.units, f.err
}

type fakePackages struct {
	byUnit map[string][]procurement.PackageStub
	errs   map[string]error
	calls  atomic.Int32
}

func (f *fakePackages) ListPackages(_ context.Context, unitID, _ string) ([]procurement.PackageStub, error) {
	f.calls.Add(1)
	if err := f.errs[unitID]; err != nil {
		return nil, err
	}
	return f.byUnit[unitID], nil
}

type fakeDetails struct {
	texts    map[string]string
	delay    func(id string) time.Duration
	inflight atomic.Int32
	peak     atomic.Int32
	hook     func(id string)
}

func (f *fakeDetails) FetchDetail(ctx context.Context, id string) string {
	n := f.inflight.Add(1)
	defer f.inflight.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}
	if f.hook != nil {
		f.hook(id)
	}
	if f.delay != nil {
		select {
		case <-time.After(f.delay(id)):
		case <-ctx.Done():
			return ""
		}
	}
	return f.texts[id]
}

type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func newStepClock() *stepClock {
	return &stepClock{now: time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)}
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

type eventLog struct {
	mu     sync.Mutex
	events []progress.Event
}

func (l *eventLog) Emit(evt progress.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, evt)
}

func (l *eventLog) stages() []progress.Stage {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]progress.Stage, len(l.events))
	for i, evt := range l.events {
		out[i] = evt.Stage
	}
	return out
}

func (l *eventLog) byStage(stage progress.Stage) []progress.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []progress.Event
	for _, evt := range l.events {
		if evt.Stage == stage {
			out = append(out, evt)
		}
	}
	return out
}

func params(unitConcurrency, detailConcurrency int) procurement.RunParams {
	return procurement.RunParams{
		OrgGroupID:        "D1005",
		FiscalYear:        "2025",
		UnitConcurrency:   unitConcurrency,
		DetailConcurrency: detailConcurrency,
	}
}

func stub(id, name string) procurement.PackageStub {
	return procurement.PackageStub{ID: id, Name: name, Pagu: "1000000", SelectionMethod: "E-Purchasing"}
}
