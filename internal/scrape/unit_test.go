package scrape

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/sirup-adspend/internal/procurement"
)

func TestProcessMatchesNameAndDetail(t *testing.T) {
	t.Parallel()

	packages := &fakePackages{byUnit: map[string][]procurement.PackageStub{
		"U1": {
			stub("P1", "Pengadaan Iklan Televisi"),
			stub("P2", "Pembangunan Jalan"),
			stub("P3", "Belanja Jasa Pihak Ketiga"),
		},
	}}
	details := &fakeDetails{texts: map[string]string{"P3": "Penayangan di surat kabar harian"}}
	p := NewUnitProcessor(packages, details, nil, newStepClock(), nil)

	res := p.Process(context.Background(), procurement.OrganizationalUnit{ID: "U1", Name: "Dinas Kominfo"}, "2025", 4)
	require.NoError(t, res.Err)
	require.Equal(t, procurement.UnitStatusOK, res.Status)
	require.Equal(t, 3, res.Packages)
	require.Equal(t, []procurement.PackageRecord{
		{
			UnitName: "Dinas Kominfo", PackageName: "Pengadaan Iklan Televisi",
			SelectionMethod: "E-Purchasing", Pagu: "1000000",
		},
		{
			UnitName: "Dinas Kominfo", PackageName: "Belanja Jasa Pihak Ketiga",
			DetailText: "Penayangan di surat kabar harian", SelectionMethod: "E-Purchasing", Pagu: "1000000",
		},
	}, res.Records)
	require.Equal(t, time.Second, res.Duration)
}

func TestProcessEmptyUnit(t *testing.T) {
	t.Parallel()

	p := NewUnitProcessor(&fakePackages{}, &fakeDetails{}, nil, nil, nil)
	res := p.Process(context.Background(), procurement.OrganizationalUnit{ID: "U2", Name: "Sekretariat"}, "2025", 5)
	require.Equal(t, procurement.UnitStatusEmpty, res.Status)
	require.NoError(t, res.Err)
	require.Empty(t, res.Records)
	require.NotNil(t, res.Records)
}

func TestProcessListingFailure(t *testing.T) {
	t.Parallel()

	cause := fmt.Errorf("%w for unit U3: status 500", procurement.ErrListPackages)
	p := NewUnitProcessor(&fakePackages{errs: map[string]error{"U3": cause}}, &fakeDetails{}, nil, nil, nil)
	res := p.Process(context.Background(), procurement.OrganizationalUnit{ID: "U3", Name: "Bappeda"}, "2025", 5)
	require.Equal(t, procurement.UnitStatusError, res.Status)
	require.ErrorIs(t, res.Err, procurement.ErrListPackages)
	require.Empty(t, res.Records)
}

func TestProcessKeepsListingOrder(t *testing.T) {
	t.Parallel()

	var stubs []procurement.PackageStub
	for i := range 20 {
		stubs = append(stubs, stub(fmt.Sprintf("P%02d", i), fmt.Sprintf("Iklan %02d", i)))
	}
	details := &fakeDetails{delay: func(id string) time.Duration {
		// later packages finish first
		var n int
		_, _ = fmt.Sscanf(id, "P%02d", &n)
		return time.Duration(20-n) * time.Millisecond
	}}
	p := NewUnitProcessor(&fakePackages{byUnit: map[string][]procurement.PackageStub{"U1": stubs}}, details, nil, nil, nil)

	res := p.Process(context.Background(), procurement.OrganizationalUnit{ID: "U1", Name: "Dinas"}, "2025", 20)
	require.Len(t, res.Records, 20)
	for i, rec := range res.Records {
		require.Equal(t, fmt.Sprintf("Iklan %02d", i), rec.PackageName)
	}
}

func TestProcessBoundsDetailConcurrency(t *testing.T) {
	t.Parallel()

	var stubs []procurement.PackageStub
	for i := range 30 {
		stubs = append(stubs, stub(fmt.Sprintf("P%d", i), "Pembangunan"))
	}
	details := &fakeDetails{delay: func(string) time.Duration { return 5 * time.Millisecond }}
	p := NewUnitProcessor(&fakePackages{byUnit: map[string][]procurement.PackageStub{"U1": stubs}}, details, nil, nil, nil)

	res := p.Process(context.Background(), procurement.OrganizationalUnit{ID: "U1"}, "2025", 3)
	require.Equal(t, procurement.UnitStatusOK, res.Status)
	require.LessOrEqual(t, details.peak.Load(), int32(3))
	require.Positive(t, details.peak.Load())
}

func TestProcessCanceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	var stubs []procurement.PackageStub
	for i := range 10 {
		stubs = append(stubs, stub(fmt.Sprintf("P%d", i), "Iklan"))
	}
	details := &fakeDetails{
		hook:  func(string) { cancel() },
		delay: func(string) time.Duration { return time.Minute },
	}
	p := NewUnitProcessor(&fakePackages{byUnit: map[string][]procurement.PackageStub{"U1": stubs}}, details, nil, nil, nil)

	res := p.Process(ctx, procurement.OrganizationalUnit{ID: "U1"}, "2025", 2)
	require.Equal(t, procurement.UnitStatusError, res.Status)
	require.True(t, errors.Is(res.Err, context.Canceled))
}
