package procurement

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDedupKeepsFirstSeenOrder(t *testing.T) {
	t.Parallel()

	records := []PackageRecord{
		{UnitName: "Dinas A", PackageName: "Iklan Radio", DetailText: "spot", Pagu: "100"},
		{UnitName: "Dinas B", PackageName: "Publikasi", DetailText: ""},
		{UnitName: "Dinas A", PackageName: "Iklan Radio", DetailText: "spot", Pagu: "999"},
		{UnitName: "Dinas A", PackageName: "Iklan Radio", DetailText: "spot pagi"},
	}

	got := Dedup(records)
	require.Len(t, got, 3)
	require.Equal(t, "100", got[0].Pagu, "first occurrence must win")
	require.Equal(t, "Dinas B", got[1].UnitName)
	require.Equal(t, "spot pagi", got[2].DetailText)
}

func TestDedupIsIdempotent(t *testing.T) {
	t.Parallel()

	records := []PackageRecord{
		{UnitName: "U1", PackageName: "Pengadaan Iklan Televisi"},
		{UnitName: "U1", PackageName: "Pengadaan Iklan Televisi"},
		{UnitName: "U2", PackageName: "Sewa Media Online", DetailText: "banner"},
		{UnitName: "U2", PackageName: "Sewa Media Online", DetailText: "banner"},
	}

	once := Dedup(records)
	twice := Dedup(once)
	require.Equal(t, once, twice)
	require.Len(t, once, 2)
}

func TestDedupEmpty(t *testing.T) {
	t.Parallel()

	require.NotNil(t, Dedup(nil))
	require.Empty(t, Dedup(nil))
}

func TestRowsNumberFromOne(t *testing.T) {
	t.Parallel()

	rows := Rows([]PackageRecord{{PackageName: "a"}, {PackageName: "b"}})
	require.Equal(t, 1, rows[0].No)
	require.Equal(t, 2, rows[1].No)
	require.Equal(t, "b", rows[1].PackageName)
}
