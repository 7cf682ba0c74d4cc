package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/JakeFAU/sirup-adspend/internal/procurement"
)

func sampleRecords() []procurement.PackageRecord {
	return []procurement.PackageRecord{
		{
			UnitName: "Dinas Kominfo", PackageName: "Pengadaan Iklan Televisi",
			DetailText: "Spot iklan, 30 detik", SelectionMethod: "E-Purchasing", Pagu: "150000000",
		},
		{
			UnitName: "Sekretariat DPRD", PackageName: "Publikasi Kegiatan",
			SelectionMethod: "Pengadaan Langsung", Pagu: "n/a",
		},
	}
}

func TestWriteCSV(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sampleRecords()))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	require.Equal(t, Columns, rows[0])
	require.Equal(t, []string{
		"1", "Dinas Kominfo", "Pengadaan Iklan Televisi", "Spot iklan, 30 detik", "E-Purchasing", "150000000",
	}, rows[1])
	require.Equal(t, "2", rows[2][0])
}

func TestWriteCSVEmpty(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, nil))
	require.Equal(t, "No,satuanKerja,namaPaket,uraianPekerjaan,metodePemilihan,pagu\n", buf.String())
}

func TestWriteXLSX(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, sampleRecords()))

	book, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer func() { require.NoError(t, book.Close()) }()

	rows, err := book.GetRows(sheetName)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	require.Equal(t, Columns, rows[0])
	require.Equal(t, "Pengadaan Iklan Televisi", rows[1][2])
	require.Equal(t, "150000000", rows[1][5])
	require.Equal(t, "n/a", rows[2][5])
}

func TestWriteJSON(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, sampleRecords()))

	var rows []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rows))
	require.Len(t, rows, 2)
	require.EqualValues(t, 1, rows[0]["No"])
	require.Equal(t, "Dinas Kominfo", rows[0]["satuanKerja"])
	require.Equal(t, "", rows[1]["uraianPekerjaan"])
}

func TestRenderTable(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	RenderTable(&buf, sampleRecords())
	out := buf.String()
	require.Contains(t, out, "Pengadaan Iklan Televisi")
	require.Contains(t, out, "Total paket")
}

func TestWriteFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "out", FileName("D1005", "2025", FormatCSV))
	require.NoError(t, WriteFile(path, FormatCSV, sampleRecords()))
	require.FileExists(t, path)
	require.Equal(t, "belanja_iklan_D1005_2025.csv", filepath.Base(path))
}

func TestParseFormat(t *testing.T) {
	t.Parallel()

	f, err := ParseFormat("")
	require.NoError(t, err)
	require.Equal(t, FormatJSON, f)

	f, err = ParseFormat("XLSX")
	require.NoError(t, err)
	require.Equal(t, FormatXLSX, f)
	require.Contains(t, f.ContentType(), "spreadsheetml")

	_, err = ParseFormat("pdf")
	require.Error(t, err)
}
