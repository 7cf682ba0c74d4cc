// Package export renders a run's result set as CSV, XLSX, JSON, or a
// terminal table. Every format uses the same column order.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/xuri/excelize/v2"

	"github.com/JakeFAU/sirup-adspend/internal/procurement"
)

// Format names an output encoding.
type Format string

// Supported formats.
const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
	FormatJSON Format = "json"
)

// Columns is the header row shared by the file formats.
var Columns = []string{"No", "satuanKerja", "namaPaket", "uraianPekerjaan", "metodePemilihan", "pagu"}

const sheetName = "belanja_iklan"

// ParseFormat validates a format name; "" selects JSON.
func ParseFormat(name string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(name))); f {
	case "":
		return FormatJSON, nil
	case FormatCSV, FormatXLSX, FormatJSON:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported format %q", name)
	}
}

// ContentType returns the MIME type for f.
func (f Format) ContentType() string {
	switch f {
	case FormatCSV:
		return "text/csv; charset=utf-8"
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return "application/json"
	}
}

// FileName returns the conventional report name, e.g. belanja_iklan_D1005_2025.csv.
func FileName(orgGroupID, fiscalYear string, f Format) string {
	return fmt.Sprintf("belanja_iklan_%s_%s.%s", orgGroupID, fiscalYear, strings.TrimPrefix(string(f), "."))
}

// Write encodes records to w in format f.
func Write(w io.Writer, f Format, records []procurement.PackageRecord) error {
	switch f {
	case FormatCSV:
		return WriteCSV(w, records)
	case FormatXLSX:
		return WriteXLSX(w, records)
	case FormatJSON:
		return WriteJSON(w, records)
	default:
		return fmt.Errorf("unsupported format %q", f)
	}
}

// WriteFile writes records to path, creating parent directories.
func WriteFile(path string, f Format, records []procurement.PackageRecord) (err error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create export dir: %w", err)
		}
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create export file: %w", err)
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close export file: %w", closeErr)
		}
	}()
	return Write(file, f, records)
}

// WriteCSV writes a UTF-8 CSV with a header row.
func WriteCSV(w io.Writer, records []procurement.PackageRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, row := range procurement.Rows(records) {
		if err := cw.Write([]string{
			strconv.Itoa(row.No),
			row.UnitName,
			row.PackageName,
			row.DetailText,
			row.SelectionMethod,
			row.Pagu,
		}); err != nil {
			return fmt.Errorf("write csv row %d: %w", row.No, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

// WriteXLSX writes a single-sheet workbook. Pagu is stored as a number when
// it parses as one.
func WriteXLSX(w io.Writer, records []procurement.PackageRecord) (err error) {
	book := excelize.NewFile()
	defer func() {
		if closeErr := book.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close workbook: %w", closeErr)
		}
	}()
	if err := book.SetSheetName("Sheet1", sheetName); err != nil {
		return fmt.Errorf("name sheet: %w", err)
	}

	header := make([]any, len(Columns))
	for i, c := range Columns {
		header[i] = c
	}
	if err := book.SetSheetRow(sheetName, "A1", &header); err != nil {
		return fmt.Errorf("write xlsx header: %w", err)
	}
	for i, row := range procurement.Rows(records) {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("xlsx cell for row %d: %w", row.No, err)
		}
		values := []any{row.No, row.UnitName, row.PackageName, row.DetailText, row.SelectionMethod, paguValue(row.Pagu)}
		if err := book.SetSheetRow(sheetName, cell, &values); err != nil {
			return fmt.Errorf("write xlsx row %d: %w", row.No, err)
		}
	}
	if err := book.SetColWidth(sheetName, "B", "E", 40); err != nil {
		return fmt.Errorf("set column width: %w", err)
	}
	if err := book.Write(w); err != nil {
		return fmt.Errorf("write xlsx: %w", err)
	}
	return nil
}

// WriteJSON writes the numbered rows as a JSON array.
func WriteJSON(w io.Writer, records []procurement.PackageRecord) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(procurement.Rows(records)); err != nil {
		return fmt.Errorf("write json: %w", err)
	}
	return nil
}

// RenderTable prints records as a terminal table with a total footer.
func RenderTable(w io.Writer, records []procurement.PackageRecord) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"No", "Satuan Kerja", "Nama Paket", "Uraian Pekerjaan", "Metode Pemilihan", "Pagu"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, WidthMax: 30},
		{Number: 3, WidthMax: 40},
		{Number: 4, WidthMax: 50},
		{Number: 6, Align: text.AlignRight},
	})
	for _, row := range procurement.Rows(records) {
		t.AppendRow(table.Row{row.No, row.UnitName, row.PackageName, row.DetailText, row.SelectionMethod, row.Pagu})
	}
	t.AppendFooter(table.Row{"", "", "", "", "Total paket", len(records)})
	t.Render()
}

func paguValue(raw string) any {
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f
	}
	return raw
}
