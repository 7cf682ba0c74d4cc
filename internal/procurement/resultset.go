package procurement

type recordKey struct {
	unit, pkg, detail string
}

// Dedup removes records sharing (UnitName, PackageName, DetailText), keeping
// the first occurrence and the original order. Running it twice is a no-op.
func Dedup(records []PackageRecord) []PackageRecord {
	if len(records) == 0 {
		return []PackageRecord{}
	}
	seen := make(map[recordKey]struct{}, len(records))
	out := make([]PackageRecord, 0, len(records))
	for _, rec := range records {
		key := recordKey{unit: rec.UnitName, pkg: rec.PackageName, detail: rec.DetailText}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, rec)
	}
	return out
}

// Row is a numbered line of the output table.
type Row struct {
	No int `json:"No"`
	PackageRecord
}

// Rows numbers records starting at 1.
func Rows(records []PackageRecord) []Row {
	rows := make([]Row, len(records))
	for i, rec := range records {
		rows[i] = Row{No: i + 1, PackageRecord: rec}
	}
	return rows
}
