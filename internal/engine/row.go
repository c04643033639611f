package engine

import (
	"strings"
)

// Field names a row attribute used for grouping or filtering. Values other
// than the predefined constants refer to passthrough columns by header name.
type Field string

const (
	FieldCategory Field = "category"
	FieldRegion   Field = "region"
	FieldPeriod   Field = "period"
	FieldSource   Field = "source"
)

// Row is one observation loaded from a sheet.
type Row struct {
	Category string
	Region   string
	Period   string
	Source   string
	// Cells holds every column of the source row keyed by header, including
	// the metric column and the columns mapped onto the fields above.
	Cells map[string]string
}

// Value returns the trimmed value of field for the row.
func (r Row) Value(field Field) string {
	switch field {
	case FieldCategory:
		return strings.TrimSpace(r.Category)
	case FieldRegion:
		return strings.TrimSpace(r.Region)
	case FieldPeriod:
		return strings.TrimSpace(r.Period)
	case FieldSource:
		return strings.TrimSpace(r.Source)
	}
	return strings.TrimSpace(r.Cells[string(field)])
}

// Metric coerces the named column to a number. ok is false when the cell is
// missing or not numeric.
func (r Row) Metric(column string) (float64, bool) {
	return ParseNumber(r.Cells[column])
}

// Match restricts rows to those whose field equals Value exactly (after trimming).
type Match struct {
	Field Field
	Value string
}

// Matches reports whether the row satisfies every filter.
func (r Row) Matches(filters ...Match) bool {
	for _, m := range filters {
		if r.Value(m.Field) != strings.TrimSpace(m.Value) {
			return false
		}
	}
	return true
}
