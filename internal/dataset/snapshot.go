package dataset

import (
	"sort"
	"strings"

	"github.com/samber/lo"
	"github.com/vinodismyname/mfgstats/internal/engine"
)

// Meta records how a snapshot was loaded.
type Meta struct {
	Sheets         []string `json:"sheets"`
	ProcessedRows  int      `json:"processed_rows"`
	ProcessedCells int      `json:"processed_cells"`
	SkippedRows    int      `json:"skipped_rows"`
	MaxCells       int      `json:"max_cells"`
	Truncated      bool     `json:"truncated"`
}

// Snapshot is an immutable row set. Every view is recomputed from it; nothing
// mutates it after construction, so it is safe for concurrent readers.
type Snapshot struct {
	path    string
	headers []string
	metric  string
	rows    []engine.Row
	meta    Meta
}

// NewSnapshot builds a snapshot over rows and resolves the metric column.
// The resolution error is returned alongside the snapshot so callers can
// still list or export data without a usable metric.
func NewSnapshot(path string, headers []string, rows []engine.Row, preferredMetric string, meta Meta) (*Snapshot, error) {
	s := &Snapshot{
		path:    path,
		headers: append([]string(nil), headers...),
		rows:    rows,
		meta:    meta,
	}
	metric, err := ResolveMetricColumn(s.headers, preferredMetric)
	s.metric = metric
	return s, err
}

// Path returns the canonical source path, if any.
func (s *Snapshot) Path() string { return s.path }

// Headers returns column headers in first-seen order across sheets.
func (s *Snapshot) Headers() []string { return append([]string(nil), s.headers...) }

// MetricColumn returns the resolved metric column, or "" when none resolved.
func (s *Snapshot) MetricColumn() string { return s.metric }

// Meta returns load metadata.
func (s *Snapshot) Meta() Meta { return s.meta }

// Len returns the number of rows.
func (s *Snapshot) Len() int { return len(s.rows) }

// Rows returns the row slice. Callers must treat it as read-only.
func (s *Snapshot) Rows() []engine.Row { return s.rows }

// Metric returns the metric column or an error when none could be resolved.
func (s *Snapshot) Metric() (string, error) {
	if s.metric == "" {
		return "", &MissingColumnError{Preferred: ColumnValue, Headers: s.Headers()}
	}
	return s.metric, nil
}

// Where returns rows matching every filter. Filters with an empty value are ignored.
func (s *Snapshot) Where(filters ...engine.Match) []engine.Row {
	active := lo.Filter(filters, func(m engine.Match, _ int) bool {
		return strings.TrimSpace(m.Value) != ""
	})
	if len(active) == 0 {
		return s.rows
	}
	return lo.Filter(s.rows, func(r engine.Row, _ int) bool {
		return r.Matches(active...)
	})
}

// Distinct returns the sorted non-empty values of field.
func (s *Snapshot) Distinct(field engine.Field) []string {
	vals := lo.Uniq(lo.FilterMap(s.rows, func(r engine.Row, _ int) (string, bool) {
		v := r.Value(field)
		return v, v != ""
	}))
	sort.Strings(vals)
	return vals
}

// Categories returns the distinct sector descriptions.
func (s *Snapshot) Categories() []string { return s.Distinct(engine.FieldCategory) }

// Regions returns the distinct states.
func (s *Snapshot) Regions() []string { return s.Distinct(engine.FieldRegion) }

// Sources returns the distinct source sheets.
func (s *Snapshot) Sources() []string { return s.Distinct(engine.FieldSource) }

// Periods returns the distinct integer years, ascending.
func (s *Snapshot) Periods() []int {
	years := lo.Uniq(lo.FilterMap(s.rows, func(r engine.Row, _ int) (int, bool) {
		return engine.ParsePeriod(r.Period)
	}))
	sort.Ints(years)
	return years
}

// InYears keeps rows whose year is one of years. An empty list keeps all rows.
func InYears(rows []engine.Row, years []int) []engine.Row {
	if len(years) == 0 {
		return rows
	}
	return lo.Filter(rows, func(r engine.Row, _ int) bool {
		y, ok := engine.ParsePeriod(r.Period)
		return ok && lo.Contains(years, y)
	})
}

// Manufacturing keeps rows whose sector description mentions manufacturing.
// When none do, all rows are returned and fallback is true.
func Manufacturing(rows []engine.Row) (out []engine.Row, fallback bool) {
	out = lo.Filter(rows, func(r engine.Row, _ int) bool {
		return strings.Contains(strings.ToLower(r.Category), "manufactur")
	})
	if len(out) == 0 {
		return rows, true
	}
	return out, false
}
