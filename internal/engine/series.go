package engine

import (
	"sort"
	"strings"
)

// Point is one period of a time series.
type Point struct {
	Period int     `json:"period"`
	Value  float64 `json:"value"`
}

// TimeSeries is ordered strictly ascending by period with no duplicates.
type TimeSeries []Point

// First returns the earliest point.
func (s TimeSeries) First() (Point, bool) {
	if len(s) == 0 {
		return Point{}, false
	}
	return s[0], true
}

// Last returns the latest point.
func (s TimeSeries) Last() (Point, bool) {
	if len(s) == 0 {
		return Point{}, false
	}
	return s[len(s)-1], true
}

// Periods returns the periods of the series in order.
func (s TimeSeries) Periods() []int {
	out := make([]int, len(s))
	for i, p := range s {
		out[i] = p.Period
	}
	return out
}

// BuildTimeSeries sums the metric per period over the rows matching every
// filter. Filters narrow the row set before aggregation. Rows with a missing
// metric or a period that is not an integer are excluded; duplicate periods
// are merged by summation.
func BuildTimeSeries(rows []Row, periodField Field, metric string, filters ...Match) (TimeSeries, error) {
	if strings.TrimSpace(metric) == "" {
		return nil, ErrEmptyMetric
	}
	if periodField == "" {
		periodField = FieldPeriod
	}
	sums := map[int]float64{}
	for _, row := range rows {
		if !row.Matches(filters...) {
			continue
		}
		period, ok := ParsePeriod(row.Value(periodField))
		if !ok {
			continue
		}
		v, ok := row.Metric(metric)
		if !ok {
			continue
		}
		sums[period] += v
	}
	out := make(TimeSeries, 0, len(sums))
	for p, v := range sums {
		out = append(out, Point{Period: p, Value: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Period < out[j].Period })
	return out, nil
}
