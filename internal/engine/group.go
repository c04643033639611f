package engine

import (
	"strings"
)

// keySep separates the parts of a GroupKey. It cannot appear in trimmed
// spreadsheet text in practice.
const keySep = "\x1f"

// GroupKey identifies one aggregation bucket: the ordered tuple of grouping
// field values. It is comparable and usable as a map key.
type GroupKey struct {
	joined string
}

// NewGroupKey builds a key from ordered field values.
func NewGroupKey(parts ...string) GroupKey {
	return GroupKey{joined: strings.Join(parts, keySep)}
}

// Parts returns the ordered field values of the key.
func (k GroupKey) Parts() []string {
	return strings.Split(k.joined, keySep)
}

// Part returns the i-th field value, or "" when out of range.
func (k GroupKey) Part(i int) string {
	parts := k.Parts()
	if i < 0 || i >= len(parts) {
		return ""
	}
	return parts[i]
}

// String renders the key for display, joining parts with " / ".
func (k GroupKey) String() string {
	return strings.ReplaceAll(k.joined, keySep, " / ")
}

// Entry pairs a group with its summed metric.
type Entry struct {
	Key   GroupKey
	Value float64
}

// AggregateResult maps group keys to summed metrics. Keys are kept in the
// order they were first encountered in the input.
type AggregateResult struct {
	Fields []Field
	order  []GroupKey
	sums   map[GroupKey]float64
	rows   int
}

// Len returns the number of distinct groups.
func (r AggregateResult) Len() int { return len(r.order) }

// Empty reports whether no row contributed a numeric metric.
func (r AggregateResult) Empty() bool { return len(r.order) == 0 }

// Rows returns the number of rows whose metric coerced successfully.
func (r AggregateResult) Rows() int { return r.rows }

// Value returns the sum for key.
func (r AggregateResult) Value(key GroupKey) (float64, bool) {
	v, ok := r.sums[key]
	return v, ok
}

// Keys returns the group keys in first-encountered order.
func (r AggregateResult) Keys() []GroupKey {
	out := make([]GroupKey, len(r.order))
	copy(out, r.order)
	return out
}

// Entries returns every group with its sum in first-encountered order.
func (r AggregateResult) Entries() []Entry {
	out := make([]Entry, 0, len(r.order))
	for _, k := range r.order {
		out = append(out, Entry{Key: k, Value: r.sums[k]})
	}
	return out
}

// Total returns the sum over all groups.
func (r AggregateResult) Total() float64 {
	var total float64
	for _, k := range r.order {
		total += r.sums[k]
	}
	return total
}

// GroupAndSum partitions rows by the values of fields and sums the metric
// column within each partition. Rows whose metric does not coerce to a number
// are excluded rather than counted as zero; if none coerce the result is
// empty and the error is nil.
func GroupAndSum(rows []Row, fields []Field, metric string) (AggregateResult, error) {
	res := AggregateResult{sums: map[GroupKey]float64{}}
	if len(fields) == 0 {
		return res, ErrNoGroupFields
	}
	if strings.TrimSpace(metric) == "" {
		return res, ErrEmptyMetric
	}
	res.Fields = append([]Field(nil), fields...)

	parts := make([]string, len(fields))
	for _, row := range rows {
		v, ok := row.Metric(metric)
		if !ok {
			continue
		}
		for i, f := range fields {
			parts[i] = row.Value(f)
		}
		key := NewGroupKey(parts...)
		if _, seen := res.sums[key]; !seen {
			res.order = append(res.order, key)
		}
		res.sums[key] += v
		res.rows++
	}
	return res, nil
}
