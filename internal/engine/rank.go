package engine

import (
	"sort"
)

// TopN returns the n largest groups in descending order. Ties keep the order
// in which the groups were first encountered. When n exceeds the number of
// groups all of them are returned; n <= 0 returns none.
func TopN(result AggregateResult, n int) []Entry {
	if n <= 0 {
		return nil
	}
	entries := result.Entries()
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Value > entries[j].Value
	})
	if n > len(entries) {
		n = len(entries)
	}
	return entries[:n]
}

// Share is a group's unrounded percentage of the total.
type Share struct {
	Key     GroupKey
	Value   float64
	Percent float64
}

// Shares holds percentage shares in the group order of the source result.
type Shares struct {
	Total  float64
	order  []GroupKey
	shares map[GroupKey]float64
	values map[GroupKey]float64
}

// Percent returns the unrounded share of key, in percent.
func (s Shares) Percent(key GroupKey) (float64, bool) {
	p, ok := s.shares[key]
	return p, ok
}

// Rounded returns the share of key rounded to one decimal place.
func (s Shares) Rounded(key GroupKey) (float64, bool) {
	p, ok := s.shares[key]
	return Round1(p), ok
}

// List returns every share in source order.
func (s Shares) List() []Share {
	out := make([]Share, 0, len(s.order))
	for _, k := range s.order {
		out = append(out, Share{Key: k, Value: s.values[k], Percent: s.shares[k]})
	}
	return out
}

// Len returns the number of groups.
func (s Shares) Len() int { return len(s.order) }

// PercentageShares divides each group's value by the total of all groups.
// When the total is zero every share is zero. Values are kept unrounded;
// round with Round1 at the presentation boundary.
func PercentageShares(result AggregateResult) Shares {
	return SharesOf(result.Entries())
}

// SharesOf computes percentage shares over an explicit entry list, such as
// the output of TopN.
func SharesOf(entries []Entry) Shares {
	s := Shares{
		shares: make(map[GroupKey]float64, len(entries)),
		values: make(map[GroupKey]float64, len(entries)),
	}
	for _, e := range entries {
		if _, seen := s.values[e.Key]; !seen {
			s.order = append(s.order, e.Key)
		}
		s.values[e.Key] += e.Value
		s.Total += e.Value
	}
	for _, k := range s.order {
		if s.Total == 0 {
			s.shares[k] = 0
			continue
		}
		s.shares[k] = s.values[k] / s.Total * 100
	}
	return s
}
