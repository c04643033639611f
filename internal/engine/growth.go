package engine

import (
	"math"
)

// Change is the percentage change of a period against the one before it.
type Change struct {
	Period  int     `json:"period"`
	Percent float64 `json:"percent"`
}

// Growth summarizes a series between its endpoints.
type Growth struct {
	First          Point   `json:"first"`
	Last           Point   `json:"last"`
	TotalGrowthPct float64 `json:"total_growth_pct"`
	CAGR           float64 `json:"cagr"`
}

func endpoints(series TimeSeries) (Point, Point, error) {
	if len(series) < 2 {
		return Point{}, Point{}, ErrInsufficientData
	}
	return series[0], series[len(series)-1], nil
}

// TotalGrowthPct returns the percentage change from the first to the last
// point. A first value of zero or below yields 0.
func TotalGrowthPct(series TimeSeries) (float64, error) {
	first, last, err := endpoints(series)
	if err != nil {
		return 0, err
	}
	if first.Value <= 0 {
		return 0, nil
	}
	return (last.Value - first.Value) / first.Value * 100, nil
}

// CAGR returns the compound annual growth rate, in percent, implied by the
// first and last points. A first value of zero or below yields 0. When the
// rate has no real value, e.g. a negative last value over a multi-year span,
// ErrUndefinedGrowth is returned.
func CAGR(series TimeSeries) (float64, error) {
	first, last, err := endpoints(series)
	if err != nil {
		return 0, err
	}
	if first.Value <= 0 {
		return 0, nil
	}
	span := float64(last.Period - first.Period)
	if span == 0 {
		return 0, ErrInsufficientData
	}
	rate := (math.Pow(last.Value/first.Value, 1/span) - 1) * 100
	if math.IsNaN(rate) || math.IsInf(rate, 0) {
		return 0, ErrUndefinedGrowth
	}
	return rate, nil
}

// YearOverYear returns the percentage change of each period against its
// predecessor. The first period has no predecessor and is not reported;
// periods whose predecessor is zero are omitted.
func YearOverYear(series TimeSeries) ([]Change, error) {
	if len(series) < 2 {
		return nil, ErrInsufficientData
	}
	out := make([]Change, 0, len(series)-1)
	for i := 1; i < len(series); i++ {
		prev := series[i-1].Value
		if prev == 0 {
			continue
		}
		out = append(out, Change{
			Period:  series[i].Period,
			Percent: (series[i].Value - prev) / prev * 100,
		})
	}
	return out, nil
}

// Summarize computes total growth and CAGR for the series.
func Summarize(series TimeSeries) (Growth, error) {
	first, last, err := endpoints(series)
	if err != nil {
		return Growth{}, err
	}
	g := Growth{First: first, Last: last}
	if g.TotalGrowthPct, err = TotalGrowthPct(series); err != nil {
		return g, err
	}
	if g.CAGR, err = CAGR(series); err != nil {
		return g, err
	}
	return g, nil
}
