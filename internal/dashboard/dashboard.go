// Package dashboard turns a dataset snapshot plus view parameters into the
// figures shown by each analysis view. Every function is a full recompute
// over the immutable snapshot; callers may memoize on (snapshot, params).
package dashboard

import (
	"errors"
	"fmt"
	"strings"

	"github.com/samber/lo"
	"github.com/vinodismyname/mfgstats/config"
	"github.com/vinodismyname/mfgstats/internal/dataset"
	"github.com/vinodismyname/mfgstats/internal/engine"
)

// ErrNoData indicates the selection produced no numeric observations.
var ErrNoData = errors.New("dashboard: no data for selection")

// Overview lists the options a client can choose from.
type Overview struct {
	Path         string       `json:"path,omitempty"`
	Rows         int          `json:"rows"`
	Headers      []string     `json:"headers"`
	MetricColumn string       `json:"metric_column,omitempty"`
	Years        []int        `json:"years"`
	States       []string     `json:"states"`
	Sectors      []string     `json:"sectors"`
	Sources      []string     `json:"sources"`
	Meta         dataset.Meta `json:"meta"`
}

// Describe summarizes the snapshot for control panels.
func Describe(snap *dataset.Snapshot) Overview {
	return Overview{
		Path:         snap.Path(),
		Rows:         snap.Len(),
		Headers:      snap.Headers(),
		MetricColumn: snap.MetricColumn(),
		Years:        snap.Periods(),
		States:       snap.Regions(),
		Sectors:      snap.Categories(),
		Sources:      snap.Sources(),
		Meta:         snap.Meta(),
	}
}

// SectorParams selects the sector ranking view. Compare names sectors from
// the ranking, by description or display label; empty means the first three.
type SectorParams struct {
	TopN    int
	Years   []int
	Compare []string
}

// Comparison is one selected entry with its share of the selection total.
type Comparison struct {
	Name    string  `json:"name"`
	Value   float64 `json:"value"`
	Percent float64 `json:"percent"`
}

// SectorStat is one ranked sector.
type SectorStat struct {
	Sector  string  `json:"sector"`
	Label   string  `json:"label"`
	Value   float64 `json:"value"`
	Percent float64 `json:"percent"`
}

// SectorView ranks sectors by summed metric.
type SectorView struct {
	Metric        string       `json:"metric"`
	TopN          int          `json:"top_n"`
	Sectors       []SectorStat `json:"sectors"`
	Total         float64      `json:"total"`
	Average       float64      `json:"average"`
	Largest       *SectorStat  `json:"largest,omitempty"`
	AllSectors    bool         `json:"all_sectors_fallback"`
	DistinctCount int          `json:"distinct_sectors"`
	Comparison    []Comparison `json:"comparison"`
}

// Sectors ranks manufacturing sectors by summed metric and reports the total,
// average and largest of the top N. When no description mentions
// manufacturing every sector is ranked and AllSectors is set.
func Sectors(snap *dataset.Snapshot, p SectorParams) (SectorView, error) {
	var view SectorView
	metric, err := snap.Metric()
	if err != nil {
		return view, err
	}
	view.Metric = metric
	view.TopN = clampTopN(p.TopN)

	rows, fallback := dataset.Manufacturing(dataset.InYears(snap.Rows(), p.Years))
	view.AllSectors = fallback

	res, err := engine.GroupAndSum(rows, []engine.Field{engine.FieldCategory}, metric)
	if err != nil {
		return view, err
	}
	if res.Empty() {
		return view, ErrNoData
	}
	view.DistinctCount = res.Len()

	top := engine.TopN(res, view.TopN)
	shares := engine.SharesOf(top)
	for _, e := range top {
		pct, _ := shares.Rounded(e.Key)
		view.Sectors = append(view.Sectors, SectorStat{
			Sector:  e.Key.String(),
			Label:   engine.ShortenDefault(e.Key.String()),
			Value:   e.Value,
			Percent: pct,
		})
	}
	view.Total = shares.Total
	view.Average = shares.Total / float64(len(top))
	largest := view.Sectors[0]
	view.Largest = &largest
	view.Comparison = compare(top, p.Compare, engine.ShortenDefault)
	return view, nil
}

// compare picks entries by name, or alias(name) when alias is set, keeping
// ranking order. With no names the first DefaultCompareCount entries are
// used. Percentages are shares of the picked entries only.
func compare(entries []engine.Entry, names []string, alias func(string) string) []Comparison {
	picked := entries[:min(config.DefaultCompareCount, len(entries))]
	if len(names) > 0 {
		want := lo.Map(names, func(n string, _ int) string { return strings.TrimSpace(n) })
		picked = lo.Filter(entries, func(e engine.Entry, _ int) bool {
			name := e.Key.String()
			return lo.Contains(want, name) || (alias != nil && lo.Contains(want, alias(name)))
		})
	}
	shares := engine.SharesOf(picked)
	out := make([]Comparison, 0, len(picked))
	for _, e := range picked {
		pct, _ := shares.Rounded(e.Key)
		out = append(out, Comparison{Name: e.Key.String(), Value: e.Value, Percent: pct})
	}
	return out
}

func clampTopN(n int) int {
	switch {
	case n == 0:
		return config.DefaultTopSectors
	case n < config.MinTopSectors:
		return config.MinTopSectors
	case n > config.MaxTopSectors:
		return config.MaxTopSectors
	}
	return n
}

// RegionParams selects the regional distribution view. Compare names
// states; empty means the three largest.
type RegionParams struct {
	Sector  string
	Years   []int
	TopN    int
	Compare []string
}

// RegionStat is one state's total for the selected sector.
type RegionStat struct {
	State   string  `json:"state"`
	Value   float64 `json:"value"`
	Percent float64 `json:"percent"`
}

// RegionView distributes one sector across states.
type RegionView struct {
	Sector      string       `json:"sector"`
	SectorLabel string       `json:"sector_label"`
	Metric      string       `json:"metric"`
	States      []RegionStat `json:"states"`
	Top         []RegionStat `json:"top"`
	Total       float64      `json:"total"`
	Comparison  []Comparison `json:"comparison"`
}

// Regions sums the selected sector per state, sorted descending, with each
// state's percentage of the national total rounded to one decimal.
func Regions(snap *dataset.Snapshot, p RegionParams) (RegionView, error) {
	var view RegionView
	sector := strings.TrimSpace(p.Sector)
	if sector == "" {
		return view, fmt.Errorf("dashboard: sector is required")
	}
	metric, err := snap.Metric()
	if err != nil {
		return view, err
	}
	view.Sector = sector
	view.SectorLabel = engine.ShortenLabel(sector, 0, engine.DefaultLabelPrefix)
	view.Metric = metric

	rows := dataset.InYears(snap.Where(engine.Match{Field: engine.FieldCategory, Value: sector}), p.Years)
	res, err := engine.GroupAndSum(rows, []engine.Field{engine.FieldRegion}, metric)
	if err != nil {
		return view, err
	}
	if res.Empty() {
		return view, ErrNoData
	}

	shares := engine.PercentageShares(res)
	ranked := engine.TopN(res, res.Len())
	for _, e := range ranked {
		pct, _ := shares.Rounded(e.Key)
		view.States = append(view.States, RegionStat{State: e.Key.String(), Value: e.Value, Percent: pct})
	}
	view.Total = shares.Total

	n := p.TopN
	if n <= 0 {
		n = config.DefaultTopStates
	}
	if n > len(view.States) {
		n = len(view.States)
	}
	view.Top = view.States[:n]
	view.Comparison = compare(ranked, p.Compare, nil)
	return view, nil
}

// TrendParams selects the time series view. Empty State or Sector means all.
type TrendParams struct {
	State  string
	Sector string
}

// TrendView is a yearly series with growth figures.
type TrendView struct {
	State            string            `json:"state"`
	Sector           string            `json:"sector"`
	Title            string            `json:"title"`
	Metric           string            `json:"metric"`
	Series           engine.TimeSeries `json:"series"`
	Growth           *engine.Growth    `json:"growth,omitempty"`
	YearOverYear     []engine.Change   `json:"year_over_year,omitempty"`
	InsufficientData bool              `json:"insufficient_data"`
	UndefinedCAGR    bool              `json:"undefined_cagr"`
}

// Trend builds the yearly series for the selection. With fewer than two
// years the series is returned with InsufficientData set and no growth
// figures. An undefined CAGR leaves total growth populated and sets
// UndefinedCAGR.
func Trend(snap *dataset.Snapshot, p TrendParams) (TrendView, error) {
	view := TrendView{State: strings.TrimSpace(p.State), Sector: strings.TrimSpace(p.Sector)}
	view.Title = trendTitle(view.State, view.Sector)
	metric, err := snap.Metric()
	if err != nil {
		return view, err
	}
	view.Metric = metric

	var filters []engine.Match
	if view.State != "" {
		filters = append(filters, engine.Match{Field: engine.FieldRegion, Value: view.State})
	}
	if view.Sector != "" {
		filters = append(filters, engine.Match{Field: engine.FieldCategory, Value: view.Sector})
	}
	series, err := engine.BuildTimeSeries(snap.Rows(), engine.FieldPeriod, metric, filters...)
	if err != nil {
		return view, err
	}
	if len(series) == 0 {
		return view, ErrNoData
	}
	view.Series = series

	growth, err := engine.Summarize(series)
	switch {
	case errors.Is(err, engine.ErrInsufficientData):
		view.InsufficientData = true
		return view, nil
	case errors.Is(err, engine.ErrUndefinedGrowth):
		view.UndefinedCAGR = true
	case err != nil:
		return view, err
	}
	view.Growth = &growth

	yoy, err := engine.YearOverYear(series)
	if err != nil {
		return view, err
	}
	view.YearOverYear = yoy
	return view, nil
}

func trendTitle(state, sector string) string {
	label := engine.ShortenLabel(sector, 0, engine.DefaultLabelPrefix)
	switch {
	case state == "" && sector == "":
		return "Overall Growth in Manufacturing (All Sectors, All States)"
	case state == "":
		return fmt.Sprintf("Growth in %s (All States)", label)
	case sector == "":
		return fmt.Sprintf("Overall Manufacturing Growth in %s (All Sectors)", state)
	}
	return fmt.Sprintf("Growth in %s in %s", label, state)
}
