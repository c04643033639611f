package dashboard

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vinodismyname/mfgstats/internal/dataset"
	"github.com/vinodismyname/mfgstats/internal/engine"
)

var headers = []string{"Year", "State", "NIC Description", "Value", "Source"}

func row(year, state, sector, value string) engine.Row {
	return engine.Row{
		Period: year, Region: state, Category: sector, Source: state,
		Cells: map[string]string{"Year": year, "State": state, "NIC Description": sector, "Value": value, "Source": state},
	}
}

func snapshot(t *testing.T, rows ...engine.Row) *dataset.Snapshot {
	t.Helper()
	snap, err := dataset.NewSnapshot("", headers, rows, "", dataset.Meta{})
	require.NoError(t, err)
	return snap
}

const (
	food    = "Manufacture of food products"
	textile = "Manufacture of textiles"
	chem    = "Manufacture of chemicals and chemical products"
)

func sample(t *testing.T) *dataset.Snapshot {
	return snapshot(t,
		row("2019", "Kerala", food, "100"),
		row("2019", "Haryana", food, "50"),
		row("2019", "Kerala", textile, "30"),
		row("2020", "Kerala", food, "150"),
		row("2020", "Haryana", textile, "45"),
		row("2020", "Haryana", chem, "25"),
		row("2020", "Haryana", "Mining of coal", "999"),
		row("2021", "Kerala", food, "bad"),
	)
}

func TestSectors_RanksManufacturingOnly(t *testing.T) {
	view, err := Sectors(sample(t), SectorParams{TopN: 2})
	require.NoError(t, err)
	require.Equal(t, "Value", view.Metric)
	require.False(t, view.AllSectors)
	require.Equal(t, 3, view.DistinctCount)
	require.Len(t, view.Sectors, 2)

	require.Equal(t, food, view.Sectors[0].Sector)
	require.Equal(t, "food products", view.Sectors[0].Label)
	require.Equal(t, 300.0, view.Sectors[0].Value)
	require.Equal(t, textile, view.Sectors[1].Sector)
	require.Equal(t, 75.0, view.Sectors[1].Value)

	require.Equal(t, 375.0, view.Total)
	require.Equal(t, 187.5, view.Average)
	require.Equal(t, 80.0, view.Sectors[0].Percent)
	require.NotNil(t, view.Largest)
	require.Equal(t, food, view.Largest.Sector)
}

func TestSectors_DefaultsClampAndYears(t *testing.T) {
	view, err := Sectors(sample(t), SectorParams{})
	require.NoError(t, err)
	require.Equal(t, 10, view.TopN)
	require.Len(t, view.Sectors, 3)
	require.Equal(t, "chemicals and chemical...", view.Sectors[2].Label)

	view, err = Sectors(sample(t), SectorParams{TopN: 99, Years: []int{2019}})
	require.NoError(t, err)
	require.Equal(t, 15, view.TopN)
	require.Len(t, view.Sectors, 2)
	require.Equal(t, 150.0, view.Sectors[0].Value)
}

func TestSectors_ComparisonDefaultsToFirstThree(t *testing.T) {
	view, err := Sectors(sample(t), SectorParams{})
	require.NoError(t, err)
	require.Equal(t, []Comparison{
		{Name: food, Value: 300, Percent: 75},
		{Name: textile, Value: 75, Percent: 18.8},
		{Name: chem, Value: 25, Percent: 6.3},
	}, view.Comparison)

	view, err = Sectors(sample(t), SectorParams{TopN: 2})
	require.NoError(t, err)
	require.Len(t, view.Comparison, 2)
}

func TestSectors_ComparisonExplicitSelection(t *testing.T) {
	view, err := Sectors(sample(t), SectorParams{Compare: []string{"chemicals and chemical...", textile, "Manufacture of tobacco"}})
	require.NoError(t, err)
	require.Equal(t, []Comparison{
		{Name: textile, Value: 75, Percent: 75},
		{Name: chem, Value: 25, Percent: 25},
	}, view.Comparison)
}

func TestSectors_FallbackToAllSectors(t *testing.T) {
	snap := snapshot(t, row("2019", "Goa", "Mining", "3"), row("2019", "Goa", "Electricity", "4"))
	view, err := Sectors(snap, SectorParams{TopN: 5})
	require.NoError(t, err)
	require.True(t, view.AllSectors)
	require.Equal(t, "Electricity", view.Sectors[0].Sector)
}

func TestSectors_NoData(t *testing.T) {
	snap := snapshot(t, row("2019", "Goa", food, "x"))
	_, err := Sectors(snap, SectorParams{})
	require.ErrorIs(t, err, ErrNoData)
}

func TestSectors_MissingMetric(t *testing.T) {
	snap, err := dataset.NewSnapshot("", []string{"Year", "State"}, []engine.Row{row("2019", "Goa", food, "1")}, "", dataset.Meta{})
	require.ErrorIs(t, err, engine.ErrMissingColumn)
	_, err = Sectors(snap, SectorParams{})
	require.ErrorIs(t, err, engine.ErrMissingColumn)
}

func TestRegions_PercentOfNationalTotal(t *testing.T) {
	view, err := Regions(sample(t), RegionParams{Sector: food})
	require.NoError(t, err)
	require.Equal(t, "food products", view.SectorLabel)
	require.Equal(t, 300.0, view.Total)
	require.Len(t, view.States, 2)
	require.Equal(t, RegionStat{State: "Kerala", Value: 250, Percent: 83.3}, view.States[0])
	require.Equal(t, RegionStat{State: "Haryana", Value: 50, Percent: 16.7}, view.States[1])
	require.Len(t, view.Top, 2)

	view, err = Regions(sample(t), RegionParams{Sector: food, TopN: 1, Years: []int{2020}})
	require.NoError(t, err)
	require.Equal(t, []RegionStat{{State: "Kerala", Value: 150, Percent: 100}}, view.Top)
}

func TestRegions_Comparison(t *testing.T) {
	snap := snapshot(t,
		row("2019", "Goa", food, "10"),
		row("2019", "Kerala", food, "40"),
		row("2019", "Haryana", food, "30"),
		row("2019", "Punjab", food, "20"),
	)
	view, err := Regions(snap, RegionParams{Sector: food})
	require.NoError(t, err)
	require.Equal(t, []Comparison{
		{Name: "Kerala", Value: 40, Percent: 44.4},
		{Name: "Haryana", Value: 30, Percent: 33.3},
		{Name: "Punjab", Value: 20, Percent: 22.2},
	}, view.Comparison)

	view, err = Regions(snap, RegionParams{Sector: food, Compare: []string{"Goa", " Kerala"}})
	require.NoError(t, err)
	require.Equal(t, []Comparison{
		{Name: "Kerala", Value: 40, Percent: 80},
		{Name: "Goa", Value: 10, Percent: 20},
	}, view.Comparison)
}

func TestRegions_Errors(t *testing.T) {
	_, err := Regions(sample(t), RegionParams{})
	require.Error(t, err)
	_, err = Regions(sample(t), RegionParams{Sector: "Manufacture of tobacco"})
	require.ErrorIs(t, err, ErrNoData)
}

func TestTrend_AllStatesAllSectors(t *testing.T) {
	view, err := Trend(sample(t), TrendParams{})
	require.NoError(t, err)
	require.Equal(t, "Overall Growth in Manufacturing (All Sectors, All States)", view.Title)
	require.Equal(t, engine.TimeSeries{{Period: 2019, Value: 180}, {Period: 2020, Value: 1219}}, view.Series)
	require.False(t, view.InsufficientData)
	require.NotNil(t, view.Growth)
	require.Len(t, view.YearOverYear, 1)
}

func TestTrend_FilteredByStateAndSector(t *testing.T) {
	view, err := Trend(sample(t), TrendParams{State: "Kerala", Sector: food})
	require.NoError(t, err)
	require.Equal(t, "Growth in food products in Kerala", view.Title)
	require.Equal(t, engine.TimeSeries{{Period: 2019, Value: 100}, {Period: 2020, Value: 150}}, view.Series)
	require.Equal(t, 50.0, view.Growth.TotalGrowthPct)
	require.InDelta(t, 50.0, view.Growth.CAGR, 1e-9)
	require.Equal(t, []engine.Change{{Period: 2020, Percent: 50}}, view.YearOverYear)
}

func TestTrend_InsufficientData(t *testing.T) {
	view, err := Trend(sample(t), TrendParams{Sector: chem})
	require.NoError(t, err)
	require.True(t, view.InsufficientData)
	require.Len(t, view.Series, 1)
	require.Nil(t, view.Growth)
	require.Equal(t, "Growth in chemicals and chemical products (All States)", view.Title)
}

func TestTrend_UndefinedCAGR(t *testing.T) {
	snap := snapshot(t, row("2018", "Goa", food, "100"), row("2020", "Goa", food, "-40"))
	view, err := Trend(snap, TrendParams{State: "Goa"})
	require.NoError(t, err)
	require.True(t, view.UndefinedCAGR)
	require.InDelta(t, -140.0, view.Growth.TotalGrowthPct, 1e-9)
	require.Equal(t, "Overall Manufacturing Growth in Goa (All Sectors)", view.Title)
}

func TestTrend_NoData(t *testing.T) {
	_, err := Trend(sample(t), TrendParams{State: "Goa"})
	require.ErrorIs(t, err, ErrNoData)
}

func TestDescribe(t *testing.T) {
	ov := Describe(sample(t))
	require.Equal(t, 8, ov.Rows)
	require.Equal(t, []int{2019, 2020, 2021}, ov.Years)
	require.Equal(t, []string{"Haryana", "Kerala"}, ov.States)
	require.Len(t, ov.Sectors, 4)
	require.Equal(t, "Value", ov.MetricColumn)
}
