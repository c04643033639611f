package registry

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/samber/lo"
	"github.com/vinodismyname/mfgstats/internal/dashboard"
	"github.com/vinodismyname/mfgstats/internal/dataset"
	"github.com/vinodismyname/mfgstats/internal/engine"
	"github.com/vinodismyname/mfgstats/pkg/mcperr"
	"github.com/vinodismyname/mfgstats/pkg/validation"
)

// SectorSummaryInput selects the sector ranking view.
type SectorSummaryInput struct {
	DatasetID string   `json:"dataset_id" jsonschema:"required" jsonschema_description:"Dataset handle ID" validate:"required"`
	TopN      int      `json:"top_n,omitempty" jsonschema_description:"Sectors to rank (default 10, clamped to 1..15)" validate:"omitempty,min=1,max=15"`
	Years     []int    `json:"years,omitempty" jsonschema_description:"Years to include; all when omitted" validate:"omitempty,dive,survey_year"`
	Compare   []string `json:"compare,omitempty" jsonschema_description:"Ranked sectors to compare, by description or label; the first three when omitted"`
}

// RegionalDistributionInput selects one sector across states.
type RegionalDistributionInput struct {
	DatasetID string   `json:"dataset_id" jsonschema:"required" jsonschema_description:"Dataset handle ID" validate:"required"`
	Sector    string   `json:"sector" jsonschema:"required" jsonschema_description:"Exact NIC description to distribute" validate:"required"`
	TopN      int      `json:"top_n,omitempty" jsonschema_description:"Leading states to highlight (default 5)" validate:"omitempty,min=1"`
	Years     []int    `json:"years,omitempty" jsonschema_description:"Years to include; all when omitted" validate:"omitempty,dive,survey_year"`
	Compare   []string `json:"compare,omitempty" jsonschema_description:"States to compare; the three largest when omitted"`
}

// TimeSeriesTrendInput selects the yearly trend view.
type TimeSeriesTrendInput struct {
	DatasetID string `json:"dataset_id" jsonschema:"required" jsonschema_description:"Dataset handle ID" validate:"required"`
	State     string `json:"state,omitempty" jsonschema_description:"Exact state name; all states when omitted"`
	Sector    string `json:"sector,omitempty" jsonschema_description:"Exact NIC description; all sectors when omitted"`
}

// RegisterInsightsTools registers the analysis views over a loaded dataset.
func RegisterInsightsTools(s *server.MCPServer, reg *Registry, t *Tools) {
	sectors := mcp.NewTool(
		"sector_summary",
		mcp.WithDescription("Rank manufacturing sectors (NIC descriptions containing \"manufactur\", or every sector when none do) by summed metric. Returns the top N with shortened labels, each sector's share of the top-N total (1 decimal), the total, the largest sector, the average per sector and a comparison of the selected sectors with shares of their combined total. Errors include MISSING_COLUMN and NO_DATA."),
		mcp.WithInputSchema[SectorSummaryInput](),
		mcp.WithOutputSchema[dashboard.SectorView](),
	)
	s.AddTool(sectors, mcp.NewTypedToolHandler(t.SectorSummary))
	reg.Register(sectors)

	regions := mcp.NewTool(
		"regional_distribution",
		mcp.WithDescription("Sum one sector per state, sorted descending, with each state's percentage of the national total rounded to one decimal, highlight the leading states and compare the selected states by share of their combined total. Use dataset_overview for exact sector names. Errors include MISSING_COLUMN and NO_DATA."),
		mcp.WithInputSchema[RegionalDistributionInput](),
		mcp.WithOutputSchema[dashboard.RegionView](),
	)
	s.AddTool(regions, mcp.NewTypedToolHandler(t.RegionalDistribution))
	reg.Register(regions)

	trend := mcp.NewTool(
		"time_series_trend",
		mcp.WithDescription("Build the yearly series for an optional state and sector and derive total growth, CAGR and year-over-year change. With fewer than two years the series is returned with insufficient_data=true. Growth is reported as 0 when the first year's value is zero or negative; undefined_cagr=true when the CAGR has no real value."),
		mcp.WithInputSchema[TimeSeriesTrendInput](),
		mcp.WithOutputSchema[dashboard.TrendView](),
	)
	s.AddTool(trend, mcp.NewTypedToolHandler(t.TimeSeriesTrend))
	reg.Register(trend)
}

// SectorSummary handles sector_summary.
func (t *Tools) SectorSummary(ctx context.Context, req mcp.CallToolRequest, in SectorSummaryInput) (*mcp.CallToolResult, error) {
	if msg := validation.ValidateStruct(in); msg != "" {
		return mcperr.FromText(msg), nil
	}
	var view dashboard.SectorView
	err := t.deps.Datasets.WithRead(in.DatasetID, func(snap *dataset.Snapshot, _ error) error {
		var err error
		view, err = dashboard.Sectors(snap, dashboard.SectorParams{TopN: in.TopN, Years: in.Years, Compare: in.Compare})
		return err
	})
	if err != nil {
		return toolError(err, mcperr.AnalysisFailed), nil
	}

	lines := []string{fmt.Sprintf("top %d of %d sectors by %s total=%.2f avg=%.2f fallback=%v", len(view.Sectors), view.DistinctCount, view.Metric, view.Total, view.Average, view.AllSectors)}
	for i, s := range view.Sectors {
		if i == 5 {
			break
		}
		lines = append(lines, fmt.Sprintf("- %s %.2f (%.1f%%)", s.Label, s.Value, s.Percent))
	}
	lines = append(lines, comparisonLine(view.Comparison, engine.ShortenDefault))
	return textual(view, lines), nil
}

// RegionalDistribution handles regional_distribution.
func (t *Tools) RegionalDistribution(ctx context.Context, req mcp.CallToolRequest, in RegionalDistributionInput) (*mcp.CallToolResult, error) {
	if msg := validation.ValidateStruct(in); msg != "" {
		return mcperr.FromText(msg), nil
	}
	var view dashboard.RegionView
	err := t.deps.Datasets.WithRead(in.DatasetID, func(snap *dataset.Snapshot, _ error) error {
		var err error
		view, err = dashboard.Regions(snap, dashboard.RegionParams{Sector: in.Sector, Years: in.Years, TopN: in.TopN, Compare: in.Compare})
		return err
	})
	if err != nil {
		return toolError(err, mcperr.AnalysisFailed), nil
	}

	lines := []string{fmt.Sprintf("%s across %d states total=%.2f", view.SectorLabel, len(view.States), view.Total)}
	for _, s := range view.Top {
		lines = append(lines, fmt.Sprintf("- %s %.2f (%.1f%%)", s.State, s.Value, s.Percent))
	}
	lines = append(lines, comparisonLine(view.Comparison, nil))
	return textual(view, lines), nil
}

// TimeSeriesTrend handles time_series_trend.
func (t *Tools) TimeSeriesTrend(ctx context.Context, req mcp.CallToolRequest, in TimeSeriesTrendInput) (*mcp.CallToolResult, error) {
	if msg := validation.ValidateStruct(in); msg != "" {
		return mcperr.FromText(msg), nil
	}
	var view dashboard.TrendView
	err := t.deps.Datasets.WithRead(in.DatasetID, func(snap *dataset.Snapshot, _ error) error {
		var err error
		view, err = dashboard.Trend(snap, dashboard.TrendParams{State: in.State, Sector: in.Sector})
		return err
	})
	if err != nil {
		return toolError(err, mcperr.AnalysisFailed), nil
	}

	lines := []string{view.Title}
	switch {
	case view.InsufficientData:
		lines = append(lines, fmt.Sprintf("only %d year(s) of data; growth needs at least two", len(view.Series)))
	case view.Growth != nil:
		g := view.Growth
		cagr := fmt.Sprintf("%.2f%%", g.CAGR)
		if view.UndefinedCAGR {
			cagr = "undefined"
		}
		lines = append(lines, fmt.Sprintf("%d→%d total growth %.2f%% CAGR %s", g.First.Period, g.Last.Period, g.TotalGrowthPct, cagr))
	}
	return textual(view, lines), nil
}

func comparisonLine(cmp []dashboard.Comparison, label func(string) string) string {
	parts := lo.Map(cmp, func(c dashboard.Comparison, _ int) string {
		name := c.Name
		if label != nil {
			name = label(name)
		}
		return fmt.Sprintf("%s %.1f%%", name, c.Percent)
	})
	if len(parts) == 0 {
		return "compare: none selected"
	}
	return "compare: " + strings.Join(parts, ", ")
}

func textual(out any, lines []string) *mcp.CallToolResult {
	res := mcp.NewToolResultStructured(out, lines[0])
	res.Content = []mcp.Content{mcp.NewTextContent(strings.Join(lines, "\n"))}
	return res
}
