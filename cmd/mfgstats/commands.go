package main

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"

	"github.com/urfave/cli/v2"
	"github.com/vinodismyname/mfgstats/config"
	"github.com/vinodismyname/mfgstats/internal/dashboard"
	"github.com/vinodismyname/mfgstats/internal/dataset"
	"github.com/vinodismyname/mfgstats/internal/engine"
	"github.com/vinodismyname/mfgstats/internal/export"
	"github.com/vinodismyname/mfgstats/pkg/version"
	"github.com/xuri/excelize/v2"
)

func newApp(out io.Writer) *cli.App {
	return &cli.App{
		Name:    "mfgstats",
		Usage:   "summarize Annual Survey of Industries workbooks",
		Version: version.Version(),
		Writer:  out,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "file", Aliases: []string{"f"}, Usage: "workbook to read", Required: true},
			&cli.StringSliceFlag{Name: "sheet", Usage: "sheet to include (repeatable); all sheets by default"},
			&cli.StringFlag{Name: "metric", Value: config.DefaultMetricColumn, Usage: "preferred metric column"},
			&cli.BoolFlag{Name: "compact", Usage: "print single-line JSON"},
		},
		Commands: []*cli.Command{
			overviewCommand(),
			sectorsCommand(),
			regionsCommand(),
			trendCommand(),
			exportCommand(),
		},
	}
}

func overviewCommand() *cli.Command {
	return &cli.Command{
		Name:  "overview",
		Usage: "list years, states, sectors and headers",
		Action: func(c *cli.Context) error {
			snap, err := loadSnapshot(c)
			if err != nil {
				return err
			}
			return printJSON(c, dashboard.Describe(snap))
		},
	}
}

func sectorsCommand() *cli.Command {
	return &cli.Command{
		Name:  "sectors",
		Usage: "rank manufacturing sectors by summed metric",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "top", Value: config.DefaultTopSectors, Usage: "sectors to show (1-15)"},
			&cli.IntSliceFlag{Name: "year", Usage: "year to include (repeatable)"},
			&cli.StringSliceFlag{Name: "compare", Usage: "ranked sector to compare, by description or label (repeatable); first three by default"},
		},
		Action: func(c *cli.Context) error {
			snap, err := metricSnapshot(c)
			if err != nil {
				return err
			}
			view, err := dashboard.Sectors(snap, dashboard.SectorParams{TopN: c.Int("top"), Years: c.IntSlice("year"), Compare: c.StringSlice("compare")})
			if err != nil {
				return err
			}
			return printJSON(c, view)
		},
	}
}

func regionsCommand() *cli.Command {
	return &cli.Command{
		Name:  "regions",
		Usage: "distribute one sector across states",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "sector", Required: true, Usage: "exact NIC description"},
			&cli.IntFlag{Name: "top", Value: config.DefaultTopStates, Usage: "leading states to highlight"},
			&cli.IntSliceFlag{Name: "year", Usage: "year to include (repeatable)"},
			&cli.StringSliceFlag{Name: "compare", Usage: "state to compare (repeatable); three largest by default"},
		},
		Action: func(c *cli.Context) error {
			snap, err := metricSnapshot(c)
			if err != nil {
				return err
			}
			view, err := dashboard.Regions(snap, dashboard.RegionParams{Sector: c.String("sector"), TopN: c.Int("top"), Years: c.IntSlice("year"), Compare: c.StringSlice("compare")})
			if err != nil {
				return err
			}
			return printJSON(c, view)
		},
	}
}

func trendCommand() *cli.Command {
	return &cli.Command{
		Name:  "trend",
		Usage: "yearly series with total growth, CAGR and year-over-year change",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "state", Usage: "exact state name; all states when omitted"},
			&cli.StringFlag{Name: "sector", Usage: "exact NIC description; all sectors when omitted"},
		},
		Action: func(c *cli.Context) error {
			snap, err := metricSnapshot(c)
			if err != nil {
				return err
			}
			view, err := dashboard.Trend(snap, dashboard.TrendParams{State: c.String("state"), Sector: c.String("sector")})
			if err != nil {
				return err
			}
			return printJSON(c, view)
		},
	}
}

func exportCommand() *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "write rows to a new .csv, .json or .xlsx file",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Required: true, Usage: "destination file; must not exist"},
			&cli.StringFlag{Name: "state", Usage: "exact state name"},
			&cli.StringFlag{Name: "sector", Usage: "exact NIC description"},
			&cli.IntSliceFlag{Name: "year", Usage: "year to include (repeatable)"},
		},
		Action: func(c *cli.Context) error {
			snap, err := loadSnapshot(c)
			if err != nil {
				return err
			}
			dest := c.String("out")
			format, err := export.FormatFromPath(dest)
			if err != nil {
				return err
			}
			rows := dataset.InYears(snap.Where(
				engine.Match{Field: engine.FieldRegion, Value: c.String("state")},
				engine.Match{Field: engine.FieldCategory, Value: c.String("sector")},
			), c.IntSlice("year"))
			n, err := export.WriteFile(c.Context, dest, format, export.Table{Headers: snap.Headers(), Rows: rows})
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(c.App.Writer, "wrote %d rows to %s (%d bytes)\n", len(rows), filepath.Clean(dest), n)
			return err
		},
	}
}

// loadSnapshot reads the workbook named by --file. A missing metric column
// is not an error here so commands that do not aggregate still work.
func loadSnapshot(c *cli.Context) (*dataset.Snapshot, error) {
	f, err := excelize.OpenFile(c.String("file"))
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", c.String("file"), err)
	}
	defer f.Close()

	snap, err := dataset.Load(c.Context, f, dataset.LoadOptions{
		Sheets:       c.StringSlice("sheet"),
		MetricColumn: c.String("metric"),
		Path:         c.String("file"),
	})
	if snap == nil {
		return nil, err
	}
	return snap, nil
}

func metricSnapshot(c *cli.Context) (*dataset.Snapshot, error) {
	snap, err := loadSnapshot(c)
	if err != nil {
		return nil, err
	}
	if _, err := snap.Metric(); err != nil {
		return nil, err
	}
	return snap, nil
}

func printJSON(c *cli.Context, v any) error {
	enc := json.NewEncoder(c.App.Writer)
	if !c.Bool("compact") {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}
