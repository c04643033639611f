package dataset

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/samber/lo"
	"github.com/vinodismyname/mfgstats/config"
	"github.com/vinodismyname/mfgstats/internal/engine"
	"github.com/xuri/excelize/v2"
)

// ErrNoRows indicates the workbook had no data rows under a header.
var ErrNoRows = errors.New("dataset: no data rows found")

// LoadOptions controls which sheets are read and how much.
type LoadOptions struct {
	// Sheets limits loading to the named sheets; empty loads every sheet.
	Sheets []string
	// MetricColumn is the preferred metric header (default "Value").
	MetricColumn string
	// MaxCells bounds the number of cells read across all sheets.
	MaxCells int
	// Path is recorded on the snapshot.
	Path string
}

// Load streams the selected sheets of f and combines them into one snapshot.
// The first non-empty row of each sheet is its header. Sheets without a
// Source column get one set to the sheet name. A metric resolution failure
// is returned together with the snapshot.
func Load(ctx context.Context, f *excelize.File, opts LoadOptions) (*Snapshot, error) {
	if f == nil {
		return nil, fmt.Errorf("dataset: nil workbook")
	}
	maxCells := opts.MaxCells
	if maxCells <= 0 {
		maxCells = config.DefaultMaxCellsPerLoad
	}

	sheets := opts.Sheets
	if len(sheets) == 0 {
		sheets = f.GetSheetList()
	}

	var (
		headers []string
		seen    = map[string]struct{}{}
		rows    []engine.Row
		meta    = Meta{MaxCells: maxCells}
	)

	for _, sheet := range sheets {
		if meta.Truncated {
			break
		}
		sheetRows, sheetHeaders, err := loadSheet(ctx, f, sheet, maxCells, &meta)
		if err != nil {
			return nil, err
		}
		for _, h := range sheetHeaders {
			if _, ok := seen[h]; !ok {
				seen[h] = struct{}{}
				headers = append(headers, h)
			}
		}
		rows = append(rows, sheetRows...)
		meta.Sheets = append(meta.Sheets, sheet)
	}

	if len(rows) == 0 {
		return nil, ErrNoRows
	}
	return NewSnapshot(opts.Path, headers, rows, opts.MetricColumn, meta)
}

func loadSheet(ctx context.Context, f *excelize.File, sheet string, maxCells int, meta *Meta) ([]engine.Row, []string, error) {
	it, err := f.Rows(sheet)
	if err != nil {
		return nil, nil, err
	}
	defer it.Close()

	var (
		header []string
		rows   []engine.Row
	)
	for it.Next() {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		vals, cerr := it.Columns()
		if cerr != nil {
			return nil, nil, cerr
		}
		if header == nil {
			if blank(vals) {
				continue
			}
			header = normalizeHeader(vals)
			continue
		}
		if blank(vals) {
			meta.SkippedRows++
			continue
		}
		n := minInt(len(vals), len(header))
		if meta.ProcessedCells+n > maxCells {
			meta.Truncated = true
			break
		}
		meta.ProcessedCells += n
		rows = append(rows, buildRow(header, vals, sheet))
		meta.ProcessedRows++
	}
	if err := it.Error(); err != nil {
		return nil, nil, err
	}
	if header == nil {
		return nil, nil, nil
	}

	out := append([]string(nil), header...)
	if !lo.Contains(header, ColumnSource) {
		out = append(out, ColumnSource)
	}
	return rows, out, nil
}

func buildRow(header, vals []string, sheet string) engine.Row {
	cells := make(map[string]string, len(header)+1)
	for i, h := range header {
		if h == "" {
			continue
		}
		if i < len(vals) {
			cells[h] = strings.TrimSpace(vals[i])
		} else {
			cells[h] = ""
		}
	}
	if _, ok := cells[ColumnSource]; !ok {
		cells[ColumnSource] = sheet
	}
	return engine.Row{
		Category: cells[ColumnCategory],
		Region:   cells[ColumnState],
		Period:   cells[ColumnYear],
		Source:   cells[ColumnSource],
		Cells:    cells,
	}
}

// normalizeHeader trims header cells and names blank ones by position so
// passthrough columns remain addressable.
func normalizeHeader(vals []string) []string {
	out := make([]string, len(vals))
	for i, v := range vals {
		v = strings.TrimSpace(v)
		if v == "" {
			name, _ := excelize.ColumnNumberToName(i + 1)
			v = "Column " + name
		}
		out[i] = v
	}
	// Drop trailing generated names for cells that were simply empty.
	for len(out) > 0 && strings.HasPrefix(out[len(out)-1], "Column ") && strings.TrimSpace(vals[len(out)-1]) == "" {
		out = out[:len(out)-1]
	}
	return out
}

func blank(vals []string) bool {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
