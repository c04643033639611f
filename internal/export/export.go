// Package export writes dataset rows as CSV, JSON records or a single-sheet
// XLSX workbook.
package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/vinodismyname/mfgstats/internal/engine"
	"github.com/xuri/excelize/v2"
)

// Format is an export encoding.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
	FormatXLSX Format = "xlsx"
)

// SheetName is the sheet XLSX exports are written to.
const SheetName = "Data"

// ErrUnsupportedFormat reports an unknown export format.
var ErrUnsupportedFormat = errors.New("export: unsupported format")

// ParseFormat normalizes s into a Format.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatCSV, FormatJSON, FormatXLSX:
		return f, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
}

// FormatFromPath infers the format from the file extension.
func FormatFromPath(path string) (Format, error) {
	return ParseFormat(strings.TrimPrefix(filepath.Ext(path), "."))
}

// Table is the exported content: ordered headers and rows keyed by header.
type Table struct {
	Headers []string
	Rows    []engine.Row
}

// Write encodes t to w in format.
func Write(ctx context.Context, w io.Writer, format Format, t Table) error {
	switch format {
	case FormatCSV:
		return WriteCSV(ctx, w, t)
	case FormatJSON:
		return WriteJSON(ctx, w, t)
	case FormatXLSX:
		return WriteXLSX(ctx, w, t)
	}
	return fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
}

// WriteFile creates path exclusively and writes t into it. A partially
// written file is removed on failure.
func WriteFile(ctx context.Context, path string, format Format, t Table) (int64, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return 0, fmt.Errorf("export: create %q: %w", path, err)
	}
	cw := &countingWriter{w: f}
	werr := Write(ctx, cw, format, t)
	cerr := f.Close()
	if werr == nil {
		werr = cerr
	}
	if werr != nil {
		_ = os.Remove(path)
		return 0, werr
	}
	return cw.n, nil
}

// WriteCSV writes a header line followed by one record per row.
func WriteCSV(ctx context.Context, w io.Writer, t Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Headers); err != nil {
		return fmt.Errorf("export: csv header: %w", err)
	}
	record := make([]string, len(t.Headers))
	for i, r := range t.Rows {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		for j, h := range t.Headers {
			record[j] = r.Cells[h]
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("export: csv row %d: %w", i+1, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteJSON writes an array of objects, one per row, with keys in header
// order. Cells that parse as finite numbers are emitted as JSON numbers.
func WriteJSON(ctx context.Context, w io.Writer, t Table) error {
	keys := make([][]byte, len(t.Headers))
	for i, h := range t.Headers {
		k, err := json.Marshal(h)
		if err != nil {
			return err
		}
		keys[i] = k
	}

	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, r := range t.Rows {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteByte('{')
		for j, h := range t.Headers {
			if j > 0 {
				buf.WriteByte(',')
			}
			buf.Write(keys[j])
			buf.WriteByte(':')
			v, err := json.Marshal(cellValue(r.Cells[h]))
			if err != nil {
				return fmt.Errorf("export: json row %d: %w", i+1, err)
			}
			buf.Write(v)
		}
		buf.WriteByte('}')
		if buf.Len() > 64*1024 {
			if _, err := w.Write(buf.Bytes()); err != nil {
				return err
			}
			buf.Reset()
		}
	}
	buf.WriteByte(']')
	_, err := w.Write(buf.Bytes())
	return err
}

// WriteXLSX writes t to a new workbook with a single sheet.
func WriteXLSX(ctx context.Context, w io.Writer, t Table) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return fmt.Errorf("export: rename sheet: %w", err)
	}
	sw, err := f.NewStreamWriter(SheetName)
	if err != nil {
		return fmt.Errorf("export: stream writer: %w", err)
	}

	header := make([]any, len(t.Headers))
	for i, h := range t.Headers {
		header[i] = h
	}
	if err := sw.SetRow("A1", header); err != nil {
		return fmt.Errorf("export: xlsx header: %w", err)
	}
	for i, r := range t.Rows {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		vals := make([]any, len(t.Headers))
		for j, h := range t.Headers {
			vals[j] = cellValue(r.Cells[h])
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(cell, vals); err != nil {
			return fmt.Errorf("export: xlsx row %d: %w", i+1, err)
		}
	}
	if err := sw.Flush(); err != nil {
		return fmt.Errorf("export: xlsx flush: %w", err)
	}
	return f.Write(w)
}

// cellValue returns a float64 for plain decimal cells and the raw string
// otherwise. Codes with leading zeros, signs or exponents stay text.
func cellValue(s string) any {
	if !plainDecimal(s) {
		return s
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsInf(f, 0) {
		return f
	}
	return s
}

func plainDecimal(s string) bool {
	intPart, frac, dot := strings.Cut(strings.TrimPrefix(s, "-"), ".")
	if intPart == "" || (dot && frac == "") {
		return false
	}
	if len(intPart) > 1 && intPart[0] == '0' {
		return false
	}
	return asciiDigits(intPart) && asciiDigits(frac)
}

func asciiDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
