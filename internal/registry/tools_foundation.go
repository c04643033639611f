package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"
	"github.com/vinodismyname/mfgstats/internal/dashboard"
	"github.com/vinodismyname/mfgstats/internal/dataset"
	"github.com/vinodismyname/mfgstats/internal/engine"
	"github.com/vinodismyname/mfgstats/internal/export"
	"github.com/vinodismyname/mfgstats/internal/runtime"
	"github.com/vinodismyname/mfgstats/internal/security"
	"github.com/vinodismyname/mfgstats/internal/workbooks"
	"github.com/vinodismyname/mfgstats/pkg/mcperr"
	"github.com/vinodismyname/mfgstats/pkg/pagination"
	"github.com/vinodismyname/mfgstats/pkg/validation"
)

// Deps bundles what tool handlers need.
type Deps struct {
	Limits        runtime.Limits
	Datasets      *workbooks.Manager
	Security      *security.Manager
	EnableExports bool
}

// Tools holds the handlers for every dataset tool.
type Tools struct {
	deps Deps
}

// NewTools binds handlers to deps.
func NewTools(deps Deps) *Tools {
	return &Tools{deps: deps}
}

// --- Input / Output Schemas (typed for discovery) ---

// LoadDatasetInput defines parameters for loading a workbook.
type LoadDatasetInput struct {
	Path         string   `json:"path" jsonschema:"required" jsonschema_description:"Absolute or allowed path to an Excel workbook" validate:"required,filepath_ext"`
	Sheets       []string `json:"sheets,omitempty" jsonschema_description:"Sheets to combine; all sheets when omitted" validate:"omitempty,dive,required"`
	MetricColumn string   `json:"metric_column,omitempty" jsonschema_description:"Preferred metric column (default Value)"`
}

// LoadDatasetOutput documents the response fields for load_dataset.
type LoadDatasetOutput struct {
	DatasetID       string       `json:"dataset_id" jsonschema_description:"Server-assigned dataset handle ID"`
	Path            string       `json:"path"`
	Rows            int          `json:"rows"`
	Headers         []string     `json:"headers"`
	MetricColumn    string       `json:"metric_column,omitempty"`
	MetricError     string       `json:"metric_error,omitempty" jsonschema_description:"Set when no metric column resolved; views will fail until reloaded"`
	Meta            dataset.Meta `json:"meta"`
	MaxPayloadBytes int          `json:"maxPayloadBytes" jsonschema_description:"Effective payload size limit in bytes"`
	PreviewRowLimit int          `json:"previewRowLimit" jsonschema_description:"Default row limit for previews"`
}

// DatasetInput identifies a loaded dataset.
type DatasetInput struct {
	DatasetID string `json:"dataset_id" jsonschema:"required" jsonschema_description:"Dataset handle ID" validate:"required"`
}

// SelectionFilter narrows rows by state, sector and year.
type SelectionFilter struct {
	State  string `json:"state,omitempty" jsonschema_description:"Exact state name"`
	Sector string `json:"sector,omitempty" jsonschema_description:"Exact NIC description"`
	Years  []int  `json:"years,omitempty" jsonschema_description:"Years to keep" validate:"omitempty,dive,survey_year"`
}

// PreviewRowsInput defines parameters for paging dataset rows.
type PreviewRowsInput struct {
	DatasetID string `json:"dataset_id,omitempty" jsonschema_description:"Dataset handle ID (optional when cursor is supplied)" validate:"required_without=Cursor"`
	Cursor    string `json:"cursor,omitempty" jsonschema_description:"Opaque cursor from a previous page" validate:"omitempty,cursor"`
	PageSize  int    `json:"page_size,omitempty" jsonschema_description:"Rows per page" validate:"omitempty,min=1,max=500"`
	SelectionFilter
}

// PageMeta captures paging/truncation metadata.
type PageMeta struct {
	Total      int    `json:"total"`
	Offset     int    `json:"offset"`
	Returned   int    `json:"returned"`
	Truncated  bool   `json:"truncated"`
	NextCursor string `json:"nextCursor,omitempty"`
}

// PreviewRowsOutput carries one page of rows in header order.
type PreviewRowsOutput struct {
	DatasetID string     `json:"dataset_id"`
	Headers   []string   `json:"headers"`
	Rows      [][]string `json:"rows"`
	Meta      PageMeta   `json:"meta"`
}

// ExportDatasetInput defines parameters for writing an export file.
type ExportDatasetInput struct {
	DatasetID string `json:"dataset_id" jsonschema:"required" jsonschema_description:"Dataset handle ID" validate:"required"`
	Path      string `json:"path" jsonschema:"required" jsonschema_description:"Destination file inside an allowed directory (.csv, .json, .xlsx)" validate:"required,export_ext"`
	Format    string `json:"format,omitempty" jsonschema_description:"csv, json or xlsx; inferred from the extension when omitted" validate:"omitempty,oneof=csv json xlsx"`
	SelectionFilter
}

// ExportDatasetOutput reports the written file.
type ExportDatasetOutput struct {
	DatasetID string `json:"dataset_id"`
	Path      string `json:"path"`
	Format    string `json:"format"`
	Rows      int    `json:"rows"`
	Bytes     int64  `json:"bytes"`
}

// RegisterFoundationTools registers the dataset lifecycle tools: loading,
// reloading, closing, overview, row preview and export.
func RegisterFoundationTools(s *server.MCPServer, reg *Registry, t *Tools) {
	load := mcp.NewTool(
		"load_dataset",
		mcp.WithDescription("Load an ASI-style workbook (Year, State, NIC Description, Value) into an immutable dataset and return its handle. All sheets are combined unless sheets is given; each row records its sheet in a Source column. Reuses an existing handle for the same path when no options are supplied. Errors include PERMISSION_DENIED, UNSUPPORTED_FORMAT, INVALID_SHEET, NO_DATA and BUSY_RESOURCE."),
		mcp.WithInputSchema[LoadDatasetInput](),
		mcp.WithOutputSchema[LoadDatasetOutput](),
	)
	s.AddTool(load, mcp.NewTypedToolHandler(t.LoadDataset))
	reg.Register(load)

	closeTool := mcp.NewTool(
		"close_dataset",
		mcp.WithDescription("Release a dataset handle and its capacity slot"),
		mcp.WithInputSchema[DatasetInput](),
		mcp.WithOutputSchema[struct {
			Success bool `json:"success" jsonschema_description:"True when the handle was closed"`
		}](),
	)
	s.AddTool(closeTool, mcp.NewTypedToolHandler(t.CloseDataset))
	reg.Register(closeTool)

	overview := mcp.NewTool(
		"dataset_overview",
		mcp.WithDescription("List the choices available in a dataset: years, states, sectors, source sheets, headers and the resolved metric column. Call this before the analysis tools to pick valid filter values."),
		mcp.WithInputSchema[DatasetInput](),
		mcp.WithOutputSchema[dashboard.Overview](),
	)
	s.AddTool(overview, mcp.NewTypedToolHandler(t.DatasetOverview))
	reg.Register(overview)

	preview := mcp.NewTool(
		"preview_rows",
		mcp.WithDescription("Page through dataset rows in header order, optionally filtered by state, sector and years. Pass nextCursor back as cursor to continue; a cursor becomes invalid when the dataset is reloaded."),
		mcp.WithInputSchema[PreviewRowsInput](),
		mcp.WithOutputSchema[PreviewRowsOutput](),
	)
	s.AddTool(preview, mcp.NewTypedToolHandler(t.PreviewRows))
	reg.Register(preview)

	reload := mcp.NewTool(
		"reload_dataset",
		mcp.WithDescription("Re-read a dataset's workbook from disk under the same handle, keeping its sheet and metric options. Use after the file was replaced. Cursors issued before the reload return CURSOR_INVALID."),
		mcp.WithInputSchema[DatasetInput](),
		mcp.WithOutputSchema[LoadDatasetOutput](),
	)
	s.AddTool(reload, mcp.NewTypedToolHandler(t.ReloadDataset))
	reg.Register(reload)

	exp := mcp.NewTool(
		"export_dataset",
		mcp.WithDescription("Write the dataset (optionally filtered by state, sector and years) to a new CSV, JSON-records or XLSX file inside an allowed directory. Existing files are never overwritten."),
		mcp.WithInputSchema[ExportDatasetInput](),
		mcp.WithOutputSchema[ExportDatasetOutput](),
	)
	s.AddTool(exp, mcp.NewTypedToolHandler(t.ExportDataset))
	reg.Register(exp)
}

// LoadDataset handles load_dataset.
func (t *Tools) LoadDataset(ctx context.Context, req mcp.CallToolRequest, in LoadDatasetInput) (*mcp.CallToolResult, error) {
	if msg := validation.ValidateStruct(in); msg != "" {
		return mcperr.FromText(msg), nil
	}
	var (
		id  string
		err error
	)
	if len(in.Sheets) == 0 && strings.TrimSpace(in.MetricColumn) == "" {
		id, _, err = t.deps.Datasets.GetOrOpenByPath(ctx, in.Path)
	} else {
		id, err = t.deps.Datasets.OpenWithOptions(ctx, in.Path, dataset.LoadOptions{
			Sheets:       in.Sheets,
			MetricColumn: strings.TrimSpace(in.MetricColumn),
		})
	}
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("path", in.Path).Msg("load_dataset failed")
		return toolError(err, mcperr.OpenFailed), nil
	}

	v, err := t.deps.Datasets.View(id)
	if err != nil {
		return toolError(err, mcperr.OpenFailed), nil
	}
	out := t.loadOutput(v)
	summary := fmt.Sprintf("dataset_id=%s rows=%d sheets=%d metric=%q truncated=%v", id, out.Rows, len(out.Meta.Sheets), out.MetricColumn, out.Meta.Truncated)
	return structured(out, summary), nil
}

// ReloadDataset handles reload_dataset.
func (t *Tools) ReloadDataset(ctx context.Context, req mcp.CallToolRequest, in DatasetInput) (*mcp.CallToolResult, error) {
	if msg := validation.ValidateStruct(in); msg != "" {
		return mcperr.FromText(msg), nil
	}
	if err := t.deps.Datasets.Reload(ctx, in.DatasetID); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("dataset_id", in.DatasetID).Msg("reload_dataset failed")
		return toolError(err, mcperr.OpenFailed), nil
	}
	v, err := t.deps.Datasets.View(in.DatasetID)
	if err != nil {
		return toolError(err, mcperr.OpenFailed), nil
	}
	out := t.loadOutput(v)
	summary := fmt.Sprintf("reloaded dataset_id=%s rows=%d metric=%q", v.ID, out.Rows, out.MetricColumn)
	return structured(out, summary), nil
}

func (t *Tools) loadOutput(v workbooks.View) LoadDatasetOutput {
	snap := v.Snapshot
	out := LoadDatasetOutput{
		DatasetID:       v.ID,
		Path:            snap.Path(),
		Rows:            snap.Len(),
		Headers:         snap.Headers(),
		MetricColumn:    snap.MetricColumn(),
		Meta:            snap.Meta(),
		MaxPayloadBytes: t.deps.Limits.MaxPayloadBytes,
		PreviewRowLimit: t.deps.Limits.PreviewRowLimit,
	}
	if v.LoadErr != nil {
		out.MetricError = v.LoadErr.Error()
	}
	return out
}

// CloseDataset handles close_dataset.
func (t *Tools) CloseDataset(ctx context.Context, req mcp.CallToolRequest, in DatasetInput) (*mcp.CallToolResult, error) {
	if msg := validation.ValidateStruct(in); msg != "" {
		return mcperr.FromText(msg), nil
	}
	if err := t.deps.Datasets.CloseHandle(ctx, in.DatasetID); err != nil {
		return toolError(err, mcperr.InvalidHandle), nil
	}
	out := struct {
		Success bool `json:"success"`
	}{Success: true}
	return structured(out, "closed "+in.DatasetID), nil
}

// DatasetOverview handles dataset_overview.
func (t *Tools) DatasetOverview(ctx context.Context, req mcp.CallToolRequest, in DatasetInput) (*mcp.CallToolResult, error) {
	if msg := validation.ValidateStruct(in); msg != "" {
		return mcperr.FromText(msg), nil
	}
	var out dashboard.Overview
	err := t.deps.Datasets.WithRead(in.DatasetID, func(snap *dataset.Snapshot, _ error) error {
		out = dashboard.Describe(snap)
		return nil
	})
	if err != nil {
		return toolError(err, mcperr.AnalysisFailed), nil
	}
	summary := fmt.Sprintf("rows=%d years=%s states=%d sectors=%d metric=%q", out.Rows, yearSpan(out.Years), len(out.States), len(out.Sectors), out.MetricColumn)
	return structured(out, summary), nil
}

// PreviewRows handles preview_rows. A cursor carries the dataset, filters
// and offset of the next page and takes precedence over the other inputs.
func (t *Tools) PreviewRows(ctx context.Context, req mcp.CallToolRequest, in PreviewRowsInput) (*mcp.CallToolResult, error) {
	if msg := validation.ValidateStruct(in); msg != "" {
		return mcperr.FromText(msg), nil
	}

	cur := pagination.Cursor{
		Did: in.DatasetID,
		Ps:  in.PageSize,
		St:  in.State,
		Sec: in.Sector,
		Yr:  in.Years,
	}
	if in.Cursor != "" {
		c, err := pagination.DecodeCursor(in.Cursor)
		if err != nil {
			return mcperr.New(mcperr.CursorInvalid, err.Error()), nil
		}
		cur = *c
	}
	if cur.Ps <= 0 {
		cur.Ps = t.deps.Limits.PreviewRowLimit
	}
	if maxRows := t.deps.Limits.MaxPreviewRows; maxRows > 0 && cur.Ps > maxRows {
		cur.Ps = maxRows
	}

	v, err := t.deps.Datasets.View(cur.Did)
	if err != nil {
		return toolError(err, mcperr.PreviewFailed), nil
	}
	if in.Cursor != "" {
		if err := cur.CheckFresh(v.ID, v.LoadedAt); err != nil {
			return toolError(err, mcperr.CursorInvalid), nil
		}
	}

	headers := v.Snapshot.Headers()
	rows := selectRows(v.Snapshot, SelectionFilter{State: cur.St, Sector: cur.Sec, Years: cur.Yr})
	total := len(rows)
	start := cur.Off
	if start > total {
		start = total
	}
	end := start + cur.Ps
	if end > total {
		end = total
	}

	page := make([][]string, 0, end-start)
	for _, r := range rows[start:end] {
		page = append(page, rowValues(r, headers))
	}
	page = fitPayload(page, t.deps.Limits.MaxPayloadBytes)
	end = start + len(page)

	out := PreviewRowsOutput{
		DatasetID: v.ID,
		Headers:   headers,
		Rows:      page,
		Meta: PageMeta{
			Total:     total,
			Offset:    start,
			Returned:  len(page),
			Truncated: end < total,
		},
	}
	if end < total {
		next := cur
		next.Off = pagination.NextOffset(start, len(page))
		next.Lat = v.LoadedAt.UnixNano()
		next.Iat = time.Now().Unix()
		tok, err := pagination.EncodeCursor(next)
		if err != nil {
			return mcperr.New(mcperr.CursorBuildFailed, err.Error()), nil
		}
		out.Meta.NextCursor = tok
	}
	summary := fmt.Sprintf("rows %d-%d of %d truncated=%v", start+1, end, total, out.Meta.Truncated)
	if len(page) == 0 {
		summary = fmt.Sprintf("no rows at offset %d of %d", start, total)
	}
	return structured(out, summary), nil
}

// ExportDataset handles export_dataset.
func (t *Tools) ExportDataset(ctx context.Context, req mcp.CallToolRequest, in ExportDatasetInput) (*mcp.CallToolResult, error) {
	if !t.deps.EnableExports {
		return mcperr.New(mcperr.PermissionDenied, "exports are disabled; set MFGSTATS_ENABLE_EXPORTS=true"), nil
	}
	if msg := validation.ValidateStruct(in); msg != "" {
		return mcperr.FromText(msg), nil
	}

	format, err := export.FormatFromPath(in.Path)
	if err != nil {
		return toolError(err, mcperr.ExportFailed), nil
	}
	if in.Format != "" && export.Format(strings.ToLower(in.Format)) != format {
		return mcperr.Wrapf(mcperr.Validation, "format %q does not match the %q extension", in.Format, format), nil
	}
	if t.deps.Security == nil {
		return mcperr.New(mcperr.PermissionDenied, "no allowed directories configured"), nil
	}
	dest, err := t.deps.Security.ValidateCreatePath(in.Path)
	if err != nil {
		return toolError(err, mcperr.ExportFailed), nil
	}

	v, err := t.deps.Datasets.View(in.DatasetID)
	if err != nil {
		return toolError(err, mcperr.ExportFailed), nil
	}
	rows := selectRows(v.Snapshot, in.SelectionFilter)
	n, err := export.WriteFile(ctx, dest, format, export.Table{Headers: v.Snapshot.Headers(), Rows: rows})
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("path", dest).Msg("export_dataset failed")
		return toolError(err, mcperr.ExportFailed), nil
	}

	out := ExportDatasetOutput{DatasetID: v.ID, Path: dest, Format: string(format), Rows: len(rows), Bytes: n}
	summary := fmt.Sprintf("wrote %d rows to %s (%s, %d bytes)", out.Rows, dest, format, n)
	return structured(out, summary), nil
}

// selectRows applies a SelectionFilter to the snapshot.
func selectRows(snap *dataset.Snapshot, f SelectionFilter) []engine.Row {
	rows := snap.Where(
		engine.Match{Field: engine.FieldRegion, Value: f.State},
		engine.Match{Field: engine.FieldCategory, Value: f.Sector},
	)
	return dataset.InYears(rows, f.Years)
}

func rowValues(r engine.Row, headers []string) []string {
	vals := make([]string, len(headers))
	for i, h := range headers {
		vals[i] = r.Cells[h]
	}
	return vals
}

// fitPayload drops trailing rows until the encoded page fits within limit
// bytes. At least one row is always kept so paging makes progress.
func fitPayload(page [][]string, limit int) [][]string {
	if limit <= 0 {
		return page
	}
	for len(page) > 1 {
		b, err := json.Marshal(page)
		if err != nil || len(b) <= limit {
			break
		}
		page = page[:len(page)/2]
	}
	return page
}

// structured builds a result carrying out as structured content and a
// concise text summary for clients ignoring structured output.
func structured(out any, summary string) *mcp.CallToolResult {
	res := mcp.NewToolResultStructured(out, summary)
	res.Content = []mcp.Content{mcp.NewTextContent(summary)}
	return res
}

func yearSpan(years []int) string {
	if len(years) == 0 {
		return "none"
	}
	return fmt.Sprintf("%d-%d", years[0], years[len(years)-1])
}
