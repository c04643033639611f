package mcperr

import (
	"archive/zip"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/xuri/excelize/v2"
)

// Code defines a canonical MCP error code used across tools.
type Code string

const (
	// Validation & Input
	Validation        Code = "VALIDATION"
	InvalidHandle     Code = "INVALID_HANDLE"
	InvalidSheet      Code = "INVALID_SHEET"
	CursorInvalid     Code = "CURSOR_INVALID"
	CursorBuildFailed Code = "CURSOR_BUILD_FAILED"

	// Resource & Limits
	BusyResource Code = "BUSY_RESOURCE"
	Timeout      Code = "TIMEOUT"

	// IO & Formats
	OpenFailed    Code = "OPEN_FAILED"
	PreviewFailed Code = "PREVIEW_FAILED"
	ExportFailed  Code = "EXPORT_FAILED"

	// Analysis
	MissingColumn    Code = "MISSING_COLUMN"
	InsufficientData Code = "INSUFFICIENT_DATA"
	UndefinedGrowth  Code = "UNDEFINED_GROWTH"
	NoData           Code = "NO_DATA"
	AnalysisFailed   Code = "ANALYSIS_FAILED"

	// Integrity
	CorruptWorkbook   Code = "CORRUPT_WORKBOOK"
	UnsupportedFormat Code = "UNSUPPORTED_FORMAT"
	PermissionDenied  Code = "PERMISSION_DENIED"
	AlreadyExists     Code = "ALREADY_EXISTS"
)

// Entry documents a code's standard message, retry semantics, and next steps.
type Entry struct {
	Code      Code
	Message   string
	Retryable bool
	NextSteps []string
}

// catalog maps canonical codes to guidance. Messages can be overridden per error.
var catalog = map[Code]Entry{
	Validation:        {Code: Validation, Message: "invalid inputs", Retryable: true, NextSteps: []string{"Correct the inputs per schema and retry", "See examples in tool description"}},
	InvalidHandle:     {Code: InvalidHandle, Message: "dataset handle not found or expired", Retryable: true, NextSteps: []string{"Load the dataset again via load_dataset and retry"}},
	InvalidSheet:      {Code: InvalidSheet, Message: "sheet not found", Retryable: true, NextSteps: []string{"Call dataset_overview to verify sheet names", "Check case and spacing"}},
	CursorInvalid:     {Code: CursorInvalid, Message: "cursor is invalid for current dataset", Retryable: true, NextSteps: []string{"Restart pagination from the first page", "Avoid reloading the dataset between pages"}},
	CursorBuildFailed: {Code: CursorBuildFailed, Message: "failed to encode next page cursor", Retryable: true, NextSteps: []string{"Retry or use a smaller page size"}},

	BusyResource: {Code: BusyResource, Message: "concurrent request limit reached", Retryable: true, NextSteps: []string{"Retry after a short delay", "Close unused datasets with close_dataset"}},
	Timeout:      {Code: Timeout, Message: "operation exceeded configured time limit", Retryable: true, NextSteps: []string{"Narrow the year or sheet selection", "Increase MFGSTATS_OPERATION_TIMEOUT"}},

	OpenFailed:    {Code: OpenFailed, Message: "failed to open workbook", Retryable: true, NextSteps: []string{"Verify path, permissions, and format"}},
	PreviewFailed: {Code: PreviewFailed, Message: "failed to generate preview", Retryable: true, NextSteps: []string{"Retry with fewer rows"}},
	ExportFailed:  {Code: ExportFailed, Message: "failed to write export", Retryable: false, NextSteps: []string{"Verify the destination directory and format (csv, json, xlsx)"}},

	MissingColumn:    {Code: MissingColumn, Message: "no metric column could be resolved", Retryable: true, NextSteps: []string{"Name a column \"Value\" or pass metric_column", "Call dataset_overview to list headers"}},
	InsufficientData: {Code: InsufficientData, Message: "at least two periods are required", Retryable: true, NextSteps: []string{"Relax the state or sector filter", "Load more years of data"}},
	UndefinedGrowth:  {Code: UndefinedGrowth, Message: "growth rate is undefined for this series", Retryable: false, NextSteps: []string{"Inspect the series endpoints for negative values"}},
	NoData:           {Code: NoData, Message: "no rows match the selection", Retryable: true, NextSteps: []string{"Check the sector name and year filters", "Call dataset_overview for valid values"}},
	AnalysisFailed:   {Code: AnalysisFailed, Message: "analysis failed", Retryable: true, NextSteps: []string{"Verify parameters and retry"}},

	CorruptWorkbook:   {Code: CorruptWorkbook, Message: "workbook appears corrupt or unreadable", Retryable: false, NextSteps: []string{"Open in Excel and re-save or repair", "Provide a clean copy"}},
	UnsupportedFormat: {Code: UnsupportedFormat, Message: "unsupported format", Retryable: false, NextSteps: []string{"Convert to .xlsx and retry"}},
	PermissionDenied:  {Code: PermissionDenied, Message: "insufficient permissions to access path", Retryable: false, NextSteps: []string{"Adjust permissions or choose an allowed directory"}},
	AlreadyExists:     {Code: AlreadyExists, Message: "destination already exists", Retryable: true, NextSteps: []string{"Choose a new file name"}},
}

// Lookup returns the catalog entry for code.
func Lookup(code Code) (Entry, bool) {
	e, ok := catalog[code]
	return e, ok
}

// normalize builds a standard error string including next steps for MCP clients that
// surface only a message string. Format: "CODE: message" followed by a guidance tail.
func normalize(code Code, msg string) string {
	base := strings.TrimSpace(msg)
	e, ok := catalog[code]
	if !ok {
		// Unknown code; preserve as-is
		if base == "" {
			return string(code)
		}
		return fmt.Sprintf("%s: %s", string(code), base)
	}
	if base == "" {
		base = e.Message
	}
	// Append compact nextSteps guidance inline to aid clients lacking structured fields.
	guidance := ""
	if len(e.NextSteps) > 0 {
		guidance = " | nextSteps: " + strings.Join(e.NextSteps, "; ")
	}
	return fmt.Sprintf("%s: %s%s", e.Code, base, guidance)
}

// FromText parses a "CODE: message" string, enriches it with catalog guidance,
// and returns an MCP tool error result.
func FromText(text string) *mcp.CallToolResult {
	t := strings.TrimSpace(text)
	if t == "" {
		return mcp.NewToolResultError(normalize(Validation, ""))
	}
	parts := strings.SplitN(t, ":", 2)
	if len(parts) == 0 {
		return mcp.NewToolResultError(normalize(Validation, t))
	}
	code := Code(strings.TrimSpace(parts[0]))
	msg := ""
	if len(parts) > 1 {
		msg = strings.TrimSpace(parts[1])
	}
	return mcp.NewToolResultError(normalize(code, msg))
}

// New returns an MCP error result for a given code and optional message override.
func New(code Code, message string) *mcp.CallToolResult {
	return mcp.NewToolResultError(normalize(code, message))
}

// Wrapf formats details and returns an MCP error result for the code.
func Wrapf(code Code, format string, args ...any) *mcp.CallToolResult {
	return mcp.NewToolResultError(normalize(code, fmt.Sprintf(format, args...)))
}

// Helpers for common mappings

// IsInvalidSheet reports whether err carries excelize's missing-sheet error.
func IsInvalidSheet(err error) bool {
	var missing excelize.ErrSheetNotExist
	return errors.As(err, &missing)
}

// IsCorruptWorkbook reports whether err comes from a file that is not a
// readable workbook archive.
func IsCorruptWorkbook(err error) bool {
	switch {
	case errors.Is(err, zip.ErrFormat),
		errors.Is(err, zip.ErrAlgorithm),
		errors.Is(err, zip.ErrChecksum),
		errors.Is(err, excelize.ErrWorkbookFileFormat),
		errors.Is(err, excelize.ErrWorkbookPassword):
		return true
	}
	return false
}
