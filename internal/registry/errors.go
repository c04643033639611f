package registry

import (
	"context"
	"errors"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/vinodismyname/mfgstats/internal/dashboard"
	"github.com/vinodismyname/mfgstats/internal/dataset"
	"github.com/vinodismyname/mfgstats/internal/engine"
	"github.com/vinodismyname/mfgstats/internal/export"
	"github.com/vinodismyname/mfgstats/internal/runtime"
	"github.com/vinodismyname/mfgstats/internal/security"
	"github.com/vinodismyname/mfgstats/internal/workbooks"
	"github.com/vinodismyname/mfgstats/pkg/mcperr"
	"github.com/vinodismyname/mfgstats/pkg/pagination"
)

// toolError maps domain and infrastructure errors onto catalog codes.
// fallback is used for anything unrecognized.
func toolError(err error, fallback mcperr.Code) *mcp.CallToolResult {
	var missing *dataset.MissingColumnError
	switch {
	case errors.As(err, &missing):
		return mcperr.Wrapf(mcperr.MissingColumn, "no metric column among headers %v", missing.Headers)
	case errors.Is(err, engine.ErrMissingColumn):
		return mcperr.New(mcperr.MissingColumn, err.Error())
	case errors.Is(err, engine.ErrInsufficientData):
		return mcperr.New(mcperr.InsufficientData, "")
	case errors.Is(err, engine.ErrUndefinedGrowth):
		return mcperr.New(mcperr.UndefinedGrowth, "")
	case errors.Is(err, dashboard.ErrNoData), errors.Is(err, dataset.ErrNoRows):
		return mcperr.New(mcperr.NoData, "")
	case errors.Is(err, workbooks.ErrHandleNotFound):
		return mcperr.New(mcperr.InvalidHandle, "")
	case errors.Is(err, workbooks.ErrNoSource):
		return mcperr.New(mcperr.Validation, "dataset was not loaded from a file and cannot be reloaded")
	case errors.Is(err, workbooks.ErrUnsupportedFormat),
		errors.Is(err, security.ErrUnsupportedExtension),
		errors.Is(err, export.ErrUnsupportedFormat):
		return mcperr.New(mcperr.UnsupportedFormat, err.Error())
	case errors.Is(err, security.ErrNotAllowed):
		return mcperr.New(mcperr.PermissionDenied, "path is outside the allowed directories")
	case errors.Is(err, security.ErrNotFound):
		return mcperr.New(mcperr.OpenFailed, "file not found")
	case errors.Is(err, security.ErrExists):
		return mcperr.New(mcperr.AlreadyExists, "")
	case errors.Is(err, runtime.ErrDatasetLimit):
		return mcperr.New(mcperr.BusyResource, "open dataset limit reached; close a dataset and retry")
	case errors.Is(err, pagination.ErrStale):
		return mcperr.New(mcperr.CursorInvalid, "")
	case errors.Is(err, context.DeadlineExceeded):
		return mcperr.New(mcperr.Timeout, "")
	case mcperr.IsInvalidSheet(err):
		return mcperr.New(mcperr.InvalidSheet, err.Error())
	case mcperr.IsCorruptWorkbook(err):
		return mcperr.New(mcperr.CorruptWorkbook, err.Error())
	}
	return mcperr.New(fallback, err.Error())
}
