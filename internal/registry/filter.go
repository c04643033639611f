package registry

import (
	"context"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/samber/lo"
)

// ExportToolFilter hides export tools unless exports are enabled
// (MFGSTATS_ENABLE_EXPORTS=true).
type ExportToolFilter struct {
	allowExports bool
}

// NewExportToolFilter constructs a filter for the given setting.
func NewExportToolFilter(allowExports bool) *ExportToolFilter {
	return &ExportToolFilter{allowExports: allowExports}
}

// FilterTools implements server tool filtering semantics.
// When exports are disabled, tools prefixed export_ are excluded from discovery.
func (f *ExportToolFilter) FilterTools(ctx context.Context, tools []mcp.Tool) []mcp.Tool {
	if f.allowExports {
		return tools
	}
	return lo.Reject(tools, func(t mcp.Tool, _ int) bool {
		return isExportTool(t.Name)
	})
}

func isExportTool(name string) bool {
	return strings.HasPrefix(strings.ToLower(name), "export_")
}
