package dataset

import (
	"fmt"
	"strings"

	"github.com/vinodismyname/mfgstats/internal/engine"
)

// Column headers of Annual Survey of Industries extracts.
const (
	ColumnYear     = "Year"
	ColumnState    = "State"
	ColumnCategory = "NIC Description"
	ColumnValue    = "Value"
	ColumnSource   = "Source"
)

// metricHints are matched case-insensitively against headers when the
// preferred metric column is absent.
var metricHints = []string{"value", "count", "number"}

// MissingColumnError reports that no metric column could be resolved.
type MissingColumnError struct {
	Preferred string
	Headers   []string
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("dataset: no metric column: %q not found and no header contains %s (headers: %s)",
		e.Preferred, strings.Join(metricHints, "/"), strings.Join(e.Headers, ", "))
}

// Is lets errors.Is match engine.ErrMissingColumn.
func (e *MissingColumnError) Is(target error) bool {
	return target == engine.ErrMissingColumn
}

// ResolveMetricColumn picks the metric column from headers: the preferred
// header when present (Value when preferred is empty), otherwise the first
// header containing "value", "count" or "number".
func ResolveMetricColumn(headers []string, preferred string) (string, error) {
	if strings.TrimSpace(preferred) == "" {
		preferred = ColumnValue
	}
	for _, h := range headers {
		if h == preferred {
			return h, nil
		}
	}
	for _, h := range headers {
		low := strings.ToLower(h)
		for _, hint := range metricHints {
			if strings.Contains(low, hint) {
				return h, nil
			}
		}
	}
	return "", &MissingColumnError{Preferred: preferred, Headers: append([]string(nil), headers...)}
}
