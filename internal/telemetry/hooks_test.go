package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	dec := json.NewDecoder(buf)
	for dec.More() {
		var m map[string]any
		require.NoError(t, dec.Decode(&m))
		out = append(out, m)
	}
	return out
}

func TestOnToolCall_LevelsByOutcome(t *testing.T) {
	var buf bytes.Buffer
	h := NewHooks(zerolog.New(&buf))

	h.OnToolCall("s1", "sector_summary", 5*time.Millisecond, mcp.NewToolResultText("ok"))
	h.OnToolCall("s1", "time_series_trend", time.Millisecond, mcp.NewToolResultError("INSUFFICIENT_DATA: at least two periods are required"))

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 2)
	require.Equal(t, "info", lines[0]["level"])
	require.Equal(t, "sector_summary", lines[0]["tool"])
	require.Equal(t, "warn", lines[1]["level"])
	require.Equal(t, "INSUFFICIENT_DATA: at least two periods are required", lines[1]["error"])
}

func TestServerHooks_MeasuresToolDuration(t *testing.T) {
	var buf bytes.Buffer
	h := NewHooks(zerolog.New(&buf))
	base := time.Unix(1700000000, 0)
	calls := 0
	h.now = func() time.Time {
		calls++
		return base.Add(time.Duration(calls-1) * 250 * time.Millisecond)
	}

	hooks := h.Server()
	req := &mcp.CallToolRequest{}
	req.Params.Name = "load_dataset"
	for _, fn := range hooks.OnBeforeCallTool {
		fn(context.Background(), 7, req)
	}
	for _, fn := range hooks.OnAfterCallTool {
		fn(context.Background(), 7, req, mcp.NewToolResultText("ok"))
	}

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	require.Equal(t, "load_dataset", lines[0]["tool"])
	require.EqualValues(t, 250, lines[0]["duration"])
}
