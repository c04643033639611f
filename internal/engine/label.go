package engine

import (
	"strings"
)

const (
	// DefaultLabelMaxLen is the display width for shortened sector labels.
	DefaultLabelMaxLen = 25
	// DefaultLabelPrefix is stripped from NIC descriptions for display.
	DefaultLabelPrefix = "Manufacture of"

	ellipsis = "..."
)

// ShortenLabel strips prefix from label when present, trims whitespace and
// truncates the rest to maxLen characters, the last three being an ellipsis.
// Labels without the prefix are returned unchanged. maxLen <= 0 disables
// truncation. The original label stays the group key; this is for display
// only.
func ShortenLabel(label string, maxLen int, prefix string) string {
	if prefix == "" || !strings.HasPrefix(label, prefix) {
		return label
	}
	out := strings.TrimSpace(strings.TrimPrefix(label, prefix))
	if maxLen <= 0 {
		return out
	}
	runes := []rune(out)
	if len(runes) <= maxLen {
		return out
	}
	if maxLen <= len(ellipsis) {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-len(ellipsis)]) + ellipsis
}

// ShortenDefault applies ShortenLabel with the default width and prefix.
func ShortenDefault(label string) string {
	return ShortenLabel(label, DefaultLabelMaxLen, DefaultLabelPrefix)
}
