package version

import (
	"strings"
	"testing"
)

func TestString(t *testing.T) {
	got := String()
	if !strings.HasPrefix(got, "mfgstats ") {
		t.Fatalf("String() = %q", got)
	}
	if Version() == "" {
		t.Fatal("Version() is empty")
	}
}
