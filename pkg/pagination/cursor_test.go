package pagination

import (
	"encoding/base64"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestEncodeDecodeCursor_RoundTrip(t *testing.T) {
	c := Cursor{
		V:   1,
		Did: "ds-123",
		Off: 200,
		Ps:  50,
		Lat: 1700000000000000000,
		St:  "Kerala",
		Yr:  []int{2019, 2020},
	}
	tok, err := EncodeCursor(c)
	if err != nil {
		t.Fatalf("EncodeCursor error: %v", err)
	}
	// token should be url-safe base64 (no '+', '/', '=')
	if strings.ContainsAny(tok, "+/=") {
		t.Fatalf("token contains non-url-safe chars: %q", tok)
	}
	out, err := DecodeCursor(tok)
	if err != nil {
		t.Fatalf("DecodeCursor error: %v", err)
	}
	if out.Did != c.Did || out.Off != c.Off || out.Ps != c.Ps || out.Lat != c.Lat || out.St != c.St || len(out.Yr) != 2 {
		t.Fatalf("roundtrip mismatch: got %+v want %+v", out, c)
	}
}

func TestDecodeCursor_Invalid(t *testing.T) {
	cases := []string{
		"",    // empty
		"!!!", // not base64
		base64.RawURLEncoding.EncodeToString([]byte("not-json")),
		// missing required fields
		mustB64(`{"v":1}`),
		mustB64(`{"v":1,"did":"","off":0,"ps":10}`),
		mustB64(`{"v":1,"did":"x","off":-1,"ps":10}`),
		mustB64(`{"v":1,"did":"x","off":0,"ps":0}`),
	}
	for i, tok := range cases {
		if _, err := DecodeCursor(tok); err == nil {
			t.Fatalf("case %d: expected error for token %q", i, tok)
		}
	}
}

func TestCursorCheckFresh(t *testing.T) {
	loaded := time.Unix(1700000000, 42)
	c := Cursor{Did: "ds", Lat: loaded.UnixNano()}

	if err := c.CheckFresh("ds", loaded); err != nil {
		t.Fatalf("expected fresh cursor, got %v", err)
	}
	if err := c.CheckFresh("ds", loaded.Add(time.Second)); !errors.Is(err, ErrStale) {
		t.Fatalf("expected ErrStale after reload, got %v", err)
	}
	if err := c.CheckFresh("other", loaded); !errors.Is(err, ErrStale) {
		t.Fatalf("expected ErrStale for other dataset, got %v", err)
	}
}

func TestNextOffset(t *testing.T) {
	if got := NextOffset(-5, 10); got != 10 {
		t.Fatalf("NextOffset(-5,10) = %d", got)
	}
	if got := NextOffset(20, 0); got != 20 {
		t.Fatalf("NextOffset(20,0) = %d", got)
	}
}

func FuzzDecodeCursor(f *testing.F) {
	seeds := []string{
		"", "abc", mustB64(`{"v":1}`), mustB64(`{"did":"x"}`),
		mustB64(`{"v":1,"did":"ds","off":0,"ps":1}`),
	}
	for _, s := range seeds {
		f.Add(s)
	}
	f.Fuzz(func(t *testing.T, token string) {
		_, _ = DecodeCursor(token)
	})
}

func mustB64(s string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(s))
}
