package cli

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestTruncate(t *testing.T) {
	if got := truncate("short name", 40); got != "short name" {
		t.Fatalf("short string must pass through, got %q", got)
	}

	long := strings.Repeat("x", 50)
	got := truncate(long, 40)
	if len(got) != 40 || !strings.HasSuffix(got, "...") {
		t.Fatalf("unexpected truncation %q", got)
	}

	// Multi-byte rule names must not be cut mid-rune.
	accented := strings.Repeat("é", 20)
	got = truncate(accented, 10)
	if !utf8.ValidString(got) {
		t.Fatalf("truncation split a rune: %q", got)
	}
	if got != strings.Repeat("é", 7)+"..." {
		t.Fatalf("unexpected truncation %q", got)
	}
}
