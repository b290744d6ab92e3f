package main

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Fatalf("short input must pass through, got %q", got)
	}
	if got := truncate("exactly-ten", 11); got != "exactly-ten" {
		t.Fatalf("input at the limit must pass through, got %q", got)
	}
	got := truncate("a long line of content", 10)
	if got != "a long li…" {
		t.Fatalf("unexpected truncation: %q", got)
	}
}

func TestTruncateMultibyte(t *testing.T) {
	s := strings.Repeat("héllo wörld ", 10)
	got := truncate(s, 20)
	if !utf8.ValidString(got) {
		t.Fatalf("truncation split a rune: %q", got)
	}
	if utf8.RuneCountInString(got) != 20 {
		t.Fatalf("expected 20 runes, got %d in %q", utf8.RuneCountInString(got), got)
	}
	if !strings.HasSuffix(got, "…") {
		t.Fatalf("missing ellipsis: %q", got)
	}
}
