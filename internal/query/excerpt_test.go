package query

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestExcerptShortTextUnchanged(t *testing.T) {
	text := "A short chunk."
	if got := excerpt(text); got != text {
		t.Errorf("excerpt(%q) = %q, want unchanged", text, got)
	}
}

func TestExcerptEndsAtSentenceBoundary(t *testing.T) {
	text := strings.Repeat("This sentence carries the excerpt forward. ", 10)
	got := excerpt(text)

	if len(got) > excerptLength {
		t.Errorf("Excerpt is %d bytes, want at most %d", len(got), excerptLength)
	}
	if !strings.HasSuffix(got, ".") {
		t.Errorf("Excerpt %q does not end at a sentence boundary", got)
	}
	if !strings.HasPrefix(text, got) {
		t.Errorf("Excerpt %q is not a prefix of the source text", got)
	}
}

func TestExcerptWordBoundaryFallback(t *testing.T) {
	text := strings.Repeat("word ", 60)
	got := excerpt(text)

	if len(got) > excerptLength {
		t.Errorf("Excerpt is %d bytes, want at most %d", len(got), excerptLength)
	}
	if !strings.HasSuffix(got, "...") {
		t.Errorf("Excerpt %q is missing the ellipsis", got)
	}
	if trimmed := strings.TrimSuffix(got, "..."); !strings.HasSuffix(trimmed, "word") {
		t.Errorf("Excerpt %q was not cut at a word boundary", got)
	}
}

func TestExcerptHardCutFallback(t *testing.T) {
	text := strings.Repeat("x", 300)
	got := excerpt(text)

	if len(got) != excerptLength {
		t.Errorf("Excerpt length = %d, want exactly %d for an unbroken string", len(got), excerptLength)
	}
	if !strings.HasSuffix(got, "...") {
		t.Errorf("Excerpt %q is missing the ellipsis", got)
	}
}

func TestExcerptMultibyteSafe(t *testing.T) {
	text := strings.Repeat("日本語のテキスト", 20)
	got := excerpt(text)

	if !utf8.ValidString(got) {
		t.Errorf("Excerpt contains invalid UTF-8: %q", got)
	}
	if len(got) > excerptLength {
		t.Errorf("Excerpt is %d bytes, want at most %d", len(got), excerptLength)
	}
}
