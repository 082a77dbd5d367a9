package query

import (
	"strings"
	"unicode/utf8"
)

// excerptLength is the target size of a source excerpt.
const excerptLength = 200

// excerpt condenses chunk text for source attribution. It truncates to about
// excerptLength characters, ending at a sentence boundary when one exists,
// falling back to a word boundary with an ellipsis, then to a hard cut.
func excerpt(text string) string {
	return truncate(text, excerptLength)
}

func truncate(text string, maxLen int) string {
	if len(text) <= maxLen {
		return text
	}

	ellipsis := "..."
	truncated := cutAtRune(text, maxLen)

	// Look for common sentence terminators
	lastPeriod := strings.LastIndex(truncated, ".")
	lastQuestion := strings.LastIndex(truncated, "?")
	lastExclamation := strings.LastIndex(truncated, "!")

	lastSentenceBoundary := max(lastPeriod, max(lastQuestion, lastExclamation))
	if lastSentenceBoundary > 0 {
		return truncated[:lastSentenceBoundary+1]
	}

	// No sentence boundary; retruncate leaving room for the ellipsis and end
	// at a word boundary.
	cut := maxLen - len(ellipsis)
	if cut < 0 {
		cut = 0
	}
	truncated = cutAtRune(text, cut)

	lastSpace := strings.LastIndex(truncated, " ")
	if lastSpace > 0 {
		return truncated[:lastSpace] + ellipsis
	}

	return truncated + ellipsis
}

// cutAtRune returns text cut to at most n bytes without splitting a rune.
func cutAtRune(text string, n int) string {
	if len(text) <= n {
		return text
	}
	for n > 0 && !utf8.RuneStart(text[n]) {
		n--
	}
	return text[:n]
}
