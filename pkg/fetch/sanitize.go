package fetch

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
)

// StripHTML reduces an HTML fragment to its text content. Feed titles and
// categories are frequently delivered with embedded markup and entities;
// recorded fields are plain text.
func StripHTML(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return collapseWhitespace(s)
	}

	var b strings.Builder
	tokenizer := html.NewTokenizer(strings.NewReader(s))

	for {
		tt := tokenizer.Next()
		if tt == html.ErrorToken {
			break
		}
		if tt == html.TextToken {
			b.Write(tokenizer.Text())
		}
	}

	return collapseWhitespace(b.String())
}

// collapseWhitespace merges runs of whitespace into single spaces and trims
// the ends.
func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Truncate shortens a string to maxLen runes, appending an ellipsis when
// anything was cut.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 || utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxLen]) + "..."
}
