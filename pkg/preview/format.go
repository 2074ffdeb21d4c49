// Package preview provides interactive browsing of recorded entries using a Bubble Tea TUI.
package preview

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/lepinkainen/feed-recorder/pkg/feedtypes"
)

// wrapText wraps text to the specified width, breaking at word boundaries when possible
func wrapText(text string, width int) string {
	if width <= 0 {
		width = 70
	}

	var result strings.Builder
	var line strings.Builder
	lineLen := 0

	words := strings.Fields(text)
	for i, word := range words {
		wordLen := len(word)

		// If adding this word would exceed width, start a new line
		if lineLen > 0 && lineLen+1+wordLen > width {
			result.WriteString(line.String())
			result.WriteString("\n")
			line.Reset()
			lineLen = 0
		}

		// Add space before word if not at start of line
		if lineLen > 0 {
			line.WriteString(" ")
			lineLen++
		}

		line.WriteString(word)
		lineLen += wordLen

		// Write the last line
		if i == len(words)-1 {
			result.WriteString(line.String())
		}
	}

	return result.String()
}

// FormatCompactListItem formats a single entry in compact list format
// Example: " 1. 2026-02-09T10:00:00Z  Post Title (Author)"
func FormatCompactListItem(index int, entry feedtypes.Entry) string {
	title := entry.Title
	dateISO := entry.Timestamp.Format(time.RFC3339)

	const maxTitleLength = 70
	if runes := []rune(title); len(runes) > maxTitleLength {
		title = string(runes[:maxTitleLength-3]) + "..."
	}

	if entry.Author != "" && entry.Author != "Unknown" {
		return fmt.Sprintf("%3d. %s  %s (%s)", index+1, dateISO, title, entry.Author)
	}
	return fmt.Sprintf("%3d. %s  %s", index+1, dateISO, title)
}

// FormatDetailedItem formats a single entry with all recorded fields
func FormatDetailedItem(entry feedtypes.Entry) string {
	var b strings.Builder

	b.WriteString("═══════════════════════════════════════════════════════════════════════\n")
	b.WriteString(fmt.Sprintf("Title: %s\n", wrapText(entry.Title, 70)))
	b.WriteString(fmt.Sprintf("Link: %s\n", entry.EntryURL))
	b.WriteString(fmt.Sprintf("Feed: %s\n", entry.FeedURL))

	if entry.Author != "" {
		b.WriteString(fmt.Sprintf("Author: %s\n", entry.Author))
	}

	if !entry.Timestamp.IsZero() {
		b.WriteString(fmt.Sprintf("Published: %s (%s)\n",
			entry.Timestamp.Format(time.RFC3339), formatTimeAgo(entry.Timestamp)))
	}

	if len(entry.Topics) > 0 {
		b.WriteString(fmt.Sprintf("Topics: %s\n", strings.Join(entry.Topics, ", ")))
	}

	b.WriteString("═══════════════════════════════════════════════════════════════════════\n")

	return b.String()
}

// FormatJSONItem renders a single entry exactly as it appears in the JSON
// output file
func FormatJSONItem(entry feedtypes.Entry) string {
	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return fmt.Sprintf("Error rendering entry: %s", err)
	}
	return string(data)
}

// formatTimeAgo formats a time.Time as a human-readable "X ago" string
func formatTimeAgo(t time.Time) string {
	duration := time.Since(t)

	switch {
	case duration < time.Minute:
		return "just now"
	case duration < time.Hour:
		mins := int(duration.Minutes())
		if mins == 1 {
			return "1 minute ago"
		}
		return fmt.Sprintf("%d minutes ago", mins)
	case duration < 24*time.Hour:
		hours := int(duration.Hours())
		if hours == 1 {
			return "1 hour ago"
		}
		return fmt.Sprintf("%d hours ago", hours)
	case duration < 7*24*time.Hour:
		days := int(duration.Hours() / 24)
		if days == 1 {
			return "1 day ago"
		}
		return fmt.Sprintf("%d days ago", days)
	default:
		return t.Format("2006-01-02")
	}
}
