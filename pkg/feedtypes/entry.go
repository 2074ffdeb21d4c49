// Package feedtypes provides shared type definitions for recorded feed entries.
package feedtypes

import (
	"sort"
	"time"
)

// Entry is a single recorded feed entry.
type Entry struct {
	Timestamp time.Time `json:"timestamp"`
	Title     string    `json:"title"`
	Author    string    `json:"author"`
	FeedURL   string    `json:"feed_url"`
	EntryURL  string    `json:"entry_url"`
	Topics    []string  `json:"topics"`
}

// SortNewestFirst orders entries by timestamp descending. Ties are broken by
// entry URL so repeated runs produce identical output files.
func SortNewestFirst(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Timestamp.Equal(entries[j].Timestamp) {
			return entries[i].EntryURL < entries[j].EntryURL
		}
		return entries[i].Timestamp.After(entries[j].Timestamp)
	})
}
