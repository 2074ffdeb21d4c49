package feedtypes

import (
	"testing"
	"time"
)

func TestSortNewestFirst(t *testing.T) {
	base := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)

	entries := []Entry{
		{Title: "oldest", EntryURL: "https://a.example/1", Timestamp: base.Add(-2 * time.Hour)},
		{Title: "newest", EntryURL: "https://a.example/2", Timestamp: base},
		{Title: "middle", EntryURL: "https://a.example/3", Timestamp: base.Add(-time.Hour)},
	}

	SortNewestFirst(entries)

	want := []string{"newest", "middle", "oldest"}
	for i, title := range want {
		if entries[i].Title != title {
			t.Errorf("entries[%d].Title = %q, want %q", i, entries[i].Title, title)
		}
	}
}

func TestSortNewestFirstBreaksTiesByURL(t *testing.T) {
	ts := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)

	entries := []Entry{
		{EntryURL: "https://b.example/post", Timestamp: ts},
		{EntryURL: "https://a.example/post", Timestamp: ts},
	}

	SortNewestFirst(entries)

	if entries[0].EntryURL != "https://a.example/post" {
		t.Errorf("tie not broken by URL, got %q first", entries[0].EntryURL)
	}
}
