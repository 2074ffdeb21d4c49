package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/lepinkainen/feed-recorder/pkg/feedtypes"
	"github.com/lepinkainen/feed-recorder/pkg/testutil"
)

func TestCSVMergeCreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feed_data.csv")
	store := &CSVStore{}

	result, err := store.Merge(path, fixtureEntries())
	if err != nil {
		t.Fatalf("Merge() error = %v", err)
	}
	if result.Added != 2 || result.Total != 2 {
		t.Errorf("Merge() = %+v, want Added=2 Total=2", result)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read output file: %v", err)
	}
	testutil.CompareGoldenBytes(t, filepath.Join("testdata", "first_run.csv.golden"), data)
}

func TestCSVMergeSkipsExistingURLs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feed_data.csv")
	store := &CSVStore{}

	if _, err := store.Merge(path, fixtureEntries()); err != nil {
		t.Fatalf("first Merge() error = %v", err)
	}

	result, err := store.Merge(path, fixtureEntries())
	if err != nil {
		t.Fatalf("second Merge() error = %v", err)
	}
	if result.Added != 0 {
		t.Errorf("Merge() Added = %d, want 0 when re-recording the same entries", result.Added)
	}
	if result.Total != 2 {
		t.Errorf("Merge() Total = %d, want 2", result.Total)
	}
}

func TestCSVLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feed_data.csv")
	store := &CSVStore{}
	want := fixtureEntries()

	if _, err := store.Merge(path, want); err != nil {
		t.Fatalf("Merge() error = %v", err)
	}

	got, err := store.Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestCSVFieldsWithCommasAndQuotes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feed_data.csv")
	store := &CSVStore{}

	want := []feedtypes.Entry{{
		Timestamp: time.Date(2026, 2, 9, 10, 0, 0, 0, time.UTC),
		Title:     `Comma, and "quotes" in title`,
		Author:    "Alice",
		FeedURL:   "https://blog.example/rss.xml",
		EntryURL:  "https://blog.example/posts/1",
	}}

	if _, err := store.Merge(path, want); err != nil {
		t.Fatalf("Merge() error = %v", err)
	}

	got, err := store.Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestCSVLoadMissingFile(t *testing.T) {
	store := &CSVStore{}
	entries, err := store.Load(filepath.Join(t.TempDir(), "missing.csv"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if entries != nil {
		t.Errorf("Load() of missing file = %v, want nil", entries)
	}
}

func TestCSVLoadRejectsBadTimestamp(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feed_data.csv")
	content := "timestamp,title,author,feed_url,entry_url,topics\nnot-a-date,t,a,f,e,\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}

	store := &CSVStore{}
	if _, err := store.Load(path); err == nil {
		t.Error("Load() should fail on an unparsable timestamp")
	}
}
