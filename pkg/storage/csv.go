package storage

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/lepinkainen/feed-recorder/pkg/feedtypes"
	"github.com/lepinkainen/feed-recorder/pkg/filesystem"
)

// csvHeader is the fixed column set of the CSV output format.
var csvHeader = []string{"timestamp", "title", "author", "feed_url", "entry_url", "topics"}

// topicSeparator joins the topics list into a single CSV column.
const topicSeparator = ", "

// CSVStore persists entries as CSV with a header row, newest first.
type CSVStore struct{}

func init() {
	MustRegister("csv", func() Store { return &CSVStore{} })
}

// Load reads all entries from a CSV output file.
func (s *CSVStore) Load(path string) ([]feedtypes.Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read output file: %w", err)
	}

	reader := csv.NewReader(bytes.NewReader(data))
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse existing CSV output: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	// First row is the header
	entries := make([]feedtypes.Entry, 0, len(records)-1)
	for i, record := range records[1:] {
		entry, err := recordToEntry(record)
		if err != nil {
			return nil, fmt.Errorf("failed to parse CSV row %d: %w", i+2, err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// Merge folds new entries into the CSV output file.
func (s *CSVStore) Merge(path string, entries []feedtypes.Entry) (*MergeResult, error) {
	if err := filesystem.EnsureDirectoryExists(path); err != nil {
		return nil, err
	}

	fileExisted := !os.IsNotExist(statError(path))
	existing, err := s.Load(path)
	if err != nil {
		return nil, err
	}

	combined, added := mergeEntries(existing, entries, fileExisted)

	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)
	if err := writer.Write(csvHeader); err != nil {
		return nil, fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, entry := range combined {
		if err := writer.Write(entryToRecord(entry)); err != nil {
			return nil, fmt.Errorf("failed to write CSV row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("failed to flush CSV output: %w", err)
	}

	if err := writeAtomic(path, buf.Bytes()); err != nil {
		return nil, err
	}

	return &MergeResult{Added: added, Total: len(combined)}, nil
}

func statError(path string) error {
	_, err := os.Stat(path)
	return err
}

func entryToRecord(entry feedtypes.Entry) []string {
	return []string{
		entry.Timestamp.Format(time.RFC3339),
		entry.Title,
		entry.Author,
		entry.FeedURL,
		entry.EntryURL,
		strings.Join(entry.Topics, topicSeparator),
	}
}

func recordToEntry(record []string) (feedtypes.Entry, error) {
	if len(record) != len(csvHeader) {
		return feedtypes.Entry{}, fmt.Errorf("expected %d columns, got %d", len(csvHeader), len(record))
	}

	timestamp, err := time.Parse(time.RFC3339, record[0])
	if err != nil {
		return feedtypes.Entry{}, fmt.Errorf("invalid timestamp %q: %w", record[0], err)
	}

	var topics []string
	if record[5] != "" {
		topics = strings.Split(record[5], topicSeparator)
	}

	return feedtypes.Entry{
		Timestamp: timestamp,
		Title:     record[1],
		Author:    record[2],
		FeedURL:   record[3],
		EntryURL:  record[4],
		Topics:    topics,
	}, nil
}
