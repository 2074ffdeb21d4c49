package storage

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/lepinkainen/feed-recorder/pkg/feedtypes"
	"github.com/lepinkainen/feed-recorder/pkg/filesystem"
)

// JSONStore persists entries as an indented JSON array, newest first.
type JSONStore struct{}

func init() {
	MustRegister("json", func() Store { return &JSONStore{} })
}

// Load reads all entries from a JSON output file.
func (s *JSONStore) Load(path string) ([]feedtypes.Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read output file: %w", err)
	}

	var entries []feedtypes.Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse existing JSON output: %w", err)
	}
	return entries, nil
}

// Merge folds new entries into the JSON output file.
func (s *JSONStore) Merge(path string, entries []feedtypes.Entry) (*MergeResult, error) {
	if err := filesystem.EnsureDirectoryExists(path); err != nil {
		return nil, err
	}

	fileExisted := !os.IsNotExist(statError(path))
	existing, err := s.Load(path)
	if err != nil {
		return nil, err
	}

	combined, added := mergeEntries(existing, entries, fileExisted)

	data, err := json.MarshalIndent(combined, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal entries: %w", err)
	}
	data = append(data, '\n')

	if err := writeAtomic(path, data); err != nil {
		return nil, err
	}

	return &MergeResult{Added: added, Total: len(combined)}, nil
}
