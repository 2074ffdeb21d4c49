// Package storage persists recorded entries to the output file. Formats
// self-register in a registry keyed by name; the output path extension picks
// the format unless the configuration overrides it.
package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/lepinkainen/feed-recorder/pkg/feedtypes"
	"github.com/lepinkainen/feed-recorder/pkg/urlutils"
)

// Store reads and writes one output file format.
type Store interface {
	// Load reads all entries from the output file. A missing file yields an
	// empty slice.
	Load(path string) ([]feedtypes.Entry, error)
	// Merge folds new entries into the output file and reports how many
	// were added and the resulting total.
	Merge(path string, entries []feedtypes.Entry) (*MergeResult, error)
}

// MergeResult reports the outcome of a merge.
type MergeResult struct {
	Added int
	Total int
}

// Factory creates a store instance.
type Factory func() Store

// Registry manages registered output formats.
type Registry struct {
	mu      sync.RWMutex
	formats map[string]Factory
}

// NewRegistry creates an empty format registry.
func NewRegistry() *Registry {
	return &Registry{
		formats: make(map[string]Factory),
	}
}

// Register adds a format to the registry.
func (r *Registry) Register(name string, factory Factory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.formats[name]; exists {
		return fmt.Errorf("format %s is already registered", name)
	}

	r.formats[name] = factory
	return nil
}

// ForFormat returns a store for the named format.
func (r *Registry) ForFormat(name string) (Store, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	factory, exists := r.formats[strings.ToLower(name)]
	if !exists {
		return nil, fmt.Errorf("unsupported output format: %s", name)
	}
	return factory(), nil
}

// ForPath returns a store based on the output path extension.
func (r *Registry) ForPath(path string) (Store, error) {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	if ext == "" {
		return nil, fmt.Errorf("output path %s has no extension to derive a format from", path)
	}
	return r.ForFormat(ext)
}

// List returns all registered format names.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.formats))
	for name := range r.formats {
		names = append(names, name)
	}
	return names
}

// Global registry instance
var DefaultRegistry = NewRegistry()

// MustRegister registers a format with the default registry, panicking on
// conflict. Used from init() in the format implementations.
func MustRegister(name string, factory Factory) {
	if err := DefaultRegistry.Register(name, factory); err != nil {
		panic(err)
	}
}

// ForOutput resolves a store from an explicit format override, falling back
// to the output path extension.
func ForOutput(path, format string) (Store, error) {
	if format != "" {
		return DefaultRegistry.ForFormat(format)
	}
	return DefaultRegistry.ForPath(path)
}

// mergeEntries folds incoming entries into the existing set. Only entries
// whose normalized URL is absent from the file and from earlier entries in
// the same batch are added; two feeds carrying the same article contribute
// one record. Entries without a URL cannot be deduplicated and are kept
// only when the file is first created.
func mergeEntries(existing, incoming []feedtypes.Entry, fileExisted bool) ([]feedtypes.Entry, int) {
	seen := make(map[string]bool, len(existing))
	for _, entry := range existing {
		if key := urlutils.Normalize(entry.EntryURL); key != "" {
			seen[key] = true
		}
	}

	combined := append([]feedtypes.Entry(nil), existing...)
	added := 0
	for _, entry := range incoming {
		key := urlutils.Normalize(entry.EntryURL)
		if key == "" {
			if fileExisted {
				continue
			}
		} else {
			if seen[key] {
				continue
			}
			seen[key] = true
		}
		combined = append(combined, entry)
		added++
	}

	feedtypes.SortNewestFirst(combined)
	return combined, added
}

// writeAtomic writes data to path via a temp file and rename so a crashed
// run never truncates prior data.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".feed-recorder-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to set output permissions: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace output file: %w", err)
	}
	return nil
}
