// Package dbinterfaces provides shared database interface definitions.
package dbinterfaces

import (
	"io"
	"time"
)

// Database defines the common interface for database operations
type Database interface {
	io.Closer // Close() error
}

// StatsProvider defines the interface for databases that provide statistics
type StatsProvider interface {
	GetStats() (map[string]any, error)
}

// PruneProvider defines the interface for databases that can drop old rows
type PruneProvider interface {
	Prune(olderThan time.Duration) (int64, error)
}
