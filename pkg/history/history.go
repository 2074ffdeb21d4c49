// Package history maintains the SQLite index of every feed entry the
// recorder has ever seen. Deduplication against the index survives output
// file rotation, which deduplication against the output file alone does not.
package history

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/lepinkainen/feed-recorder/pkg/database"
	"github.com/lepinkainen/feed-recorder/pkg/dbinterfaces"
	"github.com/lepinkainen/feed-recorder/pkg/feedtypes"
	"github.com/lepinkainen/feed-recorder/pkg/filesystem"
	"github.com/lepinkainen/feed-recorder/pkg/urlutils"
)

// Store records which entry URLs have already been recorded.
type Store struct {
	db *database.Database
}

var (
	_ dbinterfaces.Database      = (*Store)(nil)
	_ dbinterfaces.StatsProvider = (*Store)(nil)
	_ dbinterfaces.PruneProvider = (*Store)(nil)
)

// Open opens (creating if necessary) the history database at path.
func Open(path string) (*Store, error) {
	if err := filesystem.EnsureDirectoryExists(path); err != nil {
		return nil, err
	}

	db, err := database.NewDatabase(database.Config{Path: path})
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}

	store := &Store{db: db}
	if err := store.initializeSchema(); err != nil {
		return nil, err
	}

	return store, nil
}

func (s *Store) initializeSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS entries (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		entry_url TEXT NOT NULL UNIQUE,     -- normalized URL, the deduplication key
		title TEXT NOT NULL,
		feed_url TEXT NOT NULL,
		recorded_at TIMESTAMP NOT NULL,     -- publication timestamp of the entry
		first_seen TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_entries_feed ON entries(feed_url);
	CREATE INDEX IF NOT EXISTS idx_entries_first_seen ON entries(first_seen);
	`
	if err := s.db.ExecuteSchema(schema); err != nil {
		return fmt.Errorf("failed to create history schema: %w", err)
	}
	return nil
}

// Seen reports whether the entry URL is already in the index.
func (s *Store) Seen(entryURL string) (bool, error) {
	key := urlutils.Normalize(entryURL)
	if key == "" {
		return false, nil
	}

	var one int
	err := s.db.DB().QueryRow(`SELECT 1 FROM entries WHERE entry_url = ?`, key).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to query history: %w", err)
	}
	return true, nil
}

// FilterNew returns the subset of entries whose URLs are not yet in the
// index. URLs repeated within the batch are kept once; entries without a
// URL cannot be deduplicated here and pass through.
func (s *Store) FilterNew(entries []feedtypes.Entry) ([]feedtypes.Entry, error) {
	batch := make(map[string]bool, len(entries))
	fresh := make([]feedtypes.Entry, 0, len(entries))
	for _, entry := range entries {
		key := urlutils.Normalize(entry.EntryURL)
		if key != "" && batch[key] {
			continue
		}

		seen, err := s.Seen(entry.EntryURL)
		if err != nil {
			return nil, err
		}
		if seen {
			continue
		}

		if key != "" {
			batch[key] = true
		}
		fresh = append(fresh, entry)
	}
	return fresh, nil
}

// MarkSeen records entries in the index. Entries without a URL are skipped.
// The whole batch is written in one transaction.
func (s *Store) MarkSeen(entries []feedtypes.Entry) error {
	if len(entries) == 0 {
		return nil
	}

	return s.db.Transaction(func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(`
			INSERT INTO entries (entry_url, title, feed_url, recorded_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(entry_url) DO UPDATE SET
				title = excluded.title,
				feed_url = excluded.feed_url`) // first_seen and recorded_at keep their original values
		if err != nil {
			return fmt.Errorf("failed to prepare history insert: %w", err)
		}
		defer stmt.Close()

		for _, entry := range entries {
			key := urlutils.Normalize(entry.EntryURL)
			if key == "" {
				continue
			}
			if _, err := stmt.Exec(key, entry.Title, entry.FeedURL, entry.Timestamp.UTC()); err != nil {
				return fmt.Errorf("failed to record entry %q: %w", key, err)
			}
		}
		return nil
	})
}

// GetStats returns history index statistics
func (s *Store) GetStats() (map[string]any, error) {
	stats := make(map[string]any)

	var total int64
	if err := s.db.DB().QueryRow(`SELECT COUNT(*) FROM entries`).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count history entries: %w", err)
	}
	stats["total_entries"] = total

	var feeds int64
	if err := s.db.DB().QueryRow(`SELECT COUNT(DISTINCT feed_url) FROM entries`).Scan(&feeds); err != nil {
		return nil, fmt.Errorf("failed to count feeds: %w", err)
	}
	stats["feeds"] = feeds

	var newest sql.NullString
	if err := s.db.DB().QueryRow(`SELECT MAX(first_seen) FROM entries`).Scan(&newest); err != nil {
		return nil, fmt.Errorf("failed to read newest entry: %w", err)
	}
	if newest.Valid {
		stats["newest_first_seen"] = newest.String
	}

	if size, err := database.GetDatabaseSize(s.db.Path()); err == nil {
		stats["file_size_bytes"] = size
	}

	return stats, nil
}

// CountByFeed returns the number of indexed entries per feed URL.
func (s *Store) CountByFeed() (map[string]int64, error) {
	rows, err := s.db.DB().Query(`SELECT feed_url, COUNT(*) FROM entries GROUP BY feed_url`)
	if err != nil {
		return nil, fmt.Errorf("failed to query per-feed counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var feedURL string
		var count int64
		if err := rows.Scan(&feedURL, &count); err != nil {
			return nil, fmt.Errorf("failed to scan per-feed count: %w", err)
		}
		counts[feedURL] = count
	}
	return counts, rows.Err()
}

// Prune deletes index rows first seen longer than olderThan ago and
// returns the number of rows removed.
func (s *Store) Prune(olderThan time.Duration) (int64, error) {
	// first_seen defaults to CURRENT_TIMESTAMP, which SQLite stores as
	// "YYYY-MM-DD HH:MM:SS" in UTC; the cutoff must use the same layout.
	cutoff := time.Now().Add(-olderThan).UTC().Format("2006-01-02 15:04:05")

	result, err := s.db.DB().Exec(`DELETE FROM entries WHERE first_seen < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune history: %w", err)
	}

	removed, _ := result.RowsAffected()
	if removed > 0 {
		if err := database.VacuumDatabase(s.db); err != nil {
			return removed, err
		}
	}
	return removed, nil
}

// Close closes the underlying database
func (s *Store) Close() error {
	return s.db.Close()
}
