// Package recorder wires feed fetching, dedup and storage into the
// record pipeline.
package recorder

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/lepinkainen/feed-recorder/internal/config"
	"github.com/lepinkainen/feed-recorder/pkg/feedtypes"
	"github.com/lepinkainen/feed-recorder/pkg/fetch"
	"github.com/lepinkainen/feed-recorder/pkg/history"
	"github.com/lepinkainen/feed-recorder/pkg/storage"
	"github.com/lepinkainen/feed-recorder/pkg/subscription"
)

// Recorder runs the fetch-dedupe-store pipeline for one configuration.
type Recorder struct {
	config  *config.Config
	fetcher *fetch.Fetcher
	store   storage.Store
	history *history.Store // nil when history is disabled

	outputPath string
}

// Summary reports the outcome of one recording run.
type Summary struct {
	Feeds   int
	Fetched int
	Added   int
	Total   int
	Failed  map[string]error
}

// New builds a recorder from the given configuration.
func New(cfg *config.Config) (*Recorder, error) {
	outputPath, err := cfg.OutputPath()
	if err != nil {
		return nil, fmt.Errorf("resolving output path: %w", err)
	}

	store, err := storage.ForOutput(outputPath, cfg.Output.Format)
	if err != nil {
		return nil, err
	}

	r := &Recorder{
		config: cfg,
		fetcher: fetch.NewFetcher(fetch.Config{
			Timeout:     cfg.Fetch.Timeout,
			MaxRetries:  cfg.Fetch.MaxRetries,
			Delay:       cfg.Fetch.Delay,
			Concurrency: cfg.Fetch.Concurrency,
			UserAgent:   cfg.Fetch.UserAgent,
			MaxPerFeed:  cfg.Fetch.MaxPerFeed,
		}),
		store:      store,
		outputPath: outputPath,
	}

	if !cfg.History.Disable {
		historyPath, err := cfg.HistoryPath()
		if err != nil {
			return nil, fmt.Errorf("resolving history path: %w", err)
		}
		hist, err := history.Open(historyPath)
		if err != nil {
			return nil, fmt.Errorf("opening history: %w", err)
		}
		r.history = hist
	}

	return r, nil
}

// Close releases the history store.
func (r *Recorder) Close() error {
	if r.history == nil {
		return nil
	}
	return r.history.Close()
}

// History returns the history store, or nil when history is disabled.
func (r *Recorder) History() *history.Store {
	return r.history
}

// OutputPath returns the resolved output file path.
func (r *Recorder) OutputPath() string {
	return r.outputPath
}

// Subscriptions resolves the configured feed list: inline URLs plus the
// optional subscriptions source, with duplicates collapsed.
func (r *Recorder) Subscriptions(ctx context.Context) ([]subscription.Subscription, error) {
	subs := subscription.FromURLs(r.config.Feeds.URLs)

	source, err := r.config.SubscriptionsSource()
	if err != nil {
		return nil, fmt.Errorf("resolving subscriptions source: %w", err)
	}
	if source != "" {
		loaded, err := subscription.Load(ctx, &subscription.LoaderConfig{
			Source:    source,
			Timeout:   r.config.Fetch.Timeout,
			CachePath: r.subscriptionsCachePath(),
		})
		if err != nil {
			return nil, fmt.Errorf("loading subscriptions: %w", err)
		}
		subs = append(subs, loaded...)
	}

	subs = subscription.Dedupe(subs)
	if len(subs) == 0 {
		return nil, fmt.Errorf("no feeds configured")
	}
	return subs, nil
}

// subscriptionsCachePath places the cached remote subscriptions list next
// to the history database so a remote outage never sinks a cron run.
func (r *Recorder) subscriptionsCachePath() string {
	historyPath, err := r.config.HistoryPath()
	if err != nil {
		return ""
	}
	return filepath.Join(filepath.Dir(historyPath), "subscriptions_cache.yaml")
}

// Run executes one recording pass: fetch all feeds, filter out entries the
// history store has already seen, merge the remainder into the output file
// and record the newcomers.
func (r *Recorder) Run(ctx context.Context) (*Summary, error) {
	subs, err := r.Subscriptions(ctx)
	if err != nil {
		return nil, err
	}

	slog.Info("Starting recording run", "feeds", len(subs), "output", r.outputPath)

	result := r.fetcher.FetchAll(ctx, subs)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries := result.Entries
	fetched := len(entries)

	if r.history != nil {
		entries, err = r.history.FilterNew(entries)
		if err != nil {
			return nil, fmt.Errorf("filtering against history: %w", err)
		}
		if skipped := fetched - len(entries); skipped > 0 {
			slog.Debug("Skipped previously recorded entries", "count", skipped)
		}
	}

	merge, err := r.store.Merge(r.outputPath, entries)
	if err != nil {
		return nil, fmt.Errorf("writing output: %w", err)
	}

	if r.history != nil {
		if err := r.history.MarkSeen(entries); err != nil {
			return nil, fmt.Errorf("updating history: %w", err)
		}
	}

	summary := &Summary{
		Feeds:   len(subs),
		Fetched: fetched,
		Added:   merge.Added,
		Total:   merge.Total,
		Failed:  result.Failed,
	}

	slog.Info("Recording run complete",
		"feeds", summary.Feeds,
		"fetched", summary.Fetched,
		"added", summary.Added,
		"total", summary.Total,
		"failed", len(summary.Failed))

	return summary, nil
}

// Watch runs the pipeline on a fixed interval until the context is done.
// An immediate run happens before the first tick. Failed runs are logged
// and the loop keeps going.
func (r *Recorder) Watch(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("watch interval must be positive, got %v", interval)
	}

	if _, err := r.Run(ctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		slog.Error("Recording run failed", "error", err)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := r.Run(ctx); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				slog.Error("Recording run failed", "error", err)
			}
		}
	}
}

// Entries loads the current contents of the output file, newest first.
func (r *Recorder) Entries() ([]feedtypes.Entry, error) {
	entries, err := r.store.Load(r.outputPath)
	if err != nil {
		return nil, fmt.Errorf("reading output: %w", err)
	}
	feedtypes.SortNewestFirst(entries)
	return entries, nil
}
