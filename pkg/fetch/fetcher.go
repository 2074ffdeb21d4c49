// Package fetch downloads RSS/Atom feeds and converts their items into
// recorded entries.
package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mmcdole/gofeed"
	"golang.org/x/sync/errgroup"

	"github.com/lepinkainen/feed-recorder/pkg/api"
	"github.com/lepinkainen/feed-recorder/pkg/feedtypes"
	httputil "github.com/lepinkainen/feed-recorder/pkg/http"
	"github.com/lepinkainen/feed-recorder/pkg/subscription"
	"github.com/lepinkainen/feed-recorder/pkg/urlutils"
)

const maxTitleLen = 500

// Config holds fetcher configuration
type Config struct {
	Timeout     time.Duration
	MaxRetries  int
	Delay       time.Duration // minimum delay between feed requests
	Concurrency int
	UserAgent   string
	MaxPerFeed  int // 0 = unlimited
}

// DefaultConfig returns default fetcher configuration
func DefaultConfig() Config {
	return Config{
		Timeout:     10 * time.Second,
		MaxRetries:  3,
		Delay:       1 * time.Second,
		Concurrency: 4,
		UserAgent:   "feed-recorder/1.0",
	}
}

// Fetcher downloads and parses feeds.
type Fetcher struct {
	client      *httputil.Client
	parser      *gofeed.Parser
	limiter     api.RateLimiter
	concurrency int
	maxPerFeed  int

	now func() time.Time
}

// Result is the outcome of fetching a set of feeds.
type Result struct {
	Entries []feedtypes.Entry
	// Failed maps feed URL to the error that sank it. Failed feeds never
	// abort a run.
	Failed map[string]error
}

// NewFetcher creates a fetcher from the given configuration.
func NewFetcher(config Config) *Fetcher {
	httpConfig := httputil.DefaultConfig()
	if config.Timeout > 0 {
		httpConfig.Timeout = config.Timeout
	}
	if config.MaxRetries >= 0 {
		httpConfig.MaxRetries = config.MaxRetries
	}
	if config.UserAgent != "" {
		httpConfig.UserAgent = config.UserAgent
	}

	var limiter api.RateLimiter = api.NewNoOpRateLimiter()
	if config.Delay > 0 {
		limiter = api.NewSimpleRateLimiter(config.Delay)
	}

	concurrency := config.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	return &Fetcher{
		client:      httputil.NewClient(httpConfig),
		parser:      gofeed.NewParser(),
		limiter:     limiter,
		concurrency: concurrency,
		maxPerFeed:  config.MaxPerFeed,
		now:         time.Now,
	}
}

// FetchAll fetches every subscription with bounded concurrency. Feed
// failures are collected in the result, not returned as an error.
func (f *Fetcher) FetchAll(ctx context.Context, subs []subscription.Subscription) *Result {
	result := &Result{
		Failed: make(map[string]error),
	}

	var mu sync.Mutex
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(f.concurrency)

	for _, sub := range subs {
		sub := sub
		g.Go(func() error {
			entries, err := f.Fetch(ctx, sub)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				slog.Error("Error processing feed", "feed", sub.DisplayName(), "error", err)
				result.Failed[sub.URL] = err
				return nil
			}
			result.Entries = append(result.Entries, entries...)
			return nil
		})
	}

	// Goroutines never return errors; Wait only observes context cancellation
	_ = g.Wait()

	return result
}

// Fetch downloads and parses a single subscription.
func (f *Fetcher) Fetch(ctx context.Context, sub subscription.Subscription) ([]feedtypes.Entry, error) {
	feed, err := f.parseFeed(ctx, sub.URL)
	if err != nil {
		return nil, err
	}

	entries := f.convertItems(feed, sub)
	slog.Info("Processed feed", "feed", sub.DisplayName(), "entries", len(entries))
	return entries, nil
}

// Validate fetches a feed once and returns its title and entry count.
func (f *Fetcher) Validate(ctx context.Context, sub subscription.Subscription) (string, int, error) {
	feed, err := f.parseFeed(ctx, sub.URL)
	if err != nil {
		return "", 0, err
	}

	title := StripHTML(feed.Title)
	if title == "" {
		title = sub.URL
	}
	return title, len(feed.Items), nil
}

// parseFeed performs the rate-limited HTTP fetch and gofeed parse.
func (f *Fetcher) parseFeed(ctx context.Context, url string) (*gofeed.Feed, error) {
	f.limiter.Wait()

	slog.Info("Fetching feed", "url", url)
	resp, err := f.client.GetWithContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if err := httputil.EnsureStatusOK(resp); err != nil {
		return nil, fmt.Errorf("HTTP error fetching feed: %w", err)
	}

	feed, err := f.parser.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}
	return feed, nil
}

// convertItems maps gofeed items onto recorded entries.
func (f *Fetcher) convertItems(feed *gofeed.Feed, sub subscription.Subscription) []feedtypes.Entry {
	count := len(feed.Items)
	if f.maxPerFeed > 0 && count > f.maxPerFeed {
		count = f.maxPerFeed
	}

	entries := make([]feedtypes.Entry, 0, count)
	for _, item := range feed.Items[:count] {
		entries = append(entries, feedtypes.Entry{
			Timestamp: f.itemTimestamp(item),
			Title:     itemTitle(item),
			Author:    itemAuthor(item, feed),
			FeedURL:   sub.URL,
			EntryURL:  itemLink(item, feed),
			Topics:    itemTopics(item, sub),
		})
	}
	return entries
}

// itemTimestamp prefers the publication date, then the update date, then
// the current time.
func (f *Fetcher) itemTimestamp(item *gofeed.Item) time.Time {
	if item.PublishedParsed != nil {
		return *item.PublishedParsed
	}
	if item.UpdatedParsed != nil {
		return *item.UpdatedParsed
	}
	slog.Warn("No valid date found for entry", "title", item.Title)
	return f.now()
}

func itemTitle(item *gofeed.Item) string {
	title := Truncate(StripHTML(item.Title), maxTitleLen)
	if title == "" {
		title = "No title"
	}
	return title
}

func itemAuthor(item *gofeed.Item, feed *gofeed.Feed) string {
	if item.Author != nil && item.Author.Name != "" {
		return StripHTML(item.Author.Name)
	}
	for _, author := range item.Authors {
		if author != nil && author.Name != "" {
			return StripHTML(author.Name)
		}
	}
	if feed.Author != nil && feed.Author.Name != "" {
		return StripHTML(feed.Author.Name)
	}
	return "Unknown"
}

// itemLink resolves relative entry links against the feed's site link.
func itemLink(item *gofeed.Item, feed *gofeed.Feed) string {
	link := item.Link
	if link == "" {
		return ""
	}

	if feed.Link != "" {
		if resolved, err := urlutils.ResolveURL(feed.Link, link); err == nil {
			return resolved
		}
	}
	return link
}

// itemTopics combines item categories with topics stamped on the
// subscription, dropping empties and duplicates.
func itemTopics(item *gofeed.Item, sub subscription.Subscription) []string {
	topics := make([]string, 0, len(item.Categories)+len(sub.Topics))
	seen := make(map[string]bool)

	for _, category := range item.Categories {
		topic := StripHTML(category)
		if topic == "" || seen[topic] {
			continue
		}
		seen[topic] = true
		topics = append(topics, topic)
	}
	for _, topic := range sub.Topics {
		if topic == "" || seen[topic] {
			continue
		}
		seen[topic] = true
		topics = append(topics, topic)
	}

	return topics
}
