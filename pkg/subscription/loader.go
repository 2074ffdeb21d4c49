package subscription

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lepinkainen/feed-recorder/pkg/filesystem"
	httputil "github.com/lepinkainen/feed-recorder/pkg/http"
)

// LoaderConfig represents subscription loading options
type LoaderConfig struct {
	Source  string // local path or http(s) URL
	Timeout time.Duration
	// CachePath holds a local copy of the last successfully fetched remote
	// list, used as a fallback when the remote source is unreachable.
	CachePath string
}

// DefaultLoaderConfig returns default loader configuration
func DefaultLoaderConfig() *LoaderConfig {
	return &LoaderConfig{
		Timeout: 10 * time.Second,
	}
}

// Load reads subscriptions from the configured source. An http(s) source is
// fetched with the retrying client and falls back to the cached copy when
// the fetch fails; anything else is treated as a local path.
func Load(ctx context.Context, config *LoaderConfig) ([]Subscription, error) {
	if config == nil {
		config = DefaultLoaderConfig()
	}
	if config.Source == "" {
		return nil, fmt.Errorf("no subscriptions source configured")
	}

	if !isRemote(config.Source) {
		return loadFromFile(config.Source)
	}

	subs, err := loadFromURL(ctx, config.Source, config.Timeout, config.CachePath)
	if err == nil {
		return subs, nil
	}

	if config.CachePath != "" {
		if cached, cacheErr := loadFromFile(config.CachePath); cacheErr == nil {
			slog.Warn("Remote subscriptions unavailable, using cached copy",
				"url", config.Source, "cache", config.CachePath, "error", err)
			return cached, nil
		}
	}
	return nil, err
}

func isRemote(source string) bool {
	return strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://")
}

// loadFromURL fetches a subscriptions document from a remote URL. A
// successful fetch refreshes the cache file so later outages have a copy
// to fall back on.
func loadFromURL(ctx context.Context, url string, timeout time.Duration, cachePath string) ([]Subscription, error) {
	httpConfig := httputil.DefaultConfig()
	httpConfig.Timeout = timeout

	client := httputil.NewClient(httpConfig)
	resp, err := client.GetWithContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch subscriptions from URL: %w", err)
	}

	if err := httputil.EnsureStatusOK(resp); err != nil {
		resp.Body.Close()
		return nil, fmt.Errorf("HTTP error fetching subscriptions: %w", err)
	}

	data, err := httputil.ReadResponseBody(resp)
	if err != nil {
		return nil, fmt.Errorf("failed to read subscriptions response: %w", err)
	}

	subs, err := Parse(data)
	if err != nil {
		return nil, err
	}

	if cachePath != "" {
		if err := writeCache(cachePath, data); err != nil {
			slog.Warn("Failed to cache subscriptions", "path", cachePath, "error", err)
		}
	}
	return subs, nil
}

// loadFromFile reads a subscriptions document from a local file
func loadFromFile(path string) ([]Subscription, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read subscriptions file: %w", err)
	}
	return Parse(data)
}

func writeCache(path string, data []byte) error {
	if err := filesystem.EnsureDirectoryExists(path); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
