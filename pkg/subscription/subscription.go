// Package subscription handles loading and normalizing the feed list the
// recorder works from.
package subscription

import (
	"fmt"
	"log/slog"

	"gopkg.in/yaml.v3"

	"github.com/lepinkainen/feed-recorder/pkg/urlutils"
)

// Subscription is one configured feed.
type Subscription struct {
	URL    string   `yaml:"url"`
	Name   string   `yaml:"name,omitempty"`
	Topics []string `yaml:"topics,omitempty"`
}

// UnmarshalYAML accepts either a bare URL string or a mapping with url/name/topics.
func (s *Subscription) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		return node.Decode(&s.URL)
	}

	type plain Subscription
	var p plain
	if err := node.Decode(&p); err != nil {
		return err
	}
	*s = Subscription(p)
	return nil
}

// DisplayName returns the configured name, falling back to the URL.
func (s Subscription) DisplayName() string {
	if s.Name != "" {
		return s.Name
	}
	return s.URL
}

// listFile is the on-disk subscriptions file format.
type listFile struct {
	Feeds []Subscription `yaml:"feeds"`
}

// Parse decodes a subscriptions YAML document. Invalid entries are dropped
// with a warning; duplicate URLs collapse to the first occurrence.
func Parse(data []byte) ([]Subscription, error) {
	var file listFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse subscriptions file: %w", err)
	}

	return Dedupe(file.Feeds), nil
}

// FromURLs converts a bare URL list into subscriptions.
func FromURLs(urls []string) []Subscription {
	subs := make([]Subscription, 0, len(urls))
	for _, url := range urls {
		subs = append(subs, Subscription{URL: url})
	}
	return Dedupe(subs)
}

// Dedupe drops subscriptions with invalid URLs and collapses duplicates,
// keyed by normalized URL. Order is preserved.
func Dedupe(subs []Subscription) []Subscription {
	seen := make(map[string]bool, len(subs))
	result := make([]Subscription, 0, len(subs))

	for _, sub := range subs {
		if !urlutils.IsValidURL(sub.URL) {
			slog.Warn("Skipping subscription with invalid URL", "url", sub.URL)
			continue
		}

		key := urlutils.Normalize(sub.URL)
		if seen[key] {
			slog.Debug("Skipping duplicate subscription", "url", sub.URL)
			continue
		}
		seen[key] = true
		result = append(result, sub)
	}

	return result
}
