package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/lepinkainen/feed-recorder/pkg/feedtypes"
	"github.com/lepinkainen/feed-recorder/pkg/subscription"
)

const rssFixture = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:dc="http://purl.org/dc/elements/1.1/">
<channel>
  <title>Example Blog</title>
  <link>https://blog.example/</link>
  <item>
    <title>First &lt;b&gt;post&lt;/b&gt;</title>
    <link>https://blog.example/posts/1</link>
    <dc:creator>Alice</dc:creator>
    <pubDate>Mon, 09 Feb 2026 10:00:00 +0000</pubDate>
    <category>go</category>
    <category>go</category>
    <category>testing</category>
  </item>
  <item>
    <title></title>
    <link>/posts/2</link>
    <pubDate>Sun, 08 Feb 2026 10:00:00 +0000</pubDate>
  </item>
  <item>
    <title>No date post</title>
    <link>https://blog.example/posts/3</link>
  </item>
</channel>
</rss>`

const atomFixture = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>Atom Feed</title>
  <link href="https://atom.example/"/>
  <author><name>Feed Author</name></author>
  <entry>
    <title>Atom entry</title>
    <link href="https://atom.example/entries/1"/>
    <updated>2026-02-09T12:00:00Z</updated>
    <id>urn:uuid:1</id>
  </entry>
</feed>`

func serveFeed(t *testing.T, body string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func testFetcher() *Fetcher {
	config := DefaultConfig()
	config.Delay = 0 // no politeness delay in tests
	return NewFetcher(config)
}

func TestFetchConvertsItems(t *testing.T) {
	server := serveFeed(t, rssFixture)
	fetcher := testFetcher()
	fetcher.now = func() time.Time {
		return time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)
	}

	sub := subscription.Subscription{URL: server.URL, Name: "Example"}
	entries, err := fetcher.Fetch(context.Background(), sub)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("Fetch() returned %d entries, want 3", len(entries))
	}

	want := feedtypes.Entry{
		Timestamp: time.Date(2026, 2, 9, 10, 0, 0, 0, time.UTC),
		Title:     "First post",
		Author:    "Alice",
		FeedURL:   server.URL,
		EntryURL:  "https://blog.example/posts/1",
		Topics:    []string{"go", "testing"},
	}
	got := entries[0]
	got.Timestamp = got.Timestamp.UTC()
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("entry mismatch (-want +got):\n%s", diff)
	}
}

func TestFetchFallbacks(t *testing.T) {
	server := serveFeed(t, rssFixture)
	fetcher := testFetcher()
	now := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)
	fetcher.now = func() time.Time { return now }

	entries, err := fetcher.Fetch(context.Background(), subscription.Subscription{URL: server.URL})
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}

	// Second item: empty title, relative link, no creator
	if entries[1].Title != "No title" {
		t.Errorf("empty title recorded as %q, want %q", entries[1].Title, "No title")
	}
	if entries[1].Author != "Unknown" {
		t.Errorf("missing author recorded as %q, want %q", entries[1].Author, "Unknown")
	}
	if entries[1].EntryURL != "https://blog.example/posts/2" {
		t.Errorf("relative link resolved to %q, want %q", entries[1].EntryURL, "https://blog.example/posts/2")
	}

	// Third item has no date at all
	if !entries[2].Timestamp.Equal(now) {
		t.Errorf("undated entry timestamp = %v, want fallback %v", entries[2].Timestamp, now)
	}
}

func TestFetchAtomUsesUpdatedDateAndFeedAuthor(t *testing.T) {
	server := serveFeed(t, atomFixture)
	fetcher := testFetcher()

	entries, err := fetcher.Fetch(context.Background(), subscription.Subscription{URL: server.URL})
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("Fetch() returned %d entries, want 1", len(entries))
	}

	want := time.Date(2026, 2, 9, 12, 0, 0, 0, time.UTC)
	if !entries[0].Timestamp.Equal(want) {
		t.Errorf("timestamp = %v, want %v", entries[0].Timestamp, want)
	}
	if entries[0].Author != "Feed Author" {
		t.Errorf("author = %q, want feed-level author", entries[0].Author)
	}
}

func TestFetchSubscriptionTopicsAppended(t *testing.T) {
	server := serveFeed(t, rssFixture)
	fetcher := testFetcher()

	sub := subscription.Subscription{URL: server.URL, Topics: []string{"news", "go"}}
	entries, err := fetcher.Fetch(context.Background(), sub)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}

	want := []string{"go", "testing", "news"}
	if diff := cmp.Diff(want, entries[0].Topics); diff != "" {
		t.Errorf("topics mismatch (-want +got):\n%s", diff)
	}
}

func TestFetchMaxPerFeed(t *testing.T) {
	server := serveFeed(t, rssFixture)
	config := DefaultConfig()
	config.Delay = 0
	config.MaxPerFeed = 1
	fetcher := NewFetcher(config)

	entries, err := fetcher.Fetch(context.Background(), subscription.Subscription{URL: server.URL})
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("Fetch() returned %d entries, want 1 with MaxPerFeed=1", len(entries))
	}
}

func TestFetchRejectsNonXML(t *testing.T) {
	server := serveFeed(t, "<html><body>not a feed</body></html>")
	fetcher := testFetcher()

	if _, err := fetcher.Fetch(context.Background(), subscription.Subscription{URL: server.URL}); err == nil {
		t.Error("Fetch() should fail on a non-feed document")
	}
}

func TestFetchAllCollectsFailuresWithoutAborting(t *testing.T) {
	good := serveFeed(t, rssFixture)

	var calls atomic.Int32
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer bad.Close()

	fetcher := testFetcher()
	subs := []subscription.Subscription{
		{URL: good.URL, Name: "good"},
		{URL: bad.URL, Name: "bad"},
	}

	result := fetcher.FetchAll(context.Background(), subs)

	if len(result.Entries) != 3 {
		t.Errorf("FetchAll() collected %d entries, want 3 from the good feed", len(result.Entries))
	}
	if len(result.Failed) != 1 {
		t.Fatalf("FetchAll() recorded %d failures, want 1", len(result.Failed))
	}
	if _, ok := result.Failed[bad.URL]; !ok {
		t.Errorf("FetchAll() failures missing %q", bad.URL)
	}
}

func TestValidate(t *testing.T) {
	server := serveFeed(t, rssFixture)
	fetcher := testFetcher()

	title, count, err := fetcher.Validate(context.Background(), subscription.Subscription{URL: server.URL})
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if title != "Example Blog" {
		t.Errorf("Validate() title = %q, want %q", title, "Example Blog")
	}
	if count != 3 {
		t.Errorf("Validate() count = %d, want 3", count)
	}
}

func TestStripHTML(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"plain text", "hello world", "hello world"},
		{"tags removed", "<p>hello <b>world</b></p>", "hello world"},
		{"entities decoded", "fish &amp; chips", "fish & chips"},
		{"whitespace collapsed", "  hello\n\t world  ", "hello world"},
		{"empty", "", ""},
		{"only tags", "<br/><img src='x'/>", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StripHTML(tt.input); got != tt.expected {
				t.Errorf("StripHTML(%q) = %q, expected %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		maxLen   int
		expected string
	}{
		{"shorter than limit", "hello", 10, "hello"},
		{"exactly at limit", "hello", 5, "hello"},
		{"cut with ellipsis", "hello world", 5, "hello..."},
		{"multibyte runes", "日本語のテキスト", 3, "日本語..."},
		{"zero limit disables", "hello", 0, "hello"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Truncate(tt.input, tt.maxLen); got != tt.expected {
				t.Errorf("Truncate(%q, %d) = %q, expected %q", tt.input, tt.maxLen, got, tt.expected)
			}
		})
	}
}
