// Package main provides the CLI entry point for feed-recorder.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	kongyaml "github.com/alecthomas/kong-yaml"

	"github.com/lepinkainen/feed-recorder/configs"
	"github.com/lepinkainen/feed-recorder/internal/config"
	"github.com/lepinkainen/feed-recorder/internal/recorder"
	"github.com/lepinkainen/feed-recorder/pkg/fetch"
	"github.com/lepinkainen/feed-recorder/pkg/logging"
	"github.com/lepinkainen/feed-recorder/pkg/preview"

	// Import stores to trigger init() self-registration
	_ "github.com/lepinkainen/feed-recorder/pkg/storage"
)

// CLI structure
var CLI struct {
	Config string `help:"Configuration file path" default:"config.yaml"`
	Debug  bool   `help:"Enable debug logging" default:"false"`

	Record struct {
		Outfile string `help:"Output file path, overrides config" short:"o"`
		Format  string `help:"Output format: json or csv" enum:"json,csv," default:""`
	} `cmd:"record" help:"Fetch all feeds once and record new entries."`

	Watch struct {
		Interval time.Duration `help:"Time between runs" default:"15m"`
		Outfile  string        `help:"Output file path, overrides config" short:"o"`
	} `cmd:"watch" help:"Record on a fixed interval until interrupted."`

	Validate struct{} `cmd:"validate" help:"Check that every configured feed fetches and parses."`

	Preview struct {
		Limit int `help:"Maximum number of entries to show" default:"30"`
		Index int `help:"Output JSON for specific entry index (0-based) to stdout" default:"-1"`
	} `cmd:"preview" help:"Browse recorded entries interactively."`

	Stats struct{} `cmd:"stats" help:"Show history index statistics."`

	Prune struct {
		OlderThan time.Duration `help:"Remove history entries older than this, overrides retention_days"`
	} `cmd:"prune" help:"Remove old entries from the history index."`

	Init struct {
		Path  string `help:"Destination path" arg:"" optional:"" default:"config.yaml"`
		Force bool   `help:"Overwrite an existing config file" default:"false"`
	} `cmd:"init" help:"Write an example configuration file."`
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Configuration(kongyaml.Loader, "config.yaml", "~/.feed-recorder/config.yaml"),
	)

	cfg, err := config.LoadConfig(CLI.Config)
	if err != nil {
		slog.Error("Failed to load configuration", "path", CLI.Config, "error", err)
		os.Exit(1)
	}

	if err := setupLogging(cfg); err != nil {
		slog.Error("Failed to set up logging", "error", err)
		os.Exit(1)
	}

	switch ctx.Command() {
	case "record":
		applyOutputOverrides(cfg, CLI.Record.Outfile, CLI.Record.Format)
		runRecord(cfg)

	case "watch":
		applyOutputOverrides(cfg, CLI.Watch.Outfile, "")
		runWatch(cfg, CLI.Watch.Interval)

	case "validate":
		runValidate(cfg)

	case "preview":
		runPreview(cfg, CLI.Preview.Limit, CLI.Preview.Index)

	case "stats":
		runStats(cfg)

	case "prune":
		runPrune(cfg, CLI.Prune.OlderThan)

	case "init", "init <path>":
		runInit(CLI.Init.Path, CLI.Init.Force)

	default:
		panic(ctx.Command())
	}
}

func setupLogging(cfg *config.Config) error {
	return logging.Setup(logging.Config{
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		Debug:      CLI.Debug,
	})
}

func applyOutputOverrides(cfg *config.Config, outfile, format string) {
	if outfile != "" {
		cfg.Output.Path = outfile
	}
	if format != "" {
		cfg.Output.Format = format
	}
}

func newRecorder(cfg *config.Config) *recorder.Recorder {
	r, err := recorder.New(cfg)
	if err != nil {
		slog.Error("Failed to initialize recorder", "error", err)
		os.Exit(1)
	}
	return r
}

// signalContext cancels on SIGINT/SIGTERM so a watch loop or a slow run
// shuts down cleanly under cron timeouts and Ctrl-C.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runRecord(cfg *config.Config) {
	r := newRecorder(cfg)
	defer r.Close()

	ctx, stop := signalContext()
	defer stop()

	summary, err := r.Run(ctx)
	if err != nil {
		slog.Error("Recording failed", "error", err)
		os.Exit(1)
	}

	for url, ferr := range summary.Failed {
		slog.Warn("Feed failed", "feed", url, "error", ferr)
	}
	fmt.Printf("Recorded %d new entries (%d total) from %d feeds to %s\n",
		summary.Added, summary.Total, summary.Feeds, r.OutputPath())
	if len(summary.Failed) > 0 {
		fmt.Printf("%d feeds failed, see log for details\n", len(summary.Failed))
	}
}

func runWatch(cfg *config.Config, interval time.Duration) {
	r := newRecorder(cfg)
	defer r.Close()

	ctx, stop := signalContext()
	defer stop()

	if err := r.Watch(ctx, interval); err != nil && err != context.Canceled {
		slog.Error("Watch failed", "error", err)
		os.Exit(1)
	}
}

func runValidate(cfg *config.Config) {
	r := newRecorder(cfg)
	defer r.Close()

	ctx, stop := signalContext()
	defer stop()

	subs, err := r.Subscriptions(ctx)
	if err != nil {
		slog.Error("Failed to resolve feeds", "error", err)
		os.Exit(1)
	}

	fetcher := fetch.NewFetcher(fetch.Config{
		Timeout:     cfg.Fetch.Timeout,
		MaxRetries:  cfg.Fetch.MaxRetries,
		Delay:       cfg.Fetch.Delay,
		Concurrency: cfg.Fetch.Concurrency,
		UserAgent:   cfg.Fetch.UserAgent,
	})

	failed := 0
	for _, sub := range subs {
		title, count, err := fetcher.Validate(ctx, sub)
		if err != nil {
			failed++
			fmt.Printf("FAIL  %s: %v\n", sub.URL, err)
			continue
		}
		fmt.Printf("OK    %s: %q, %d entries\n", sub.URL, title, count)
	}

	fmt.Printf("\n%d feeds checked, %d failed\n", len(subs), failed)
	if failed > 0 {
		os.Exit(1)
	}
}

func runPreview(cfg *config.Config, limit, index int) {
	r := newRecorder(cfg)
	defer r.Close()

	entries, err := r.Entries()
	if err != nil {
		slog.Error("Failed to load entries", "error", err)
		os.Exit(1)
	}
	if len(entries) == 0 {
		fmt.Println("No recorded entries yet")
		return
	}
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}

	// If index is specified, output JSON directly to stdout
	if index >= 0 {
		if index >= len(entries) {
			slog.Error("Index out of range", "index", index, "total", len(entries))
			os.Exit(1)
		}
		fmt.Println(preview.FormatJSONItem(entries[index]))
		return
	}

	if err := preview.Run(entries, r.OutputPath()); err != nil {
		slog.Error("Preview failed", "error", err)
		os.Exit(1)
	}
}

func runStats(cfg *config.Config) {
	r := newRecorder(cfg)
	defer r.Close()

	hist := r.History()
	if hist == nil {
		fmt.Println("History is disabled")
		return
	}

	stats, err := hist.GetStats()
	if err != nil {
		slog.Error("Failed to read history stats", "error", err)
		os.Exit(1)
	}

	keys := make([]string, 0, len(stats))
	for key := range stats {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		fmt.Printf("%s: %v\n", key, stats[key])
	}

	byFeed, err := hist.CountByFeed()
	if err != nil {
		slog.Error("Failed to read per-feed counts", "error", err)
		os.Exit(1)
	}
	if len(byFeed) > 0 {
		fmt.Println("\nEntries per feed:")
		feeds := make([]string, 0, len(byFeed))
		for feed := range byFeed {
			feeds = append(feeds, feed)
		}
		sort.Strings(feeds)
		for _, feed := range feeds {
			fmt.Printf("  %6d  %s\n", byFeed[feed], feed)
		}
	}
}

func runPrune(cfg *config.Config, olderThan time.Duration) {
	r := newRecorder(cfg)
	defer r.Close()

	hist := r.History()
	if hist == nil {
		fmt.Println("History is disabled, nothing to prune")
		return
	}

	if olderThan <= 0 {
		olderThan = time.Duration(cfg.History.RetentionDays) * 24 * time.Hour
	}

	removed, err := hist.Prune(olderThan)
	if err != nil {
		slog.Error("Prune failed", "error", err)
		os.Exit(1)
	}
	fmt.Printf("Removed %d history entries older than %v\n", removed, olderThan)
}

func runInit(target string, force bool) {
	if target == "" {
		target = "config.yaml"
	}

	if !force {
		if _, err := os.Stat(target); err == nil {
			slog.Error("Config file already exists, use --force to overwrite", "path", target)
			os.Exit(1)
		}
	}

	data, err := configs.EmbeddedConfigs.ReadFile("config.example.yaml")
	if err != nil {
		slog.Error("Failed to read embedded config", "error", err)
		os.Exit(1)
	}
	if err := os.WriteFile(target, data, 0644); err != nil {
		slog.Error("Failed to write config file", "path", target, "error", err)
		os.Exit(1)
	}
	fmt.Printf("Wrote %s\n", target)
}
