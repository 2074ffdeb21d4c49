// Package logging configures the process-wide slog logger.
package logging

import (
	"io"
	"log/slog"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/lepinkainen/feed-recorder/pkg/filesystem"
)

// Config holds logging configuration
type Config struct {
	File       string // optional log file, rotated by lumberjack
	MaxSizeMB  int
	MaxBackups int
	Debug      bool
}

// Setup installs the default slog logger: text output to stderr, mirrored
// to a rotated log file when one is configured. Cron captures stderr for
// mail while the log file keeps a local record between runs.
func Setup(config Config) error {
	var w io.Writer = os.Stderr

	if config.File != "" {
		path, err := filesystem.ExpandHome(config.File)
		if err != nil {
			return err
		}
		if err := filesystem.EnsureDirectoryExists(path); err != nil {
			return err
		}

		maxSize := config.MaxSizeMB
		if maxSize <= 0 {
			maxSize = 10
		}
		maxBackups := config.MaxBackups
		if maxBackups <= 0 {
			maxBackups = 3
		}

		w = io.MultiWriter(os.Stderr, &lumberjack.Logger{
			Filename:   path,
			MaxSize:    maxSize,
			MaxBackups: maxBackups,
		})
	}

	level := slog.LevelInfo
	if config.Debug {
		level = slog.LevelDebug
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})))
	return nil
}
