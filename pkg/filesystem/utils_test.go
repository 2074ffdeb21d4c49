package filesystem

import (
	"os"
	"path/filepath"
	"testing"
)

func TestEnsureDirectoryExists(t *testing.T) {
	tempDir := t.TempDir()

	tests := []struct {
		name        string
		filePath    string
		expectError bool
	}{
		{
			name:        "current directory",
			filePath:    "test.txt",
			expectError: false,
		},
		{
			name:        "nested directories",
			filePath:    filepath.Join(tempDir, "level1", "level2", "test.txt"),
			expectError: false,
		},
		{
			name:        "directory already exists",
			filePath:    filepath.Join(tempDir, "test.txt"),
			expectError: false,
		},
		{
			name:        "empty string",
			filePath:    "",
			expectError: false, // filepath.Dir("") returns "."
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := EnsureDirectoryExists(tt.filePath)

			if (err != nil) != tt.expectError {
				t.Errorf("EnsureDirectoryExists(%q) error = %v, expectError = %v",
					tt.filePath, err, tt.expectError)
				return
			}

			if !tt.expectError {
				dir := filepath.Dir(tt.filePath)
				if dir != "." {
					if _, err := os.Stat(dir); os.IsNotExist(err) {
						t.Errorf("EnsureDirectoryExists(%q) did not create directory %q",
							tt.filePath, dir)
					}
				}
			}
		})
	}
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Fatalf("Failed to get home directory: %v", err)
	}

	tests := []struct {
		name     string
		path     string
		expected string
	}{
		{"tilde only", "~", home},
		{"tilde with path", "~/feed_data.json", filepath.Join(home, "feed_data.json")},
		{"tilde with nested path", "~/.feed-recorder/history.db", filepath.Join(home, ".feed-recorder", "history.db")},
		{"absolute path unchanged", "/var/data/feeds.json", "/var/data/feeds.json"},
		{"relative path unchanged", "feeds.json", "feeds.json"},
		{"other user unsupported", "~bob/feeds.json", "~bob/feeds.json"},
		{"empty string", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExpandHome(tt.path)
			if err != nil {
				t.Fatalf("ExpandHome(%q) error = %v", tt.path, err)
			}
			if got != tt.expected {
				t.Errorf("ExpandHome(%q) = %q, expected %q", tt.path, got, tt.expected)
			}
		})
	}
}
