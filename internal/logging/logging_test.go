package logging

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"cosmotablas-service/internal/config"
)

func TestNewLoggerCreatesFile(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Logging{
		Dir:        dir,
		Level:      "info",
		MaxSizeMB:  1,
		MaxBackups: 1,
		MaxAgeDays: 1,
		Compress:   true,
	}
	var console bytes.Buffer
	if _, err := NewLogger(cfg, &console); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	path := filepath.Join(dir, defaultLogFileName)
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected log file, got error: %v", err)
	}
	if !strings.Contains(console.String(), "file_logging_enabled") {
		t.Fatalf("expected console output, got %q", console.String())
	}
}

func TestNewLoggerRejectsBadRotation(t *testing.T) {
	_, err := NewLogger(config.Logging{Dir: t.TempDir()}, &bytes.Buffer{})
	if err == nil {
		t.Fatalf("expected rotation settings to be required")
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
	}
	for raw, want := range cases {
		if got := parseLevel(raw); got != want {
			t.Fatalf("parseLevel(%q) = %v, want %v", raw, got, want)
		}
	}
}
