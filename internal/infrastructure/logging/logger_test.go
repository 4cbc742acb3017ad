package logging

import (
	"log/slog"
	"testing"

	"github.com/netdash/netdash-core/internal/infrastructure/config"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"bogus", slog.LevelInfo},
	}

	for _, tt := range tests {
		if got := parseLevel(tt.input); got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestNewDoesNotPanic(t *testing.T) {
	for _, format := range []string{"json", "text", ""} {
		l := New(config.LoggingConfig{Level: "debug", Format: format}, "test")
		if l == nil {
			t.Fatalf("New returned nil for format %q", format)
		}
		l.Debug("probe", "format", format)
	}
}

func TestWithReturnsChildLogger(t *testing.T) {
	l := Default()
	child := l.With("component", "test")
	if child == nil || child.Logger == nil {
		t.Fatal("With returned nil logger")
	}
	if child == l {
		t.Fatal("With should return a new logger")
	}
}
