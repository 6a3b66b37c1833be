package logging

import (
	"context"
	"log/slog"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"bogus", slog.LevelInfo},
	}

	for _, tt := range tests {
		if got := parseLevel(tt.in); got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNew_Formats(t *testing.T) {
	t.Setenv("LOG_FORMAT", "json")
	if New() == nil {
		t.Fatal("expected logger")
	}

	t.Setenv("LOG_FORMAT", "text")
	if New() == nil {
		t.Fatal("expected logger")
	}
}

func TestLoggerContext(t *testing.T) {
	logger := slog.Default().With(slog.String("component", "test"))
	ctx := WithLogger(context.Background(), logger)

	if got := FromContext(ctx); got != logger {
		t.Error("expected stored logger from context")
	}
	if got := FromContext(context.Background()); got == nil {
		t.Error("expected default logger for empty context")
	}
}

func TestWithRunID(t *testing.T) {
	base := slog.Default()
	if got := WithRunID(base, ""); got != base {
		t.Error("empty run id must return the same logger")
	}
	if got := WithRunID(base, "abc"); got == base {
		t.Error("non-empty run id must return a derived logger")
	}
}
