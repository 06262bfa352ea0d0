package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/goliatone/go-intake/internal/config"
)

func TestNewWithWriterFormats(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(config.LogConfig{Level: "info", Format: "json"}, &buf)
	logger.Debug("hidden")
	logger.Info("saved", slog.String("section", "children"))
	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("debug line should be filtered: %s", out)
	}
	if !strings.Contains(out, `"section":"children"`) {
		t.Fatalf("expected json attrs, got %s", out)
	}

	buf.Reset()
	logger = NewWithWriter(config.LogConfig{Level: "debug", Format: "text"}, &buf)
	logger.Debug("visible")
	if !strings.Contains(buf.String(), "msg=visible") {
		t.Fatalf("expected text debug line, got %s", buf.String())
	}
}

func TestLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
	}
	for name, want := range cases {
		if got := Level(name); got != want {
			t.Fatalf("Level(%q) = %v, want %v", name, got, want)
		}
	}
}
