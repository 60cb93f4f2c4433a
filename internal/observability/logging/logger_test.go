package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range cases {
		if got := parseLevel(in); got != want {
			t.Fatalf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestTextLoggerCarriesServiceAndFiltersLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewTextLogger(&buf, "advisorctl", "warn")
	logger.Info("hidden")
	logger.Warn("catalog_rebuilt", "products", 3)

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info record should be filtered: %s", out)
	}
	if !strings.Contains(out, "service=advisorctl") || !strings.Contains(out, "products=3") {
		t.Fatalf("unexpected log output: %s", out)
	}
}

func TestLoggerClipsFreeText(t *testing.T) {
	var buf bytes.Buffer
	logger := NewTextLogger(&buf, "advisor-api", "info")
	long := strings.Repeat("照", maxTextRunes+30)
	logger.Info("chat_start", "question", long, "session_id", strings.Repeat("s", maxTextRunes+30))

	out := buf.String()
	if strings.Contains(out, long) {
		t.Fatalf("question should be clipped: %s", out)
	}
	if !strings.Contains(out, strings.Repeat("照", maxTextRunes)+"…") {
		t.Fatalf("expected clipped prefix: %s", out)
	}
	if !strings.Contains(out, strings.Repeat("s", maxTextRunes+30)) {
		t.Fatalf("non-text attributes stay whole: %s", out)
	}
}
