package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"unicode/utf8"
)

// maxTextRunes caps free-text attributes. User questions and search queries
// can run to pages and may carry contact details.
const maxTextRunes = 120

// textKeys are the attributes that hold user or model text.
var textKeys = map[string]bool{
	"question": true,
	"query":    true,
	"answer":   true,
}

func NewJSONLogger(service, level string) *slog.Logger {
	return newLogger(os.Stdout, service, level, false)
}

// NewTextLogger writes human-readable records to w; used by the CLI tools and
// the stdio MCP server.
func NewTextLogger(w io.Writer, service, level string) *slog.Logger {
	return newLogger(w, service, level, true)
}

func newLogger(w io.Writer, service, level string, text bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(level), ReplaceAttr: clipText}
	var handler slog.Handler
	if text {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}
	return slog.New(handler).With("service", service)
}

func clipText(_ []string, a slog.Attr) slog.Attr {
	if !textKeys[a.Key] || a.Value.Kind() != slog.KindString {
		return a
	}
	s := a.Value.String()
	if utf8.RuneCountInString(s) <= maxTextRunes {
		return a
	}
	return slog.String(a.Key, string([]rune(s)[:maxTextRunes])+"…")
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
