package httpadapter

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"testing"

	"github.com/kirillkom/product-advisor/internal/config"
	"github.com/kirillkom/product-advisor/internal/core/domain"
)

func accessLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var rec map[string]any
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			t.Fatalf("decode log line %q: %v", line, err)
		}
		if rec["msg"] == "http_request" {
			out = append(out, rec)
		}
	}
	return out
}

func newLoggedRouter(t *testing.T, chat *chatFake) (http.Handler, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	router, err := NewRouter(config.Config{}, Deps{
		Chat:    chat,
		Reload:  &reloadFake{},
		Company: companyFake{},
		Logger:  logger,
	})
	if err != nil {
		t.Fatalf("NewRouter() error = %v", err)
	}
	return router.Handler(), &buf
}

func TestAccessLogCarriesChatAnnotations(t *testing.T) {
	handler, buf := newLoggedRouter(t, &chatFake{})

	res := postJSON(t, handler, "/api/chat", map[string]any{"message": "SRI-2000 規格？", "session_id": "s1"}, map[string]string{requestIDHeader: "r-42"})
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}

	lines := accessLines(t, buf)
	if len(lines) != 1 {
		t.Fatalf("expected one access line, got %d", len(lines))
	}
	got := lines[0]
	want := map[string]any{
		"route":      "/api/chat",
		"session_id": "s1",
		"rid":        "r-42",
		"intent":     string(domain.IntentProductSpec),
		"level":      "INFO",
	}
	for k, v := range want {
		if got[k] != v {
			t.Fatalf("access log %s = %v, want %v (line %v)", k, got[k], v, got)
		}
	}
}

func TestAccessLogLabelsBusyTurns(t *testing.T) {
	chat := &chatFake{
		resp: &domain.ChatResponse{Intent: domain.IntentBusy, Answer: "稍等"},
		err:  domain.WrapError(domain.ErrBusy, "chat", domain.ErrBusy),
	}
	handler, buf := newLoggedRouter(t, chat)

	res := postJSON(t, handler, "/api/chat", map[string]any{"message": "hi"}, nil)
	if res.Code != http.StatusServiceUnavailable || res.Header().Get("Retry-After") != "1" {
		t.Fatalf("expected 503 with Retry-After, got %d %q", res.Code, res.Header().Get("Retry-After"))
	}
	lines := accessLines(t, buf)
	if len(lines) != 1 || lines[0]["error_kind"] != "busy" || lines[0]["level"] != "ERROR" {
		t.Fatalf("unexpected access lines %v", lines)
	}
}

func TestAccessLogUsesRawPathWhenUnrouted(t *testing.T) {
	handler, buf := newLoggedRouter(t, &chatFake{})

	res := postJSON(t, handler, "/api/nowhere", map[string]any{}, nil)
	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.Code)
	}
	lines := accessLines(t, buf)
	if len(lines) != 1 || lines[0]["route"] != "/api/nowhere" || lines[0]["level"] != "WARN" {
		t.Fatalf("unexpected access lines %v", lines)
	}
}
