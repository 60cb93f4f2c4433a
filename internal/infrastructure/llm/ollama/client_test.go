package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kirillkom/product-advisor/internal/core/domain"
	"github.com/kirillkom/product-advisor/internal/infrastructure/resilience"
)

type cancelFlag struct {
	v atomic.Bool
}

func (c *cancelFlag) Cancelled() bool {
	return c.v.Load()
}

func TestGeneratorStreamsChunks(t *testing.T) {
	var payload generateRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			http.NotFound(w, r)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode request: %v", err)
		}
		for _, part := range []string{"推薦 ", "SRI-2000", "\n"} {
			fmt.Fprintf(w, "{\"response\":%q,\"done\":false}\n", part)
		}
		fmt.Fprintln(w, `{"response":"","done":true}`)
	}))
	defer server.Close()

	gen := NewGenerator(New(Config{BaseURL: server.URL, KeepAlive: "5m"}, nil, nil))
	got, err := gen.Generate(context.Background(), domain.GenerationRequest{
		Model:       "qwen",
		Prompt:      "question?",
		Temperature: 0.2,
		NumPredict:  1100,
	})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if got != "推薦 SRI-2000" {
		t.Fatalf("unexpected answer %q", got)
	}
	if !payload.Stream || payload.Model != "qwen" || payload.Options.NumPredict != 1100 || payload.KeepAlive != "5m" {
		t.Fatalf("unexpected payload: %+v", payload)
	}
}

func TestGeneratorStopsWhenCancelled(t *testing.T) {
	flag := &cancelFlag{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		for i := 0; i < 100; i++ {
			if i == 2 {
				flag.v.Store(true)
			}
			fmt.Fprintf(w, "{\"response\":\"x%d\",\"done\":false}\n", i)
			flusher.Flush()
			select {
			case <-r.Context().Done():
				return
			case <-time.After(5 * time.Millisecond):
			}
		}
	}))
	defer server.Close()

	gen := NewGenerator(New(Config{BaseURL: server.URL}, nil, nil))
	_, err := gen.Generate(context.Background(), domain.GenerationRequest{Model: "qwen", Prompt: "p", Cancel: flag})
	if !domain.IsKind(err, domain.ErrCancelled) {
		t.Fatalf("expected cancelled error, got %v", err)
	}
}

func TestGeneratorSurfacesStreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `{"error":"model not found"}`)
	}))
	defer server.Close()

	gen := NewGenerator(New(Config{BaseURL: server.URL}, nil, nil))
	_, err := gen.Generate(context.Background(), domain.GenerationRequest{Model: "missing", Prompt: "p"})
	if err == nil || !strings.Contains(err.Error(), "model not found") {
		t.Fatalf("expected stream error, got %v", err)
	}
}

func TestGeneratorReportsTruncatedStreamAsTemporary(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `{"response":"推薦","done":false}`)
	}))
	defer server.Close()

	gen := NewGenerator(New(Config{BaseURL: server.URL}, nil, nil))
	_, err := gen.Generate(context.Background(), domain.GenerationRequest{Model: "qwen", Prompt: "p"})
	if !errors.Is(err, errStreamTruncated) || !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected temporary truncation error, got %v", err)
	}
}

func TestClassifyOllamaErrorIgnoresUserStop(t *testing.T) {
	err := domain.WrapError(domain.ErrCancelled, "generate", errors.New("stopped"))
	if got := classifyOllamaError(err); got != resilience.Ignore {
		t.Fatalf("user stop classified as %+v", got)
	}
}

func TestEmbedIncludesHTTPBodyInError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model unavailable", http.StatusBadGateway)
	}))
	defer server.Close()

	embedder := NewEmbedder(New(Config{BaseURL: server.URL, EmbedModel: "embed"}, nil, nil))
	_, err := embedder.Embed(context.Background(), []string{"hello"})
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "model unavailable") {
		t.Fatalf("expected response body in error, got %v", err)
	}
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected 502 to be temporary, got %v", err)
	}
}

func TestEmbedRetriesTemporaryStatus(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"embeddings":[[0.1,0.2]]}`))
	}))
	defer server.Close()

	exec := resilience.NewExecutor(resilience.Config{
		Retry: resilience.RetryPolicy{MaxAttempts: 2, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond, Multiplier: 2},
	})
	embedder := NewEmbedder(New(Config{BaseURL: server.URL, EmbedModel: "embed"}, exec, nil))
	vec, err := embedder.EmbedQuery(context.Background(), "hello")
	if err != nil {
		t.Fatalf("EmbedQuery() error = %v", err)
	}
	if len(vec) != 2 || calls.Load() != 2 {
		t.Fatalf("unexpected result %v after %d calls", vec, calls.Load())
	}
}

func TestPing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/api/tags" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`{"models":[{"name":"qwen2.5:7b"}]}`))
	}))
	defer server.Close()

	if err := New(Config{BaseURL: server.URL + "/"}, nil, nil).Ping(context.Background()); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}
}
