package qdrant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kirillkom/product-advisor/internal/core/domain"
	"github.com/kirillkom/product-advisor/internal/infrastructure/resilience"
)

func TestIndexChunksEnsuresCollectionOncePerVectorSize(t *testing.T) {
	var ensureCalls int32
	var ids []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPut && r.URL.Path == "/collections/products":
			atomic.AddInt32(&ensureCalls, 1)
			w.WriteHeader(http.StatusCreated)
		case r.Method == http.MethodPut && r.URL.Path == "/collections/products/points":
			var body struct {
				Points []struct {
					ID      string         `json:"id"`
					Payload map[string]any `json:"payload"`
				} `json:"points"`
			}
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				t.Errorf("decode upsert: %v", err)
			}
			for _, p := range body.Points {
				ids = append(ids, p.ID)
				if p.Payload["source"] != "product_SRI-2000.md" {
					t.Errorf("unexpected payload %#v", p.Payload)
				}
			}
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	client := New(Config{BaseURL: server.URL, Collection: "products"}, nil, nil)
	chunks := []string{"a", "b"}
	vectors := [][]float32{{0.1, 0.2}, {0.3, 0.4}}

	if err := client.IndexChunks(context.Background(), "product_SRI-2000.md", chunks, vectors); err != nil {
		t.Fatalf("first IndexChunks() error = %v", err)
	}
	if err := client.IndexChunks(context.Background(), "product_SRI-2000.md", chunks, vectors); err != nil {
		t.Fatalf("second IndexChunks() error = %v", err)
	}
	if got := atomic.LoadInt32(&ensureCalls); got != 1 {
		t.Fatalf("expected ensure collection called once, got %d", got)
	}
	if len(ids) != 4 || ids[0] != ids[2] || ids[0] == ids[1] {
		t.Fatalf("expected stable per-chunk point ids, got %v", ids)
	}
}

func TestEnsureCollectionIncludesResponseBodyInError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPut && r.URL.Path == "/collections/products" {
			http.Error(w, "bad vector size", http.StatusBadRequest)
			return
		}
		http.NotFound(w, r)
	}))
	defer server.Close()

	client := New(Config{BaseURL: server.URL, Collection: "products"}, nil, nil)
	err := client.IndexChunks(context.Background(), "a.md", []string{"a"}, [][]float32{{0.1, 0.2}})
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "bad vector size") {
		t.Fatalf("expected error to include body, got %v", err)
	}
	if domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("400 must not be temporary")
	}
}

func TestEnsureCollectionAcceptsConflict(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/collections/products" {
			http.Error(w, "exists", http.StatusConflict)
			return
		}
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := New(Config{BaseURL: server.URL, Collection: "products"}, nil, nil)
	if err := client.IndexChunks(context.Background(), "a.md", []string{"a"}, [][]float32{{0.1}}); err != nil {
		t.Fatalf("IndexChunks() error = %v", err)
	}
}

func TestSearchMapsScoreToDistance(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/collections/products/points/search" {
			http.NotFound(w, r)
			return
		}
		var req map[string]any
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req["limit"] != float64(3) || req["with_payload"] != true {
			t.Errorf("unexpected search body %#v", req)
		}
		_, _ = w.Write([]byte(`{"result":[
			{"id":"p1","score":0.75,"payload":{"text":"SRI-2000 光譜","source":"product_SRI-2000.md","chunk_index":2}},
			{"id":7,"payload":{"text":"無分數"}}
		]}`))
	}))
	defer server.Close()

	client := New(Config{BaseURL: server.URL, Collection: "products"}, nil, nil)
	hits, err := client.Search(context.Background(), []float32{0.1, 0.2}, 3)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("expected 2 hits, got %d", len(hits))
	}
	first := hits[0]
	if first.ID != "p1" || first.Text != "SRI-2000 光譜" || first.Distance == nil || *first.Distance != 0.25 {
		t.Fatalf("unexpected first hit %+v", first)
	}
	if first.Meta("source") != "product_SRI-2000.md" || first.Meta("chunk_index") != "2" {
		t.Fatalf("unexpected metadata %#v", first.Metadata)
	}
	if _, ok := first.Metadata["text"]; ok {
		t.Fatalf("text must not be duplicated into metadata")
	}
	if hits[1].ID != "7" || hits[1].EffectiveDistance() != domain.MissingDistance {
		t.Fatalf("unexpected second hit %+v", hits[1])
	}
}

func TestSearchRetriesUnavailable(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "warming up", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"result":[]}`))
	}))
	defer server.Close()

	exec := resilience.NewExecutor(resilience.Config{
		Retry: resilience.RetryPolicy{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond, Multiplier: 2},
	})
	client := New(Config{BaseURL: server.URL, Collection: "products"}, exec, nil)
	if _, err := client.Search(context.Background(), []float32{1}, 2); err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected one retry, got %d calls", calls.Load())
	}
}

func TestSearchUnavailableIsTemporary(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := New(Config{BaseURL: server.URL, Collection: "products"}, nil, nil)
	_, err := client.Search(context.Background(), []float32{1}, 2)
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected temporary error, got %v", err)
	}
}

func TestFingerprintUsesPointsCount(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/collections/products" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`{"result":{"status":"green","points_count":42}}`))
	}))
	defer server.Close()

	client := New(Config{BaseURL: server.URL + "/", Collection: "products"}, nil, nil)
	fp, err := client.Fingerprint(context.Background())
	if err != nil {
		t.Fatalf("Fingerprint() error = %v", err)
	}
	if fp != "products:42" {
		t.Fatalf("unexpected fingerprint %q", fp)
	}
}

type embedderFake struct {
	queries []string
}

func (f *embedderFake) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0}
	}
	return out, nil
}

func (f *embedderFake) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	f.queries = append(f.queries, text)
	return []float32{1, 0}, nil
}

func TestTextSearcherEmbedsQuery(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"result":[{"id":"p1","score":1,"payload":{"text":"LX-10"}}]}`))
	}))
	defer server.Close()

	embedder := &embedderFake{}
	searcher := NewTextSearcher(embedder, New(Config{BaseURL: server.URL, Collection: "products"}, nil, nil))
	hits, err := searcher.Search(context.Background(), "照度計", 4)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(embedder.queries) != 1 || embedder.queries[0] != "照度計" {
		t.Fatalf("unexpected embed calls %v", embedder.queries)
	}
	if len(hits) != 1 || hits[0].Text != "LX-10" || *hits[0].Distance != 0 {
		t.Fatalf("unexpected hits %+v", hits)
	}
}
