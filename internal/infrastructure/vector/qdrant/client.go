package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/product-advisor/internal/core/domain"
	"github.com/kirillkom/product-advisor/internal/infrastructure/resilience"
)

type Config struct {
	BaseURL    string
	Collection string
	Timeout    time.Duration
}

type Client struct {
	baseURL    string
	collection string
	httpClient *http.Client
	executor   *resilience.Executor
	logger     *slog.Logger

	ensureMu          sync.Mutex
	ensuredCollection bool
	ensuredVectorSize int
}

func New(cfg Config, executor *resilience.Executor, logger *slog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		collection: cfg.Collection,
		httpClient: &http.Client{Timeout: timeout},
		executor:   executor,
		logger:     logger,
	}
}

// IndexChunks upserts one document's chunks. Point ids are derived from the
// source name and chunk position so re-indexing a file overwrites its points.
func (c *Client) IndexChunks(ctx context.Context, source string, chunks []string, vectors [][]float32) error {
	if len(chunks) == 0 || len(vectors) == 0 {
		return nil
	}
	if len(chunks) != len(vectors) {
		return fmt.Errorf("chunks/vectors mismatch")
	}

	if err := c.ensureCollection(ctx, len(vectors[0])); err != nil {
		return err
	}

	type point struct {
		ID      string         `json:"id"`
		Vector  []float32      `json:"vector"`
		Payload map[string]any `json:"payload"`
	}

	points := make([]point, 0, len(chunks))
	for i := range chunks {
		points = append(points, point{
			ID:     pointID(source, i),
			Vector: vectors[i],
			Payload: map[string]any{
				"source":      source,
				"chunk_index": i,
				"text":        chunks[i],
			},
		})
	}

	path := fmt.Sprintf("/collections/%s/points?wait=true", c.collection)
	return c.execute(ctx, "qdrant.upsert", func(ctx context.Context) error {
		return c.sendJSON(ctx, http.MethodPut, path, map[string]any{"points": points}, nil, "upsert")
	})
}

// Search returns the nearest points. Qdrant reports cosine similarity, so
// the hit distance is 1-score.
func (c *Client) Search(ctx context.Context, queryVector []float32, limit int) ([]domain.VectorHit, error) {
	if len(queryVector) == 0 || limit <= 0 {
		return nil, nil
	}
	reqBody := map[string]any{
		"vector":       queryVector,
		"limit":        limit,
		"with_payload": true,
	}

	var searchResp struct {
		Result []struct {
			ID      any            `json:"id"`
			Score   *float64       `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	path := fmt.Sprintf("/collections/%s/points/search", c.collection)
	err := c.execute(ctx, "qdrant.search", func(ctx context.Context) error {
		return c.sendJSON(ctx, http.MethodPost, path, reqBody, &searchResp, "search")
	})
	if err != nil {
		return nil, err
	}

	out := make([]domain.VectorHit, 0, len(searchResp.Result))
	for _, r := range searchResp.Result {
		hit := domain.VectorHit{
			ID:       payloadString(r.ID),
			Text:     getStringPayload(r.Payload, "text"),
			Metadata: make(map[string]string, len(r.Payload)),
		}
		for key, value := range r.Payload {
			if key == "text" {
				continue
			}
			hit.Metadata[key] = payloadString(value)
		}
		if r.Score != nil {
			d := 1 - *r.Score
			hit.Distance = &d
		}
		out = append(out, hit)
	}
	return out, nil
}

// Fingerprint identifies the collection content by its point count.
func (c *Client) Fingerprint(ctx context.Context) (string, error) {
	var info struct {
		Result struct {
			PointsCount *int64 `json:"points_count"`
		} `json:"result"`
	}
	path := "/collections/" + c.collection
	err := c.execute(ctx, "qdrant.collection_info", func(ctx context.Context) error {
		return c.sendJSON(ctx, http.MethodGet, path, nil, &info, "collection info")
	})
	if err != nil {
		return "", err
	}
	count := int64(0)
	if info.Result.PointsCount != nil {
		count = *info.Result.PointsCount
	}
	return c.collection + ":" + strconv.FormatInt(count, 10), nil
}

func (c *Client) Ping(ctx context.Context) error {
	var out map[string]any
	return c.sendJSON(ctx, http.MethodGet, "/collections", nil, &out, "list collections")
}

func (c *Client) ensureCollection(ctx context.Context, vectorSize int) error {
	c.ensureMu.Lock()
	if c.ensuredCollection && c.ensuredVectorSize == vectorSize {
		c.ensureMu.Unlock()
		return nil
	}
	c.ensureMu.Unlock()

	reqBody := map[string]any{
		"vectors": map[string]any{
			"size":     vectorSize,
			"distance": "Cosine",
		},
	}
	path := "/collections/" + c.collection
	err := c.execute(ctx, "qdrant.ensure_collection", func(ctx context.Context) error {
		return c.sendJSON(ctx, http.MethodPut, path, reqBody, nil, "ensure collection")
	})
	if err != nil && !resilience.HasStatus(err, http.StatusConflict) {
		return err
	}
	c.logger.Info("qdrant_collection_ensured", "collection", c.collection, "vector_size", vectorSize)
	c.markCollectionEnsured(vectorSize)
	return nil
}

func (c *Client) markCollectionEnsured(vectorSize int) {
	c.ensureMu.Lock()
	defer c.ensureMu.Unlock()
	c.ensuredCollection = true
	c.ensuredVectorSize = vectorSize
}

func (c *Client) sendJSON(ctx context.Context, method, path string, payload any, out any, operation string) error {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal %s body: %w", operation, err)
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create %s request: %w", operation, err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("qdrant %s request: %w", operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return resilience.NewStatusError(serviceName, operation, resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", operation, err)
	}
	return nil
}

var pointNamespace = uuid.MustParse("6f1d3c52-9a0e-4c1b-8f37-2b7e5d4a9c10")

func pointID(source string, index int) string {
	return uuid.NewSHA1(pointNamespace, []byte(source+"#"+strconv.Itoa(index))).String()
}

func getStringPayload(payload map[string]any, key string) string {
	v, ok := payload[key]
	if !ok {
		return ""
	}
	return payloadString(v)
}

func payloadString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", v)
	}
}
