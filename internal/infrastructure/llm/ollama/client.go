package ollama

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/product-advisor/internal/core/domain"
	"github.com/kirillkom/product-advisor/internal/infrastructure/resilience"
)

type Config struct {
	BaseURL    string
	EmbedModel string
	KeepAlive  string
	Timeout    time.Duration
}

type Client struct {
	baseURL    string
	embedModel string
	keepAlive  string
	httpClient *http.Client
	executor   *resilience.Executor
	logger     *slog.Logger
}

// New builds a client. executor may be nil, in which case calls run once
// without a breaker.
func New(cfg Config, executor *resilience.Executor, logger *slog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 180 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		embedModel: cfg.EmbedModel,
		keepAlive:  cfg.KeepAlive,
		httpClient: &http.Client{Timeout: timeout},
		executor:   executor,
		logger:     logger,
	}
}

// Ping lists local models to confirm the server answers.
func (c *Client) Ping(ctx context.Context) error {
	var out struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	return c.getJSON(ctx, "/api/tags", &out, "tags")
}

type Generator struct {
	client *Client
}

func NewGenerator(client *Client) *Generator {
	return &Generator{client: client}
}

// Generate streams a completion and returns the concatenated text. The
// request's cancel signal is checked between chunks; once it fires the
// stream is closed and domain.ErrCancelled is returned.
func (g *Generator) Generate(ctx context.Context, req domain.GenerationRequest) (string, error) {
	payload := generateRequest{
		Model:  req.Model,
		Prompt: req.Prompt,
		Stream: true,
		Options: generateOptions{
			Temperature: req.Temperature,
			NumPredict:  req.NumPredict,
		},
		KeepAlive: g.client.keepAlive,
	}

	var answer string
	err := g.client.execute(ctx, "ollama.generate", func(ctx context.Context) error {
		var b strings.Builder
		err := g.client.stream(ctx, "/api/generate", payload, "generate", func(chunk generateChunk) (bool, error) {
			if req.Cancel != nil && req.Cancel.Cancelled() {
				return false, domain.ErrCancelled
			}
			if chunk.Error != "" {
				return false, fmt.Errorf("ollama generate: %s", chunk.Error)
			}
			b.WriteString(chunk.Response)
			return !chunk.Done, nil
		})
		if err != nil {
			return err
		}
		answer = b.String()
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrCancelled) || (req.Cancel != nil && req.Cancel.Cancelled()) {
			return "", domain.WrapError(domain.ErrCancelled, "generate", err)
		}
		return "", err
	}
	return strings.TrimSpace(answer), nil
}

type Embedder struct {
	client *Client
}

func NewEmbedder(client *Client) *Embedder {
	return &Embedder{client: client}
}

func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	request := map[string]any{
		"model": e.client.embedModel,
		"input": texts,
	}
	if e.client.keepAlive != "" {
		request["keep_alive"] = e.client.keepAlive
	}

	var response struct {
		Embeddings [][]float32 `json:"embeddings"`
	}
	err := e.client.execute(ctx, "ollama.embed", func(ctx context.Context) error {
		return e.client.postJSON(ctx, "/api/embed", request, &response, "embed")
	})
	if err != nil {
		return nil, err
	}
	return response.Embeddings, nil
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("empty embedding result")
	}
	return vectors[0], nil
}
