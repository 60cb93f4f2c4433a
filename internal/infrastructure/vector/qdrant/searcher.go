package qdrant

import (
	"context"
	"fmt"

	"github.com/kirillkom/product-advisor/internal/core/domain"
	"github.com/kirillkom/product-advisor/internal/core/ports"
)

// TextSearcher embeds the query text and searches the collection with it.
type TextSearcher struct {
	embedder ports.Embedder
	client   *Client
}

func NewTextSearcher(embedder ports.Embedder, client *Client) *TextSearcher {
	return &TextSearcher{embedder: embedder, client: client}
}

func (s *TextSearcher) Search(ctx context.Context, query string, topK int) ([]domain.VectorHit, error) {
	vector, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	return s.client.Search(ctx, vector, topK)
}

func (s *TextSearcher) Fingerprint(ctx context.Context) (string, error) {
	return s.client.Fingerprint(ctx)
}
