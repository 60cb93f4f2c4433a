package ports

import (
	"context"
	"io"

	"github.com/kirillkom/product-advisor/internal/core/domain"
)

// VectorSearcher runs similarity search over the knowledge collection.
type VectorSearcher interface {
	Search(ctx context.Context, query string, topK int) ([]domain.VectorHit, error)
}

// Fingerprinter identifies the current content of the vector collection so
// cached answers can be invalidated when it changes.
type Fingerprinter interface {
	Fingerprint(ctx context.Context) (string, error)
}

// Embedder builds vectors for query text.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// TextGenerator samples a completion. Implementations poll req.Cancel while
// streaming and return domain.ErrCancelled once it fires.
type TextGenerator interface {
	Generate(ctx context.Context, req domain.GenerationRequest) (string, error)
}

// ProductCardStore reads structured product rows.
type ProductCardStore interface {
	SearchByKeyword(ctx context.Context, keyword string, limit int) ([]domain.ProductCard, error)
	GetByTitles(ctx context.Context, titles []string, limit int) ([]domain.ProductCard, error)
}

// SessionStore persists conversation sessions. Load returns a fresh session
// for unknown ids.
type SessionStore interface {
	Load(ctx context.Context, id string) (*domain.Session, error)
	Save(ctx context.Context, s *domain.Session) error
	Delete(ctx context.Context, id string) error
}

// ObjectStorage stores uploaded source documents.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// TextExtractor turns a stored document into plain text.
type TextExtractor interface {
	Extract(ctx context.Context, name string, r io.Reader) (string, error)
}

// ReloadPublisher fans reload events out to other instances.
type ReloadPublisher interface {
	PublishReload(ctx context.Context, event domain.ReloadEvent) error
}

// ReloadSubscriber delivers reload events published elsewhere.
type ReloadSubscriber interface {
	SubscribeReload(ctx context.Context, handler func(context.Context, domain.ReloadEvent) error) error
}

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Chunker splits extracted text into embedding-sized pieces.
type Chunker interface {
	Split(text string) []string
}

// VectorIndexer upserts one source's chunk vectors.
type VectorIndexer interface {
	IndexChunks(ctx context.Context, source string, chunks []string, vectors [][]float32) error
}
