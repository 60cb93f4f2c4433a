package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/kirillkom/product-advisor/internal/core/domain"
	"github.com/kirillkom/product-advisor/internal/core/ports"
)

// VectorizeReport summarizes one indexing run.
type VectorizeReport struct {
	Files   int `json:"files"`
	Chunks  int `json:"chunks"`
	Skipped int `json:"skipped"`
}

// SourceDoc is one document offered to the vector index.
type SourceDoc struct {
	Name string
	Open func() (io.ReadCloser, error)
}

// VectorizeUseCase fills the vector collection that backs semantic
// retrieval: extract, chunk, embed, upsert.
type VectorizeUseCase struct {
	extractor ports.TextExtractor
	chunker   ports.Chunker
	embedder  ports.Embedder
	index     ports.VectorIndexer
	logger    *slog.Logger
}

func NewVectorizeUseCase(
	extractor ports.TextExtractor,
	chunker ports.Chunker,
	embedder ports.Embedder,
	index ports.VectorIndexer,
	logger *slog.Logger,
) *VectorizeUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &VectorizeUseCase{
		extractor: extractor,
		chunker:   chunker,
		embedder:  embedder,
		index:     index,
		logger:    logger,
	}
}

// IndexAll indexes every document. A document that cannot be extracted is
// skipped; embedding or upsert failures abort the run.
func (uc *VectorizeUseCase) IndexAll(ctx context.Context, docs []SourceDoc) (VectorizeReport, error) {
	var report VectorizeReport
	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		n, err := uc.indexOne(ctx, doc)
		switch {
		case err == nil:
			report.Files++
			report.Chunks += n
		case errors.Is(err, domain.ErrInvalidInput):
			report.Skipped++
			uc.logger.Warn("vectorize_skipped", "source", doc.Name, "error", err)
		default:
			return report, fmt.Errorf("index %s: %w", doc.Name, err)
		}
	}
	uc.logger.Info("vectorize_done", "files", report.Files, "chunks", report.Chunks, "skipped", report.Skipped)
	return report, nil
}

func (uc *VectorizeUseCase) indexOne(ctx context.Context, doc SourceDoc) (int, error) {
	text, err := uc.extract(ctx, doc)
	if err != nil {
		return 0, err
	}
	chunks := uc.chunker.Split(text)
	if len(chunks) == 0 {
		return 0, domain.WrapError(domain.ErrInvalidInput, "chunk text", errors.New("no chunks produced"))
	}
	vectors, err := uc.embedder.Embed(ctx, chunks)
	if err != nil {
		return 0, fmt.Errorf("embed chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		return 0, fmt.Errorf("embed chunks: got %d vectors for %d chunks", len(vectors), len(chunks))
	}
	if err := uc.index.IndexChunks(ctx, doc.Name, chunks, vectors); err != nil {
		return 0, fmt.Errorf("upsert chunks: %w", err)
	}
	return len(chunks), nil
}

func (uc *VectorizeUseCase) extract(ctx context.Context, doc SourceDoc) (string, error) {
	rc, err := doc.Open()
	if err != nil {
		return "", domain.WrapError(domain.ErrInvalidInput, "open source", err)
	}
	defer rc.Close()
	text, err := uc.extractor.Extract(ctx, doc.Name, rc)
	if err != nil {
		return "", domain.WrapError(domain.ErrInvalidInput, "extract text", err)
	}
	return text, nil
}
