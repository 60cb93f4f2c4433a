package ports

import (
	"context"
	"io"

	"github.com/kirillkom/product-advisor/internal/core/domain"
)

// ChatService answers one chat turn. Rate-limited, busy and cancelled turns
// return both a response and an error of the matching domain kind.
type ChatService interface {
	Handle(ctx context.Context, req domain.ChatRequest) (*domain.ChatResponse, error)
	Cancel(rid string) bool
	Clear(ctx context.Context, sessionID string) error
}

// ReloadService rebuilds every in-memory index from disk.
type ReloadService interface {
	Reload(ctx context.Context, reason string) (domain.ReloadReport, error)
}

// ProductUploader stores a new product document and refreshes the catalog.
type ProductUploader interface {
	UploadProduct(ctx context.Context, filename string, body io.Reader) (domain.UploadResult, error)
}

// CompanyInfoReader exposes the parsed company profile.
type CompanyInfoReader interface {
	CompanyInfo() domain.CompanyInfo
}

// IndexStatusReader reports the state of the serving indexes.
type IndexStatusReader interface {
	Status(ctx context.Context) domain.IndexStatus
}
