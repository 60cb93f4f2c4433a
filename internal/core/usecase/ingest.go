package usecase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/kirillkom/product-advisor/internal/core/catalog"
	"github.com/kirillkom/product-advisor/internal/core/domain"
	"github.com/kirillkom/product-advisor/internal/core/ports"
)

const maxProductDocBytes = 4 << 20

// ProductIngestUseCase stores uploaded product documents in the catalog
// directory and refreshes the catalog.
type ProductIngestUseCase struct {
	storage ports.ObjectStorage
	reload  *ReloadUseCase
}

func NewProductIngestUseCase(storage ports.ObjectStorage, reload *ReloadUseCase) *ProductIngestUseCase {
	return &ProductIngestUseCase{storage: storage, reload: reload}
}

func (uc *ProductIngestUseCase) UploadProduct(ctx context.Context, filename string, body io.Reader) (domain.UploadResult, error) {
	name := sanitizeFilename(filename)
	if !strings.HasSuffix(strings.ToLower(name), ".md") {
		return domain.UploadResult{}, domain.WrapError(domain.ErrInvalidInput, "upload product", errors.New("only .md allowed"))
	}
	if !strings.HasPrefix(name, "product_") {
		name = "product_" + name
	}
	if !catalog.IsProductFile(name) {
		return domain.UploadResult{}, domain.WrapError(domain.ErrInvalidInput, "upload product", fmt.Errorf("bad file name %q", filename))
	}

	raw, err := io.ReadAll(io.LimitReader(body, maxProductDocBytes+1))
	if err != nil {
		return domain.UploadResult{}, fmt.Errorf("read upload: %w", err)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return domain.UploadResult{}, domain.WrapError(domain.ErrInvalidInput, "upload product", errors.New("empty file"))
	}
	if len(raw) > maxProductDocBytes {
		return domain.UploadResult{}, domain.WrapError(domain.ErrInvalidInput, "upload product", errors.New("file too large"))
	}

	if err := uc.storage.Save(ctx, name, bytes.NewReader(raw)); err != nil {
		return domain.UploadResult{}, fmt.Errorf("save product document: %w", err)
	}
	stats, err := uc.reload.RebuildCatalog(ctx)
	if err != nil {
		return domain.UploadResult{}, err
	}
	uc.reload.publish(ctx, "upload:"+name)
	return domain.UploadResult{SavedAs: name, KnownModels: stats.KnownModels}, nil
}

func sanitizeFilename(name string) string {
	base := filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	base = strings.TrimLeft(base, ".")
	if base == "" {
		return "document.md"
	}
	return base
}
