// Package extractor picks a text extractor for a document by extension,
// falling back to content sniffing.
package extractor

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/kirillkom/product-advisor/internal/core/domain"
	"github.com/kirillkom/product-advisor/internal/core/ports"
	"github.com/kirillkom/product-advisor/internal/infrastructure/extractor/htmltext"
	"github.com/kirillkom/product-advisor/internal/infrastructure/extractor/pdf"
	"github.com/kirillkom/product-advisor/internal/infrastructure/extractor/plaintext"
	"github.com/kirillkom/product-advisor/internal/infrastructure/extractor/xlsx"
)

const (
	maxDocumentBytes = 32 << 20
	xlsxMIME         = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

type Registry struct {
	byExt  map[string]ports.TextExtractor
	byMIME map[string]ports.TextExtractor
}

func NewRegistry() *Registry {
	text := plaintext.NewExtractor(maxDocumentBytes)
	pdfText := pdf.NewExtractor(maxDocumentBytes)
	sheet := xlsx.NewExtractor()
	page := htmltext.NewExtractor()

	return &Registry{
		byExt: map[string]ports.TextExtractor{
			".md":   text,
			".txt":  text,
			".pdf":  pdfText,
			".xlsx": sheet,
			".html": page,
			".htm":  page,
		},
		byMIME: map[string]ports.TextExtractor{
			"text/plain":      text,
			"text/html":       page,
			"application/pdf": pdfText,
			xlsxMIME:          sheet,
		},
	}
}

// Supported reports whether name has a registered extension.
func (r *Registry) Supported(name string) bool {
	_, ok := r.byExt[strings.ToLower(filepath.Ext(name))]
	return ok
}

func (r *Registry) Extract(ctx context.Context, name string, src io.Reader) (string, error) {
	if ex, ok := r.byExt[strings.ToLower(filepath.Ext(name))]; ok {
		return ex.Extract(ctx, name, src)
	}

	raw, err := io.ReadAll(io.LimitReader(src, maxDocumentBytes))
	if err != nil {
		return "", fmt.Errorf("read %s: %w", name, err)
	}
	for mt := mimetype.Detect(raw); mt != nil; mt = mt.Parent() {
		if ex, ok := r.byMIME[baseMIME(mt.String())]; ok {
			return ex.Extract(ctx, name, bytes.NewReader(raw))
		}
	}
	return "", domain.WrapError(domain.ErrInvalidInput, "extract", fmt.Errorf("unsupported document %s", name))
}

func baseMIME(s string) string {
	if i := strings.IndexByte(s, ';'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}
