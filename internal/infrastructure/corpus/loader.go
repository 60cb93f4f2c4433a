// Package corpus reads the system documents that back the general-purpose
// lexical index.
package corpus

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/kirillkom/product-advisor/internal/core/lexical"
	"github.com/kirillkom/product-advisor/internal/core/ports"
)

// Extractors resolves a text extractor by file name.
type Extractors interface {
	ports.TextExtractor
	Supported(name string) bool
}

// Loader collects the company profile followed by every supported file of
// the system docs directory in name order. Unreadable files are skipped.
type Loader struct {
	companyPath string
	dir         string
	extractors  Extractors
	logger      *slog.Logger
}

func NewLoader(companyPath, dir string, extractors Extractors, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{companyPath: companyPath, dir: dir, extractors: extractors, logger: logger}
}

func (l *Loader) Load(ctx context.Context) ([]lexical.Input, error) {
	out := make([]lexical.Input, 0, 16)

	if l.companyPath != "" {
		text, err := l.extract(ctx, l.companyPath, "company_info.md")
		switch {
		case err == nil:
			out = append(out, lexical.Input{ID: "company_info", Source: "company_info.md", Text: text})
		case !errors.Is(err, fs.ErrNotExist):
			l.logger.Warn("system_doc_skipped", "file", l.companyPath, "error", err)
		}
	}

	if l.dir == "" {
		return out, nil
	}
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return out, nil
		}
		return nil, fmt.Errorf("read system docs dir: %w", err)
	}
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		name := entry.Name()
		if entry.IsDir() || !l.extractors.Supported(name) {
			continue
		}
		text, err := l.extract(ctx, filepath.Join(l.dir, name), name)
		if err != nil {
			l.logger.Warn("system_doc_skipped", "file", name, "error", err)
			continue
		}
		if text == "" {
			continue
		}
		out = append(out, lexical.Input{ID: "system:" + name, Source: name, Text: text})
	}
	return out, nil
}

func (l *Loader) extract(ctx context.Context, path, name string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	return l.extractors.Extract(ctx, name, f)
}
