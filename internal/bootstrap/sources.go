package bootstrap

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/kirillkom/product-advisor/internal/core/catalog"
	"github.com/kirillkom/product-advisor/internal/core/usecase"
)

// SourceDocs lists the product documents and system documents that feed the
// vector collection. When names is non-empty only files with those base
// names are returned. Missing directories yield no documents.
func (a *App) SourceDocs(names ...string) ([]usecase.SourceDoc, error) {
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = true
	}
	keep := func(name string) bool {
		return len(want) == 0 || want[name]
	}

	var docs []usecase.SourceDoc
	products, err := listDir(a.Config.CatalogDir, func(name string) bool {
		return catalog.IsProductFile(name) && keep(name)
	})
	if err != nil {
		return nil, err
	}
	docs = append(docs, products...)

	system, err := listDir(a.Config.SystemDocsDir, func(name string) bool {
		return a.Extractors.Supported(name) && keep(name)
	})
	if err != nil {
		return nil, err
	}
	return append(docs, system...), nil
}

func listDir(dir string, match func(string) bool) ([]usecase.SourceDoc, error) {
	if dir == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s: %w", dir, err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	out := make([]usecase.SourceDoc, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !match(e.Name()) {
			continue
		}
		path := filepath.Join(dir, e.Name())
		out = append(out, usecase.SourceDoc{
			Name: e.Name(),
			Open: func() (io.ReadCloser, error) { return os.Open(path) },
		})
	}
	return out, nil
}
