package localfs

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/kirillkom/product-advisor/internal/core/domain"
)

// archiveDir sits inside the catalog directory. The leading dot keeps it out
// of catalog scans and the watcher filter.
const archiveDir = ".archive"

// Storage writes uploaded product documents into the catalog directory.
// When keep is positive, a document that gets replaced is first copied to
// .archive/ and only the newest keep copies per document survive.
type Storage struct {
	basePath string
	keep     int
	now      func() time.Time
}

func New(basePath string, keep int) (*Storage, error) {
	if basePath == "" {
		basePath = "./data/products"
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &Storage{basePath: basePath, keep: keep, now: time.Now}, nil
}

func (s *Storage) Save(_ context.Context, key string, data io.Reader) error {
	path, err := s.resolve(key)
	if err != nil {
		return err
	}
	if s.keep > 0 {
		if err := s.archive(key, path); err != nil {
			return err
		}
	}
	return writeAtomic(path, data, 0o644)
}

func (s *Storage) Open(_ context.Context, key string) (io.ReadCloser, error) {
	path, err := s.resolve(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.WrapError(domain.ErrNotFound, "open document", err)
		}
		return nil, fmt.Errorf("open document: %w", err)
	}
	return f, nil
}

// Archived lists the archived copies of key, newest first.
func (s *Storage) Archived(key string) ([]string, error) {
	if _, err := s.resolve(key); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(filepath.Join(s.basePath, archiveDir))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list archive: %w", err)
	}
	prefix := key + "."
	var out []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), prefix) {
			out = append(out, e.Name())
		}
	}
	// Timestamps are fixed width, so lexical order is age order.
	sort.Sort(sort.Reverse(sort.StringSlice(out)))
	return out, nil
}

func (s *Storage) archive(key, path string) error {
	current, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("open replaced document: %w", err)
	}
	defer current.Close()

	dir := filepath.Join(s.basePath, archiveDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create archive dir: %w", err)
	}
	stamp := s.now().UTC().Format("20060102T150405.000000000")
	if err := writeAtomic(filepath.Join(dir, key+"."+stamp), current, 0o644); err != nil {
		return fmt.Errorf("archive %s: %w", key, err)
	}

	copies, err := s.Archived(key)
	if err != nil {
		return err
	}
	for _, old := range copies[min(len(copies), s.keep):] {
		_ = os.Remove(filepath.Join(dir, old))
	}
	return nil
}

func (s *Storage) resolve(key string) (string, error) {
	if key == "" || key != filepath.Base(key) || strings.HasPrefix(key, ".") {
		return "", domain.WrapError(domain.ErrInvalidInput, "storage key", fmt.Errorf("bad key %q", key))
	}
	return filepath.Join(s.basePath, key), nil
}
