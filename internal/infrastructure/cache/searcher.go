package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/kirillkom/product-advisor/internal/core/domain"
	"github.com/kirillkom/product-advisor/internal/core/ports"
)

// CachedSearcher memoizes vector search results keyed by the collection
// fingerprint, so a re-indexed collection never serves stale hits. Cache
// failures fall through to the wrapped searcher.
type CachedSearcher struct {
	next   ports.VectorSearcher
	fp     ports.Fingerprinter
	store  Store
	ttl    time.Duration
	logger *slog.Logger
}

func NewCachedSearcher(next ports.VectorSearcher, fp ports.Fingerprinter, store Store, ttl time.Duration, logger *slog.Logger) *CachedSearcher {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedSearcher{next: next, fp: fp, store: store, ttl: ttl, logger: logger}
}

func (s *CachedSearcher) Search(ctx context.Context, query string, topK int) ([]domain.VectorHit, error) {
	fingerprint := ""
	if s.fp != nil {
		fp, err := s.fp.Fingerprint(ctx)
		if err != nil {
			return s.next.Search(ctx, query, topK)
		}
		fingerprint = fp
	}
	key := searchKey(fingerprint, query, topK)

	raw, err := s.store.Get(ctx, key)
	switch {
	case err == nil:
		var hits []domain.VectorHit
		if jsonErr := json.Unmarshal(raw, &hits); jsonErr == nil {
			return hits, nil
		}
	case !errors.Is(err, ErrCacheMiss):
		s.logger.Warn("vector_cache_get_failed", "error", err)
	}

	hits, err := s.next.Search(ctx, query, topK)
	if err != nil {
		return nil, err
	}
	if raw, err := json.Marshal(hits); err == nil {
		if err := s.store.Set(ctx, key, raw, s.ttl); err != nil {
			s.logger.Warn("vector_cache_set_failed", "error", err)
		}
	}
	return hits, nil
}

func (s *CachedSearcher) Fingerprint(ctx context.Context) (string, error) {
	if s.fp == nil {
		return "", nil
	}
	return s.fp.Fingerprint(ctx)
}

func searchKey(fingerprint, query string, topK int) string {
	sum := sha256.Sum256([]byte(fingerprint + "\x00" + strconv.Itoa(topK) + "\x00" + query))
	return "vec:" + hex.EncodeToString(sum[:16])
}
