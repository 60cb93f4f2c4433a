package usecase

import (
	"context"
	"log/slog"
	"regexp"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/product-advisor/internal/core/domain"
	"github.com/kirillkom/product-advisor/internal/core/ports"
)

const (
	hitKeyChars        = 260
	maxParallelQueries = 4
)

var whitespaceRe = regexp.MustCompile(`\s+`)

// MultiSearch fans a query list out to the vector searcher and merges the
// hits by text.
type MultiSearch struct {
	searcher ports.VectorSearcher
	logger   *slog.Logger
}

func NewMultiSearch(searcher ports.VectorSearcher, logger *slog.Logger) *MultiSearch {
	if logger == nil {
		logger = slog.Default()
	}
	return &MultiSearch{searcher: searcher, logger: logger}
}

// Search runs every query concurrently. Failed queries contribute nothing.
// Hits with the same text key keep the smallest distance; the result is
// sorted by distance and capped.
func (m *MultiSearch) Search(ctx context.Context, queries []string, topKEach, capN int) []domain.VectorHit {
	if m == nil || m.searcher == nil || len(queries) == 0 {
		return nil
	}
	results := make([][]domain.VectorHit, len(queries))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelQueries)
	for i, q := range queries {
		g.Go(func() error {
			hits, err := m.searcher.Search(gctx, q, topKEach)
			if err != nil {
				m.logger.Warn("vector_search_failed", "query", q, "error", err)
				return nil
			}
			results[i] = hits
			return nil
		})
	}
	_ = g.Wait()

	merged := make(map[string]domain.VectorHit)
	var order []string
	for _, hits := range results {
		for _, h := range hits {
			if strings.TrimSpace(h.Text) == "" {
				continue
			}
			key := hitKey(h.Text)
			cur, ok := merged[key]
			if !ok {
				order = append(order, key)
				merged[key] = h
				continue
			}
			if h.EffectiveDistance() < cur.EffectiveDistance() {
				merged[key] = h
			}
		}
	}
	out := make([]domain.VectorHit, 0, len(order))
	for _, key := range order {
		out = append(out, merged[key])
	}
	sortByDistance(out)
	if capN > 0 && len(out) > capN {
		out = out[:capN]
	}
	return out
}

// DedupeAndCap orders hits by distance, keeps at most perSourceMax per
// source and, with dedupeText, drops hits whose text key was already seen.
func DedupeAndCap(hits []domain.VectorHit, perSourceMax int, dedupeText bool) []domain.VectorHit {
	if len(hits) == 0 {
		return nil
	}
	perSourceMax = max(1, perSourceMax)
	sorted := make([]domain.VectorHit, len(hits))
	copy(sorted, hits)
	sortByDistance(sorted)

	perSource := make(map[string]int)
	seen := make(map[string]struct{})
	out := make([]domain.VectorHit, 0, len(sorted))
	for _, h := range sorted {
		src := h.SourceKey()
		if perSource[src] >= perSourceMax {
			continue
		}
		if strings.TrimSpace(h.Text) == "" {
			continue
		}
		if dedupeText {
			key := hitKey(h.Text)
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
		}
		perSource[src]++
		out = append(out, h)
	}
	return out
}

func sortByDistance(hits []domain.VectorHit) {
	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].EffectiveDistance() < hits[j].EffectiveDistance()
	})
}

func hitKey(text string) string {
	key := strings.ToLower(whitespaceRe.ReplaceAllString(strings.TrimSpace(text), " "))
	r := []rune(key)
	if len(r) > hitKeyChars {
		key = string(r[:hitKeyChars])
	}
	return key
}
