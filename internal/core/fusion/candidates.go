package fusion

import (
	"strings"

	"github.com/kirillkom/product-advisor/internal/core/catalog"
	"github.com/kirillkom/product-advisor/internal/core/domain"
	"github.com/kirillkom/product-advisor/internal/core/modelkey"
)

const textTokensPerHit = 8

// Catalog is the subset of the catalog index fusion relies on.
type Catalog interface {
	StemFor(phrase string) (string, bool)
	IsKnownModel(token string) (string, bool)
	KnownModels() []string
}

// VectorCandidates derives product candidates from vector hits: the stem of
// a product_*.md source, the catalog resolution of the hit title, and model
// tokens in the text that match known models, in their catalog spelling.
func VectorCandidates(cat Catalog, hits []domain.VectorHit, limit int) []string {
	if limit <= 0 {
		return nil
	}
	out := make([]string, 0, limit)
	seen := make(map[string]struct{}, limit)
	add := func(x string) {
		x = strings.TrimSpace(x)
		if x == "" {
			return
		}
		k := modelkey.Key(x)
		if _, ok := seen[k]; ok {
			return
		}
		seen[k] = struct{}{}
		out = append(out, x)
	}

	for _, hit := range hits {
		src := hit.Meta("source")
		if src == "" {
			src = hit.Meta("file")
		}
		if stem := catalog.StemOf(src); stem != "" {
			add(stem)
		}
		if title := hit.Meta("title"); title != "" {
			if stem, ok := cat.StemFor(title); ok {
				add(stem)
			}
		}
		for _, tok := range modelkey.FindAll(hit.Text, textTokensPerHit) {
			if canonical, ok := cat.IsKnownModel(tok); ok {
				add(canonical)
			}
		}
		if len(out) >= limit {
			break
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}
