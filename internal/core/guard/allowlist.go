// Package guard keeps generated answers inside the set of products the
// retrieval evidence supports.
package guard

import (
	"strings"
	"unicode/utf8"

	"github.com/kirillkom/product-advisor/internal/core/catalog"
	"github.com/kirillkom/product-advisor/internal/core/domain"
	"github.com/kirillkom/product-advisor/internal/core/modelkey"
)

const (
	DefaultMaxItems = 24
	minEntryLen     = 3
)

// SourceAllowlist collects models named by consumed cards and product files.
func SourceAllowlist(cards []domain.ProductCard, usedFiles []string, maxItems int) []string {
	if maxItems <= 0 {
		maxItems = DefaultMaxItems
	}
	var d dedupe
	for _, c := range cards {
		model := strings.TrimSpace(c.Model)
		title := strings.TrimSpace(c.Title)
		switch {
		case model != "" && modelkey.Has(model):
			d.add(model)
		case title != "" && modelkey.Has(title):
			d.add(title)
		}
	}
	for _, fn := range usedFiles {
		if stem := catalog.StemOf(fn); stem != "" {
			d.add(stem)
		}
	}
	out := make([]string, 0, len(d.items))
	for _, item := range d.items {
		if utf8.RuneCountInString(item) >= minEntryLen {
			out = append(out, item)
		}
	}
	if len(out) > maxItems {
		out = out[:maxItems]
	}
	return out
}

// Merge joins source and fused entries, treating spellings that normalize to
// the same model key as one entry. When nothing
// survives and forceNonEmpty is set, the known-model vocabulary is used and
// forced reports true.
func Merge(source, fused, known []string, maxItems int, forceNonEmpty bool) (merged []string, forced bool) {
	if maxItems <= 0 {
		maxItems = DefaultMaxItems
	}
	var d dedupe
	for _, x := range source {
		d.add(x)
	}
	for _, x := range fused {
		d.add(x)
	}
	merged = d.items
	if len(merged) == 0 && forceNonEmpty && len(known) > 0 {
		merged = append([]string(nil), known...)
		forced = true
	}
	if len(merged) > maxItems {
		merged = merged[:maxItems]
	}
	return merged, forced
}

type dedupe struct {
	seen  map[string]struct{}
	items []string
}

func (d *dedupe) add(x string) {
	x = strings.TrimSpace(x)
	if x == "" {
		return
	}
	if d.seen == nil {
		d.seen = make(map[string]struct{})
	}
	k := modelkey.Key(x)
	if _, ok := d.seen[k]; ok {
		return
	}
	d.seen[k] = struct{}{}
	d.items = append(d.items, x)
}
