// Package fusion merges lexical and vector candidate lists into a ranked
// allowlist of product models.
package fusion

import (
	"sort"

	"github.com/kirillkom/product-advisor/internal/core/modelkey"
)

const defaultRRFK = 60

type fusedItem struct {
	key   string
	score float64
	first int
}

// FuseRRF combines ranked lists with reciprocal rank fusion using 1-based
// ranks. Items are matched by model key and keep their first-seen spelling.
// Equal scores keep the order of first appearance.
func FuseRRF(lists [][]string, k, topN int) []string {
	if k <= 0 {
		k = defaultRRFK
	}
	acc := make(map[string]*fusedItem)
	order := 0
	for _, list := range lists {
		for rank, item := range list {
			if item == "" {
				continue
			}
			mk := modelkey.Key(item)
			c, ok := acc[mk]
			if !ok {
				c = &fusedItem{key: item, first: order}
				acc[mk] = c
				order++
			}
			c.score += 1.0 / float64(k+rank+1)
		}
	}
	if len(acc) == 0 {
		return nil
	}

	items := make([]*fusedItem, 0, len(acc))
	for _, c := range acc {
		items = append(items, c)
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].score != items[j].score {
			return items[i].score > items[j].score
		}
		return items[i].first < items[j].first
	})

	if topN > 0 && len(items) > topN {
		items = items[:topN]
	}
	out := make([]string, 0, len(items))
	for _, c := range items {
		out = append(out, c.key)
	}
	return out
}
