// Package expansion turns a user phrase into alias terms and a bounded set
// of retrieval queries.
package expansion

import (
	"sort"
	"strings"
	"sync/atomic"

	"github.com/kirillkom/product-advisor/internal/core/modelkey"
)

const (
	MaxAliasTerms  = 12
	MaxQueries     = 10
	comboAliasTake = 4
)

// Dictionary maps a normalized canonical key to its synonyms.
type Dictionary struct {
	keys     []string
	synonyms map[string][]string
}

// NewDictionary accepts decoded JSON/YAML values: each value may be a string
// or a list of strings. Malformed entries and empty strings are dropped.
func NewDictionary(raw map[string]any) *Dictionary {
	d := &Dictionary{synonyms: make(map[string][]string, len(raw))}
	for key, value := range raw {
		nk := modelkey.Normalize(key)
		if nk == "" {
			continue
		}
		var syns []string
		switch v := value.(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				syns = append(syns, s)
			}
		case []string:
			for _, item := range v {
				if s := strings.TrimSpace(item); s != "" {
					syns = append(syns, s)
				}
			}
		case []any:
			for _, item := range v {
				if str, ok := item.(string); ok {
					if s := strings.TrimSpace(str); s != "" {
						syns = append(syns, s)
					}
				}
			}
		default:
			continue
		}
		if len(syns) == 0 {
			continue
		}
		if _, exists := d.synonyms[nk]; !exists {
			d.keys = append(d.keys, nk)
		}
		d.synonyms[nk] = append(d.synonyms[nk], syns...)
	}
	sort.Strings(d.keys)
	return d
}

func (d *Dictionary) Len() int {
	if d == nil {
		return 0
	}
	return len(d.keys)
}

// Expander serves alias lookups from a dictionary that can be swapped at
// runtime.
type Expander struct {
	dict atomic.Pointer[Dictionary]
}

func NewExpander(dict *Dictionary) *Expander {
	e := &Expander{}
	e.Replace(dict)
	return e
}

func (e *Expander) Replace(dict *Dictionary) {
	if dict == nil {
		dict = NewDictionary(nil)
	}
	e.dict.Store(dict)
}

func (e *Expander) Dictionary() *Dictionary {
	return e.dict.Load()
}

// ExpandByAlias returns the phrase followed by canonical keys contained in
// the normalized phrase with their synonyms, then synonyms found verbatim in
// the phrase with their keys. At most MaxAliasTerms terms.
func (e *Expander) ExpandByAlias(phrase string) []string {
	q := strings.TrimSpace(phrase)
	if q == "" {
		return nil
	}
	d := e.dict.Load()
	if d == nil {
		return []string{q}
	}
	out := []string{q}
	seen := map[string]struct{}{q: {}}
	add := func(term string) {
		if term == "" {
			return
		}
		if _, ok := seen[term]; ok {
			return
		}
		seen[term] = struct{}{}
		out = append(out, term)
	}

	nq := modelkey.Normalize(q)
	for _, key := range d.keys {
		if nq != "" && strings.Contains(nq, key) {
			add(key)
			for _, syn := range d.synonyms[key] {
				add(syn)
			}
		}
	}
	for _, key := range d.keys {
		for _, syn := range d.synonyms[key] {
			if strings.Contains(q, syn) {
				add(key)
				add(syn)
			}
		}
	}
	if len(out) > MaxAliasTerms {
		out = out[:MaxAliasTerms]
	}
	return out
}

// HasAliasHit reports whether expansion found anything beyond the phrase.
func (e *Expander) HasAliasHit(phrase string) bool {
	return len(e.ExpandByAlias(phrase)) > 1
}
