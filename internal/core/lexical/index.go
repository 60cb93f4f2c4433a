// Package lexical implements an in-memory BM25 index whose snapshots are
// immutable and swapped atomically on rebuild.
package lexical

import (
	"math"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"unicode/utf8"

	"github.com/kirillkom/product-advisor/internal/core/domain"
)

const (
	DefaultK1 = 1.5
	DefaultB  = 0.75

	queryRepeatBoost = 0.15
	queryRepeatCap   = 4
)

type Params struct {
	K1       float64
	B        float64
	MaxChars int
	DocCap   int
	QueryCap int
	// MinPool is the lower bound of the candidate pool inspected before
	// cutting results to topN.
	MinPool int
}

func (p Params) normalize() Params {
	if p.K1 <= 0 {
		p.K1 = DefaultK1
	}
	if p.B < 0 || p.B > 1 {
		p.B = DefaultB
	}
	if p.DocCap <= 0 {
		p.DocCap = DocumentTokenCap
	}
	if p.QueryCap <= 0 {
		p.QueryCap = QueryTokenCap
	}
	if p.MinPool <= 0 {
		p.MinPool = 10
	}
	return p
}

// Input is a document handed to a rebuild.
type Input struct {
	ID     string
	Source string
	Text   string
}

type document struct {
	id     string
	source string
	text   string
	tf     map[string]int
	length int
}

// Corpus is an immutable BM25 snapshot.
type Corpus struct {
	params Params
	docs   []document
	df     map[string]int
	avgdl  float64
}

// BuildCorpus tokenizes inputs and computes document frequencies.
func BuildCorpus(inputs []Input, params Params) *Corpus {
	params = params.normalize()
	c := &Corpus{
		params: params,
		docs:   make([]document, 0, len(inputs)),
		df:     make(map[string]int),
	}
	totalLen := 0
	nonEmpty := 0
	for _, in := range inputs {
		text := truncateRunes(in.Text, params.MaxChars)
		tokens := Tokenize(text, params.DocCap)
		tf := make(map[string]int, len(tokens))
		for _, tok := range tokens {
			tf[tok]++
		}
		for tok := range tf {
			c.df[tok]++
		}
		if len(tokens) > 0 {
			totalLen += len(tokens)
			nonEmpty++
		}
		c.docs = append(c.docs, document{
			id:     in.ID,
			source: in.Source,
			text:   text,
			tf:     tf,
			length: len(tokens),
		})
	}
	if nonEmpty > 0 {
		c.avgdl = float64(totalLen) / float64(nonEmpty)
	}
	return c
}

func (c *Corpus) Len() int {
	if c == nil {
		return 0
	}
	return len(c.docs)
}

type scoredDoc struct {
	index int
	score float64
}

// rank scores every document against the query and returns positive scores
// in descending order, ties broken by corpus order.
func (c *Corpus) rank(query string, queryCap int) []scoredDoc {
	if c == nil || len(c.docs) == 0 {
		return nil
	}
	qTokens := Tokenize(query, queryCap)
	if len(qTokens) == 0 {
		return nil
	}
	qf := make(map[string]int, len(qTokens))
	order := make([]string, 0, len(qTokens))
	for _, tok := range qTokens {
		if qf[tok] == 0 {
			order = append(order, tok)
		}
		qf[tok]++
	}

	n := float64(len(c.docs))
	avgdl := c.avgdl
	if avgdl <= 0 {
		avgdl = 1
	}
	k1, b := c.params.K1, c.params.B

	out := make([]scoredDoc, 0, len(c.docs))
	for i, doc := range c.docs {
		if doc.length == 0 {
			continue
		}
		score := 0.0
		for _, term := range order {
			f := doc.tf[term]
			if f == 0 {
				continue
			}
			df := float64(c.df[term])
			idf := math.Log(1 + (n-df+0.5)/(df+0.5))
			tf := float64(f)
			denom := tf + k1*(1-b+b*float64(doc.length)/avgdl)
			boost := 1 + queryRepeatBoost*float64(min(queryRepeatCap, qf[term]-1))
			score += idf * (tf * (k1 + 1) / denom) * boost
		}
		if score > 0 {
			out = append(out, scoredDoc{index: i, score: score})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].score > out[j].score
	})
	return out
}

// Search returns up to topN hits for query.
func (c *Corpus) Search(query string, topN int) []domain.SearchHit {
	if topN <= 0 {
		return nil
	}
	ranked := c.rank(query, c.params.QueryCap)
	pool := max(c.params.MinPool, topN*2)
	if len(ranked) > pool {
		ranked = ranked[:pool]
	}
	if len(ranked) > topN {
		ranked = ranked[:topN]
	}
	hits := make([]domain.SearchHit, 0, len(ranked))
	for _, r := range ranked {
		doc := c.docs[r.index]
		hits = append(hits, domain.SearchHit{
			DocID:  doc.id,
			Source: doc.source,
			Score:  r.score,
			Text:   doc.text,
		})
	}
	return hits
}

// RankIDs returns distinct document ids (case-insensitive) by descending score.
func (c *Corpus) RankIDs(query string, topN int) []string {
	if topN <= 0 {
		return nil
	}
	ranked := c.rank(query, c.params.QueryCap)
	pool := max(c.params.MinPool, topN*2)
	if len(ranked) > pool {
		ranked = ranked[:pool]
	}
	seen := make(map[string]struct{}, len(ranked))
	out := make([]string, 0, topN)
	for _, r := range ranked {
		id := c.docs[r.index].id
		key := strings.ToLower(id)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, id)
		if len(out) >= topN {
			break
		}
	}
	return out
}

// Index holds the live corpus. Readers never block; rebuilds are serialized.
type Index struct {
	params    Params
	rebuildMu sync.Mutex
	current   atomic.Pointer[Corpus]
}

func NewIndex(params Params) *Index {
	ix := &Index{params: params.normalize()}
	ix.current.Store(BuildCorpus(nil, ix.params))
	return ix
}

// Rebuild builds a new corpus off to the side and publishes it atomically.
func (ix *Index) Rebuild(inputs []Input) int {
	ix.rebuildMu.Lock()
	defer ix.rebuildMu.Unlock()

	next := BuildCorpus(inputs, ix.params)
	ix.current.Store(next)
	return next.Len()
}

func (ix *Index) Snapshot() *Corpus {
	return ix.current.Load()
}

func (ix *Index) Search(query string, topN int) []domain.SearchHit {
	return ix.Snapshot().Search(query, topN)
}

func (ix *Index) Len() int {
	return ix.Snapshot().Len()
}

func truncateRunes(s string, maxChars int) string {
	if maxChars <= 0 || utf8.RuneCountInString(s) <= maxChars {
		return s
	}
	return string([]rune(s)[:maxChars])
}
