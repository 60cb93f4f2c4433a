// Package catalog indexes the product_*.md documents of the catalog
// directory and resolves free-form phrases to product records.
package catalog

import (
	"context"
	"io/fs"
	"log/slog"
	"path"
	"regexp"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/kirillkom/product-advisor/internal/core/domain"
	"github.com/kirillkom/product-advisor/internal/core/lexical"
	"github.com/kirillkom/product-advisor/internal/core/modelkey"
)

const (
	filePrefix = "product_"
	fileSuffix = ".md"

	defaultHeadChars    = 7000
	defaultSnippetChars = 3500
	defaultRankTopN     = 8
	minStemTokenLen     = 4
	minKnownModelLen    = 3
)

var (
	nameRe      = regexp.MustCompile(`(產品名稱|名稱)\s*[:：]\s*(.+)`)
	modelRe     = regexp.MustCompile(`(?i)(型號|Model)\s*[:：]\s*(.+)`)
	stemSplitRe = regexp.MustCompile(`[_\-]+`)
)

// AliasExpander supplies alias terms for user-text resolution.
type AliasExpander interface {
	ExpandByAlias(phrase string) []string
}

type Config struct {
	HeadChars    int
	SnippetChars int
	RankTopN     int
	Lexical      lexical.Params
	// LexicalDisabled turns RankByLexicalScore into a no-op.
	LexicalDisabled bool
}

// Stats summarizes one rebuild.
type Stats struct {
	Files       int
	KnownModels int
	Skipped     int
	Duration    time.Duration
}

// Snapshot is an immutable view of the catalog at one rebuild.
type Snapshot struct {
	records   []*domain.ProductRecord
	byFile    map[string]*domain.ProductRecord
	byStem    map[string]*domain.ProductRecord
	byName    map[string]*domain.ProductRecord
	byModel   map[string]*domain.ProductRecord
	known     []string
	knownNorm map[string]string
	corpus    *lexical.Corpus
}

func emptySnapshot() *Snapshot {
	return &Snapshot{
		byFile:    map[string]*domain.ProductRecord{},
		byStem:    map[string]*domain.ProductRecord{},
		byName:    map[string]*domain.ProductRecord{},
		byModel:   map[string]*domain.ProductRecord{},
		knownNorm: map[string]string{},
	}
}

// Index serves lookups from the current snapshot while Rebuild prepares
// the next one.
type Index struct {
	fsys      fs.FS
	cfg       Config
	logger    *slog.Logger
	aliases   AliasExpander
	rebuildMu sync.Mutex
	current   atomic.Pointer[Snapshot]
}

func New(fsys fs.FS, cfg Config, aliases AliasExpander, logger *slog.Logger) *Index {
	if cfg.HeadChars <= 0 {
		cfg.HeadChars = defaultHeadChars
	}
	if cfg.SnippetChars <= 0 {
		cfg.SnippetChars = defaultSnippetChars
	}
	if cfg.RankTopN <= 0 {
		cfg.RankTopN = defaultRankTopN
	}
	cfg.Lexical.MinPool = max(cfg.Lexical.MinPool, 12)
	cfg.Lexical.QueryCap = lexical.ProductQueryCap
	cfg.Lexical.MaxChars = 0
	if logger == nil {
		logger = slog.Default()
	}
	ix := &Index{fsys: fsys, cfg: cfg, logger: logger, aliases: aliases}
	ix.current.Store(emptySnapshot())
	return ix
}

// Rebuild re-reads the catalog and swaps the snapshot. A missing or
// unreadable directory publishes an empty catalog.
func (ix *Index) Rebuild(ctx context.Context) (Stats, error) {
	ix.rebuildMu.Lock()
	defer ix.rebuildMu.Unlock()

	started := time.Now()
	snap, stats := ix.build(ctx)
	if err := ctx.Err(); err != nil {
		return Stats{}, err
	}
	stats.Duration = time.Since(started)
	ix.current.Store(snap)
	ix.logger.Info("catalog_rebuilt",
		"files", stats.Files,
		"known_models", stats.KnownModels,
		"skipped", stats.Skipped,
		"duration_ms", stats.Duration.Milliseconds(),
	)
	return stats, nil
}

func (ix *Index) build(ctx context.Context) (*Snapshot, Stats) {
	snap := emptySnapshot()
	var stats Stats

	entries, err := fs.ReadDir(ix.fsys, ".")
	if err != nil {
		ix.logger.Warn("catalog_dir_unreadable", "error", err)
		return snap, stats
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if IsProductFile(e.Name()) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	models := make(map[string]struct{}, len(names)*2)
	inputs := make([]lexical.Input, 0, len(names))
	for _, name := range names {
		if ctx.Err() != nil {
			return snap, stats
		}
		stem := StemOf(name)
		rec := &domain.ProductRecord{Stem: stem, Path: name}

		raw, err := fs.ReadFile(ix.fsys, name)
		if err != nil {
			ix.logger.Warn("catalog_file_unreadable", "file", name, "error", err)
			stats.Skipped++
			continue
		}
		rec.RawText = strings.ToValidUTF8(string(raw), "")
		head := prefixRunes(rec.RawText, ix.cfg.HeadChars)

		if m := nameRe.FindStringSubmatch(head); m != nil {
			rec.DisplayName = strings.TrimSpace(m[2])
		}
		if m := modelRe.FindStringSubmatch(head); m != nil {
			rec.ModelCode = strings.TrimSpace(m[2])
		}

		snap.records = append(snap.records, rec)
		snap.byFile[strings.ToLower(name)] = rec
		if stem = strings.TrimSpace(stem); stem != "" {
			models[stem] = struct{}{}
		}
		if k := modelkey.Normalize(rec.Stem); k != "" {
			snap.byStem[k] = rec
		}
		if k := modelkey.Normalize(rec.DisplayName); k != "" {
			snap.byName[k] = rec
		}
		if rec.ModelCode != "" {
			models[rec.ModelCode] = struct{}{}
			if k := modelkey.Normalize(rec.ModelCode); k != "" {
				snap.byModel[k] = rec
			}
		}

		snippet := prefixRunes(rec.RawText, ix.cfg.SnippetChars)
		inputs = append(inputs, lexical.Input{
			ID:     rec.Stem,
			Source: name,
			Text:   rec.Stem + "\n" + rec.DisplayName + "\n" + rec.ModelCode + "\n" + snippet,
		})
	}

	for m := range models {
		if utf8.RuneCountInString(m) >= minKnownModelLen {
			snap.known = append(snap.known, m)
		}
	}
	sort.Slice(snap.known, func(i, j int) bool {
		li, lj := strings.ToLower(snap.known[i]), strings.ToLower(snap.known[j])
		if li != lj {
			return li < lj
		}
		return snap.known[i] < snap.known[j]
	})
	for _, m := range snap.known {
		if k := modelkey.Normalize(m); k != "" {
			if _, exists := snap.knownNorm[k]; !exists {
				snap.knownNorm[k] = m
			}
		}
	}
	if !ix.cfg.LexicalDisabled {
		snap.corpus = lexical.BuildCorpus(inputs, ix.cfg.Lexical)
	}

	stats.Files = len(snap.records)
	stats.KnownModels = len(snap.known)
	return snap, stats
}

func (ix *Index) snapshot() *Snapshot {
	return ix.current.Load()
}

// Resolve maps a phrase to a product record: exact file name first, then
// normalized model, name and stem keys, then distinctive stem fragments.
func (ix *Index) Resolve(phrase string) (*domain.ProductRecord, bool) {
	return ix.snapshot().resolve(phrase)
}

func (s *Snapshot) resolve(phrase string) (*domain.ProductRecord, bool) {
	q := strings.TrimSpace(phrase)
	if q == "" {
		return nil, false
	}
	if rec, ok := s.byFile[strings.ToLower(filePrefix+q+fileSuffix)]; ok && rec.Stem == q {
		return rec, true
	}
	if nq := modelkey.Normalize(q); nq != "" {
		for _, m := range []map[string]*domain.ProductRecord{s.byModel, s.byName, s.byStem} {
			if rec, ok := m[nq]; ok {
				return rec, true
			}
		}
	}
	ql := strings.ToLower(q)
	for _, rec := range s.records {
		for _, tok := range stemSplitRe.Split(strings.ToLower(rec.Stem), -1) {
			if len(tok) >= minStemTokenLen && strings.Contains(ql, tok) {
				return rec, true
			}
		}
	}
	return nil, false
}

// ResolveFromUserText tries the first model-like token, then alias terms,
// then the whole text.
func (ix *Index) ResolveFromUserText(text string) (*domain.ProductRecord, bool) {
	snap := ix.snapshot()
	if key := modelkey.First(text); key != "" {
		if rec, ok := snap.resolve(key); ok {
			return rec, true
		}
	}
	if ix.aliases != nil {
		for _, term := range ix.aliases.ExpandByAlias(text) {
			if rec, ok := snap.resolve(term); ok {
				return rec, true
			}
		}
	}
	return snap.resolve(text)
}

// StemFor resolves a phrase and returns the product stem.
func (ix *Index) StemFor(phrase string) (string, bool) {
	rec, ok := ix.Resolve(phrase)
	if !ok {
		return "", false
	}
	return rec.Stem, true
}

// RankByLexicalScore ranks product stems by BM25 over text plus extra
// terms; topN <= 0 uses the configured default.
func (ix *Index) RankByLexicalScore(text string, extraTerms []string, topN int) []string {
	snap := ix.snapshot()
	if snap.corpus == nil || snap.corpus.Len() == 0 {
		return nil
	}
	if topN <= 0 {
		topN = ix.cfg.RankTopN
	}
	q := strings.TrimSpace(text)
	extras := make([]string, 0, len(extraTerms))
	for _, t := range extraTerms {
		if t != "" {
			extras = append(extras, t)
		}
	}
	if len(extras) > 0 {
		q += "\n" + strings.Join(extras, " ")
	}
	return snap.corpus.RankIDs(q, topN)
}

// KnownModels returns the sorted model vocabulary.
func (ix *Index) KnownModels() []string {
	known := ix.snapshot().known
	out := make([]string, len(known))
	copy(out, known)
	return out
}

// IsKnownModel reports whether token normalizes to a known model and
// returns its canonical spelling.
func (ix *Index) IsKnownModel(token string) (string, bool) {
	canonical, ok := ix.snapshot().knownNorm[modelkey.Normalize(token)]
	return canonical, ok
}

// Record returns the product with the given stem.
func (ix *Index) Record(stem string) (*domain.ProductRecord, bool) {
	rec, ok := ix.snapshot().byFile[strings.ToLower(filePrefix+stem+fileSuffix)]
	return rec, ok
}

func (ix *Index) Len() int {
	return len(ix.snapshot().records)
}

// IsProductFile reports whether name follows the product_<stem>.md pattern.
func IsProductFile(name string) bool {
	base := path.Base(name)
	return strings.HasPrefix(base, filePrefix) && strings.HasSuffix(strings.ToLower(base), fileSuffix) &&
		len(base) > len(filePrefix)+len(fileSuffix)
}

// StemOf extracts the stem of a product file name or path.
func StemOf(name string) string {
	base := path.Base(strings.ReplaceAll(name, "\\", "/"))
	if !IsProductFile(base) {
		return ""
	}
	return base[len(filePrefix) : len(base)-len(fileSuffix)]
}

func prefixRunes(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
