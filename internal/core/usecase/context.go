package usecase

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/kirillkom/product-advisor/internal/core/budget"
	"github.com/kirillkom/product-advisor/internal/core/catalog"
	"github.com/kirillkom/product-advisor/internal/core/domain"
	"github.com/kirillkom/product-advisor/internal/core/expansion"
	"github.com/kirillkom/product-advisor/internal/core/lexical"
	"github.com/kirillkom/product-advisor/internal/core/modelkey"
	"github.com/kirillkom/product-advisor/internal/core/ports"
)

const (
	highlightChars     = 1200
	highlightHeadChars = 600
	summaryChars       = 700
	systemDocChars     = 1200
	summaryCards       = 3
	lexicalFallbackTop = 3
	minTopKEach        = 4

	noEvidenceNotice = "（系統找不到可用的公司資料片段。請確認已匯入向量庫或產品資料。）"
)

var (
	highlightKeywords = []string{"產品定位", "量測能力", "量測性能", "適用", "不適用", "選型", "提醒", "應用", "光源", "波段", "規格", "系統"}
	highlightRes      = compileHighlightRes(highlightKeywords)
	blankLinesRe      = regexp.MustCompile(`\n{3,}`)
	productURLRe      = regexp.MustCompile(`(?i)(產品頁面連結|產品連結|Product\s*Page)\s*[:：]?\s*\n\s*(https?://\S+)`)
	placeholders      = map[string]struct{}{
		"(資料中未提供)": {}, "資料中未提供": {}, "未提供": {}, "N/A": {}, "NA": {}, "null": {}, "None": {},
	}
)

func compileHighlightRes(keywords []string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(keywords))
	for _, kw := range keywords {
		out = append(out, regexp.MustCompile(`(?i)(#+\s*.*`+regexp.QuoteMeta(kw)+`.*\n[\s\S]{0,650})`))
	}
	return out
}

// ContextConfig tunes evidence assembly.
type ContextConfig struct {
	TopKCard             int
	ChunkMaxChars        int
	MaxBlocks            int
	MaxBlocksWhenDoc     int
	PerSourceMax         int
	DedupeText           bool
	LexicalEnabled       bool
	LexicalTopN          int
	SystemLexicalEnabled bool
	SystemTopN           int
}

// ProductContext is the evidence gathered for a product question.
type ProductContext struct {
	Blocks        []domain.ContextBlock
	Cards         []domain.ProductCard
	QueryTerms    []string
	SearchQueries []string
	UsedFiles     []string
	LexicalTop    []string
	VectorHits    []domain.VectorHit
}

// ContextBuilder gathers evidence blocks for the answer prompt.
type ContextBuilder struct {
	catalog *catalog.Index
	aliases *expansion.Expander
	cards   ports.ProductCardStore
	search  *MultiSearch
	system  *lexical.Index
	cfg     ContextConfig
	logger  *slog.Logger
}

func NewContextBuilder(
	cat *catalog.Index,
	aliases *expansion.Expander,
	cards ports.ProductCardStore,
	search *MultiSearch,
	system *lexical.Index,
	cfg ContextConfig,
	logger *slog.Logger,
) *ContextBuilder {
	if cfg.TopKCard <= 0 {
		cfg.TopKCard = 8
	}
	if cfg.ChunkMaxChars <= 0 {
		cfg.ChunkMaxChars = 900
	}
	if cfg.MaxBlocks <= 0 {
		cfg.MaxBlocks = 6
	}
	if cfg.MaxBlocksWhenDoc <= 0 {
		cfg.MaxBlocksWhenDoc = 3
	}
	if cfg.PerSourceMax <= 0 {
		cfg.PerSourceMax = 2
	}
	if cfg.LexicalTopN <= 0 {
		cfg.LexicalTopN = 8
	}
	if cfg.SystemTopN <= 0 {
		cfg.SystemTopN = 4
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ContextBuilder{
		catalog: cat,
		aliases: aliases,
		cards:   cards,
		search:  search,
		system:  system,
		cfg:     cfg,
		logger:  logger,
	}
}

// Product gathers product documents, vector snippets and card summaries for
// text. extraTerms come from the requirement interview.
func (b *ContextBuilder) Product(ctx context.Context, text string, extraTerms []string, topK int) ProductContext {
	var pc ProductContext
	modelKey := modelkey.First(text)
	aliasTerms := b.aliases.ExpandByAlias(text)

	pc.QueryTerms = appendUnique(pc.QueryTerms, modelKey)
	for _, t := range aliasTerms {
		pc.QueryTerms = appendUnique(pc.QueryTerms, t)
	}
	for _, t := range extraTerms {
		pc.QueryTerms = appendUnique(pc.QueryTerms, t)
	}
	pc.SearchQueries = expansion.BuildSearchQueries(text, aliasTerms, extraTerms, modelKey)

	candidates := b.cardCandidates(ctx, modelKey, aliasTerms)

	var (
		docBlocks []domain.ContextBlock
		docCards  []domain.ProductCard
		usedStems = make(map[string]struct{})
	)
	addDoc := func(rec *domain.ProductRecord, fallbackTitle string) {
		if rec == nil {
			return
		}
		if _, dup := usedStems[rec.Stem]; dup {
			return
		}
		usedStems[rec.Stem] = struct{}{}
		pc.UsedFiles = append(pc.UsedFiles, rec.Filename())
		docBlocks = append(docBlocks, domain.ContextBlock{
			Kind:  domain.BlockProductDoc,
			Label: rec.Filename(),
			Body:  ProductHighlights(rec.RawText, highlightChars),
		})
		docCards = append(docCards, cardFromRecord(rec, fallbackTitle))
	}

	for _, c := range candidates {
		title := strings.TrimSpace(c.Title)
		if title == "" {
			continue
		}
		if rec, ok := b.catalog.Resolve(title); ok {
			addDoc(rec, title)
		}
	}
	if len(docBlocks) == 0 {
		if rec, ok := b.catalog.ResolveFromUserText(text); ok {
			addDoc(rec, "")
		}
	}
	hasDoc := len(docBlocks) > 0

	vecLimit := min(b.cfg.MaxBlocks, topK)
	if hasDoc {
		vecLimit = min(b.cfg.MaxBlocksWhenDoc, max(1, topK/2), b.cfg.MaxBlocks)
	}
	hits := b.search.Search(ctx, pc.SearchQueries, max(minTopKEach, topK), max(topK, vecLimit*3))
	hits = DedupeAndCap(hits, b.cfg.PerSourceMax, b.cfg.DedupeText)
	if len(hits) > max(1, vecLimit) {
		hits = hits[:max(1, vecLimit)]
	}
	pc.VectorHits = hits

	var (
		vecBlocks []domain.ContextBlock
		vecTitles []string
	)
	for _, h := range hits {
		if txt := budget.TruncateText(h.Text, b.cfg.ChunkMaxChars); txt != "" {
			vecBlocks = append(vecBlocks, domain.ContextBlock{
				Kind:  domain.BlockVectorSnippet,
				Label: hitLabel(h, true),
				Body:  txt,
			})
		}
		if t := h.Meta("title"); t != "" {
			vecTitles = append(vecTitles, t)
		}
	}

	var dbCards []domain.ProductCard
	switch {
	case len(docCards) > 0:
		pc.Cards = headCards(docCards, b.cfg.TopKCard)
	case len(candidates) > 0:
		dbCards = headCards(candidates, b.cfg.TopKCard)
		pc.Cards = dbCards
	case len(vecTitles) > 0 && b.cards != nil:
		got, err := b.cards.GetByTitles(ctx, headStrings(vecTitles, b.cfg.TopKCard), b.cfg.TopKCard)
		if err != nil {
			b.logger.Warn("card_lookup_failed", "error", err)
		}
		dbCards = got
		pc.Cards = got
	}

	if b.cfg.LexicalEnabled {
		pc.LexicalTop = b.catalog.RankByLexicalScore(text, extraTerms, b.cfg.LexicalTopN)
	}
	if len(pc.Cards) == 0 {
		for _, stem := range headStrings(pc.LexicalTop, lexicalFallbackTop) {
			if rec, ok := b.catalog.Resolve(stem); ok {
				addDoc(rec, stem)
			}
		}
		if len(docCards) > 0 {
			pc.Cards = headCards(docCards, b.cfg.TopKCard)
		}
	}

	pc.Blocks = append(pc.Blocks, docBlocks...)
	pc.Blocks = append(pc.Blocks, vecBlocks...)
	if len(docBlocks) == 0 {
		pc.Blocks = append(pc.Blocks, summaryBlocks(dbCards)...)
	}
	return pc
}

// General gathers plain vector snippets and tops them up from the system
// corpus when fewer than two were found.
func (b *ContextBuilder) General(ctx context.Context, text string, topK int) []domain.ContextBlock {
	hits := b.search.Search(ctx, []string{text}, topK, 0)
	hits = DedupeAndCap(hits, b.cfg.PerSourceMax, b.cfg.DedupeText)
	if limit := min(b.cfg.MaxBlocks, topK); len(hits) > limit {
		hits = hits[:max(0, limit)]
	}
	var blocks []domain.ContextBlock
	for _, h := range hits {
		if txt := budget.TruncateText(h.Text, b.cfg.ChunkMaxChars); txt != "" {
			blocks = append(blocks, domain.ContextBlock{
				Kind:  domain.BlockDataSnippet,
				Label: hitLabel(h, false),
				Body:  txt,
			})
		}
	}
	if len(blocks) < 2 {
		blocks = append(blocks, b.SystemFallback(text)...)
	}
	return blocks
}

// SystemFallback searches the system-documents corpus.
func (b *ContextBuilder) SystemFallback(text string) []domain.ContextBlock {
	if !b.cfg.SystemLexicalEnabled || b.system == nil {
		return nil
	}
	var blocks []domain.ContextBlock
	for _, h := range b.system.Search(text, b.cfg.SystemTopN) {
		src := h.Source
		if src == "" {
			src = h.DocID
		}
		if src == "" {
			src = "system_docs"
		}
		if txt := budget.TruncateText(h.Text, systemDocChars); txt != "" {
			blocks = append(blocks, domain.ContextBlock{Kind: domain.BlockSystemDoc, Label: src, Body: txt})
		}
	}
	return blocks
}

func (b *ContextBuilder) cardCandidates(ctx context.Context, modelKey string, aliasTerms []string) []domain.ProductCard {
	if b.cards == nil {
		return nil
	}
	if modelKey != "" {
		got, err := b.cards.SearchByKeyword(ctx, modelKey, b.cfg.TopKCard)
		if err != nil {
			b.logger.Warn("card_lookup_failed", "keyword", modelKey, "error", err)
		}
		if len(got) > 0 {
			return got
		}
	}
	for _, term := range aliasTerms {
		got, err := b.cards.SearchByKeyword(ctx, term, b.cfg.TopKCard)
		if err != nil {
			b.logger.Warn("card_lookup_failed", "keyword", term, "error", err)
			continue
		}
		if len(got) > 0 {
			return got
		}
	}
	return nil
}

// ProductHighlights keeps short documents whole; longer ones are reduced to
// their opening and the sections named by the highlight keywords.
func ProductHighlights(md string, maxChars int) string {
	text := blankLinesRe.ReplaceAllString(strings.TrimSpace(md), "\n\n")
	if text == "" {
		return ""
	}
	if utf8.RuneCountInString(text) <= maxChars {
		return text
	}
	keep := []string{string([]rune(text)[:highlightHeadChars])}
	for _, re := range highlightRes {
		if m := re.FindStringSubmatch(text); m != nil {
			keep = append(keep, m[1])
		}
	}
	merged := strings.TrimSpace(blankLinesRe.ReplaceAllString(strings.Join(keep, "\n\n"), "\n\n"))
	if r := []rune(merged); len(r) > maxChars {
		merged = string(r[:maxChars])
	}
	return merged
}

func cardFromRecord(rec *domain.ProductRecord, fallbackTitle string) domain.ProductCard {
	title := strings.TrimSpace(rec.DisplayName)
	if title == "" {
		title = strings.TrimSpace(fallbackTitle)
	}
	if title == "" {
		title = rec.Stem
	}
	card := domain.ProductCard{
		Title:    title,
		Model:    rec.ModelCode,
		Category: "產品資料",
	}
	if rec.ModelCode != "" {
		card.Description = "型號：" + rec.ModelCode
	}
	if m := productURLRe.FindStringSubmatch(rec.RawText); m != nil {
		card.URL = strings.TrimSpace(m[2])
	}
	return card
}

func summaryBlocks(cards []domain.ProductCard) []domain.ContextBlock {
	var blocks []domain.ContextBlock
	for _, c := range headCards(cards, summaryCards) {
		var parts []string
		for _, p := range []string{cleanPlaceholder(c.Description), cleanPlaceholder(c.Specifications)} {
			if strings.TrimSpace(p) != "" {
				parts = append(parts, p)
			}
		}
		chunk := strings.TrimSpace(strings.Join(parts, "\n"))
		if chunk == "" {
			continue
		}
		blocks = append(blocks, domain.ContextBlock{
			Kind:  domain.BlockCatalogSummary,
			Label: c.Title,
			Body:  budget.TruncateText(chunk, summaryChars),
		})
	}
	return blocks
}

// cleanPlaceholder blanks "not provided" filler values.
func cleanPlaceholder(s string) string {
	t := strings.TrimSpace(s)
	if t == "" {
		return ""
	}
	if _, ok := placeholders[t]; ok {
		return ""
	}
	if utf8.RuneCountInString(t) <= 24 && (strings.Contains(t, "未提供") || strings.Contains(t, "資料中")) {
		return ""
	}
	return t
}

func hitLabel(h domain.VectorHit, withID bool) string {
	if src := h.Meta("source"); src != "" {
		return src
	}
	if f := h.Meta("file"); f != "" {
		return f
	}
	if withID {
		if id := h.Meta("id"); id != "" {
			return id
		}
		return strings.TrimSpace(h.ID)
	}
	return ""
}

func appendUnique(items []string, x string) []string {
	if x == "" {
		return items
	}
	for _, it := range items {
		if it == x {
			return items
		}
	}
	return append(items, x)
}

func headCards(cards []domain.ProductCard, n int) []domain.ProductCard {
	if len(cards) > n {
		return cards[:n]
	}
	return cards
}

func headStrings(items []string, n int) []string {
	if len(items) > n {
		return items[:n]
	}
	return items
}
