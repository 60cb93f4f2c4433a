package usecase

import (
	"context"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/google/go-cmp/cmp"

	"github.com/kirillkom/product-advisor/internal/core/domain"
	"github.com/kirillkom/product-advisor/internal/core/expansion"
	"github.com/kirillkom/product-advisor/internal/core/ports"
)

func newTestContextBuilder(t *testing.T, searcher *searcherFake, cards ports.ProductCardStore) *ContextBuilder {
	t.Helper()
	aliases := expansion.NewExpander(expansion.NewDictionary(map[string]any{
		"SRI2000": []any{"高速光譜儀"},
	}))
	cat := newTestCatalog(t, aliases)
	return NewContextBuilder(cat, aliases, cards, NewMultiSearch(searcher, testLogger()), newSystemIndex(), ContextConfig{
		LexicalEnabled:       true,
		SystemLexicalEnabled: true,
	}, testLogger())
}

func TestProductContextPrefersProductDocument(t *testing.T) {
	b := newTestContextBuilder(t, &searcherFake{hits: productHits()}, nil)

	pc := b.Product(context.Background(), "SRI-2000 的規格是什麼", nil, 6)

	if diff := cmp.Diff([]string{"product_SRI-2000.md"}, pc.UsedFiles); diff != "" {
		t.Fatalf("unexpected used files (-want +got):\n%s", diff)
	}
	if len(pc.Blocks) == 0 || pc.Blocks[0].Kind != domain.BlockProductDoc {
		t.Fatalf("expected product document first, got %#v", pc.Blocks)
	}
	if pc.QueryTerms[0] != "SRI-2000" {
		t.Fatalf("expected model key first in query terms, got %v", pc.QueryTerms)
	}
	if pc.SearchQueries[0] != "SRI-2000 的規格是什麼" {
		t.Fatalf("expected raw text as first query, got %v", pc.SearchQueries)
	}
	vec := 0
	for _, blk := range pc.Blocks {
		switch blk.Kind {
		case domain.BlockVectorSnippet:
			vec++
			if blk.Label == "" {
				t.Fatalf("vector block without label")
			}
		case domain.BlockCatalogSummary:
			t.Fatalf("summaries must not be added when a product document was used")
		}
	}
	if vec != 2 {
		t.Fatalf("expected two vector blocks, got %d", vec)
	}
	if len(pc.Cards) != 1 || pc.Cards[0].Title != "高速光譜儀" {
		t.Fatalf("unexpected cards: %#v", pc.Cards)
	}
}

func TestProductContextResolvesCardTitlesToDocuments(t *testing.T) {
	cards := &cardStoreFake{byKeyword: map[string][]domain.ProductCard{
		"LX-10": {{Title: "LX-10 照度計", Model: "LX-10", Description: "手持照度計"}},
	}}
	b := newTestContextBuilder(t, &searcherFake{}, cards)

	pc := b.Product(context.Background(), "LX-10 的規格", nil, 6)

	if diff := cmp.Diff([]string{"LX-10"}, cards.keywords); diff != "" {
		t.Fatalf("unexpected card lookups (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"product_LX-10.md"}, pc.UsedFiles); diff != "" {
		t.Fatalf("unexpected used files (-want +got):\n%s", diff)
	}
	if len(pc.Cards) != 1 || pc.Cards[0].Category != "產品資料" {
		t.Fatalf("expected document-derived card, got %#v", pc.Cards)
	}
}

func TestProductContextSummarizesDatabaseCardsWithoutDocument(t *testing.T) {
	cards := &cardStoreFake{byKeyword: map[string][]domain.ProductCard{
		"ZX-500": {{Title: "ZX-500 探頭", Model: "ZX-500", Description: "探頭說明", Specifications: "(資料中未提供)"}},
	}}
	b := newTestContextBuilder(t, &searcherFake{}, cards)

	pc := b.Product(context.Background(), "ZX-500 的規格", nil, 6)

	if len(pc.UsedFiles) != 0 {
		t.Fatalf("expected no product document, got %v", pc.UsedFiles)
	}
	want := []domain.ContextBlock{{Kind: domain.BlockCatalogSummary, Label: "ZX-500 探頭", Body: "探頭說明"}}
	if diff := cmp.Diff(want, pc.Blocks); diff != "" {
		t.Fatalf("unexpected blocks (-want +got):\n%s", diff)
	}
}

func TestProductContextFallsBackToLexicalRanking(t *testing.T) {
	b := newTestContextBuilder(t, &searcherFake{}, nil)

	pc := b.Product(context.Background(), "照度 lux", nil, 6)

	if len(pc.LexicalTop) == 0 || pc.LexicalTop[0] != "LX-10" {
		t.Fatalf("expected LX-10 to rank first, got %v", pc.LexicalTop)
	}
	if len(pc.UsedFiles) == 0 || pc.UsedFiles[0] != "product_LX-10.md" {
		t.Fatalf("expected lexical fallback document, got %v", pc.UsedFiles)
	}
	if len(pc.Cards) == 0 {
		t.Fatalf("expected cards from fallback documents")
	}
}

func TestProductContextCapsVectorBlocksWhenDocumentFound(t *testing.T) {
	hits := []domain.VectorHit{
		{Text: "a", Metadata: map[string]string{"source": "a.md"}, Distance: distance(0.1)},
		{Text: "b", Metadata: map[string]string{"source": "b.md"}, Distance: distance(0.2)},
		{Text: "c", Metadata: map[string]string{"source": "c.md"}, Distance: distance(0.3)},
		{Text: "d", Metadata: map[string]string{"source": "d.md"}, Distance: distance(0.4)},
	}
	b := newTestContextBuilder(t, &searcherFake{hits: hits}, nil)

	pc := b.Product(context.Background(), "SRI-2000 的規格是什麼", nil, 4)

	if len(pc.VectorHits) != 2 {
		t.Fatalf("expected topK/2 vector hits with a document, got %d", len(pc.VectorHits))
	}
	if pc.VectorHits[0].Text != "a" {
		t.Fatalf("expected closest hit first, got %q", pc.VectorHits[0].Text)
	}
}

func TestGeneralContextTopsUpFromSystemDocs(t *testing.T) {
	searcher := &searcherFake{hits: []domain.VectorHit{
		{Text: "保固期間為一年", Metadata: map[string]string{"file": "warranty.txt"}, Distance: distance(0.3)},
	}}
	b := newTestContextBuilder(t, searcher, nil)

	blocks := b.General(context.Background(), "保固 維修", 6)

	if len(blocks) < 2 {
		t.Fatalf("expected system fallback blocks, got %#v", blocks)
	}
	if blocks[0].Kind != domain.BlockDataSnippet || blocks[0].Label != "warranty.txt" {
		t.Fatalf("unexpected first block: %#v", blocks[0])
	}
	found := false
	for _, blk := range blocks[1:] {
		if blk.Kind == domain.BlockSystemDoc && blk.Label == "faq.md" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected faq.md system block, got %#v", blocks)
	}
}

func TestSystemFallbackDisabled(t *testing.T) {
	b := newTestContextBuilder(t, &searcherFake{}, nil)
	b.cfg.SystemLexicalEnabled = false
	if got := b.SystemFallback("保固"); got != nil {
		t.Fatalf("expected no blocks when disabled, got %#v", got)
	}
}

func TestProductHighlights(t *testing.T) {
	short := "# 產品\n\n\n\n說明"
	if got := ProductHighlights(short, 100); got != "# 產品\n\n說明" {
		t.Fatalf("unexpected short highlight %q", got)
	}

	long := "# 總覽\n" + strings.Repeat("介紹文字", 400) + "\n## 適用範圍\nUVC LED 產線檢測\n"
	got := ProductHighlights(long, 1200)
	if utf8.RuneCountInString(got) > 1200 {
		t.Fatalf("highlight exceeds budget: %d runes", utf8.RuneCountInString(got))
	}
	if !strings.Contains(got, "## 適用範圍\nUVC LED 產線檢測") {
		t.Fatalf("expected keyword section to be kept")
	}
}

func TestCleanPlaceholder(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"N/A", ""},
		{"資料中未提供型號", ""},
		{"  實際規格  ", "實際規格"},
		{"(資料中未提供)", ""},
		{"", ""},
	}
	for _, tc := range cases {
		if got := cleanPlaceholder(tc.in); got != tc.want {
			t.Fatalf("cleanPlaceholder(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
