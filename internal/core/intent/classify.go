// Package intent routes a user message to an answer strategy.
package intent

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/kirillkom/product-advisor/internal/core/domain"
	"github.com/kirillkom/product-advisor/internal/core/modelkey"
)

var (
	abbrevRe = regexp.MustCompile(`([A-Z]{2,6})`)

	genericAbbrevs = map[string]struct{}{
		"DNA": {}, "LED": {}, "UV": {}, "UVA": {}, "UVB": {}, "VIS": {}, "NIR": {}, "IR": {},
	}
	measureWords = []string{"量測", "測量", "測"}
	companyWords = []string{"地址", "電話", "聯絡", "公司", "官網", "email", "信箱", "營業", "幾點"}
	supportWords = []string{"怎麼安裝", "怎麼設定", "錯誤", "無法", "故障", "支援", "校正", "校準"}
	salesWords   = []string{"有賣嗎", "有賣", "有沒有賣", "販售", "賣不賣", "有沒有", "可以買", "價格", "報價", "多少錢"}
	productWords = []string{
		"規格", "型號", "差異", "推薦", "列出", "是什麼", "介紹", "適用", "不適用",
		"量測系統", "量測", "光譜", "輝度", "照度", "積分球", "ppfd", "ppf", "par", "uvc",
	}
	llmLabels = []domain.Intent{domain.IntentProductSpec, domain.IntentCompanyInfo, domain.IntentTechSupport, domain.IntentOther}
)

// Catalog resolves phrases to products.
type Catalog interface {
	ResolveFromUserText(text string) (*domain.ProductRecord, bool)
	Resolve(phrase string) (*domain.ProductRecord, bool)
}

// AliasExpander supplies alias terms for a phrase.
type AliasExpander interface {
	ExpandByAlias(phrase string) []string
}

// LabelModel answers the fallback classification prompt.
type LabelModel interface {
	Generate(ctx context.Context, req domain.GenerationRequest) (string, error)
}

type Classifier struct {
	catalog Catalog
	aliases AliasExpander
	model   LabelModel
	name    string
	logger  *slog.Logger
}

// NewClassifier builds a classifier. model may be nil, in which case
// unmatched messages are OTHER.
func NewClassifier(catalog Catalog, aliases AliasExpander, model LabelModel, modelName string, logger *slog.Logger) *Classifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Classifier{catalog: catalog, aliases: aliases, model: model, name: modelName, logger: logger}
}

// Heuristic applies the keyword rules. ok is false when none matched.
func (c *Classifier) Heuristic(text string) (domain.Intent, bool) {
	t := strings.TrimSpace(text)
	tl := strings.ToLower(t)

	if modelkey.Has(t) {
		return domain.IntentProductSpec, true
	}
	if hasGenericAbbrev(t) && containsAny(t, measureWords) {
		return domain.IntentOther, true
	}
	if containsAny(tl, companyWords) {
		return domain.IntentCompanyInfo, true
	}
	if containsAny(tl, supportWords) {
		return domain.IntentTechSupport, true
	}
	if containsAny(t, salesWords) {
		if c.catalog != nil {
			if _, ok := c.catalog.ResolveFromUserText(t); ok {
				return domain.IntentProductSpec, true
			}
		}
		return domain.IntentOther, true
	}
	if c.aliasHit(t) || containsAny(tl, productWords) {
		return domain.IntentProductSpec, true
	}
	return "", false
}

// Classify runs the heuristics and falls back to the label model.
func (c *Classifier) Classify(ctx context.Context, text string) domain.Intent {
	if got, ok := c.Heuristic(text); ok {
		return got
	}
	if c.model == nil {
		return domain.IntentOther
	}
	prompt := "你是意圖分類器，只能輸出下列其中一個：\n" +
		"PRODUCT_SPEC, COMPANY_INFO, TECH_SUPPORT, OTHER\n\n" +
		"使用者問題：" + strings.TrimSpace(text) + "\n" +
		"只輸出標籤："
	answer, err := c.model.Generate(ctx, domain.GenerationRequest{
		Model:       c.name,
		Prompt:      prompt,
		Temperature: 0,
		NumPredict:  16,
	})
	if err != nil {
		c.logger.Warn("intent_fallback_failed", "error", err)
		return domain.IntentOther
	}
	answer = strings.ToUpper(answer)
	for _, label := range llmLabels {
		if strings.Contains(answer, string(label)) {
			return label
		}
	}
	return domain.IntentOther
}

func (c *Classifier) aliasHit(text string) bool {
	if c.aliases == nil || c.catalog == nil {
		return false
	}
	terms := c.aliases.ExpandByAlias(text)
	for _, term := range terms {
		if _, ok := c.catalog.Resolve(term); ok {
			return true
		}
	}
	return false
}

// hasGenericAbbrev finds 2-6 letter uppercase words that name a light band
// or technology rather than a product.
func hasGenericAbbrev(text string) bool {
	for _, loc := range abbrevRe.FindAllStringIndex(text, -1) {
		if loc[0] > 0 {
			r, _ := utf8.DecodeLastRuneInString(text[:loc[0]])
			if isWordRune(r) {
				continue
			}
		}
		if loc[1] < len(text) {
			r, _ := utf8.DecodeRuneInString(text[loc[1]:])
			if isWordRune(r) {
				continue
			}
		}
		if _, ok := genericAbbrevs[text[loc[0]:loc[1]]]; ok {
			return true
		}
	}
	return false
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
