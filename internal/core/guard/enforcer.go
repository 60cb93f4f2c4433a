package guard

import (
	"strings"

	"github.com/kirillkom/product-advisor/internal/core/modelkey"
)

// ClarificationReply is returned instead of an answer when no product
// evidence supports a recommendation.
const ClarificationReply = "我可以幫你選型，但目前資料庫/產品文件沒有足夠的候選型號可供推薦，因此我不會亂編型號。\n\n" +
	"請你補 1~2 個關鍵資訊後我再幫你配對：\n" +
	"1) 你要量測的項目（光譜/輝度/照度/光強度/反射率/穿透率/PPFD…）\n" +
	"2) 主要波段或對象（UVC LED / UVA / VIS / 玻璃 / 鏡面…）\n"

// Verdict is the enforcement outcome for one answer.
type Verdict struct {
	Text      string
	Blocked   bool
	BadModels []string
}

// Enforcer replaces answers that mention models outside the allowlist.
type Enforcer struct {
	strict  bool
	matcher *modelkey.Matcher
}

func NewEnforcer(strict bool, ignore []string) *Enforcer {
	return &Enforcer{strict: strict, matcher: modelkey.NewMatcher(ignore)}
}

func (e *Enforcer) Strict() bool {
	return e.strict
}

// Mentions returns distinct (case-insensitive) model-like tokens in text.
func (e *Enforcer) Mentions(text string) []string {
	var d dedupe
	for _, tok := range e.matcher.FindAll(text) {
		d.add(tok)
	}
	return d.items
}

// Enforce checks every model mention in answer against allowlist after
// normalization. An empty allowlist always yields the clarification reply.
func (e *Enforcer) Enforce(answer string, allowlist []string) Verdict {
	if !e.strict {
		return Verdict{Text: answer}
	}
	allowed := make(map[string]struct{}, len(allowlist))
	for _, a := range allowlist {
		if k := modelkey.Normalize(a); k != "" {
			allowed[k] = struct{}{}
		}
	}
	if len(allowed) == 0 {
		return Verdict{Text: ClarificationReply, Blocked: true}
	}

	var bad []string
	for _, m := range e.Mentions(answer) {
		if _, ok := allowed[modelkey.Normalize(m)]; !ok {
			bad = append(bad, m)
		}
	}
	if len(bad) == 0 {
		return Verdict{Text: answer}
	}
	return Verdict{Text: blockedReply(allowlist), Blocked: true, BadModels: bad}
}

func blockedReply(allowlist []string) string {
	return "⚠️ 為避免選型亂編，我只能從資料庫/產品文件中「確實存在」的型號做推薦。\n" +
		"但我剛剛那段回覆中出現了資料庫不存在的型號，因此已被系統擋下。\n\n" +
		"目前可用的候選型號清單如下：\n" +
		strings.Join(allowlist, "、") + "\n\n" +
		"請你回覆：你希望我從以上清單中，偏向「研發」還是「產線/品管」用途？"
}
