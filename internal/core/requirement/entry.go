package requirement

import (
	"regexp"
	"strings"

	"github.com/kirillkom/product-advisor/internal/core/modelkey"
)

var (
	versusRe        = regexp.MustCompile(`(?i)\b(vs\.?|versus)\b`)
	comparisonWords = []string{"比較", "差異", "哪個好", "哪個較好", "差別"}
	modelEntryWords = []string{"選型", "推薦", "幫我選", "適合哪個", "挑哪台", "要哪一台"}
	entryTriggers   = []string{
		"選型", "推薦", "怎麼選", "我要買", "適合哪個", "挑哪台", "規劃", "需求",
		"要選", "要買", "建議型號", "要哪一台", "幫我選", "給我型號", "配一台",
	}
)

func containsAny(text string, words []string) bool {
	t := strings.ToLower(text)
	for _, w := range words {
		if w != "" && strings.Contains(t, strings.ToLower(w)) {
			return true
		}
	}
	return false
}

func distinctModels(text string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, m := range modelkey.FindAll(text, -1) {
		k := strings.ToLower(m)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, m)
	}
	return out
}

// LooksLikeComparison reports model-vs-model questions, which are answered
// directly instead of through the interview.
func LooksLikeComparison(text string) bool {
	t := strings.TrimSpace(text)
	if t == "" {
		return false
	}
	models := distinctModels(t)
	switch {
	case len(models) >= 2:
		return true
	case len(models) >= 1 && versusRe.MatchString(t):
		return true
	case len(models) >= 1 && containsAny(t, comparisonWords):
		return true
	}
	return false
}

// ShouldEnter decides whether a message starts the selection interview.
func ShouldEnter(text string) bool {
	t := strings.TrimSpace(text)
	if t == "" || LooksLikeComparison(t) {
		return false
	}
	if len(distinctModels(t)) > 0 {
		return containsAny(t, modelEntryWords)
	}
	return containsAny(t, entryTriggers)
}
