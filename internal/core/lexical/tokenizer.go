package lexical

import (
	"regexp"
	"strings"
)

const (
	DocumentTokenCap = 220
	QueryTokenCap    = 140
	ProductQueryCap  = 120
)

var (
	latinRe = regexp.MustCompile(`[a-z0-9]+`)
	cjkRe   = regexp.MustCompile(`[\x{4e00}-\x{9fff}]{2,}`)
)

// Tokenize produces latin word tokens followed by CJK runs and their
// overlapping bigrams, truncated to limit tokens.
func Tokenize(text string, limit int) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	lowered := strings.NewReplacer("-", " ", "_", " ").Replace(strings.ToLower(text))

	tokens := make([]string, 0, 32)
	for _, tok := range latinRe.FindAllString(lowered, -1) {
		if len(tok) >= 2 {
			tokens = append(tokens, tok)
		}
	}
	for _, run := range cjkRe.FindAllString(text, -1) {
		tokens = append(tokens, run)
		runes := []rune(run)
		for i := 0; i+1 < len(runes); i++ {
			tokens = append(tokens, string(runes[i:i+2]))
		}
	}
	if limit > 0 && len(tokens) > limit {
		tokens = tokens[:limit]
	}
	return tokens
}
