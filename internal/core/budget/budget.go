// Package budget trims evidence blocks until the rendered prompt fits a
// character budget.
package budget

import (
	"strings"
	"unicode/utf8"

	"github.com/kirillkom/product-advisor/internal/core/domain"
)

const (
	docBodyMaxChars = 700
	minKeptBlocks   = 2
)

// Renderer builds the full prompt for a set of blocks.
type Renderer func(blocks []domain.ContextBlock) string

// Trim drops vector snippets from the end, then catalog summaries, then
// shortens product document bodies, then drops trailing blocks while more
// than two remain. The returned prompt is the rendering of the returned
// blocks.
func Trim(blocks []domain.ContextBlock, render Renderer, maxChars int) ([]domain.ContextBlock, string) {
	blocks = append([]domain.ContextBlock(nil), blocks...)
	prompt := render(blocks)
	fits := func() bool { return maxChars <= 0 || utf8.RuneCountInString(prompt) <= maxChars }
	if fits() {
		return blocks, prompt
	}

	tiers := []func(domain.ContextBlock) bool{
		domain.ContextBlock.IsVector,
		func(b domain.ContextBlock) bool { return b.Kind == domain.BlockCatalogSummary },
	}
	for _, match := range tiers {
		for !fits() {
			idx := lastIndex(blocks, match)
			if idx < 0 {
				break
			}
			blocks = append(blocks[:idx], blocks[idx+1:]...)
			prompt = render(blocks)
		}
		if fits() {
			return blocks, prompt
		}
	}

	for i, b := range blocks {
		if b.Kind == domain.BlockProductDoc && strings.TrimSpace(b.Body) != "" {
			blocks[i].Body = TruncateText(b.Body, docBodyMaxChars)
		}
	}
	prompt = render(blocks)

	for !fits() && len(blocks) > minKeptBlocks {
		blocks = blocks[:len(blocks)-1]
		prompt = render(blocks)
	}
	return blocks, prompt
}

func lastIndex(blocks []domain.ContextBlock, match func(domain.ContextBlock) bool) int {
	for i := len(blocks) - 1; i >= 0; i-- {
		if match(blocks[i]) {
			return i
		}
	}
	return -1
}

// TruncateText trims s and, when longer than maxChars characters, cuts it
// to maxChars-1 characters followed by an ellipsis.
func TruncateText(s string, maxChars int) string {
	s = strings.TrimSpace(s)
	if s == "" || maxChars <= 0 || utf8.RuneCountInString(s) <= maxChars {
		return s
	}
	runes := []rune(s)
	return strings.TrimRight(string(runes[:maxChars-1]), " \t\r\n") + "…"
}
