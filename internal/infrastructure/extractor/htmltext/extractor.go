package htmltext

import (
	"context"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
)

var skipped = map[string]bool{
	"script":   true,
	"style":    true,
	"noscript": true,
	"iframe":   true,
	"svg":      true,
	"nav":      true,
	"footer":   true,
	"head":     true,
}

var blocks = map[string]bool{
	"p":     true,
	"div":   true,
	"br":    true,
	"li":    true,
	"tr":    true,
	"h1":    true,
	"h2":    true,
	"h3":    true,
	"h4":    true,
	"table": true,
	"ul":    true,
	"ol":    true,
}

// Extractor keeps the readable text of an HTML page, one block per line.
type Extractor struct{}

func NewExtractor() *Extractor {
	return &Extractor{}
}

func (e *Extractor) Extract(_ context.Context, name string, r io.Reader) (string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return "", fmt.Errorf("parse html %s: %w", name, err)
	}
	var b strings.Builder
	walk(doc, &b, 0)
	return collapse(b.String()), nil
}

func walk(n *html.Node, b *strings.Builder, depth int) {
	if depth > 200 {
		return
	}
	switch n.Type {
	case html.TextNode:
		if text := strings.TrimSpace(n.Data); text != "" {
			b.WriteString(text)
			b.WriteString(" ")
		}
		return
	case html.ElementNode:
		if skipped[n.Data] {
			return
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, b, depth+1)
	}
	if n.Type == html.ElementNode && blocks[n.Data] {
		b.WriteString("\n")
	}
}

func collapse(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}
