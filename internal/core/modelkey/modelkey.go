// Package modelkey recognizes product model codes in free text.
package modelkey

import (
	"regexp"
	"strings"
)

var tokenRe = regexp.MustCompile(`\b([A-Za-z]+-?\d{2,}[A-Za-z0-9-]*)\b`)

// Normalize lowercases s and drops every character outside [a-z0-9].
func Normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') {
			b.WriteByte(c)
		}
	}
	return b.String()
}

// Key is the dedupe key for allowlist entries: Normalize(s), or the
// lowercased text when s has no latin letters or digits.
func Key(s string) string {
	if k := Normalize(s); k != "" {
		return k
	}
	return strings.ToLower(strings.TrimSpace(s))
}

// FindAll returns model-like tokens in order of appearance; n < 0 means all.
func FindAll(text string, n int) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	matches := tokenRe.FindAllStringSubmatch(text, n)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, m[1])
	}
	return out
}

// First returns the first model-like token, or "".
func First(text string) string {
	m := tokenRe.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return m[1]
}

func Has(text string) bool {
	return tokenRe.MatchString(text)
}

// Matcher is a model-token finder with an ignore list of tokens that look
// like model codes but are not (standards, ratings).
type Matcher struct {
	ignore map[string]struct{}
}

func NewMatcher(ignore []string) *Matcher {
	m := &Matcher{ignore: make(map[string]struct{}, len(ignore))}
	for _, item := range ignore {
		if key := Normalize(item); key != "" {
			m.ignore[key] = struct{}{}
		}
	}
	return m
}

// FindAll behaves like the package function but skips ignored tokens.
func (m *Matcher) FindAll(text string) []string {
	all := FindAll(text, -1)
	if m == nil || len(m.ignore) == 0 {
		return all
	}
	out := all[:0]
	for _, tok := range all {
		if _, skip := m.ignore[Normalize(tok)]; !skip {
			out = append(out, tok)
		}
	}
	return out
}
