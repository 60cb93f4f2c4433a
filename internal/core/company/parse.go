// Package company parses the company profile document and renders it as
// answer evidence.
package company

import (
	"regexp"
	"strings"

	"github.com/kirillkom/product-advisor/internal/core/budget"
	"github.com/kirillkom/product-advisor/internal/core/domain"
)

const (
	// SourceName labels the profile in evidence blocks and the system corpus.
	SourceName = "company_info.md"

	excerptChars = 900
)

var (
	nameRe    = regexp.MustCompile(`(?i)(公司名稱|名稱|Company\s*Name)\s*[:：]\s*(.+)`)
	addressRe = regexp.MustCompile(`(?i)(地址|公司地址|Address)\s*[:：]\s*(.+)`)
	phoneRe   = regexp.MustCompile(`(?i)(電話|電話號碼|聯絡電話|Tel|Phone)\s*[:：]\s*(.+)`)
	emailRe   = regexp.MustCompile(`(?i)(Email|E-mail|信箱|電子郵件)\s*[:：]\s*(.+)`)
	websiteRe = regexp.MustCompile(`(?i)(官網|網站|Website|URL)\s*[:：]\s*(.+)`)
	hoursRe   = regexp.MustCompile(`(?i)(營業時間|Opening\s*Hours)\s*[:：]?\s*\n([\s\S]{0,800})`)

	hoursEndRe   = regexp.MustCompile(`(?m)\n\s*\n|^#{1,6}\s+`)
	phoneCharsRe = regexp.MustCompile(`[^\d\-+()\s]`)
	phoneShapeRe = regexp.MustCompile(`(?:^|[^\d])(0\d)\s*(\d{3,4})\s*(\d{4})(?:[^\d]|$)`)
	spacesRe     = regexp.MustCompile(`\s+`)
	blankRunRe   = regexp.MustCompile(`[ \t]+`)
	manyNLRe     = regexp.MustCompile(`\n{3,}`)
	dashRunRe    = regexp.MustCompile(`-{2,}`)
)

// Parse extracts the labelled fields of a company profile. Unlabelled
// fields stay empty; Raw keeps the trimmed source.
func Parse(text string) domain.CompanyInfo {
	raw := strings.TrimSpace(text)
	info := domain.CompanyInfo{Raw: raw}
	if m := nameRe.FindStringSubmatch(raw); m != nil {
		info.Name = strings.TrimSpace(m[2])
	}
	if m := addressRe.FindStringSubmatch(raw); m != nil {
		info.Address = strings.TrimSpace(spacesRe.ReplaceAllString(m[2], " "))
	}
	if m := phoneRe.FindStringSubmatch(raw); m != nil {
		info.Phone = NormalizePhone(m[2])
	}
	if m := emailRe.FindStringSubmatch(raw); m != nil {
		info.Email = strings.TrimSpace(m[2])
	}
	if m := websiteRe.FindStringSubmatch(raw); m != nil {
		info.Website = strings.TrimSpace(m[2])
	}
	if m := hoursRe.FindStringSubmatch(raw); m != nil {
		block := m[2]
		if loc := hoursEndRe.FindStringIndex(block); loc != nil {
			block = block[:loc[0]]
		}
		info.Hours = normalizeHours(block)
	}
	return info
}

// NormalizePhone keeps phone punctuation only and formats local numbers as
// 0X-XXXX-XXXX.
func NormalizePhone(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}
	s = phoneCharsRe.ReplaceAllString(s, "")
	s = strings.TrimSpace(spacesRe.ReplaceAllString(s, " "))
	if m := phoneShapeRe.FindStringSubmatch(s); m != nil {
		return m[1] + "-" + m[2] + "-" + m[3]
	}
	s = strings.ReplaceAll(s, " ", "-")
	return dashRunRe.ReplaceAllString(s, "-")
}

func normalizeHours(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = blankRunRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(manyNLRe.ReplaceAllString(s, "\n\n"))
}

type field struct {
	label string
	value func(domain.CompanyInfo) string
	cues  []string
}

var fields = []field{
	{label: "電話", value: func(c domain.CompanyInfo) string { return c.Phone }, cues: []string{"電話", "tel", "phone", "聯絡電話"}},
	{label: "地址", value: func(c domain.CompanyInfo) string { return c.Address }, cues: []string{"地址", "location", "在哪", "怎麼去"}},
	{label: "營業時間", value: func(c domain.CompanyInfo) string { return c.Hours }, cues: []string{"營業", "時間", "幾點", "opening", "hours"}},
	{label: "官網", value: func(c domain.CompanyInfo) string { return c.Website }, cues: []string{"官網", "網站", "website", "url"}},
	{label: "Email", value: func(c domain.CompanyInfo) string { return c.Email }, cues: []string{"信箱", "email", "e-mail", "郵件"}},
}

// MissingNotice is the evidence used when no profile document exists.
const MissingNotice = "（系統尚未建立或找不到 company_info.md，公司資料未提供。）"

// ContextBlock renders the fields the question asks about, or every field
// when it asks about none, followed by an excerpt of the profile.
func ContextBlock(info domain.CompanyInfo, question string) domain.ContextBlock {
	if info.Raw == "" {
		return domain.ContextBlock{Kind: domain.BlockNotice, Body: MissingNotice}
	}
	q := strings.ToLower(question)
	var lines []string
	add := func(label, v string) {
		if v = strings.TrimSpace(v); v != "" {
			lines = append(lines, label+"："+v)
		}
	}

	asked := false
	for _, f := range fields {
		if containsAny(q, f.cues) {
			asked = true
			add(f.label, f.value(info))
		}
	}
	if !asked {
		add("公司名稱", info.Name)
		add("地址", info.Address)
		add("電話", info.Phone)
		add("營業時間", info.Hours)
		add("官網", info.Website)
		add("Email", info.Email)
	}
	if excerpt := budget.TruncateText(info.Raw, excerptChars); excerpt != "" {
		lines = append(lines, "\n---\n（原文節錄）\n"+excerpt)
	}
	return domain.ContextBlock{
		Kind:  domain.BlockCompanyInfo,
		Label: SourceName,
		Body:  strings.Join(lines, "\n"),
	}
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
