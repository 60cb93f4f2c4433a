package guard

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	unanswerableRe = regexp.MustCompile(`資料中尚未包含|資料未提供|無法回答|我不知道|我無法|沒有相關資料|找不到|無法確認`)
	numberedListRe = regexp.MustCompile(`\n\s*\d+\.`)
	structureWords = []string{"定位", "適用", "不適用", "規格", "功能", "建議", "原因", "方式", "流程", "差異"}
)

// LooksUnanswerable flags empty, refusing, or thin answers. strongSource
// relaxes the length heuristics when product evidence backed the answer.
func LooksUnanswerable(answer string, strongSource bool) bool {
	a := strings.TrimSpace(answer)
	if a == "" {
		return true
	}
	if unanswerableRe.MatchString(a) {
		return true
	}
	n := utf8.RuneCountInString(a)
	if !strongSource && n < 40 {
		return true
	}
	hasBullets := strings.Contains(a, "-") || strings.Contains(a, "•") || numberedListRe.MatchString(a)
	hasKeywords := false
	for _, w := range structureWords {
		if strings.Contains(a, w) {
			hasKeywords = true
			break
		}
	}
	return !hasBullets && !hasKeywords && !strongSource && n < 120
}

// AppendContact adds a phone footer to unanswerable answers once.
func AppendContact(answer, companyName, phone string, strongSource bool) string {
	phone = strings.TrimSpace(phone)
	if phone == "" || strings.Contains(answer, phone) {
		return answer
	}
	if !LooksUnanswerable(answer, strongSource) {
		return answer
	}
	label := strings.TrimSpace(companyName) + "電話："
	return strings.TrimRight(answer, " \t\r\n") + "\n\n---\n如果需要更精準的協助，建議直接來電洽詢：\n📞 " + label + phone + "\n"
}
