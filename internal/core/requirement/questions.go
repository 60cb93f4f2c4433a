// Package requirement runs the three-question product selection interview
// and turns its answers into retrieval terms.
package requirement

import (
	"strings"

	"github.com/kirillkom/product-advisor/internal/core/domain"
)

// Kind is the closed set of answer shapes a question accepts.
type Kind interface {
	normalize(answer string) string
}

// Text accepts free text. NegativeIsAnswer makes bare "no"/"沒有" replies
// count as substantive.
type Text struct {
	NegativeIsAnswer bool
}

// Choice maps replies onto one of Options when a reply mentions it.
type Choice struct {
	Options []string
}

// Bool maps replies onto "yes" or "no".
type Bool struct{}

type Question struct {
	ID     domain.QuestionID
	Prompt string
	Kind   Kind
}

var (
	unknownPhrases = []string{"不知道", "不確定", "都可以", "隨便", "沒想法", "不清楚", "略過", "跳過", "skip", "na", "n/a"}
	negativeWords  = map[string]struct{}{"沒有": {}, "無": {}, "沒": {}, "no": {}, "none": {}}
	yesWords       = []string{"yes", "y", "是", "要", "需要", "有", "對"}
	noWords        = []string{"no", "n", "否", "不要", "不需要", "沒有", "不用"}
)

func DefaultQuestions() []Question {
	return []Question{
		{
			ID:     domain.QuestionTarget,
			Prompt: "你要量什麼？（例：光譜/UVA-UVB-UVC/VIS、輝度/照度、UVC 輻照度/光強度、PPFD/PPF/PAR、積分球總光通量、反射率/穿透率、螢光粉…）",
			Kind:   Text{},
		},
		{
			ID:     domain.QuestionObjectBand,
			Prompt: "量測對象與主要波段？（例：UVC LED、醫療燈、顯示器、玻璃/鏡面；波段 UVC/UVB/UVA/VIS/NIR；或 275nm/365nm；不確定也可）",
			Kind:   Text{},
		},
		{
			ID:     domain.QuestionSceneConstraints,
			Prompt: "使用情境與限制？（研發/產線/品管/客製；是否要速度/自動化/報表；預算或尺寸限制；沒有就回「沒有」）",
			Kind:   Text{NegativeIsAnswer: true},
		},
	}
}

// isUnknown reports whether a reply carries no usable information.
func isUnknown(answer string, negativeIsAnswer bool) bool {
	t := strings.ToLower(strings.TrimSpace(answer))
	if t == "" {
		return true
	}
	if negativeIsAnswer {
		if _, ok := negativeWords[t]; ok {
			return false
		}
	}
	if t == "-" || t == "none" {
		return true
	}
	for _, p := range unknownPhrases {
		if strings.Contains(t, p) {
			return true
		}
	}
	return false
}

func (k Text) normalize(answer string) string {
	if isUnknown(answer, k.NegativeIsAnswer) {
		return ""
	}
	return strings.TrimSpace(answer)
}

func (k Choice) normalize(answer string) string {
	if isUnknown(answer, false) {
		return ""
	}
	lowered := strings.ToLower(answer)
	for _, opt := range k.Options {
		if opt != "" && strings.Contains(lowered, strings.ToLower(opt)) {
			return opt
		}
	}
	return strings.TrimSpace(answer)
}

func (Bool) normalize(answer string) string {
	t := strings.ToLower(strings.TrimSpace(answer))
	for _, w := range noWords {
		if t == w {
			return "no"
		}
	}
	for _, w := range yesWords {
		if t == w {
			return "yes"
		}
	}
	return ""
}
