package intent

import (
	"regexp"
	"strings"
)

type faqRule struct {
	pattern *regexp.Regexp
	reply   string
	// mask blanks words that contain a trigger but mean something else.
	mask    *strings.Replacer
}

// 輻照度 (irradiance) is the right UVC metric even though it contains 照度.
var irradianceMask = strings.NewReplacer("輻照度", "", "辐照度", "")

var faqRules = []faqRule{
	{
		pattern: regexp.MustCompile(`(報價|價格|多少錢|庫存|交期|多久到|現貨)`),
		reply:   "我可以提供產品與選型方向，但不提供報價、庫存或交期資訊。請聯絡業務窗口協助。",
	},
	{
		pattern: regexp.MustCompile(`(UVC).*(lux|流明|lm|照度)`),
		reply:   "UVC 領域通常需分清「光譜 / 強度 / 劑量」，lux 或流明不適合作為 UVC 殺菌能量評估指標。你要確認的是：光譜、瞬時強度，還是累積劑量？",
		mask:    irradianceMask,
	},
	{
		pattern: regexp.MustCompile(`(植物燈|PPFD|PPF).*(lux|照度)`),
		reply:   "植物照明的核心指標是 PPF/PPFD（光子量），lux（照度）不等於植物可用光。你要量的是 PPF、PPFD，還是光譜分佈？",
	},
}

// FAQ returns a canned reply for questions that never need retrieval.
func FAQ(text string) (string, bool) {
	t := strings.TrimSpace(text)
	for _, rule := range faqRules {
		subject := t
		if rule.mask != nil {
			subject = rule.mask.Replace(t)
		}
		if rule.pattern.MatchString(subject) {
			return rule.reply, true
		}
	}
	return "", false
}
