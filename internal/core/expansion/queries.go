package expansion

import "strings"

type keywordRule struct {
	key   string
	terms []string
}

var keywordExpansion = []keywordRule{
	{"ppfd", []string{"PPFD", "PPF", "植物燈", "光子通量", "光合光子", "PAR", "植物照明"}},
	{"ppf", []string{"PPFD", "PPF", "植物燈", "光子通量", "PAR", "植物照明"}},
	{"par", []string{"PPFD", "PPF", "PAR", "植物燈", "植物照明", "光子通量"}},
	{"uvc", []string{"UVC", "消毒", "輻照度", "辐照度", "radiometer", "uvc led", "紫外線消毒", "254nm"}},
	{"輝度", []string{"輝度", "luminance", "亮度", "nit", "cd/m2", "cd/m²"}},
	{"照度", []string{"照度", "lux", "illuminance"}},
	{"光譜", []string{"光譜", "spectrum", "波長", "spectrometer", "光譜儀"}},
	{"穿透", []string{"穿透率", "透過率", "transmittance", "玻璃穿透"}},
	{"反射", []string{"反射率", "reflectance", "鏡面反射"}},
}

// BuildSearchQueries assembles up to MaxQueries distinct (case-insensitive)
// queries: phrase, model key, alias terms, extra terms, keyword expansions,
// then one combined key-terms query.
func BuildSearchQueries(phrase string, aliasTerms, extraTerms []string, modelKey string) []string {
	base := strings.TrimSpace(phrase)
	out := make([]string, 0, MaxQueries)
	seen := make(map[string]struct{}, 16)
	add := func(q string) {
		q = strings.TrimSpace(q)
		if q == "" {
			return
		}
		k := strings.ToLower(q)
		if _, ok := seen[k]; ok {
			return
		}
		seen[k] = struct{}{}
		out = append(out, q)
	}

	add(base)
	add(modelKey)
	for _, t := range aliasTerms {
		add(t)
	}
	for _, t := range extraTerms {
		add(t)
	}
	low := strings.ToLower(base)
	for _, rule := range keywordExpansion {
		if strings.Contains(low, rule.key) || strings.Contains(base, rule.key) {
			for _, t := range rule.terms {
				add(t)
			}
		}
	}

	keyTokens := make([]string, 0, 8)
	if modelKey != "" {
		keyTokens = append(keyTokens, modelKey)
	}
	for _, t := range extraTerms {
		if t != "" {
			keyTokens = append(keyTokens, t)
		}
	}
	for i, t := range aliasTerms {
		if i >= comboAliasTake {
			break
		}
		if t != "" {
			keyTokens = append(keyTokens, t)
		}
	}
	if len(keyTokens) > 0 {
		add(strings.Join(keyTokens, " "))
	}

	if len(out) > MaxQueries {
		out = out[:MaxQueries]
	}
	return out
}
