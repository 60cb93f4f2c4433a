package requirement

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/kirillkom/product-advisor/internal/core/domain"
)

const (
	maxTerms         = 12
	maxNanometerHits = 6
	maxUnitHits      = 6
)

var (
	whitespaceRe = regexp.MustCompile(`\s+`)
	nanometerRe  = regexp.MustCompile(`(?i)(\d{2,4})\s*nm`)
	unitRe       = regexp.MustCompile(`(?i)(lux|lx|cd/m2|cd/m\^2|nits|nit|w/m2|w/m\^2|mw/cm2|mw/cm\^2|uw/cm2|uw/cm\^2|μw/cm2|μw/cm\^2|umol/m2/s|μmol/m2/s|μmol/m\^2/s)`)

	termVocabulary = []string{
		"UVC", "UVB", "UVA", "VIS", "NIR", "IR", "PAR",
		"PPFD", "PPF", "PAR", "光子通量", "光合光子", "植物照明", "植物燈",
		"輻照度", "irradiance", "radiometer", "光強度", "強度", "照度", "lux", "illuminance",
		"輝度", "luminance", "亮度", "nit", "cd/m2",
		"光譜", "spectrum", "spectrometer", "波長",
		"積分球", "總光通量", "光通量", "lumen", "lm",
		"反射率", "reflectance", "穿透率", "透過率", "transmittance", "鏡面", "玻璃",
		"螢光粉", "phosphor",
		"UVC LED", "LED", "雷射", "laser", "顯示器", "display", "醫療燈",
		"產線", "品管", "研發", "自動化", "報表", "暗箱", "校正", "校準",
	}
	uvBands       = []string{"uvc", "uvb", "uva"}
	intensityWord = []string{"輻照度", "irradiance", "radiometer", "光強度", "強度"}
	plantWords    = []string{"ppfd", "ppf", "par", "植物"}
)

// BuildQueryTerms turns interview answers into up to twelve retrieval terms:
// vocabulary hits, wavelengths, units, combined phrases, and the raw summary.
func BuildQueryTerms(answers domain.RequirementAnswers) []string {
	parts := make([]string, 0, 3)
	for _, v := range answers.Values() {
		if v = strings.TrimSpace(v); v != "" {
			parts = append(parts, v)
		}
	}
	raw := strings.TrimSpace(whitespaceRe.ReplaceAllString(strings.Join(parts, " "), " "))
	if raw == "" {
		return nil
	}
	lower := strings.ToLower(raw)

	keep := make([]string, 0, 24)
	for _, w := range termVocabulary {
		if strings.Contains(lower, strings.ToLower(w)) {
			keep = append(keep, w)
		}
	}
	for _, m := range boundedMatches(nanometerRe, raw, maxNanometerHits, false) {
		keep = append(keep, fmt.Sprintf("%snm", m))
	}
	keep = append(keep, boundedMatches(unitRe, raw, maxUnitHits, true)...)

	if containsAny(lower, uvBands) {
		if containsAny(lower, intensityWord) {
			keep = append(keep, "UVC 輻照度")
		}
		keep = append(keep, "紫外線 光譜")
	}
	if containsAny(lower, plantWords) {
		keep = append(keep, "PPFD 植物照明", "PAR 光子通量")
	}
	keep = append(keep, raw)

	out := make([]string, 0, maxTerms)
	seen := make(map[string]struct{}, len(keep))
	for _, x := range keep {
		x = strings.TrimSpace(x)
		if x == "" {
			continue
		}
		k := strings.ToLower(x)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, x)
		if len(out) == maxTerms {
			break
		}
	}
	return out
}

// boundedMatches returns the first capture group of matches that end at a
// word boundary, and also start at one when leading is set. Letters of any
// script count as word characters.
func boundedMatches(re *regexp.Regexp, text string, limit int, leading bool) []string {
	var out []string
	for _, loc := range re.FindAllStringSubmatchIndex(text, -1) {
		start, end := loc[0], loc[1]
		if leading && start > 0 {
			r, _ := utf8.DecodeLastRuneInString(text[:start])
			if isWordRune(r) {
				continue
			}
		}
		if end < len(text) {
			r, _ := utf8.DecodeRuneInString(text[end:])
			if isWordRune(r) {
				continue
			}
		}
		out = append(out, text[loc[2]:loc[3]])
		if len(out) == limit {
			break
		}
	}
	return out
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
