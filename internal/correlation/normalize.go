package correlation

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var determiners = map[string]struct{}{
	"the": {}, "a": {}, "an": {},
}

// Normalize produces the canonical value for an entity mention. All types
// are lowercased, stripped of diacritics and leading determiners, and
// reduced to alphanumerics and single spaces. PERSON values additionally
// collapse to the nickname-resolved first-name token, so "Gabe" and
// "Gabriel Smith" share one canonical key.
func Normalize(value, entityType string) string {
	lowered := strings.ToLower(strings.TrimSpace(value))
	lowered = stripDiacritics(lowered)

	words := strings.Fields(lowered)
	for len(words) > 0 {
		if _, ok := determiners[words[0]]; !ok {
			break
		}
		words = words[1:]
	}
	if len(words) == 0 {
		return ""
	}

	if entityType == "PERSON" {
		first := stripNonAlnum(words[0])
		if canonical, ok := nicknames[first]; ok {
			first = canonical
		}
		return first
	}

	cleaned := make([]string, 0, len(words))
	for _, word := range words {
		if stripped := stripNonAlnum(word); stripped != "" {
			cleaned = append(cleaned, stripped)
		}
	}
	return strings.Join(cleaned, " ")
}

var diacriticStripper = transform.Chain(
	norm.NFKD,
	runes.Remove(runes.In(unicode.Mn)),
	norm.NFC,
)

func stripDiacritics(s string) string {
	stripped, _, err := transform.String(diacriticStripper, s)
	if err != nil {
		return s
	}
	return stripped
}

func stripNonAlnum(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsNumber(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
