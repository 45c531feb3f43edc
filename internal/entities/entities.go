// Package entities pulls named entities out of extracted text. The built-in
// extractor is heuristic (dictionaries plus surface patterns), deliberately
// cheap so indexing stays local; a model-backed Extractor can replace it
// behind the same interface.
package entities

import (
	"context"
	"regexp"
	"strings"
	"unicode"

	"chimera/internal/catalog"
)

// Labels assigned by the built-in extractor.
const (
	LabelPerson  = "PERSON"
	LabelOrg     = "ORG"
	LabelProject = "PROJECT"
	LabelTech    = "TECH"
	LabelDate    = "DATE"
)

// Extractor finds entity mentions in text.
type Extractor interface {
	Extract(ctx context.Context, text string) ([]catalog.RawEntity, error)
}

// Heuristic is the dictionary-and-pattern Extractor.
type Heuristic struct {
	techTerms map[string]struct{}
}

// NewHeuristic returns the built-in extractor.
func NewHeuristic() *Heuristic {
	terms := make(map[string]struct{}, len(TechTerms))
	for _, term := range TechTerms {
		terms[strings.ToLower(term)] = struct{}{}
	}
	return &Heuristic{techTerms: terms}
}

var (
	datePattern = regexp.MustCompile(`\b(\d{4}-\d{2}-\d{2}|\d{1,2}/\d{1,2}/\d{4}|(?:January|February|March|April|May|June|July|August|September|October|November|December)\s+\d{1,2},?\s+\d{4})\b`)

	orgSuffixPattern = regexp.MustCompile(`\b([A-Z][A-Za-z0-9&.\-]{0,24}(?:\s+[A-Z][A-Za-z0-9&.\-]{0,24}){0,3}\s+(?:Inc|Corp|Corporation|LLC|Ltd|GmbH|Labs|Foundation|University)\.?)(?:\s|$|[,;:)])`)

	projectPattern = regexp.MustCompile(`\b[Pp]roject\s+([A-Z][A-Za-z0-9_\-]{1,30})\b`)

	personPattern = regexp.MustCompile(`\b([A-Z][a-z]{1,20}(?:\s+[A-Z][a-z]{1,20}){0,2})\b`)

	wordPattern = regexp.MustCompile(`[A-Za-z0-9+#.\-]+`)
)

// commonSentenceStarters are capitalized words that open sentences far more
// often than they name people.
var commonSentenceStarters = map[string]struct{}{
	"the": {}, "this": {}, "that": {}, "these": {}, "those": {}, "a": {}, "an": {},
	"it": {}, "its": {}, "we": {}, "our": {}, "you": {}, "your": {}, "they": {},
	"he": {}, "she": {}, "i": {}, "in": {}, "on": {}, "at": {}, "for": {}, "to": {},
	"and": {}, "but": {}, "or": {}, "so": {}, "if": {}, "when": {}, "while": {},
	"after": {}, "before": {}, "then": {}, "there": {}, "here": {}, "what": {},
	"why": {}, "how": {}, "not": {}, "no": {}, "yes": {}, "all": {}, "some": {},
	"also": {}, "however": {}, "first": {}, "second": {}, "finally": {}, "note": {},
	"see": {}, "use": {}, "using": {}, "new": {}, "with": {}, "from": {}, "as": {},
	"january": {}, "february": {}, "march": {}, "april": {}, "may": {}, "june": {},
	"july": {}, "august": {}, "september": {}, "october": {}, "november": {},
	"december": {}, "monday": {}, "tuesday": {}, "wednesday": {}, "thursday": {},
	"friday": {}, "saturday": {}, "sunday": {},
}

// Extract runs every heuristic over the text. Matches are deduplicated by
// (label, start offset); higher-precision heuristics win overlaps.
func (h *Heuristic) Extract(ctx context.Context, text string) ([]catalog.RawEntity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var found []catalog.RawEntity
	claimed := make([]bool, len(text))

	claim := func(entity catalog.RawEntity) {
		for i := entity.Start; i < entity.End && i < len(claimed); i++ {
			if claimed[i] {
				return
			}
		}
		for i := entity.Start; i < entity.End && i < len(claimed); i++ {
			claimed[i] = true
		}
		entity.Context = contextWindow(text, entity.Start, entity.End)
		found = append(found, entity)
	}

	for _, match := range datePattern.FindAllStringIndex(text, -1) {
		claim(catalog.RawEntity{
			Text:       text[match[0]:match[1]],
			Label:      LabelDate,
			Start:      match[0],
			End:        match[1],
			Confidence: 0.95,
		})
	}

	for _, match := range h.techMatches(text) {
		claim(match)
	}

	for _, match := range orgSuffixPattern.FindAllStringSubmatchIndex(text, -1) {
		claim(catalog.RawEntity{
			Text:       text[match[2]:match[3]],
			Label:      LabelOrg,
			Start:      match[2],
			End:        match[3],
			Confidence: 0.8,
		})
	}

	for _, match := range projectPattern.FindAllStringSubmatchIndex(text, -1) {
		claim(catalog.RawEntity{
			Text:       text[match[2]:match[3]],
			Label:      LabelProject,
			Start:      match[2],
			End:        match[3],
			Confidence: 0.75,
		})
	}

	for _, match := range personPattern.FindAllStringIndex(text, -1) {
		candidate := text[match[0]:match[1]]
		if !plausiblePerson(candidate, text, match[0]) {
			continue
		}
		claim(catalog.RawEntity{
			Text:       candidate,
			Label:      LabelPerson,
			Start:      match[0],
			End:        match[1],
			Confidence: personConfidence(candidate),
		})
	}

	return found, nil
}

// techMatches scans words against the tech dictionary.
func (h *Heuristic) techMatches(text string) []catalog.RawEntity {
	var matches []catalog.RawEntity
	for _, loc := range wordPattern.FindAllStringIndex(text, -1) {
		word := text[loc[0]:loc[1]]
		end := loc[1]
		lower := strings.ToLower(word)
		if _, ok := h.techTerms[lower]; !ok {
			// The word class includes '.' for dotted terms like Node.js, so a
			// sentence-final term carries its period. Retry without it.
			trimmed := strings.TrimRight(word, ".")
			if trimmed == word {
				continue
			}
			lower = strings.ToLower(trimmed)
			if _, ok := h.techTerms[lower]; !ok {
				continue
			}
			end -= len(word) - len(trimmed)
			word = trimmed
		}
		// Terms that double as everyday words only count when capitalized
		// like a proper noun.
		if _, ambiguous := ambiguousTechTerms[lower]; ambiguous && word == lower {
			continue
		}
		matches = append(matches, catalog.RawEntity{
			Text:       word,
			Label:      LabelTech,
			Start:      loc[0],
			End:        end,
			Confidence: 0.9,
		})
	}
	return matches
}

// plausiblePerson filters capitalized sequences that are probably just
// sentence-initial words.
func plausiblePerson(candidate, text string, start int) bool {
	words := strings.Fields(candidate)
	if len(words) == 1 {
		if _, common := commonSentenceStarters[strings.ToLower(words[0])]; common {
			return false
		}
		// A lone capitalized word at sentence start is too ambiguous.
		if atSentenceStart(text, start) {
			return false
		}
		return true
	}
	for _, word := range words {
		if _, common := commonSentenceStarters[strings.ToLower(word)]; common {
			return false
		}
	}
	return true
}

func personConfidence(candidate string) float64 {
	if strings.Contains(candidate, " ") {
		return 0.7
	}
	return 0.5
}

func atSentenceStart(text string, offset int) bool {
	for i := offset - 1; i >= 0; i-- {
		r := rune(text[i])
		if r == ' ' || r == '\t' {
			continue
		}
		return r == '.' || r == '!' || r == '?' || r == '\n'
	}
	return true
}

// contextWindow returns up to 40 characters either side of the match,
// snapped to rune boundaries and flattened to one line.
func contextWindow(text string, start, end int) string {
	const radius = 40
	lo := start - radius
	if lo < 0 {
		lo = 0
	}
	hi := end + radius
	if hi > len(text) {
		hi = len(text)
	}
	for lo > 0 && !utf8RuneStart(text[lo]) {
		lo--
	}
	for hi < len(text) && !utf8RuneStart(text[hi]) {
		hi++
	}
	window := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return ' '
		}
		return r
	}, text[lo:hi])
	return strings.TrimSpace(window)
}

func utf8RuneStart(b byte) bool {
	return b&0xC0 != 0x80
}
