package correlation

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"chimera/internal/catalog"
)

var titleCaser = cases.Title(language.English)

// DetectAll runs the four detectors. Each emits patterns keyed by a derived
// ID so a rerun overwrites rather than duplicates.
func (e *Engine) DetectAll(ctx context.Context, matrix *Matrix) ([]*catalog.Pattern, error) {
	var patterns []*catalog.Pattern

	expertise, err := e.detectExpertise(ctx)
	if err != nil {
		return nil, err
	}
	patterns = append(patterns, expertise...)

	patterns = append(patterns, e.detectRelationships(matrix)...)

	workflow, err := e.detectWorkflows(ctx)
	if err != nil {
		return nil, err
	}
	patterns = append(patterns, workflow...)

	techStack, err := e.detectTechStack(ctx)
	if err != nil {
		return nil, err
	}
	patterns = append(patterns, techStack...)

	return patterns, nil
}

// detectExpertise tallies domain-vocabulary hits across indexed content.
// A domain needs at least 5 raw hits and a confidence of 0.3 to surface.
func (e *Engine) detectExpertise(ctx context.Context) ([]*catalog.Pattern, error) {
	texts, err := e.catalog.IndexedFileTexts(ctx)
	if err != nil {
		return nil, err
	}

	var patterns []*catalog.Pattern
	for _, domain := range sortedKeys(DomainVocabulary) {
		terms := DomainVocabulary[domain]

		hits := 0
		termsFound := make(map[string]struct{})
		fileIDs := make(map[int64]struct{})
		for _, text := range texts {
			lowered := strings.ToLower(text.Text)
			fileHit := false
			for _, term := range terms {
				count := countWord(lowered, term)
				if count == 0 {
					continue
				}
				hits += count
				termsFound[term] = struct{}{}
				fileHit = true
			}
			if fileHit {
				fileIDs[text.FileID] = struct{}{}
			}
		}
		if hits < 5 {
			continue
		}

		confidence := clamp01(
			0.4*math.Log10(float64(hits)+1)/2 +
				0.3*minf(1, float64(len(fileIDs))/10) +
				0.3*float64(len(termsFound))/float64(len(terms)))
		if confidence < 0.3 {
			continue
		}

		found := sortedSet(termsFound)
		patterns = append(patterns, &catalog.Pattern{
			ID:          "expertise:" + strings.ReplaceAll(domain, " ", "-"),
			Type:        catalog.PatternExpertise,
			Title:       "Expertise in " + domain,
			Description: fmt.Sprintf("%d mentions of %s vocabulary across %d files", hits, domain, len(fileIDs)),
			Confidence:  confidence,
			Evidence:    found,
			FileIDs:     sortedInt64s(fileIDs),
		})
	}
	return patterns, nil
}

// detectRelationships promotes strong PERSON-to-ORG/PROJECT pairs.
func (e *Engine) detectRelationships(matrix *Matrix) []*catalog.Pattern {
	var patterns []*catalog.Pattern
	for _, key := range sortedPairKeys(matrix) {
		pair := matrix.Pairs[key]
		if pair.Strength < 0.4 {
			continue
		}
		person, other := personAndAffiliation(pair)
		if person == nil {
			continue
		}

		patterns = append(patterns, &catalog.Pattern{
			ID:   fmt.Sprintf("relationship:%s:%s", person.NormalizedValue, other.NormalizedValue),
			Type: catalog.PatternRelationship,
			Title: fmt.Sprintf("%s is connected to %s",
				titleCaser.String(person.NormalizedValue), other.NormalizedValue),
			Description: fmt.Sprintf("co-occur in %d files (%d times)", len(pair.FileIDs), pair.Count),
			Confidence:  pair.Strength,
			Evidence:    firstN(append(append([]string{}, person.SampleContexts...), other.SampleContexts...), 5),
			FileIDs:     sortedInt64s(pair.FileIDs),
			EntityKeys:  []string{pair.A, pair.B},
		})
	}
	return patterns
}

func personAndAffiliation(pair *Pair) (person, other *catalog.ConsolidatedEntity) {
	a, b := pair.ATyped, pair.BTyped
	if a == nil || b == nil {
		return nil, nil
	}
	isAffiliation := func(t string) bool { return t == "ORG" || t == "PROJECT" }
	switch {
	case a.EntityType == "PERSON" && isAffiliation(b.EntityType):
		return a, b
	case b.EntityType == "PERSON" && isAffiliation(a.EntityType):
		return b, a
	default:
		return nil, nil
	}
}

// filenameConventions classify paths by naming habit.
var filenameConventions = []struct {
	name    string
	pattern *regexp.Regexp
}{
	{"date-prefixed", regexp.MustCompile(`^\d{4}[-_]\d{2}[-_]\d{2}[-_ ]`)},
	{"versioned", regexp.MustCompile(`[-_ ]v\d+(?:[._-]|$)`)},
	{"draft-final", regexp.MustCompile(`(?i)[-_ ](draft|final)(?:[-_ .]|$)`)},
	{"project-prefixed", regexp.MustCompile(`^[a-z][a-z0-9]+[-_][a-z]`)},
}

// detectWorkflows looks for filename conventions. A convention needs at
// least 3 matching files.
func (e *Engine) detectWorkflows(ctx context.Context) ([]*catalog.Pattern, error) {
	files, err := e.catalog.ListFiles(ctx)
	if err != nil {
		return nil, err
	}

	var patterns []*catalog.Pattern
	for _, convention := range filenameConventions {
		var matched []string
		fileIDs := make(map[int64]struct{})
		for _, file := range files {
			base := filepath.Base(file.Path)
			if convention.pattern.MatchString(base) {
				matched = append(matched, base)
				fileIDs[file.ID] = struct{}{}
			}
		}
		if len(matched) < 3 {
			continue
		}

		patterns = append(patterns, &catalog.Pattern{
			ID:          "workflow:" + convention.name,
			Type:        catalog.PatternWorkflow,
			Title:       "Files follow a " + convention.name + " naming convention",
			Description: fmt.Sprintf("%d files match", len(matched)),
			Confidence:  minf(1, float64(len(matched))/20),
			Evidence:    firstN(matched, 5),
			FileIDs:     sortedInt64s(fileIDs),
		})
	}
	return patterns, nil
}

// detectTechStack groups TECH entities into categories. At least 2
// populated categories are required for a pattern.
func (e *Engine) detectTechStack(ctx context.Context) ([]*catalog.Pattern, error) {
	techEntities, err := e.catalog.ListConsolidatedEntities(ctx, "TECH")
	if err != nil {
		return nil, err
	}
	if len(techEntities) == 0 {
		return nil, nil
	}

	termCategory := make(map[string]string)
	for category, terms := range techCategories {
		for _, term := range terms {
			termCategory[term] = category
		}
	}

	populated := make(map[string][]string)
	fileIDs := make(map[int64]struct{})
	var entityKeys []string
	for _, entity := range techEntities {
		category, ok := termCategory[entity.NormalizedValue]
		if !ok {
			continue
		}
		populated[category] = append(populated[category], entity.NormalizedValue)
		entityKeys = append(entityKeys, catalog.ConsolidatedKey(entity.EntityType, entity.NormalizedValue))
		for _, fileID := range entity.FileIDs {
			fileIDs[fileID] = struct{}{}
		}
	}
	if len(populated) < 2 {
		return nil, nil
	}

	var evidence []string
	for _, category := range sortedKeys(populated) {
		sort.Strings(populated[category])
		evidence = append(evidence, category+": "+strings.Join(populated[category], ", "))
	}

	return []*catalog.Pattern{{
		ID:          "techstack:profile",
		Type:        catalog.PatternHeuristic,
		Title:       "Technology stack profile",
		Description: fmt.Sprintf("%d tool categories in use across %d files", len(populated), len(fileIDs)),
		Confidence:  minf(1, float64(len(fileIDs))/20),
		Evidence:    evidence,
		FileIDs:     sortedInt64s(fileIDs),
		EntityKeys:  entityKeys,
	}}, nil
}

var wordBoundary = regexp.MustCompile(`[a-z0-9+#]+`)

// countWord counts whole-word occurrences of term in lowered text.
// Hyphenated terms fall back to substring counting since they span word
// boundaries.
func countWord(lowered, term string) int {
	if !strings.Contains(lowered, term) {
		return 0
	}
	if strings.ContainsAny(term, "- ") {
		return strings.Count(lowered, term)
	}
	count := 0
	for _, word := range wordBoundary.FindAllString(lowered, -1) {
		if word == term {
			count++
		}
	}
	return count
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func minf(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func firstN(values []string, n int) []string {
	if len(values) > n {
		return values[:n]
	}
	return values
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func sortedSet(set map[string]struct{}) []string {
	return sortedStrings(set)
}

func sortedPairKeys(matrix *Matrix) []string {
	keys := make([]string, 0, len(matrix.Pairs))
	for key := range matrix.Pairs {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
