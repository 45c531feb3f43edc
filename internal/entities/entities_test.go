package entities_test

import (
	"context"
	"testing"

	"chimera/internal/catalog"
	"chimera/internal/entities"
)

func extract(t *testing.T, text string) []catalog.RawEntity {
	t.Helper()
	found, err := entities.NewHeuristic().Extract(context.Background(), text)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	return found
}

func findByLabel(found []catalog.RawEntity, label string) []catalog.RawEntity {
	var out []catalog.RawEntity
	for _, entity := range found {
		if entity.Label == label {
			out = append(out, entity)
		}
	}
	return out
}

func TestExtractRecognizesEachLabel(t *testing.T) {
	text := "On 2026-03-14, Gabriel Smith from Acme Corp demoed Project Chimera running on Kubernetes."
	found := extract(t, text)

	if dates := findByLabel(found, entities.LabelDate); len(dates) != 1 || dates[0].Text != "2026-03-14" {
		t.Fatalf("unexpected dates: %#v", dates)
	}
	if people := findByLabel(found, entities.LabelPerson); len(people) == 0 || people[0].Text != "Gabriel Smith" {
		t.Fatalf("unexpected people: %#v", people)
	}
	if orgs := findByLabel(found, entities.LabelOrg); len(orgs) != 1 || orgs[0].Text != "Acme Corp" {
		t.Fatalf("unexpected orgs: %#v", orgs)
	}
	if projects := findByLabel(found, entities.LabelProject); len(projects) != 1 || projects[0].Text != "Chimera" {
		t.Fatalf("unexpected projects: %#v", projects)
	}
	if tech := findByLabel(found, entities.LabelTech); len(tech) != 1 || tech[0].Text != "Kubernetes" {
		t.Fatalf("unexpected tech: %#v", tech)
	}
}

func TestExtractOffsetsMatchText(t *testing.T) {
	text := "Kubernetes ships with Docker support."
	for _, entity := range extract(t, text) {
		if text[entity.Start:entity.End] != entity.Text {
			t.Fatalf("offsets [%d,%d) do not slice to %q", entity.Start, entity.End, entity.Text)
		}
		if entity.Confidence <= 0 || entity.Confidence > 1 {
			t.Fatalf("confidence out of range: %#v", entity)
		}
		if entity.Context == "" {
			t.Fatalf("missing context window: %#v", entity)
		}
	}
}

func TestExtractFiltersSentenceStarters(t *testing.T) {
	text := "The deployment finished. However we saw errors. This is fine."
	if people := findByLabel(extract(t, text), entities.LabelPerson); len(people) != 0 {
		t.Fatalf("sentence starters misread as people: %#v", people)
	}
}

func TestAmbiguousTechTermsNeedProperNoun(t *testing.T) {
	lowercase := extract(t, "we need to go over there and rust never sleeps")
	if tech := findByLabel(lowercase, entities.LabelTech); len(tech) != 0 {
		t.Fatalf("everyday words misread as tech: %#v", tech)
	}

	capitalized := extract(t, "The service is written in Go with a little Rust.")
	tech := findByLabel(capitalized, entities.LabelTech)
	if len(tech) != 2 {
		t.Fatalf("expected Go and Rust, got %#v", tech)
	}
}

func TestTechTermAtSentenceEnd(t *testing.T) {
	text := "The whole pipeline runs on Kubernetes. Deploys are fast."
	tech := findByLabel(extract(t, text), entities.LabelTech)
	if len(tech) != 1 {
		t.Fatalf("expected one tech term, got %#v", tech)
	}
	if tech[0].Text != "Kubernetes" {
		t.Fatalf("period kept in term: %q", tech[0].Text)
	}
	if text[tech[0].Start:tech[0].End] != "Kubernetes" {
		t.Fatalf("offsets [%d,%d) do not slice to the term", tech[0].Start, tech[0].End)
	}

	// Dotted names keep their dot when the dotted form is the term itself.
	dotted := findByLabel(extract(t, "The frontend talks to a Node.js service."), entities.LabelTech)
	if len(dotted) != 1 || dotted[0].Text != "Node.js" {
		t.Fatalf("unexpected dotted term: %#v", dotted)
	}
}

func TestHigherPrecisionHeuristicWinsOverlap(t *testing.T) {
	// "March 14, 2026" matches both the date pattern and, in part, the
	// person pattern; the date claims the bytes first.
	found := extract(t, "Shipped on March 14, 2026 by everyone.")
	if dates := findByLabel(found, entities.LabelDate); len(dates) != 1 {
		t.Fatalf("expected one date, got %#v", dates)
	}
	for _, person := range findByLabel(found, entities.LabelPerson) {
		if person.Text == "March" {
			t.Fatalf("month misread as person: %#v", person)
		}
	}
}

func TestExtractHonorsCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := entities.NewHeuristic().Extract(ctx, "some text"); err == nil {
		t.Fatal("expected context error")
	}
}
