package correlation_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"chimera/internal/catalog"
	"chimera/internal/correlation"
	"chimera/internal/testsupport"
)

func newEngine(t *testing.T, store *catalog.Store, cfg correlation.Config) *correlation.Engine {
	t.Helper()
	return correlation.New(store, cfg, nil)
}

func seedFile(t *testing.T, store *catalog.Store, path string, entities []catalog.RawEntity) *catalog.FileRecord {
	t.Helper()
	ctx := context.Background()
	record, err := store.UpsertFile(ctx, &catalog.FileRecord{
		Path:        path,
		ContentHash: "hash-" + path,
		SizeBytes:   100,
		ModifiedAt:  time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("UpsertFile failed: %v", err)
	}
	for i := range entities {
		entities[i].FileID = record.ID
	}
	if err := store.ReplaceEntities(ctx, record.ID, entities); err != nil {
		t.Fatalf("ReplaceEntities failed: %v", err)
	}
	return record
}

func TestNormalize(t *testing.T) {
	cases := []struct {
		value      string
		entityType string
		want       string
	}{
		{"Gabe", "PERSON", "gabriel"},
		{"Gabriel Smith", "PERSON", "gabriel"},
		{"GABRIEL", "PERSON", "gabriel"},
		{"José García", "PERSON", "jose"},
		{"The Acme Corp", "ORG", "acme corp"},
		{"Acme Corp.", "ORG", "acme corp"},
		{"Kubernetes", "TECH", "kubernetes"},
		{"  the  ", "ORG", ""},
	}
	for _, tc := range cases {
		if got := correlation.Normalize(tc.value, tc.entityType); got != tc.want {
			t.Errorf("Normalize(%q, %s) = %q, want %q", tc.value, tc.entityType, got, tc.want)
		}
	}
}

func TestConsolidateMergesNicknameVariants(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenCatalog(t, cfg)
	engine := newEngine(t, store, correlation.Config{})
	ctx := context.Background()

	seedFile(t, store, "/library/standup.md", []catalog.RawEntity{
		{Text: "Gabe", Label: "PERSON", Start: 0, End: 4, Confidence: 0.7, Context: "Gabe will handle the deploy"},
	})
	seedFile(t, store, "/library/review.md", []catalog.RawEntity{
		{Text: "Gabriel Smith", Label: "PERSON", Start: 10, End: 23, Confidence: 0.7, Context: "reviewed by Gabriel Smith"},
		{Text: "gabe", Label: "PERSON", Start: 40, End: 44, Confidence: 0.5},
	})

	count, err := engine.ConsolidateAll(ctx)
	if err != nil {
		t.Fatalf("ConsolidateAll failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected one consolidated entity, got %d", count)
	}

	entity, err := store.GetConsolidatedEntity(ctx, "PERSON", "gabriel")
	if err != nil {
		t.Fatalf("GetConsolidatedEntity failed: %v", err)
	}
	if entity == nil {
		t.Fatal("expected consolidated entity for gabriel")
	}
	if entity.OccurrenceCount != 3 {
		t.Fatalf("expected 3 occurrences, got %d", entity.OccurrenceCount)
	}
	wantVariants := []string{"gabe", "gabriel smith"}
	if len(entity.Variants) != len(wantVariants) {
		t.Fatalf("unexpected variants: %v", entity.Variants)
	}
	for i, variant := range wantVariants {
		if entity.Variants[i] != variant {
			t.Fatalf("unexpected variants: %v, want %v", entity.Variants, wantVariants)
		}
	}
	if len(entity.FileIDs) != 2 {
		t.Fatalf("expected 2 source files, got %v", entity.FileIDs)
	}
}

func TestConsolidateIsIdempotent(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenCatalog(t, cfg)
	engine := newEngine(t, store, correlation.Config{})
	ctx := context.Background()

	seedFile(t, store, "/library/a.md", []catalog.RawEntity{
		{Text: "Acme Corp", Label: "ORG", Confidence: 0.8},
		{Text: "Kubernetes", Label: "TECH", Confidence: 0.9},
	})

	first, err := engine.ConsolidateAll(ctx)
	if err != nil {
		t.Fatalf("ConsolidateAll failed: %v", err)
	}
	second, err := engine.ConsolidateAll(ctx)
	if err != nil {
		t.Fatalf("second ConsolidateAll failed: %v", err)
	}
	if first != second {
		t.Fatalf("expected stable entity count, got %d then %d", first, second)
	}

	entities, err := store.ListConsolidatedEntities(ctx, "")
	if err != nil {
		t.Fatalf("ListConsolidatedEntities failed: %v", err)
	}
	if len(entities) != 2 {
		t.Fatalf("expected 2 consolidated entities, got %d", len(entities))
	}
	for _, entity := range entities {
		if entity.OccurrenceCount != 1 {
			t.Fatalf("rerun inflated occurrence count: %#v", entity)
		}
	}
}

func TestConsolidateDropsVanishedKeys(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenCatalog(t, cfg)
	engine := newEngine(t, store, correlation.Config{})
	ctx := context.Background()

	record := seedFile(t, store, "/library/a.md", []catalog.RawEntity{
		{Text: "Acme Corp", Label: "ORG", Confidence: 0.8},
	})
	if _, err := engine.ConsolidateAll(ctx); err != nil {
		t.Fatalf("ConsolidateAll failed: %v", err)
	}

	// The entity disappears from the raw data on re-extraction.
	if err := store.ReplaceEntities(ctx, record.ID, nil); err != nil {
		t.Fatalf("ReplaceEntities failed: %v", err)
	}
	if _, err := engine.ConsolidateAll(ctx); err != nil {
		t.Fatalf("ConsolidateAll failed: %v", err)
	}

	entity, err := store.GetConsolidatedEntity(ctx, "ORG", "acme corp")
	if err != nil {
		t.Fatalf("GetConsolidatedEntity failed: %v", err)
	}
	if entity != nil {
		t.Fatalf("expected vanished entity to be pruned, got %#v", entity)
	}
}

func TestCoOccurrenceThreeEntitiesThreePairs(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenCatalog(t, cfg)
	engine := newEngine(t, store, correlation.Config{})
	ctx := context.Background()

	seedFile(t, store, "/library/project.md", []catalog.RawEntity{
		{Text: "Gabriel Smith", Label: "PERSON", Confidence: 0.7},
		{Text: "Acme Corp", Label: "ORG", Confidence: 0.8},
		{Text: "Kubernetes", Label: "TECH", Confidence: 0.9},
	})
	if _, err := engine.ConsolidateAll(ctx); err != nil {
		t.Fatalf("ConsolidateAll failed: %v", err)
	}

	matrix, err := engine.BuildCoOccurrenceMatrix(ctx)
	if err != nil {
		t.Fatalf("BuildCoOccurrenceMatrix failed: %v", err)
	}
	if len(matrix.Pairs) != 3 {
		t.Fatalf("expected 3 pairs from 3 entities, got %d", len(matrix.Pairs))
	}
	if matrix.Truncated {
		t.Fatal("matrix should not be truncated")
	}
	for key, pair := range matrix.Pairs {
		if pair.Count != 1 || len(pair.FileIDs) != 1 {
			t.Fatalf("unexpected pair %s: %#v", key, pair)
		}
		if pair.Strength <= 0 || pair.Strength > 1 {
			t.Fatalf("pair strength out of bounds: %v", pair.Strength)
		}
	}
}

func TestCoOccurrenceRespectsCaps(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenCatalog(t, cfg)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		seedFile(t, store, fmt.Sprintf("/library/doc-%d.md", i), []catalog.RawEntity{
			{Text: "Gabriel Smith", Label: "PERSON", Confidence: 0.7},
			{Text: "Acme Corp", Label: "ORG", Confidence: 0.8},
			{Text: "Kubernetes", Label: "TECH", Confidence: 0.9},
			{Text: "PostgreSQL", Label: "TECH", Confidence: 0.9},
		})
	}

	engine := newEngine(t, store, correlation.Config{MaxPairsPerFile: 2})
	if _, err := engine.ConsolidateAll(ctx); err != nil {
		t.Fatalf("ConsolidateAll failed: %v", err)
	}
	matrix, err := engine.BuildCoOccurrenceMatrix(ctx)
	if err != nil {
		t.Fatalf("BuildCoOccurrenceMatrix failed: %v", err)
	}
	// Each file contributes at most 2 of its 6 possible pairs.
	totalCount := 0
	for _, pair := range matrix.Pairs {
		totalCount += pair.Count
	}
	if totalCount != 6 {
		t.Fatalf("expected 6 pair observations with per-file cap 2, got %d", totalCount)
	}

	capped := newEngine(t, store, correlation.Config{MaxTotalPairs: 2})
	matrix, err = capped.BuildCoOccurrenceMatrix(ctx)
	if err != nil {
		t.Fatalf("BuildCoOccurrenceMatrix failed: %v", err)
	}
	if !matrix.Truncated {
		t.Fatal("expected truncation flag with total pair cap 2")
	}
	if len(matrix.Pairs) != 2 {
		t.Fatalf("expected 2 pairs under cap, got %d", len(matrix.Pairs))
	}
}

func TestDetectRelationshipsRequiresPersonAffiliation(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenCatalog(t, cfg)
	engine := newEngine(t, store, correlation.Config{})
	ctx := context.Background()

	// Three shared files push pair strength to 0.42, past the 0.4 floor.
	for i := 0; i < 3; i++ {
		seedFile(t, store, fmt.Sprintf("/library/mtg-%d.md", i), []catalog.RawEntity{
			{Text: "Gabriel Smith", Label: "PERSON", Confidence: 0.7, Context: "Gabriel leads the effort"},
			{Text: "Acme Corp", Label: "ORG", Confidence: 0.8, Context: "for Acme Corp"},
		})
	}
	if _, err := engine.ConsolidateAll(ctx); err != nil {
		t.Fatalf("ConsolidateAll failed: %v", err)
	}
	matrix, err := engine.BuildCoOccurrenceMatrix(ctx)
	if err != nil {
		t.Fatalf("BuildCoOccurrenceMatrix failed: %v", err)
	}

	patterns, err := engine.DetectAll(ctx, matrix)
	if err != nil {
		t.Fatalf("DetectAll failed: %v", err)
	}

	var relationship *catalog.Pattern
	for _, pattern := range patterns {
		if pattern.Type == catalog.PatternRelationship {
			relationship = pattern
		}
	}
	if relationship == nil {
		t.Fatal("expected a relationship pattern")
	}
	if relationship.ID != "relationship:gabriel:acme corp" {
		t.Fatalf("unexpected relationship id: %s", relationship.ID)
	}
	if relationship.Confidence < 0.4 || relationship.Confidence > 1 {
		t.Fatalf("relationship confidence out of range: %v", relationship.Confidence)
	}
	if len(relationship.FileIDs) != 3 {
		t.Fatalf("expected 3 source files, got %v", relationship.FileIDs)
	}
}

func TestDetectWorkflowsNeedsThreeMatches(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenCatalog(t, cfg)
	engine := newEngine(t, store, correlation.Config{})
	ctx := context.Background()

	seedFile(t, store, "/library/2026-01-05-notes.md", nil)
	seedFile(t, store, "/library/2026-01-12-notes.md", nil)

	matrix := &correlation.Matrix{Pairs: map[string]*correlation.Pair{}}
	patterns, err := engine.DetectAll(ctx, matrix)
	if err != nil {
		t.Fatalf("DetectAll failed: %v", err)
	}
	for _, pattern := range patterns {
		if pattern.Type == catalog.PatternWorkflow {
			t.Fatalf("two matches should not produce a workflow pattern: %#v", pattern)
		}
	}

	seedFile(t, store, "/library/2026-01-19-notes.md", nil)
	patterns, err = engine.DetectAll(ctx, matrix)
	if err != nil {
		t.Fatalf("DetectAll failed: %v", err)
	}
	var workflow *catalog.Pattern
	for _, pattern := range patterns {
		if pattern.Type == catalog.PatternWorkflow {
			workflow = pattern
		}
	}
	if workflow == nil {
		t.Fatal("expected workflow pattern with three date-prefixed files")
	}
	if workflow.ID != "workflow:date-prefixed" {
		t.Fatalf("unexpected workflow id: %s", workflow.ID)
	}
	if workflow.Confidence <= 0 || workflow.Confidence > 1 {
		t.Fatalf("workflow confidence out of range: %v", workflow.Confidence)
	}
}

func TestDetectTechStackNeedsTwoCategories(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenCatalog(t, cfg)
	engine := newEngine(t, store, correlation.Config{})
	ctx := context.Background()

	seedFile(t, store, "/library/stack.md", []catalog.RawEntity{
		{Text: "Kubernetes", Label: "TECH", Confidence: 0.9},
		{Text: "PostgreSQL", Label: "TECH", Confidence: 0.9},
	})
	if _, err := engine.ConsolidateAll(ctx); err != nil {
		t.Fatalf("ConsolidateAll failed: %v", err)
	}

	matrix := &correlation.Matrix{Pairs: map[string]*correlation.Pair{}}
	patterns, err := engine.DetectAll(ctx, matrix)
	if err != nil {
		t.Fatalf("DetectAll failed: %v", err)
	}
	var stack *catalog.Pattern
	for _, pattern := range patterns {
		if pattern.Type == catalog.PatternHeuristic {
			stack = pattern
		}
	}
	if stack == nil {
		t.Fatal("expected tech-stack pattern with infrastructure + databases entities")
	}
	if stack.Confidence <= 0 || stack.Confidence > 1 {
		t.Fatalf("tech-stack confidence out of range: %v", stack.Confidence)
	}
}

func TestAllPatternConfidencesBounded(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenCatalog(t, cfg)
	engine := newEngine(t, store, correlation.Config{})
	ctx := context.Background()

	// A dense corpus that trips several detectors at once.
	for i := 0; i < 12; i++ {
		record := seedFile(t, store, fmt.Sprintf("/library/2026-02-%02d-devops.md", i+1), []catalog.RawEntity{
			{Text: "Kubernetes", Label: "TECH", Confidence: 0.9},
			{Text: "PostgreSQL", Label: "TECH", Confidence: 0.9},
			{Text: "Gabriel Smith", Label: "PERSON", Confidence: 0.7},
			{Text: "Acme Corp", Label: "ORG", Confidence: 0.8},
		})
		if err := store.ReplaceChunks(ctx, record.ID, []catalog.ChunkRecord{{
			FileID:        record.ID,
			ChunkIndex:    0,
			Content:       "docker kubernetes terraform helm deployment pipeline rollback monitoring prometheus grafana",
			ChunkType:     "paragraph",
			TokenEstimate: 13,
		}}); err != nil {
			t.Fatalf("ReplaceChunks failed: %v", err)
		}
		if err := store.SetFileStatus(ctx, record.ID, catalog.FileStatusIndexed, ""); err != nil {
			t.Fatalf("SetFileStatus failed: %v", err)
		}
	}

	report, err := engine.Run(ctx)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if report.Patterns == 0 {
		t.Fatal("expected at least one detected pattern")
	}

	patterns, err := store.ListPatterns(ctx, 0)
	if err != nil {
		t.Fatalf("ListPatterns failed: %v", err)
	}
	for _, pattern := range patterns {
		if pattern.Confidence < 0 || pattern.Confidence > 1 {
			t.Fatalf("pattern %s confidence out of [0,1]: %v", pattern.ID, pattern.Confidence)
		}
	}
}

func TestSurfaceGatesOnConfidenceAndSources(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenCatalog(t, cfg)
	engine := newEngine(t, store, correlation.Config{})
	ctx := context.Background()

	// Highly confident but single-source: must not surface.
	if err := store.UpsertPattern(ctx, &catalog.Pattern{
		ID:          "expertise:solo",
		Type:        catalog.PatternExpertise,
		Title:       "Solo-file expertise",
		Description: "one very confident file",
		Confidence:  0.95,
		FileIDs:     []int64{1},
	}); err != nil {
		t.Fatalf("UpsertPattern failed: %v", err)
	}
	// Modest confidence with broad corroboration: must surface.
	if err := store.UpsertPattern(ctx, &catalog.Pattern{
		ID:          "expertise:broad",
		Type:        catalog.PatternExpertise,
		Title:       "Broadly corroborated expertise",
		Description: "three files agree",
		Confidence:  0.71,
		FileIDs:     []int64{1, 2, 3},
	}); err != nil {
		t.Fatalf("UpsertPattern failed: %v", err)
	}
	// Below both gates.
	if err := store.UpsertPattern(ctx, &catalog.Pattern{
		ID:          "expertise:weak",
		Type:        catalog.PatternExpertise,
		Title:       "Weak signal",
		Description: "not enough",
		Confidence:  0.4,
		FileIDs:     []int64{1, 2},
	}); err != nil {
		t.Fatalf("UpsertPattern failed: %v", err)
	}

	surfaced, err := engine.Surface(ctx)
	if err != nil {
		t.Fatalf("Surface failed: %v", err)
	}
	if surfaced != 1 {
		t.Fatalf("expected exactly 1 surfaced discovery, got %d", surfaced)
	}

	discoveries, err := store.ListDiscoveries(ctx)
	if err != nil {
		t.Fatalf("ListDiscoveries failed: %v", err)
	}
	if len(discoveries) != 1 {
		t.Fatalf("expected 1 discovery, got %d", len(discoveries))
	}
	if discoveries[0].PatternID != "expertise:broad" {
		t.Fatalf("wrong pattern surfaced: %s", discoveries[0].PatternID)
	}
	if discoveries[0].Status != catalog.DiscoveryActive {
		t.Fatalf("expected active status, got %s", discoveries[0].Status)
	}
}
