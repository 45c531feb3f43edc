package pipeline_test

import (
	"context"
	"path/filepath"
	"testing"

	"chimera/internal/catalog"
	"chimera/internal/embedding"
	"chimera/internal/entities"
	"chimera/internal/extraction"
	"chimera/internal/pipeline"
	"chimera/internal/testsupport"
	"chimera/internal/vectorstore"
)

func newCoordinator(t *testing.T) (*pipeline.Coordinator, *catalog.Store, *vectorstore.SQLite, string) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenCatalog(t, cfg)
	vectors := testsupport.MustOpenVectors(t, cfg)

	coordinator := pipeline.New(
		extraction.NewRegistry(),
		pipeline.NewChunker(0, 0, 0),
		entities.NewHeuristic(),
		embedding.NewLocal(64),
		store,
		vectors,
		nil,
	)
	return coordinator, store, vectors, cfg.Paths.LibraryRoots[0]
}

func TestProcessFileIndexesMarkdown(t *testing.T) {
	coordinator, store, vectors, root := newCoordinator(t)
	ctx := context.Background()

	path := filepath.Join(root, "meeting-notes.md")
	testsupport.WriteTextFile(t, path, "# Sync\n\nGabriel Smith from Acme Corp walked us through the Kubernetes migration on 2026-03-14.\n")

	result, err := coordinator.ProcessFile(ctx, path)
	if err != nil {
		t.Fatalf("ProcessFile failed: %v", err)
	}
	if !result.Success || result.Skipped {
		t.Fatalf("unexpected result: %#v", result)
	}
	if result.ChunkCount == 0 {
		t.Fatal("expected chunks")
	}
	if result.EmbeddingCount != result.ChunkCount {
		t.Fatalf("embeddings (%d) should match chunks (%d)", result.EmbeddingCount, result.ChunkCount)
	}
	if result.EntityCount == 0 {
		t.Fatal("expected entities from the sample text")
	}

	record, err := store.GetFileByPath(ctx, path)
	if err != nil {
		t.Fatalf("GetFileByPath failed: %v", err)
	}
	if record == nil || record.Status != catalog.FileStatusIndexed {
		t.Fatalf("expected indexed record, got %#v", record)
	}

	chunks, err := store.ChunksByFile(ctx, record.ID)
	if err != nil {
		t.Fatalf("ChunksByFile failed: %v", err)
	}
	if len(chunks) != result.ChunkCount {
		t.Fatalf("stored %d chunks, result says %d", len(chunks), result.ChunkCount)
	}

	stored, err := vectors.Count(ctx)
	if err != nil {
		t.Fatalf("vector Count failed: %v", err)
	}
	if stored != result.EmbeddingCount {
		t.Fatalf("stored %d vectors, result says %d", stored, result.EmbeddingCount)
	}
}

func TestProcessFileSkipsUnchangedContent(t *testing.T) {
	coordinator, _, _, root := newCoordinator(t)
	ctx := context.Background()

	path := filepath.Join(root, "stable.txt")
	testsupport.WriteTextFile(t, path, "The same words every time.\n")

	first, err := coordinator.ProcessFile(ctx, path)
	if err != nil || !first.Success {
		t.Fatalf("first run failed: %#v (err %v)", first, err)
	}

	second, err := coordinator.ProcessFile(ctx, path)
	if err != nil {
		t.Fatalf("second run failed: %v", err)
	}
	if !second.Skipped || !second.Success {
		t.Fatalf("expected unchanged file to be skipped, got %#v", second)
	}

	testsupport.WriteTextFile(t, path, "Different words now, so reprocess.\n")
	third, err := coordinator.ProcessFile(ctx, path)
	if err != nil {
		t.Fatalf("third run failed: %v", err)
	}
	if third.Skipped || !third.Success {
		t.Fatalf("expected changed file to be reprocessed, got %#v", third)
	}
}

func TestProcessFileUnsupportedExtension(t *testing.T) {
	coordinator, store, _, root := newCoordinator(t)
	ctx := context.Background()

	path := filepath.Join(root, "movie.mkv")
	testsupport.WriteTextFile(t, path, "binary-ish")

	result, err := coordinator.ProcessFile(ctx, path)
	if err != nil {
		t.Fatalf("ProcessFile failed: %v", err)
	}
	if result.Success {
		t.Fatalf("unsupported file should not succeed: %#v", result)
	}
	if result.Error == "" {
		t.Fatal("expected a reason for the skip")
	}

	// Unsupported files never enter the catalog.
	record, err := store.GetFileByPath(ctx, path)
	if err != nil {
		t.Fatalf("GetFileByPath failed: %v", err)
	}
	if record != nil {
		t.Fatalf("unexpected catalog record: %#v", record)
	}
}

func TestProcessFileRecordsExtractionFailure(t *testing.T) {
	coordinator, store, _, root := newCoordinator(t)
	ctx := context.Background()

	path := filepath.Join(root, "broken.txt")
	testsupport.WriteTextFile(t, path, "ok prefix ")
	// Append invalid UTF-8 so extraction rejects the file.
	testsupport.WriteTextFile(t, path, "ok prefix \xff\xfe\xfd")

	result, err := coordinator.ProcessFile(ctx, path)
	if err != nil {
		t.Fatalf("ProcessFile returned system error: %v", err)
	}
	if result.Success {
		t.Fatalf("expected failure result, got %#v", result)
	}

	record, err := store.GetFileByPath(ctx, path)
	if err != nil {
		t.Fatalf("GetFileByPath failed: %v", err)
	}
	if record == nil || record.Status != catalog.FileStatusFailed {
		t.Fatalf("expected failed record, got %#v", record)
	}
	if record.Error == "" {
		t.Fatal("expected failure reason on the record")
	}
}

func TestProcessBatchIsolatesFailures(t *testing.T) {
	coordinator, _, _, root := newCoordinator(t)
	ctx := context.Background()

	good := filepath.Join(root, "good.md")
	bad := filepath.Join(root, "bad.txt")
	alsoGood := filepath.Join(root, "also-good.txt")
	testsupport.WriteTextFile(t, good, "# Fine\n\nperfectly fine content\n")
	testsupport.WriteTextFile(t, bad, "broken \xff\xfe")
	testsupport.WriteTextFile(t, alsoGood, "more fine content\n")

	results, err := coordinator.ProcessBatch(ctx, []string{good, bad, alsoGood})
	if err != nil {
		t.Fatalf("ProcessBatch failed: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if !results[0].Success || results[1].Success || !results[2].Success {
		t.Fatalf("unexpected outcomes: %#v %#v %#v", results[0], results[1], results[2])
	}
}
