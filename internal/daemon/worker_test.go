package daemon

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"chimera/internal/correlation"
	"chimera/internal/embedding"
	"chimera/internal/entities"
	"chimera/internal/extraction"
	"chimera/internal/pipeline"
	"chimera/internal/queue"
	"chimera/internal/testsupport"
)

func TestRunJobFinishesAfterShutdownSignal(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenQueueStore(t, cfg)
	q := queue.New(store, nil)
	catalogStore := testsupport.MustOpenCatalog(t, cfg)
	vectors := testsupport.MustOpenVectors(t, cfg)

	coordinator := pipeline.New(
		extraction.NewRegistry(),
		pipeline.NewChunker(0, 0, 0),
		entities.NewHeuristic(),
		embedding.NewLocal(64),
		catalogStore,
		vectors,
		nil,
	)
	engine := correlation.New(catalogStore, correlation.Config{}, nil)

	d, err := New(cfg, Deps{
		Queue:       q,
		Catalog:     catalogStore,
		Vectors:     vectors,
		Pipeline:    coordinator,
		Correlation: engine,
	}, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	path := filepath.Join(cfg.Paths.LibraryRoots[0], "notes.md")
	testsupport.WriteTextFile(t, path, "# Notes\n\nShipping plans for the week.\n")

	job, err := queue.NewFileExtractionJob(path, queue.PriorityUserTriggered)
	if err != nil {
		t.Fatalf("NewFileExtractionJob failed: %v", err)
	}
	if _, err := q.Enqueue(context.Background(), job); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	popped, err := q.Dequeue(context.Background(), time.Second)
	if err != nil || popped == nil {
		t.Fatalf("Dequeue failed: %v", err)
	}

	// Shutdown may fire the instant a job is handed to the worker. The job
	// must still run to completion, not die mid-flight.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d.runJob(ctx, popped)

	fetched, err := store.GetByID(context.Background(), popped.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if fetched.Status != queue.StatusCompleted {
		t.Fatalf("job status after shutdown signal = %s, want completed", fetched.Status)
	}
}
