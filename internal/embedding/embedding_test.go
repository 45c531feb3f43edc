package embedding_test

import (
	"context"
	"math"
	"testing"

	"chimera/internal/embedding"
)

func TestLocalEmbedIsDeterministic(t *testing.T) {
	embedder := embedding.NewLocal(128)
	ctx := context.Background()

	first, err := embedder.Embed(ctx, "the quick brown fox")
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	second, err := embedder.Embed(ctx, "the quick brown fox")
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	if len(first) != 128 || len(second) != 128 {
		t.Fatalf("unexpected dimensions: %d, %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("vectors diverge at %d: %f vs %f", i, first[i], second[i])
		}
	}
}

func TestLocalEmbedIsNormalized(t *testing.T) {
	embedder := embedding.NewLocal(0)
	if embedder.Dimension() != embedding.DefaultLocalDimension {
		t.Fatalf("zero dimension should fall back to default, got %d", embedder.Dimension())
	}

	vector, err := embedder.Embed(context.Background(), "words spread over several hash buckets")
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	var norm float64
	for _, v := range vector {
		norm += float64(v) * float64(v)
	}
	if math.Abs(norm-1) > 1e-5 {
		t.Fatalf("expected unit vector, got squared norm %f", norm)
	}
}

func TestLocalEmbedEmptyText(t *testing.T) {
	vector, err := embedding.NewLocal(32).Embed(context.Background(), "   ")
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	for i, v := range vector {
		if v != 0 {
			t.Fatalf("empty text produced nonzero component at %d: %f", i, v)
		}
	}
}

func TestLocalEmbedBatch(t *testing.T) {
	embedder := embedding.NewLocal(64)
	ctx := context.Background()

	texts := []string{"alpha", "beta", "alpha"}
	vectors, err := embedder.EmbedBatch(ctx, texts)
	if err != nil {
		t.Fatalf("EmbedBatch failed: %v", err)
	}
	if len(vectors) != 3 {
		t.Fatalf("expected 3 vectors, got %d", len(vectors))
	}
	for i := range vectors[0] {
		if vectors[0][i] != vectors[2][i] {
			t.Fatal("identical texts should embed identically")
		}
	}
}

func TestLocalEmbedHonorsCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := embedding.NewLocal(16).Embed(ctx, "text"); err == nil {
		t.Fatal("expected context error")
	}
}

func TestNewSelectsProvider(t *testing.T) {
	local, err := embedding.New(embedding.Config{Provider: embedding.ProviderLocal, Dimension: 48})
	if err != nil {
		t.Fatalf("New(local) failed: %v", err)
	}
	if local.Dimension() != 48 {
		t.Fatalf("unexpected dimension: %d", local.Dimension())
	}

	fallback, err := embedding.New(embedding.Config{})
	if err != nil {
		t.Fatalf("New(empty) failed: %v", err)
	}
	if fallback.Model() != local.Model() {
		t.Fatalf("empty provider should default to local, got %s", fallback.Model())
	}

	if _, err := embedding.New(embedding.Config{Provider: "openai"}); err == nil {
		t.Fatal("expected unknown provider to error")
	}
}
