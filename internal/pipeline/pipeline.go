// Package pipeline runs the per-file indexing sequence: extract, chunk,
// extract entities, embed, store. Each stage is fail-soft per file: a
// failure aborts the remaining stages for that file only and is recorded on
// the file record, never propagated as a system error.
package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"chimera/internal/catalog"
	"chimera/internal/embedding"
	"chimera/internal/entities"
	"chimera/internal/extraction"
	"chimera/internal/logging"
	"chimera/internal/vectorstore"
)

// Result reports the outcome of processing one file.
type Result struct {
	Path           string
	Success        bool
	Skipped        bool
	Error          string
	ChunkCount     int
	EntityCount    int
	EmbeddingCount int
	StageDurations map[string]time.Duration
}

// Coordinator wires the stage collaborators together.
type Coordinator struct {
	registry *extraction.Registry
	chunker  *Chunker
	entities entities.Extractor
	embedder embedding.Embedder
	catalog  *catalog.Store
	vectors  vectorstore.Store
	logger   *slog.Logger
}

// New builds a Coordinator.
func New(
	registry *extraction.Registry,
	chunker *Chunker,
	entityExtractor entities.Extractor,
	embedder embedding.Embedder,
	catalogStore *catalog.Store,
	vectors vectorstore.Store,
	logger *slog.Logger,
) *Coordinator {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Coordinator{
		registry: registry,
		chunker:  chunker,
		entities: entityExtractor,
		embedder: embedder,
		catalog:  catalogStore,
		vectors:  vectors,
		logger:   logging.NewComponentLogger(logger, "pipeline"),
	}
}

// ProcessFile runs the full stage sequence for one path. The returned
// Result carries any failure; the error return is reserved for context
// cancellation.
func (c *Coordinator) ProcessFile(ctx context.Context, path string) (*Result, error) {
	result := &Result{Path: path, StageDurations: make(map[string]time.Duration)}

	if !c.registry.Supported(path) {
		result.Error = fmt.Sprintf("no extractor for %s", path)
		c.logger.Debug("skipping unsupported file", logging.Args(logging.String(logging.FieldFilePath, path))...)
		return result, nil
	}

	info, err := os.Stat(path)
	if err != nil {
		result.Error = fmt.Sprintf("stat file: %v", err)
		return result, nil
	}
	hash, err := hashFile(path)
	if err != nil {
		result.Error = fmt.Sprintf("hash file: %v", err)
		return result, nil
	}

	existing, err := c.catalog.GetFileByPath(ctx, path)
	if err != nil {
		return nil, err
	}
	if existing != nil && existing.ContentHash == hash && existing.Status == catalog.FileStatusIndexed {
		result.Success = true
		result.Skipped = true
		return result, nil
	}

	record, err := c.catalog.UpsertFile(ctx, &catalog.FileRecord{
		Path:        path,
		ContentHash: hash,
		SizeBytes:   info.Size(),
		ModifiedAt:  info.ModTime(),
	})
	if err != nil {
		return nil, err
	}

	extractStart := time.Now()
	extracted, err := c.registry.Extract(path)
	result.StageDurations["extract"] = time.Since(extractStart)
	if err != nil {
		return result, c.failFile(ctx, record.ID, result, fmt.Sprintf("extract: %v", err))
	}

	chunkStart := time.Now()
	var chunks []Chunk
	if extracted.Kind == extraction.KindCode {
		chunks = c.chunker.ChunkCode(extracted.Text, extracted.Language)
	} else {
		chunks = c.chunker.ChunkText(extracted.Text)
	}
	result.StageDurations["chunk"] = time.Since(chunkStart)
	result.ChunkCount = len(chunks)

	entityStart := time.Now()
	rawEntities, err := c.entities.Extract(ctx, extracted.Text)
	result.StageDurations["entities"] = time.Since(entityStart)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return result, c.failFile(ctx, record.ID, result, fmt.Sprintf("extract entities: %v", err))
	}
	result.EntityCount = len(rawEntities)

	embedStart := time.Now()
	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Content
	}
	vectors, err := c.embedder.EmbedBatch(ctx, texts)
	result.StageDurations["embed"] = time.Since(embedStart)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return result, c.failFile(ctx, record.ID, result, fmt.Sprintf("embed chunks: %v", err))
	}
	result.EmbeddingCount = len(vectors)

	storeStart := time.Now()
	if err := c.persist(ctx, record, chunks, rawEntities, vectors); err != nil {
		result.StageDurations["store"] = time.Since(storeStart)
		return result, c.failFile(ctx, record.ID, result, fmt.Sprintf("persist: %v", err))
	}
	if err := c.catalog.SetFileStatus(ctx, record.ID, catalog.FileStatusIndexed, ""); err != nil {
		return nil, err
	}
	result.StageDurations["store"] = time.Since(storeStart)

	result.Success = true
	c.logger.Info("file indexed",
		logging.Args(
			logging.String(logging.FieldFilePath, path),
			logging.Int("chunks", result.ChunkCount),
			logging.Int("entities", result.EntityCount),
		)...)
	return result, nil
}

// ProcessBatch runs files sequentially with per-file isolation. One bad
// file never stops the batch.
func (c *Coordinator) ProcessBatch(ctx context.Context, paths []string) ([]*Result, error) {
	results := make([]*Result, 0, len(paths))
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		result, err := c.ProcessFile(ctx, path)
		if err != nil {
			return results, err
		}
		if !result.Success {
			c.logger.Warn("file failed",
				logging.Args(
					logging.String(logging.FieldFilePath, path),
					logging.String("reason", result.Error),
				)...)
		}
		results = append(results, result)
	}
	return results, nil
}

// failFile records a per-file failure on the file record. Storage errors
// while recording are the only errors that escape.
func (c *Coordinator) failFile(ctx context.Context, fileID int64, result *Result, reason string) error {
	result.Error = reason
	return c.catalog.SetFileStatus(ctx, fileID, catalog.FileStatusFailed, reason)
}

func (c *Coordinator) persist(ctx context.Context, record *catalog.FileRecord, chunks []Chunk, rawEntities []catalog.RawEntity, vectors [][]float32) error {
	chunkRecords := make([]catalog.ChunkRecord, len(chunks))
	for i, chunk := range chunks {
		chunkRecords[i] = catalog.ChunkRecord{
			FileID:        record.ID,
			ChunkIndex:    i,
			Content:       chunk.Content,
			ChunkType:     chunk.Type,
			TokenEstimate: chunk.TokenEstimate,
		}
	}
	if err := c.catalog.ReplaceChunks(ctx, record.ID, chunkRecords); err != nil {
		return err
	}
	if err := c.catalog.ReplaceEntities(ctx, record.ID, rawEntities); err != nil {
		return err
	}

	ids := make([]string, len(vectors))
	metadata := make([]map[string]string, len(vectors))
	for i := range vectors {
		ids[i] = fmt.Sprintf("file:%d:chunk:%d", record.ID, i)
		metadata[i] = map[string]string{
			"path":       record.Path,
			"chunk_type": chunks[i].Type,
		}
	}
	if len(ids) == 0 {
		return nil
	}
	return c.vectors.Add(ctx, ids, vectors, metadata)
}

func hashFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
