// Package vectorstore stores chunk embeddings and answers nearest-neighbor
// queries. The SQLite implementation is brute-force cosine over all stored
// vectors, which is adequate for a single user's corpus; swapping in an
// ANN-backed Store is a drop-in replacement.
package vectorstore

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"sort"

	_ "modernc.org/sqlite"
)

// Match is one ranked query result.
type Match struct {
	ID       string
	Score    float64
	Metadata map[string]string
}

// Store is the vector persistence capability the pipeline depends on.
type Store interface {
	Add(ctx context.Context, ids []string, vectors [][]float32, metadata []map[string]string) error
	Query(ctx context.Context, vector []float32, k int) ([]Match, error)
	Count(ctx context.Context) (int, error)
	Close() error
}

// SQLite is a Store backed by a single SQLite table.
type SQLite struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the vector database.
func Open(dbPath string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout = 5000"} {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS vectors (
        id TEXT PRIMARY KEY,
        vector BLOB NOT NULL,
        metadata_json TEXT NOT NULL DEFAULT '{}'
    )`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create vectors table: %w", err)
	}
	return &SQLite{db: db, path: dbPath}, nil
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Add upserts vectors by id. ids, vectors, and metadata must be the same
// length; metadata may be nil.
func (s *SQLite) Add(ctx context.Context, ids []string, vectors [][]float32, metadata []map[string]string) error {
	if len(ids) != len(vectors) {
		return fmt.Errorf("ids/vectors length mismatch: %d vs %d", len(ids), len(vectors))
	}
	if metadata != nil && len(metadata) != len(ids) {
		return fmt.Errorf("ids/metadata length mismatch: %d vs %d", len(ids), len(metadata))
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin vector tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for i, id := range ids {
		metaJSON := "{}"
		if metadata != nil && metadata[i] != nil {
			metaJSON = encodeMetadata(metadata[i])
		}
		if _, err := tx.ExecContext(
			ctx,
			`INSERT INTO vectors (id, vector, metadata_json) VALUES (?, ?, ?)
             ON CONFLICT (id) DO UPDATE SET vector = excluded.vector, metadata_json = excluded.metadata_json`,
			id, encodeVector(vectors[i]), metaJSON,
		); err != nil {
			return fmt.Errorf("upsert vector %s: %w", id, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit vectors: %w", err)
	}
	return nil
}

// Query returns the k nearest vectors by cosine similarity.
func (s *SQLite) Query(ctx context.Context, vector []float32, k int) ([]Match, error) {
	if k <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, vector, metadata_json FROM vectors`)
	if err != nil {
		return nil, fmt.Errorf("query vectors: %w", err)
	}
	defer rows.Close()

	var matches []Match
	for rows.Next() {
		var id string
		var blob []byte
		var metaJSON string
		if err := rows.Scan(&id, &blob, &metaJSON); err != nil {
			return nil, err
		}
		candidate, err := decodeVector(blob)
		if err != nil {
			return nil, fmt.Errorf("decode vector %s: %w", id, err)
		}
		matches = append(matches, Match{
			ID:       id,
			Score:    cosine(vector, candidate),
			Metadata: decodeMetadata(metaJSON),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].ID < matches[j].ID
	})
	if len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

// Count returns the number of stored vectors.
func (s *SQLite) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM vectors`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count vectors: %w", err)
	}
	return count, nil
}

func encodeVector(vector []float32) []byte {
	buf := make([]byte, 4*len(vector))
	for i, v := range vector {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

func decodeVector(blob []byte) ([]float32, error) {
	if len(blob)%4 != 0 {
		return nil, fmt.Errorf("blob length %d is not a multiple of 4", len(blob))
	}
	vector := make([]float32, len(blob)/4)
	for i := range vector {
		vector[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4:]))
	}
	return vector, nil
}

func encodeMetadata(metadata map[string]string) string {
	data, err := json.Marshal(metadata)
	if err != nil {
		return "{}"
	}
	return string(data)
}

func decodeMetadata(raw string) map[string]string {
	if raw == "" || raw == "{}" {
		return nil
	}
	var metadata map[string]string
	if err := json.Unmarshal([]byte(raw), &metadata); err != nil {
		return nil
	}
	return metadata
}

func cosine(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
