package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// UpsertFile inserts or updates the record for a path, keyed by path. A
// changed content hash resets the status to pending.
func (s *Store) UpsertFile(ctx context.Context, record *FileRecord) (*FileRecord, error) {
	if record == nil {
		return nil, errors.New("file record is nil")
	}
	now := time.Now().UTC()
	timestamp := now.Format(time.RFC3339Nano)

	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO files (path, content_hash, size_bytes, modified_at, status, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?)
         ON CONFLICT (path) DO UPDATE SET
            content_hash = excluded.content_hash,
            size_bytes = excluded.size_bytes,
            modified_at = excluded.modified_at,
            status = CASE
                WHEN files.content_hash = excluded.content_hash THEN files.status
                ELSE 'pending'
            END,
            error_message = NULL,
            updated_at = excluded.updated_at`,
		record.Path,
		record.ContentHash,
		record.SizeBytes,
		record.ModifiedAt.UTC().Format(time.RFC3339Nano),
		string(FileStatusPending),
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("upsert file: %w", err)
	}
	return s.GetFileByPath(ctx, record.Path)
}

// GetFileByPath fetches a file record, or nil when absent.
func (s *Store) GetFileByPath(ctx context.Context, path string) (*FileRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+fileColumns+` FROM files WHERE path = ?`, path)
	record, err := scanFile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get file: %w", err)
	}
	return record, nil
}

// SetFileStatus transitions a file's pipeline status, recording the error
// message for failures and the indexing timestamp for success.
func (s *Store) SetFileStatus(ctx context.Context, fileID int64, status FileStatus, errorMessage string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	var indexedAt any
	if status == FileStatusIndexed {
		indexedAt = now
	}
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE files SET status = ?, error_message = ?, indexed_at = COALESCE(?, indexed_at), updated_at = ? WHERE id = ?`,
		string(status),
		nullableString(errorMessage),
		indexedAt,
		now,
		fileID,
	)
	if err != nil {
		return fmt.Errorf("set file status: %w", err)
	}
	return nil
}

// ListFiles returns files filtered by optional status.
func (s *Store) ListFiles(ctx context.Context, statuses ...FileStatus) ([]*FileRecord, error) {
	query := `SELECT ` + fileColumns + ` FROM files`
	args := make([]any, 0, len(statuses))
	if len(statuses) > 0 {
		query += ` WHERE status IN (` + makePlaceholders(len(statuses)) + `)`
		for _, status := range statuses {
			args = append(args, string(status))
		}
	}
	query += ` ORDER BY path`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	defer rows.Close()

	var records []*FileRecord
	for rows.Next() {
		record, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// ReplaceChunks swaps a file's chunk set atomically.
func (s *Store) ReplaceChunks(ctx context.Context, fileID int64, chunks []ChunkRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin chunk tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE file_id = ?`, fileID); err != nil {
		return fmt.Errorf("delete old chunks: %w", err)
	}
	for _, chunk := range chunks {
		if _, err := tx.ExecContext(
			ctx,
			`INSERT INTO chunks (file_id, chunk_index, content, chunk_type, token_estimate)
             VALUES (?, ?, ?, ?, ?)`,
			fileID, chunk.ChunkIndex, chunk.Content, chunk.ChunkType, chunk.TokenEstimate,
		); err != nil {
			return fmt.Errorf("insert chunk %d: %w", chunk.ChunkIndex, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit chunks: %w", err)
	}
	return nil
}

// ChunksByFile returns a file's chunks ordered by index.
func (s *Store) ChunksByFile(ctx context.Context, fileID int64) ([]ChunkRecord, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, file_id, chunk_index, content, chunk_type, token_estimate
         FROM chunks WHERE file_id = ? ORDER BY chunk_index`,
		fileID,
	)
	if err != nil {
		return nil, fmt.Errorf("query chunks: %w", err)
	}
	defer rows.Close()

	var chunks []ChunkRecord
	for rows.Next() {
		var chunk ChunkRecord
		if err := rows.Scan(&chunk.ID, &chunk.FileID, &chunk.ChunkIndex, &chunk.Content, &chunk.ChunkType, &chunk.TokenEstimate); err != nil {
			return nil, err
		}
		chunks = append(chunks, chunk)
	}
	return chunks, rows.Err()
}

// FileText joins a file id with its full extracted text.
type FileText struct {
	FileID int64
	Path   string
	Text   string
}

// IndexedFileTexts returns per-file concatenated chunk content for every
// indexed file. The expertise detector scans these.
func (s *Store) IndexedFileTexts(ctx context.Context) ([]FileText, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT f.id, f.path, COALESCE(GROUP_CONCAT(c.content, char(10)), '')
         FROM files f
         LEFT JOIN chunks c ON c.file_id = f.id
         WHERE f.status = 'indexed'
         GROUP BY f.id, f.path
         ORDER BY f.id`,
	)
	if err != nil {
		return nil, fmt.Errorf("query file texts: %w", err)
	}
	defer rows.Close()

	var texts []FileText
	for rows.Next() {
		var ft FileText
		if err := rows.Scan(&ft.FileID, &ft.Path, &ft.Text); err != nil {
			return nil, err
		}
		texts = append(texts, ft)
	}
	return texts, rows.Err()
}

// ReplaceEntities swaps a file's raw entity set atomically.
func (s *Store) ReplaceEntities(ctx context.Context, fileID int64, entities []RawEntity) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin entity tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM entities WHERE file_id = ?`, fileID); err != nil {
		return fmt.Errorf("delete old entities: %w", err)
	}
	for _, entity := range entities {
		if _, err := tx.ExecContext(
			ctx,
			`INSERT INTO entities (file_id, text, label, start_offset, end_offset, confidence, context)
             VALUES (?, ?, ?, ?, ?, ?, ?)`,
			fileID, entity.Text, entity.Label, entity.Start, entity.End, entity.Confidence, entity.Context,
		); err != nil {
			return fmt.Errorf("insert entity %q: %w", entity.Text, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit entities: %w", err)
	}
	return nil
}

// AllRawOccurrences returns every raw entity occurrence joined with its
// source file's path and modification time, the working set for a
// consolidation pass.
func (s *Store) AllRawOccurrences(ctx context.Context) ([]RawOccurrence, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT e.id, e.file_id, e.text, e.label, e.start_offset, e.end_offset,
                e.confidence, e.context, f.path, COALESCE(f.modified_at, f.created_at)
         FROM entities e
         JOIN files f ON f.id = e.file_id
         ORDER BY e.id`,
	)
	if err != nil {
		return nil, fmt.Errorf("query raw occurrences: %w", err)
	}
	defer rows.Close()

	var occurrences []RawOccurrence
	for rows.Next() {
		var occ RawOccurrence
		var modifiedRaw string
		if err := rows.Scan(
			&occ.Entity.ID,
			&occ.Entity.FileID,
			&occ.Entity.Text,
			&occ.Entity.Label,
			&occ.Entity.Start,
			&occ.Entity.End,
			&occ.Entity.Confidence,
			&occ.Entity.Context,
			&occ.FilePath,
			&modifiedRaw,
		); err != nil {
			return nil, err
		}
		if modified, err := parseTimeString(modifiedRaw); err == nil {
			occ.FileModified = modified
		}
		occurrences = append(occurrences, occ)
	}
	return occurrences, rows.Err()
}

const fileColumns = "id, path, content_hash, size_bytes, modified_at, status, error_message, indexed_at, created_at, updated_at"

func scanFile(scanner interface{ Scan(dest ...any) error }) (*FileRecord, error) {
	var (
		id           int64
		path         string
		contentHash  string
		sizeBytes    int64
		modifiedRaw  sql.NullString
		statusStr    string
		errorMessage sql.NullString
		indexedRaw   sql.NullString
		createdRaw   string
		updatedRaw   string
	)
	if err := scanner.Scan(
		&id, &path, &contentHash, &sizeBytes, &modifiedRaw, &statusStr,
		&errorMessage, &indexedRaw, &createdRaw, &updatedRaw,
	); err != nil {
		return nil, err
	}

	record := &FileRecord{
		ID:          id,
		Path:        path,
		ContentHash: contentHash,
		SizeBytes:   sizeBytes,
		Status:      FileStatus(statusStr),
		Error:       errorMessage.String,
		IndexedAt:   parseNullableTime(indexedRaw),
	}
	if modifiedRaw.Valid {
		if modified, err := parseTimeString(modifiedRaw.String); err == nil {
			record.ModifiedAt = modified
		}
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		record.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		record.UpdatedAt = updated
	}
	return record, nil
}
