package queue

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"chimera/internal/config"
)

// Store manages job persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the queue database and applies migrations.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(cfg.QueueDBPath())
}

// OpenPath opens the queue database at an explicit location.
func OpenPath(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.applyMigrations(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// Insert persists a new job. The job must be pending.
func (s *Store) Insert(ctx context.Context, job *Job) error {
	if job == nil {
		return errors.New("job is nil")
	}
	if job.Status != StatusPending {
		return fmt.Errorf("new job must be pending, got %s", job.Status)
	}
	payloadJSON, err := json.Marshal(job.Payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO jobs (id, type, status, priority, payload_json, created_at, retry_count)
         VALUES (?, ?, ?, ?, ?, ?, ?)`,
		job.ID,
		string(job.Type),
		string(job.Status),
		int(job.Priority),
		string(payloadJSON),
		job.CreatedAt.UTC().Format(time.RFC3339Nano),
		job.RetryCount,
	)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

// GetByID fetches a job by identifier, or nil when absent.
func (s *Store) GetByID(ctx context.Context, id string) (*Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// UpdateStatus applies a one-way status transition. The transition is
// validated against the current stored status inside a single UPDATE so
// concurrent writers cannot race a job backwards.
func (s *Store) UpdateStatus(ctx context.Context, id string, status Status, errorMessage string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)

	var res sql.Result
	var err error
	switch status {
	case StatusRunning:
		res, err = s.db.ExecContext(
			ctx,
			`UPDATE jobs SET status = ?, started_at = ?, error_message = NULL
             WHERE id = ? AND status = ?`,
			string(StatusRunning), now, id, string(StatusPending),
		)
	case StatusCompleted:
		res, err = s.db.ExecContext(
			ctx,
			`UPDATE jobs SET status = ?, completed_at = ?, error_message = NULL
             WHERE id = ? AND status = ?`,
			string(StatusCompleted), now, id, string(StatusRunning),
		)
	case StatusFailed:
		res, err = s.db.ExecContext(
			ctx,
			`UPDATE jobs SET status = ?, completed_at = ?, error_message = ?
             WHERE id = ? AND status IN (?, ?)`,
			string(StatusFailed), now, nullableString(errorMessage), id,
			string(StatusPending), string(StatusRunning),
		)
	default:
		return fmt.Errorf("cannot transition into status %q", status)
	}
	if err != nil {
		return fmt.Errorf("update job status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		current, getErr := s.GetByID(ctx, id)
		if getErr != nil {
			return getErr
		}
		if current == nil {
			return fmt.Errorf("job %s not found", id)
		}
		return fmt.Errorf("illegal transition %s -> %s for job %s", current.Status, status, id)
	}
	return nil
}

// PendingJobs returns all pending jobs ordered by priority then creation time.
func (s *Store) PendingJobs(ctx context.Context) ([]*Job, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE status = ? ORDER BY priority, created_at`,
		string(StatusPending),
	)
	if err != nil {
		return nil, fmt.Errorf("query pending jobs: %w", err)
	}
	defer rows.Close()
	return collectJobs(rows)
}

// List returns jobs filtered by status set (or all jobs when no status is
// provided), newest first, bounded by limit when positive.
func (s *Store) List(ctx context.Context, limit int, statuses ...Status) ([]*Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs`
	args := make([]any, 0, len(statuses)+1)
	if len(statuses) > 0 {
		query += ` WHERE status IN (` + makePlaceholders(len(statuses)) + `)`
		for _, status := range statuses {
			args = append(args, string(status))
		}
	}
	query += ` ORDER BY created_at DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()
	return collectJobs(rows)
}

// ResetStuckRunning returns jobs left in running state (a crashed worker)
// back to pending so rehydration can pick them up.
func (s *Store) ResetStuckRunning(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE jobs SET status = ?, started_at = NULL, error_message = NULL WHERE status = ?`,
		string(StatusPending), string(StatusRunning),
	)
	if err != nil {
		return 0, fmt.Errorf("reset stuck jobs: %w", err)
	}
	return res.RowsAffected()
}

// RetryFailed moves failed jobs back to pending and increments retry_count.
// With no ids it retries every failed job.
func (s *Store) RetryFailed(ctx context.Context, ids ...string) (int64, error) {
	base := `UPDATE jobs
        SET status = ?, started_at = NULL, completed_at = NULL,
            error_message = NULL, retry_count = retry_count + 1
        WHERE status = ?`
	args := []any{string(StatusPending), string(StatusFailed)}
	if len(ids) > 0 {
		base += ` AND id IN (` + makePlaceholders(len(ids)) + `)`
		for _, id := range ids {
			args = append(args, id)
		}
	}
	res, err := s.db.ExecContext(ctx, base, args...)
	if err != nil {
		return 0, fmt.Errorf("retry failed jobs: %w", err)
	}
	return res.RowsAffected()
}

// CleanupOldJobs removes terminal jobs older than age.
func (s *Store) CleanupOldJobs(ctx context.Context, age time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-age).Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(
		ctx,
		`DELETE FROM jobs WHERE status IN (?, ?) AND completed_at IS NOT NULL AND completed_at < ?`,
		string(StatusCompleted), string(StatusFailed), cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("cleanup old jobs: %w", err)
	}
	return res.RowsAffected()
}

// Clear removes all jobs from the queue database.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM jobs`)
	if err != nil {
		return 0, fmt.Errorf("clear jobs: %w", err)
	}
	return res.RowsAffected()
}

// Stats returns job counts grouped by status and pending depth per type.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	stats := Stats{PendingByType: make(map[Type]int)}

	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM jobs GROUP BY status`)
	if err != nil {
		return stats, fmt.Errorf("queue stats: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return stats, err
		}
		stats.Total += count
		switch Status(status) {
		case StatusPending:
			stats.Pending = count
		case StatusRunning:
			stats.Running = count
		case StatusCompleted:
			stats.Completed = count
		case StatusFailed:
			stats.Failed = count
		}
	}
	if err := rows.Err(); err != nil {
		return stats, err
	}

	typeRows, err := s.db.QueryContext(
		ctx,
		`SELECT type, COUNT(1) FROM jobs WHERE status = ? GROUP BY type`,
		string(StatusPending),
	)
	if err != nil {
		return stats, fmt.Errorf("queue stats by type: %w", err)
	}
	defer typeRows.Close()
	for typeRows.Next() {
		var jobType string
		var count int
		if err := typeRows.Scan(&jobType, &count); err != nil {
			return stats, err
		}
		stats.PendingByType[Type(jobType)] = count
	}
	return stats, typeRows.Err()
}

// CheckHealth returns diagnostic information about the queue database.
func (s *Store) CheckHealth(ctx context.Context) (DatabaseHealth, error) {
	health := DatabaseHealth{DBPath: s.path}

	if s.path == "" {
		return health, errors.New("queue database path is unknown")
	}

	info, err := os.Stat(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return health, nil
		}
		return health, fmt.Errorf("stat queue database: %w", err)
	}
	if info.IsDir() {
		return health, fmt.Errorf("queue database path %q is a directory", s.path)
	}
	health.DatabaseExists = true

	if s.db == nil {
		return health, errors.New("queue database connection unavailable")
	}

	connCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := s.db.PingContext(connCtx); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("ping queue database: %w", err)
	}
	health.DatabaseReadable = true

	var tableName string
	row := s.db.QueryRowContext(connCtx, "SELECT name FROM sqlite_master WHERE type = 'table' AND name = 'jobs'")
	if err := row.Scan(&tableName); err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			health.Error = err.Error()
			return health, fmt.Errorf("query table info: %w", err)
		}
	} else {
		health.TableExists = true
	}

	if health.TableExists {
		colsRows, err := s.db.QueryContext(connCtx, "PRAGMA table_info(jobs)")
		if err != nil {
			health.Error = err.Error()
			return health, fmt.Errorf("table info: %w", err)
		}
		defer colsRows.Close()

		var columns []string
		for colsRows.Next() {
			var (
				cid     int
				name    string
				typeStr string
				notNull int
				dflt    any
				pk      int
			)
			if err := colsRows.Scan(&cid, &name, &typeStr, &notNull, &dflt, &pk); err != nil {
				health.Error = err.Error()
				return health, fmt.Errorf("scan table info: %w", err)
			}
			columns = append(columns, name)
		}
		if err := colsRows.Err(); err != nil {
			health.Error = err.Error()
			return health, fmt.Errorf("iterate table info: %w", err)
		}
		health.ColumnsPresent = append(health.ColumnsPresent, columns...)

		expected := []string{"id", "type", "status", "priority", "payload_json", "created_at", "started_at", "completed_at", "error_message", "retry_count"}
		missingMap := make(map[string]struct{}, len(expected))
		for _, col := range expected {
			missingMap[col] = struct{}{}
		}
		for _, col := range columns {
			delete(missingMap, col)
		}
		for col := range missingMap {
			health.MissingColumns = append(health.MissingColumns, col)
		}

		row = s.db.QueryRowContext(connCtx, "SELECT COUNT(*) FROM jobs")
		if err := row.Scan(&health.TotalJobs); err != nil {
			health.Error = err.Error()
			return health, fmt.Errorf("count jobs: %w", err)
		}
	}

	row = s.db.QueryRowContext(connCtx, "PRAGMA integrity_check")
	var integrityResult string
	if err := row.Scan(&integrityResult); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("integrity check: %w", err)
	}
	health.IntegrityCheck = strings.EqualFold(integrityResult, "ok")

	return health, nil
}

const jobColumns = "id, type, status, priority, payload_json, created_at, started_at, completed_at, error_message, retry_count"

func scanJob(scanner interface{ Scan(dest ...any) error }) (*Job, error) {
	var (
		id           string
		jobType      string
		statusStr    string
		priority     int
		payloadRaw   sql.NullString
		createdRaw   string
		startedRaw   sql.NullString
		completedRaw sql.NullString
		errorMessage sql.NullString
		retryCount   int
	)

	if err := scanner.Scan(
		&id,
		&jobType,
		&statusStr,
		&priority,
		&payloadRaw,
		&createdRaw,
		&startedRaw,
		&completedRaw,
		&errorMessage,
		&retryCount,
	); err != nil {
		return nil, err
	}

	job := &Job{
		ID:         id,
		Type:       Type(jobType),
		Status:     Status(statusStr),
		Priority:   Priority(priority),
		Error:      errorMessage.String,
		RetryCount: retryCount,
	}
	if payloadRaw.Valid && payloadRaw.String != "" {
		if err := json.Unmarshal([]byte(payloadRaw.String), &job.Payload); err != nil {
			return nil, fmt.Errorf("decode payload for job %s: %w", id, err)
		}
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		job.CreatedAt = created
	}
	if startedRaw.Valid {
		if started, err := parseTimeString(startedRaw.String); err == nil {
			job.StartedAt = &started
		}
	}
	if completedRaw.Valid {
		if completed, err := parseTimeString(completedRaw.String); err == nil {
			job.CompletedAt = &completed
		}
	}
	return job, nil
}

func collectJobs(rows *sql.Rows) ([]*Job, error) {
	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
