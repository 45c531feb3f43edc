package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// UpsertPattern writes a pattern keyed by its derived ID; a rerun of the
// detectors overwrites the previous row.
func (s *Store) UpsertPattern(ctx context.Context, pattern *Pattern) error {
	if pattern == nil {
		return errors.New("pattern is nil")
	}
	evidenceJSON, err := marshalJSON(pattern.Evidence)
	if err != nil {
		return err
	}
	fileIDsJSON, err := marshalJSON(pattern.FileIDs)
	if err != nil {
		return err
	}
	entityKeysJSON, err := marshalJSON(pattern.EntityKeys)
	if err != nil {
		return err
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)

	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO patterns (id, type, title, description, confidence, evidence_json, file_ids_json, entity_keys_json, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
         ON CONFLICT (id) DO UPDATE SET
            type = excluded.type,
            title = excluded.title,
            description = excluded.description,
            confidence = excluded.confidence,
            evidence_json = excluded.evidence_json,
            file_ids_json = excluded.file_ids_json,
            entity_keys_json = excluded.entity_keys_json,
            updated_at = excluded.updated_at`,
		pattern.ID,
		string(pattern.Type),
		pattern.Title,
		pattern.Description,
		pattern.Confidence,
		evidenceJSON,
		fileIDsJSON,
		entityKeysJSON,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("upsert pattern: %w", err)
	}
	return nil
}

// ListPatterns returns patterns above a confidence floor, strongest first.
func (s *Store) ListPatterns(ctx context.Context, minConfidence float64) ([]*Pattern, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+patternColumns+` FROM patterns WHERE confidence >= ? ORDER BY confidence DESC, id`,
		minConfidence,
	)
	if err != nil {
		return nil, fmt.Errorf("list patterns: %w", err)
	}
	defer rows.Close()

	var patterns []*Pattern
	for rows.Next() {
		pattern, err := scanPattern(rows)
		if err != nil {
			return nil, err
		}
		patterns = append(patterns, pattern)
	}
	return patterns, rows.Err()
}

// UpsertDiscovery inserts a discovery, deduplicated by (type, lowercased
// title). An existing row keeps its status and feedback; only the scoring
// fields refresh.
func (s *Store) UpsertDiscovery(ctx context.Context, discovery *Discovery) error {
	if discovery == nil {
		return errors.New("discovery is nil")
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO discoveries (pattern_id, type, title, description, confidence, source_count, status, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
         ON CONFLICT (type, lower(title)) DO UPDATE SET
            pattern_id = excluded.pattern_id,
            description = excluded.description,
            confidence = excluded.confidence,
            source_count = excluded.source_count,
            updated_at = excluded.updated_at`,
		discovery.PatternID,
		string(discovery.Type),
		discovery.Title,
		discovery.Description,
		discovery.Confidence,
		discovery.SourceCount,
		string(DiscoveryActive),
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("upsert discovery: %w", err)
	}
	return nil
}

// ListDiscoveries returns discoveries filtered by optional status, strongest
// first.
func (s *Store) ListDiscoveries(ctx context.Context, statuses ...DiscoveryStatus) ([]*Discovery, error) {
	query := `SELECT ` + discoveryColumns + ` FROM discoveries`
	args := make([]any, 0, len(statuses))
	if len(statuses) > 0 {
		query += ` WHERE status IN (` + makePlaceholders(len(statuses)) + `)`
		for _, status := range statuses {
			args = append(args, string(status))
		}
	}
	query += ` ORDER BY confidence DESC, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list discoveries: %w", err)
	}
	defer rows.Close()

	var discoveries []*Discovery
	for rows.Next() {
		discovery, err := scanDiscovery(rows)
		if err != nil {
			return nil, err
		}
		discoveries = append(discoveries, discovery)
	}
	return discoveries, rows.Err()
}

// GetDiscovery fetches one discovery by id, or nil when absent.
func (s *Store) GetDiscovery(ctx context.Context, id int64) (*Discovery, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+discoveryColumns+` FROM discoveries WHERE id = ?`, id)
	discovery, err := scanDiscovery(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get discovery: %w", err)
	}
	return discovery, nil
}

// SetDiscoveryStatus applies the one-way active -> confirmed|dismissed
// transition, optionally recording user feedback.
func (s *Store) SetDiscoveryStatus(ctx context.Context, id int64, status DiscoveryStatus, feedback string) error {
	if status != DiscoveryConfirmed && status != DiscoveryDismissed {
		return fmt.Errorf("cannot transition discovery into status %q", status)
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE discoveries SET status = ?, feedback = ?, updated_at = ?
         WHERE id = ? AND status = ?`,
		string(status), nullableString(strings.TrimSpace(feedback)), now, id, string(DiscoveryActive),
	)
	if err != nil {
		return fmt.Errorf("set discovery status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		current, getErr := s.GetDiscovery(ctx, id)
		if getErr != nil {
			return getErr
		}
		if current == nil {
			return fmt.Errorf("discovery %d not found", id)
		}
		return fmt.Errorf("discovery %d is already %s", id, current.Status)
	}
	return nil
}

const patternColumns = "id, type, title, description, confidence, evidence_json, file_ids_json, entity_keys_json, created_at, updated_at"

func scanPattern(scanner interface{ Scan(dest ...any) error }) (*Pattern, error) {
	var (
		id            string
		patternType   string
		title         string
		description   string
		confidence    float64
		evidenceRaw   string
		fileIDsRaw    string
		entityKeysRaw string
		createdRaw    string
		updatedRaw    string
	)
	if err := scanner.Scan(
		&id, &patternType, &title, &description, &confidence,
		&evidenceRaw, &fileIDsRaw, &entityKeysRaw, &createdRaw, &updatedRaw,
	); err != nil {
		return nil, err
	}

	pattern := &Pattern{
		ID:          id,
		Type:        PatternType(patternType),
		Title:       title,
		Description: description,
		Confidence:  confidence,
		Evidence:    unmarshalStrings(evidenceRaw),
		FileIDs:     unmarshalInt64s(fileIDsRaw),
		EntityKeys:  unmarshalStrings(entityKeysRaw),
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		pattern.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		pattern.UpdatedAt = updated
	}
	return pattern, nil
}

const discoveryColumns = "id, pattern_id, type, title, description, confidence, source_count, status, feedback, created_at, updated_at"

func scanDiscovery(scanner interface{ Scan(dest ...any) error }) (*Discovery, error) {
	var (
		id          int64
		patternID   string
		dtype       string
		title       string
		description string
		confidence  float64
		sourceCount int
		statusStr   string
		feedback    sql.NullString
		createdRaw  string
		updatedRaw  string
	)
	if err := scanner.Scan(
		&id, &patternID, &dtype, &title, &description, &confidence,
		&sourceCount, &statusStr, &feedback, &createdRaw, &updatedRaw,
	); err != nil {
		return nil, err
	}

	discovery := &Discovery{
		ID:          id,
		PatternID:   patternID,
		Type:        PatternType(dtype),
		Title:       title,
		Description: description,
		Confidence:  confidence,
		SourceCount: sourceCount,
		Status:      DiscoveryStatus(statusStr),
		Feedback:    feedback.String,
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		discovery.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		discovery.UpdatedAt = updated
	}
	return discovery, nil
}
