package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// UpsertConsolidatedEntity writes the canonical form for its
// (entity_type, normalized_value) key, replacing any previous row. The
// consolidation pass rebuilds every key it touches, so last write wins.
func (s *Store) UpsertConsolidatedEntity(ctx context.Context, entity *ConsolidatedEntity) error {
	if entity == nil {
		return errors.New("consolidated entity is nil")
	}
	variantsJSON, err := marshalJSON(entity.Variants)
	if err != nil {
		return err
	}
	fileIDsJSON, err := marshalJSON(entity.FileIDs)
	if err != nil {
		return err
	}
	contextsJSON, err := marshalJSON(entity.SampleContexts)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO consolidated_entities (
            entity_type, normalized_value, variants_json, occurrence_count,
            file_ids_json, sample_contexts_json, first_seen, last_seen
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT (entity_type, normalized_value) DO UPDATE SET
            variants_json = excluded.variants_json,
            occurrence_count = excluded.occurrence_count,
            file_ids_json = excluded.file_ids_json,
            sample_contexts_json = excluded.sample_contexts_json,
            first_seen = excluded.first_seen,
            last_seen = excluded.last_seen`,
		entity.EntityType,
		entity.NormalizedValue,
		variantsJSON,
		entity.OccurrenceCount,
		fileIDsJSON,
		contextsJSON,
		entity.FirstSeen.UTC().Format(time.RFC3339Nano),
		entity.LastSeen.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("upsert consolidated entity: %w", err)
	}
	return nil
}

// DeleteConsolidatedExcept removes consolidated entities whose canonical key
// is not in keep. The consolidation pass calls this so keys that vanished
// from the raw data do not linger.
func (s *Store) DeleteConsolidatedExcept(ctx context.Context, keep map[string]struct{}) (int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, entity_type, normalized_value FROM consolidated_entities`)
	if err != nil {
		return 0, fmt.Errorf("query consolidated keys: %w", err)
	}
	defer rows.Close()

	var stale []int64
	for rows.Next() {
		var id int64
		var entityType, normalized string
		if err := rows.Scan(&id, &entityType, &normalized); err != nil {
			return 0, err
		}
		if _, ok := keep[entityType+"\x00"+normalized]; !ok {
			stale = append(stale, id)
		}
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}
	if len(stale) == 0 {
		return 0, nil
	}

	args := make([]any, len(stale))
	for i, id := range stale {
		args[i] = id
	}
	res, err := s.db.ExecContext(
		ctx,
		`DELETE FROM consolidated_entities WHERE id IN (`+makePlaceholders(len(stale))+`)`,
		args...,
	)
	if err != nil {
		return 0, fmt.Errorf("delete stale consolidated entities: %w", err)
	}
	return res.RowsAffected()
}

// ConsolidatedKey builds the map key used by DeleteConsolidatedExcept.
func ConsolidatedKey(entityType, normalizedValue string) string {
	return entityType + "\x00" + normalizedValue
}

// ListConsolidatedEntities returns consolidated entities, optionally filtered
// by entity type, most frequent first.
func (s *Store) ListConsolidatedEntities(ctx context.Context, entityType string) ([]*ConsolidatedEntity, error) {
	query := `SELECT ` + consolidatedColumns + ` FROM consolidated_entities`
	var args []any
	if entityType != "" {
		query += ` WHERE entity_type = ?`
		args = append(args, entityType)
	}
	query += ` ORDER BY occurrence_count DESC, normalized_value`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list consolidated entities: %w", err)
	}
	defer rows.Close()

	var entities []*ConsolidatedEntity
	for rows.Next() {
		entity, err := scanConsolidated(rows)
		if err != nil {
			return nil, err
		}
		entities = append(entities, entity)
	}
	return entities, rows.Err()
}

// GetConsolidatedEntity fetches one canonical entity, or nil when absent.
func (s *Store) GetConsolidatedEntity(ctx context.Context, entityType, normalizedValue string) (*ConsolidatedEntity, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+consolidatedColumns+` FROM consolidated_entities WHERE entity_type = ? AND normalized_value = ?`,
		entityType, normalizedValue,
	)
	entity, err := scanConsolidated(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get consolidated entity: %w", err)
	}
	return entity, nil
}

const consolidatedColumns = "id, entity_type, normalized_value, variants_json, occurrence_count, file_ids_json, sample_contexts_json, first_seen, last_seen"

func scanConsolidated(scanner interface{ Scan(dest ...any) error }) (*ConsolidatedEntity, error) {
	var (
		id           int64
		entityType   string
		normalized   string
		variantsRaw  string
		occurrences  int
		fileIDsRaw   string
		contextsRaw  string
		firstSeenRaw sql.NullString
		lastSeenRaw  sql.NullString
	)
	if err := scanner.Scan(
		&id, &entityType, &normalized, &variantsRaw, &occurrences,
		&fileIDsRaw, &contextsRaw, &firstSeenRaw, &lastSeenRaw,
	); err != nil {
		return nil, err
	}

	entity := &ConsolidatedEntity{
		ID:              id,
		EntityType:      entityType,
		NormalizedValue: normalized,
		Variants:        unmarshalStrings(variantsRaw),
		OccurrenceCount: occurrences,
		FileIDs:         unmarshalInt64s(fileIDsRaw),
		SampleContexts:  unmarshalStrings(contextsRaw),
	}
	if firstSeenRaw.Valid {
		if t, err := parseTimeString(firstSeenRaw.String); err == nil {
			entity.FirstSeen = t
		}
	}
	if lastSeenRaw.Valid {
		if t, err := parseTimeString(lastSeenRaw.String); err == nil {
			entity.LastSeen = t
		}
	}
	return entity, nil
}
