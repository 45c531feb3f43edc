package catalog

import (
	"context"
	"errors"
	"fmt"
)

// ReplaceConversation upserts a conversation keyed by (source_path,
// external_id) and swaps its message set atomically. Re-ingesting the same
// export is idempotent.
func (s *Store) ReplaceConversation(ctx context.Context, conversation *Conversation, messages []Message) (int64, error) {
	if conversation == nil {
		return 0, errors.New("conversation is nil")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin conversation tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(
		ctx,
		`INSERT INTO conversations (source_path, external_id, title, started_at, message_count)
         VALUES (?, ?, ?, ?, ?)
         ON CONFLICT (source_path, external_id) DO UPDATE SET
            title = excluded.title,
            started_at = excluded.started_at,
            message_count = excluded.message_count`,
		conversation.SourcePath,
		conversation.ExternalID,
		conversation.Title,
		nullableTime(conversation.StartedAt),
		len(messages),
	)
	if err != nil {
		return 0, fmt.Errorf("upsert conversation: %w", err)
	}

	var conversationID int64
	row := tx.QueryRowContext(
		ctx,
		`SELECT id FROM conversations WHERE source_path = ? AND external_id = ?`,
		conversation.SourcePath, conversation.ExternalID,
	)
	if err := row.Scan(&conversationID); err != nil {
		return 0, fmt.Errorf("resolve conversation id: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE conversation_id = ?`, conversationID); err != nil {
		return 0, fmt.Errorf("delete old messages: %w", err)
	}
	for _, message := range messages {
		if _, err := tx.ExecContext(
			ctx,
			`INSERT INTO messages (conversation_id, seq, role, content, sent_at)
             VALUES (?, ?, ?, ?, ?)`,
			conversationID, message.Seq, message.Role, message.Content, nullableTime(message.SentAt),
		); err != nil {
			return 0, fmt.Errorf("insert message %d: %w", message.Seq, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit conversation: %w", err)
	}
	return conversationID, nil
}

// ListConversations returns ingested conversations, newest first.
func (s *Store) ListConversations(ctx context.Context, limit int) ([]*Conversation, error) {
	query := `SELECT id, source_path, external_id, title, started_at, message_count
              FROM conversations ORDER BY id DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	var conversations []*Conversation
	for rows.Next() {
		var conv Conversation
		var startedRaw, externalID, title *string
		if err := rows.Scan(&conv.ID, &conv.SourcePath, &externalID, &title, &startedRaw, &conv.MessageCount); err != nil {
			return nil, err
		}
		if externalID != nil {
			conv.ExternalID = *externalID
		}
		if title != nil {
			conv.Title = *title
		}
		if startedRaw != nil {
			if t, err := parseTimeString(*startedRaw); err == nil {
				conv.StartedAt = &t
			}
		}
		conversations = append(conversations, &conv)
	}
	return conversations, rows.Err()
}
