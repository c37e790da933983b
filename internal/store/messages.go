package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
)

const messageColumns = `id, group_id, channel_id, COALESCE(external_id, ''),
	COALESCE(sender_name, ''), COALESCE(sender_external_id, ''),
	COALESCE(content, ''), is_from_bot, processed_at, COALESCE(metadata, '{}'), created_at`

func scanMessage(row interface{ Scan(...any) error }) (*Message, error) {
	var m Message
	var processed sql.NullTime
	err := row.Scan(&m.ID, &m.GroupID, &m.ChannelID, &m.ExternalID,
		&m.SenderName, &m.SenderExternalID, &m.Content, &m.IsFromBot,
		&processed, &m.Metadata, &m.CreatedAt)
	if err != nil {
		return nil, err
	}
	if processed.Valid {
		m.ProcessedAt = &processed.Time
	}
	return &m, nil
}

// CreateMessage inserts a message record.
func (s *Store) CreateMessage(m *Message) error {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	if m.Metadata == "" {
		m.Metadata = "{}"
	}
	_, err := s.db.Exec(`
		INSERT INTO messages (id, group_id, channel_id, external_id, sender_name,
			sender_external_id, content, is_from_bot, processed_at, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.GroupID, m.ChannelID, m.ExternalID, m.SenderName,
		m.SenderExternalID, m.Content, m.IsFromBot, nullTime(m.ProcessedAt), m.Metadata, m.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}
	return nil
}

// GetMessage returns the message with the given id, or nil if absent.
func (s *Store) GetMessage(id string) (*Message, error) {
	row := s.db.QueryRow(`SELECT `+messageColumns+` FROM messages WHERE id = ?`, id)
	m, err := scanMessage(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get message: %w", err)
	}
	return m, nil
}

// ListUnprocessedMessages returns non-bot messages in a group that have not
// been consumed by an agent run yet, oldest first.
func (s *Store) ListUnprocessedMessages(groupID string, limit int) ([]*Message, error) {
	rows, err := s.db.Query(`
		SELECT `+messageColumns+` FROM messages
		WHERE group_id = ? AND is_from_bot = 0 AND processed_at IS NULL
		ORDER BY created_at ASC
		LIMIT ?`, groupID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list unprocessed messages: %w", err)
	}
	return collectMessages(rows)
}

// LatestBotMessage returns the most recent bot-authored message in a group,
// or nil if there is none.
func (s *Store) LatestBotMessage(groupID string) (*Message, error) {
	row := s.db.QueryRow(`
		SELECT `+messageColumns+` FROM messages
		WHERE group_id = ? AND is_from_bot = 1
		ORDER BY created_at DESC
		LIMIT 1`, groupID)
	m, err := scanMessage(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest bot message: %w", err)
	}
	return m, nil
}

// ListMessagesAfter returns non-bot messages in a group created strictly
// after t, oldest first, capped at limit.
func (s *Store) ListMessagesAfter(groupID string, t time.Time, limit int) ([]*Message, error) {
	rows, err := s.db.Query(`
		SELECT `+messageColumns+` FROM messages
		WHERE group_id = ? AND is_from_bot = 0 AND created_at > ?
		ORDER BY created_at ASC
		LIMIT ?`, groupID, t, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages after: %w", err)
	}
	return collectMessages(rows)
}

// MarkMessagesProcessed stamps processed_at on the given message ids.
func (s *Store) MarkMessagesProcessed(ids []string, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, 0, len(ids)+1)
	args = append(args, at)
	for _, id := range ids {
		args = append(args, id)
	}
	_, err := s.db.Exec(`UPDATE messages SET processed_at = ? WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return fmt.Errorf("failed to mark messages processed: %w", err)
	}
	return nil
}

func collectMessages(rows *sql.Rows) ([]*Message, error) {
	defer rows.Close()
	var out []*Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
