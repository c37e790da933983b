package store

import (
	"database/sql"
	"fmt"
	"time"
)

const sessionColumns = `id, group_id, COALESCE(transcript_path, ''),
	COALESCE(status, 'active'), message_count, last_activity_at,
	COALESCE(resume_token, ''), created_at`

func scanSession(row interface{ Scan(...any) error }) (*AgentSession, error) {
	var sess AgentSession
	err := row.Scan(&sess.ID, &sess.GroupID, &sess.TranscriptPath, &sess.Status,
		&sess.MessageCount, &sess.LastActivityAt, &sess.ResumeToken, &sess.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

// CreateSession inserts an agent session record.
func (s *Store) CreateSession(sess *AgentSession) error {
	now := time.Now()
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = now
	}
	if sess.LastActivityAt.IsZero() {
		sess.LastActivityAt = now
	}
	_, err := s.db.Exec(`
		INSERT INTO agent_sessions (id, group_id, transcript_path, status,
			message_count, last_activity_at, resume_token, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.GroupID, sess.TranscriptPath, sess.Status,
		sess.MessageCount, sess.LastActivityAt, sess.ResumeToken, sess.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}
	return nil
}

// LatestActiveSession returns the most recently active session with status
// active for a group, or nil if there is none.
func (s *Store) LatestActiveSession(groupID string) (*AgentSession, error) {
	row := s.db.QueryRow(`
		SELECT `+sessionColumns+` FROM agent_sessions
		WHERE group_id = ? AND status = 'active'
		ORDER BY last_activity_at DESC
		LIMIT 1`, groupID)
	sess, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get active session: %w", err)
	}
	return sess, nil
}

// GetSession returns the session with the given id, or nil if absent.
func (s *Store) GetSession(id string) (*AgentSession, error) {
	row := s.db.QueryRow(`SELECT `+sessionColumns+` FROM agent_sessions WHERE id = ?`, id)
	sess, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return sess, nil
}

// TouchSession bumps the message count and refreshes last activity.
func (s *Store) TouchSession(id string, increment int) error {
	_, err := s.db.Exec(`
		UPDATE agent_sessions
		SET message_count = message_count + ?, last_activity_at = ?
		WHERE id = ?`, increment, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to touch session: %w", err)
	}
	return nil
}

// SetSessionStatus updates a session's status.
func (s *Store) SetSessionStatus(id, status string) error {
	_, err := s.db.Exec(`UPDATE agent_sessions SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		return fmt.Errorf("failed to set session status: %w", err)
	}
	return nil
}

// SetSessionResumeToken stores the backend's resume token for a session.
func (s *Store) SetSessionResumeToken(id, token string) error {
	_, err := s.db.Exec(`UPDATE agent_sessions SET resume_token = ? WHERE id = ?`, token, id)
	if err != nil {
		return fmt.Errorf("failed to set session resume token: %w", err)
	}
	return nil
}
