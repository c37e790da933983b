package store

import (
	"database/sql"
	"fmt"
	"time"
)

const runLogColumns = `id, group_id, COALESCE(task_id, ''), COALESCE(session_id, ''),
	COALESCE(trigger_source, 'message'), COALESCE(classification, 'internal'),
	COALESCE(backend, ''), COALESCE(model, ''), COALESCE(status, 'running'),
	COALESCE(prompt, ''), COALESCE(result, ''), COALESCE(error_text, ''),
	started_at, completed_at, duration_ms`

func scanRunLog(row interface{ Scan(...any) error }) (*TaskRunLog, error) {
	var r TaskRunLog
	var completed sql.NullTime
	err := row.Scan(&r.ID, &r.GroupID, &r.TaskID, &r.SessionID,
		&r.TriggerSource, &r.Classification, &r.Backend, &r.Model, &r.Status,
		&r.Prompt, &r.Result, &r.Error, &r.StartedAt, &completed, &r.DurationMs)
	if err != nil {
		return nil, err
	}
	if completed.Valid {
		r.CompletedAt = &completed.Time
	}
	return &r, nil
}

// CreateRunLog inserts a run log row, normally in running status.
func (s *Store) CreateRunLog(r *TaskRunLog) error {
	if r.StartedAt.IsZero() {
		r.StartedAt = time.Now()
	}
	if r.Status == "" {
		r.Status = RunStatusRunning
	}
	if r.Classification == "" {
		r.Classification = ClassificationInternal
	}
	_, err := s.db.Exec(`
		INSERT INTO task_run_logs (id, group_id, task_id, session_id,
			trigger_source, classification, backend, model, status,
			prompt, result, error_text, started_at, completed_at, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.GroupID, r.TaskID, r.SessionID, r.TriggerSource,
		r.Classification, r.Backend, r.Model, r.Status, r.Prompt, r.Result,
		r.Error, r.StartedAt, nullTime(r.CompletedAt), r.DurationMs)
	if err != nil {
		return fmt.Errorf("failed to insert run log: %w", err)
	}
	return nil
}

// CompleteRunLog stamps the outcome of a run.
func (s *Store) CompleteRunLog(id, status, result, errText string, duration time.Duration) error {
	_, err := s.db.Exec(`
		UPDATE task_run_logs
		SET status = ?, result = ?, error_text = ?, completed_at = ?, duration_ms = ?
		WHERE id = ?`,
		status, result, errText, time.Now(), duration.Milliseconds(), id)
	if err != nil {
		return fmt.Errorf("failed to complete run log: %w", err)
	}
	return nil
}

// GetRunLog returns the run log with the given id, or nil if absent.
func (s *Store) GetRunLog(id string) (*TaskRunLog, error) {
	row := s.db.QueryRow(`SELECT `+runLogColumns+` FROM task_run_logs WHERE id = ?`, id)
	r, err := scanRunLog(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run log: %w", err)
	}
	return r, nil
}

// --- Webhook sources ---

// CreateWebhookSource inserts a webhook source record.
func (s *Store) CreateWebhookSource(w *WebhookSource) error {
	if w.CreatedAt.IsZero() {
		w.CreatedAt = time.Now()
	}
	_, err := s.db.Exec(`
		INSERT INTO webhook_sources (id, name, group_id, secret, enabled, sender_name, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		w.ID, w.Name, w.GroupID, w.Secret, w.Enabled, w.SenderName, w.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert webhook source: %w", err)
	}
	return nil
}

// GetWebhookSource returns the webhook source with the given id, or nil if
// absent.
func (s *Store) GetWebhookSource(id string) (*WebhookSource, error) {
	row := s.db.QueryRow(`
		SELECT id, COALESCE(name, ''), group_id, COALESCE(secret, ''), enabled,
			COALESCE(sender_name, ''), created_at
		FROM webhook_sources WHERE id = ?`, id)
	var w WebhookSource
	err := row.Scan(&w.ID, &w.Name, &w.GroupID, &w.Secret, &w.Enabled, &w.SenderName, &w.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get webhook source: %w", err)
	}
	return &w, nil
}
