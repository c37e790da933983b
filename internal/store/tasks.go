package store

import (
	"database/sql"
	"fmt"
	"time"
)

const taskColumns = `id, group_id, COALESCE(name, ''), COALESCE(prompt, ''),
	COALESCE(schedule_type, 'once'), COALESCE(schedule, ''),
	COALESCE(status, 'active'), COALESCE(classification, 'internal'),
	next_run_at, last_run_at, run_count, max_runs, created_at, updated_at`

func scanTask(row interface{ Scan(...any) error }) (*ScheduledTask, error) {
	var t ScheduledTask
	var nextRun, lastRun sql.NullTime
	err := row.Scan(&t.ID, &t.GroupID, &t.Name, &t.Prompt, &t.ScheduleType,
		&t.Schedule, &t.Status, &t.Classification, &nextRun, &lastRun,
		&t.RunCount, &t.MaxRuns, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if nextRun.Valid {
		t.NextRunAt = &nextRun.Time
	}
	if lastRun.Valid {
		t.LastRunAt = &lastRun.Time
	}
	return &t, nil
}

// CreateTask inserts a scheduled task record.
func (s *Store) CreateTask(t *ScheduledTask) error {
	now := time.Now()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = now
	if t.Status == "" {
		t.Status = TaskStatusActive
	}
	if t.Classification == "" {
		t.Classification = ClassificationInternal
	}
	_, err := s.db.Exec(`
		INSERT INTO scheduled_tasks (id, group_id, name, prompt, schedule_type,
			schedule, status, classification, next_run_at, last_run_at,
			run_count, max_runs, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.GroupID, t.Name, t.Prompt, t.ScheduleType, t.Schedule,
		t.Status, t.Classification, nullTime(t.NextRunAt), nullTime(t.LastRunAt),
		t.RunCount, t.MaxRuns, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert task: %w", err)
	}
	return nil
}

// GetTask returns the scheduled task with the given id, or nil if absent.
func (s *Store) GetTask(id string) (*ScheduledTask, error) {
	row := s.db.QueryRow(`SELECT `+taskColumns+` FROM scheduled_tasks WHERE id = ?`, id)
	t, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return t, nil
}

// UpdateTask rewrites the mutable fields of a scheduled task.
func (s *Store) UpdateTask(t *ScheduledTask) error {
	t.UpdatedAt = time.Now()
	_, err := s.db.Exec(`
		UPDATE scheduled_tasks
		SET name = ?, prompt = ?, schedule_type = ?, schedule = ?, status = ?,
			classification = ?, next_run_at = ?, last_run_at = ?,
			run_count = ?, max_runs = ?, updated_at = ?
		WHERE id = ?`,
		t.Name, t.Prompt, t.ScheduleType, t.Schedule, t.Status,
		t.Classification, nullTime(t.NextRunAt), nullTime(t.LastRunAt),
		t.RunCount, t.MaxRuns, t.UpdatedAt, t.ID)
	if err != nil {
		return fmt.Errorf("failed to update task: %w", err)
	}
	return nil
}

// SetTaskStatus updates a task's status only.
func (s *Store) SetTaskStatus(id, status string) error {
	_, err := s.db.Exec(`UPDATE scheduled_tasks SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		status, id)
	if err != nil {
		return fmt.Errorf("failed to set task status: %w", err)
	}
	return nil
}

// ListTasksByGroup returns all scheduled tasks owned by a group.
func (s *Store) ListTasksByGroup(groupID string) ([]*ScheduledTask, error) {
	rows, err := s.db.Query(`
		SELECT `+taskColumns+` FROM scheduled_tasks
		WHERE group_id = ?
		ORDER BY created_at`, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to list group tasks: %w", err)
	}
	defer rows.Close()

	var out []*ScheduledTask
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// ListDueTasks returns active tasks whose next_run_at is at or before now.
func (s *Store) ListDueTasks(now time.Time) ([]*ScheduledTask, error) {
	rows, err := s.db.Query(`
		SELECT `+taskColumns+` FROM scheduled_tasks
		WHERE status = 'active' AND next_run_at IS NOT NULL AND next_run_at <= ?
		ORDER BY next_run_at ASC`, now)
	if err != nil {
		return nil, fmt.Errorf("failed to list due tasks: %w", err)
	}
	defer rows.Close()

	var out []*ScheduledTask
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
