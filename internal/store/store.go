// Package store persists channels, groups, messages, sessions, scheduled
// tasks and run logs in a local sqlite database.
package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Store wraps the sqlite database.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at dbPath and applies the
// schema.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", "file:"+dbPath+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// --- Channels ---

const channelColumns = `id, type, COALESCE(name, ''), COALESCE(status, 'inactive'),
	COALESCE(config, '{}'), last_connected_at, created_at, updated_at`

func scanChannel(row interface{ Scan(...any) error }) (*Channel, error) {
	var c Channel
	var lastConnected sql.NullTime
	err := row.Scan(&c.ID, &c.Type, &c.Name, &c.Status, &c.Config,
		&lastConnected, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if lastConnected.Valid {
		c.LastConnectedAt = &lastConnected.Time
	}
	return &c, nil
}

// CreateChannel inserts a channel record.
func (s *Store) CreateChannel(c *Channel) error {
	now := time.Now()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	_, err := s.db.Exec(`
		INSERT INTO channels (id, type, name, status, config, last_connected_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Type, c.Name, c.Status, c.Config, nullTime(c.LastConnectedAt), c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert channel: %w", err)
	}
	return nil
}

// GetChannel returns the channel with the given id, or nil if absent.
func (s *Store) GetChannel(id string) (*Channel, error) {
	row := s.db.QueryRow(`SELECT `+channelColumns+` FROM channels WHERE id = ?`, id)
	c, err := scanChannel(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get channel: %w", err)
	}
	return c, nil
}

// ListChannels returns all channels.
func (s *Store) ListChannels() ([]*Channel, error) {
	rows, err := s.db.Query(`SELECT ` + channelColumns + ` FROM channels ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to list channels: %w", err)
	}
	defer rows.Close()

	var out []*Channel
	for rows.Next() {
		c, err := scanChannel(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// UpdateChannelStatus sets a channel's connection status. A non-nil
// connectedAt also stamps last_connected_at.
func (s *Store) UpdateChannelStatus(id, status string, connectedAt *time.Time) error {
	var err error
	if connectedAt != nil {
		_, err = s.db.Exec(`UPDATE channels SET status = ?, last_connected_at = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
			status, *connectedAt, id)
	} else {
		_, err = s.db.Exec(`UPDATE channels SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
			status, id)
	}
	if err != nil {
		return fmt.Errorf("failed to update channel status: %w", err)
	}
	return nil
}

// --- Groups ---

const groupColumns = `id, channel_id, COALESCE(external_id, ''), COALESCE(name, ''),
	folder, COALESCE(trigger_phrase, ''), requires_trigger, is_main,
	COALESCE(backend, ''), run_timeout_ms, idle_timeout_ms, created_at, updated_at`

func scanGroup(row interface{ Scan(...any) error }) (*Group, error) {
	var g Group
	var runMs, idleMs int64
	err := row.Scan(&g.ID, &g.ChannelID, &g.ExternalID, &g.Name, &g.Folder,
		&g.Trigger, &g.RequiresTrigger, &g.IsMain, &g.Backend,
		&runMs, &idleMs, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		return nil, err
	}
	g.RunTimeout = time.Duration(runMs) * time.Millisecond
	g.IdleTimeout = time.Duration(idleMs) * time.Millisecond
	return &g, nil
}

// CreateGroup inserts a group record.
func (s *Store) CreateGroup(g *Group) error {
	now := time.Now()
	if g.CreatedAt.IsZero() {
		g.CreatedAt = now
	}
	g.UpdatedAt = now
	_, err := s.db.Exec(`
		INSERT INTO groups (id, channel_id, external_id, name, folder, trigger_phrase,
			requires_trigger, is_main, backend, run_timeout_ms, idle_timeout_ms, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		g.ID, g.ChannelID, g.ExternalID, g.Name, g.Folder, g.Trigger,
		g.RequiresTrigger, g.IsMain, g.Backend,
		g.RunTimeout.Milliseconds(), g.IdleTimeout.Milliseconds(), g.CreatedAt, g.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert group: %w", err)
	}
	return nil
}

// GetGroup returns the group with the given id, or nil if absent.
func (s *Store) GetGroup(id string) (*Group, error) {
	row := s.db.QueryRow(`SELECT `+groupColumns+` FROM groups WHERE id = ?`, id)
	g, err := scanGroup(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get group: %w", err)
	}
	return g, nil
}

// ListGroups returns all groups.
func (s *Store) ListGroups() ([]*Group, error) {
	rows, err := s.db.Query(`SELECT ` + groupColumns + ` FROM groups ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}
	defer rows.Close()

	var out []*Group
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// CountRows returns the row count of a known table. Used by the status
// command.
func (s *Store) CountRows(table string) (int, error) {
	switch table {
	case "channels", "groups", "messages", "agent_sessions", "scheduled_tasks", "task_run_logs", "webhook_sources":
	default:
		return 0, fmt.Errorf("unknown table %q", table)
	}
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM ` + table).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", table, err)
	}
	return n, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
