// Package session manages resumable agent sessions and their append-only
// transcript logs.
package session

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/shadehq/shade/internal/store"
)

// TranscriptEntry is one structured line of a session transcript.
type TranscriptEntry struct {
	Type      string    `json:"type"` // user_message | agent_response
	Sender    string    `json:"sender,omitempty"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

const (
	EntryUserMessage   = "user_message"
	EntryAgentResponse = "agent_response"
)

// Manager creates and resumes agent sessions for groups.
type Manager struct {
	store       *store.Store
	sessionsDir string
}

// NewManager returns a session manager rooted at sessionsDir.
func NewManager(s *store.Store, sessionsDir string) *Manager {
	return &Manager{store: s, sessionsDir: sessionsDir}
}

// GetOrCreate returns the group's most recently active session, creating a
// new one with a fresh transcript path when none is active.
func (m *Manager) GetOrCreate(groupID string) (*store.AgentSession, error) {
	existing, err := m.store.LatestActiveSession(groupID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	id := uuid.NewString()
	sess := &store.AgentSession{
		ID:             id,
		GroupID:        groupID,
		TranscriptPath: filepath.Join(m.sessionsDir, groupID, id+".jsonl"),
		Status:         store.SessionStatusActive,
	}
	if err := m.store.CreateSession(sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// TouchActivity bumps the session's message count and activity timestamp.
func (m *Manager) TouchActivity(sessionID string, increment int) error {
	return m.store.TouchSession(sessionID, increment)
}

// Close marks a session closed. Later triggers for the group start a fresh
// session.
func (m *Manager) Close(sessionID string) error {
	return m.store.SetSessionStatus(sessionID, store.SessionStatusClosed)
}

// AppendTranscript appends one entry as a JSON line, stamping the current
// time and creating the file and parent directory if absent.
func AppendTranscript(path string, entry TranscriptEntry) error {
	entry.Timestamp = time.Now()
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal transcript entry: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create transcript dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open transcript: %w", err)
	}
	defer f.Close()
	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to append transcript: %w", err)
	}
	return nil
}

// ReadTranscript parses all entries in write order. A missing or empty file
// yields an empty list, not an error.
func ReadTranscript(path string) ([]TranscriptEntry, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open transcript: %w", err)
	}
	defer f.Close()

	var out []TranscriptEntry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var entry TranscriptEntry
		if err := json.Unmarshal(line, &entry); err != nil {
			return nil, fmt.Errorf("failed to parse transcript line: %w", err)
		}
		out = append(out, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read transcript: %w", err)
	}
	return out, nil
}
