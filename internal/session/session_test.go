package session

import (
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/shadehq/shade/internal/store"
)

func newTestManager(t *testing.T) (*Manager, *store.Store) {
	t.Helper()
	dir := t.TempDir()
	s, err := store.Open(filepath.Join(dir, "shade.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return NewManager(s, filepath.Join(dir, "sessions")), s
}

func TestGetOrCreateReusesActiveSession(t *testing.T) {
	m, _ := newTestManager(t)
	groupID := uuid.NewString()

	first, err := m.GetOrCreate(groupID)
	if err != nil {
		t.Fatalf("get or create: %v", err)
	}
	if first.Status != store.SessionStatusActive {
		t.Errorf("expected active status, got %s", first.Status)
	}
	if filepath.Ext(first.TranscriptPath) != ".jsonl" {
		t.Errorf("unexpected transcript path %s", first.TranscriptPath)
	}

	second, err := m.GetOrCreate(groupID)
	if err != nil {
		t.Fatalf("get or create: %v", err)
	}
	if second.ID != first.ID {
		t.Error("expected active session to be reused")
	}
}

func TestGetOrCreateAfterClose(t *testing.T) {
	m, _ := newTestManager(t)
	groupID := uuid.NewString()

	first, _ := m.GetOrCreate(groupID)
	if err := m.Close(first.ID); err != nil {
		t.Fatalf("close: %v", err)
	}

	second, err := m.GetOrCreate(groupID)
	if err != nil {
		t.Fatalf("get or create: %v", err)
	}
	if second.ID == first.ID {
		t.Error("expected a fresh session after close")
	}
}

func TestTranscriptRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "g1", "s1.jsonl")

	entries := []TranscriptEntry{
		{Type: EntryUserMessage, Sender: "alice", Content: "hello"},
		{Type: EntryAgentResponse, Content: "hi alice"},
	}
	for _, e := range entries {
		if err := AppendTranscript(path, e); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	got, err := ReadTranscript(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(got))
	}
	if got[0].Content != "hello" || got[1].Content != "hi alice" {
		t.Error("entries out of order")
	}
	for i, e := range got {
		if e.Timestamp.IsZero() {
			t.Errorf("entry %d missing timestamp", i)
		}
	}
}

func TestReadTranscriptMissingFile(t *testing.T) {
	got, err := ReadTranscript(filepath.Join(t.TempDir(), "nope.jsonl"))
	if err != nil {
		t.Fatalf("expected no error for missing transcript, got %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty list, got %d entries", len(got))
	}
}
