package queue

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/shadehq/shade/internal/runner"
	"github.com/shadehq/shade/internal/session"
	"github.com/shadehq/shade/internal/store"
)

type stubRunner struct {
	mu      sync.Mutex
	calls   []runner.RunConfig
	started chan runner.RunConfig
	gate    chan struct{} // when non-nil, Run blocks until closed
	fail    int           // fail the first n calls
	output  string
}

func (r *stubRunner) Run(ctx context.Context, cfg runner.RunConfig) (*runner.RunResult, error) {
	r.mu.Lock()
	r.calls = append(r.calls, cfg)
	n := len(r.calls)
	r.mu.Unlock()
	if r.started != nil {
		r.started <- cfg
	}
	if r.gate != nil {
		select {
		case <-r.gate:
		case <-ctx.Done():
		}
	}
	if n <= r.fail {
		return &runner.RunResult{SessionID: cfg.SessionID, Status: runner.StatusFailed},
			fmt.Errorf("engine exploded")
	}
	out := r.output
	if out == "" {
		out = "ok"
	}
	return &runner.RunResult{Output: out, SessionID: cfg.SessionID, Status: runner.StatusCompleted}, nil
}

func (r *stubRunner) Stop(string) {}

func (r *stubRunner) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

type stubSender struct {
	mu   sync.Mutex
	sent []string
}

func (s *stubSender) SendMessageToGroup(ctx context.Context, groupID, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, text)
	return nil
}

func newTestQueue(t *testing.T, cfg Config, r runner.Runner) (*GroupQueue, *store.Store, *stubSender) {
	t.Helper()
	return newTestQueueCtx(t, context.Background(), cfg, r)
}

func newTestQueueCtx(t *testing.T, ctx context.Context, cfg Config, r runner.Runner) (*GroupQueue, *store.Store, *stubSender) {
	t.Helper()
	dir := t.TempDir()
	s, err := store.Open(filepath.Join(dir, "shade.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	if cfg.AssistantName == "" {
		cfg.AssistantName = "Shade"
	}
	if cfg.GroupsDir == "" {
		cfg.GroupsDir = filepath.Join(dir, "groups")
	}
	if cfg.MaxGlobal == 0 {
		cfg.MaxGlobal = 5
	}
	if cfg.BaseDelay == 0 {
		cfg.BaseDelay = 10 * time.Millisecond
	}
	if cfg.DefaultTimeout == 0 {
		cfg.DefaultTimeout = time.Minute
	}

	sessions := session.NewManager(s, filepath.Join(dir, "sessions"))
	sender := &stubSender{}
	q := New(ctx, cfg, s, sessions, sender, r, nil)
	return q, s, sender
}

func seedGroup(t *testing.T, s *store.Store, name string) *store.Group {
	t.Helper()
	g := &store.Group{
		ID:        uuid.NewString(),
		ChannelID: uuid.NewString(),
		Name:      name,
		Folder:    name + "-" + uuid.NewString()[:8],
		Trigger:   "@Shade",
	}
	if err := s.CreateGroup(g); err != nil {
		t.Fatalf("create group: %v", err)
	}
	return g
}

func seedMessage(t *testing.T, s *store.Store, g *store.Group, content string) *store.Message {
	t.Helper()
	m := &store.Message{
		ID:         uuid.NewString(),
		GroupID:    g.ID,
		ChannelID:  g.ChannelID,
		SenderName: "alice",
		Content:    content,
	}
	if err := s.CreateMessage(m); err != nil {
		t.Fatalf("create message: %v", err)
	}
	return m
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func TestFIFOWithinGroup(t *testing.T) {
	r := &stubRunner{}
	q, s, _ := newTestQueue(t, Config{}, r)
	g := seedGroup(t, s, "general")

	for i := 0; i < 3; i++ {
		m := seedMessage(t, s, g, fmt.Sprintf("@Shade job-%d", i))
		q.Enqueue(g, m)
	}

	waitFor(t, 2*time.Second, func() bool { return r.callCount() == 3 })

	r.mu.Lock()
	defer r.mu.Unlock()
	for i, cfg := range r.calls {
		want := fmt.Sprintf("job-%d", i)
		if !strings.Contains(cfg.Prompt, want) {
			t.Errorf("call %d: prompt missing %q", i, want)
		}
	}
}

func TestGlobalCeilingInvariant(t *testing.T) {
	gate := make(chan struct{})
	r := &stubRunner{gate: gate, started: make(chan runner.RunConfig, 3)}
	q, s, _ := newTestQueue(t, Config{MaxGlobal: 2}, r)

	groups := []*store.Group{
		seedGroup(t, s, "a"), seedGroup(t, s, "b"), seedGroup(t, s, "c"),
	}
	for _, g := range groups {
		q.Enqueue(g, seedMessage(t, s, g, "@Shade go"))
	}

	// Exactly two runs admitted while the gate is closed.
	<-r.started
	<-r.started
	waitFor(t, time.Second, func() bool { return q.ActiveRunCount() == 2 })

	activeFlags := 0
	for _, g := range groups {
		if q.IsGroupActive(g.ID) {
			activeFlags++
		}
	}
	if activeFlags != q.ActiveRunCount() {
		t.Errorf("invariant broken: %d flags vs %d global", activeFlags, q.ActiveRunCount())
	}
	if q.ActiveRunCount() > 2 {
		t.Errorf("ceiling exceeded: %d", q.ActiveRunCount())
	}

	close(gate)
	waitFor(t, 2*time.Second, func() bool { return r.callCount() == 3 && q.ActiveRunCount() == 0 })
}

func TestCeilingBlockedGroupAdmittedOnRelease(t *testing.T) {
	gate := make(chan struct{})
	r := &stubRunner{gate: gate, started: make(chan runner.RunConfig, 2)}
	q, s, _ := newTestQueue(t, Config{MaxGlobal: 1}, r)

	a := seedGroup(t, s, "a")
	b := seedGroup(t, s, "b")

	q.Enqueue(a, seedMessage(t, s, a, "@Shade first"))
	<-r.started // a holds the only slot

	// b is refused at the ceiling and must wait in its own queue.
	q.Enqueue(b, seedMessage(t, s, b, "@Shade second"))
	if q.QueueDepth(b.ID) != 1 || q.IsGroupActive(b.ID) {
		t.Fatalf("expected b queued and idle, depth=%d active=%v", q.QueueDepth(b.ID), q.IsGroupActive(b.ID))
	}

	// Releasing a's slot must admit b, not just re-check a.
	close(gate)
	waitFor(t, 2*time.Second, func() bool { return r.callCount() == 2 })
	waitFor(t, time.Second, func() bool {
		return q.QueueDepth(b.ID) == 0 && q.ActiveRunCount() == 0
	})

	r.mu.Lock()
	defer r.mu.Unlock()
	if !strings.Contains(r.calls[1].Prompt, "second") {
		t.Errorf("expected b's message to run second, got %q", r.calls[1].Prompt)
	}
}

func TestSingleActiveRunPerGroup(t *testing.T) {
	gate := make(chan struct{})
	r := &stubRunner{gate: gate, started: make(chan runner.RunConfig, 2)}
	q, s, _ := newTestQueue(t, Config{}, r)
	g := seedGroup(t, s, "general")

	q.Enqueue(g, seedMessage(t, s, g, "@Shade one"))
	q.Enqueue(g, seedMessage(t, s, g, "@Shade two"))

	<-r.started
	if q.ActiveRunCount() != 1 {
		t.Errorf("expected 1 active run, got %d", q.ActiveRunCount())
	}
	if q.QueueDepth(g.ID) != 1 {
		t.Errorf("expected 1 queued item, got %d", q.QueueDepth(g.ID))
	}

	close(gate)
	waitFor(t, 2*time.Second, func() bool { return r.callCount() == 2 && q.ActiveRunCount() == 0 })
}

func TestRetryBackoffAndDrop(t *testing.T) {
	r := &stubRunner{fail: 100} // always fail
	q, s, _ := newTestQueue(t, Config{BaseDelay: 10 * time.Millisecond, MaxRetries: 2}, r)
	g := seedGroup(t, s, "general")

	q.Enqueue(g, seedMessage(t, s, g, "@Shade doomed"))

	// Initial attempt + 2 retries, then dropped.
	waitFor(t, 2*time.Second, func() bool { return r.callCount() == 3 })
	time.Sleep(100 * time.Millisecond)
	if got := r.callCount(); got != 3 {
		t.Errorf("expected exactly 3 attempts, got %d", got)
	}
	if q.ActiveRunCount() != 0 || q.QueueDepth(g.ID) != 0 {
		t.Error("queue not drained after drop")
	}
}

func TestShutdownSkipsRetry(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r := &stubRunner{fail: 100, gate: make(chan struct{}), started: make(chan runner.RunConfig, 1)}
	q, s, _ := newTestQueueCtx(t, ctx, Config{BaseDelay: 10 * time.Millisecond, MaxRetries: 5}, r)
	g := seedGroup(t, s, "general")

	q.Enqueue(g, seedMessage(t, s, g, "@Shade doomed"))
	<-r.started

	// Cancel mid-run: the failed item must not be rescheduled.
	cancel()
	waitFor(t, time.Second, func() bool { return q.ActiveRunCount() == 0 })

	time.Sleep(100 * time.Millisecond)
	if got := r.callCount(); got != 1 {
		t.Errorf("expected no retry after shutdown, got %d attempts", got)
	}
	if q.QueueDepth(g.ID) != 0 {
		t.Errorf("expected empty queue, depth %d", q.QueueDepth(g.ID))
	}
}

func TestRetryReinsertedAtHead(t *testing.T) {
	gate := make(chan struct{})
	r := &stubRunner{fail: 1, gate: gate, started: make(chan runner.RunConfig, 4)}
	q, s, _ := newTestQueue(t, Config{BaseDelay: 30 * time.Millisecond, MaxRetries: 3}, r)
	g := seedGroup(t, s, "general")

	first := seedMessage(t, s, g, "@Shade first")
	q.Enqueue(g, first)
	<-r.started // first attempt running (will fail once gate opens)
	close(gate)

	// While the retry timer is pending, a newer message arrives.
	waitFor(t, time.Second, func() bool { return r.callCount() == 1 && q.ActiveRunCount() == 0 })
	second := seedMessage(t, s, g, "@Shade second")
	q.mu.Lock()
	q.queues[g.ID] = append(q.queues[g.ID], &Item{Group: g, Message: second, TriggerSource: store.TriggerSourceMessage})
	q.mu.Unlock()

	waitFor(t, 2*time.Second, func() bool { return r.callCount() == 3 })

	r.mu.Lock()
	defer r.mu.Unlock()
	// Attempt 2 must be the retried first message, attempt 3 the newer one.
	if !strings.Contains(r.calls[1].Prompt, "first") {
		t.Errorf("retry was not served before newer arrival: %q", r.calls[1].Prompt)
	}
	if !strings.Contains(r.calls[2].Prompt, "second") {
		t.Errorf("newer arrival not served after retry: %q", r.calls[2].Prompt)
	}
}

func TestSuccessPipeline(t *testing.T) {
	r := &stubRunner{output: "<internal>thinking</internal>Done"}
	q, s, sender := newTestQueue(t, Config{}, r)
	g := seedGroup(t, s, "general")
	m := seedMessage(t, s, g, "@Shade summarize")

	q.Enqueue(g, m)
	waitFor(t, 2*time.Second, func() bool { return r.callCount() == 1 && q.ActiveRunCount() == 0 })

	waitFor(t, time.Second, func() bool {
		sender.mu.Lock()
		defer sender.mu.Unlock()
		return len(sender.sent) == 1
	})
	sender.mu.Lock()
	if sender.sent[0] != "Done" {
		t.Errorf("expected sanitized output %q, got %q", "Done", sender.sent[0])
	}
	sender.mu.Unlock()

	waitFor(t, time.Second, func() bool {
		got, err := s.GetMessage(m.ID)
		return err == nil && got.ProcessedAt != nil
	})

	sess, err := s.LatestActiveSession(g.ID)
	if err != nil || sess == nil {
		t.Fatalf("expected active session, err %v", err)
	}
	if sess.MessageCount != 2 {
		t.Errorf("expected message count 2, got %d", sess.MessageCount)
	}

	entries, err := session.ReadTranscript(sess.TranscriptPath)
	if err != nil {
		t.Fatalf("read transcript: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 transcript entries, got %d", len(entries))
	}
	if entries[0].Type != session.EntryUserMessage || entries[1].Type != session.EntryAgentResponse {
		t.Error("unexpected transcript entry types")
	}
}
