// Package queue serializes agent runs per group, bounds total simultaneous
// runs, drives the execution engine and retries failures with exponential
// backoff.
package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shadehq/shade/internal/memory"
	"github.com/shadehq/shade/internal/router"
	"github.com/shadehq/shade/internal/runner"
	"github.com/shadehq/shade/internal/security"
	"github.com/shadehq/shade/internal/session"
	"github.com/shadehq/shade/internal/store"
)

// Sender delivers agent output back to a group's channel.
type Sender interface {
	SendMessageToGroup(ctx context.Context, groupID, text string) error
}

// Item is one pending agent run. Lives only inside the queue.
type Item struct {
	Group         *store.Group
	Message       *store.Message
	RetryCount    int
	TriggerSource string
	TaskID        string
}

// Config tunes the queue's concurrency and retry policy.
type Config struct {
	AssistantName      string
	GroupsDir          string
	MaxGlobal          int
	BaseDelay          time.Duration
	MaxRetries         int
	DefaultTimeout     time.Duration
	DefaultIdleTimeout time.Duration
	Backend            string
	Model              string
}

// GroupQueue is the concurrency core. One run per group at a time, at most
// MaxGlobal runs across all groups.
type GroupQueue struct {
	cfg      Config
	store    *store.Store
	sessions *session.Manager
	sender   Sender
	runner   runner.Runner
	memory   *memory.Manager
	log      *slog.Logger

	mu     sync.Mutex
	queues map[string][]*Item
	active map[string]bool
	sem    *Semaphore

	baseCtx context.Context
	wg      sync.WaitGroup
}

// New builds a group queue. Runs inherit baseCtx, so cancelling it aborts
// in-flight engine calls on shutdown.
func New(baseCtx context.Context, cfg Config, s *store.Store, sessions *session.Manager, sender Sender, r runner.Runner, log *slog.Logger) *GroupQueue {
	if log == nil {
		log = slog.Default()
	}
	return &GroupQueue{
		cfg:      cfg,
		store:    s,
		sessions: sessions,
		sender:   sender,
		runner:   r,
		memory:   memory.NewManager(cfg.GroupsDir),
		log:      log,
		queues:   make(map[string][]*Item),
		active:   make(map[string]bool),
		sem:      NewSemaphore(cfg.MaxGlobal),
		baseCtx:  baseCtx,
	}
}

// Enqueue appends a run for the group and immediately attempts admission.
// Never blocks.
func (q *GroupQueue) Enqueue(group *store.Group, msg *store.Message) {
	q.EnqueueItem(&Item{Group: group, Message: msg, TriggerSource: store.TriggerSourceMessage})
}

// EnqueueItem appends a prepared item, used for scheduled and manual runs.
func (q *GroupQueue) EnqueueItem(item *Item) {
	q.mu.Lock()
	q.queues[item.Group.ID] = append(q.queues[item.Group.ID], item)
	q.mu.Unlock()
	q.admit(item.Group.ID)
}

// admit pops and starts the group's next item when both the per-group flag
// and the global semaphore allow it. The whole decision happens under one
// mutex hold so the ceiling invariant cannot be violated by interleaving.
func (q *GroupQueue) admit(groupID string) {
	q.mu.Lock()
	if q.active[groupID] || len(q.queues[groupID]) == 0 {
		q.mu.Unlock()
		return
	}
	if !q.sem.TryAcquire() {
		q.mu.Unlock()
		return
	}
	item := q.queues[groupID][0]
	q.queues[groupID] = q.queues[groupID][1:]
	q.active[groupID] = true
	q.wg.Add(1)
	q.mu.Unlock()

	go func() {
		defer func() {
			q.mu.Lock()
			q.active[groupID] = false
			q.sem.Release()
			q.mu.Unlock()
			q.wg.Done()
			// The freed slot may unblock any group, not just this one:
			// a group refused admission at the global ceiling has no
			// other path back in.
			q.drainPending()
		}()
		q.process(item)
	}()
}

// drainPending retries admission for every group with queued items.
func (q *GroupQueue) drainPending() {
	q.mu.Lock()
	pending := make([]string, 0, len(q.queues))
	for id, items := range q.queues {
		if len(items) > 0 && !q.active[id] {
			pending = append(pending, id)
		}
	}
	q.mu.Unlock()
	for _, id := range pending {
		q.admit(id)
	}
}

// process executes one admitted item end to end.
func (q *GroupQueue) process(item *Item) {
	group := item.Group
	log := q.log.With("group", group.ID, "message", item.Message.ID, "retry", item.RetryCount)

	result, runErr := q.runOnce(item)
	if runErr == nil {
		return
	}

	status := store.RunStatusFailed
	if result != nil && result.Status == runner.StatusTimeout {
		status = store.RunStatusTimeout
	}
	log.Error("agent run failed", "status", status, "error", runErr)

	if q.baseCtx.Err() != nil {
		log.Info("shutdown in progress, not retrying")
		return
	}

	if item.RetryCount >= q.cfg.MaxRetries {
		log.Warn("retry limit exceeded, dropping item", "max_retries", q.cfg.MaxRetries)
		return
	}

	delay := q.cfg.BaseDelay * (1 << item.RetryCount)
	item.RetryCount++
	log.Info("scheduling retry", "delay", delay, "attempt", item.RetryCount)
	time.AfterFunc(delay, func() {
		if q.baseCtx.Err() != nil {
			return
		}
		// Reinsert at the queue head so the retry runs before newer
		// arrivals for this group.
		q.mu.Lock()
		q.queues[group.ID] = append([]*Item{item}, q.queues[group.ID]...)
		q.mu.Unlock()
		q.admit(group.ID)
	})
}

func (q *GroupQueue) runOnce(item *Item) (*runner.RunResult, error) {
	group := item.Group
	msg := item.Message
	start := time.Now()

	prompt, consumed, err := router.BuildPromptForGroup(q.store, group, msg, q.cfg.AssistantName)
	if err != nil {
		return nil, fmt.Errorf("failed to build prompt: %w", err)
	}

	sess, err := q.sessions.GetOrCreate(group.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	workDir, err := q.memory.EnsureGroupDir(group.Folder)
	if err != nil {
		return nil, err
	}

	backend := group.Backend
	if backend == "" {
		backend = q.cfg.Backend
	}
	runLog := &store.TaskRunLog{
		ID:            uuid.NewString(),
		GroupID:       group.ID,
		TaskID:        item.TaskID,
		SessionID:     sess.ID,
		TriggerSource: item.TriggerSource,
		Backend:       backend,
		Model:         q.cfg.Model,
		Status:        store.RunStatusRunning,
		Prompt:        prompt,
	}
	if err := q.store.CreateRunLog(runLog); err != nil {
		return nil, fmt.Errorf("failed to create run log: %w", err)
	}

	if err := session.AppendTranscript(sess.TranscriptPath, session.TranscriptEntry{
		Type:    session.EntryUserMessage,
		Sender:  msg.SenderName,
		Content: msg.Content,
	}); err != nil {
		q.log.Warn("failed to append transcript", "session", sess.ID, "error", err)
	}

	timeout := group.RunTimeout
	if timeout <= 0 {
		timeout = q.cfg.DefaultTimeout
	}
	idle := group.IdleTimeout
	if idle <= 0 {
		idle = q.cfg.DefaultIdleTimeout
	}

	result, err := q.runner.Run(q.baseCtx, runner.RunConfig{
		GroupID:      group.ID,
		SessionID:    sess.ID,
		Prompt:       prompt,
		SystemPrompt: fmt.Sprintf("You are %s, the assistant for group %q.", q.cfg.AssistantName, group.Name),
		Backend:      backend,
		Env: security.BuildAgentEnv(map[string]string{
			"SHADE_GROUP_ID":   group.ID,
			"SHADE_CHANNEL_ID": group.ChannelID,
		}),
		WorkingDir:  workDir,
		Timeout:     timeout,
		IdleTimeout: idle,
		Resume:      sess.MessageCount > 0,
		ResumeToken: sess.ResumeToken,
	})
	elapsed := time.Since(start)
	if err != nil {
		status := store.RunStatusFailed
		if result != nil && result.Status == runner.StatusTimeout {
			status = store.RunStatusTimeout
		}
		if dbErr := q.store.CompleteRunLog(runLog.ID, status, "", err.Error(), elapsed); dbErr != nil {
			q.log.Warn("failed to complete run log", "run", runLog.ID, "error", dbErr)
		}
		return result, err
	}

	output := router.FormatOutboundMessage(security.RedactSecrets(result.Output))
	if output != "" {
		if err := q.sender.SendMessageToGroup(q.baseCtx, group.ID, output); err != nil {
			q.log.Error("failed to deliver response", "group", group.ID, "error", err)
		}
	}

	if err := q.sessions.TouchActivity(sess.ID, 2); err != nil {
		q.log.Warn("failed to touch session", "session", sess.ID, "error", err)
	}
	if result.ResumeToken != "" && result.ResumeToken != sess.ResumeToken {
		if err := q.store.SetSessionResumeToken(sess.ID, result.ResumeToken); err != nil {
			q.log.Warn("failed to store resume token", "session", sess.ID, "error", err)
		}
	}
	if err := q.store.CompleteRunLog(runLog.ID, store.RunStatusCompleted, output, "", elapsed); err != nil {
		q.log.Warn("failed to complete run log", "run", runLog.ID, "error", err)
	}
	if err := session.AppendTranscript(sess.TranscriptPath, session.TranscriptEntry{
		Type:    session.EntryAgentResponse,
		Content: output,
	}); err != nil {
		q.log.Warn("failed to append transcript", "session", sess.ID, "error", err)
	}

	ids := consumed
	if !contains(ids, msg.ID) && msg.ID != "" {
		ids = append(ids, msg.ID)
	}
	if err := q.store.MarkMessagesProcessed(ids, time.Now()); err != nil {
		q.log.Warn("failed to stamp processed messages", "group", group.ID, "error", err)
	}

	q.log.Info("agent run completed", "group", group.ID, "duration", elapsed, "output_len", len(output))
	return result, nil
}

// QueueDepth returns the number of items waiting for a group.
func (q *GroupQueue) QueueDepth(groupID string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.queues[groupID])
}

// IsGroupActive reports whether the group has a running item.
func (q *GroupQueue) IsGroupActive(groupID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.active[groupID]
}

// ActiveRunCount returns the global number of running items.
func (q *GroupQueue) ActiveRunCount() int {
	return q.sem.InUse()
}

// Wait blocks until in-flight runs finish or the grace period elapses.
func (q *GroupQueue) Wait(grace time.Duration) {
	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(grace):
		q.log.Warn("shutdown grace period elapsed with runs in flight")
	}
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
