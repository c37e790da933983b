// Package orchestrator wires the store, channels, queue, loops and IPC
// watcher into one running process and owns the start/stop lifecycle.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/shadehq/shade/internal/channels"
	"github.com/shadehq/shade/internal/config"
	"github.com/shadehq/shade/internal/ipc"
	"github.com/shadehq/shade/internal/memory"
	"github.com/shadehq/shade/internal/queue"
	"github.com/shadehq/shade/internal/runner"
	"github.com/shadehq/shade/internal/session"
	"github.com/shadehq/shade/internal/store"
)

const shutdownGrace = 30 * time.Second

// Orchestrator is the composition root.
type Orchestrator struct {
	cfg      *config.Config
	store    *store.Store
	manager  *channels.Manager
	sessions *session.Manager
	runner   runner.Runner
	queue    *queue.GroupQueue
	watcher  *ipc.Watcher
	server   *http.Server
	log      *slog.Logger

	cancel context.CancelFunc
}

// Options overrides parts of the default wiring, mainly for tests.
type Options struct {
	Runner  runner.Runner
	Factory channels.ConnectorFactory
	Logger  *slog.Logger
}

// New assembles an orchestrator over an opened store.
func New(cfg *config.Config, s *store.Store, opts Options) *Orchestrator {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	r := opts.Runner
	if r == nil {
		r = runner.NewAnthropicRunner(cfg.Anthropic.APIKey, cfg.Anthropic.Model, cfg.Anthropic.MaxTokens)
	}

	return &Orchestrator{
		cfg:      cfg,
		store:    s,
		manager:  channels.NewManager(s, opts.Factory, log),
		sessions: session.NewManager(s, cfg.Paths.SessionsDir()),
		runner:   r,
		log:      log,
	}
}

// Start connects channels, starts the poll loops and the webhook listener.
// It returns once everything is running.
func (o *Orchestrator) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel

	if err := memory.NewManager(o.cfg.Paths.GroupsDir()).InitGlobal(); err != nil {
		cancel()
		return fmt.Errorf("failed to init global memory: %w", err)
	}

	o.queue = queue.New(runCtx, queue.Config{
		AssistantName:      o.cfg.AssistantName,
		GroupsDir:          o.cfg.Paths.GroupsDir(),
		MaxGlobal:          o.cfg.Concurrency.MaxGlobal,
		BaseDelay:          o.cfg.Retry.BaseDelay,
		MaxRetries:         o.cfg.Retry.MaxRetries,
		DefaultTimeout:     o.cfg.Execution.Timeout,
		DefaultIdleTimeout: o.cfg.Execution.IdleTimeout,
		Backend:            "anthropic",
		Model:              o.cfg.Anthropic.Model,
	}, o.store, o.sessions, o.manager, o.runner, o.log)

	o.watcher = ipc.NewWatcher(o.cfg.Paths.IPCDir(), o.cfg.Poll.IPC, o.store, o.manager, o.log)

	if err := o.manager.Initialize(runCtx); err != nil {
		cancel()
		return err
	}

	mux := http.NewServeMux()
	mux.Handle("/webhooks/", channels.WebhookHandler(o.store, o.manager, o.log))
	o.server = &http.Server{Addr: o.cfg.HTTP.Addr, Handler: mux}

	go func() {
		if err := o.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			o.log.Error("webhook listener failed", "addr", o.cfg.HTTP.Addr, "error", err)
		}
	}()

	go o.messageLoop(runCtx)
	go o.watcher.Run(runCtx)
	go o.taskLoop(runCtx)

	o.log.Info("orchestrator started",
		"groups", len(o.manager.Groups()),
		"max_concurrent", o.cfg.Concurrency.MaxGlobal,
		"http", o.cfg.HTTP.Addr)
	return nil
}

// Stop halts the loops, disconnects channels and waits for in-flight runs.
func (o *Orchestrator) Stop() {
	if o.cancel != nil {
		o.cancel()
	}
	if o.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := o.server.Shutdown(shutdownCtx); err != nil {
			o.log.Warn("webhook listener shutdown failed", "error", err)
		}
	}
	o.manager.DisconnectAll()
	if o.queue != nil {
		o.queue.Wait(shutdownGrace)
	}
	o.log.Info("orchestrator stopped")
}

// Queue exposes the group queue for introspection.
func (o *Orchestrator) Queue() *queue.GroupQueue {
	return o.queue
}

// Manager exposes the channel manager.
func (o *Orchestrator) Manager() *channels.Manager {
	return o.manager
}
