package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicRunner executes runs against the Anthropic Messages API.
type AnthropicRunner struct {
	client    *anthropic.Client
	model     string
	maxTokens int64

	mu     sync.Mutex
	active map[string]context.CancelFunc // keyed by session id
}

// NewAnthropicRunner builds a runner for the given API key and model.
func NewAnthropicRunner(apiKey, model string, maxTokens int) *AnthropicRunner {
	var clientOpts []option.RequestOption
	if apiKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(apiKey))
	}
	client := anthropic.NewClient(clientOpts...)
	return &AnthropicRunner{
		client:    &client,
		model:     model,
		maxTokens: int64(maxTokens),
		active:    make(map[string]context.CancelFunc),
	}
}

// Run sends the prompt as a single user turn. The run is bounded by
// cfg.Timeout; expiry yields a timeout result rather than an error.
func (r *AnthropicRunner) Run(ctx context.Context, cfg RunConfig) (*RunResult, error) {
	start := time.Now()

	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	r.mu.Lock()
	r.active[cfg.SessionID] = cancel
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		delete(r.active, cfg.SessionID)
		r.mu.Unlock()
	}()

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(r.model),
		MaxTokens: r.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(cfg.Prompt)),
		},
	}
	if cfg.SystemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: cfg.SystemPrompt}}
	}

	resp, err := r.client.Messages.New(ctx, params)
	elapsed := time.Since(start)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return &RunResult{
				SessionID: cfg.SessionID,
				Duration:  elapsed,
				Status:    StatusTimeout,
			}, fmt.Errorf("run timed out after %s", cfg.Timeout)
		}
		return &RunResult{
			SessionID: cfg.SessionID,
			Duration:  elapsed,
			Status:    StatusFailed,
		}, fmt.Errorf("anthropic api error: %w", err)
	}

	var output string
	for _, block := range resp.Content {
		if block.Type == "text" {
			output += block.AsText().Text
		}
	}

	return &RunResult{
		Output:    output,
		SessionID: cfg.SessionID,
		Duration:  elapsed,
		Status:    StatusCompleted,
	}, nil
}

// Stop cancels the in-flight run for a session, if any.
func (r *AnthropicRunner) Stop(sessionID string) {
	r.mu.Lock()
	cancel, ok := r.active[sessionID]
	r.mu.Unlock()
	if ok {
		cancel()
	}
}
