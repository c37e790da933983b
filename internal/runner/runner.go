// Package runner defines the agent execution engine contract and its
// backends. The orchestration core treats a runner as an opaque function
// from prompt and config to output text.
package runner

import (
	"context"
	"time"
)

// RunConfig carries everything one agent invocation needs.
type RunConfig struct {
	GroupID      string
	SessionID    string
	Prompt       string
	SystemPrompt string
	Backend      string
	Env          map[string]string
	WorkingDir   string
	Timeout      time.Duration
	IdleTimeout  time.Duration
	Resume       bool
	ResumeToken  string
}

// RunResult is the outcome of one agent invocation.
type RunResult struct {
	Output      string
	SessionID   string
	ResumeToken string
	Duration    time.Duration
	Status      string // completed | failed | timeout
}

const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusTimeout   = "timeout"
)

// Runner executes agent runs. Implementations must honor ctx cancellation
// and the config timeout.
type Runner interface {
	Run(ctx context.Context, cfg RunConfig) (*RunResult, error)
	// Stop aborts the in-flight run for a session, if any.
	Stop(sessionID string)
}
