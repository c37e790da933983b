// Package config provides configuration types and loading for shade.
package config

import (
	"path/filepath"
	"time"
)

// Config is the root configuration struct.
type Config struct {
	AssistantName string          `json:"assistantName" envconfig:"ASSISTANT_NAME"`
	Paths         PathsConfig     `json:"paths"`
	Poll          PollConfig      `json:"poll"`
	Concurrency   ConcConfig      `json:"concurrency"`
	Retry         RetryConfig     `json:"retry"`
	Execution     ExecutionConfig `json:"execution"`
	Trigger       TriggerConfig   `json:"trigger"`
	Anthropic     ProviderConfig  `json:"anthropic"`
	HTTP          HTTPConfig      `json:"http"`
}

// HTTPConfig configures the inbound webhook listener.
type HTTPConfig struct {
	Addr string `json:"addr" envconfig:"ADDR"`
}

// PathsConfig groups all filesystem path settings. Groups, Sessions and IPC
// are derived from DataDir unless set explicitly.
type PathsConfig struct {
	DataDir  string `json:"dataDir" envconfig:"DATA_DIR"`
	Database string `json:"database,omitempty" envconfig:"DATABASE"`
	Groups   string `json:"groups,omitempty"`
	Sessions string `json:"sessions,omitempty"`
	IPC      string `json:"ipc,omitempty"`
}

// PollConfig holds the intervals of the three timer-driven loops.
type PollConfig struct {
	Message time.Duration `json:"message" envconfig:"MESSAGE_INTERVAL"`
	IPC     time.Duration `json:"ipc" envconfig:"IPC_INTERVAL"`
	Task    time.Duration `json:"task" envconfig:"TASK_INTERVAL"`
}

// ConcConfig bounds simultaneous agent runs across all groups.
type ConcConfig struct {
	MaxGlobal int `json:"maxGlobal" envconfig:"MAX_GLOBAL"`
}

// RetryConfig controls the group queue's backoff policy.
type RetryConfig struct {
	BaseDelay  time.Duration `json:"baseDelay" envconfig:"BASE_DELAY"`
	MaxRetries int           `json:"maxRetries" envconfig:"MAX_RETRIES"`
}

// ExecutionConfig holds default per-run limits, used when a group does not
// override them.
type ExecutionConfig struct {
	Timeout     time.Duration `json:"timeout" envconfig:"TIMEOUT"`
	IdleTimeout time.Duration `json:"idleTimeout" envconfig:"IDLE_TIMEOUT"`
}

// TriggerConfig holds the default trigger phrase for new groups.
type TriggerConfig struct {
	Default string `json:"default" envconfig:"DEFAULT"`
}

// ProviderConfig contains settings for the agent execution backend.
type ProviderConfig struct {
	APIKey    string `json:"apiKey" envconfig:"API_KEY"`
	Model     string `json:"model" envconfig:"MODEL"`
	MaxTokens int    `json:"maxTokens" envconfig:"MAX_TOKENS"`
}

// GroupsDir returns the working-directory root for group folders.
func (p PathsConfig) GroupsDir() string {
	if p.Groups != "" {
		return p.Groups
	}
	return filepath.Join(p.DataDir, "groups")
}

// SessionsDir returns the root of per-group session directories.
func (p PathsConfig) SessionsDir() string {
	if p.Sessions != "" {
		return p.Sessions
	}
	return filepath.Join(p.DataDir, "sessions")
}

// IPCDir returns the shared directory polled for command files.
func (p PathsConfig) IPCDir() string {
	if p.IPC != "" {
		return p.IPC
	}
	return filepath.Join(p.DataDir, "ipc")
}

// DatabasePath returns the sqlite database location.
func (p PathsConfig) DatabasePath() string {
	if p.Database != "" {
		return p.Database
	}
	return filepath.Join(p.DataDir, "shade.db")
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		AssistantName: "Shade",
		Paths: PathsConfig{
			DataDir: "~/.shade/data",
		},
		Poll: PollConfig{
			Message: 2 * time.Second,
			IPC:     1 * time.Second,
			Task:    60 * time.Second,
		},
		Concurrency: ConcConfig{
			MaxGlobal: 5,
		},
		Retry: RetryConfig{
			BaseDelay:  5 * time.Second,
			MaxRetries: 5,
		},
		Execution: ExecutionConfig{
			Timeout:     5 * time.Minute,
			IdleTimeout: 60 * time.Second,
		},
		Trigger: TriggerConfig{
			Default: "@Shade",
		},
		Anthropic: ProviderConfig{
			Model:     "claude-sonnet-4-5",
			MaxTokens: 8192,
		},
		HTTP: HTTPConfig{
			Addr: ":8090",
		},
	}
}
