package store

import (
	"time"
)

// Channel represents an external messaging surface.
type Channel struct {
	ID              string     `json:"id"`
	Type            string     `json:"type"` // slack | webhook
	Name            string     `json:"name"`
	Status          string     `json:"status"` // active | inactive | error
	Config          string     `json:"config"` // opaque per-type JSON blob
	LastConnectedAt *time.Time `json:"last_connected_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

const (
	ChannelTypeSlack   = "slack"
	ChannelTypeWebhook = "webhook"

	ChannelStatusActive   = "active"
	ChannelStatusInactive = "inactive"
	ChannelStatusError    = "error"
)

// Group is a conversation scope owned by one channel.
type Group struct {
	ID              string        `json:"id"`
	ChannelID       string        `json:"channel_id"`
	ExternalID      string        `json:"external_id"`
	Name            string        `json:"name"`
	Folder          string        `json:"folder"` // unique filesystem namespace
	Trigger         string        `json:"trigger"`
	RequiresTrigger bool          `json:"requires_trigger"`
	IsMain          bool          `json:"is_main"`
	Backend         string        `json:"backend,omitempty"`
	RunTimeout      time.Duration `json:"run_timeout,omitempty"`
	IdleTimeout     time.Duration `json:"idle_timeout,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

// Message is one inbound or outbound chat turn.
type Message struct {
	ID               string     `json:"id"`
	GroupID          string     `json:"group_id"`
	ChannelID        string     `json:"channel_id"`
	ExternalID       string     `json:"external_id,omitempty"`
	SenderName       string     `json:"sender_name"`
	SenderExternalID string     `json:"sender_external_id,omitempty"`
	Content          string     `json:"content"`
	IsFromBot        bool       `json:"is_from_bot"`
	ProcessedAt      *time.Time `json:"processed_at,omitempty"` // nil = awaiting agent response
	Metadata         string     `json:"metadata,omitempty"`     // JSON blob
	CreatedAt        time.Time  `json:"created_at"`
}

// AgentSession is one resumable conversation context with the engine.
// At most one active session per group.
type AgentSession struct {
	ID             string    `json:"id"`
	GroupID        string    `json:"group_id"`
	TranscriptPath string    `json:"transcript_path"`
	Status         string    `json:"status"` // active | closed | archived
	MessageCount   int       `json:"message_count"`
	LastActivityAt time.Time `json:"last_activity_at"`
	ResumeToken    string    `json:"resume_token,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

const (
	SessionStatusActive   = "active"
	SessionStatusClosed   = "closed"
	SessionStatusArchived = "archived"
)

// ScheduledTask is a recurring or one-shot prompt bound to a group.
type ScheduledTask struct {
	ID             string     `json:"id"`
	GroupID        string     `json:"group_id"`
	Name           string     `json:"name"`
	Prompt         string     `json:"prompt"`
	ScheduleType   string     `json:"schedule_type"` // cron | interval | once
	Schedule       string     `json:"schedule"`
	Status         string     `json:"status"` // active | paused | completed | cancelled
	Classification string     `json:"classification"`
	NextRunAt      *time.Time `json:"next_run_at,omitempty"`
	LastRunAt      *time.Time `json:"last_run_at,omitempty"`
	RunCount       int        `json:"run_count"`
	MaxRuns        int        `json:"max_runs,omitempty"` // 0 = unlimited
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

const (
	TaskStatusActive    = "active"
	TaskStatusPaused    = "paused"
	TaskStatusCompleted = "completed"
	TaskStatusCancelled = "cancelled"

	ScheduleTypeCron     = "cron"
	ScheduleTypeInterval = "interval"
	ScheduleTypeOnce     = "once"
)

// TaskRunLog is an audit record of one agent invocation.
type TaskRunLog struct {
	ID             string     `json:"id"`
	GroupID        string     `json:"group_id"`
	TaskID         string     `json:"task_id,omitempty"`
	SessionID      string     `json:"session_id,omitempty"`
	TriggerSource  string     `json:"trigger_source"` // message | scheduled | webhook | manual
	Classification string     `json:"classification"`
	Backend        string     `json:"backend,omitempty"`
	Model          string     `json:"model,omitempty"`
	Status         string     `json:"status"` // running | completed | failed | timeout
	Prompt         string     `json:"prompt,omitempty"`
	Result         string     `json:"result,omitempty"`
	Error          string     `json:"error,omitempty"`
	StartedAt      time.Time  `json:"started_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	DurationMs     int64      `json:"duration_ms"`
}

const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
	RunStatusTimeout   = "timeout"

	TriggerSourceMessage   = "message"
	TriggerSourceScheduled = "scheduled"
	TriggerSourceWebhook   = "webhook"
	TriggerSourceManual    = "manual"

	ClassificationPublic    = "public"
	ClassificationInternal  = "internal"
	ClassificationSensitive = "sensitive"
	ClassificationCritical  = "critical"
)

// WebhookSource is a registered inbound webhook endpoint.
type WebhookSource struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	GroupID    string    `json:"group_id"`
	Secret     string    `json:"secret,omitempty"`
	Enabled    bool      `json:"enabled"`
	SenderName string    `json:"sender_name,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}
