// Package ipc implements the filesystem command queue. In-flight agent runs
// cannot call back into the process, so they drop JSON command files into a
// shared directory; the watcher drains, authorizes and executes them.
package ipc

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// Command kinds.
const (
	KindSendMessage = "send_message"
	KindCreateTask  = "create_task"
	KindUpdateTask  = "update_task"
	KindPauseTask   = "pause_task"
	KindResumeTask  = "resume_task"
	KindCancelTask  = "cancel_task"
)

// Command is one file-encoded instruction.
type Command struct {
	Type    string `json:"type"`
	GroupID string `json:"groupId"` // originating group

	// send_message fields
	ChannelID     string `json:"channelId,omitempty"`
	Content       string `json:"content,omitempty"`
	TargetGroupID string `json:"targetGroupId,omitempty"`

	// task fields
	TaskID string          `json:"taskId,omitempty"`
	Data   json.RawMessage `json:"data,omitempty"`
}

// TaskData is the payload of create_task and update_task commands. Pointer
// fields distinguish "absent" from zero on update.
type TaskData struct {
	Name           *string    `json:"name,omitempty"`
	Prompt         *string    `json:"prompt,omitempty"`
	ScheduleType   *string    `json:"scheduleType,omitempty"`
	Schedule       *string    `json:"schedule,omitempty"`
	Classification *string    `json:"classification,omitempty"`
	NextRunAt      *time.Time `json:"nextRunAt,omitempty"`
	MaxRuns        *int       `json:"maxRuns,omitempty"`
}

// Publish writes a command into dir using the write-temp-then-rename
// contract, so a poller never observes a partial file.
func Publish(dir string, cmd Command) (string, error) {
	data, err := json.Marshal(cmd)
	if err != nil {
		return "", fmt.Errorf("failed to marshal command: %w", err)
	}
	id := uuid.NewString()
	tmp := filepath.Join(dir, id+".tmp")
	final := filepath.Join(dir, id+".json")
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write command file: %w", err)
	}
	if err := os.Rename(tmp, final); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("failed to publish command file: %w", err)
	}
	return final, nil
}
