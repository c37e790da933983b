package ipc

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/shadehq/shade/internal/store"
)

// Sender is the channel-manager send path used by send_message commands.
// The low-level form is used because a command may name the channel to
// deliver through.
type Sender interface {
	SendMessage(ctx context.Context, channelID, externalGroupID, text string) error
}

// Watcher polls the IPC directory and executes authorized commands.
type Watcher struct {
	dir      string
	interval time.Duration
	store    *store.Store
	sender   Sender
	log      *slog.Logger
}

// NewWatcher builds a watcher over dir polling at the given interval.
func NewWatcher(dir string, interval time.Duration, s *store.Store, sender Sender, log *slog.Logger) *Watcher {
	if log == nil {
		log = slog.Default()
	}
	return &Watcher{dir: dir, interval: interval, store: s, sender: sender, log: log}
}

// Run polls until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.PollOnce(ctx)
		}
	}
}

// PollOnce drains every .json command file currently in the directory.
// Each file is consumed exactly once: deleted on success or denial, renamed
// with a .failed suffix on parse or processing error.
func (w *Watcher) PollOnce(ctx context.Context) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		w.log.Error("failed to read ipc dir", "dir", w.dir, "error", err)
		return
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		w.handleFile(ctx, filepath.Join(w.dir, entry.Name()))
	}
}

func (w *Watcher) handleFile(ctx context.Context, path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		w.log.Error("failed to read command file", "file", path, "error", err)
		return
	}

	var cmd Command
	if err := json.Unmarshal(data, &cmd); err != nil {
		w.log.Error("malformed command file, quarantining", "file", path, "error", err)
		w.quarantine(path)
		return
	}

	allowed, reason, err := w.authorize(cmd)
	if err != nil {
		w.log.Error("authorization check failed", "file", path, "error", err)
		w.quarantine(path)
		return
	}
	if !allowed {
		w.log.Warn("command denied", "file", path, "type", cmd.Type, "group", cmd.GroupID, "reason", reason)
		os.Remove(path)
		return
	}

	if err := w.process(ctx, cmd); err != nil {
		w.log.Error("command processing failed, quarantining", "file", path, "type", cmd.Type, "error", err)
		w.quarantine(path)
		return
	}
	os.Remove(path)
}

func (w *Watcher) quarantine(path string) {
	if err := os.Rename(path, path+".failed"); err != nil {
		w.log.Error("failed to quarantine command file", "file", path, "error", err)
	}
}

// authorize enforces the group privilege model: the main group may do
// anything; other groups may only message themselves and mutate their own
// tasks. Unknown originating groups are denied.
func (w *Watcher) authorize(cmd Command) (bool, string, error) {
	origin, err := w.store.GetGroup(cmd.GroupID)
	if err != nil {
		return false, "", err
	}
	if origin == nil {
		return false, "unknown group", nil
	}
	if origin.IsMain {
		return true, "", nil
	}

	switch cmd.Type {
	case KindSendMessage:
		if cmd.TargetGroupID != "" && cmd.TargetGroupID != cmd.GroupID {
			return false, "cross-group send not permitted", nil
		}
		return true, "", nil
	case KindCreateTask:
		return true, "", nil
	case KindUpdateTask, KindPauseTask, KindResumeTask, KindCancelTask:
		task, err := w.store.GetTask(cmd.TaskID)
		if err != nil {
			return false, "", err
		}
		if task == nil {
			return false, "task not found", nil
		}
		if task.GroupID != cmd.GroupID {
			return false, "task owned by another group", nil
		}
		return true, "", nil
	default:
		// Unknown kinds are allowed through so process can log and skip them.
		return true, "", nil
	}
}

func (w *Watcher) process(ctx context.Context, cmd Command) error {
	switch cmd.Type {
	case KindSendMessage:
		target := cmd.TargetGroupID
		if target == "" {
			target = cmd.GroupID
		}
		group, err := w.store.GetGroup(target)
		if err != nil {
			return err
		}
		if group == nil {
			return fmt.Errorf("target group %s not found", target)
		}
		channelID := cmd.ChannelID
		if channelID == "" {
			channelID = group.ChannelID
		}
		return w.sender.SendMessage(ctx, channelID, group.ExternalID, cmd.Content)

	case KindCreateTask:
		var data TaskData
		if len(cmd.Data) > 0 {
			if err := json.Unmarshal(cmd.Data, &data); err != nil {
				return fmt.Errorf("bad task data: %w", err)
			}
		}
		task := &store.ScheduledTask{
			ID:           uuid.NewString(),
			GroupID:      cmd.GroupID,
			ScheduleType: store.ScheduleTypeOnce,
			Status:       store.TaskStatusActive,
		}
		applyTaskData(task, data)
		return w.store.CreateTask(task)

	case KindUpdateTask:
		task, err := w.store.GetTask(cmd.TaskID)
		if err != nil {
			return err
		}
		if task == nil {
			return fmt.Errorf("task %s not found", cmd.TaskID)
		}
		var data TaskData
		if len(cmd.Data) > 0 {
			if err := json.Unmarshal(cmd.Data, &data); err != nil {
				return fmt.Errorf("bad task data: %w", err)
			}
		}
		applyTaskData(task, data)
		return w.store.UpdateTask(task)

	case KindPauseTask:
		return w.store.SetTaskStatus(cmd.TaskID, store.TaskStatusPaused)
	case KindResumeTask:
		return w.store.SetTaskStatus(cmd.TaskID, store.TaskStatusActive)
	case KindCancelTask:
		return w.store.SetTaskStatus(cmd.TaskID, store.TaskStatusCancelled)

	default:
		w.log.Warn("unknown command kind ignored", "type", cmd.Type, "group", cmd.GroupID)
		return nil
	}
}

func applyTaskData(task *store.ScheduledTask, data TaskData) {
	if data.Name != nil {
		task.Name = *data.Name
	}
	if data.Prompt != nil {
		task.Prompt = *data.Prompt
	}
	if data.ScheduleType != nil {
		task.ScheduleType = *data.ScheduleType
	}
	if data.Schedule != nil {
		task.Schedule = *data.Schedule
	}
	if data.Classification != nil {
		task.Classification = *data.Classification
	}
	if data.NextRunAt != nil {
		task.NextRunAt = data.NextRunAt
	}
	if data.MaxRuns != nil {
		task.MaxRuns = *data.MaxRuns
	}
}
