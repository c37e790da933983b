package orchestrator

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/shadehq/shade/internal/queue"
	"github.com/shadehq/shade/internal/store"
)

// taskLoop polls for due scheduled tasks and enqueues a synthetic
// triggering message for each.
func (o *Orchestrator) taskLoop(ctx context.Context) {
	ticker := time.NewTicker(o.cfg.Poll.Task)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.runDueTasks()
		}
	}
}

func (o *Orchestrator) runDueTasks() {
	now := time.Now()
	tasks, err := o.store.ListDueTasks(now)
	if err != nil {
		o.log.Error("failed to list due tasks", "error", err)
		return
	}
	for _, task := range tasks {
		group := o.manager.GroupByID(task.GroupID)
		if group == nil {
			o.log.Warn("due task for unknown group skipped", "task", task.ID, "group", task.GroupID)
			continue
		}

		o.log.Info("scheduled task due", "task", task.ID, "group", group.ID, "name", task.Name)
		o.queue.EnqueueItem(&queue.Item{
			Group: group,
			Message: &store.Message{
				ID:         uuid.NewString(),
				GroupID:    group.ID,
				ChannelID:  group.ChannelID,
				SenderName: "scheduler",
				Content:    task.Prompt,
				Metadata:   `{"taskId":"` + task.ID + `"}`,
			},
			TriggerSource: store.TriggerSourceScheduled,
			TaskID:        task.ID,
		})

		o.advanceTask(task, now)
	}
}

// advanceTask bumps run bookkeeping and computes the next firing time.
// Interval schedules are a second count; once schedules complete after one
// firing; cron schedules are stored verbatim and rescheduled by the admin
// surface, so the due stamp is cleared here.
func (o *Orchestrator) advanceTask(task *store.ScheduledTask, now time.Time) {
	task.RunCount++
	task.LastRunAt = &now

	switch task.ScheduleType {
	case store.ScheduleTypeInterval:
		secs, err := strconv.Atoi(task.Schedule)
		if err != nil || secs <= 0 {
			o.log.Warn("bad interval schedule, pausing task", "task", task.ID, "schedule", task.Schedule)
			task.Status = store.TaskStatusPaused
			task.NextRunAt = nil
		} else {
			next := now.Add(time.Duration(secs) * time.Second)
			task.NextRunAt = &next
		}
	case store.ScheduleTypeOnce:
		task.Status = store.TaskStatusCompleted
		task.NextRunAt = nil
	default:
		task.NextRunAt = nil
	}

	if task.MaxRuns > 0 && task.RunCount >= task.MaxRuns {
		task.Status = store.TaskStatusCompleted
		task.NextRunAt = nil
	}

	if err := o.store.UpdateTask(task); err != nil {
		o.log.Error("failed to advance task", "task", task.ID, "error", err)
	}
}
