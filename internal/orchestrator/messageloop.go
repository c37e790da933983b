package orchestrator

import (
	"context"
	"time"

	"github.com/shadehq/shade/internal/router"
)

// messageLoop scans all groups for unprocessed inbound messages at a fixed
// interval and hands the first trigger-matching message per group to the
// queue.
func (o *Orchestrator) messageLoop(ctx context.Context) {
	ticker := time.NewTicker(o.cfg.Poll.Message)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.scanOnce()
		}
	}
}

func (o *Orchestrator) scanOnce() {
	for _, group := range o.manager.Groups() {
		// One run at a time per group; a queued or active run already
		// covers everything unprocessed.
		if o.queue.IsGroupActive(group.ID) || o.queue.QueueDepth(group.ID) > 0 {
			continue
		}

		msgs, err := o.store.ListUnprocessedMessages(group.ID, 50)
		if err != nil {
			o.log.Error("failed to scan group messages", "group", group.ID, "error", err)
			continue
		}
		for _, msg := range msgs {
			if router.ShouldTrigger(msg.Content, group) {
				o.log.Info("trigger detected", "group", group.ID, "message", msg.ID)
				o.queue.Enqueue(group, msg)
				break
			}
		}
	}
}
