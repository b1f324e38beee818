package workflow

import (
	"context"
	"errors"

	"herhaven/internal/logging"
	"herhaven/internal/notifications"
	"herhaven/internal/queue"
)

func (m *Manager) notifyResult(ctx context.Context, result queue.DrainResult) {
	for _, entry := range result.Failed {
		m.publish(ctx, notifications.EventEntryFailed, notifications.Payload{
			"queue":      string(result.Kind),
			"entryId":    entry.ID,
			"retryCount": entry.RetryCount,
		})
	}
	m.publish(ctx, notifications.EventDrainCompleted, notifications.Payload{
		"queue":  string(result.Kind),
		"synced": result.Synced,
		"failed": len(result.Failed),
	})
}

func (m *Manager) publish(ctx context.Context, event notifications.Event, payload notifications.Payload) {
	if m.notifier == nil {
		return
	}
	if ctx.Err() != nil {
		ctx = context.WithoutCancel(ctx)
	}
	if err := m.notifier.Publish(ctx, event, payload); err != nil {
		if errors.Is(err, context.Canceled) {
			m.logger.Debug("daemon shutting down, could not send notification", logging.String("event", string(event)))
			return
		}
		m.logger.Debug("notification failed", logging.String("event", string(event)), logging.Error(err))
	}
}
