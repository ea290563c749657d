package workflow

import (
	"context"
	"errors"
	"time"

	"stemforge/internal/logging"
	"stemforge/internal/notifications"
)

func (m *Manager) notify(ctx context.Context, event notifications.Event) {
	if m.notifier == nil {
		return
	}
	if event.Time.IsZero() {
		event.Time = time.Now().UTC()
	}
	if err := m.notifier.Publish(ctx, event); err != nil {
		logger := logging.WithContext(ctx, m.logger)
		if errors.Is(err, context.Canceled) {
			logger.Debug("daemon shutting down, notification dropped", logging.String("event", string(event.Type)))
			return
		}
		logger.Debug("notification delivery failed",
			logging.String("event", string(event.Type)),
			logging.Error(err),
		)
	}
}
