package notifications

import (
	"context"
	"errors"
	"log/slog"

	"stemforge/internal/config"
	"stemforge/internal/logging"
)

// Service publishes job events.
type Service interface {
	Publish(ctx context.Context, event Event) error
}

// NewService builds the configured sinks plus hub (when non-nil). The
// returned value also implements io.Closer.
func NewService(cfg *config.Config, hub *Hub, logger *slog.Logger) *Multi {
	logger = logging.NewComponentLogger(logger, "notifications")
	var sinks []Service
	if hub != nil {
		sinks = append(sinks, hub)
	}
	if cfg != nil {
		if ntfy := newNtfy(cfg.Notifications); ntfy != nil {
			sinks = append(sinks, ntfy)
		}
		if redisSink := newRedis(cfg.Notifications); redisSink != nil {
			sinks = append(sinks, redisSink)
		}
	}
	return &Multi{sinks: sinks, logger: logger}
}

// Multi fans an event out to every sink. One failing sink does not stop the others.
type Multi struct {
	sinks  []Service
	logger *slog.Logger
}

// NewMulti combines sinks.
func NewMulti(logger *slog.Logger, sinks ...Service) *Multi {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Multi{sinks: sinks, logger: logger}
}

// Publish delivers event to all sinks and joins their errors.
func (m *Multi) Publish(ctx context.Context, event Event) error {
	if m == nil {
		return nil
	}
	var errs []error
	for _, sink := range m.sinks {
		if err := sink.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Len returns the number of sinks.
func (m *Multi) Len() int {
	if m == nil {
		return 0
	}
	return len(m.sinks)
}

// Close releases sink resources.
func (m *Multi) Close() error {
	if m == nil {
		return nil
	}
	var errs []error
	for _, sink := range m.sinks {
		if closer, ok := sink.(interface{ Close() error }); ok {
			if err := closer.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// Noop discards events.
type Noop struct{}

// Publish implements Service.
func (Noop) Publish(context.Context, Event) error { return nil }
