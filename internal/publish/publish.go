// Package publish transfers finished archives to a configured destination.
//
// Two backends are available: S3-compatible object storage and SCP over
// SSH. Publishing is optional; New returns a nil Publisher when no backend
// is configured.
package publish

import (
	"context"
	"fmt"
	"log/slog"

	"stemforge/internal/config"
	"stemforge/internal/logging"
)

// Publisher uploads an archive and returns a description of where it landed.
type Publisher interface {
	Publish(ctx context.Context, archivePath string) (string, error)
}

// New builds the publisher selected by cfg.Publish.Backend.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (Publisher, error) {
	if cfg == nil || !cfg.PublishEnabled() {
		return nil, nil
	}
	logger = logging.NewComponentLogger(logger, "publish")
	switch cfg.Publish.Backend {
	case "s3":
		pub, err := NewS3(ctx, cfg.Publish.S3, logger)
		if err != nil {
			return nil, err
		}
		return pub, nil
	case "scp":
		pub, err := NewSCP(cfg.Publish.SCP, logger)
		if err != nil {
			return nil, err
		}
		return pub, nil
	default:
		return nil, fmt.Errorf("unsupported publish backend %q", cfg.Publish.Backend)
	}
}
