package pipeline

import (
	"context"

	"stemforge/internal/logging"
	"stemforge/internal/queue"
	"stemforge/internal/services"
	"stemforge/internal/stage"
)

// publish transfers the archive. Failures become warnings on result.
func (r *jobRun) publish(ctx context.Context, result *queue.Result) {
	logger := logging.WithContext(ctx, r.o.logger)
	if r.o.deps.Publisher == nil {
		warning := "upload requested but no publish target is configured"
		result.Warnings = append(result.Warnings, warning)
		logging.WarnWithContext(logger, "publish skipped", "publish_skipped",
			logging.String(logging.FieldImpact, "archive kept locally only"),
			logging.String(logging.FieldErrorHint, "configure publish.backend to enable uploads"),
		)
		return
	}

	r.rep.report(ctx, stage.ProgressPublishing, "Publishing archive")
	dest, err := r.o.deps.Publisher.Publish(ctx, result.ArchivePath)
	if err != nil {
		err = services.Wrap(services.ErrPublish, stage.Publish, "upload", "", err)
		result.Warnings = append(result.Warnings, err.Error())
		logging.WarnWithContext(logger, "publish failed; job still completes", "publish_failed",
			logging.Error(err),
			logging.String("archive_path", result.ArchivePath),
			logging.String(logging.FieldImpact, "archive was not uploaded"),
			logging.String(logging.FieldErrorHint, "check publish target connectivity and credentials"),
		)
		return
	}
	result.PublishedTo = dest
	logger.Info("archive published",
		logging.String("destination", dest),
		logging.String(logging.FieldEventType, "archive_published"),
	)
}
