package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"stemforge/internal/logging"
	"stemforge/internal/notifications"
	"stemforge/internal/pipeline"
	"stemforge/internal/queue"
	"stemforge/internal/services"
)

// progressBuffer bounds how far the orchestrator may run ahead of the store.
const progressBuffer = 16

// Start begins background processing and the retention sweeper.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("workflow already running")
	}
	if m.runner == nil {
		m.mu.Unlock()
		return errors.New("workflow runner not configured")
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	m.wg.Add(2)
	m.mu.Unlock()

	go m.runWorker(runCtx)
	go func() {
		defer m.wg.Done()
		m.sweeper.Run(runCtx)
	}()

	m.logger.Info("workflow started",
		logging.Duration("poll_interval", m.pollInterval),
		logging.Duration("job_cooldown", m.cooldown),
	)
	return nil
}

// Stop halts dequeuing and waits for the in-flight job to finish.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
	m.logger.Info("workflow stopped")
}

func (m *Manager) runWorker(ctx context.Context) {
	defer m.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		job, ok := m.store.Next()
		if !ok {
			m.waitForJobOrShutdown(ctx)
			continue
		}

		m.processJob(ctx, job)
		m.pause(ctx)
	}
}

func (m *Manager) waitForJobOrShutdown(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-m.store.Wake():
	case <-time.After(m.pollInterval):
	}
}

func (m *Manager) pause(ctx context.Context) {
	if m.cooldown <= 0 {
		return
	}
	select {
	case <-ctx.Done():
	case <-time.After(m.cooldown):
	}
}

// processJob runs one job to its terminal state. The run ignores shutdown
// cancellation so Stop always waits for a consistent outcome.
func (m *Manager) processJob(ctx context.Context, job queue.Snapshot) {
	jobCtx := services.WithJobID(context.WithoutCancel(ctx), job.ID)
	logger := logging.WithContext(jobCtx, m.logger)
	started := time.Now()

	logger.Info("job processing started",
		logging.String(logging.FieldEventType, "job_started"),
		logging.String("query", job.Query),
	)
	m.notify(jobCtx, notifications.Event{
		Type:     notifications.EventJobStarted,
		JobID:    job.ID,
		Query:    job.Query,
		Status:   string(queue.StatusProcessing),
		Progress: job.Progress,
		Message:  job.Message,
	})

	events := make(chan pipeline.Event, progressBuffer)
	drained := make(chan struct{})
	go func() {
		defer close(drained)
		for evt := range events {
			m.applyProgress(jobCtx, evt)
		}
	}()

	result, runErr := m.safeRun(jobCtx, logger, job, events)
	close(events)
	<-drained

	outcome := queue.Completed(result)
	if runErr != nil {
		outcome = queue.Failed(runErr.Error())
	}
	if err := m.store.Finish(job.ID, outcome); err != nil {
		logging.ErrorWithContext(logger, "failed to record job outcome", "job_finish_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "job state may be inconsistent; check for concurrent workers"),
		)
		m.setLastError(err)
		return
	}

	final, err := m.store.GetStatus(job.ID)
	if err != nil {
		final = job
	}
	m.setLastJob(final)
	elapsed := time.Since(started)

	if runErr != nil {
		m.setLastError(runErr)
		logging.WarnWithContext(logger, "job failed", "job_failed",
			logging.String("failed_stage", services.StageLabel(runErr)),
			logging.Duration("duration", elapsed),
			logging.Error(runErr),
			logging.String(logging.FieldImpact, "no archive was produced for this job"),
			logging.String(logging.FieldErrorHint, failureHint(runErr)),
		)
		m.notify(jobCtx, notifications.Event{
			Type:     notifications.EventJobFailed,
			JobID:    job.ID,
			Query:    job.Query,
			Status:   string(queue.StatusFailed),
			Stage:    services.StageLabel(runErr),
			Progress: final.Progress,
			Message:  final.Message,
			Error:    runErr.Error(),
		})
		return
	}

	m.setLastError(nil)
	logger.Info("job completed",
		logging.String(logging.FieldEventType, "job_complete"),
		logging.String("archive_path", result.ArchivePath),
		logging.String(logging.FieldStrategy, result.Strategy),
		logging.Int("stems", len(result.Stems)),
		logging.Int("warnings", len(result.Warnings)),
		logging.Duration("duration", elapsed),
	)
	for _, warning := range result.Warnings {
		m.notify(jobCtx, notifications.Event{
			Type:    notifications.EventPublishWarning,
			JobID:   job.ID,
			Query:   job.Query,
			Title:   result.Title,
			Message: warning,
		})
	}
	m.notify(jobCtx, notifications.Event{
		Type:        notifications.EventJobCompleted,
		JobID:       job.ID,
		Query:       job.Query,
		Status:      string(queue.StatusCompleted),
		Progress:    final.Progress,
		Message:     final.Message,
		Title:       result.Title,
		ArchivePath: result.ArchivePath,
	})
}

// safeRun converts a panic inside the runner into a failure for this job.
func (m *Manager) safeRun(ctx context.Context, logger *slog.Logger, job queue.Snapshot, events chan<- pipeline.Event) (result queue.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			logging.ErrorWithContext(logger, "pipeline panicked", "job_panic",
				logging.Any("panic", r),
				logging.String("stack", string(debug.Stack())),
				logging.String(logging.FieldErrorHint, "report this failure with the stack trace"),
			)
			result = queue.Result{}
			err = fmt.Errorf("internal error: %v", r)
		}
	}()
	return m.runner.Run(ctx, job, events)
}

func (m *Manager) applyProgress(ctx context.Context, evt pipeline.Event) {
	if !m.store.UpdateProgress(evt.JobID, evt.Progress, evt.Message) {
		return
	}
	m.notify(ctx, notifications.Event{
		Type:     notifications.EventJobProgress,
		JobID:    evt.JobID,
		Status:   string(queue.StatusProcessing),
		Stage:    evt.Stage,
		Progress: evt.Progress,
		Message:  evt.Message,
	})
}

func failureHint(err error) string {
	var hinted interface{ Hint() string }
	if errors.As(err, &hinted) {
		if hint := hinted.Hint(); hint != "" {
			return hint
		}
	}
	switch {
	case errors.Is(err, services.ErrLocate):
		return "refine the query or submit a direct link"
	case errors.Is(err, services.ErrSeparation):
		return "check the separator model and python environment with `stemforge deps`"
	case errors.Is(err, services.ErrArchive):
		return "check free space and permissions on the output directory"
	case errors.Is(err, services.ErrConfiguration):
		return "run `stemforge config validate`"
	default:
		return "inspect the daemon log for the failing stage"
	}
}
