package workflow

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"stemforge/internal/config"
	"stemforge/internal/logging"
	"stemforge/internal/notifications"
	"stemforge/internal/pipeline"
	"stemforge/internal/queue"
	"stemforge/internal/stage"
)

// Runner executes one job end to end.
type Runner interface {
	Run(ctx context.Context, job queue.Snapshot, events chan<- pipeline.Event) (queue.Result, error)
	Health(ctx context.Context) []stage.Health
}

// Manager coordinates queue processing with a single worker.
type Manager struct {
	cfg          *config.Config
	store        *queue.Store
	runner       Runner
	notifier     notifications.Service
	logger       *slog.Logger
	pollInterval time.Duration
	cooldown     time.Duration
	sweeper      *Sweeper

	mu      sync.RWMutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	lastErr error
	lastJob *queue.Snapshot
}

// NewManager constructs a workflow manager. A nil notifier disables
// lifecycle notifications.
func NewManager(cfg *config.Config, store *queue.Store, runner Runner, notifier notifications.Service, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	if notifier == nil {
		notifier = notifications.Noop{}
	}
	logger = logging.NewComponentLogger(logger, "workflow")
	return &Manager{
		cfg:          cfg,
		store:        store,
		runner:       runner,
		notifier:     notifier,
		logger:       logger,
		pollInterval: time.Duration(cfg.Workflow.QueuePollSeconds) * time.Second,
		cooldown:     time.Duration(cfg.Workflow.JobCooldownMillis) * time.Millisecond,
		sweeper: NewSweeper(store,
			time.Duration(cfg.Workflow.RetentionHours)*time.Hour,
			time.Duration(cfg.Workflow.SweepIntervalMinutes)*time.Minute,
			logger,
		),
	}
}

// Store exposes the queue the manager drains.
func (m *Manager) Store() *queue.Store {
	return m.store
}

// Submit enqueues a job and announces it.
func (m *Manager) Submit(ctx context.Context, sub queue.Submission) (queue.Snapshot, error) {
	snap, err := m.store.Enqueue(sub)
	if err != nil {
		return queue.Snapshot{}, err
	}
	m.logger.Info("job queued",
		logging.String(logging.FieldJobID, snap.ID),
		logging.String("query", snap.Query),
		logging.Int("queue_position", snap.QueuePosition),
		logging.Bool("upload_requested", snap.UploadRequested),
	)
	m.notify(ctx, notifications.Event{
		Type:    notifications.EventJobQueued,
		JobID:   snap.ID,
		Query:   snap.Query,
		Status:  string(snap.Status),
		Message: snap.Message,
	})
	return snap, nil
}

// UpdateMetadata merges side-channel metadata into a job.
func (m *Manager) UpdateMetadata(jobID string, mapping map[string]string) error {
	if err := m.store.UpdateMetadata(jobID, mapping); err != nil {
		return err
	}
	m.logger.Debug("job metadata updated",
		logging.String(logging.FieldJobID, jobID),
		logging.Int("keys", len(mapping)),
	)
	return nil
}
