package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	"github.com/gofrs/flock"

	"stemforge/internal/api"
	"stemforge/internal/config"
	"stemforge/internal/deps"
	"stemforge/internal/logging"
	"stemforge/internal/notifications"
	"stemforge/internal/queue"
	"stemforge/internal/workflow"
)

// Daemon coordinates the background processing services and enforces single-instance execution.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	workflow *workflow.Manager
	hub      *notifications.Hub

	lockPath string
	lock     *flock.Flock
	api      *apiServer

	running atomic.Bool
	cancel  context.CancelFunc

	depsMu       sync.RWMutex
	dependencies []deps.Status
	checkDeps    func(context.Context, *config.Config) []deps.Status
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	PID          int
	LockFilePath string
	SocketPath   string
	APIBind      string
	Workflow     workflow.StatusSummary
	Dependencies []deps.Status
}

// Option customizes a Daemon.
type Option func(*Daemon)

// WithDependencyCheck replaces the external tool check run at start.
func WithDependencyCheck(check func(context.Context, *config.Config) []deps.Status) Option {
	return func(d *Daemon) {
		if check != nil {
			d.checkDeps = check
		}
	}
}

// New constructs a daemon with initialized dependencies. hub may be nil, in
// which case live event streaming is unavailable.
func New(cfg *config.Config, wf *workflow.Manager, hub *notifications.Hub, logger *slog.Logger, opts ...Option) (*Daemon, error) {
	if cfg == nil || wf == nil {
		return nil, errors.New("daemon requires config and workflow manager")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	d := &Daemon{
		cfg:       cfg,
		logger:    logger,
		workflow:  wf,
		hub:       hub,
		lockPath:  cfg.LockPath(),
		lock:      flock.New(cfg.LockPath()),
		checkDeps: deps.CheckAll,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.api = newAPIServer(cfg, d, logger)
	return d, nil
}

// Start acquires the daemon lock, then launches the workflow manager and the
// HTTP API.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another stemforge daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.workflow.Start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return fmt.Errorf("start workflow: %w", err)
	}
	if err := d.api.start(runCtx); err != nil {
		d.workflow.Stop()
		cancel()
		_ = d.lock.Unlock()
		return err
	}
	d.cancel = cancel
	d.running.Store(true)
	d.refreshDependencies(runCtx)

	d.logger.Info("stemforge daemon started",
		logging.String("lock", d.lockPath),
		logging.String("api", d.APIAddr()),
	)
	return nil
}

// Stop halts the API, waits for the in-flight job and releases the lock.
func (d *Daemon) Stop() {
	if !d.running.Swap(false) {
		return
	}
	d.api.stop()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.workflow.Stop()
	if d.hub != nil {
		_ = d.hub.Close()
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock",
			logging.Error(err),
			logging.String(logging.FieldEventType, "daemon_unlock_failed"),
			logging.String(logging.FieldErrorHint, "remove "+d.lockPath+" if the next start reports a running instance"),
		)
	}
	d.logger.Info("stemforge daemon stopped")
}

// Submit validates and enqueues a job.
func (d *Daemon) Submit(ctx context.Context, req api.SubmitRequest) (api.SubmitResponse, error) {
	if err := req.Validate(); err != nil {
		return api.SubmitResponse{}, err
	}
	snap, err := d.workflow.Submit(ctx, req.Submission())
	if err != nil {
		return api.SubmitResponse{}, err
	}
	return api.SubmitResponse{
		JobID:         snap.ID,
		QueuePosition: snap.QueuePosition,
		Status:        string(snap.Status),
	}, nil
}

// Job returns a snapshot of one job.
func (d *Daemon) Job(id string) (queue.Snapshot, error) {
	return d.workflow.Store().GetStatus(id)
}

// Jobs returns every retained job in submission order.
func (d *Daemon) Jobs() []queue.Snapshot {
	return d.workflow.Store().List()
}

// Queue summarizes queue depth and the processing job.
func (d *Daemon) Queue() api.QueueSummary {
	store := d.workflow.Store()
	var current *queue.Snapshot
	if snap, ok := store.Current(); ok {
		current = &snap
	}
	return api.NewQueueSummary(store.QueueLength(), current, store.Stats())
}

// UpdateMetadata validates and merges side-channel metadata into a job.
func (d *Daemon) UpdateMetadata(id string, req api.MetadataRequest) (queue.Snapshot, error) {
	if err := req.Validate(); err != nil {
		return queue.Snapshot{}, err
	}
	if err := d.workflow.UpdateMetadata(id, req.Metadata); err != nil {
		return queue.Snapshot{}, err
	}
	return d.workflow.Store().GetStatus(id)
}

// Hub returns the live event hub, or nil when streaming is disabled.
func (d *Daemon) Hub() *notifications.Hub {
	return d.hub
}

// APIAddr reports the bound HTTP address, or "" when the API is disabled.
func (d *Daemon) APIAddr() string {
	return d.api.addr()
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	d.depsMu.RLock()
	dependencies := append([]deps.Status(nil), d.dependencies...)
	d.depsMu.RUnlock()
	return Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		LockFilePath: d.lockPath,
		SocketPath:   d.cfg.SocketPath(),
		APIBind:      d.APIAddr(),
		Workflow:     d.workflow.Status(ctx),
		Dependencies: dependencies,
	}
}

func (d *Daemon) refreshDependencies(ctx context.Context) {
	statuses := d.checkDeps(ctx, d.cfg)
	d.depsMu.Lock()
	d.dependencies = statuses
	d.depsMu.Unlock()
	if missing := deps.Missing(statuses); len(missing) > 0 {
		logging.WarnWithContext(d.logger, "required dependencies missing", "dependencies_missing",
			logging.Any("missing", missing),
			logging.String(logging.FieldImpact, "jobs will fail at the stage that needs them"),
			logging.String(logging.FieldErrorHint, "run `stemforge deps` for install hints"),
		)
	}
}

// ToAPIStatus converts a daemon status for transport.
func ToAPIStatus(status Status) api.DaemonStatus {
	return api.DaemonStatus{
		Running:      status.Running,
		PID:          status.PID,
		LockFilePath: status.LockFilePath,
		SocketPath:   status.SocketPath,
		APIBind:      status.APIBind,
		Workflow:     api.FromStatusSummary(status.Workflow),
		Dependencies: api.FromDependencies(status.Dependencies),
	}
}
