package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"stemforge/internal/config"
	"stemforge/internal/daemon"
	"stemforge/internal/ipc"
	"stemforge/internal/logging"
	"stemforge/internal/notifications"
	"stemforge/internal/preflight"
	"stemforge/internal/queue"
	"stemforge/internal/workflow"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
}

// Run starts the stemforge daemon and blocks until a signal or an IPC stop
// request ends it. Shutdown waits for the in-flight job.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	signalCtx, stopSignals := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer stopSignals()
	runCtx, shutdown := context.WithCancel(signalCtx)
	defer shutdown()

	runID := time.Now().UTC().Format("20060102T150405.000Z")
	logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("stemforge-%s.log", runID))
	level := opts.LogLevel
	if level == "" {
		level = cfg.Logging.Level
	}
	logger, err := logging.New(logging.Options{
		Level:       level,
		Format:      cfg.Logging.Format,
		File:        logPath,
		Development: opts.Development,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update %s link: %v\n", logging.DaemonLogName, err)
	}
	if pruned := logging.PruneOldLogs(logger, cfg.Paths.LogDir, "stemforge-*.log", logPath, cfg.Logging.RetentionDays, time.Now()); pruned > 0 {
		logger.Info("old daemon logs pruned", logging.Int("removed", pruned))
	}

	logPreflight(runCtx, logger, cfg)

	orchestrator, err := NewPipeline(runCtx, cfg, logger)
	if err != nil {
		logger.Error("pipeline setup failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "pipeline_setup_failed"),
			logging.String(logging.FieldErrorHint, "run `stemforge config validate`"),
		)
		return err
	}

	hub := notifications.NewHub()
	notifier := notifications.NewService(cfg, hub, logger)
	defer notifier.Close()

	manager := workflow.NewManager(cfg, queue.NewStore(), orchestrator, notifier, logger)
	d, err := daemon.New(cfg, manager, hub, logger)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	if err := d.Start(runCtx); err != nil {
		return err
	}
	defer d.Stop()

	pidPath := cfg.PIDPath()
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	ipcServer, err := ipc.NewServer(runCtx, cfg.SocketPath(), d, shutdown, logger)
	if err != nil {
		return fmt.Errorf("start IPC server: %w", err)
	}

	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		ipcServer.Serve()
		<-gctx.Done()
		ipcServer.Close()
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("stemforge daemon shutting down",
			logging.String(logging.FieldEventType, "daemon_shutdown"),
		)
		d.Stop()
		return nil
	})
	return g.Wait()
}

func logPreflight(ctx context.Context, logger *slog.Logger, cfg *config.Config) {
	for _, result := range preflight.Failed(preflight.RunAll(ctx, cfg)) {
		logging.WarnWithContext(logger, "preflight check failed", "preflight_failed",
			logging.String("check", result.Name),
			logging.String("detail", result.Detail),
			logging.String(logging.FieldImpact, "jobs that depend on this check may fail"),
			logging.String(logging.FieldErrorHint, "run `stemforge deps` for details"),
		)
	}
}

func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := filepath.Join(logDir, logging.DaemonLogName)
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

// ReadPID returns the pid recorded by a running daemon.
func ReadPID(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(string(trimNewline(data)))
	if err != nil {
		return 0, fmt.Errorf("parse pid file %s: %w", path, err)
	}
	return pid, nil
}

func trimNewline(b []byte) []byte {
	for len(b) > 0 && (b[len(b)-1] == '\n' || b[len(b)-1] == '\r' || b[len(b)-1] == ' ') {
		b = b[:len(b)-1]
	}
	return b
}
