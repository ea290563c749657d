package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"stemforge/internal/config"
	"stemforge/internal/daemon"
	"stemforge/internal/deps"
	"stemforge/internal/ipc"
	"stemforge/internal/notifications"
	"stemforge/internal/pipeline"
	"stemforge/internal/queue"
	"stemforge/internal/stage"
	"stemforge/internal/testsupport"
	"stemforge/internal/workflow"
)

// finishingRunner completes every job. A non-nil gate holds the job in
// processing until it is closed.
type finishingRunner struct {
	gate <-chan struct{}
}

func (r finishingRunner) Run(ctx context.Context, job queue.Snapshot, events chan<- pipeline.Event) (queue.Result, error) {
	events <- pipeline.Event{JobID: job.ID, Stage: stage.Separate, Progress: 60, Message: "Separating"}
	if r.gate != nil {
		select {
		case <-r.gate:
		case <-ctx.Done():
			return queue.Result{}, ctx.Err()
		}
	}
	return queue.Result{
		ArchivePath: filepath.Join(os.TempDir(), job.ID+".zip"),
		Title:       "Artist - Song",
		Strategy:    "default",
		Stems:       []string{"bass", "drums", "other", "vocals"},
	}, nil
}

func (finishingRunner) Health(context.Context) []stage.Health {
	return []stage.Health{stage.Healthy(stage.Locate), stage.Unhealthy(stage.Separate, "demucs missing")}
}

type cliTestEnv struct {
	cfg        *config.Config
	daemon     *daemon.Daemon
	socketPath string
	configPath string
	stops      *atomic.Int32
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()
	return setupCLITestEnvWithRunner(t, finishingRunner{})
}

func setupCLITestEnvWithRunner(t *testing.T, runner workflow.Runner) *cliTestEnv {
	t.Helper()

	t.Setenv("HOME", t.TempDir())
	cfg := testsupport.NewConfig(t)
	cfg.Paths.APIBind = ""
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	configPath := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	writeTestConfig(t, configPath, cfg)

	hub := notifications.NewHub()
	mgr := workflow.NewManager(cfg, queue.NewStore(), runner, hub, nil)
	d, err := daemon.New(cfg, mgr, hub, nil, daemon.WithDependencyCheck(func(context.Context, *config.Config) []deps.Status {
		return []deps.Status{{Name: "yt-dlp", Command: "yt-dlp", Available: true}}
	}))
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("daemon.Start: %v", err)
	}
	t.Cleanup(d.Stop)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	stops := &atomic.Int32{}
	srv, err := ipc.NewServer(ctx, cfg.SocketPath(), d, func() { stops.Add(1) }, nil)
	if err != nil {
		if strings.Contains(err.Error(), "operation not permitted") {
			t.Skipf("skipping CLI test: %v", err)
		}
		t.Fatalf("ipc.NewServer: %v", err)
	}
	srv.Serve()
	t.Cleanup(srv.Close)

	return &cliTestEnv{
		cfg:        cfg,
		daemon:     d,
		socketPath: cfg.SocketPath(),
		configPath: configPath,
		stops:      stops,
	}
}

func runCLI(t *testing.T, args []string, socket, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if socket != "" {
		flags = append(flags, "--socket", socket)
	}
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	content := fmt.Sprintf("[paths]\nscratch_dir = %q\nlog_dir = %q\n",
		cfg.Paths.ScratchDir,
		cfg.Paths.LogDir,
	)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
