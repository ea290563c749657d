package daemon

import (
	"context"
	"testing"

	"stemforge/internal/config"
	"stemforge/internal/deps"
	"stemforge/internal/notifications"
	"stemforge/internal/pipeline"
	"stemforge/internal/queue"
	"stemforge/internal/stage"
	"stemforge/internal/testsupport"
	"stemforge/internal/workflow"
)

type gatedRunner struct {
	release chan struct{}
}

func (r *gatedRunner) Run(_ context.Context, job queue.Snapshot, events chan<- pipeline.Event) (queue.Result, error) {
	events <- pipeline.Event{JobID: job.ID, Stage: stage.Acquire, Progress: 30, Message: "Acquired"}
	if r.release != nil {
		<-r.release
	}
	return queue.Result{ArchivePath: "/tmp/" + job.ID + ".zip", Title: "Song", Stems: []string{"bass", "drums", "other", "vocals"}}, nil
}

func (r *gatedRunner) Health(context.Context) []stage.Health {
	return []stage.Health{stage.Healthy(stage.Locate)}
}

func noDeps(context.Context, *config.Config) []deps.Status {
	return []deps.Status{{Name: "yt-dlp", Command: "yt-dlp", Available: true}}
}

func newTestDaemon(t *testing.T, runner workflow.Runner, opts ...testsupport.ConfigOption) (*Daemon, *config.Config) {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	hub := notifications.NewHub()
	mgr := workflow.NewManager(cfg, queue.NewStore(), runner, notifications.NewMulti(nil, hub), nil)
	d, err := New(cfg, mgr, hub, nil, WithDependencyCheck(noDeps))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(d.Stop)
	return d, cfg
}
