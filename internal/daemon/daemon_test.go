package daemon

import (
	"context"
	"errors"
	"testing"

	"stemforge/internal/api"
	"stemforge/internal/notifications"
	"stemforge/internal/queue"
	"stemforge/internal/services"
	"stemforge/internal/workflow"
)

func TestDaemonStartStop(t *testing.T) {
	d, cfg := newTestDaemon(t, &gatedRunner{})
	ctx := context.Background()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	status := d.Status(ctx)
	if !status.Running || status.LockFilePath != cfg.LockPath() {
		t.Fatalf("unexpected status %+v", status)
	}
	if len(status.Dependencies) != 1 || !status.Dependencies[0].Available {
		t.Fatalf("expected cached dependency status, got %+v", status.Dependencies)
	}
	if err := d.Start(ctx); err == nil {
		t.Fatal("expected second start to fail")
	}

	d.Stop()
	if d.Status(ctx).Running {
		t.Fatal("expected daemon to be stopped")
	}
}

func TestDaemonLockBlocksSecondInstance(t *testing.T) {
	first, cfg := newTestDaemon(t, &gatedRunner{})
	if err := first.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	hub := notifications.NewHub()
	mgr := workflow.NewManager(cfg, queue.NewStore(), &gatedRunner{}, hub, nil)
	second, err := New(cfg, mgr, hub, nil, WithDependencyCheck(noDeps))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := second.Start(context.Background()); err == nil {
		second.Stop()
		t.Fatal("expected lock contention to block the second daemon")
	}
}

func TestDaemonSubmitValidates(t *testing.T) {
	d, _ := newTestDaemon(t, &gatedRunner{})

	resp, err := d.Submit(context.Background(), api.SubmitRequest{Query: "artist - title"})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if resp.JobID == "" || resp.QueuePosition != 0 || resp.Status != "pending" {
		t.Fatalf("unexpected response %+v", resp)
	}

	_, err = d.Submit(context.Background(), api.SubmitRequest{Query: "q", OutputDirectory: "relative/dir"})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	if _, err := d.Job("missing"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if summary := d.Queue(); summary.QueueLength != 1 || summary.Processing != nil {
		t.Fatalf("unexpected queue summary %+v", summary)
	}
}
