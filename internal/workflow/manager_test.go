package workflow_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"stemforge/internal/notifications"
	"stemforge/internal/pipeline"
	"stemforge/internal/queue"
	"stemforge/internal/services"
	"stemforge/internal/stage"
	"stemforge/internal/testsupport"
	"stemforge/internal/workflow"
)

type runFunc func(ctx context.Context, job queue.Snapshot, events chan<- pipeline.Event) (queue.Result, error)

type stubRunner struct {
	mu    sync.Mutex
	order []string
	fn    runFunc
}

func (r *stubRunner) Run(ctx context.Context, job queue.Snapshot, events chan<- pipeline.Event) (queue.Result, error) {
	r.mu.Lock()
	r.order = append(r.order, job.Query)
	fn := r.fn
	r.mu.Unlock()
	if fn == nil {
		return queue.Result{ArchivePath: "/tmp/" + job.Query + ".zip", Stems: []string{"bass", "drums"}}, nil
	}
	return fn(ctx, job, events)
}

func (r *stubRunner) Health(context.Context) []stage.Health {
	return []stage.Health{stage.Healthy(stage.Locate), stage.Unhealthy(stage.Separate, "demucs missing")}
}

func (r *stubRunner) queries() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.order...)
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []notifications.Event
}

func (n *recordingNotifier) Publish(_ context.Context, event notifications.Event) error {
	n.mu.Lock()
	n.events = append(n.events, event)
	n.mu.Unlock()
	return nil
}

func (n *recordingNotifier) types(jobID string) []notifications.EventType {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []notifications.EventType
	for _, evt := range n.events {
		if evt.JobID == jobID {
			out = append(out, evt.Type)
		}
	}
	return out
}

func newManager(t *testing.T, runner workflow.Runner, notifier notifications.Service) (*workflow.Manager, *queue.Store) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := queue.NewStore()
	mgr := workflow.NewManager(cfg, store, runner, notifier, nil)
	t.Cleanup(mgr.Stop)
	return mgr, store
}

func TestManagerProcessesJobsInSubmissionOrder(t *testing.T) {
	runner := &stubRunner{}
	mgr, store := newManager(t, runner, nil)

	ids := []string{
		testsupport.MustSubmit(t, store, "first"),
		testsupport.MustSubmit(t, store, "second"),
		testsupport.MustSubmit(t, store, "third"),
	}
	if err := mgr.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	for _, id := range ids {
		snap := testsupport.WaitForStatus(t, store, id, queue.StatusCompleted, 2*time.Second)
		if snap.Progress != 100 {
			t.Fatalf("expected progress 100 for %s, got %d", id, snap.Progress)
		}
		if snap.Result == nil || snap.Result.ArchivePath == "" {
			t.Fatalf("expected result on completed job, got %+v", snap.Result)
		}
		if snap.QueuePosition != queue.NoPosition {
			t.Fatalf("expected no queue position after completion, got %d", snap.QueuePosition)
		}
	}
	got := strings.Join(runner.queries(), ",")
	if got != "first,second,third" {
		t.Fatalf("unexpected processing order %q", got)
	}
}

func TestManagerStartTwiceFails(t *testing.T) {
	mgr, _ := newManager(t, &stubRunner{}, nil)
	if err := mgr.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := mgr.Start(context.Background()); err == nil {
		t.Fatal("expected second Start to fail")
	}
}

func TestManagerAppliesProgressEvents(t *testing.T) {
	release := make(chan struct{})
	runner := &stubRunner{fn: func(ctx context.Context, job queue.Snapshot, events chan<- pipeline.Event) (queue.Result, error) {
		events <- pipeline.Event{JobID: job.ID, Stage: stage.Acquire, Progress: 40, Message: "Downloading"}
		events <- pipeline.Event{JobID: job.ID, Stage: stage.Acquire, Progress: 25, Message: "Retrying"}
		<-release
		return queue.Result{ArchivePath: "/tmp/a.zip"}, nil
	}}
	notifier := &recordingNotifier{}
	mgr, store := newManager(t, runner, notifier)
	id := testsupport.MustSubmit(t, store, "song")
	if err := mgr.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	testsupport.WaitFor(t, 2*time.Second, "progress message", func() bool {
		snap, err := store.GetStatus(id)
		return err == nil && snap.Message == "Retrying"
	})
	snap, _ := store.GetStatus(id)
	if snap.Progress != 40 {
		t.Fatalf("expected progress to stay at 40, got %d", snap.Progress)
	}
	if snap.Status != queue.StatusProcessing || snap.QueuePosition != 0 {
		t.Fatalf("expected processing at position 0, got %s/%d", snap.Status, snap.QueuePosition)
	}
	close(release)
	testsupport.WaitForStatus(t, store, id, queue.StatusCompleted, 2*time.Second)

	testsupport.WaitFor(t, time.Second, "completion notification", func() bool {
		types := notifier.types(id)
		return len(types) > 0 && types[len(types)-1] == notifications.EventJobCompleted
	})
	types := notifier.types(id)
	want := []notifications.EventType{
		notifications.EventJobStarted,
		notifications.EventJobProgress,
		notifications.EventJobProgress,
		notifications.EventJobCompleted,
	}
	if len(types) != len(want) {
		t.Fatalf("unexpected notification sequence %v", types)
	}
	for i := range want {
		if types[i] != want[i] {
			t.Fatalf("notification %d: want %s, got %s", i, want[i], types[i])
		}
	}
}

func TestManagerRecordsFailure(t *testing.T) {
	runner := &stubRunner{fn: func(context.Context, queue.Snapshot, chan<- pipeline.Event) (queue.Result, error) {
		return queue.Result{}, services.Wrap(services.ErrLocate, "locate", "search", "no results", nil)
	}}
	notifier := &recordingNotifier{}
	mgr, store := newManager(t, runner, notifier)
	id := testsupport.MustSubmit(t, store, "nothing matches")
	if err := mgr.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	snap := testsupport.WaitForStatus(t, store, id, queue.StatusFailed, 2*time.Second)
	if !strings.Contains(snap.Error, "locate failed") {
		t.Fatalf("expected locate failure message, got %q", snap.Error)
	}
	if snap.Progress != 100 {
		t.Fatalf("expected progress 100 on failure, got %d", snap.Progress)
	}
	if snap.Result != nil {
		t.Fatalf("expected no result on failed job, got %+v", snap.Result)
	}
	testsupport.WaitFor(t, time.Second, "failure notification", func() bool {
		types := notifier.types(id)
		return len(types) > 0 && types[len(types)-1] == notifications.EventJobFailed
	})
	if mgr.Status(context.Background()).LastError == "" {
		t.Fatal("expected last error in status summary")
	}
}

func TestManagerRecoversFromPanic(t *testing.T) {
	runner := &stubRunner{}
	runner.fn = func(_ context.Context, job queue.Snapshot, _ chan<- pipeline.Event) (queue.Result, error) {
		if job.Query == "boom" {
			panic("separator exploded")
		}
		return queue.Result{ArchivePath: "/tmp/ok.zip"}, nil
	}
	mgr, store := newManager(t, runner, nil)
	bad := testsupport.MustSubmit(t, store, "boom")
	good := testsupport.MustSubmit(t, store, "fine")
	if err := mgr.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	snap := testsupport.WaitForStatus(t, store, bad, queue.StatusFailed, 2*time.Second)
	if !strings.Contains(snap.Error, "separator exploded") {
		t.Fatalf("expected panic value in error, got %q", snap.Error)
	}
	testsupport.WaitForStatus(t, store, good, queue.StatusCompleted, 2*time.Second)
}

func TestManagerStopWaitsForInFlightJob(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	runner := &stubRunner{fn: func(ctx context.Context, job queue.Snapshot, _ chan<- pipeline.Event) (queue.Result, error) {
		close(entered)
		<-release
		if ctx.Err() != nil {
			t.Errorf("job context cancelled during shutdown: %v", ctx.Err())
		}
		return queue.Result{ArchivePath: "/tmp/done.zip"}, nil
	}}
	mgr, store := newManager(t, runner, nil)
	first := testsupport.MustSubmit(t, store, "in flight")
	second := testsupport.MustSubmit(t, store, "left behind")
	if err := mgr.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	<-entered

	stopped := make(chan struct{})
	go func() {
		mgr.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
		t.Fatal("Stop returned before the in-flight job finished")
	case <-time.After(50 * time.Millisecond):
	}
	close(release)
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return after the job finished")
	}

	snap, err := store.GetStatus(first)
	if err != nil || snap.Status != queue.StatusCompleted {
		t.Fatalf("expected in-flight job completed, got %+v err=%v", snap, err)
	}
	snap, err = store.GetStatus(second)
	if err != nil || snap.Status != queue.StatusPending {
		t.Fatalf("expected second job still pending, got %+v err=%v", snap, err)
	}
	if snap.QueuePosition != 0 {
		t.Fatalf("expected second job at head of queue, got %d", snap.QueuePosition)
	}
}

func TestManagerSubmitNotifiesQueued(t *testing.T) {
	notifier := &recordingNotifier{}
	mgr, _ := newManager(t, &stubRunner{}, notifier)

	snap, err := mgr.Submit(context.Background(), queue.Submission{Query: "  artist - title  "})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if snap.Query != "artist - title" || snap.Status != queue.StatusPending || snap.QueuePosition != 0 {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	types := notifier.types(snap.ID)
	if len(types) != 1 || types[0] != notifications.EventJobQueued {
		t.Fatalf("expected job_queued notification, got %v", types)
	}

	if _, err := mgr.Submit(context.Background(), queue.Submission{Query: "   "}); err == nil {
		t.Fatal("expected validation error for blank query")
	}
}

func TestManagerStatusSummary(t *testing.T) {
	mgr, store := newManager(t, &stubRunner{}, nil)
	testsupport.MustSubmit(t, store, "pending")

	summary := mgr.Status(context.Background())
	if summary.Running {
		t.Fatal("expected manager not running before Start")
	}
	if summary.QueueStats[queue.StatusPending] != 1 {
		t.Fatalf("expected one pending job, got %v", summary.QueueStats)
	}
	if len(summary.StageHealth) != 2 || summary.StageHealth[1].Ready {
		t.Fatalf("unexpected stage health %+v", summary.StageHealth)
	}
	if summary.Current != nil {
		t.Fatalf("expected no current job, got %+v", summary.Current)
	}
}
