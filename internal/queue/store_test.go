package queue_test

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"stemforge/internal/queue"
	"stemforge/internal/services"
	"stemforge/internal/testsupport"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newStore(clock *fakeClock) *queue.Store {
	counter := 0
	return queue.NewStore(
		queue.WithClock(clock.Now),
		queue.WithIDGenerator(func() string {
			counter++
			return fmt.Sprintf("job-%d", counter)
		}),
	)
}

func TestSubmitCreatesPendingJob(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
	store := newStore(clock)

	id, err := store.Submit(queue.Submission{
		Query:           "  Song X  ",
		OutputDirectory: "/srv/stems/",
		UploadRequested: true,
		Metadata:        map[string]string{"title": "Song X", " ": "dropped"},
	})
	if err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}

	snap, err := store.GetStatus(id)
	if err != nil {
		t.Fatalf("GetStatus returned error: %v", err)
	}
	if snap.Status != queue.StatusPending || snap.Progress != 0 {
		t.Fatalf("unexpected initial state: %+v", snap)
	}
	if snap.Query != "Song X" || snap.OutputDirectory != "/srv/stems" || !snap.UploadRequested {
		t.Fatalf("unexpected submission fields: %+v", snap)
	}
	if snap.Message != "Waiting in queue..." {
		t.Fatalf("unexpected message %q", snap.Message)
	}
	if !snap.CreatedAt.Equal(clock.Now()) || snap.StartedAt != nil || snap.CompletedAt != nil {
		t.Fatalf("unexpected timestamps: %+v", snap)
	}
	if snap.Result != nil || snap.Error != "" {
		t.Fatalf("pending job must not carry an outcome: %+v", snap)
	}
	if len(snap.Metadata) != 1 || snap.Metadata["title"] != "Song X" {
		t.Fatalf("unexpected metadata: %+v", snap.Metadata)
	}
	if store.QueueLength() != 1 {
		t.Fatalf("expected queue length 1, got %d", store.QueueLength())
	}

	select {
	case <-store.Wake():
	default:
		t.Fatal("expected submit to signal the wake channel")
	}
}

func TestSubmitValidation(t *testing.T) {
	store := queue.NewStore()
	cases := []queue.Submission{
		{Query: "   "},
		{Query: "ok", OutputDirectory: "relative/dir"},
	}
	for _, sub := range cases {
		if _, err := store.Submit(sub); !errors.Is(err, services.ErrValidation) {
			t.Fatalf("expected validation error for %+v, got %v", sub, err)
		}
	}
	if store.QueueLength() != 0 {
		t.Fatalf("invalid submissions must not be queued")
	}
}

func TestGetStatusUnknownIDReturnsNotFound(t *testing.T) {
	store := queue.NewStore()
	_, err := store.GetStatus("missing")
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestQueuePositionsCountPendingJobsAhead(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	store := newStore(clock)
	ids := make([]string, 4)
	for i := range ids {
		ids[i] = testsupport.MustSubmit(t, store, fmt.Sprintf("song %d", i))
	}

	for i, id := range ids {
		snap, _ := store.GetStatus(id)
		if snap.QueuePosition != i {
			t.Fatalf("job %d: expected position %d, got %d", i, i, snap.QueuePosition)
		}
	}

	running, ok := store.Next()
	if !ok || running.ID != ids[0] {
		t.Fatalf("expected first job to be dequeued, got %+v ok=%v", running, ok)
	}

	snap, _ := store.GetStatus(ids[0])
	if snap.QueuePosition != 0 || snap.Status != queue.StatusProcessing {
		t.Fatalf("processing job should be at position 0: %+v", snap)
	}
	for i, id := range ids[1:] {
		snap, _ := store.GetStatus(id)
		if snap.QueuePosition != i {
			t.Fatalf("job %s: expected position %d after dequeue, got %d", id, i, snap.QueuePosition)
		}
	}
	if store.QueueLength() != 3 {
		t.Fatalf("expected 3 pending, got %d", store.QueueLength())
	}

	if err := store.Finish(ids[0], queue.Completed(queue.Result{ArchivePath: "/tmp/a.zip"})); err != nil {
		t.Fatalf("Finish returned error: %v", err)
	}
	snap, _ = store.GetStatus(ids[0])
	if snap.HasPosition() {
		t.Fatalf("terminal job must not report a position: %+v", snap)
	}
}

func TestEnqueueReportsPositionAtInsertion(t *testing.T) {
	store := queue.NewStore()
	testsupport.MustSubmit(t, store, "ahead")

	snap, err := store.Enqueue(queue.Submission{Query: "behind"})
	if err != nil {
		t.Fatalf("Enqueue returned error: %v", err)
	}
	if snap.QueuePosition != 1 || snap.Status != queue.StatusPending {
		t.Fatalf("unexpected snapshot %+v", snap)
	}

	for range 2 {
		running, ok := store.Next()
		if !ok {
			t.Fatal("expected a pending job")
		}
		if err := store.Finish(running.ID, queue.Completed(queue.Result{})); err != nil {
			t.Fatalf("Finish returned error: %v", err)
		}
	}
	if snap.QueuePosition != 1 {
		t.Fatalf("returned snapshot must keep its insertion position, got %d", snap.QueuePosition)
	}
	if _, err := store.Enqueue(queue.Submission{Query: " "}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestNextRefusesSecondProcessingJob(t *testing.T) {
	store := queue.NewStore()
	testsupport.MustSubmit(t, store, "first")
	testsupport.MustSubmit(t, store, "second")

	first, ok := store.Next()
	if !ok {
		t.Fatal("expected first job")
	}
	if _, ok := store.Next(); ok {
		t.Fatal("expected Next to refuse while a job is processing")
	}
	if first.Progress != queue.ProgressStarted || first.StartedAt == nil {
		t.Fatalf("expected processing bookkeeping, got %+v", first)
	}
	if err := store.Finish(first.ID, queue.Failed("boom")); err != nil {
		t.Fatalf("Finish returned error: %v", err)
	}
	if _, ok := store.Next(); !ok {
		t.Fatal("expected second job after first finished")
	}
}

func TestProgressNeverRegresses(t *testing.T) {
	store := queue.NewStore()
	id := testsupport.MustSubmit(t, store, "song")

	if store.UpdateProgress(id, 50, "pending jobs ignore progress") {
		t.Fatal("expected progress on pending job to be rejected")
	}
	if _, ok := store.Next(); !ok {
		t.Fatal("expected job")
	}

	last := queue.ProgressStarted
	for _, p := range []int{20, 15, 30, 5, 50, 80, 79, 90} {
		store.UpdateProgress(id, p, "")
		snap, _ := store.GetStatus(id)
		if snap.Progress < last {
			t.Fatalf("progress regressed from %d to %d", last, snap.Progress)
		}
		last = snap.Progress
	}
	if last != 90 {
		t.Fatalf("expected progress 90, got %d", last)
	}

	store.UpdateProgress(id, 10, "Separating stems")
	snap, _ := store.GetStatus(id)
	if snap.Message != "Separating stems" || snap.Progress != 90 {
		t.Fatalf("expected message update without regression, got %+v", snap)
	}
}

func TestFinishWritesExactlyOneOutcome(t *testing.T) {
	store := queue.NewStore()
	okID := testsupport.MustSubmit(t, store, "ok")
	failID := testsupport.MustSubmit(t, store, "fail")

	if err := store.Finish(okID, queue.Completed(queue.Result{})); err == nil {
		t.Fatal("expected finish on pending job to fail")
	}

	store.Next()
	result := queue.Result{ArchivePath: "/out/song.zip", Warnings: []string{"publish failed"}}
	if err := store.Finish(okID, queue.Completed(result)); err != nil {
		t.Fatalf("Finish returned error: %v", err)
	}
	if err := store.Finish(okID, queue.Failed("late")); err == nil {
		t.Fatal("expected second finish to be rejected")
	}
	snap, _ := store.GetStatus(okID)
	if snap.Status != queue.StatusCompleted || snap.Result == nil || snap.Error != "" {
		t.Fatalf("completed job must carry only a result: %+v", snap)
	}
	if snap.Progress != 100 || snap.CompletedAt == nil || snap.Message != "Completed with warnings" {
		t.Fatalf("unexpected completion bookkeeping: %+v", snap)
	}
	snap.Result.Warnings[0] = "mutated"
	again, _ := store.GetStatus(okID)
	if again.Result.Warnings[0] != "publish failed" {
		t.Fatal("snapshots must not alias store state")
	}

	store.Next()
	if err := store.Finish(failID, queue.Failed("separation failed: no stems")); err != nil {
		t.Fatalf("Finish returned error: %v", err)
	}
	snap, _ = store.GetStatus(failID)
	if snap.Status != queue.StatusFailed || snap.Result != nil || snap.Error != "separation failed: no stems" {
		t.Fatalf("failed job must carry only an error: %+v", snap)
	}
}

func TestUpdateMetadataMergesUntilTerminal(t *testing.T) {
	store := queue.NewStore()
	id, err := store.Submit(queue.Submission{Query: "song", Metadata: map[string]string{"a": "1"}})
	if err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}
	if err := store.UpdateMetadata(id, map[string]string{queue.MetadataAssetPath: "/tmp/audio.wav", "a": "2"}); err != nil {
		t.Fatalf("UpdateMetadata returned error: %v", err)
	}
	snap, _ := store.GetStatus(id)
	if snap.Metadata["a"] != "2" || snap.Metadata[queue.MetadataAssetPath] != "/tmp/audio.wav" {
		t.Fatalf("unexpected metadata: %+v", snap.Metadata)
	}

	if err := store.UpdateMetadata("missing", map[string]string{"a": "b"}); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	store.Next()
	store.Finish(id, queue.Failed("x"))
	if err := store.UpdateMetadata(id, map[string]string{"a": "3"}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for terminal job, got %v", err)
	}
}

func TestEvictExpiredHonoursRetentionWindow(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)}
	store := newStore(clock)
	oldID := testsupport.MustSubmit(t, store, "old")
	youngID := testsupport.MustSubmit(t, store, "young")
	pendingID := testsupport.MustSubmit(t, store, "pending")

	store.Next()
	store.Finish(oldID, queue.Completed(queue.Result{ArchivePath: "/a.zip"}))
	clock.Advance(20 * time.Hour)
	store.Next()
	store.Finish(youngID, queue.Failed("boom"))
	clock.Advance(5 * time.Hour)

	removed := store.EvictExpired(clock.Now(), 24*time.Hour)
	if removed != 1 {
		t.Fatalf("expected 1 eviction, got %d", removed)
	}
	if _, err := store.GetStatus(oldID); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected evicted job to be not found, got %v", err)
	}
	if _, err := store.GetStatus(youngID); err != nil {
		t.Fatalf("expected young job to remain: %v", err)
	}
	if _, err := store.GetStatus(pendingID); err != nil {
		t.Fatalf("pending jobs are never evicted: %v", err)
	}
	if got := len(store.List()); got != 2 {
		t.Fatalf("expected 2 listed jobs, got %d", got)
	}
}

func TestConcurrentSubmitAndStatus(t *testing.T) {
	store := queue.NewStore()
	var wg sync.WaitGroup
	ids := make(chan string, 64)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 8; j++ {
				id, err := store.Submit(queue.Submission{Query: fmt.Sprintf("song %d-%d", n, j)})
				if err != nil {
					t.Errorf("Submit: %v", err)
					return
				}
				ids <- id
				if _, err := store.GetStatus(id); err != nil {
					t.Errorf("GetStatus: %v", err)
				}
			}
		}(i)
	}
	wg.Wait()
	close(ids)

	seen := make(map[string]struct{})
	for id := range ids {
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate id %s", id)
		}
		seen[id] = struct{}{}
	}
	if store.QueueLength() != 64 {
		t.Fatalf("expected 64 pending jobs, got %d", store.QueueLength())
	}
	stats := store.Stats()
	if stats[queue.StatusPending] != 64 || stats[queue.StatusProcessing] != 0 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}
