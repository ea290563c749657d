package testsupport

import (
	"testing"
	"time"

	"stemforge/internal/queue"
)

// MustSubmit submits a job and fails the test on error.
func MustSubmit(t testing.TB, store *queue.Store, query string) string {
	t.Helper()

	id, err := store.Submit(queue.Submission{Query: query})
	if err != nil {
		t.Fatalf("store.Submit(%q): %v", query, err)
	}
	return id
}

// WaitForStatus polls until the job reaches want or the timeout elapses.
func WaitForStatus(t testing.TB, store *queue.Store, id string, want queue.Status, timeout time.Duration) queue.Snapshot {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for {
		snap, err := store.GetStatus(id)
		if err == nil && snap.Status == want {
			return snap
		}
		if time.Now().After(deadline) {
			t.Fatalf("job %s did not reach %s within %s (last=%+v err=%v)", id, want, timeout, snap, err)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// WaitFor polls cond until it returns true or the timeout elapses.
func WaitFor(t testing.TB, timeout time.Duration, what string, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out after %s waiting for %s", timeout, what)
		}
		time.Sleep(10 * time.Millisecond)
	}
}
