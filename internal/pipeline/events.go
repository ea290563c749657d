package pipeline

import (
	"context"
	"sync"
)

// Event is a progress notification for one job.
type Event struct {
	JobID    string
	Stage    string
	Progress int
	Message  string
}

// reporter emits monotonic progress events for a single job.
type reporter struct {
	mu     sync.Mutex
	jobID  string
	out    chan<- Event
	last   int
	stage  string
	closed bool
}

func newReporter(jobID string, start int, out chan<- Event) *reporter {
	return &reporter{jobID: jobID, out: out, last: start}
}

func (r *reporter) setStage(name string) {
	r.mu.Lock()
	r.stage = name
	r.mu.Unlock()
}

// report clamps progress to the last reported value and sends the event.
// A nil channel drops events.
func (r *reporter) report(ctx context.Context, progress int, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed || r.out == nil {
		return
	}
	if progress < r.last {
		progress = r.last
	}
	if progress > 100 {
		progress = 100
	}
	r.last = progress
	evt := Event{JobID: r.jobID, Stage: r.stage, Progress: progress, Message: message}
	select {
	case r.out <- evt:
	case <-ctx.Done():
	}
}

// close stops further sends. Late callbacks from collaborators become no-ops.
func (r *reporter) close() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
}
