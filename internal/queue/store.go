package queue

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"stemforge/internal/services"
)

const queuedMessage = "Waiting in queue..."

// Store is the in-memory job table plus the FIFO of pending job ids. Every
// method takes the same mutex and only mutates data while holding it.
type Store struct {
	mu      sync.Mutex
	jobs    map[string]*job
	order   []string
	pending []string
	current string

	wake  chan struct{}
	now   func() time.Time
	newID func() string
}

// StoreOption customizes a Store.
type StoreOption func(*Store)

// WithClock overrides the time source (primarily for tests).
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDGenerator overrides job id generation (primarily for tests).
func WithIDGenerator(gen func() string) StoreOption {
	return func(s *Store) {
		if gen != nil {
			s.newID = gen
		}
	}
}

// NewStore constructs an empty job store.
func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		jobs:  make(map[string]*job),
		wake:  make(chan struct{}, 1),
		now:   time.Now,
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit creates a pending job, appends it to the FIFO, and returns its id.
func (s *Store) Submit(sub Submission) (string, error) {
	snap, err := s.Enqueue(sub)
	if err != nil {
		return "", err
	}
	return snap.ID, nil
}

// Enqueue is Submit returning the snapshot taken at insertion, so the queue
// position is the one the job was given even if the worker already took it.
func (s *Store) Enqueue(sub Submission) (Snapshot, error) {
	query := strings.TrimSpace(sub.Query)
	if query == "" {
		return Snapshot{}, services.Wrap(services.ErrValidation, "queue", "submit", "query is required", nil)
	}
	outputDir := strings.TrimSpace(sub.OutputDirectory)
	if outputDir != "" {
		if !filepath.IsAbs(outputDir) {
			return Snapshot{}, services.Wrap(services.ErrValidation, "queue", "submit",
				fmt.Sprintf("output directory %q must be absolute", outputDir), nil)
		}
		outputDir = filepath.Clean(outputDir)
	}
	metadata := normalizeMetadata(sub.Metadata)

	s.mu.Lock()
	id := s.newID()
	for _, exists := s.jobs[id]; exists; _, exists = s.jobs[id] {
		id = s.newID()
	}
	s.jobs[id] = &job{
		id:              id,
		query:           query,
		outputDirectory: outputDir,
		uploadRequested: sub.UploadRequested,
		status:          StatusPending,
		message:         queuedMessage,
		createdAt:       s.now(),
		metadata:        metadata,
	}
	s.order = append(s.order, id)
	s.pending = append(s.pending, id)
	snap := s.jobs[id].snapshot(len(s.pending) - 1)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
	return snap, nil
}

// GetStatus returns a snapshot of the job with its computed queue position.
func (s *Store) GetStatus(id string) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return Snapshot{}, notFound(id)
	}
	return j.snapshot(s.positionLocked(j)), nil
}

// QueueLength returns the number of pending jobs.
func (s *Store) QueueLength() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// UpdateMetadata merges mapping into a non-terminal job's metadata. Changes made
// after the worker picked the job up are recorded but not seen by its pipeline run.
func (s *Store) UpdateMetadata(id string, mapping map[string]string) error {
	updates := normalizeMetadata(mapping)
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return notFound(id)
	}
	if j.status.IsTerminal() {
		return services.Wrap(services.ErrValidation, "queue", "update metadata",
			fmt.Sprintf("job %s already %s", id, j.status), nil)
	}
	for key, value := range updates {
		j.metadata[key] = value
	}
	return nil
}

// Wake signals when a job has been submitted. Consumers should still poll,
// since one signal may cover several submissions.
func (s *Store) Wake() <-chan struct{} {
	return s.wake
}

// Next pops the head of the FIFO and marks it processing. It returns false when
// nothing is pending or another job is still processing.
func (s *Store) Next() (Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != "" || len(s.pending) == 0 {
		return Snapshot{}, false
	}
	id := s.pending[0]
	s.pending[0] = ""
	s.pending = s.pending[1:]
	j := s.jobs[id]
	j.status = StatusProcessing
	j.startedAt = s.now()
	j.progress = ProgressStarted
	j.message = "Processing started"
	s.current = id
	return j.snapshot(0), true
}

// UpdateProgress records progress for the processing job. Values lower than the
// current progress are ignored; the message still updates when provided.
func (s *Store) UpdateProgress(id string, percent int, message string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok || j.status != StatusProcessing {
		return false
	}
	if percent > ProgressComplete {
		percent = ProgressComplete
	}
	if percent > j.progress {
		j.progress = percent
	}
	if message = strings.TrimSpace(message); message != "" {
		j.message = message
	}
	return true
}

// Finish writes the terminal outcome of the processing job exactly once.
func (s *Store) Finish(id string, outcome Outcome) error {
	if outcome == nil {
		outcome = Failed("")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return notFound(id)
	}
	if j.status != StatusProcessing {
		return services.Wrap(services.ErrValidation, "queue", "finish",
			fmt.Sprintf("job %s is %s, not processing", id, j.status), nil)
	}
	j.status = outcome.status()
	j.outcome = outcome
	j.completedAt = s.now()
	j.progress = ProgressComplete
	switch o := outcome.(type) {
	case completedOutcome:
		j.message = "Completed"
		if len(o.result.Warnings) > 0 {
			j.message = "Completed with warnings"
		}
	case failedOutcome:
		j.message = "Failed: " + o.message
	}
	if s.current == id {
		s.current = ""
	}
	return nil
}

// EvictExpired removes terminal jobs whose completion is older than retention
// and returns how many were removed.
func (s *Store) EvictExpired(now time.Time, retention time.Duration) int {
	cutoff := now.Add(-retention)
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	kept := s.order[:0]
	for _, id := range s.order {
		j := s.jobs[id]
		if j.status.IsTerminal() && j.completedAt.Before(cutoff) {
			delete(s.jobs, id)
			removed++
			continue
		}
		kept = append(kept, id)
	}
	for i := len(kept); i < len(s.order); i++ {
		s.order[i] = ""
	}
	s.order = kept
	return removed
}

// Stats returns job counts per status.
func (s *Store) Stats() map[Status]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := make(map[Status]int, len(allStatuses))
	for _, status := range allStatuses {
		counts[status] = 0
	}
	for _, j := range s.jobs {
		counts[j.status]++
	}
	return counts
}

// Current returns the processing job, if any.
func (s *Store) Current() (Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == "" {
		return Snapshot{}, false
	}
	return s.jobs[s.current].snapshot(0), true
}

// List returns snapshots of every retained job in submission order.
func (s *Store) List() []Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	positions := make(map[string]int, len(s.pending))
	for idx, id := range s.pending {
		positions[id] = idx
	}
	out := make([]Snapshot, 0, len(s.order))
	for _, id := range s.order {
		j := s.jobs[id]
		pos := NoPosition
		switch j.status {
		case StatusProcessing:
			pos = 0
		case StatusPending:
			pos = positions[id]
		}
		out = append(out, j.snapshot(pos))
	}
	return out
}

func (s *Store) positionLocked(j *job) int {
	switch j.status {
	case StatusProcessing:
		return 0
	case StatusPending:
		for idx, id := range s.pending {
			if id == j.id {
				return idx
			}
		}
	}
	return NoPosition
}

func notFound(id string) error {
	return services.Wrap(services.ErrNotFound, "queue", "lookup", fmt.Sprintf("job %s", id), nil)
}
