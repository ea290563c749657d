package queue

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a job.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// NoPosition is reported for jobs that are no longer waiting or running.
const NoPosition = -1

// Progress bounds applied by the store.
const (
	ProgressStarted  = 10
	ProgressComplete = 100
)

var allStatuses = []Status{
	StatusPending,
	StatusProcessing,
	StatusCompleted,
	StatusFailed,
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	for _, status := range allStatuses {
		if status == normalized {
			return status, true
		}
	}
	return "", false
}

// IsTerminal reports whether no further transitions are possible.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Result is the success payload of a completed job.
type Result struct {
	ArchivePath string   `json:"archivePath"`
	Retained    bool     `json:"retained"`
	Title       string   `json:"title,omitempty"`
	SourceURL   string   `json:"sourceUrl,omitempty"`
	Strategy    string   `json:"strategy,omitempty"`
	Stems       []string `json:"stems,omitempty"`
	PublishedTo string   `json:"publishedTo,omitempty"`
	Warnings    []string `json:"warnings,omitempty"`
}

func (r Result) clone() Result {
	r.Stems = append([]string(nil), r.Stems...)
	r.Warnings = append([]string(nil), r.Warnings...)
	return r
}

// Outcome is the terminal state of a job. Only Completed and Failed construct
// one, so a finished job carries either a result or an error message, never both.
type Outcome interface {
	status() Status
}

type completedOutcome struct {
	result Result
}

func (completedOutcome) status() Status { return StatusCompleted }

type failedOutcome struct {
	message string
}

func (failedOutcome) status() Status { return StatusFailed }

// Completed builds a successful outcome.
func Completed(result Result) Outcome {
	return completedOutcome{result: result.clone()}
}

// Failed builds a failed outcome. A blank message is replaced so the job
// always reports why it failed.
func Failed(message string) Outcome {
	message = strings.TrimSpace(message)
	if message == "" {
		message = "job failed without an error message"
	}
	return failedOutcome{message: message}
}

// Submission carries the caller-supplied fields of a new job.
type Submission struct {
	Query           string
	OutputDirectory string
	UploadRequested bool
	Metadata        map[string]string
}

type job struct {
	id              string
	query           string
	outputDirectory string
	uploadRequested bool
	status          Status
	progress        int
	message         string
	createdAt       time.Time
	startedAt       time.Time
	completedAt     time.Time
	outcome         Outcome
	metadata        map[string]string
}

// Snapshot is an immutable copy of a job at the moment it was read.
type Snapshot struct {
	ID              string
	Query           string
	OutputDirectory string
	UploadRequested bool
	Status          Status
	Progress        int
	Message         string
	CreatedAt       time.Time
	StartedAt       *time.Time
	CompletedAt     *time.Time
	Result          *Result
	Error           string
	Metadata        map[string]string
	QueuePosition   int
}

// HasPosition reports whether the job is still waiting or running.
func (s Snapshot) HasPosition() bool {
	return s.QueuePosition != NoPosition
}

func (j *job) snapshot(position int) Snapshot {
	snap := Snapshot{
		ID:              j.id,
		Query:           j.query,
		OutputDirectory: j.outputDirectory,
		UploadRequested: j.uploadRequested,
		Status:          j.status,
		Progress:        j.progress,
		Message:         j.message,
		CreatedAt:       j.createdAt,
		Metadata:        copyMetadata(j.metadata),
		QueuePosition:   position,
	}
	if !j.startedAt.IsZero() {
		started := j.startedAt
		snap.StartedAt = &started
	}
	if !j.completedAt.IsZero() {
		completed := j.completedAt
		snap.CompletedAt = &completed
	}
	switch outcome := j.outcome.(type) {
	case completedOutcome:
		result := outcome.result.clone()
		snap.Result = &result
	case failedOutcome:
		snap.Error = outcome.message
	}
	return snap
}

func copyMetadata(src map[string]string) map[string]string {
	dst := make(map[string]string, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
