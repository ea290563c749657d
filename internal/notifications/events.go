package notifications

import "time"

// EventType names a job lifecycle event.
type EventType string

const (
	EventJobQueued      EventType = "job_queued"
	EventJobStarted     EventType = "job_started"
	EventJobProgress    EventType = "job_progress"
	EventJobCompleted   EventType = "job_completed"
	EventJobFailed      EventType = "job_failed"
	EventPublishWarning EventType = "publish_warning"
	EventTest           EventType = "test"

	// EventJobSnapshot opens a live stream with the job's current state. It is
	// never published to sinks.
	EventJobSnapshot EventType = "job_snapshot"
)

// Event describes one job lifecycle change.
type Event struct {
	Type        EventType `json:"type"`
	JobID       string    `json:"jobId,omitempty"`
	Query       string    `json:"query,omitempty"`
	Status      string    `json:"status,omitempty"`
	Stage       string    `json:"stage,omitempty"`
	Progress    int       `json:"progress"`
	Message     string    `json:"message,omitempty"`
	Title       string    `json:"title,omitempty"`
	ArchivePath string    `json:"archivePath,omitempty"`
	Error       string    `json:"error,omitempty"`
	Time        time.Time `json:"time"`
}

// Terminal reports whether the event ends a job's stream.
func (e Event) Terminal() bool {
	return e.Type == EventJobCompleted || e.Type == EventJobFailed
}
