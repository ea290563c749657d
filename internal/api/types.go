package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// SubmitRequest is the payload accepted for a new job.
type SubmitRequest struct {
	Query           string            `json:"query" validate:"required,max=2048"`
	OutputDirectory string            `json:"outputDirectory,omitempty" validate:"omitempty,abspath"`
	UploadRequested bool              `json:"uploadRequested,omitempty"`
	Metadata        map[string]string `json:"metadata,omitempty" validate:"omitempty,max=64,dive,keys,required,max=128,endkeys,max=4096"`
}

// SubmitResponse acknowledges an accepted job.
type SubmitResponse struct {
	JobID         string `json:"jobId"`
	QueuePosition int    `json:"queuePosition"`
	Status        string `json:"status"`
}

// MetadataRequest carries side-channel metadata for a job.
type MetadataRequest struct {
	Metadata map[string]string `json:"metadata" validate:"required,min=1,max=64,dive,keys,required,max=128,endkeys,max=4096"`
}

// Job describes a job in a transport-friendly format.
type Job struct {
	ID              string            `json:"id"`
	Query           string            `json:"query"`
	OutputDirectory string            `json:"outputDirectory,omitempty"`
	UploadRequested bool              `json:"uploadRequested"`
	Status          string            `json:"status"`
	Progress        int               `json:"progress"`
	Message         string            `json:"message"`
	QueuePosition   *int              `json:"queuePosition,omitempty"`
	CreatedAt       string            `json:"createdAt"`
	StartedAt       string            `json:"startedAt,omitempty"`
	CompletedAt     string            `json:"completedAt,omitempty"`
	Result          *JobResult        `json:"result,omitempty"`
	Error           string            `json:"error,omitempty"`
	Metadata        map[string]string `json:"metadata,omitempty"`
}

// JobResult is the terminal payload of a completed job.
type JobResult struct {
	ArchivePath string   `json:"archivePath"`
	Retained    bool     `json:"retained"`
	Title       string   `json:"title,omitempty"`
	SourceURL   string   `json:"sourceUrl,omitempty"`
	Strategy    string   `json:"strategy,omitempty"`
	Stems       []string `json:"stems,omitempty"`
	PublishedTo string   `json:"publishedTo,omitempty"`
	Warnings    []string `json:"warnings,omitempty"`
}

// JobResponse wraps a single job.
type JobResponse struct {
	Job Job `json:"job"`
}

// JobListResponse wraps a collection of jobs.
type JobListResponse struct {
	Jobs []Job `json:"jobs"`
}

// QueueSummary reports queue depth and the job being processed.
type QueueSummary struct {
	QueueLength int            `json:"queueLength"`
	Processing  *Job           `json:"processing,omitempty"`
	Counts      map[string]int `json:"counts"`
}

// WorkflowStatus summarizes workflow execution state.
type WorkflowStatus struct {
	Running     bool           `json:"running"`
	QueueStats  map[string]int `json:"queueStats"`
	LastError   string         `json:"lastError,omitempty"`
	LastJob     *Job           `json:"lastJob,omitempty"`
	Current     *Job           `json:"current,omitempty"`
	StageHealth []StageHealth  `json:"stageHealth"`
	LastSweepAt string         `json:"lastSweepAt,omitempty"`
	LastEvicted int            `json:"lastEvicted"`
}

// StageHealth mirrors readiness reporting for pipeline stages.
type StageHealth struct {
	Name   string `json:"name"`
	Ready  bool   `json:"ready"`
	Detail string `json:"detail,omitempty"`
}

// DependencyStatus captures availability of an external dependency.
type DependencyStatus struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Detail      string `json:"detail,omitempty"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running      bool               `json:"running"`
	PID          int                `json:"pid"`
	LockFilePath string             `json:"lockFilePath"`
	SocketPath   string             `json:"socketPath"`
	APIBind      string             `json:"apiBind,omitempty"`
	Workflow     WorkflowStatus     `json:"workflow"`
	Dependencies []DependencyStatus `json:"dependencies"`
}

// HealthResponse is the body of the liveness endpoint.
type HealthResponse struct {
	Status string `json:"status"`
}

// ErrorResponse is returned for every non-2xx API response.
type ErrorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}
