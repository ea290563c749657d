package ipc

import "stemforge/internal/api"

// serviceName is the RPC receiver name registered by the server.
const serviceName = "Stemforge"

// SubmitRequest enqueues a new job.
type SubmitRequest struct {
	api.SubmitRequest
}

// SubmitResponse acknowledges a queued job.
type SubmitResponse struct {
	api.SubmitResponse
}

// StatusRequest asks for one job.
type StatusRequest struct {
	ID string
}

// StatusResponse returns one job.
type StatusResponse struct {
	Job api.Job
}

// QueueRequest asks for the queue overview.
type QueueRequest struct{}

// QueueResponse carries the queue overview.
type QueueResponse struct {
	Summary api.QueueSummary
}

// ListRequest lists retained jobs, optionally filtered by status.
type ListRequest struct {
	Statuses []string
}

// ListResponse carries jobs in submission order.
type ListResponse struct {
	Jobs []api.Job
}

// UpdateMetadataRequest merges side-channel metadata into a job.
type UpdateMetadataRequest struct {
	ID       string
	Metadata map[string]string
}

// UpdateMetadataResponse returns the job after the merge.
type UpdateMetadataResponse struct {
	Job api.Job
}

// DaemonStatusRequest asks for runtime diagnostics.
type DaemonStatusRequest struct{}

// DaemonStatusResponse carries runtime diagnostics.
type DaemonStatusResponse struct {
	Status api.DaemonStatus
}

// StopRequest asks the daemon process to shut down.
type StopRequest struct{}

// StopResponse acknowledges a shutdown request. Shutdown completes after the
// in-flight job finishes.
type StopResponse struct {
	Stopping bool
	Message  string
}
