package api

import (
	"time"

	"stemforge/internal/deps"
	"stemforge/internal/queue"
	"stemforge/internal/stage"
	"stemforge/internal/workflow"
)

// FromSnapshot converts a queue snapshot to its API representation.
func FromSnapshot(snap queue.Snapshot) Job {
	dto := Job{
		ID:              snap.ID,
		Query:           snap.Query,
		OutputDirectory: snap.OutputDirectory,
		UploadRequested: snap.UploadRequested,
		Status:          string(snap.Status),
		Progress:        snap.Progress,
		Message:         snap.Message,
		CreatedAt:       formatTime(snap.CreatedAt),
		Error:           snap.Error,
	}
	if snap.HasPosition() {
		pos := snap.QueuePosition
		dto.QueuePosition = &pos
	}
	if snap.StartedAt != nil {
		dto.StartedAt = formatTime(*snap.StartedAt)
	}
	if snap.CompletedAt != nil {
		dto.CompletedAt = formatTime(*snap.CompletedAt)
	}
	if snap.Result != nil {
		dto.Result = &JobResult{
			ArchivePath: snap.Result.ArchivePath,
			Retained:    snap.Result.Retained,
			Title:       snap.Result.Title,
			SourceURL:   snap.Result.SourceURL,
			Strategy:    snap.Result.Strategy,
			Stems:       append([]string(nil), snap.Result.Stems...),
			PublishedTo: snap.Result.PublishedTo,
			Warnings:    append([]string(nil), snap.Result.Warnings...),
		}
	}
	if len(snap.Metadata) > 0 {
		dto.Metadata = make(map[string]string, len(snap.Metadata))
		for k, v := range snap.Metadata {
			dto.Metadata[k] = v
		}
	}
	return dto
}

// FromSnapshots converts snapshots in order.
func FromSnapshots(snaps []queue.Snapshot) []Job {
	out := make([]Job, 0, len(snaps))
	for _, snap := range snaps {
		out = append(out, FromSnapshot(snap))
	}
	return out
}

// NewQueueSummary builds the queue overview payload.
func NewQueueSummary(length int, current *queue.Snapshot, stats map[queue.Status]int) QueueSummary {
	summary := QueueSummary{QueueLength: length, Counts: statsToStrings(stats)}
	if current != nil {
		job := FromSnapshot(*current)
		summary.Processing = &job
	}
	return summary
}

// FromStatusSummary converts workflow diagnostics for transport.
func FromStatusSummary(summary workflow.StatusSummary) WorkflowStatus {
	out := WorkflowStatus{
		Running:     summary.Running,
		QueueStats:  statsToStrings(summary.QueueStats),
		LastError:   summary.LastError,
		StageHealth: FromStageHealth(summary.StageHealth),
		LastEvicted: summary.LastSweep.Evicted,
	}
	if summary.LastJob != nil {
		job := FromSnapshot(*summary.LastJob)
		out.LastJob = &job
	}
	if summary.Current != nil {
		job := FromSnapshot(*summary.Current)
		out.Current = &job
	}
	if !summary.LastSweep.At.IsZero() {
		out.LastSweepAt = formatTime(summary.LastSweep.At)
	}
	return out
}

// FromStageHealth keeps the pipeline's stage order.
func FromStageHealth(health []stage.Health) []StageHealth {
	out := make([]StageHealth, 0, len(health))
	for _, h := range health {
		out = append(out, StageHealth{Name: h.Name, Ready: h.Ready, Detail: h.Detail})
	}
	return out
}

// FromDependencies converts dependency checks for transport.
func FromDependencies(statuses []deps.Status) []DependencyStatus {
	out := make([]DependencyStatus, 0, len(statuses))
	for _, s := range statuses {
		out = append(out, DependencyStatus{
			Name:        s.Name,
			Command:     s.Command,
			Description: s.Description,
			Optional:    s.Optional,
			Available:   s.Available,
			Detail:      s.Detail,
		})
	}
	return out
}

// ParseTime parses an API timestamp. It returns the zero time on failure.
func ParseTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t
	}
	return time.Time{}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}

func statsToStrings(stats map[queue.Status]int) map[string]int {
	out := make(map[string]int, len(stats))
	for _, status := range queue.AllStatuses() {
		out[string(status)] = stats[status]
	}
	return out
}
