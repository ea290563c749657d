package workflow

import (
	"context"

	"stemforge/internal/queue"
	"stemforge/internal/stage"
)

// StatusSummary represents lightweight workflow diagnostics.
type StatusSummary struct {
	Running     bool
	LastError   string
	LastJob     *queue.Snapshot
	Current     *queue.Snapshot
	QueueStats  map[queue.Status]int
	StageHealth []stage.Health
	LastSweep   SweepStats
}

// Status returns the latest workflow information.
func (m *Manager) Status(ctx context.Context) StatusSummary {
	m.mu.RLock()
	summary := StatusSummary{Running: m.running}
	if m.lastErr != nil {
		summary.LastError = m.lastErr.Error()
	}
	if m.lastJob != nil {
		copy := *m.lastJob
		summary.LastJob = &copy
	}
	m.mu.RUnlock()

	if current, ok := m.store.Current(); ok {
		summary.Current = &current
	}
	summary.QueueStats = m.store.Stats()
	if m.runner != nil {
		summary.StageHealth = m.runner.Health(ctx)
	}
	summary.LastSweep = m.sweeper.Last()
	return summary
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}

func (m *Manager) setLastJob(job queue.Snapshot) {
	m.mu.Lock()
	m.lastJob = &job
	m.mu.Unlock()
}
