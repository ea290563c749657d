// Package workflow drives queued jobs through the pipeline one at a time.
//
// The Manager owns the single worker loop. It pops the head of the queue,
// runs the orchestrator in a context detached from shutdown, folds progress
// events back into the store, and records the terminal outcome. Panics inside
// a run fail that job only. Stop halts dequeuing and waits for the in-flight
// job to finish.
//
// The Sweeper runs beside the worker and evicts terminal jobs once they fall
// outside the retention window. Both publish lifecycle events through the
// notifications service so the ntfy, Redis and websocket sinks see the same
// stream.
package workflow
