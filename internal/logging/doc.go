// Package logging assembles the structured slog loggers used across stemforge.
//
// It owns the console and JSON handlers, level and output plumbing, and
// context-aware helpers that tag log lines with job IDs, stages, and
// correlation IDs. A no-op logger is provided for tests and optional wiring.
package logging
