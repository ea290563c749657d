// Package services defines shared utilities consumed by the pipeline stages
// and the external tool integrations beneath it.
//
// Key responsibilities:
//   - Context helpers that stamp job IDs, stage names, and correlation
//     identifiers for logging and tracing.
//   - Structured error markers plus the idempotent Wrap helper, so a job's
//     terminal error names its failing stage exactly once.
//
// Subpackages wrap the command-line tools the pipeline drives (yt-dlp and
// demucs) behind small clients with injectable executors for testing.
package services
