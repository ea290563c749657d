// Package daemon coordinates the long-running stemforge process.
//
// It wires the workflow manager, the notification hub and the HTTP API into
// a single lifecycle with flock-based locking to prevent multiple instances.
// The daemon is the only surface the IPC server and HTTP handlers talk to:
// submissions are validated here, and queue reads go through it so callers
// never touch the store directly.
//
// Keep orchestration logic here. Pipeline stages live in their own packages
// while the daemon focuses on startup, shutdown and request handling.
package daemon
