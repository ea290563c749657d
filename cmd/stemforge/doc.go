// Package main hosts the stemforge CLI entrypoint and command graph.
//
// The Cobra command tree runs the daemon in the foreground and translates
// every other invocation into IPC calls against it: submitting jobs, reading
// job and queue state, attaching metadata, and requesting shutdown. Config
// scaffolding and dependency checks run locally without a daemon.
//
// Keep this package thin. New behavior belongs in the internal packages and
// is surfaced here through a command or flag.
package main
