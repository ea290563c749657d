// Package api defines the wire-format types shared by the HTTP API, the IPC
// server and the CLI. It translates queue snapshots and workflow summaries
// into transport-friendly DTOs so consumers never import internal types.
//
// DTOs use camelCase JSON tags. Statuses are exposed as lowercase strings and
// timestamps use RFC3339 with milliseconds. Submissions are validated with
// go-playground/validator before they reach the queue.
package api
