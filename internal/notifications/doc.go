// Package notifications delivers job lifecycle events via pluggable sinks.
//
// ntfy receives push notifications for milestones a person cares about
// (job started, completed, failed, publish warnings). Redis receives every
// event as JSON on a pub/sub channel for external dashboards. The in-process
// Hub feeds websocket subscribers of a single job. Each sink degrades to a
// no-op when unconfigured.
//
// Workflow code depends only on the Service interface.
package notifications
