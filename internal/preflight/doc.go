// Package preflight runs startup and on-demand readiness checks: directory
// access, cookies, external tools and publish configuration. The daemon logs
// failures at start and the CLI renders them from `stemforge deps`.
package preflight
