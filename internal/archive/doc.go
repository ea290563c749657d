// Package archive relabels separated stems and bundles them into a single
// zip artifact.
//
// Relabel applies the leftover-stem rule once per job: canonical stems keep
// their names, and the separator's generic "other" stem takes the first of
// guitar or synth that no other source already occupies.
package archive
