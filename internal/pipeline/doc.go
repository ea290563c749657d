// Package pipeline executes the per-job stage sequence: locate the media,
// acquire its audio, separate stems, archive them and optionally publish the
// archive.
//
// Progress is reported as Event values on a caller-owned channel rather than
// through callbacks. Events for a job are sent in order and their progress
// never decreases; the caller must drain the channel until Run returns.
//
// Locate, acquire, separate and archive failures end the job. Publish
// failures are recorded as warnings on an otherwise completed result.
package pipeline
