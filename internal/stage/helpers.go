package stage

// Pipeline stage names in execution order.
const (
	Locate   = "locate"
	Acquire  = "acquire"
	Separate = "separate"
	Archive  = "archive"
	Publish  = "publish"
)

// Progress milestones reported at stage boundaries.
const (
	ProgressStarted    = 10
	ProgressLocated    = 20
	ProgressAcquired   = 30
	ProgressSeparating = 50
	ProgressSeparated  = 75
	ProgressArchived   = 80
	ProgressPublishing = 90
	ProgressComplete   = 100
)

// Names returns the stage names in execution order.
func Names() []string {
	return []string{Locate, Acquire, Separate, Archive, Publish}
}

// ScaleProgress maps a collaborator's 0-100 completion into [from, to].
func ScaleProgress(percent, from, to int) int {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	return from + (to-from)*percent/100
}
