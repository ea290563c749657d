package stage

import "context"

// HealthChecker is implemented by collaborators that can report readiness.
type HealthChecker interface {
	HealthCheck(context.Context) Health
}
