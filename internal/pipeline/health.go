package pipeline

import (
	"context"

	"stemforge/internal/stage"
)

// Health reports readiness for each stage whose collaborator can check itself.
// Locate shares the acquire tool, so its status mirrors the searcher's check.
func (o *Orchestrator) Health(ctx context.Context) []stage.Health {
	checks := []struct {
		name string
		dep  any
	}{
		{stage.Locate, o.deps.Searcher},
		{stage.Acquire, o.deps.Acquirer},
		{stage.Separate, o.deps.Separator},
		{stage.Archive, nil},
		{stage.Publish, o.deps.Publisher},
	}
	out := make([]stage.Health, 0, len(checks))
	for _, check := range checks {
		if check.name == stage.Publish && check.dep == nil {
			out = append(out, stage.Health{Name: stage.Publish, Ready: true, Detail: "disabled"})
			continue
		}
		checker, ok := check.dep.(stage.HealthChecker)
		if !ok {
			out = append(out, stage.Healthy(check.name))
			continue
		}
		health := checker.HealthCheck(ctx)
		health.Name = check.name
		out = append(out, health)
	}
	return out
}
