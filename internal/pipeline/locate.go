package pipeline

import (
	"context"
	"fmt"

	"stemforge/internal/logging"
	"stemforge/internal/media"
	"stemforge/internal/services"
	"stemforge/internal/stage"
	"stemforge/internal/textutil"
)

func (r *jobRun) locate(ctx context.Context) error {
	r.rep.report(ctx, stage.ProgressStarted, "Locating media")
	if loc, ok := media.ParseDirect(r.job.Query); ok {
		r.locator = loc
		r.rep.report(ctx, stage.ProgressLocated, "Using direct link "+loc.URL)
		return nil
	}

	candidates, err := r.o.deps.Searcher.Search(ctx, r.job.Query)
	if err != nil {
		return services.Wrap(services.ErrLocate, stage.Locate, "search", fmt.Sprintf("query %q", r.job.Query), err)
	}
	loc, ok := bestCandidate(r.job.Query, candidates)
	if !ok {
		return services.Wrap(services.ErrLocate, stage.Locate, "search", fmt.Sprintf("no media found for %q", r.job.Query), nil)
	}
	r.locator = loc
	logging.WithContext(ctx, r.o.logger).Info("media located",
		logging.String("media_id", loc.ID),
		logging.String("title", loc.Title),
		logging.Int("candidates", len(candidates)),
		logging.String(logging.FieldEventType, "media_located"),
	)
	r.rep.report(ctx, stage.ProgressLocated, "Found: "+displayTitle(loc))
	return nil
}

// bestCandidate picks the search result whose title best matches the query.
func bestCandidate(query string, candidates []media.Locator) (media.Locator, bool) {
	titles := make([]string, len(candidates))
	for i, c := range candidates {
		titles[i] = c.Title
	}
	idx, _ := textutil.BestMatch(query, titles)
	if idx < 0 {
		return media.Locator{}, false
	}
	return candidates[idx], true
}

func displayTitle(loc media.Locator) string {
	if loc.Title != "" {
		return loc.Title
	}
	if loc.URL != "" {
		return loc.URL
	}
	return loc.ID
}
