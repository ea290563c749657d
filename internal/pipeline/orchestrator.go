package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"stemforge/internal/acquire"
	"stemforge/internal/logging"
	"stemforge/internal/media"
	"stemforge/internal/queue"
	"stemforge/internal/services"
	"stemforge/internal/stage"
)

// Searcher resolves free-text queries to candidate media in ranked order.
type Searcher interface {
	Search(ctx context.Context, query string) ([]media.Locator, error)
}

// Separator splits an asset into stems. progress receives 0-100 completion.
type Separator interface {
	Separate(ctx context.Context, asset media.Asset, workDir string, progress func(percent int)) (map[string]string, error)
}

// Publisher transfers a finished archive and returns where it landed.
type Publisher interface {
	Publish(ctx context.Context, archivePath string) (string, error)
}

// Deps are the collaborators used by the orchestrator. Publisher may be nil
// when no publish target is configured.
type Deps struct {
	Searcher  Searcher
	Acquirer  acquire.Acquirer
	Separator Separator
	Publisher Publisher
}

// Options tune orchestration.
type Options struct {
	ScratchDir     string
	KeepScratch    bool
	Strategies     []acquire.Strategy
	Credential     acquire.Credential
	AttemptTimeout time.Duration
	NameMaxLength  int
	FallbackName   string
}

// Orchestrator runs the stage sequence for one job at a time.
type Orchestrator struct {
	opts   Options
	deps   Deps
	runner *acquire.Runner
	logger *slog.Logger
}

// New constructs an orchestrator.
func New(opts Options, deps Deps, logger *slog.Logger) (*Orchestrator, error) {
	if deps.Searcher == nil || deps.Acquirer == nil || deps.Separator == nil {
		return nil, errors.New("searcher, acquirer and separator are required")
	}
	if strings.TrimSpace(opts.ScratchDir) == "" {
		return nil, errors.New("scratch directory required")
	}
	if opts.FallbackName == "" {
		opts.FallbackName = "separated_stems"
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logging.NewComponentLogger(logger, "pipeline")
	return &Orchestrator{
		opts:   opts,
		deps:   deps,
		runner: acquire.NewRunner(deps.Acquirer, opts.AttemptTimeout, logger),
		logger: logger,
	}, nil
}

// PublishConfigured reports whether a publish target is available.
func (o *Orchestrator) PublishConfigured() bool {
	return o.deps.Publisher != nil
}

// Run executes the pipeline for job. events may be nil.
func (o *Orchestrator) Run(ctx context.Context, job queue.Snapshot, events chan<- Event) (queue.Result, error) {
	ctx = services.WithJobID(ctx, job.ID)
	rep := newReporter(job.ID, job.Progress, events)
	defer rep.close()

	workDir := filepath.Join(o.opts.ScratchDir, job.ID)
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return queue.Result{}, services.Wrap(services.ErrConfiguration, "pipeline", "create scratch directory", workDir, err)
	}
	defer o.cleanup(ctx, workDir)

	run := &jobRun{o: o, job: job, rep: rep, workDir: workDir}
	return run.execute(ctx)
}

func (o *Orchestrator) cleanup(ctx context.Context, workDir string) {
	if o.opts.KeepScratch {
		return
	}
	if err := os.RemoveAll(workDir); err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, o.logger), "scratch cleanup failed", "scratch_cleanup_failed",
			logging.String("path", workDir),
			logging.Error(err),
			logging.String(logging.FieldImpact, "scratch files remain on disk"),
			logging.String(logging.FieldErrorHint, "remove the directory manually"),
		)
	}
}

// jobRun carries per-job state through the stages.
type jobRun struct {
	o       *Orchestrator
	job     queue.Snapshot
	rep     *reporter
	workDir string

	locator  media.Locator
	asset    media.Asset
	strategy string
	stems    map[string]string
}

func (r *jobRun) execute(ctx context.Context) (queue.Result, error) {
	steps := []struct {
		name string
		fn   func(context.Context) error
	}{
		{stage.Locate, r.locate},
		{stage.Acquire, r.acquire},
		{stage.Separate, r.separate},
	}
	for _, step := range steps {
		stageCtx := services.WithStage(ctx, step.name)
		r.rep.setStage(step.name)
		started := time.Now()
		if err := step.fn(stageCtx); err != nil {
			r.logFailure(stageCtx, step.name, err)
			return queue.Result{}, err
		}
		logging.WithContext(stageCtx, r.o.logger).Info("stage completed",
			logging.String(logging.FieldEventType, "stage_complete"),
			logging.Duration("duration", time.Since(started)),
		)
	}

	archiveCtx := services.WithStage(ctx, stage.Archive)
	r.rep.setStage(stage.Archive)
	result, err := r.archive(archiveCtx)
	if err != nil {
		r.logFailure(archiveCtx, stage.Archive, err)
		return queue.Result{}, err
	}

	if r.job.UploadRequested {
		publishCtx := services.WithStage(ctx, stage.Publish)
		r.rep.setStage(stage.Publish)
		r.publish(publishCtx, &result)
	}
	return result, nil
}

func (r *jobRun) logFailure(ctx context.Context, name string, err error) {
	attrs := []logging.Attr{
		logging.Error(err),
		logging.String(logging.FieldImpact, "job failed"),
	}
	var acqErr *acquire.Error
	if errors.As(err, &acqErr) {
		attrs = append(attrs,
			logging.String(logging.FieldErrorHint, acqErr.Hint()),
			logging.String("failure_class", string(acqErr.Class)),
			logging.Int("attempts", len(acqErr.Attempts)),
		)
	}
	logging.ErrorWithContext(logging.WithContext(ctx, r.o.logger), name+" stage failed", "stage_failure", attrs...)
}

func (r *jobRun) acquire(ctx context.Context) error {
	if asset, ok := r.prefetchedAsset(ctx); ok {
		r.asset = asset
		r.strategy = "prefetched"
		r.rep.report(ctx, stage.ProgressAcquired, "Using pre-fetched audio")
		return nil
	}

	plan, skipped := acquire.Plan(r.o.opts.Strategies, r.o.opts.Credential)
	logger := logging.WithContext(ctx, r.o.logger)
	for _, s := range skipped {
		logger.Debug("strategy skipped; no usable credentials",
			logging.String(logging.FieldStrategy, s.Name),
		)
	}
	r.rep.report(ctx, stage.ProgressLocated, "Downloading audio")
	res, err := r.o.runner.Run(ctx, r.locator, plan, r.o.opts.Credential, filepath.Join(r.workDir, "download"))
	if err != nil {
		return err
	}
	r.asset = res.Asset
	if r.asset.Title == "" {
		r.asset.Title = r.locator.Title
	}
	r.strategy = res.Strategy.Name
	r.rep.report(ctx, stage.ProgressAcquired, "Downloaded audio via "+res.Strategy.Name)
	return nil
}

// prefetchedAsset returns the caller-supplied asset when it verifies.
func (r *jobRun) prefetchedAsset(ctx context.Context) (media.Asset, bool) {
	path := strings.TrimSpace(r.job.Metadata[queue.MetadataAssetPath])
	if path == "" {
		return media.Asset{}, false
	}
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() || info.Size() == 0 {
		logging.WarnWithContext(logging.WithContext(ctx, r.o.logger), "pre-fetched asset unusable; downloading instead", "prefetched_asset_invalid",
			logging.String("path", path),
			logging.String(logging.FieldImpact, "falls back to network acquisition"),
			logging.String(logging.FieldErrorHint, "ensure the asset path exists and is non-empty"),
		)
		return media.Asset{}, false
	}
	title := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if r.locator.Title != "" {
		title = r.locator.Title
	}
	return media.Asset{Path: path, Title: title, Prefetched: true}, true
}

func (r *jobRun) separate(ctx context.Context) error {
	r.rep.report(ctx, stage.ProgressSeparating, "Separating stems")
	stems, err := r.o.deps.Separator.Separate(ctx, r.asset, r.workDir, func(percent int) {
		r.rep.report(ctx, stage.ScaleProgress(percent, stage.ProgressSeparating, stage.ProgressSeparated), fmt.Sprintf("Separating stems (%d%%)", percent))
	})
	if err != nil {
		return services.Wrap(services.ErrSeparation, stage.Separate, "run separator", "", err)
	}
	if len(stems) == 0 {
		return services.Wrap(services.ErrSeparation, stage.Separate, "collect stems", "separator produced no stems", nil)
	}
	r.stems = stems
	r.rep.report(ctx, stage.ProgressSeparated, fmt.Sprintf("Separated %d stems", len(stems)))
	return nil
}
