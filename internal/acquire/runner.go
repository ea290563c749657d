package acquire

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"stemforge/internal/fileutil"
	"stemforge/internal/logging"
	"stemforge/internal/media"
)

// Acquirer fetches raw audio for a locator with a single strategy. Failed
// attempts should return a *Failure naming the failure kind.
type Acquirer interface {
	Acquire(ctx context.Context, loc media.Locator, strategy Strategy, cred Credential, destDir string) (media.Asset, error)
}

// Result is a successful acquisition.
type Result struct {
	Asset    media.Asset
	Strategy Strategy
	Attempts []Attempt
}

// Runner executes the fallback over a strategy plan.
type Runner struct {
	acquirer Acquirer
	timeout  time.Duration
	logger   *slog.Logger
}

// NewRunner builds a Runner. A non-positive timeout leaves attempts unbounded.
func NewRunner(acquirer Acquirer, attemptTimeout time.Duration, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Runner{acquirer: acquirer, timeout: attemptTimeout, logger: logger}
}

// Run tries each strategy in order until one yields a verified asset.
func (r *Runner) Run(ctx context.Context, loc media.Locator, plan []Strategy, cred Credential, destDir string) (Result, error) {
	credentials := cred.Available()
	if r.acquirer == nil {
		return Result{}, newError(KindTransient, credentials, nil, errors.New("no acquirer configured"))
	}
	if len(plan) == 0 {
		return Result{}, newError(KindTransient, credentials, nil, nil)
	}

	logger := logging.WithContext(ctx, r.logger)
	attempts := make([]Attempt, 0, len(plan))
	var lastErr error
	for idx, strategy := range plan {
		if err := ctx.Err(); err != nil {
			return Result{}, newError(classify(attempts), credentials, attempts, err)
		}

		started := time.Now()
		asset, err := r.attempt(ctx, loc, strategy, cred, destDir)
		attempt := Attempt{Strategy: strategy.Name, Duration: time.Since(started)}
		if err == nil {
			attempts = append(attempts, attempt)
			logger.Info("acquire strategy succeeded",
				logging.String(logging.FieldStrategy, strategy.Name),
				logging.Int("attempt", idx+1),
				logging.Duration("duration", attempt.Duration),
				logging.String(logging.FieldEventType, "acquire_strategy_succeeded"),
			)
			return Result{Asset: asset, Strategy: strategy, Attempts: attempts}, nil
		}

		attempt.Kind = KindOf(err)
		attempt.Err = err.Error()
		attempts = append(attempts, attempt)
		lastErr = err

		if !attempt.Kind.Retryable() {
			logger.Error("acquire strategy produced unusable media; stopping fallback",
				logging.String(logging.FieldStrategy, strategy.Name),
				logging.Error(err),
				logging.String(logging.FieldEventType, "acquire_format_failure"),
				logging.String(logging.FieldErrorHint, "check acquire.audio_format and ffmpeg availability"),
			)
			return Result{}, newError(KindFormat, credentials, attempts, err)
		}

		logging.WarnWithContext(logger, "acquire strategy failed; trying next", "acquire_strategy_failed",
			logging.String(logging.FieldStrategy, strategy.Name),
			logging.String("failure_kind", string(attempt.Kind)),
			logging.Int("remaining", len(plan)-idx-1),
			logging.Error(err),
			logging.String(logging.FieldImpact, "falling back to the next strategy"),
		)
	}

	return Result{}, newError(classify(attempts), credentials, attempts, lastErr)
}

func (r *Runner) attempt(ctx context.Context, loc media.Locator, strategy Strategy, cred Credential, destDir string) (media.Asset, error) {
	attemptCtx := ctx
	if r.timeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	if !strategy.UseCredentials {
		cred = Credential{}
	}
	asset, err := r.acquirer.Acquire(attemptCtx, loc, strategy, cred, destDir)
	if err != nil {
		if errors.Is(attemptCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return media.Asset{}, NewFailure(KindTransient, fmt.Errorf("attempt timed out after %s: %w", r.timeout, err))
		}
		return media.Asset{}, err
	}
	if _, err := fileutil.VerifyNonEmpty(asset.Path); err != nil {
		return media.Asset{}, NewFailure(KindTransient, fmt.Errorf("verify asset: %w", err))
	}
	return asset, nil
}
