package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"stemforge/internal/acquire"
	"stemforge/internal/config"
	"stemforge/internal/deps"
	"stemforge/internal/logging"
	"stemforge/internal/pipeline"
	"stemforge/internal/publish"
	"stemforge/internal/services/demucs"
	"stemforge/internal/services/ytdlp"
)

// NewPipeline builds the orchestrator and its collaborators from cfg.
func NewPipeline(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*pipeline.Orchestrator, error) {
	ytOpts := []ytdlp.Option{
		ytdlp.WithAudioFormat(cfg.Acquire.AudioFormat, cfg.Acquire.FormatSelector),
		ytdlp.WithSearch(cfg.Locate.SearchPrefix, time.Duration(cfg.Locate.TimeoutSeconds)*time.Second),
	}
	if ffmpeg := deps.CheckFFmpegForYtDlp(cfg.Acquire.YtDlpBinary); ffmpeg.Available {
		ytOpts = append(ytOpts, ytdlp.WithFFmpeg(ffmpeg.Command))
	}
	yt, err := ytdlp.New(cfg.Acquire.YtDlpBinary, ytOpts...)
	if err != nil {
		return nil, fmt.Errorf("yt-dlp client: %w", err)
	}

	separator, err := demucs.New(demucs.Settings{
		Python:  cfg.Separate.PythonBinary,
		Model:   cfg.Separate.Model,
		Device:  cfg.Separate.Device,
		Shifts:  cfg.Separate.Shifts,
		Timeout: time.Duration(cfg.Separate.TimeoutMinutes) * time.Minute,
	})
	if err != nil {
		return nil, fmt.Errorf("demucs client: %w", err)
	}

	publisher, err := publish.New(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("publisher: %w", err)
	}

	// Availability is re-checked per job so a cookies file dropped in later
	// enables the authenticated strategies without a restart.
	credential := acquire.Credential{CookiesFile: cfg.Acquire.CookiesFile}
	if cfg.Acquire.CookiesFile != "" && !cfg.CookiesAvailable() {
		logging.WarnWithContext(logger, "cookies file unusable", "cookies_unavailable",
			logging.String("path", cfg.Acquire.CookiesFile),
			logging.String(logging.FieldImpact, "strategies that need cookies are skipped until the file is readable and non-empty"),
			logging.String(logging.FieldErrorHint, "export fresh cookies to the configured path"),
		)
	}

	pipelineDeps := pipeline.Deps{
		Searcher:  yt,
		Acquirer:  yt,
		Separator: separator,
	}
	if publisher != nil {
		pipelineDeps.Publisher = publisher
	}

	return pipeline.New(pipeline.Options{
		ScratchDir:     cfg.Paths.ScratchDir,
		KeepScratch:    cfg.Workflow.KeepScratch,
		Strategies:     acquire.StrategiesFromConfig(cfg.Acquire.Strategies),
		Credential:     credential,
		AttemptTimeout: time.Duration(cfg.Acquire.AttemptTimeoutSeconds) * time.Second,
		NameMaxLength:  cfg.Archive.NameMaxLength,
		FallbackName:   cfg.Archive.FallbackName,
	}, pipelineDeps, logger)
}
