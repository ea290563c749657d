package pipeline

import (
	"context"
	"path/filepath"
	"sort"
	"strings"

	"stemforge/internal/archive"
	"stemforge/internal/fileutil"
	"stemforge/internal/logging"
	"stemforge/internal/queue"
	"stemforge/internal/services"
	"stemforge/internal/stage"
)

func (r *jobRun) archive(ctx context.Context) (queue.Result, error) {
	external := r.externalStems(ctx)
	reserved := make([]string, 0, len(external))
	for name := range external {
		reserved = append(reserved, name)
	}
	sort.Strings(reserved)

	labeled := archive.Relabel(r.stems, reserved...)
	for name, path := range external {
		labeled[name] = path
	}

	title := r.title()
	name := archive.FileName(title, r.o.opts.NameMaxLength, r.o.opts.FallbackName)
	path := filepath.Join(r.workDir, name)

	// The archive is built in scratch and moved out so the output directory
	// never holds a partial file, even when it lives on another filesystem.
	written, err := archive.Create(path, labeled)
	if err != nil {
		return queue.Result{}, services.Wrap(services.ErrArchive, stage.Archive, "create", name, err)
	}
	retained := r.o.opts.KeepScratch
	if dir := strings.TrimSpace(r.job.OutputDirectory); dir != "" {
		dest := filepath.Join(dir, name)
		if err := fileutil.MoveFile(path, dest); err != nil {
			return queue.Result{}, services.Wrap(services.ErrArchive, stage.Archive, "move", dest, err)
		}
		path = dest
		retained = true
	}
	logging.WithContext(ctx, r.o.logger).Info("archive created",
		logging.String("archive_path", path),
		logging.Any("stems", written),
		logging.Bool("retained", retained),
		logging.String(logging.FieldEventType, "archive_created"),
	)
	r.rep.report(ctx, stage.ProgressArchived, "Created "+name)

	return queue.Result{
		ArchivePath: path,
		Retained:    retained,
		Title:       title,
		SourceURL:   r.locator.URL,
		Strategy:    r.strategy,
		Stems:       written,
	}, nil
}

// externalStems returns verified stems supplied through metadata. Invalid
// entries are logged and ignored so they do not reserve a label.
func (r *jobRun) externalStems(ctx context.Context) map[string]string {
	stems := queue.ExternalStems(r.job.Metadata)
	for name, path := range stems {
		if _, err := fileutil.VerifyNonEmpty(path); err == nil {
			continue
		}
		logging.WarnWithContext(logging.WithContext(ctx, r.o.logger), "external stem ignored", "external_stem_invalid",
			logging.String("stem", name),
			logging.String("path", path),
			logging.String(logging.FieldImpact, "stem omitted from archive"),
		)
		delete(stems, name)
	}
	return stems
}

func (r *jobRun) title() string {
	if title := strings.TrimSpace(r.job.Metadata[queue.MetadataTitle]); title != "" {
		return title
	}
	if r.asset.Title != "" {
		return r.asset.Title
	}
	return r.locator.Title
}
