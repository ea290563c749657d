package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrValidation    = errors.New("validation error")
	ErrNotFound      = errors.New("not found")
	ErrConfiguration = errors.New("configuration error")
	ErrExternalTool  = errors.New("external tool error")
	ErrLocate        = errors.New("locate failed")
	ErrAcquire       = errors.New("acquire failed")
	ErrSeparation    = errors.New("separation failed")
	ErrArchive       = errors.New("archive failed")
	ErrPublish       = errors.New("publish failed")
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one of the
// exported sentinel errors above.
//
// Wrapping is idempotent: when err already carries the marker it is returned
// unchanged, so a failure bubbling through several layers keeps a single
// marker prefix and its original detail.
func Wrap(marker error, stage, operation, message string, err error) error {
	if marker == nil {
		marker = ErrExternalTool
	}
	if err != nil && errors.Is(err, marker) {
		return err
	}
	detail := buildDetail(stage, operation, message)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// StageLabel maps a wrapped pipeline error back to the stage that raised it.
func StageLabel(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrLocate):
		return "locate"
	case errors.Is(err, ErrAcquire):
		return "acquire"
	case errors.Is(err, ErrSeparation):
		return "separate"
	case errors.Is(err, ErrArchive):
		return "archive"
	case errors.Is(err, ErrPublish):
		return "publish"
	case errors.Is(err, ErrValidation):
		return "validation"
	default:
		return "pipeline"
	}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
