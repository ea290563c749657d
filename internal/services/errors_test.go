package services_test

import (
	"errors"
	"strings"
	"testing"

	"stemforge/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrSeparation, "separate", "demucs", "failed", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrSeparation) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"separation failed", "separate", "demucs", "boom"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapIsIdempotentForSameMarker(t *testing.T) {
	inner := services.Wrap(services.ErrLocate, "locate", "search", "no match", nil)
	outer := services.Wrap(services.ErrLocate, "locate", "resolve", "lookup failed", inner)
	if outer != inner {
		t.Fatalf("expected rewrap to return original error, got %q", outer)
	}
	if n := strings.Count(outer.Error(), "locate failed"); n != 1 {
		t.Fatalf("expected single marker prefix, got %d in %q", n, outer.Error())
	}
}

func TestWrapAddsNewMarkerAroundForeignError(t *testing.T) {
	inner := services.Wrap(services.ErrExternalTool, "acquire", "yt-dlp", "exit 1", nil)
	outer := services.Wrap(services.ErrAcquire, "acquire", "download", "", inner)
	if !errors.Is(outer, services.ErrAcquire) || !errors.Is(outer, services.ErrExternalTool) {
		t.Fatalf("expected both markers, got %v", outer)
	}
}

func TestStageLabel(t *testing.T) {
	cases := map[error]string{
		nil: "",
		services.Wrap(services.ErrSeparation, "separate", "", "", nil): "separate",
		services.Wrap(services.ErrArchive, "archive", "", "", nil):     "archive",
		errors.New("plain"): "pipeline",
	}
	for err, want := range cases {
		if got := services.StageLabel(err); got != want {
			t.Fatalf("StageLabel(%v) = %q, want %q", err, got, want)
		}
	}
}
