package acquire

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"stemforge/internal/media"
	"stemforge/internal/services"
	"stemforge/internal/testsupport"
)

type scriptedAcquirer struct {
	t        *testing.T
	dir      string
	outcomes map[string]error
	calls    []string
	creds    []Credential
}

func (s *scriptedAcquirer) Acquire(_ context.Context, _ media.Locator, strategy Strategy, cred Credential, destDir string) (media.Asset, error) {
	s.calls = append(s.calls, strategy.Name)
	s.creds = append(s.creds, cred)
	if err, ok := s.outcomes[strategy.Name]; ok && err != nil {
		return media.Asset{}, err
	}
	path := filepath.Join(destDir, strategy.Name+".wav")
	testsupport.WriteFile(s.t, path, 128)
	return media.Asset{Path: path, Title: "Song"}, nil
}

func strategies(names ...string) []Strategy {
	out := make([]Strategy, 0, len(names))
	for _, name := range names {
		out = append(out, Strategy{Name: name, Client: name})
	}
	return out
}

func TestRunnerStopsAtFirstSuccess(t *testing.T) {
	acq := &scriptedAcquirer{t: t, outcomes: map[string]error{
		"a": NewFailure(KindTransient, errors.New("HTTP Error 503")),
	}}
	runner := NewRunner(acq, time.Second, nil)

	result, err := runner.Run(context.Background(), media.Locator{ID: "x"}, strategies("a", "b", "c"), Credential{}, t.TempDir())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if result.Strategy.Name != "b" {
		t.Fatalf("expected strategy b, got %q", result.Strategy.Name)
	}
	if filepath.Base(result.Asset.Path) != "b.wav" {
		t.Fatalf("expected b's asset, got %q", result.Asset.Path)
	}
	if strings.Join(acq.calls, ",") != "a,b" {
		t.Fatalf("expected calls a,b got %v", acq.calls)
	}
	if len(result.Attempts) != 2 || result.Attempts[0].Kind != KindTransient {
		t.Fatalf("unexpected attempts %+v", result.Attempts)
	}
}

func TestRunnerFormatFailureStopsFallback(t *testing.T) {
	acq := &scriptedAcquirer{t: t, outcomes: map[string]error{
		"a": NewFailure(KindFormat, errors.New("no wav output")),
	}}
	runner := NewRunner(acq, 0, nil)

	_, err := runner.Run(context.Background(), media.Locator{}, strategies("a", "b"), Credential{}, t.TempDir())
	var acqErr *Error
	if !errors.As(err, &acqErr) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if acqErr.Class != KindFormat {
		t.Fatalf("expected format class, got %q", acqErr.Class)
	}
	if len(acq.calls) != 1 {
		t.Fatalf("expected a single attempt, got %v", acq.calls)
	}
	if !errors.Is(err, services.ErrAcquire) {
		t.Fatal("expected error to match acquire marker")
	}
	if !strings.Contains(err.Error(), "audio_format") {
		t.Fatalf("expected format hint in %q", err.Error())
	}
}

func TestRunnerExhaustedAuthHints(t *testing.T) {
	authErr := NewFailure(KindAuthRequired, errors.New("Sign in to confirm your age"))
	acq := &scriptedAcquirer{t: t, outcomes: map[string]error{"a": authErr, "b": errors.New("boom")}}
	runner := NewRunner(acq, 0, nil)

	_, err := runner.Run(context.Background(), media.Locator{}, strategies("a", "b"), Credential{}, t.TempDir())
	var acqErr *Error
	if !errors.As(err, &acqErr) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if acqErr.Class != KindAuthRequired || acqErr.CredentialsAvailable {
		t.Fatalf("unexpected classification %+v", acqErr)
	}
	if !strings.Contains(acqErr.Hint(), "no cookies are configured") {
		t.Fatalf("unexpected hint %q", acqErr.Hint())
	}
	if len(acqErr.Attempts) != 2 {
		t.Fatalf("expected 2 attempts, got %d", len(acqErr.Attempts))
	}

	cookies := filepath.Join(t.TempDir(), "cookies.txt")
	testsupport.WriteFile(t, cookies, 32)
	acq.calls = nil
	_, err = runner.Run(context.Background(), media.Locator{}, strategies("a", "b"), Credential{CookiesFile: cookies}, t.TempDir())
	if !errors.As(err, &acqErr) || !acqErr.CredentialsAvailable {
		t.Fatalf("expected credentials to be reported, got %v", err)
	}
	if !strings.Contains(acqErr.Hint(), "rejected") {
		t.Fatalf("unexpected hint %q", acqErr.Hint())
	}
}

func TestRunnerTransientOnlyHint(t *testing.T) {
	acq := &scriptedAcquirer{t: t, outcomes: map[string]error{"a": errors.New("reset")}}
	_, err := NewRunner(acq, 0, nil).Run(context.Background(), media.Locator{}, strategies("a"), Credential{}, t.TempDir())
	var acqErr *Error
	if !errors.As(err, &acqErr) || acqErr.Class != KindTransient {
		t.Fatalf("expected transient error, got %v", err)
	}
	if !strings.Contains(acqErr.Hint(), "retry later") {
		t.Fatalf("unexpected hint %q", acqErr.Hint())
	}
}

func TestRunnerEmptyPlan(t *testing.T) {
	_, err := NewRunner(&scriptedAcquirer{t: t}, 0, nil).Run(context.Background(), media.Locator{}, nil, Credential{}, t.TempDir())
	if !errors.Is(err, services.ErrAcquire) {
		t.Fatalf("expected acquire error, got %v", err)
	}
}

type emptyFileAcquirer struct{}

func (emptyFileAcquirer) Acquire(_ context.Context, _ media.Locator, _ Strategy, _ Credential, destDir string) (media.Asset, error) {
	path := filepath.Join(destDir, "empty.wav")
	return media.Asset{Path: path}, writeEmpty(path)
}

func TestRunnerRejectsEmptyAsset(t *testing.T) {
	_, err := NewRunner(emptyFileAcquirer{}, 0, nil).Run(context.Background(), media.Locator{}, strategies("a"), Credential{}, t.TempDir())
	var acqErr *Error
	if !errors.As(err, &acqErr) || acqErr.Attempts[0].Kind != KindTransient {
		t.Fatalf("expected transient failure for empty asset, got %v", err)
	}
}

func TestRunnerWithholdsCredentialsFromPlainStrategies(t *testing.T) {
	cookies := filepath.Join(t.TempDir(), "cookies.txt")
	testsupport.WriteFile(t, cookies, 32)
	acq := &scriptedAcquirer{t: t, outcomes: map[string]error{"cookies-web": errors.New("bot check")}}
	plan := []Strategy{{Name: "cookies-web", UseCredentials: true}, {Name: "android"}}

	if _, err := NewRunner(acq, 0, nil).Run(context.Background(), media.Locator{}, plan, Credential{CookiesFile: cookies}, t.TempDir()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if acq.creds[0].CookiesFile != cookies || acq.creds[1].CookiesFile != "" {
		t.Fatalf("unexpected credentials passed: %+v", acq.creds)
	}
}
