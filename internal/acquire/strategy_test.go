package acquire

import (
	"os"
	"path/filepath"
	"testing"

	"stemforge/internal/config"
	"stemforge/internal/testsupport"
)

func writeEmpty(path string) error {
	return os.WriteFile(path, nil, 0o644)
}

func TestPlanSkipsCredentialedWithoutCookies(t *testing.T) {
	all := StrategiesFromConfig(config.DefaultStrategies())
	plan, skipped := Plan(all, Credential{})
	if len(skipped) != 1 || skipped[0].Name != "cookies-web" {
		t.Fatalf("expected cookies-web skipped, got %+v", skipped)
	}
	if len(plan) != len(all)-1 || plan[0].Name != "android" {
		t.Fatalf("unexpected plan %+v", plan)
	}
}

func TestPlanKeepsOrderWithCookies(t *testing.T) {
	cookies := filepath.Join(t.TempDir(), "cookies.txt")
	testsupport.WriteFile(t, cookies, 10)
	all := StrategiesFromConfig(config.DefaultStrategies())
	plan, skipped := Plan(all, Credential{CookiesFile: cookies})
	if len(skipped) != 0 || len(plan) != len(all) {
		t.Fatalf("expected full plan, got plan=%d skipped=%d", len(plan), len(skipped))
	}
	for i := range all {
		if plan[i].Name != all[i].Name {
			t.Fatalf("order changed at %d: %q vs %q", i, plan[i].Name, all[i].Name)
		}
	}
}

func TestCredentialAvailable(t *testing.T) {
	dir := t.TempDir()
	empty := filepath.Join(dir, "empty.txt")
	if err := writeEmpty(empty); err != nil {
		t.Fatal(err)
	}
	if (Credential{CookiesFile: empty}).Available() {
		t.Fatal("empty cookies file should be unavailable")
	}
	if (Credential{CookiesFile: filepath.Join(dir, "missing")}).Available() {
		t.Fatal("missing cookies file should be unavailable")
	}
	if (Credential{CookiesFile: dir}).Available() {
		t.Fatal("directory should be unavailable")
	}
}

func TestKindOf(t *testing.T) {
	if KindOf(os.ErrNotExist) != KindTransient {
		t.Fatal("unclassified errors should be transient")
	}
	if KindOf(NewFailure(KindAuthRequired, nil)) != KindAuthRequired {
		t.Fatal("expected auth_required")
	}
	if KindFormat.Retryable() || !KindAuthRequired.Retryable() {
		t.Fatal("unexpected retryability")
	}
}
