package preflight

import (
	"context"
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"stemforge/internal/config"
	"stemforge/internal/deps"
	"stemforge/internal/publish"
	"stemforge/internal/stage"
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckCookies verifies the configured cookies file is a readable, non-empty file.
func CheckCookies(path string) Result {
	const name = "Cookies file"
	info, err := os.Stat(path)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", path, err)}
	}
	if info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is a directory)", path)}
	}
	if info.Size() == 0 {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: empty; authenticated strategies will be skipped)", path)}
	}
	if err := unix.Access(path, unix.R_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: not readable: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (readable)", path)}
}

// CheckPublish builds the configured publisher and reports its health.
func CheckPublish(ctx context.Context, cfg *config.Config) Result {
	name := "Publish (" + cfg.Publish.Backend + ")"
	pub, err := publish.New(ctx, cfg, nil)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("error: %v", err)}
	}
	if pub == nil {
		return Result{Name: name, Detail: "disabled"}
	}
	checker, ok := pub.(stage.HealthChecker)
	if !ok {
		return Result{Name: name, Passed: true, Detail: "configured"}
	}
	health := checker.HealthCheck(ctx)
	return Result{Name: name, Passed: health.Ready, Detail: health.Detail}
}

// CheckSystemDeps evaluates all external tools for the given config.
// Both the daemon and the CLI use this to avoid duplicating the
// requirements list.
func CheckSystemDeps(ctx context.Context, cfg *config.Config) []deps.Status {
	return deps.CheckAll(ctx, cfg)
}
