// Package demucs runs the Demucs source separation model through its
// Python entry point and collects the produced stems.
package demucs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"stemforge/internal/deps"
	"stemforge/internal/media"
	"stemforge/internal/services/cmdexec"
	"stemforge/internal/stage"
)

// Option configures the client.
type Option func(*Client)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec cmdexec.Executor) Option {
	return func(c *Client) {
		if exec != nil {
			c.exec = exec
		}
	}
}

// Settings selects the model and runtime used for separation.
type Settings struct {
	Python  string
	Model   string
	Device  string
	Shifts  int
	Timeout time.Duration
}

// Client wraps Demucs CLI interactions.
type Client struct {
	settings Settings
	exec     cmdexec.Executor
}

// New constructs a Demucs client.
func New(settings Settings, opts ...Option) (*Client, error) {
	settings.Python = strings.TrimSpace(settings.Python)
	if settings.Python == "" {
		return nil, errors.New("python binary required")
	}
	if strings.TrimSpace(settings.Model) == "" {
		settings.Model = "htdemucs"
	}
	if settings.Shifts <= 0 {
		settings.Shifts = 1
	}
	client := &Client{settings: settings, exec: cmdexec.Command{}}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

var percentPattern = regexp.MustCompile(`^\s*(\d{1,3})%\|`)

// Separate runs the model on asset and returns stem name to file path.
// progress receives model completion percentages when non-nil.
func (c *Client) Separate(ctx context.Context, asset media.Asset, workDir string, progress func(percent int)) (map[string]string, error) {
	if strings.TrimSpace(asset.Path) == "" {
		return nil, errors.New("asset path required")
	}
	outDir := filepath.Join(workDir, "separated")
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("create separation directory: %w", err)
	}

	runCtx := ctx
	if c.settings.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, c.settings.Timeout)
		defer cancel()
	}

	args := []string{
		"-m", "demucs.separate",
		"-n", c.settings.Model,
		"--shifts", strconv.Itoa(c.settings.Shifts),
		"-o", outDir,
	}
	if device := strings.TrimSpace(c.settings.Device); device != "" {
		args = append(args, "-d", device)
	}
	args = append(args, asset.Path)

	tail := cmdexec.NewTail(20)
	if err := c.exec.Run(runCtx, c.settings.Python, args, func(line string) {
		if m := percentPattern.FindStringSubmatch(line); m != nil {
			if progress != nil {
				if pct, err := strconv.Atoi(m[1]); err == nil {
					progress(pct)
				}
			}
			return
		}
		tail.Add(line)
	}); err != nil {
		msg := tail.String()
		if msg != "" {
			return nil, fmt.Errorf("demucs: %w: %s", err, lastLine(msg))
		}
		return nil, fmt.Errorf("demucs: %w", err)
	}

	trackDir := filepath.Join(outDir, c.settings.Model, strings.TrimSuffix(filepath.Base(asset.Path), filepath.Ext(asset.Path)))
	return collectStems(trackDir)
}

func collectStems(dir string) (map[string]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("inspect separation output: %w", err)
	}
	stems := make(map[string]string, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		switch strings.ToLower(filepath.Ext(name)) {
		case ".wav", ".flac", ".mp3":
		default:
			continue
		}
		info, err := entry.Info()
		if err != nil || info.Size() == 0 {
			continue
		}
		stems[strings.ToLower(strings.TrimSuffix(name, filepath.Ext(name)))] = filepath.Join(dir, name)
	}
	return stems, nil
}

func lastLine(s string) string {
	if idx := strings.LastIndex(s, "\n"); idx >= 0 {
		return s[idx+1:]
	}
	return s
}

// HealthCheck reports whether python can import the separation module.
func (c *Client) HealthCheck(ctx context.Context) stage.Health {
	status := deps.CheckPythonModule(ctx, c.settings.Python, "demucs")
	if !status.Available {
		return stage.Unhealthy(stage.Separate, status.Detail)
	}
	return stage.Healthy(stage.Separate)
}
