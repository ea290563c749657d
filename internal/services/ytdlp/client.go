package ytdlp

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"stemforge/internal/acquire"
	"stemforge/internal/deps"
	"stemforge/internal/media"
	"stemforge/internal/services/cmdexec"
	"stemforge/internal/stage"
)

const fieldSeparator = "\t"

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

// WithAudioFormat sets the extracted audio format and the format selector.
func WithAudioFormat(format, selector string) Option {
	return func(c *Client) {
		if strings.TrimSpace(format) != "" {
			c.audioFormat = strings.ToLower(strings.TrimSpace(format))
		}
		if strings.TrimSpace(selector) != "" {
			c.formatSelector = strings.TrimSpace(selector)
		}
	}
}

// WithSearch sets the search prefix (ytsearch1, ytsearch5) and search timeout.
func WithSearch(prefix string, timeout time.Duration) Option {
	return func(c *Client) {
		if strings.TrimSpace(prefix) != "" {
			c.searchPrefix = strings.TrimSpace(prefix)
		}
		c.searchTimeout = timeout
	}
}

// WithFFmpeg points yt-dlp at a specific ffmpeg binary.
func WithFFmpeg(path string) Option {
	return func(c *Client) {
		c.ffmpeg = strings.TrimSpace(path)
	}
}

// Client wraps yt-dlp CLI interactions.
type Client struct {
	binary         string
	audioFormat    string
	formatSelector string
	searchPrefix   string
	searchTimeout  time.Duration
	ffmpeg         string
	exec           cmdexec.Executor
}

// New constructs a yt-dlp client.
func New(binary string, opts ...Option) (*Client, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		return nil, errors.New("yt-dlp binary required")
	}
	client := &Client{
		binary:         binary,
		audioFormat:    "wav",
		formatSelector: "bestaudio/best",
		searchPrefix:   "ytsearch1",
		exec:           cmdexec.Command{},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// Search returns candidate locators for a free-text query in result order.
// An empty result is not an error.
func (c *Client) Search(ctx context.Context, query string) ([]media.Locator, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.New("search query required")
	}
	searchCtx := ctx
	if c.searchTimeout > 0 {
		var cancel context.CancelFunc
		searchCtx, cancel = context.WithTimeout(ctx, c.searchTimeout)
		defer cancel()
	}

	args := []string{
		"--flat-playlist",
		"--skip-download",
		"--no-warnings",
		"--print", "%(id)s" + fieldSeparator + "%(title)s",
		c.searchPrefix + ":" + query,
	}
	tail := cmdexec.NewTail(20)
	var results []media.Locator
	if err := c.exec.Run(searchCtx, c.binary, args, func(line string) {
		if loc, ok := parseSearchLine(line); ok {
			results = append(results, loc)
			return
		}
		tail.Add(line)
	}); err != nil {
		return nil, fmt.Errorf("yt-dlp search: %w%s", err, detail(tail))
	}
	return results, nil
}

func parseSearchLine(line string) (media.Locator, bool) {
	id, title, ok := strings.Cut(strings.TrimSpace(line), fieldSeparator)
	if !ok {
		return media.Locator{}, false
	}
	id = strings.TrimSpace(id)
	if id == "" || strings.ContainsAny(id, " /") {
		return media.Locator{}, false
	}
	return media.Locator{ID: id, URL: media.WatchURL(id), Title: strings.TrimSpace(title)}, true
}

// Acquire downloads and extracts audio for loc into destDir using one
// strategy. Failures are returned as *acquire.Failure.
func (c *Client) Acquire(ctx context.Context, loc media.Locator, strategy acquire.Strategy, cred acquire.Credential, destDir string) (media.Asset, error) {
	target := strings.TrimSpace(loc.URL)
	if target == "" && loc.ID != "" {
		target = media.WatchURL(loc.ID)
	}
	if target == "" {
		return media.Asset{}, acquire.NewFailure(acquire.KindTransient, errors.New("locator has no url"))
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return media.Asset{}, acquire.NewFailure(acquire.KindTransient, fmt.Errorf("create destination: %w", err))
	}

	args := c.downloadArgs(target, strategy, cred, destDir)
	tail := cmdexec.NewTail(40)
	var printed []string
	runErr := c.exec.Run(ctx, c.binary, args, func(line string) {
		if path, title, ok := parsePrintedLine(line); ok {
			printed = []string{path, title}
			return
		}
		tail.Add(line)
	})
	if runErr != nil {
		return media.Asset{}, acquire.NewFailure(Classify(tail.String()), fmt.Errorf("yt-dlp %s: %w%s", strategy.Name, runErr, detail(tail)))
	}

	path := ""
	title := loc.Title
	if len(printed) == 2 {
		path = printed[0]
		if printed[1] != "" {
			title = printed[1]
		}
	}
	if path == "" {
		path = newestWithExt(destDir, "."+c.audioFormat)
	}
	if path == "" {
		return media.Asset{}, acquire.NewFailure(acquire.KindTransient, fmt.Errorf("yt-dlp %s produced no output file%s", strategy.Name, detail(tail)))
	}
	if !strings.EqualFold(filepath.Ext(path), "."+c.audioFormat) {
		return media.Asset{}, acquire.NewFailure(acquire.KindFormat, fmt.Errorf("yt-dlp %s produced %s, expected .%s", strategy.Name, filepath.Base(path), c.audioFormat))
	}
	return media.Asset{Path: path, Title: title}, nil
}

func (c *Client) downloadArgs(target string, strategy acquire.Strategy, cred acquire.Credential, destDir string) []string {
	args := []string{
		"--no-playlist",
		"--no-progress",
		"--newline",
		"-f", c.formatSelector,
		"-x",
		"--audio-format", c.audioFormat,
		"-o", filepath.Join(destDir, "%(title)s.%(ext)s"),
		"--print", "after_move:%(filepath)s" + fieldSeparator + "%(title)s",
	}
	if c.ffmpeg != "" {
		args = append(args, "--ffmpeg-location", c.ffmpeg)
	}
	if client := strings.TrimSpace(strategy.Client); client != "" {
		args = append(args, "--extractor-args", "youtube:player_client="+client)
	}
	if strategy.UseCredentials && strings.TrimSpace(cred.CookiesFile) != "" {
		args = append(args, "--cookies", cred.CookiesFile)
	}
	return append(args, target)
}

func parsePrintedLine(line string) (string, string, bool) {
	path, title, ok := strings.Cut(strings.TrimSpace(line), fieldSeparator)
	if !ok || !filepath.IsAbs(path) {
		return "", "", false
	}
	if _, err := os.Stat(path); err != nil {
		return "", "", false
	}
	return path, strings.TrimSpace(title), true
}

func newestWithExt(dir, ext string) string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	var (
		best    string
		bestMod time.Time
	)
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ext) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if best == "" || info.ModTime().After(bestMod) {
			best = filepath.Join(dir, entry.Name())
			bestMod = info.ModTime()
		}
	}
	return best
}

func detail(tail *cmdexec.Tail) string {
	if line := tail.LastMatching("ERROR"); line != "" {
		return ": " + line
	}
	lines := tail.Lines()
	if len(lines) == 0 {
		return ""
	}
	return ": " + lines[len(lines)-1]
}

// HealthCheck reports whether the yt-dlp binary resolves.
func (c *Client) HealthCheck(context.Context) stage.Health {
	status := deps.CheckBinaries([]deps.Requirement{{Name: "yt-dlp", Command: c.binary}})[0]
	if !status.Available {
		return stage.Unhealthy(stage.Acquire, status.Detail)
	}
	return stage.Healthy(stage.Acquire)
}
