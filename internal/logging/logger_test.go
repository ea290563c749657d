package logging_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"stemforge/internal/logging"
	"stemforge/internal/services"
	"stemforge/internal/testsupport"
)

func TestNewFromConfigWritesDaemonLog(t *testing.T) {
	cfg := testsupport.NewConfig(t)

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		t.Fatalf("NewFromConfig returned error: %v", err)
	}
	logger.Info("daemon ready")

	content, err := os.ReadFile(filepath.Join(cfg.Paths.LogDir, logging.DaemonLogName))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(content), "daemon ready") {
		t.Fatalf("expected message in daemon log, got %q", content)
	}
}

func TestConsoleLoggerPrefixesJobAndStage(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console.log")
	logger, err := logging.New(logging.Options{Format: "console", Level: "info", File: logPath, Quiet: true})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	ctx := services.WithJobID(context.Background(), "0123456789abcdef")
	ctx = services.WithStage(ctx, "acquire")
	logging.WithContext(ctx, logging.NewComponentLogger(logger, "workflow")).Info("strategy attempt", logging.String(logging.FieldStrategy, "android"))

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	line := string(content)
	if !strings.Contains(line, "workflow [01234567/acquire]: strategy attempt") {
		t.Fatalf("expected component/job/stage prefix, got %q", line)
	}
	if !strings.Contains(line, "strategy=android") {
		t.Fatalf("expected strategy attr, got %q", line)
	}
	if strings.Contains(line, ".go:") {
		t.Fatalf("expected no caller information in info logs, got %q", line)
	}
}

func TestJSONLoggerKeepsFullJobID(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "json.log")
	logger, err := logging.New(logging.Options{Format: "json", Level: "info", File: logPath, Quiet: true})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logging.WithContext(services.WithJobID(context.Background(), "0123456789abcdef"), logger).Warn("publish failed")

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	for _, fragment := range []string{`"job_id":"0123456789abcdef"`, `"level":"warn"`, `"msg":"publish failed"`} {
		if !strings.Contains(string(content), fragment) {
			t.Fatalf("expected %s in %q", fragment, content)
		}
	}
}

func TestConsoleLoggerFlattensGroupsAndQuotes(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console.log")
	logger, err := logging.New(logging.Options{Level: "warn", File: logPath, Quiet: true})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Info("dropped below warn")
	logging.WarnWithContext(logger.WithGroup("publish").With(logging.String("backend", "s3")),
		"upload failed", "publish_failed",
		logging.String("target", "stems bucket"),
		logging.String(logging.FieldErrorHint, "check credentials"),
	)

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	line := string(content)
	if strings.Contains(line, "dropped below warn") {
		t.Fatalf("expected info line to be filtered, got %q", line)
	}
	for _, fragment := range []string{
		"WARN upload failed",
		"publish.backend=s3",
		`publish.target="stems bucket"`,
		`publish.error_hint="check credentials"`,
		"publish.event_type=publish_failed",
	} {
		if !strings.Contains(line, fragment) {
			t.Fatalf("expected %q in %q", fragment, line)
		}
	}
	if strings.Count(line, "error_hint=") != 1 {
		t.Fatalf("caller hint must replace the default, got %q", line)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestPruneOldLogsSkipsActiveAndRecent(t *testing.T) {
	dir := t.TempDir()
	now := time.Now()
	old := filepath.Join(dir, "stemforge-old.log")
	recent := filepath.Join(dir, "stemforge-recent.log")
	active := filepath.Join(dir, "stemforge.log")
	for _, path := range []string{old, recent, active} {
		testsupport.WriteFile(t, path, 16)
	}
	stale := now.AddDate(0, 0, -10)
	for _, path := range []string{old, active} {
		if err := os.Chtimes(path, stale, stale); err != nil {
			t.Fatalf("chtimes: %v", err)
		}
	}

	removed := logging.PruneOldLogs(logging.NewNop(), dir, "stemforge*.log", active, 3, now)
	if removed != 1 {
		t.Fatalf("expected 1 file pruned, got %d", removed)
	}
	if _, err := os.Stat(old); !os.IsNotExist(err) {
		t.Fatalf("expected old log removed, stat err=%v", err)
	}
	for _, path := range []string{recent, active} {
		if _, err := os.Stat(path); err != nil {
			t.Fatalf("expected %s retained: %v", path, err)
		}
	}
}
