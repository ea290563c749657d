package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"stemforge/internal/config"
)

// DaemonLogName is the file the daemon mirrors its log stream into.
const DaemonLogName = "stemforge.log"

// Options describes logger construction parameters.
type Options struct {
	Level  string
	Format string
	// File receives a copy of every line when set.
	File string
	// Quiet drops the stdout copy.
	Quiet       bool
	Development bool
}

// New constructs a slog logger using the provided options.
func New(opts Options) (*slog.Logger, error) {
	level := new(slog.LevelVar)
	level.Set(parseLevel(opts.Level))
	addSource := opts.Development || level.Level() <= slog.LevelDebug

	var build func(io.Writer) slog.Handler
	switch strings.ToLower(strings.TrimSpace(opts.Format)) {
	case "", "console":
		build = func(w io.Writer) slog.Handler {
			return &consoleHandler{out: &lockedWriter{w: w}, level: level, addSource: addSource}
		}
	case "json":
		build = func(w io.Writer) slog.Handler {
			return slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level, AddSource: addSource, ReplaceAttr: jsonAttr})
		}
	default:
		return nil, fmt.Errorf("log format: unsupported value %q", opts.Format)
	}

	w, err := openOutput(opts)
	if err != nil {
		return nil, err
	}
	return slog.New(build(w)), nil
}

// NewFromConfig creates a logger using application config defaults. When a log
// directory is configured the stream is mirrored to stemforge.log there.
func NewFromConfig(cfg *config.Config) (*slog.Logger, error) {
	if cfg == nil {
		return New(Options{})
	}
	opts := Options{Level: cfg.Logging.Level, Format: cfg.Logging.Format}
	if cfg.Paths.LogDir != "" {
		opts.File = filepath.Join(cfg.Paths.LogDir, DaemonLogName)
	}
	return New(opts)
}

// parseLevel accepts slog level names ("warn", "INFO+2") and falls back to info.
func parseLevel(value string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(value))); err != nil {
		return slog.LevelInfo
	}
	return level
}

func openOutput(opts Options) (io.Writer, error) {
	var writers []io.Writer
	if !opts.Quiet {
		writers = append(writers, os.Stdout)
	}
	if path := strings.TrimSpace(opts.File); path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("ensure log directory: %w", err)
		}
		file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o664)
		if err != nil {
			return nil, fmt.Errorf("open log file %s: %w", path, err)
		}
		writers = append(writers, file)
	}
	switch len(writers) {
	case 0:
		return io.Discard, nil
	case 1:
		return writers[0], nil
	}
	return io.MultiWriter(writers...), nil
}

func jsonAttr(groups []string, attr slog.Attr) slog.Attr {
	if len(groups) > 0 {
		return attr
	}
	switch attr.Key {
	case slog.TimeKey:
		if attr.Value.Kind() == slog.KindTime {
			return slog.String("ts", attr.Value.Time().UTC().Format(time.RFC3339))
		}
	case slog.LevelKey:
		return slog.String(slog.LevelKey, strings.ToLower(attr.Value.String()))
	case slog.SourceKey:
		if src, ok := attr.Value.Any().(*slog.Source); ok && src != nil {
			return slog.String(slog.SourceKey, fmt.Sprintf("%s:%d", filepath.Base(src.File), src.Line))
		}
	}
	return attr
}

type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) write(p []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, err := l.w.Write(p)
	return err
}

// consoleHandler writes "ts LEVEL component [job/stage]: msg key=value" lines.
// Attributes added through With are rendered once and reused.
type consoleHandler struct {
	out       *lockedWriter
	level     slog.Leveler
	addSource bool
	head      lineHead
	group     string
	preset    []byte
}

func (h *consoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *consoleHandler) Handle(_ context.Context, record slog.Record) error {
	head := h.head
	var pairs []byte
	record.Attrs(func(attr slog.Attr) bool {
		pairs = appendAttr(pairs, &head, h.group, attr)
		return true
	})

	ts := record.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	buf := make([]byte, 0, 96+len(record.Message)+len(h.preset)+len(pairs))
	buf = ts.UTC().AppendFormat(buf, time.RFC3339)
	buf = append(buf, ' ')
	buf = append(buf, levelLabel(record.Level)...)
	buf = append(buf, ' ')
	buf = head.appendTo(buf)
	if msg := strings.TrimSpace(record.Message); msg != "" {
		buf = append(buf, msg...)
	} else {
		buf = append(buf, "(no message)"...)
	}
	if h.addSource {
		if src := record.Source(); src != nil {
			buf = fmt.Appendf(buf, " [%s:%d]", filepath.Base(src.File), src.Line)
		}
	}
	buf = append(buf, h.preset...)
	buf = append(buf, pairs...)
	buf = append(buf, '\n')
	return h.out.write(buf)
}

func (h *consoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	clone := *h
	clone.preset = slices.Clip(h.preset)
	for _, attr := range attrs {
		clone.preset = appendAttr(clone.preset, &clone.head, h.group, attr)
	}
	return &clone
}

func (h *consoleHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.group = joinKey(h.group, name)
	return &clone
}

// lineHead holds the fields promoted into the line prefix. The first value
// seen for each wins.
type lineHead struct {
	component string
	jobID     string
	stage     string
}

func (h *lineHead) take(key string, value slog.Value) bool {
	var slot *string
	switch key {
	case FieldComponent:
		slot = &h.component
	case FieldJobID:
		slot = &h.jobID
	case FieldStage:
		slot = &h.stage
	default:
		return false
	}
	if *slot == "" {
		*slot = plainString(value)
	}
	return true
}

func (h lineHead) appendTo(buf []byte) []byte {
	if h.component == "" && h.jobID == "" {
		return buf
	}
	buf = append(buf, h.component...)
	if h.jobID != "" {
		if h.component != "" {
			buf = append(buf, ' ')
		}
		buf = append(buf, '[')
		buf = append(buf, shortJobID(h.jobID)...)
		if h.stage != "" {
			buf = append(buf, '/')
			buf = append(buf, h.stage...)
		}
		buf = append(buf, ']')
	}
	return append(buf, ": "...)
}

func appendAttr(buf []byte, head *lineHead, group string, attr slog.Attr) []byte {
	attr.Value = attr.Value.Resolve()
	if attr.Equal(slog.Attr{}) {
		return buf
	}
	if attr.Value.Kind() == slog.KindGroup {
		inner := joinKey(group, attr.Key)
		for _, member := range attr.Value.Group() {
			buf = appendAttr(buf, head, inner, member)
		}
		return buf
	}
	if group == "" && head.take(attr.Key, attr.Value) {
		return buf
	}
	key := joinKey(group, attr.Key)
	if key == "" {
		return buf
	}
	buf = append(buf, ' ')
	buf = append(buf, key...)
	buf = append(buf, '=')
	return append(buf, formatValue(attr.Value)...)
}

func joinKey(prefix, key string) string {
	switch {
	case prefix == "":
		return key
	case key == "":
		return prefix
	}
	return prefix + "." + key
}

func plainString(v slog.Value) string {
	if v.Kind() == slog.KindAny {
		return fmt.Sprint(v.Any())
	}
	return v.String()
}

func formatValue(v slog.Value) string {
	var s string
	switch v.Kind() {
	case slog.KindTime:
		s = v.Time().UTC().Format(time.RFC3339)
	case slog.KindAny:
		s = fmt.Sprint(v.Any())
	default:
		s = v.String()
	}
	if s == "" || strings.ContainsFunc(s, func(r rune) bool { return r <= ' ' || r == '=' || r == '"' }) {
		return strconv.Quote(s)
	}
	return s
}

func levelLabel(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "ERROR"
	case level >= slog.LevelWarn:
		return "WARN"
	case level >= slog.LevelInfo:
		return "INFO"
	}
	return "DEBUG"
}

// shortJobID keeps console lines readable; JSON output retains the full id.
func shortJobID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
