// Package cmdexec runs external tools line by line for the service clients.
package cmdexec

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
)

// Executor abstracts command execution for testability. onLine receives
// stdout and stderr lines as they are produced.
type Executor interface {
	Run(ctx context.Context, binary string, args []string, onLine func(string)) error
}

// Command executes real processes.
type Command struct{}

// Run starts binary and forwards its output until it exits.
func (Command) Run(ctx context.Context, binary string, args []string, onLine func(string)) error {
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start command: %w", err)
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		scanErr error
		once    sync.Once
	)
	scan := func(r io.Reader) {
		defer wg.Done()
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)
		scanner.Split(scanLinesOrReturns)
		for scanner.Scan() {
			if onLine == nil {
				continue
			}
			mu.Lock()
			onLine(scanner.Text())
			mu.Unlock()
		}
		if err := scanner.Err(); err != nil {
			once.Do(func() { scanErr = err })
		}
	}

	wg.Add(2)
	go scan(stdout)
	go scan(stderr)
	wg.Wait()
	if scanErr != nil {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		return fmt.Errorf("scan output: %w", scanErr)
	}
	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("wait command: %w", err)
	}
	return nil
}

// scanLinesOrReturns is a bufio.SplitFunc that ends a line at '\n', '\r' or
// "\r\n". Progress bars redraw with bare carriage returns, so each redraw
// becomes its own line.
func scanLinesOrReturns(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		if data[i] == '\n' {
			return i + 1, data[:i], nil
		}
		if i+1 < len(data) {
			if data[i+1] == '\n' {
				return i + 2, data[:i], nil
			}
			return i + 1, data[:i], nil
		}
		if atEOF {
			return i + 1, data[:i], nil
		}
		// Need one more byte to tell "\r" from "\r\n".
		return 0, nil, nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

// Tail keeps the last n lines of tool output for error reporting.
type Tail struct {
	max   int
	lines []string
}

// NewTail builds a Tail holding at most n lines.
func NewTail(n int) *Tail {
	if n <= 0 {
		n = 20
	}
	return &Tail{max: n}
}

// Add records a line.
func (t *Tail) Add(line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}
	t.lines = append(t.lines, line)
	if len(t.lines) > t.max {
		t.lines = t.lines[len(t.lines)-t.max:]
	}
}

// Lines returns the retained lines.
func (t *Tail) Lines() []string {
	return append([]string(nil), t.lines...)
}

// String joins the retained lines.
func (t *Tail) String() string {
	return strings.Join(t.lines, "\n")
}

// LastMatching returns the last retained line containing substr.
func (t *Tail) LastMatching(substr string) string {
	for i := len(t.lines) - 1; i >= 0; i-- {
		if strings.Contains(t.lines[i], substr) {
			return t.lines[i]
		}
	}
	return ""
}
