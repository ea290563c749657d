package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"stemforge/internal/config"
)

const userAgent = "stemforge/0.1.0"

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfySink struct {
	endpoint string
	client   *http.Client
}

func newNtfy(cfg config.Notifications) *ntfySink {
	topic := strings.TrimSpace(cfg.NtfyTopic)
	if topic == "" {
		return nil
	}
	timeout := time.Duration(cfg.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ntfySink{endpoint: topic, client: &http.Client{Timeout: timeout}}
}

// Publish sends milestone events; progress and queue events are skipped.
func (n *ntfySink) Publish(ctx context.Context, event Event) error {
	data, ok := formatNtfy(event)
	if !ok {
		return nil
	}
	return n.send(ctx, data)
}

func formatNtfy(event Event) (payload, bool) {
	label := strings.TrimSpace(event.Title)
	if label == "" {
		label = strings.TrimSpace(event.Query)
	}
	switch event.Type {
	case EventJobStarted:
		return payload{
			title:   "stemforge - Job Started",
			message: fmt.Sprintf("Processing: %s", label),
			tags:    []string{"stemforge", "job", "started"},
		}, true
	case EventJobCompleted:
		message := fmt.Sprintf("Stems ready: %s", label)
		if event.ArchivePath != "" {
			message = fmt.Sprintf("%s\nArchive: %s", message, event.ArchivePath)
		}
		return payload{
			title:    "stemforge - Complete",
			message:  message,
			tags:     []string{"stemforge", "job", "completed"},
			priority: "high",
		}, true
	case EventJobFailed:
		return payload{
			title:    "stemforge - Failed",
			message:  fmt.Sprintf("Failed: %s\n%s", label, strings.TrimSpace(event.Error)),
			tags:     []string{"stemforge", "error", "alert"},
			priority: "high",
		}, true
	case EventPublishWarning:
		return payload{
			title:   "stemforge - Upload Failed",
			message: fmt.Sprintf("Stems for %s were created but not uploaded: %s", label, strings.TrimSpace(event.Message)),
			tags:    []string{"stemforge", "publish", "warning"},
		}, true
	case EventTest:
		return payload{
			title:    "stemforge - Test",
			message:  "Notification system test",
			tags:     []string{"stemforge", "test"},
			priority: "low",
		}, true
	default:
		return payload{}, false
	}
}

func (n *ntfySink) send(ctx context.Context, data payload) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
