package notifications_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"stemforge/internal/notifications"
	"stemforge/internal/testsupport"
)

func TestNewServiceWithoutSinksIsQuiet(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	svc := notifications.NewService(cfg, nil, nil)
	if svc.Len() != 0 {
		t.Fatalf("expected no sinks, got %d", svc.Len())
	}
	if err := svc.Publish(context.Background(), notifications.Event{Type: notifications.EventJobCompleted}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
}

func TestNtfyFormatsMilestones(t *testing.T) {
	type request struct {
		title, tags, priority, body string
	}
	var got []request
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		got = append(got, request{r.Header.Get("Title"), r.Header.Get("Tags"), r.Header.Get("Priority"), string(body)})
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cfg := testsupport.NewConfig(t)
	cfg.Notifications.NtfyTopic = server.URL
	svc := notifications.NewService(cfg, nil, nil)

	ctx := context.Background()
	events := []notifications.Event{
		{Type: notifications.EventJobQueued, Query: "Song X"},
		{Type: notifications.EventJobProgress, Query: "Song X", Progress: 50},
		{Type: notifications.EventJobCompleted, Title: "Song X", ArchivePath: "/out/Song_X.zip"},
		{Type: notifications.EventJobFailed, Query: "Song Y", Error: "separation failed: no stems"},
	}
	for _, evt := range events {
		if err := svc.Publish(ctx, evt); err != nil {
			t.Fatalf("Publish(%s): %v", evt.Type, err)
		}
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 ntfy requests, got %d", len(got))
	}
	if got[0].title != "stemforge - Complete" || got[0].priority != "high" || !strings.Contains(got[0].body, "/out/Song_X.zip") {
		t.Fatalf("unexpected completion request %+v", got[0])
	}
	if got[1].tags != "stemforge,error,alert" || !strings.Contains(got[1].body, "no stems") {
		t.Fatalf("unexpected failure request %+v", got[1])
	}
}

func TestNtfyReportsHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "topic blocked", http.StatusForbidden)
	}))
	defer server.Close()

	cfg := testsupport.NewConfig(t)
	cfg.Notifications.NtfyTopic = server.URL
	err := notifications.NewService(cfg, nil, nil).Publish(context.Background(), notifications.Event{Type: notifications.EventTest})
	if err == nil || !strings.Contains(err.Error(), "403") {
		t.Fatalf("expected 403 error, got %v", err)
	}
}

type failingSink struct{ calls int }

func (f *failingSink) Publish(context.Context, notifications.Event) error {
	f.calls++
	return errors.New("sink down")
}

func TestMultiContinuesAfterFailure(t *testing.T) {
	first, second := &failingSink{}, &failingSink{}
	multi := notifications.NewMulti(nil, first, second)
	err := multi.Publish(context.Background(), notifications.Event{Type: notifications.EventJobStarted})
	if err == nil || first.calls != 1 || second.calls != 1 {
		t.Fatalf("expected both sinks called and error, got %v", err)
	}
}

func TestEventJSONShape(t *testing.T) {
	body, err := json.Marshal(notifications.Event{Type: notifications.EventJobProgress, JobID: "abc", Progress: 30})
	if err != nil {
		t.Fatal(err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(body, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded["type"] != "job_progress" || decoded["jobId"] != "abc" {
		t.Fatalf("unexpected json %s", body)
	}
}
