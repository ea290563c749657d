package daemon

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"stemforge/internal/api"
	"stemforge/internal/notifications"
	"stemforge/internal/testsupport"
)

func serveAPI(t *testing.T, d *Daemon, token string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(d.api.routes(token))
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url, token string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, dst any) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestAPISubmitAndFetch(t *testing.T) {
	d, _ := newTestDaemon(t, &gatedRunner{})
	srv := serveAPI(t, d, "")

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/jobs", "", api.SubmitRequest{Query: "artist - title", OutputDirectory: "/srv/stems"})
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.StatusCode)
	}
	var submitted api.SubmitResponse
	decodeBody(t, resp, &submitted)
	if submitted.JobID == "" || submitted.QueuePosition != 0 || submitted.Status != "pending" {
		t.Fatalf("unexpected submit response %+v", submitted)
	}

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/jobs/"+submitted.JobID, "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var job api.JobResponse
	decodeBody(t, resp, &job)
	if job.Job.Query != "artist - title" || job.Job.OutputDirectory != "/srv/stems" {
		t.Fatalf("unexpected job %+v", job.Job)
	}
	if job.Job.QueuePosition == nil || *job.Job.QueuePosition != 0 {
		t.Fatalf("expected queue position 0, got %v", job.Job.QueuePosition)
	}

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/jobs", "", nil)
	var list api.JobListResponse
	decodeBody(t, resp, &list)
	if len(list.Jobs) != 1 || list.Jobs[0].ID != submitted.JobID {
		t.Fatalf("unexpected job list %+v", list.Jobs)
	}

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/queue", "", nil)
	var summary api.QueueSummary
	decodeBody(t, resp, &summary)
	if summary.QueueLength != 1 || summary.Counts["pending"] != 1 {
		t.Fatalf("unexpected queue summary %+v", summary)
	}
}

func TestAPIRejectsInvalidSubmissions(t *testing.T) {
	d, _ := newTestDaemon(t, &gatedRunner{})
	srv := serveAPI(t, d, "")

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/jobs", "", api.SubmitRequest{Query: "q", OutputDirectory: "relative"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	var errResp api.ErrorResponse
	decodeBody(t, resp, &errResp)
	if errResp.Fields["outputDirectory"] != "abspath" {
		t.Fatalf("expected outputDirectory field error, got %+v", errResp)
	}

	resp = doJSON(t, http.MethodPost, srv.URL+"/api/jobs", "", map[string]any{"query": "q", "priority": 5})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown field, got %d", resp.StatusCode)
	}

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/jobs/unknown", "", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestAPIUpdateMetadata(t *testing.T) {
	d, _ := newTestDaemon(t, &gatedRunner{})
	srv := serveAPI(t, d, "")
	submitted, err := d.Submit(context.Background(), api.SubmitRequest{Query: "song"})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	body := api.MetadataRequest{Metadata: map[string]string{"title": "Song Title", "stem.guitar": "/srv/guitar.wav"}}
	resp := doJSON(t, http.MethodPatch, srv.URL+"/api/jobs/"+submitted.JobID+"/metadata", "", body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var job api.JobResponse
	decodeBody(t, resp, &job)
	if job.Job.Metadata["title"] != "Song Title" || job.Job.Metadata["stem.guitar"] != "/srv/guitar.wav" {
		t.Fatalf("metadata not merged: %+v", job.Job.Metadata)
	}

	resp = doJSON(t, http.MethodPatch, srv.URL+"/api/jobs/missing/metadata", "", body)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestAPIBearerToken(t *testing.T) {
	d, _ := newTestDaemon(t, &gatedRunner{}, testsupport.WithAPIToken("s3cret"))
	srv := serveAPI(t, d, "s3cret")

	if resp := doJSON(t, http.MethodGet, srv.URL+"/api/queue", "", nil); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", resp.StatusCode)
	}
	if resp := doJSON(t, http.MethodGet, srv.URL+"/api/queue", "wrong", nil); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 with wrong token, got %d", resp.StatusCode)
	}
	if resp := doJSON(t, http.MethodGet, srv.URL+"/api/queue", "s3cret", nil); resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d", resp.StatusCode)
	}
	if resp := doJSON(t, http.MethodGet, srv.URL+"/api/health", "", nil); resp.StatusCode != http.StatusOK {
		t.Fatalf("expected health to skip auth, got %d", resp.StatusCode)
	}
}

func TestAPIStatus(t *testing.T) {
	d, _ := newTestDaemon(t, &gatedRunner{})
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	srv := serveAPI(t, d, "")

	resp := doJSON(t, http.MethodGet, srv.URL+"/api/status", "", nil)
	var status api.DaemonStatus
	decodeBody(t, resp, &status)
	if !status.Running || !status.Workflow.Running {
		t.Fatalf("expected running daemon and workflow, got %+v", status)
	}
	if len(status.Workflow.StageHealth) != 1 || len(status.Dependencies) != 1 {
		t.Fatalf("unexpected status payload %+v", status)
	}
}

func TestAPIEventStream(t *testing.T) {
	runner := &gatedRunner{release: make(chan struct{})}
	d, _ := newTestDaemon(t, runner)
	srv := serveAPI(t, d, "")

	submitted, err := d.Submit(context.Background(), api.SubmitRequest{Query: "song"})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/jobs/" + submitted.JobID + "/events"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial event stream: %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var first notifications.Event
	if err := conn.ReadJSON(&first); err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	if first.Type != notifications.EventJobSnapshot || first.Status != "pending" {
		t.Fatalf("unexpected first frame %+v", first)
	}

	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	close(runner.release)

	var seen []notifications.EventType
	for {
		var evt notifications.Event
		if err := conn.ReadJSON(&evt); err != nil {
			break
		}
		seen = append(seen, evt.Type)
		if evt.Terminal() {
			if evt.ArchivePath == "" {
				t.Fatalf("expected archive path on completion, got %+v", evt)
			}
			break
		}
	}
	if len(seen) == 0 || seen[len(seen)-1] != notifications.EventJobCompleted {
		t.Fatalf("expected stream to end with job_completed, got %v", seen)
	}
	if seen[0] != notifications.EventJobStarted {
		t.Fatalf("expected job_started first, got %v", seen)
	}
}

func TestAPIEventStreamUnknownJob(t *testing.T) {
	d, _ := newTestDaemon(t, &gatedRunner{})
	srv := serveAPI(t, d, "")

	resp := doJSON(t, http.MethodGet, srv.URL+"/api/jobs/missing/events", "", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}
