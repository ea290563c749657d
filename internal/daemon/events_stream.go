package daemon

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"stemforge/internal/api"
	"stemforge/internal/logging"
	"stemforge/internal/notifications"
	"stemforge/internal/queue"
)

const (
	streamWriteWait  = 10 * time.Second
	streamPingPeriod = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	HandshakeTimeout: 10 * time.Second,
	ReadBufferSize:   1024,
	WriteBufferSize:  4096,
}

// handleEvents streams a job's lifecycle events over a websocket. The first
// frame is a job_snapshot with the current state; the stream closes after the
// terminal event.
func (s *apiServer) handleEvents(w http.ResponseWriter, r *http.Request) {
	hub := s.daemon.Hub()
	if hub == nil {
		s.writeJSON(w, http.StatusServiceUnavailable, api.ErrorResponse{Error: "event streaming is not enabled"})
		return
	}
	id := r.PathValue("id")
	if _, err := s.daemon.Job(id); err != nil {
		s.writeServiceError(w, err)
		return
	}

	// Subscribe before reading the snapshot so no event falls between them.
	events, unsubscribe := hub.Subscribe(id)
	defer unsubscribe()

	snap, err := s.daemon.Job(id)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("websocket upgrade failed", logging.Error(err))
		return
	}
	defer conn.Close()

	logger := s.logger.With(logging.String(logging.FieldJobID, id))
	if err := writeFrame(conn, snapshotEvent(snap)); err != nil {
		return
	}
	if snap.Status.IsTerminal() {
		closeStream(conn, "job finished")
		return
	}

	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(streamPingPeriod)
	defer ping.Stop()
	for {
		select {
		case <-gone:
			logger.Debug("event stream client disconnected")
			return
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(streamWriteWait)); err != nil {
				return
			}
		case evt, ok := <-events:
			if !ok {
				closeStream(conn, "stream ended")
				return
			}
			if err := writeFrame(conn, evt); err != nil {
				logger.Debug("event stream write failed", logging.Error(err))
				return
			}
			if evt.Terminal() {
				closeStream(conn, "job finished")
				return
			}
		}
	}
}

func snapshotEvent(snap queue.Snapshot) notifications.Event {
	evt := notifications.Event{
		Type:     notifications.EventJobSnapshot,
		JobID:    snap.ID,
		Query:    snap.Query,
		Status:   string(snap.Status),
		Progress: snap.Progress,
		Message:  snap.Message,
		Error:    snap.Error,
		Time:     time.Now().UTC(),
	}
	if snap.Result != nil {
		evt.Title = snap.Result.Title
		evt.ArchivePath = snap.Result.ArchivePath
	}
	return evt
}

func writeFrame(conn *websocket.Conn, evt notifications.Event) error {
	if err := conn.SetWriteDeadline(time.Now().Add(streamWriteWait)); err != nil {
		return err
	}
	return conn.WriteJSON(evt)
}

func closeStream(conn *websocket.Conn, reason string) {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(streamWriteWait))
}
