package httpx

import (
	"context"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/gorilla/websocket"

	"github.com/qlora-pipeline/controlplane/internal/domain/model"
	"github.com/qlora-pipeline/controlplane/internal/service"
)

const (
	wsWriteTimeout        = 10 * time.Second
	defaultWSPollInterval = time.Second
)

// LogStreamHandler tails a job's log buffer over a websocket.
//
// Frames are model.LogFrame values: a LogPage plus the job status. A frame is
// pushed whenever new lines arrive or the status changes. Once the job is
// terminal and a settle round produced no more lines, a frame with done=true
// is sent and the connection is closed.
type LogStreamHandler struct {
	Svc          *service.JobService
	PollInterval time.Duration
	Origins      []string
	Logger       *slog.Logger
}

func (h *LogStreamHandler) upgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || slices.Contains(h.Origins, "*") {
				return true
			}
			return slices.Contains(h.Origins, origin)
		},
	}
}

func (h *LogStreamHandler) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

// ServeHTTP handles GET /api/jobs/{id}/logs/ws?since=N.
func (h *LogStreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	since, err := parseSince(r)
	if err != nil {
		WriteServiceError(w, r, h.Logger, err)
		return
	}
	// Unknown ids get a plain 404 before the upgrade.
	if _, err := h.Svc.Get(r.Context(), id); err != nil {
		WriteServiceError(w, r, h.Logger, err)
		return
	}

	// Subscribe before the first read so no append between read and wait is missed.
	unsubscribe, wake := h.Svc.Watch(id)
	defer unsubscribe()

	up := h.upgrader()
	conn, err := up.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		h.logger().DebugContext(r.Context(), "websocket upgrade failed", "job_id", id, "error", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go drainClient(conn, cancel)

	if err := h.stream(ctx, conn, id, since, wake); err != nil {
		h.logger().DebugContext(ctx, "log stream ended", "job_id", id, "error", err)
	}
}

// drainClient consumes client frames so control messages are processed and a
// client close cancels the stream.
func drainClient(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()
	for {
		if _, _, err := conn.NextReader(); err != nil {
			return
		}
	}
}

func (h *LogStreamHandler) stream(
	ctx context.Context,
	conn *websocket.Conn,
	id string,
	since int,
	wake <-chan struct{},
) error {
	interval := h.PollInterval
	if interval <= 0 {
		interval = defaultWSPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var lastStatus model.JobStatus
	settled := false
	for {
		// Status before logs: lines appended before a terminal transition are
		// then guaranteed to be in this or a later page.
		j, err := h.Svc.Get(ctx, id)
		if err != nil {
			return h.closeWith(conn, websocket.CloseGoingAway, "job no longer available")
		}
		status := j.Status()

		page, err := h.Svc.Logs(ctx, id, since)
		if err != nil {
			return h.closeWith(conn, websocket.CloseGoingAway, "job no longer available")
		}
		since = page.NextOffset

		fresh := len(page.Logs) > 0 || page.Reset
		done := status.Terminal() && !fresh && settled
		if fresh || status != lastStatus || done {
			if err := writeFrame(conn, model.LogFrame{LogPage: page, Status: status, Done: done}); err != nil {
				return err
			}
			lastStatus = status
		}
		if done {
			return h.closeWith(conn, websocket.CloseNormalClosure, "job finished")
		}
		// A terminal job gets one more round to pick up lines written right after the transition.
		settled = status.Terminal() && !fresh

		select {
		case <-ctx.Done():
			return ctx.Err()
		case _, ok := <-wake:
			if !ok {
				// Notifier stopped: the server is shutting down.
				return h.closeWith(conn, websocket.CloseGoingAway, "server shutting down")
			}
		case <-ticker.C:
		}
	}
}

func writeFrame(conn *websocket.Conn, frame model.LogFrame) error {
	if frame.Logs == nil {
		frame.Logs = []string{}
	}
	if err := conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout)); err != nil {
		return err
	}
	return conn.WriteJSON(frame)
}

func (h *LogStreamHandler) closeWith(conn *websocket.Conn, code int, reason string) error {
	msg := websocket.FormatCloseMessage(code, reason)
	return conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(wsWriteTimeout))
}
