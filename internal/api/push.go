package api

import (
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/flowpbx/remotecc/internal/events"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
)

const (
	pushPingInterval = 30 * time.Second
	pushWriteTimeout = 10 * time.Second
)

// pushConn serializes frame writes; pushes and control replies come from
// different goroutines.
type pushConn struct {
	mu   sync.Mutex
	conn net.Conn
}

func (c *pushConn) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(pushWriteTimeout)) //nolint:errcheck
	return c.conn.Write(p)
}

// handlePush upgrades to a WebSocket and streams every published call event
// as a {"event": ..., "data": ...} text frame until either side goes away.
func (s *Server) handlePush(w http.ResponseWriter, r *http.Request) {
	reqID := chimw.GetReqID(r.Context())

	conn, _, _, err := ws.UpgradeHTTP(r, w)
	if err != nil {
		slog.Warn("push: websocket upgrade failed", "request_id", reqID, "error", err)
		return
	}
	defer conn.Close()
	// The server's read/write timeouts still apply to a hijacked conn.
	conn.SetDeadline(time.Time{}) //nolint:errcheck

	sub := s.hub.Subscribe()
	defer s.hub.Unsubscribe(sub)

	out := &pushConn{conn: conn}
	slog.Info("push: observer connected", "request_id", reqID, "subscription", sub.ID)

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := drainClientFrames(conn, out); err != nil {
			slog.Debug("push: client read ended", "subscription", sub.ID, "error", err)
		}
	}()

	ticker := time.NewTicker(pushPingInterval)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-sub.C:
			if !ok {
				body := ws.NewCloseFrameBody(ws.StatusGoingAway, "server shutting down")
				wsutil.WriteServerMessage(out, ws.OpClose, body) //nolint:errcheck
				return
			}
			if err := writePushMessage(out, msg); err != nil {
				slog.Debug("push: write failed", "subscription", sub.ID, "error", err)
				return
			}
		case <-ticker.C:
			if err := wsutil.WriteServerMessage(out, ws.OpPing, nil); err != nil {
				return
			}
		case <-done:
			slog.Info("push: observer disconnected", "subscription", sub.ID)
			return
		}
	}
}

func writePushMessage(out *pushConn, msg events.Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return wsutil.WriteServerText(out, payload)
}

// drainClientFrames discards data frames from the observer and answers
// control frames. It returns when the connection closes.
func drainClientFrames(conn net.Conn, out *pushConn) error {
	control := wsutil.ControlFrameHandler(out, ws.StateServerSide)
	rd := &wsutil.Reader{
		Source:         conn,
		State:          ws.StateServerSide,
		CheckUTF8:      true,
		OnIntermediate: control,
	}
	for {
		hdr, err := rd.NextFrame()
		if err != nil {
			return err
		}
		if hdr.OpCode.IsControl() {
			if err := control(hdr, rd); err != nil {
				return err
			}
			continue
		}
		if err := rd.Discard(); err != nil {
			return err
		}
	}
}
