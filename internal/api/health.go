package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// healthPingTimeout bounds the store ping made by /healthz.
const healthPingTimeout = 2 * time.Second

// handleRoot is the plain-text liveness check.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeText(w, "remotecc is running")
}

type healthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
}

// handleHealthz reports process and store health. It always answers 200 so
// a slow database does not take the routing webhook out of a load balancer.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok", Database: "ok"}
	if s.pinger != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthPingTimeout)
		defer cancel()
		if err := s.pinger.PingContext(ctx); err != nil {
			slog.Warn("healthz: database ping failed", "error", err)
			resp.Database = "error"
		}
	}
	writeJSON(w, http.StatusOK, resp)
}
