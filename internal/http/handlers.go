package http

import (
	"context"
	"net/http"
	"strconv"
	"time"
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	OK(w, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// handleReady performs readiness check with dependency verification
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	code := http.StatusOK
	checks := map[string]string{}

	if s.deps.Pinger == nil {
		checks["store"] = "not_configured"
	} else if err := s.deps.Pinger.Ping(ctx); err != nil {
		checks["store"] = "failed: " + err.Error()
		status = "not_ready"
		code = http.StatusServiceUnavailable
	} else {
		checks["store"] = "ok"
	}

	if s.deps.Sheets != nil {
		checks["sheets"] = "configured"
	}
	if s.deps.Federated != nil {
		checks["google_oauth"] = "configured"
	}
	checks["rate_limit_clients"] = strconv.Itoa(s.limiter.ActiveClients())

	NewJSONResponse().Status(code).JSON(map[string]any{
		"status": status,
		"checks": checks,
	}).Write(w)
}
