package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// Pinger is anything the health check can probe: the database, the cache.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler reports whether the server and its backing stores respond.
//
// HTTP: GET /healthz
//
//	200 {"status":"ok","checks":{"database":"ok","cache":"ok"}}
//	503 {"status":"degraded","checks":{"database":"ok","cache":"dial tcp ...: connection refused"}}
type HealthHandler struct {
	checks map[string]Pinger
	logger *slog.Logger
}

// NewHealthHandler creates a HealthHandler. Nil pingers are skipped so
// optional backends can be passed unconditionally.
func NewHealthHandler(checks map[string]Pinger, logger *slog.Logger) *HealthHandler {
	live := make(map[string]Pinger, len(checks))
	for name, p := range checks {
		if p != nil {
			live[name] = p
		}
	}
	return &HealthHandler{checks: live, logger: logger}
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// ServeHTTP pings every dependency under one 2-second deadline.
//
//	all ok        → 200 {"status":"ok","checks":{"database":"ok"}}
//	any failure   → 503 {"status":"degraded","checks":{"cache":"<error>",...}}
//
// Failures are also logged at warn.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := healthResponse{Status: "ok", Checks: make(map[string]string, len(h.checks))}
	status := http.StatusOK

	for name, p := range h.checks {
		if err := p.Ping(ctx); err != nil {
			h.logger.Warn("health check failed", slog.String("check", name), slog.String("error", err.Error()))
			resp.Checks[name] = err.Error()
			resp.Status = "degraded"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[name] = "ok"
	}

	writeJSON(w, status, resp)
}
