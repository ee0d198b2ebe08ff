package handlers

import (
	"context"
	"net/http"
	"os"
	"time"
)

// Version is reported by /health and /api.
const Version = "0.1.0"

// Check represents the status of a health check.
type Check struct {
	Status  string `json:"status"`            // "pass", "fail" or "skip"
	Latency string `json:"latency,omitempty"` // e.g., "2ms"
	Message string `json:"message,omitempty"`
}

// RelayStatus summarizes in-memory room state.
type RelayStatus struct {
	Rooms    int `json:"rooms"`
	Segments int `json:"segments"`
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status    string           `json:"status"` // "healthy" or "degraded"
	Version   string           `json:"version"`
	Instance  string           `json:"instance,omitempty"`
	Checks    map[string]Check `json:"checks"`
	Relay     RelayStatus      `json:"relay"`
	Timestamp string           `json:"timestamp"`
}

// Health handles the health check endpoint.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	checks := make(map[string]Check)
	allHealthy := true

	if h.db != nil {
		start := time.Now()
		if err := h.db.Ping(ctx); err != nil {
			checks["database"] = Check{Status: "fail", Message: "connection failed"}
			allHealthy = false
		} else {
			checks["database"] = Check{Status: "pass", Latency: time.Since(start).String()}
		}
	} else {
		checks["database"] = Check{Status: "fail", Message: "not configured"}
		allHealthy = false
	}

	// Redis is optional; without it only caching and rate limiting are off.
	if h.redis != nil {
		start := time.Now()
		if err := h.redis.Ping(ctx); err != nil {
			checks["redis"] = Check{Status: "fail", Message: "connection failed"}
			allHealthy = false
		} else {
			checks["redis"] = Check{Status: "pass", Latency: time.Since(start).String()}
		}
	} else {
		checks["redis"] = Check{Status: "skip", Message: "not configured"}
	}

	status := "healthy"
	statusCode := http.StatusOK
	if !allHealthy {
		status = "degraded"
		statusCode = http.StatusServiceUnavailable
	}

	var relay RelayStatus
	if h.rooms != nil {
		st := h.rooms.Stats()
		relay = RelayStatus{Rooms: st.Rooms, Segments: st.Segments}
	}

	host, _ := os.Hostname()
	h.JSON(w, statusCode, HealthResponse{
		Status:    status,
		Version:   Version,
		Instance:  host,
		Checks:    checks,
		Relay:     relay,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// RootResponse represents the root endpoint response.
type RootResponse struct {
	Name      string `json:"name"`
	Version   string `json:"version"`
	WebSocket string `json:"websocket"`
}

// Root handles the API info endpoint.
func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	h.JSON(w, http.StatusOK, RootResponse{
		Name:      "Whiteboard",
		Version:   Version,
		WebSocket: "/ws",
	})
}
