package handlers

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/clinicops/trainingdesk/internal/stream"
)

const version = "0.3.0"

// Check represents the status of a health check.
type Check struct {
	Status  string `json:"status"`            // "pass" or "fail"
	Latency string `json:"latency,omitempty"` // e.g., "2ms"
	Message string `json:"message,omitempty"`
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status    string           `json:"status"` // "healthy" or "degraded"
	Version   string           `json:"version"`
	Instance  string           `json:"instance,omitempty"`
	Checks    map[string]Check `json:"checks"`
	Timestamp string           `json:"timestamp"`
}

// Health handles the health check endpoint. A missing room or a dropped
// stream degrades the console but does not fail the check.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	checks := make(map[string]Check)
	allHealthy := true

	if h.GuardStore != nil {
		start := time.Now()
		if err := h.GuardStore.Ping(ctx); err != nil {
			checks["guard_store"] = Check{Status: "fail", Message: "connection failed"}
			allHealthy = false
		} else {
			checks["guard_store"] = Check{Status: "pass", Latency: time.Since(start).String()}
		}
	}

	if _, ok := h.Rooms.Room(); ok {
		checks["room"] = Check{Status: "pass"}
	} else {
		checks["room"] = Check{Status: "fail", Message: "not resolved"}
	}

	state := h.Stream.State()
	if state == stream.StateDisconnected {
		checks["stream"] = Check{Status: "fail", Message: state.String()}
	} else {
		checks["stream"] = Check{Status: "pass", Message: state.String()}
	}

	status := "healthy"
	statusCode := http.StatusOK
	if !allHealthy {
		status = "degraded"
		statusCode = http.StatusServiceUnavailable
	}

	h.JSON(w, statusCode, HealthResponse{
		Status:    status,
		Version:   version,
		Instance:  os.Getenv("HOSTNAME"),
		Checks:    checks,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// RootResponse represents the root endpoint response.
type RootResponse struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Root handles the root endpoint.
func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	h.JSON(w, http.StatusOK, RootResponse{
		Name:    "trainingdesk console",
		Version: version,
	})
}
