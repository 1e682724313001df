package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/clinicops/trainingdesk/internal/chat"
	"github.com/clinicops/trainingdesk/internal/guard"
	"github.com/clinicops/trainingdesk/internal/room"
	"github.com/clinicops/trainingdesk/internal/stream"
	"github.com/clinicops/trainingdesk/internal/upload"
)

// Pinger is a dependency the health check can probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the coordination components behind the console API.
type Deps struct {
	Rooms    *room.Resolver
	Stream   *stream.Manager
	Chat     *chat.Session
	Uploads  *upload.Tracker
	Feedback *guard.FeedbackTrigger

	// GuardStore is probed by /health when it supports Ping.
	GuardStore     Pinger
	MaxUploadBytes int64
	Logger         zerolog.Logger
}

// Handler contains shared dependencies for all HTTP handlers.
type Handler struct {
	Deps
}

// NewHandler creates a new Handler.
func NewHandler(deps Deps) *Handler {
	if deps.MaxUploadBytes <= 0 {
		deps.MaxUploadBytes = 32 << 20
	}
	return &Handler{Deps: deps}
}

// JSON sends a JSON response with the given status code.
func (h *Handler) JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// Error sends a JSON error response with the given status code.
func (h *Handler) Error(w http.ResponseWriter, status int, message string) {
	h.JSON(w, status, map[string]string{"error": message})
}

// decode reads a JSON body. An empty body leaves v untouched.
func decode(r *http.Request, v interface{}) error {
	if r.ContentLength == 0 {
		return nil
	}
	return json.NewDecoder(r.Body).Decode(v)
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
