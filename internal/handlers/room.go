package handlers

import (
	"errors"
	"net/http"

	"github.com/clinicops/trainingdesk/internal/chat"
	"github.com/clinicops/trainingdesk/internal/models"
	"github.com/clinicops/trainingdesk/internal/stream"
)

// RoomResponse represents the room resolution response.
type RoomResponse struct {
	RoomID      models.RoomID `json:"room_id"`
	Stream      stream.State  `json:"stream"`
	StreamError string        `json:"stream_error,omitempty"`
}

// StateResponse is a snapshot of the coordination layer.
type StateResponse struct {
	RoomID      models.RoomID      `json:"room_id,omitempty"`
	RoomError   string             `json:"room_error,omitempty"`
	Stream      stream.State       `json:"stream"`
	StreamError string             `json:"stream_error,omitempty"`
	Typing      models.TypingState `json:"typing"`
	Uploads     int                `json:"uploads"`
	CanSubmit   bool               `json:"can_submit"`
}

// MessagesResponse represents the transcript response.
type MessagesResponse struct {
	RoomID   models.RoomID        `json:"room_id,omitempty"`
	Messages []models.ChatMessage `json:"messages"`
	Typing   models.TypingState   `json:"typing"`
}

// SendMessageRequest represents the chat message request.
type SendMessageRequest struct {
	Prompt string `json:"prompt"`
}

// SendMessageResponse represents the chat message response.
type SendMessageResponse struct {
	Typing models.TypingState `json:"typing"`
}

// ResolveRoom resolves the training room and binds the stream to it. A stream
// failure is reported but does not fail the request.
func (h *Handler) ResolveRoom(w http.ResponseWriter, r *http.Request) {
	roomID, err := h.Rooms.Resolve(r.Context())
	if err != nil {
		h.Error(w, http.StatusBadGateway, err.Error())
		return
	}

	resp := RoomResponse{RoomID: roomID}
	if err := h.Stream.Bind(r.Context(), roomID); err != nil {
		resp.StreamError = err.Error()
	}
	resp.Stream = h.Stream.State()

	h.JSON(w, http.StatusOK, resp)
}

// State handles the state snapshot endpoint.
func (h *Handler) State(w http.ResponseWriter, r *http.Request) {
	roomID, _ := h.Rooms.Room()
	h.JSON(w, http.StatusOK, StateResponse{
		RoomID:      roomID,
		RoomError:   errString(h.Rooms.Err()),
		Stream:      h.Stream.State(),
		StreamError: errString(h.Stream.LastError()),
		Typing:      h.Chat.Typing(),
		Uploads:     len(h.Uploads.Items()),
		CanSubmit:   h.Uploads.CanSubmit(),
	})
}

// ListMessages handles fetching the transcript.
func (h *Handler) ListMessages(w http.ResponseWriter, r *http.Request) {
	roomID, _ := h.Rooms.Room()
	h.JSON(w, http.StatusOK, MessagesResponse{
		RoomID:   roomID,
		Messages: h.Chat.Messages(),
		Typing:   h.Chat.Typing(),
	})
}

// SendMessage handles submitting a chat prompt. The reply arrives on the stream.
func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	var req SendMessageRequest
	if err := decode(r, &req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	err := h.Chat.Send(r.Context(), req.Prompt)
	switch {
	case errors.Is(err, chat.ErrEmptyPrompt):
		h.Error(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, chat.ErrNoRoom):
		h.Error(w, http.StatusConflict, err.Error())
	case err != nil:
		h.Error(w, http.StatusBadGateway, err.Error())
	default:
		h.JSON(w, http.StatusAccepted, SendMessageResponse{Typing: h.Chat.Typing()})
	}
}
