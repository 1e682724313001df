package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/clinicops/trainingdesk/internal/models"
)

var (
	// ErrNoRoom is returned when no room id has been resolved.
	ErrNoRoom = errors.New("no training room resolved")
	// ErrEmptyPrompt is returned for blank messages.
	ErrEmptyPrompt = errors.New("prompt is empty")
)

// Asker submits user prompts to the remote assistant.
type Asker interface {
	Ask(ctx context.Context, roomID models.RoomID, prompt string) error
}

// RoomSource reports the resolved room.
type RoomSource interface {
	Room() (models.RoomID, bool)
}

// Session ties outbound sends and inbound frames to one transcript and typing state.
type Session struct {
	rooms      RoomSource
	api        Asker
	reconciler *Reconciler
	typing     *Typing
	logger     zerolog.Logger
}

// NewSession creates a chat session.
func NewSession(rooms RoomSource, api Asker, reconciler *Reconciler, typing *Typing, logger zerolog.Logger) *Session {
	return &Session{
		rooms:      rooms,
		api:        api,
		reconciler: reconciler,
		typing:     typing,
		logger:     logger.With().Str("component", "chat").Logger(),
	}
}

// Send submits prompt. The typing indicator awaits a reply while the
// submission is in flight and returns to idle if it fails.
func (s *Session) Send(ctx context.Context, prompt string) error {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return ErrEmptyPrompt
	}
	roomID, ok := s.rooms.Room()
	if !ok {
		return ErrNoRoom
	}

	s.typing.OnSubmit()
	if err := s.api.Ask(ctx, roomID, prompt); err != nil {
		s.typing.OnSubmitFailed()
		s.logger.Error().Err(err).Str("room_id", string(roomID)).Msg("send message failed")
		return fmt.Errorf("send message: %w", err)
	}

	s.logger.Debug().Str("room_id", string(roomID)).Int("length", len(prompt)).Msg("message submitted")
	return nil
}

// HandleFrame reconciles one inbound frame. It has the stream.Handler signature.
func (s *Session) HandleFrame(roomID models.RoomID, raw []byte) {
	msg := s.reconciler.Accept(roomID, raw)
	if msg == nil {
		return
	}
	s.typing.OnInbound(msg.Sender)
}

// Messages returns the transcript of the resolved room.
func (s *Session) Messages() []models.ChatMessage {
	roomID, ok := s.rooms.Room()
	if !ok {
		return []models.ChatMessage{}
	}
	return s.reconciler.Transcript(roomID).Snapshot()
}

// Typing returns the current typing state.
func (s *Session) Typing() models.TypingState {
	return s.typing.State()
}
