package models

import (
	"fmt"
	"time"
)

// Sender identifies who authored a chat message.
type Sender string

const (
	SenderUser      Sender = "user"
	SenderAssistant Sender = "assistant"
)

// ChatMessage is one transcript entry. Immutable once appended.
type ChatMessage struct {
	ID          string    `json:"id"`
	Sender      Sender    `json:"sender"`
	Text        string    `json:"text"` // May contain markup rendered downstream
	Timestamp   time.Time `json:"timestamp"`
	DisplayName string    `json:"display_name"`
	AvatarGlyph string    `json:"avatar_glyph"`
}

// TypingState reflects whether an assistant reply is pending.
type TypingState int

const (
	TypingIdle TypingState = iota
	TypingAwaitingResponse
)

func (s TypingState) String() string {
	switch s {
	case TypingIdle:
		return "idle"
	case TypingAwaitingResponse:
		return "awaiting_response"
	default:
		return "unknown"
	}
}

// MarshalText renders the state name in JSON responses.
func (s TypingState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a state name, so clients can decode API responses.
func (s *TypingState) UnmarshalText(text []byte) error {
	switch string(text) {
	case "idle":
		*s = TypingIdle
	case "awaiting_response":
		*s = TypingAwaitingResponse
	default:
		return fmt.Errorf("unknown typing state %q", text)
	}
	return nil
}
