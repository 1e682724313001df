package models

// RoomID identifies a training room. Opaque and stable for the session.
type RoomID string

// Room represents the caller's training conversation scope.
type Room struct {
	ID RoomID `json:"room_id"`
}
