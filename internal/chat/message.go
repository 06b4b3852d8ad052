package chat

import (
	"time"

	"github.com/tripline/chat-server/internal/store"
)

// MessageType tells clients how to render the payload.
type MessageType string

const (
	TypeText     MessageType = "text"
	TypeImage    MessageType = "image"
	TypeDocument MessageType = "document"
	TypeVoice    MessageType = "voice"
)

// ValidMessageType reports whether t is one of the known types.
func ValidMessageType(t MessageType) bool {
	switch t {
	case TypeText, TypeImage, TypeDocument, TypeVoice:
		return true
	}
	return false
}

// Message is the domain model for a chat message. Timestamp is assigned by
// the store at write time; immutable after send except for IsRead and
// deletion.
type Message struct {
	ID         string      `json:"id"`
	RoomID     string      `json:"room_id"`
	SenderID   string      `json:"sender_id"`
	SenderName string      `json:"sender_name"`
	Type       MessageType `json:"type"`
	Payload    string      `json:"payload"`
	Timestamp  time.Time   `json:"timestamp"`
	IsRead     bool        `json:"is_read"`
}

func messageFromStore(m *store.Message) *Message {
	return &Message{
		ID:         m.ID,
		RoomID:     m.RoomID,
		SenderID:   m.SenderID,
		SenderName: m.SenderName,
		Type:       MessageType(m.Type),
		Payload:    m.Payload,
		Timestamp:  m.CreatedAt,
		IsRead:     m.IsRead,
	}
}
