package chat

import (
	"strings"
	"time"

	"github.com/tripline/chat-server/internal/store"
)

// UserRef identifies a user to the chat core. Profiles live elsewhere; the
// core only denormalizes the display fields it was handed.
type UserRef struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Photo string `json:"photo"`
}

// RoomKind distinguishes direct rooms from groups.
type RoomKind = store.RoomKind

const (
	RoomDirect = store.RoomKindDirect
	RoomGroup  = store.RoomKindGroup
)

// Member is a user's membership in a room.
type Member struct {
	UserID      string    `json:"user_id"`
	Name        string    `json:"name"`
	Photo       string    `json:"photo"`
	UnreadCount int       `json:"unread_count"`
	JoinedAt    time.Time `json:"joined_at"`
}

// Room is a conversation context with its member set attached.
type Room struct {
	ID              string    `json:"id"`
	Kind            RoomKind  `json:"kind"`
	Name            string    `json:"name,omitempty"`
	Image           string    `json:"image,omitempty"`
	CreatedBy       string    `json:"created_by,omitempty"`
	LastMessage     string    `json:"last_message"`
	LastMessageTime time.Time `json:"last_message_time"`
	CreatedAt       time.Time `json:"created_at"`
	Members         []Member  `json:"members"`
}

// DirectRoomID derives the canonical id for a participant pair. It is
// order-independent: both sides of a conversation resolve to the same id, so
// duplicate rooms can never be created for the same pair.
func DirectRoomID(userA, userB string) string {
	a, b := userA, userB
	if a > b {
		a, b = b, a
	}
	return "dm:" + a + ":" + b
}

// groupRoomID prefixes generated group ids so they can never collide with
// the direct-room namespace.
func groupRoomID(id string) string {
	return "grp:" + id
}

func roomFromStore(r *store.Room, members []*store.Member) *Room {
	room := &Room{
		ID:              r.ID,
		Kind:            r.Kind,
		Name:            r.Name,
		Image:           r.Image,
		CreatedBy:       r.CreatedBy,
		LastMessage:     r.LastMessage,
		LastMessageTime: r.LastMessageTime,
		CreatedAt:       r.CreatedAt,
	}
	for _, m := range members {
		room.Members = append(room.Members, Member{
			UserID:      m.UserID,
			Name:        m.Name,
			Photo:       m.Photo,
			UnreadCount: m.UnreadCount,
			JoinedAt:    m.JoinedAt,
		})
	}
	return room
}

// Counterpart returns the member that is not userID, for rendering a direct
// room from one participant's point of view.
func (r *Room) Counterpart(userID string) (Member, bool) {
	for _, m := range r.Members {
		if m.UserID != userID {
			return m, true
		}
	}
	return Member{}, false
}

// HasMember reports whether userID belongs to the room.
func (r *Room) HasMember(userID string) bool {
	for _, m := range r.Members {
		if m.UserID == userID {
			return true
		}
	}
	return false
}

func validateUserRef(u UserRef) error {
	if strings.TrimSpace(u.ID) == "" {
		return validationError(ErrCodeBadUser, "user id is required")
	}
	return nil
}
