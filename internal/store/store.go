package store

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors returned by store implementations. The chat layer maps
// these to its not-found taxonomy so callers can tell "it's gone" from
// "you can't".
var (
	ErrRoomNotFound    = errors.New("room not found")
	ErrMessageNotFound = errors.New("message not found")
	ErrMemberNotFound  = errors.New("member not found")
)

// RoomKind distinguishes direct (1:1) rooms from named groups.
type RoomKind string

const (
	RoomKindDirect RoomKind = "direct"
	RoomKindGroup  RoomKind = "group"
)

// Room is a persisted conversation context. Direct rooms carry a canonical
// id derived from the participant pair; group rooms carry a generated id,
// a name and an immutable creator.
type Room struct {
	ID              string
	Kind            RoomKind
	Name            string // group name; empty for direct rooms
	Image           string // group image URL; empty for direct rooms
	CreatedBy       string // creator user id; empty for direct rooms
	LastMessage     string
	LastMessageTime time.Time
	CreatedAt       time.Time
}

// Member is a user's membership in a room, with denormalized display fields
// so room listings never join against an external profile store.
type Member struct {
	RoomID      string
	UserID      string
	Name        string
	Photo       string
	UnreadCount int // maintained for group rooms only
	JoinedAt    time.Time
}

// Message is a persisted chat message. CreatedAt is assigned by the store at
// write time; client-submitted timestamps are never used for ordering.
type Message struct {
	ID         string
	RoomID     string
	SenderID   string
	SenderName string
	Type       string
	Payload    string
	CreatedAt  time.Time
	IsRead     bool
}

// RoomStore handles room and membership persistence.
type RoomStore interface {
	// CreateDirectRoomIfAbsent creates a direct room under the given canonical
	// id, adding both participants as members. It is idempotent: concurrent
	// calls for the same pair converge on a single row, and the existing room
	// is returned when one is already present.
	CreateDirectRoomIfAbsent(ctx context.Context, roomID string, a, b Member) (*Room, error)

	// CreateGroupRoom creates a group room with its initial member set.
	// Duplicate user ids in members are collapsed to one membership.
	CreateGroupRoom(ctx context.Context, room *Room, members []Member) (*Room, error)

	// GetRoom retrieves a room by id. Returns ErrRoomNotFound when absent.
	GetRoom(ctx context.Context, id string) (*Room, error)

	// ListRoomsForUser lists all rooms (direct and group) the user belongs to.
	ListRoomsForUser(ctx context.Context, userID string) ([]*Room, error)

	// AddMember adds a user to a room. Re-adding a current member is a no-op;
	// a user re-added after leaving gets a fresh membership with a zero
	// unread counter.
	AddMember(ctx context.Context, m Member) error

	// RemoveMember removes a user from a room. Returns ErrMemberNotFound when
	// the user is not a member.
	RemoveMember(ctx context.Context, roomID, userID string) error

	// GetMember retrieves a single membership. Returns ErrMemberNotFound.
	GetMember(ctx context.Context, roomID, userID string) (*Member, error)

	// ListMembers lists a room's members ordered by join time.
	ListMembers(ctx context.Context, roomID string) ([]*Member, error)
}

// MessageStore handles the per-room append log.
type MessageStore interface {
	// AppendMessage writes a message, updates the room's denormalized
	// last-message fields and bumps unread counters of other group members,
	// all in one transaction. The store assigns msg.CreatedAt.
	AppendMessage(ctx context.Context, msg *Message) error

	// ListMessages enumerates a room's messages in (created_at, id) order,
	// oldest first. A zero before time means no upper bound; limit <= 0 means
	// no limit.
	ListMessages(ctx context.Context, roomID string, limit int, before time.Time) ([]*Message, error)

	// GetMessage retrieves one message. Returns ErrMessageNotFound.
	GetMessage(ctx context.Context, roomID, messageID string) (*Message, error)

	// MarkRead flags all messages in the room not sent by readerID as read and
	// resets the reader's unread counter. Idempotent. Returns the number of
	// messages newly marked.
	MarkRead(ctx context.Context, roomID, readerID string) (int64, error)

	// DeleteMessage removes a message from the log. The gap is permanent;
	// ids are never renumbered. Returns ErrMessageNotFound.
	DeleteMessage(ctx context.Context, roomID, messageID string) error
}

// Store aggregates all storage interfaces.
type Store interface {
	RoomStore
	MessageStore

	// Close closes the underlying database connection.
	Close() error
}
