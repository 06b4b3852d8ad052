package chat

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/tripline/chat-server/internal/store"
)

// Directory resolves and lists rooms. Direct-room creation is idempotent:
// the canonical id plus the store's create-if-absent primitive guarantee a
// single room per participant pair even under concurrent resolution.
type Directory struct {
	store store.Store
	log   *zerolog.Logger
}

// NewDirectory creates a room directory backed by the given store.
func NewDirectory(st store.Store, logger *zerolog.Logger) *Directory {
	return &Directory{store: st, log: logger}
}

// ResolveDirectRoom returns the direct room for the pair, creating it with an
// empty last message when absent. Safe to call concurrently from both sides.
func (d *Directory) ResolveDirectRoom(ctx context.Context, userA, userB UserRef) (*Room, error) {
	if err := validateUserRef(userA); err != nil {
		return nil, err
	}
	if err := validateUserRef(userB); err != nil {
		return nil, err
	}
	if userA.ID == userB.ID {
		return nil, validationError(ErrCodeBadUser, "cannot open a direct room with yourself")
	}

	roomID := DirectRoomID(userA.ID, userB.ID)
	room, err := d.store.CreateDirectRoomIfAbsent(ctx, roomID,
		store.Member{RoomID: roomID, UserID: userA.ID, Name: userA.Name, Photo: userA.Photo},
		store.Member{RoomID: roomID, UserID: userB.ID, Name: userB.Name, Photo: userB.Photo},
	)
	if err != nil {
		return nil, transientError(fmt.Sprintf("resolve direct room %s", roomID), err)
	}

	members, err := d.store.ListMembers(ctx, roomID)
	if err != nil {
		return nil, transientError(fmt.Sprintf("list members of %s", roomID), err)
	}

	d.log.Debug().Str("room_id", roomID).Msg("direct room resolved")
	return roomFromStore(room, members), nil
}

// GetRoom loads a room with its members.
func (d *Directory) GetRoom(ctx context.Context, roomID string) (*Room, error) {
	room, err := d.store.GetRoom(ctx, roomID)
	if err != nil {
		if errors.Is(err, store.ErrRoomNotFound) {
			return nil, notFoundError(ErrCodeRoomNotFound, "room not found")
		}
		return nil, transientError(fmt.Sprintf("load room %s", roomID), err)
	}

	members, err := d.store.ListMembers(ctx, roomID)
	if err != nil {
		return nil, transientError(fmt.Sprintf("list members of %s", roomID), err)
	}

	return roomFromStore(room, members), nil
}

// ListRoomsForUser returns all direct and group rooms the user belongs to.
func (d *Directory) ListRoomsForUser(ctx context.Context, userID string) ([]*Room, error) {
	if userID == "" {
		return nil, validationError(ErrCodeBadUser, "user id is required")
	}

	stored, err := d.store.ListRoomsForUser(ctx, userID)
	if err != nil {
		return nil, transientError("list rooms", err)
	}

	rooms := make([]*Room, 0, len(stored))
	for _, r := range stored {
		members, err := d.store.ListMembers(ctx, r.ID)
		if err != nil {
			return nil, transientError(fmt.Sprintf("list members of %s", r.ID), err)
		}
		rooms = append(rooms, roomFromStore(r, members))
	}

	return rooms, nil
}
