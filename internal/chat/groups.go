package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/tripline/chat-server/internal/realtime"
	"github.com/tripline/chat-server/internal/store"
)

// Membership event types published on the room topic alongside message events.
const (
	EventMemberAdded   EventType = "member_added"
	EventMemberRemoved EventType = "member_removed"
	EventMemberLeft    EventType = "member_left"
)

// Groups manages group rooms. Moderation (adding and removing members) is
// reserved for the room creator; the creator cannot be removed or leave.
type Groups struct {
	store  store.Store
	broker realtime.Broker
	log    *zerolog.Logger
}

func NewGroups(st store.Store, broker realtime.Broker, logger *zerolog.Logger) *Groups {
	return &Groups{store: st, broker: broker, log: logger}
}

// CreateGroup creates a group room owned by creator. The creator is always a
// member, deduplicated if also present in members.
func (g *Groups) CreateGroup(ctx context.Context, name, image string, creator UserRef, members []UserRef) (*Room, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, validationError(ErrCodeBadUser, "group name is empty")
	}
	if err := validateUserRef(creator); err != nil {
		return nil, err
	}

	roomID := groupRoomID(uuid.NewString())
	roster := []store.Member{{RoomID: roomID, UserID: creator.ID, Name: creator.Name, Photo: creator.Photo}}
	seen := map[string]bool{creator.ID: true}
	for _, m := range members {
		if err := validateUserRef(m); err != nil {
			return nil, err
		}
		if seen[m.ID] {
			continue
		}
		seen[m.ID] = true
		roster = append(roster, store.Member{RoomID: roomID, UserID: m.ID, Name: m.Name, Photo: m.Photo})
	}

	rec, err := g.store.CreateGroupRoom(ctx, &store.Room{
		ID:        roomID,
		Kind:      store.RoomKindGroup,
		Name:      name,
		Image:     image,
		CreatedBy: creator.ID,
	}, roster)
	if err != nil {
		return nil, fmt.Errorf("create group room: %w", err)
	}

	stored, err := g.store.ListMembers(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("list group members: %w", err)
	}
	room := roomFromStore(rec, stored)

	g.log.Info().
		Str("room_id", roomID).
		Str("creator", creator.ID).
		Int("members", len(room.Members)).
		Msg("group created")
	return room, nil
}

// AddMember adds user to the group. Only the creator may add members; adding
// a user who is already a member is a no-op.
func (g *Groups) AddMember(ctx context.Context, roomID string, actorID string, user UserRef) error {
	if err := validateUserRef(user); err != nil {
		return err
	}
	room, err := g.requireGroup(ctx, roomID)
	if err != nil {
		return err
	}
	if room.CreatedBy != actorID {
		return permissionError(ErrCodeCreatorOnly, "only the group creator can add members")
	}
	if _, err := g.store.GetMember(ctx, roomID, user.ID); err == nil {
		return nil
	} else if !errors.Is(err, store.ErrMemberNotFound) {
		return fmt.Errorf("check membership: %w", err)
	}

	if err := g.store.AddMember(ctx, store.Member{
		RoomID: roomID,
		UserID: user.ID,
		Name:   user.Name,
		Photo:  user.Photo,
	}); err != nil {
		return fmt.Errorf("add member: %w", err)
	}
	g.publishMembership(ctx, Event{Type: EventMemberAdded, RoomID: roomID, UserID: user.ID, Actor: actorID})
	return nil
}

// RemoveMember removes userID from the group. Only the creator may remove
// members, and the creator themselves cannot be removed.
func (g *Groups) RemoveMember(ctx context.Context, roomID, actorID, userID string) error {
	room, err := g.requireGroup(ctx, roomID)
	if err != nil {
		return err
	}
	if room.CreatedBy != actorID {
		return permissionError(ErrCodeCreatorOnly, "only the group creator can remove members")
	}
	if userID == room.CreatedBy {
		return permissionError(ErrCodeCreatorImmovable, "the group creator cannot be removed")
	}
	if err := g.store.RemoveMember(ctx, roomID, userID); err != nil {
		if errors.Is(err, store.ErrMemberNotFound) {
			return notFoundError(ErrCodeNotMember, "user is not a member of this room")
		}
		return fmt.Errorf("remove member: %w", err)
	}
	g.publishMembership(ctx, Event{Type: EventMemberRemoved, RoomID: roomID, UserID: userID, Actor: actorID})
	return nil
}

// LeaveGroup removes the caller from the group. The creator cannot leave;
// a group with only its creator left remains functional.
func (g *Groups) LeaveGroup(ctx context.Context, roomID, userID string) error {
	room, err := g.requireGroup(ctx, roomID)
	if err != nil {
		return err
	}
	if userID == room.CreatedBy {
		return permissionError(ErrCodeCreatorLeave, "the group creator cannot leave the group")
	}
	if err := g.store.RemoveMember(ctx, roomID, userID); err != nil {
		if errors.Is(err, store.ErrMemberNotFound) {
			return notFoundError(ErrCodeNotMember, "user is not a member of this room")
		}
		return fmt.Errorf("leave group: %w", err)
	}
	g.publishMembership(ctx, Event{Type: EventMemberLeft, RoomID: roomID, UserID: userID})
	return nil
}

func (g *Groups) requireGroup(ctx context.Context, roomID string) (*store.Room, error) {
	room, err := g.store.GetRoom(ctx, roomID)
	if err != nil {
		if errors.Is(err, store.ErrRoomNotFound) {
			return nil, notFoundError(ErrCodeRoomNotFound, "room not found")
		}
		return nil, fmt.Errorf("get room: %w", err)
	}
	if room.Kind != store.RoomKindGroup {
		return nil, validationError(ErrCodeRoomNotFound, "room is not a group")
	}
	return room, nil
}

func (g *Groups) publishMembership(ctx context.Context, ev Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		g.log.Warn().Err(err).Str("room_id", ev.RoomID).Msg("encode membership event")
		return
	}
	if err := g.broker.Publish(ctx, realtime.RoomTopic(ev.RoomID), payload); err != nil {
		g.log.Warn().Err(err).Str("room_id", ev.RoomID).Msg("publish membership event")
	}
}
