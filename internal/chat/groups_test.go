package chat

import (
	"context"
	"strings"
	"testing"
)

func TestCreateGroup(t *testing.T) {
	env := newTestEnv(t)

	room := env.mustGroup(t, "team", "alice", "bob", "carol")

	if !strings.HasPrefix(room.ID, "grp:") {
		t.Errorf("expected grp: prefixed id, got %q", room.ID)
	}
	if room.Kind != RoomGroup {
		t.Errorf("expected group kind, got %q", room.Kind)
	}
	if room.CreatedBy != "alice" {
		t.Errorf("expected creator alice, got %q", room.CreatedBy)
	}
	if len(room.Members) != 3 {
		t.Fatalf("expected 3 members, got %d", len(room.Members))
	}
	if !room.HasMember("alice") {
		t.Error("creator must be a member")
	}
}

func TestCreateGroupKeepsImage(t *testing.T) {
	env := newTestEnv(t)

	room, err := env.groups().CreateGroup(context.Background(), "trip crew", "https://cdn.example/crew.png",
		UserRef{ID: "alice", Name: "Alice"}, nil)
	if err != nil {
		t.Fatalf("create group: %v", err)
	}
	if room.Image != "https://cdn.example/crew.png" {
		t.Errorf("expected group image to persist, got %q", room.Image)
	}
}

func TestCreateGroupDeduplicatesCreator(t *testing.T) {
	env := newTestEnv(t)

	room := env.mustGroup(t, "team", "alice", "alice", "bob")
	if len(room.Members) != 2 {
		t.Fatalf("expected creator to be deduplicated, got %d members", len(room.Members))
	}
}

func TestCreateGroupRejectsEmptyName(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.groups().CreateGroup(context.Background(), "   ", "", UserRef{ID: "alice"}, nil)
	if KindOf(err) != KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestAddMemberCreatorOnly(t *testing.T) {
	env := newTestEnv(t)
	room := env.mustGroup(t, "team", "alice", "bob")
	groups := env.groups()
	ctx := context.Background()

	err := groups.AddMember(ctx, room.ID, "bob", UserRef{ID: "carol", Name: "Carol"})
	checkCode(t, err, KindPermission, ErrCodeCreatorOnly)

	if err := groups.AddMember(ctx, room.ID, "alice", UserRef{ID: "carol", Name: "Carol"}); err != nil {
		t.Fatalf("add by creator failed: %v", err)
	}

	// Adding an existing member is a no-op.
	if err := groups.AddMember(ctx, room.ID, "alice", UserRef{ID: "carol", Name: "Carol"}); err != nil {
		t.Fatalf("re-add failed: %v", err)
	}

	fresh, err := env.directory().GetRoom(ctx, room.ID)
	if err != nil {
		t.Fatalf("get room failed: %v", err)
	}
	if len(fresh.Members) != 3 {
		t.Errorf("expected 3 members, got %d", len(fresh.Members))
	}
}

func TestRemoveMemberRules(t *testing.T) {
	env := newTestEnv(t)
	room := env.mustGroup(t, "team", "alice", "bob", "carol")
	groups := env.groups()
	ctx := context.Background()

	err := groups.RemoveMember(ctx, room.ID, "bob", "carol")
	checkCode(t, err, KindPermission, ErrCodeCreatorOnly)

	err = groups.RemoveMember(ctx, room.ID, "alice", "alice")
	checkCode(t, err, KindPermission, ErrCodeCreatorImmovable)

	if err := groups.RemoveMember(ctx, room.ID, "alice", "bob"); err != nil {
		t.Fatalf("remove by creator failed: %v", err)
	}

	err = groups.RemoveMember(ctx, room.ID, "alice", "bob")
	checkCode(t, err, KindNotFound, ErrCodeNotMember)
}

func TestLeaveGroupRules(t *testing.T) {
	env := newTestEnv(t)
	room := env.mustGroup(t, "team", "alice", "bob")
	groups := env.groups()
	ctx := context.Background()

	err := groups.LeaveGroup(ctx, room.ID, "alice")
	checkCode(t, err, KindPermission, ErrCodeCreatorLeave)

	if err := groups.LeaveGroup(ctx, room.ID, "bob"); err != nil {
		t.Fatalf("leave failed: %v", err)
	}

	// The departed member can no longer send.
	_, err = env.messageLog().Send(ctx, room.ID, UserRef{ID: "bob"}, TypeText, "hi")
	checkCode(t, err, KindPermission, ErrCodeNotMember)

	// A group reduced to its creator still accepts messages.
	if _, err := env.messageLog().Send(ctx, room.ID, UserRef{ID: "alice"}, TypeText, "alone"); err != nil {
		t.Fatalf("creator send in empty group failed: %v", err)
	}
}

func TestGroupOperationsOnDirectRoom(t *testing.T) {
	env := newTestEnv(t)
	room := env.mustDirectRoom(t, "alice", "bob")

	err := env.groups().AddMember(context.Background(), room.ID, "alice", UserRef{ID: "carol"})
	if KindOf(err) != KindValidation {
		t.Fatalf("expected validation error for direct room, got %v", err)
	}
}

func TestMembershipEventsPublished(t *testing.T) {
	env := newTestEnv(t)
	room := env.mustGroup(t, "team", "alice", "bob")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := env.messageLog().Subscribe(ctx, room.ID, "alice")
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}

	if err := env.groups().AddMember(ctx, room.ID, "alice", UserRef{ID: "carol", Name: "Carol"}); err != nil {
		t.Fatalf("add member failed: %v", err)
	}
	ev := recvEvent(t, events)
	if ev.Type != EventMemberAdded || ev.UserID != "carol" || ev.Actor != "alice" {
		t.Fatalf("expected member_added for carol by alice, got %+v", ev)
	}

	if err := env.groups().LeaveGroup(ctx, room.ID, "bob"); err != nil {
		t.Fatalf("leave failed: %v", err)
	}
	ev = recvEvent(t, events)
	if ev.Type != EventMemberLeft || ev.UserID != "bob" {
		t.Fatalf("expected member_left for bob, got %+v", ev)
	}
}
