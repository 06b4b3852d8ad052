package sqlite

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/tripline/chat-server/internal/store"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCreateDirectRoomIfAbsentIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	alice := store.Member{UserID: "alice", Name: "Alice"}
	bob := store.Member{UserID: "bob", Name: "Bob"}

	first, err := s.CreateDirectRoomIfAbsent(ctx, "dm:alice:bob", alice, bob)
	if err != nil {
		t.Fatalf("first create failed: %v", err)
	}

	// Resolving again, even with the arguments swapped, returns the same row.
	second, err := s.CreateDirectRoomIfAbsent(ctx, "dm:alice:bob", bob, alice)
	if err != nil {
		t.Fatalf("second create failed: %v", err)
	}

	if first.ID != second.ID {
		t.Errorf("expected same room, got %q and %q", first.ID, second.ID)
	}
	if !first.CreatedAt.Equal(second.CreatedAt) {
		t.Errorf("second create changed created_at: %v vs %v", first.CreatedAt, second.CreatedAt)
	}

	members, err := s.ListMembers(ctx, "dm:alice:bob")
	if err != nil {
		t.Fatalf("list members failed: %v", err)
	}
	if len(members) != 2 {
		t.Fatalf("expected 2 members, got %d", len(members))
	}
}

func TestAppendMessageAssignsStoreTimestamp(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	stamp := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	s.SetClock(func() time.Time { return stamp })

	if _, err := s.CreateDirectRoomIfAbsent(ctx, "dm:a:b", store.Member{UserID: "a"}, store.Member{UserID: "b"}); err != nil {
		t.Fatalf("create room failed: %v", err)
	}

	msg := &store.Message{
		ID:       "m1",
		RoomID:   "dm:a:b",
		SenderID: "a",
		Type:     "text",
		Payload:  "hello",
		// Client-reported time must be ignored.
		CreatedAt: time.Date(1999, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	if err := s.AppendMessage(ctx, msg); err != nil {
		t.Fatalf("append failed: %v", err)
	}
	if !msg.CreatedAt.Equal(stamp) {
		t.Errorf("expected store-assigned timestamp %v, got %v", stamp, msg.CreatedAt)
	}

	room, err := s.GetRoom(ctx, "dm:a:b")
	if err != nil {
		t.Fatalf("get room failed: %v", err)
	}
	if room.LastMessage != "hello" {
		t.Errorf("expected last message %q, got %q", "hello", room.LastMessage)
	}
	if !room.LastMessageTime.Equal(stamp) {
		t.Errorf("expected last message time %v, got %v", stamp, room.LastMessageTime)
	}
}

func TestAppendMessageToMissingRoom(t *testing.T) {
	s := newTestStore(t)

	err := s.AppendMessage(context.Background(), &store.Message{
		ID: "m1", RoomID: "dm:x:y", SenderID: "x", Type: "text", Payload: "hi",
	})
	if !errors.Is(err, store.ErrRoomNotFound) {
		t.Fatalf("expected ErrRoomNotFound, got %v", err)
	}
}

func TestListMessagesOrderAndTieBreak(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	stamp := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	s.SetClock(func() time.Time { return stamp })

	if _, err := s.CreateDirectRoomIfAbsent(ctx, "dm:a:b", store.Member{UserID: "a"}, store.Member{UserID: "b"}); err != nil {
		t.Fatalf("create room failed: %v", err)
	}

	// Identical timestamps: order must fall back to the id.
	for _, id := range []string{"m3", "m1", "m2"} {
		msg := &store.Message{ID: id, RoomID: "dm:a:b", SenderID: "a", Type: "text", Payload: id}
		if err := s.AppendMessage(ctx, msg); err != nil {
			t.Fatalf("append %s failed: %v", id, err)
		}
	}

	msgs, err := s.ListMessages(ctx, "dm:a:b", 0, time.Time{})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	want := []string{"m1", "m2", "m3"}
	if len(msgs) != len(want) {
		t.Fatalf("expected %d messages, got %d", len(want), len(msgs))
	}
	for i, id := range want {
		if msgs[i].ID != id {
			t.Errorf("position %d: expected %s, got %s", i, id, msgs[i].ID)
		}
	}
}

func TestListMessagesPagination(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	tick := 0
	s.SetClock(func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	})

	if _, err := s.CreateDirectRoomIfAbsent(ctx, "dm:a:b", store.Member{UserID: "a"}, store.Member{UserID: "b"}); err != nil {
		t.Fatalf("create room failed: %v", err)
	}
	for i := 1; i <= 5; i++ {
		msg := &store.Message{ID: fmt.Sprintf("m%d", i), RoomID: "dm:a:b", SenderID: "a", Type: "text", Payload: "x"}
		if err := s.AppendMessage(ctx, msg); err != nil {
			t.Fatalf("append failed: %v", err)
		}
	}

	// Newest page, chronological within the page.
	page, err := s.ListMessages(ctx, "dm:a:b", 2, time.Time{})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(page) != 2 || page[0].ID != "m4" || page[1].ID != "m5" {
		t.Fatalf("expected [m4 m5], got %v", ids(page))
	}

	// Page before the oldest of the previous one.
	page, err = s.ListMessages(ctx, "dm:a:b", 2, page[0].CreatedAt)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(page) != 2 || page[0].ID != "m2" || page[1].ID != "m3" {
		t.Fatalf("expected [m2 m3], got %v", ids(page))
	}
}

func ids(msgs []*store.Message) []string {
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.ID)
	}
	return out
}

func TestGroupUnreadCounters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	members := []store.Member{
		{RoomID: "grp:1", UserID: "alice"},
		{RoomID: "grp:1", UserID: "bob"},
		{RoomID: "grp:1", UserID: "carol"},
	}
	if _, err := s.CreateGroupRoom(ctx, &store.Room{ID: "grp:1", Kind: store.RoomKindGroup, Name: "team", CreatedBy: "alice"}, members); err != nil {
		t.Fatalf("create group failed: %v", err)
	}

	for i := 0; i < 2; i++ {
		msg := &store.Message{ID: fmt.Sprintf("m%d", i), RoomID: "grp:1", SenderID: "alice", Type: "text", Payload: "hi"}
		if err := s.AppendMessage(ctx, msg); err != nil {
			t.Fatalf("append failed: %v", err)
		}
	}

	checkUnread := func(userID string, want int) {
		t.Helper()
		m, err := s.GetMember(ctx, "grp:1", userID)
		if err != nil {
			t.Fatalf("get member %s failed: %v", userID, err)
		}
		if m.UnreadCount != want {
			t.Errorf("%s: expected unread %d, got %d", userID, want, m.UnreadCount)
		}
	}

	checkUnread("alice", 0) // sender never counts their own message
	checkUnread("bob", 2)
	checkUnread("carol", 2)

	marked, err := s.MarkRead(ctx, "grp:1", "bob")
	if err != nil {
		t.Fatalf("mark read failed: %v", err)
	}
	if marked != 2 {
		t.Errorf("expected 2 marked, got %d", marked)
	}
	checkUnread("bob", 0)
	checkUnread("carol", 2)

	// Repeat is a no-op.
	marked, err = s.MarkRead(ctx, "grp:1", "bob")
	if err != nil {
		t.Fatalf("second mark read failed: %v", err)
	}
	if marked != 0 {
		t.Errorf("expected 0 marked on repeat, got %d", marked)
	}
}

func TestDirectRoomHasNoUnreadCounter(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.CreateDirectRoomIfAbsent(ctx, "dm:a:b", store.Member{UserID: "a"}, store.Member{UserID: "b"}); err != nil {
		t.Fatalf("create room failed: %v", err)
	}
	msg := &store.Message{ID: "m1", RoomID: "dm:a:b", SenderID: "a", Type: "text", Payload: "hi"}
	if err := s.AppendMessage(ctx, msg); err != nil {
		t.Fatalf("append failed: %v", err)
	}

	m, err := s.GetMember(ctx, "dm:a:b", "b")
	if err != nil {
		t.Fatalf("get member failed: %v", err)
	}
	if m.UnreadCount != 0 {
		t.Errorf("direct rooms must not bump unread, got %d", m.UnreadCount)
	}
}

func TestDeleteMessage(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.CreateDirectRoomIfAbsent(ctx, "dm:a:b", store.Member{UserID: "a"}, store.Member{UserID: "b"}); err != nil {
		t.Fatalf("create room failed: %v", err)
	}
	msg := &store.Message{ID: "m1", RoomID: "dm:a:b", SenderID: "a", Type: "text", Payload: "hi"}
	if err := s.AppendMessage(ctx, msg); err != nil {
		t.Fatalf("append failed: %v", err)
	}

	if err := s.DeleteMessage(ctx, "dm:a:b", "m1"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, err := s.GetMessage(ctx, "dm:a:b", "m1"); !errors.Is(err, store.ErrMessageNotFound) {
		t.Fatalf("expected ErrMessageNotFound after delete, got %v", err)
	}
	if err := s.DeleteMessage(ctx, "dm:a:b", "m1"); !errors.Is(err, store.ErrMessageNotFound) {
		t.Fatalf("expected ErrMessageNotFound on repeat delete, got %v", err)
	}
}

func TestRemoveMember(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	members := []store.Member{
		{RoomID: "grp:1", UserID: "alice"},
		{RoomID: "grp:1", UserID: "bob"},
	}
	if _, err := s.CreateGroupRoom(ctx, &store.Room{ID: "grp:1", Kind: store.RoomKindGroup, Name: "team", CreatedBy: "alice"}, members); err != nil {
		t.Fatalf("create group failed: %v", err)
	}

	if err := s.RemoveMember(ctx, "grp:1", "bob"); err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	if err := s.RemoveMember(ctx, "grp:1", "bob"); !errors.Is(err, store.ErrMemberNotFound) {
		t.Fatalf("expected ErrMemberNotFound, got %v", err)
	}
}
