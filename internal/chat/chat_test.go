package chat

import (
	"context"
	"testing"
	"time"

	logpkg "github.com/tripline/chat-server/internal/log"
	"github.com/tripline/chat-server/internal/realtime"
	"github.com/tripline/chat-server/internal/store/sqlite"
)

const waitTimeout = 2 * time.Second

// testEnv bundles the in-memory backends the chat components run on in tests.
type testEnv struct {
	store  *sqlite.SQLiteStore
	broker *realtime.MemoryBroker
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return &testEnv{store: st, broker: realtime.NewMemoryBroker()}
}

func (e *testEnv) directory() *Directory {
	return NewDirectory(e.store, logpkg.Nop())
}

func (e *testEnv) messageLog() *MessageLog {
	return NewMessageLog(e.store, e.broker, logpkg.Nop())
}

func (e *testEnv) groups() *Groups {
	return NewGroups(e.store, e.broker, logpkg.Nop())
}

func (e *testEnv) chatList() *ChatList {
	return NewChatList(e.store, logpkg.Nop())
}

func (e *testEnv) presence() *Presence {
	return NewPresence(e.broker, logpkg.Nop())
}

// mustDirectRoom resolves a direct room between two plain users.
func (e *testEnv) mustDirectRoom(t *testing.T, a, b string) *Room {
	t.Helper()
	room, err := e.directory().ResolveDirectRoom(context.Background(),
		UserRef{ID: a, Name: a}, UserRef{ID: b, Name: b})
	if err != nil {
		t.Fatalf("resolve direct room: %v", err)
	}
	return room
}

func (e *testEnv) mustGroup(t *testing.T, name, creator string, members ...string) *Room {
	t.Helper()
	refs := make([]UserRef, 0, len(members))
	for _, m := range members {
		refs = append(refs, UserRef{ID: m, Name: m})
	}
	room, err := e.groups().CreateGroup(context.Background(), name, "", UserRef{ID: creator, Name: creator}, refs)
	if err != nil {
		t.Fatalf("create group: %v", err)
	}
	return room
}

// recvEvent waits for the next event or fails the test.
func recvEvent(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case ev, ok := <-ch:
		if !ok {
			t.Fatal("event channel closed")
		}
		return ev
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for event")
	}
	return Event{}
}

func checkCode(t *testing.T, err error, kind Kind, code string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error with code %s, got nil", code)
	}
	if KindOf(err) != kind {
		t.Errorf("expected kind %v, got %v (%v)", kind, KindOf(err), err)
	}
	if CodeOf(err) != code {
		t.Errorf("expected code %s, got %s (%v)", code, CodeOf(err), err)
	}
}
