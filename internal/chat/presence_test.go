package chat

import (
	"context"
	"testing"
	"time"
)

func recvTyping(t *testing.T, ch <-chan TypingState) TypingState {
	t.Helper()
	select {
	case state, ok := <-ch:
		if !ok {
			t.Fatal("typing channel closed")
		}
		return state
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for typing state")
	}
	return TypingState{}
}

func TestSetTypingStampsDebounceWindow(t *testing.T) {
	env := newTestEnv(t)
	p := env.presence()

	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return now }

	if err := p.SetTyping(context.Background(), "dm:a:b", "alice", true); err != nil {
		t.Fatalf("set typing failed: %v", err)
	}

	states := p.snapshot("dm:a:b")
	if len(states) != 1 {
		t.Fatalf("expected 1 state, got %d", len(states))
	}
	if !states[0].ExpiresAt.Equal(now.Add(DebounceWindow)) {
		t.Errorf("expected expiry %v, got %v", now.Add(DebounceWindow), states[0].ExpiresAt)
	}
}

func TestSetTypingLastWriteWins(t *testing.T) {
	env := newTestEnv(t)
	p := env.presence()
	ctx := context.Background()

	// Rapid updates for the same pair collapse to the latest value.
	for _, typing := range []bool{true, false, true, false} {
		if err := p.SetTyping(ctx, "dm:a:b", "alice", typing); err != nil {
			t.Fatalf("set typing failed: %v", err)
		}
	}

	states := p.snapshot("dm:a:b")
	if len(states) != 1 {
		t.Fatalf("expected 1 state per user, got %d", len(states))
	}
	if states[0].IsTyping {
		t.Error("expected last write (false) to win")
	}
}

func TestSubscribeTypingSnapshotSkipsExpired(t *testing.T) {
	env := newTestEnv(t)
	p := env.presence()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return now }

	if err := p.SetTyping(ctx, "dm:a:b", "alice", true); err != nil {
		t.Fatalf("set typing failed: %v", err)
	}
	if err := p.SetTyping(ctx, "dm:a:b", "bob", true); err != nil {
		t.Fatalf("set typing failed: %v", err)
	}

	// Bob's write ages past the window; only alice survives the snapshot.
	p.now = func() time.Time { return now.Add(DebounceWindow + time.Second) }
	if err := p.SetTyping(ctx, "dm:a:b", "alice", true); err != nil {
		t.Fatalf("refresh typing failed: %v", err)
	}

	states := p.snapshot("dm:a:b")
	if len(states) != 1 || states[0].UserID != "alice" {
		t.Fatalf("expected only alice in snapshot, got %+v", states)
	}
}

func TestSubscribeTypingDeliversLiveUpdates(t *testing.T) {
	env := newTestEnv(t)
	p := env.presence()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	updates, err := p.SubscribeTyping(ctx, "dm:a:b")
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}

	if err := p.SetTyping(ctx, "dm:a:b", "alice", true); err != nil {
		t.Fatalf("set typing failed: %v", err)
	}
	state := recvTyping(t, updates)
	if state.UserID != "alice" || !state.IsTyping {
		t.Fatalf("expected alice typing, got %+v", state)
	}

	if err := p.SetTyping(ctx, "dm:a:b", "alice", false); err != nil {
		t.Fatalf("set typing failed: %v", err)
	}
	state = recvTyping(t, updates)
	if state.IsTyping {
		t.Fatalf("expected stopped-typing update, got %+v", state)
	}
}

func TestSubscribeTypingIsolatedPerRoom(t *testing.T) {
	env := newTestEnv(t)
	p := env.presence()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	other, err := p.SubscribeTyping(ctx, "dm:x:y")
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}

	if err := p.SetTyping(ctx, "dm:a:b", "alice", true); err != nil {
		t.Fatalf("set typing failed: %v", err)
	}

	select {
	case state := <-other:
		t.Fatalf("typing leaked across rooms: %+v", state)
	case <-time.After(100 * time.Millisecond):
	}
}
