package chat

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/tripline/chat-server/internal/realtime"
)

// DebounceWindow is the shared contract between the coordinator and its
// callers: the UI restarts a timer on every keystroke and emits
// isTyping=false after this much inactivity. The coordinator itself runs no
// timers; it only stamps ExpiresAt so late readers can discard stale state.
const DebounceWindow = 2000 * time.Millisecond

// TypingState is ephemeral, advisory and last-write-wins per (room, user).
// It is never persisted.
type TypingState struct {
	RoomID    string    `json:"room_id"`
	UserID    string    `json:"user_id"`
	IsTyping  bool      `json:"is_typing"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the state is past its debounce window.
func (s TypingState) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// Presence coordinates typing state. Writes are best effort with no retry:
// the next update self-heals anything a lost one left behind.
type Presence struct {
	broker realtime.Broker
	log    *zerolog.Logger
	now    func() time.Time

	mu    sync.Mutex
	state map[string]map[string]TypingState // roomID -> userID -> latest write
}

// NewPresence creates a typing coordinator over the given broker.
func NewPresence(broker realtime.Broker, logger *zerolog.Logger) *Presence {
	return &Presence{
		broker: broker,
		log:    logger,
		now:    time.Now,
		state:  make(map[string]map[string]TypingState),
	}
}

// SetTyping records the user's typing state for the room and broadcasts it.
// Rapid calls for the same pair collapse to the latest value.
func (p *Presence) SetTyping(ctx context.Context, roomID, userID string, isTyping bool) error {
	if roomID == "" || userID == "" {
		return validationError(ErrCodeBadUser, "room id and user id are required")
	}

	state := TypingState{
		RoomID:    roomID,
		UserID:    userID,
		IsTyping:  isTyping,
		ExpiresAt: p.now().Add(DebounceWindow),
	}

	p.mu.Lock()
	if p.state[roomID] == nil {
		p.state[roomID] = make(map[string]TypingState)
	}
	p.state[roomID][userID] = state
	p.mu.Unlock()

	payload, err := json.Marshal(state)
	if err != nil {
		return transientError("marshal typing state", err)
	}
	if err := p.broker.Publish(ctx, realtime.TypingTopic(roomID), payload); err != nil {
		// Best effort: the next keystroke or the caller's debounce timer
		// corrects the stream within the window.
		p.log.Debug().Err(err).Str("room_id", roomID).Msg("typing broadcast dropped")
	}
	return nil
}

// SubscribeTyping streams typing updates for the room: a snapshot of current
// unexpired states first, then live writes. Cancelled via ctx.
func (p *Presence) SubscribeTyping(ctx context.Context, roomID string) (<-chan TypingState, error) {
	if roomID == "" {
		return nil, validationError(ErrCodeBadUser, "room id is required")
	}

	live, err := p.broker.Subscribe(ctx, realtime.TypingTopic(roomID))
	if err != nil {
		return nil, transientError("subscribe typing", err)
	}

	out := make(chan TypingState, 16)
	snapshot := p.snapshot(roomID)

	go func() {
		defer close(out)

		for _, state := range snapshot {
			select {
			case out <- state:
			case <-ctx.Done():
				return
			}
		}

		for {
			select {
			case <-ctx.Done():
				return
			case payload, ok := <-live:
				if !ok {
					return
				}
				var state TypingState
				if err := json.Unmarshal(payload, &state); err != nil {
					p.log.Warn().Err(err).Str("room_id", roomID).Msg("drop malformed typing event")
					continue
				}
				select {
				case out <- state:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

// snapshot returns the room's unexpired states, pruning the rest.
func (p *Presence) snapshot(roomID string) []TypingState {
	now := p.now()

	p.mu.Lock()
	defer p.mu.Unlock()

	var states []TypingState
	for userID, state := range p.state[roomID] {
		if state.Expired(now) {
			delete(p.state[roomID], userID)
			continue
		}
		states = append(states, state)
	}
	if len(p.state[roomID]) == 0 {
		delete(p.state, roomID)
	}
	return states
}
