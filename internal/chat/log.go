package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/tripline/chat-server/internal/realtime"
	"github.com/tripline/chat-server/internal/store"
)

// EventType identifies what happened in a room.
type EventType string

const (
	// EventMessage carries a newly appended message.
	EventMessage EventType = "message"
	// EventRead signals that a reader marked the room read.
	EventRead EventType = "read"
	// EventDeleted signals that a message was removed from the log.
	EventDeleted EventType = "deleted"
)

// Event is delivered on a room subscription. A non-nil Err is terminal: the
// stream is closed right after and the caller must resubscribe.
type Event struct {
	Type      EventType `json:"type"`
	RoomID    string    `json:"room_id"`
	Message   *Message  `json:"message,omitempty"`
	ReaderID  string    `json:"reader_id,omitempty"`
	MessageID string    `json:"message_id,omitempty"`
	UserID    string    `json:"user_id,omitempty"`
	Actor     string    `json:"actor,omitempty"`
	Err       error     `json:"-"`
}

// MessageLog is the ordered, appendable store of messages per room. Sends
// are durable before they are broadcast; subscriptions replay the backlog
// once and then deliver live appends.
type MessageLog struct {
	store  store.Store
	broker realtime.Broker
	log    *zerolog.Logger

	mu    sync.Mutex
	rooms map[string]*sync.Mutex
}

// NewMessageLog creates a message log over the given store and broker.
func NewMessageLog(st store.Store, broker realtime.Broker, logger *zerolog.Logger) *MessageLog {
	return &MessageLog{store: st, broker: broker, log: logger, rooms: make(map[string]*sync.Mutex)}
}

// roomLock serializes append+broadcast per room so live subscribers observe
// sends in commit order.
func (l *MessageLog) roomLock(roomID string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	lock, ok := l.rooms[roomID]
	if !ok {
		lock = &sync.Mutex{}
		l.rooms[roomID] = lock
	}
	return lock
}

// Send appends a message to the room. The store assigns the timestamp and the
// denormalized room summary is updated in the same transaction; only then is
// the message broadcast. A failed send leaves no partial record.
func (l *MessageLog) Send(ctx context.Context, roomID string, sender UserRef, typ MessageType, payload string) (*Message, error) {
	if err := validateUserRef(sender); err != nil {
		return nil, err
	}
	if !ValidMessageType(typ) {
		return nil, validationError(ErrCodeUnsupportedMedia, fmt.Sprintf("unknown message type %q", typ))
	}
	if strings.TrimSpace(payload) == "" {
		return nil, validationError(ErrCodeEmptyPayload, "message payload is empty")
	}

	if _, err := l.store.GetMember(ctx, roomID, sender.ID); err != nil {
		switch {
		case errors.Is(err, store.ErrMemberNotFound):
			return nil, permissionError(ErrCodeNotMember, "sender is not a member of the room")
		default:
			return nil, transientError(fmt.Sprintf("check membership in %s", roomID), err)
		}
	}

	msg := &store.Message{
		ID:         uuid.NewString(),
		RoomID:     roomID,
		SenderID:   sender.ID,
		SenderName: sender.Name,
		Type:       string(typ),
		Payload:    payload,
	}
	// The room lock covers both the append and the broadcast: without it a
	// racing sender could publish a later commit first and live subscribers
	// would see messages out of (timestamp, id) order.
	lock := l.roomLock(roomID)
	lock.Lock()
	err := l.store.AppendMessage(ctx, msg)
	if err != nil {
		lock.Unlock()
		if errors.Is(err, store.ErrRoomNotFound) {
			return nil, notFoundError(ErrCodeRoomNotFound, "room not found")
		}
		return nil, transientError(fmt.Sprintf("append message to %s", roomID), err)
	}

	out := messageFromStore(msg)
	l.publish(ctx, roomID, Event{Type: EventMessage, RoomID: roomID, Message: out})
	lock.Unlock()

	l.log.Debug().
		Str("room_id", roomID).
		Str("message_id", msg.ID).
		Str("type", string(typ)).
		Msg("message sent")
	return out, nil
}

// Subscribe streams a room's events to a member: the full backlog once, in
// (timestamp, id) order, then live appends. The stream stays open until ctx
// is cancelled; a fatal failure is delivered as a terminal Err event before
// the channel closes.
func (l *MessageLog) Subscribe(ctx context.Context, roomID, userID string) (<-chan Event, error) {
	if err := l.requireMember(ctx, roomID, userID); err != nil {
		return nil, err
	}

	// Attach to the live feed before reading the backlog so nothing written
	// in between is lost; the seen-set drops the overlap.
	live, err := l.broker.Subscribe(ctx, realtime.RoomTopic(roomID))
	if err != nil {
		return nil, transientError(fmt.Sprintf("subscribe to %s", roomID), err)
	}

	out := make(chan Event, 64)
	go l.stream(ctx, roomID, live, out)
	return out, nil
}

func (l *MessageLog) stream(ctx context.Context, roomID string, live <-chan []byte, out chan<- Event) {
	defer close(out)

	backlog, err := l.store.ListMessages(ctx, roomID, 0, time.Time{})
	if err != nil {
		l.emit(ctx, out, Event{RoomID: roomID, Err: transientError("load backlog", err)})
		return
	}

	seen := make(map[string]struct{}, len(backlog))
	for _, m := range backlog {
		seen[m.ID] = struct{}{}
		if !l.emit(ctx, out, Event{Type: EventMessage, RoomID: roomID, Message: messageFromStore(m)}) {
			return
		}
	}

	for {
		select {
		case <-ctx.Done():
			return
		case payload, ok := <-live:
			if !ok {
				if ctx.Err() == nil {
					l.emit(ctx, out, Event{RoomID: roomID, Err: transientError("subscription lost", nil)})
				}
				return
			}
			var ev Event
			if err := json.Unmarshal(payload, &ev); err != nil {
				l.log.Warn().Err(err).Str("room_id", roomID).Msg("drop malformed room event")
				continue
			}
			if ev.Type == EventMessage {
				if ev.Message == nil {
					continue
				}
				if _, dup := seen[ev.Message.ID]; dup {
					continue
				}
				seen[ev.Message.ID] = struct{}{}
			}
			if !l.emit(ctx, out, ev) {
				return
			}
		}
	}
}

func (l *MessageLog) emit(ctx context.Context, out chan<- Event, ev Event) bool {
	select {
	case out <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

// MarkRead flags every message in the room not sent by readerID as read.
// Idempotent; read state never moves backwards.
func (l *MessageLog) MarkRead(ctx context.Context, roomID, readerID string) error {
	if readerID == "" {
		return validationError(ErrCodeBadUser, "reader id is required")
	}
	if _, err := l.store.GetRoom(ctx, roomID); err != nil {
		if errors.Is(err, store.ErrRoomNotFound) {
			return notFoundError(ErrCodeRoomNotFound, "room not found")
		}
		return transientError(fmt.Sprintf("load room %s", roomID), err)
	}

	marked, err := l.store.MarkRead(ctx, roomID, readerID)
	if err != nil {
		return transientError(fmt.Sprintf("mark %s read", roomID), err)
	}
	if marked > 0 {
		l.publish(ctx, roomID, Event{Type: EventRead, RoomID: roomID, ReaderID: readerID})
	}
	return nil
}

// Delete removes a message from the log. Only the sender may delete their
// own message; the gap is permanent and the message never reappears in
// subscription replays.
func (l *MessageLog) Delete(ctx context.Context, roomID, messageID, requesterID string) error {
	msg, err := l.store.GetMessage(ctx, roomID, messageID)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrMessageNotFound):
			return notFoundError(ErrCodeMessageNotFound, "message not found")
		default:
			return transientError(fmt.Sprintf("load message %s", messageID), err)
		}
	}
	if msg.SenderID != requesterID {
		return permissionError(ErrCodeNotSender, "only the sender can delete a message")
	}

	if err := l.store.DeleteMessage(ctx, roomID, messageID); err != nil {
		if errors.Is(err, store.ErrMessageNotFound) {
			// Raced with another delete; the outcome is the same.
			return nil
		}
		return transientError(fmt.Sprintf("delete message %s", messageID), err)
	}

	l.publish(ctx, roomID, Event{Type: EventDeleted, RoomID: roomID, MessageID: messageID})
	return nil
}

// History returns up to limit messages older than before (zero means newest),
// oldest first, to a member. Used by the REST surface for pagination.
func (l *MessageLog) History(ctx context.Context, roomID, userID string, limit int, before time.Time) ([]*Message, error) {
	if err := l.requireMember(ctx, roomID, userID); err != nil {
		return nil, err
	}

	stored, err := l.store.ListMessages(ctx, roomID, limit, before)
	if err != nil {
		return nil, transientError(fmt.Sprintf("list messages of %s", roomID), err)
	}

	messages := make([]*Message, 0, len(stored))
	for _, m := range stored {
		messages = append(messages, messageFromStore(m))
	}
	return messages, nil
}

// requireMember checks that the room exists and that userID belongs to it.
// Reads are gated the same way sends are.
func (l *MessageLog) requireMember(ctx context.Context, roomID, userID string) error {
	if _, err := l.store.GetRoom(ctx, roomID); err != nil {
		if errors.Is(err, store.ErrRoomNotFound) {
			return notFoundError(ErrCodeRoomNotFound, "room not found")
		}
		return transientError(fmt.Sprintf("load room %s", roomID), err)
	}
	if _, err := l.store.GetMember(ctx, roomID, userID); err != nil {
		if errors.Is(err, store.ErrMemberNotFound) {
			return permissionError(ErrCodeNotMember, "not a member of the room")
		}
		return transientError(fmt.Sprintf("check membership in %s", roomID), err)
	}
	return nil
}

// publish broadcasts best effort. The message is already durable; a broker
// hiccup costs liveness, not data, and the backlog covers the gap.
func (l *MessageLog) publish(ctx context.Context, roomID string, ev Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		l.log.Error().Err(err).Str("room_id", roomID).Msg("marshal room event")
		return
	}
	if err := l.broker.Publish(ctx, realtime.RoomTopic(roomID), payload); err != nil {
		l.log.Warn().Err(err).Str("room_id", roomID).Msg("broadcast room event")
	}
}
