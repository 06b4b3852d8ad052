package realtime

import "context"

// Broker is the watch/subscribe primitive the chat core uses to push live
// events to subscribers. Implementations must deliver a published payload to
// every active subscription of the topic, best effort; durable history is the
// store's job, not the broker's.
type Broker interface {
	// Publish sends a payload to all current subscribers of the topic.
	Publish(ctx context.Context, topic string, payload []byte) error

	// Subscribe returns a channel of payloads for the topic. The channel is
	// closed when ctx is cancelled or the subscription fails fatally;
	// transient disconnects are retried internally.
	Subscribe(ctx context.Context, topic string) (<-chan []byte, error)
}

// Topic names. One channel per room for messages and one for typing state so
// a client can watch either independently.
const (
	roomTopicPrefix   = "chat:room:"
	typingTopicPrefix = "chat:typing:"
)

// RoomTopic is the pub/sub channel carrying a room's message events.
func RoomTopic(roomID string) string { return roomTopicPrefix + roomID }

// TypingTopic is the pub/sub channel carrying a room's typing updates.
func TypingTopic(roomID string) string { return typingTopicPrefix + roomID }
