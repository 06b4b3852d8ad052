package realtime

import (
	"context"
	"sync"
)

// subscriberBuffer bounds each subscription channel. A subscriber that falls
// this far behind is cut loose rather than blocking publishers; it observes
// the closed channel and resubscribes, and the durable backlog covers the gap.
const subscriberBuffer = 64

// MemoryBroker is an in-process Broker for single-node deployments and tests.
type MemoryBroker struct {
	mu     sync.Mutex
	topics map[string]map[*memorySub]struct{}
}

type memorySub struct {
	ch   chan []byte
	once sync.Once
}

func (s *memorySub) shutdown() {
	s.once.Do(func() { close(s.ch) })
}

// NewMemoryBroker creates an in-process broker.
func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{topics: make(map[string]map[*memorySub]struct{})}
}

// Publish delivers the payload to all current subscribers of the topic. A
// subscriber with a full buffer is dropped from the topic and its channel
// closed, never silently skipped.
func (b *MemoryBroker) Publish(_ context.Context, topic string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for sub := range b.topics[topic] {
		select {
		case sub.ch <- payload:
		default:
			delete(b.topics[topic], sub)
			sub.shutdown()
		}
	}
	if len(b.topics[topic]) == 0 {
		delete(b.topics, topic)
	}
	return nil
}

// Subscribe registers a subscription that lives until ctx is cancelled or the
// subscriber lags too far behind; either way the channel is closed.
func (b *MemoryBroker) Subscribe(ctx context.Context, topic string) (<-chan []byte, error) {
	sub := &memorySub{ch: make(chan []byte, subscriberBuffer)}

	b.mu.Lock()
	if b.topics[topic] == nil {
		b.topics[topic] = make(map[*memorySub]struct{})
	}
	b.topics[topic][sub] = struct{}{}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.topics[topic], sub)
		if len(b.topics[topic]) == 0 {
			delete(b.topics, topic)
		}
		b.mu.Unlock()
		sub.shutdown()
	}()

	return sub.ch, nil
}

var _ Broker = (*MemoryBroker)(nil)
