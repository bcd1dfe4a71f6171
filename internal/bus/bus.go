// Package bus is a bounded in-process pub/sub fabric for coordination
// events. Publishing never blocks: when a subscriber's buffer is full the
// event is dropped for that subscriber and counted, making backpressure
// visible instead of implicit.
package bus

import (
	"sync"
	"sync/atomic"

	"github.com/devrev/agentmesh/internal/model"
	"go.uber.org/zap"
)

// TopicAll subscribes to every event regardless of topic.
const TopicAll = "*"

// DefaultBuffer is the per-subscriber channel capacity.
const DefaultBuffer = 64

// Subscription is one subscriber's view of the bus. Events arrive on C
// until Cancel is called or the bus closes, after which C is closed.
type Subscription struct {
	C      <-chan model.Event
	ch     chan model.Event
	topics map[string]bool
	cancel func()
	once   sync.Once
}

// Cancel detaches the subscription and closes its channel.
func (s *Subscription) Cancel() {
	s.once.Do(s.cancel)
}

func (s *Subscription) matches(topic string) bool {
	return s.topics[TopicAll] || s.topics[topic]
}

// Bus fans typed events out to topic subscribers over bounded buffers.
type Bus struct {
	mu      sync.RWMutex
	subs    map[*Subscription]struct{}
	buffer  int
	closed  bool
	dropped atomic.Uint64
	logger  *zap.Logger
}

// NewBus creates a bus with the given per-subscriber buffer size.
func NewBus(buffer int, logger *zap.Logger) *Bus {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bus{
		subs:   make(map[*Subscription]struct{}),
		buffer: buffer,
		logger: logger,
	}
}

// Subscribe registers a subscriber for the given topics. Use TopicAll to
// receive everything. Subscribing to a closed bus returns a subscription
// whose channel is already closed.
func (b *Bus) Subscribe(topics ...string) *Subscription {
	ch := make(chan model.Event, b.buffer)
	sub := &Subscription{
		C:      ch,
		ch:     ch,
		topics: make(map[string]bool, len(topics)),
	}
	for _, t := range topics {
		sub.topics[t] = true
	}
	sub.cancel = func() {
		b.mu.Lock()
		_, live := b.subs[sub]
		delete(b.subs, sub)
		b.mu.Unlock()
		if live {
			close(ch)
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return sub
	}
	b.subs[sub] = struct{}{}
	return sub
}

// Publish delivers ev to every matching subscriber without blocking.
// Full subscriber buffers drop the event for that subscriber only.
func (b *Bus) Publish(ev model.Event) {
	topic := ev.Topic()

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}
	for sub := range b.subs {
		if !sub.matches(topic) {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
			b.dropped.Add(1)
			b.logger.Warn("Event dropped, subscriber buffer full",
				zap.String("topic", topic),
				zap.Uint64("total_dropped", b.dropped.Load()))
		}
	}
}

// Dropped returns the total number of events dropped across subscribers.
func (b *Bus) Dropped() uint64 {
	return b.dropped.Load()
}

// Close shuts the bus down and closes every subscriber channel. Safe to
// call more than once.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for sub := range b.subs {
		close(sub.ch)
		delete(b.subs, sub)
	}
}
