package queue

import (
	"context"
	"sync"

	"github.com/labstack/gommon/log"
)

// Hub is the in-process backend.  It is only correct for a single server
// process.
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]map[*hubSubscription]struct{}
	buffer int
	closed bool
	logger *log.Logger
}

type hubSubscription struct {
	hub   *Hub
	topic string
	ch    chan SeatUpdateEvent
	done  chan struct{} // closed with ch; stops the context watcher
	once  sync.Once
}

// NewHub creates an in-process hub.  buffer <= 0 uses DefaultBuffer.
func NewHub(buffer int, logger *log.Logger) *Hub {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Hub{subs: make(map[string]map[*hubSubscription]struct{}), buffer: buffer, logger: defaultLogger(logger)}
}

// Publish implements Publisher.  A subscriber whose buffer is full misses
// the event.
func (h *Hub) Publish(_ context.Context, topic string, ev SeatUpdateEvent) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return ErrClosed
	}
	for sub := range h.subs[topic] {
		if !offer(sub.ch, ev) {
			h.logger.Warnj(log.JSON{"msg": "subscriber buffer full, event dropped", "topic": topic, "event_id": ev.ID})
		}
	}
	return nil
}

// Subscribe implements Subscriber.  The subscription is closed when ctx is
// done.
func (h *Hub) Subscribe(ctx context.Context, topic string) (Subscription, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, ErrClosed
	}
	sub := &hubSubscription{hub: h, topic: topic, ch: make(chan SeatUpdateEvent, h.buffer), done: make(chan struct{})}
	if h.subs[topic] == nil {
		h.subs[topic] = make(map[*hubSubscription]struct{})
	}
	h.subs[topic][sub] = struct{}{}
	go func() {
		select {
		case <-ctx.Done():
			_ = sub.Close()
		case <-sub.done:
		}
	}()
	return sub, nil
}

// Subscribers returns the number of live subscriptions of topic.
func (h *Hub) Subscribers(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[topic])
}

// Close closes every subscription.
func (h *Hub) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true
	for _, subs := range h.subs {
		for sub := range subs {
			sub.shut()
		}
	}
	h.subs = nil
	return nil
}

func (s *hubSubscription) Events() <-chan SeatUpdateEvent { return s.ch }

func (s *hubSubscription) Close() error {
	s.hub.mu.Lock()
	defer s.hub.mu.Unlock()
	if subs, ok := s.hub.subs[s.topic]; ok {
		delete(subs, s)
		if len(subs) == 0 {
			delete(s.hub.subs, s.topic)
		}
	}
	s.shut()
	return nil
}

// shut closes the event channel exactly once.  The caller holds hub.mu.
func (s *hubSubscription) shut() {
	s.once.Do(func() {
		close(s.ch)
		close(s.done)
	})
}
