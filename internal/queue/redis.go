package queue

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/labstack/gommon/log"
	"github.com/redis/go-redis/v9"
)

// RedisBus publishes events with PUBLISH and follows topics with
// SUBSCRIBE, so every server process sharing the Redis instance sees the
// same updates.
type RedisBus struct {
	rdb    *redis.Client
	buffer int
	logger *log.Logger
}

// NewRedisBus wraps rdb.  buffer <= 0 uses DefaultBuffer.
func NewRedisBus(rdb *redis.Client, buffer int, logger *log.Logger) *RedisBus {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &RedisBus{rdb: rdb, buffer: buffer, logger: defaultLogger(logger)}
}

// Publish implements Publisher.
func (b *RedisBus) Publish(ctx context.Context, topic string, ev SeatUpdateEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, topic, body).Err()
}

// Subscribe implements Subscriber.  It waits for the SUBSCRIBE
// confirmation before returning.
func (b *RedisBus) Subscribe(ctx context.Context, topic string) (Subscription, error) {
	ps := b.rdb.Subscribe(ctx, topic)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, err
	}
	sub := &redisSubscription{ps: ps, ch: make(chan SeatUpdateEvent, b.buffer), done: make(chan struct{})}
	go sub.pump(ctx, topic, b.logger)
	return sub, nil
}

// Close is a no-op; the Redis client is owned by the caller.
func (b *RedisBus) Close() error { return nil }

type redisSubscription struct {
	ps   *redis.PubSub
	ch   chan SeatUpdateEvent
	done chan struct{}
	once sync.Once
}

func (s *redisSubscription) pump(ctx context.Context, topic string, logger *log.Logger) {
	defer close(s.ch)
	msgs := s.ps.Channel()
	for {
		select {
		case <-ctx.Done():
			_ = s.Close()
			return
		case <-s.done:
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			var ev SeatUpdateEvent
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				logger.Warnj(log.JSON{"msg": "undecodable seat update", "topic": topic, "error": err.Error()})
				continue
			}
			if !offer(s.ch, ev) {
				logger.Warnj(log.JSON{"msg": "subscriber buffer full, event dropped", "topic": topic, "event_id": ev.ID})
			}
		}
	}
}

func (s *redisSubscription) Events() <-chan SeatUpdateEvent { return s.ch }

func (s *redisSubscription) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		err = s.ps.Close()
	})
	return err
}
