package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/labstack/gommon/log"
	amqp "github.com/rabbitmq/amqp091-go"
)

// DefaultExchange is the topic exchange carrying seat updates.  The
// routing key of every message is its topic.
const DefaultExchange = "seat.updates"

// AMQPBus publishes seat updates to a RabbitMQ topic exchange.  Messages
// are transient and each subscriber consumes from its own exclusive,
// auto-deleted queue, so nothing is retained for absent subscribers.
type AMQPBus struct {
	url      string
	exchange string
	buffer   int
	logger   *log.Logger

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

// NewAMQPBus dials url and declares the exchange.
func NewAMQPBus(url, exchange string, buffer int, logger *log.Logger) (*AMQPBus, error) {
	if exchange == "" {
		exchange = DefaultExchange
	}
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	b := &AMQPBus{url: url, exchange: exchange, buffer: buffer, logger: defaultLogger(logger)}
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.ensureConnection(); err != nil {
		return nil, err
	}
	return b, nil
}

// ensureConnection redials after the broker dropped the connection.
// Callers hold b.mu.
func (b *AMQPBus) ensureConnection() error {
	if b.conn != nil && !b.conn.IsClosed() && b.ch != nil && !b.ch.IsClosed() {
		return nil
	}
	if b.conn == nil || b.conn.IsClosed() {
		conn, err := amqp.Dial(b.url)
		if err != nil {
			return fmt.Errorf("amqp dial: %w", err)
		}
		b.conn = conn
	}
	ch, err := b.conn.Channel()
	if err != nil {
		return fmt.Errorf("amqp channel: %w", err)
	}
	if err := declareExchange(ch, b.exchange); err != nil {
		_ = ch.Close()
		return err
	}
	b.ch = ch
	return nil
}

func declareExchange(ch *amqp.Channel, exchange string) error {
	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		return fmt.Errorf("exchange declare: %w", err)
	}
	return nil
}

// Publish implements Publisher.
func (b *AMQPBus) Publish(ctx context.Context, topic string, ev SeatUpdateEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.ensureConnection(); err != nil {
		return err
	}
	return b.ch.PublishWithContext(ctx, b.exchange, topic, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Transient,
		MessageId:    ev.ID,
		Timestamp:    ev.Timestamp,
		Body:         body,
	})
}

// Subscribe implements Subscriber.  The queue is bound before Subscribe
// returns.
func (b *AMQPBus) Subscribe(ctx context.Context, topic string) (Subscription, error) {
	b.mu.Lock()
	if err := b.ensureConnection(); err != nil {
		b.mu.Unlock()
		return nil, err
	}
	ch, err := b.conn.Channel()
	b.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("amqp channel: %w", err)
	}
	msgs, err := bindConsumer(ch, b.exchange, "", topic, false)
	if err != nil {
		_ = ch.Close()
		return nil, err
	}
	sub := &amqpSubscription{ch: ch, out: make(chan SeatUpdateEvent, b.buffer), done: make(chan struct{})}
	go sub.pump(ctx, topic, msgs, b.logger)
	return sub, nil
}

// bindConsumer declares a queue bound to exchange with key and starts
// consuming it.  An empty name yields a server-named exclusive queue that
// is deleted with its consumer.
func bindConsumer(ch *amqp.Channel, exchange, name, key string, durable bool) (<-chan amqp.Delivery, error) {
	exclusive := name == ""
	q, err := ch.QueueDeclare(name, durable, !durable, exclusive, false, nil)
	if err != nil {
		return nil, fmt.Errorf("queue declare: %w", err)
	}
	if err := ch.QueueBind(q.Name, key, exchange, false, nil); err != nil {
		return nil, fmt.Errorf("queue bind: %w", err)
	}
	msgs, err := ch.Consume(q.Name, "", exclusive, exclusive, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("queue consume: %w", err)
	}
	return msgs, nil
}

// Close closes the publishing channel and the connection.
func (b *AMQPBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ch != nil {
		_ = b.ch.Close()
	}
	if b.conn != nil {
		return b.conn.Close()
	}
	return nil
}

type amqpSubscription struct {
	ch   *amqp.Channel
	out  chan SeatUpdateEvent
	done chan struct{}
	once sync.Once
}

func (s *amqpSubscription) pump(ctx context.Context, topic string, msgs <-chan amqp.Delivery, logger *log.Logger) {
	defer close(s.out)
	for {
		select {
		case <-ctx.Done():
			_ = s.Close()
			return
		case <-s.done:
			return
		case d, ok := <-msgs:
			if !ok {
				return
			}
			var ev SeatUpdateEvent
			if err := json.Unmarshal(d.Body, &ev); err != nil {
				logger.Warnj(log.JSON{"msg": "undecodable seat update", "topic": topic, "error": err.Error()})
				continue
			}
			if !offer(s.out, ev) {
				logger.Warnj(log.JSON{"msg": "subscriber buffer full, event dropped", "topic": topic, "event_id": ev.ID})
			}
		}
	}
}

func (s *amqpSubscription) Events() <-chan SeatUpdateEvent { return s.out }

func (s *amqpSubscription) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		err = s.ch.Close()
	})
	return err
}
