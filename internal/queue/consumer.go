package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/labstack/gommon/log"
	amqp "github.com/rabbitmq/amqp091-go"
)

// EventLogQueue is the durable queue feeding the seat event log.
const EventLogQueue = "seat-events.log"

// EventLogConsumer appends every seat update published on the exchange to
// a log file, one line per event.
type EventLogConsumer struct {
	URL      string
	Exchange string
	Path     string
	Logger   *log.Logger
}

// Run connects to RabbitMQ and consumes until ctx is done, reconnecting
// with exponential backoff capped at 30s.
func (c *EventLogConsumer) Run(ctx context.Context) error {
	logger := defaultLogger(c.Logger)
	exchange := c.Exchange
	if exchange == "" {
		exchange = DefaultExchange
	}
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return nil
		}
		conn, err := amqp.Dial(c.URL)
		if err != nil {
			logger.Warnj(log.JSON{"msg": "event log consumer: dial failed", "error": err.Error(), "retry_in": backoff.String()})
			if !sleepCtx(ctx, backoff) {
				return nil
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second
		err = c.consumeLoop(ctx, conn, exchange, logger)
		_ = conn.Close()
		if ctx.Err() != nil {
			return nil
		}
		logger.Warnj(log.JSON{"msg": "event log consumer: consume loop ended, reconnecting", "error": errString(err)})
		if !sleepCtx(ctx, 2*time.Second) {
			return nil
		}
	}
}

func (c *EventLogConsumer) consumeLoop(ctx context.Context, conn *amqp.Connection, exchange string, logger *log.Logger) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()
	if err := ch.Qos(50, 0, false); err != nil {
		logger.Warnj(log.JSON{"msg": "event log consumer: set QoS failed", "error": err.Error()})
	}
	if err := declareExchange(ch, exchange); err != nil {
		return err
	}
	// Hyphenated topics are single routing words, so "#" is the only
	// pattern matching every trip; the exchange carries nothing else.
	msgs, err := bindConsumer(ch, exchange, EventLogQueue, "#", true)
	if err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := c.handleMessage(d.RoutingKey, d.Body); err != nil {
				logger.Errorj(log.JSON{"msg": "event log consumer: handle message failed", "error": err.Error()})
				_ = d.Nack(false, false)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

// handleMessage logs one delivery.  The routing key is the topic the event
// was published on, so it names the trip even when the body does not.
func (c *EventLogConsumer) handleMessage(routingKey string, body []byte) error {
	var ev SeatUpdateEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	tripID, ok := TripFromTopic(routingKey)
	if !ok {
		return fmt.Errorf("routing key %q is not a seat update topic", routingKey)
	}
	switch ev.TripID {
	case 0:
		ev.TripID = tripID
	case tripID:
	default:
		return fmt.Errorf("event %s of trip %d published on %s", ev.ID, ev.TripID, routingKey)
	}
	return AppendEventLine(c.path(), ev)
}

func (c *EventLogConsumer) path() string {
	if c.Path != "" {
		return c.Path
	}
	return filepath.Join("logs", "seat-events.log")
}

// AppendEventLine writes one human readable line describing ev to path,
// creating the file and its directory when needed.
func AppendEventLine(path string, ev SeatUpdateEvent) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir logs: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString(FormatEventLine(ev)); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}

// FormatEventLine renders ev as a single log line.
func FormatEventLine(ev SeatUpdateEvent) string {
	actor := "system"
	if ev.ActorUserID != nil {
		actor = fmt.Sprintf("%d", *ev.ActorUserID)
	}
	free := "-"
	if ev.Snapshot != nil {
		free = fmt.Sprintf("%d/%d", ev.Snapshot.FreeCount, ev.Snapshot.Capacity)
	}
	return fmt.Sprintf("[%s] Seat %s | event_id=%s | trip_id=%d | seat=%s | actor=%s | free=%s\n",
		ev.Timestamp.UTC().Format(time.RFC3339), ev.Action, ev.ID, ev.TripID, ev.SeatCode, actor, free)
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
