package queue

import (
	"context"
	"errors"

	"github.com/labstack/gommon/log"
)

// ErrClosed is returned when publishing on a closed bus.
var ErrClosed = errors.New("bus closed")

// DefaultBuffer is the number of undelivered events a subscription keeps
// before newer events are dropped.
const DefaultBuffer = 64

// Publisher delivers an event to the current subscribers of a topic.
// Subscribers that join later never see it.
type Publisher interface {
	Publish(ctx context.Context, topic string, ev SeatUpdateEvent) error
}

// Subscription is a live feed of one topic.
type Subscription interface {
	Events() <-chan SeatUpdateEvent
	Close() error
}

// Subscriber opens subscriptions.  The subscription is active when
// Subscribe returns, so an event published afterwards is delivered.
type Subscriber interface {
	Subscribe(ctx context.Context, topic string) (Subscription, error)
}

// Bus is implemented by every backend.
type Bus interface {
	Publisher
	Subscriber
	Close() error
}

func defaultLogger(l *log.Logger) *log.Logger {
	if l != nil {
		return l
	}
	return log.New("queue")
}

// offer hands ev to ch without blocking and reports whether it was queued.
func offer(ch chan SeatUpdateEvent, ev SeatUpdateEvent) bool {
	select {
	case ch <- ev:
		return true
	default:
		return false
	}
}
