// Package queue fans out seat updates of a trip to live subscribers.  The
// publisher side is backed by an in-process hub, Redis pub/sub or a
// RabbitMQ topic exchange; delivery is at-most-once on every backend.
package queue

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/bus-seat-reservation/internal/model"
)

// Seat update actions.
const (
	ActionSelected  = "selected"
	ActionReleased  = "released"
	ActionExpired   = "expired"
	ActionConfirmed = "confirmed"
	ActionCancelled = "cancelled"
)

const topicPrefix = "seat-updates-"

// Topic returns the channel name carrying the updates of one trip.
func Topic(tripID uint64) string { return fmt.Sprintf("%s%d", topicPrefix, tripID) }

// TripFromTopic parses a topic produced by Topic.
func TripFromTopic(topic string) (uint64, bool) {
	if !strings.HasPrefix(topic, topicPrefix) {
		return 0, false
	}
	id, err := strconv.ParseUint(strings.TrimPrefix(topic, topicPrefix), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return id, true
}

// SeatUpdateEvent is published after every seat state transition.  Seat
// is the state after the transition and Snapshot the trip availability
// recomputed once the cache was invalidated.
type SeatUpdateEvent struct {
	ID          string                      `json:"id"`
	Action      string                      `json:"action"`
	TripID      uint64                      `json:"trip_id"`
	SeatCode    string                      `json:"seat_code"`
	ActorUserID *uint64                     `json:"actor_user_id,omitempty"`
	Seat        *model.SeatLock             `json:"seat,omitempty"`
	Snapshot    *model.AvailabilitySnapshot `json:"snapshot,omitempty"`
	Timestamp   time.Time                   `json:"timestamp"`
}

// NewSeatUpdateEvent stamps an event with a fresh ID.
func NewSeatUpdateEvent(action string, tripID uint64, seatCode string, actor *uint64, at time.Time) SeatUpdateEvent {
	return SeatUpdateEvent{
		ID:          uuid.NewString(),
		Action:      action,
		TripID:      tripID,
		SeatCode:    seatCode,
		ActorUserID: actor,
		Timestamp:   at.UTC(),
	}
}
