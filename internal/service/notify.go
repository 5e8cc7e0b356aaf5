package service

import (
	"context"
	"errors"
	"time"

	"github.com/labstack/gommon/log"

	"github.com/iliyamo/bus-seat-reservation/internal/model"
	"github.com/iliyamo/bus-seat-reservation/internal/queue"
	"github.com/iliyamo/bus-seat-reservation/internal/repository"
)

// notifier runs the post-commit steps shared by every seat transition:
// drop the trip's derived cache entries, then publish the new seat state
// together with a fresh availability snapshot.
type notifier struct {
	availability *AvailabilityCache
	publisher    queue.Publisher
	now          func() time.Time
	logger       *log.Logger
}

func (n *notifier) seatChanged(ctx context.Context, action string, seat model.SeatLock, actor *uint64) {
	n.availability.Invalidate(ctx, seat.TripID)
	if n.publisher == nil {
		return
	}
	ev := queue.NewSeatUpdateEvent(action, seat.TripID, seat.SeatCode, actor, n.now())
	ev.Seat = &seat
	if snap, err := n.availability.GetOrCompute(ctx, seat.TripID); err == nil {
		ev.Snapshot = &snap
	} else {
		n.logger.Warnj(log.JSON{"msg": "snapshot for seat update failed", "trip_id": seat.TripID, "error": err.Error()})
	}
	if err := n.publisher.Publish(ctx, queue.Topic(seat.TripID), ev); err != nil {
		n.logger.Warnj(log.JSON{"msg": "publish seat update failed", "trip_id": seat.TripID, "seat": seat.SeatCode, "action": action, "error": err.Error()})
	}
}

func isNotFound(err error) bool {
	return errors.Is(err, repository.ErrTripNotFound) || errors.Is(err, repository.ErrSeatPlanNotFound)
}

func userPtr(id uint64) *uint64 {
	if id == 0 {
		return nil
	}
	return &id
}
