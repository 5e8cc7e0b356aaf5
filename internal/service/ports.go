package service

import (
	"context"
	"time"

	"github.com/iliyamo/bus-seat-reservation/internal/model"
)

// SeatLockStore is the per-seat state store.  repository.SeatLockRepo and
// repository.MemoryStore implement it.
type SeatLockStore interface {
	Get(ctx context.Context, tripID uint64, code string) (model.SeatLock, error)
	GetMany(ctx context.Context, tripID uint64, codes []string) (map[string]model.SeatLock, error)
	ListByStatus(ctx context.Context, tripID uint64, status model.SeatStatus) ([]model.SeatLock, error)
	ListAll(ctx context.Context, tripID uint64) ([]model.SeatLock, error)
	ListExpired(ctx context.Context, now time.Time, limit int) ([]model.SeatLock, error)
	Hold(ctx context.Context, tripID uint64, code string, userID uint64, ttl time.Duration) (model.SeatLock, error)
	Release(ctx context.Context, tripID uint64, code string, userID uint64) (bool, error)
	ReleaseExpired(ctx context.Context, tripID uint64, code string, now time.Time) (model.SeatLock, bool, error)
	Confirm(ctx context.Context, tripID uint64, code string, actorID uint64) error
}

// AvailabilityCounter owns trips.booked_count and its audit trail.
type AvailabilityCounter interface {
	Read(ctx context.Context, tripID uint64) (model.TripCounters, error)
	AdjustBooked(ctx context.Context, tripID uint64, delta int, actorID uint64) (int, error)
	History(ctx context.Context, tripID uint64, limit int) ([]model.AuditRecord, error)
}

// BookingStore books or cancels seats and moves the counter atomically.
type BookingStore interface {
	ConfirmBooking(ctx context.Context, tripID uint64, codes []string, actorID uint64) (int, error)
	CancelBooking(ctx context.Context, tripID uint64, codes []string, actorID uint64) (int, error)
}

// TripCatalog reads trips and seat plans.
type TripCatalog interface {
	GetTrip(ctx context.Context, id uint64) (model.Trip, error)
	GetSeatPlan(ctx context.Context, id uint64) (model.SeatPlan, error)
}
