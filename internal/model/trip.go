package model

import "time"

// TripStatus mirrors the integer stored in trips.status.
type TripStatus int

const (
	TripCancelled TripStatus = 0
	TripScheduled TripStatus = 1
	TripDeparted  TripStatus = 2
)

// String returns the label used in API responses.
func (s TripStatus) String() string {
	switch s {
	case TripScheduled:
		return "SCHEDULED"
	case TripCancelled:
		return "CANCELLED"
	case TripDeparted:
		return "DEPARTED"
	default:
		return "UNKNOWN"
	}
}

// Trip is a scheduled run of a vehicle on a route.  The seat inventory
// core only reads it, except for BookedCount which is mutated through the
// availability counter.  Capacity is owned by trip scheduling.
//
// Fields:
//  ID          – primary key identifier.
//  Capacity    – total number of seats offered on the trip.
//  BookedCount – confirmed reservations; 0 <= BookedCount <= Capacity.
//  Status      – SCHEDULED, CANCELLED or DEPARTED.
//  SeatPlanID  – layout used to render the seat map.
//  DepartsAt   – scheduled departure time (UTC).
type Trip struct {
	ID          uint64     // trips.id
	Capacity    int        // trips.capacity
	BookedCount int        // trips.booked_count
	Status      TripStatus // trips.status
	SeatPlanID  uint64     // trips.seat_plan_id
	DepartsAt   time.Time  // trips.departs_at
}

// Bookable reports whether the trip still accepts holds and bookings.
func (t Trip) Bookable() bool { return t.Status == TripScheduled }

// TripCounters is the aggregate read by the availability counter.
type TripCounters struct {
	TripID      uint64
	Capacity    int
	BookedCount int
	Status      TripStatus
}

// FreeCount is Capacity minus BookedCount.
func (c TripCounters) FreeCount() int { return c.Capacity - c.BookedCount }
