package model

import "time"

// SeatStatus is the integer persisted in seat_locks.status.
type SeatStatus int

const (
	SeatBooked SeatStatus = 1
	SeatFree   SeatStatus = 2
	SeatHeld   SeatStatus = 3
)

// String returns the upper-case status label.
func (s SeatStatus) String() string {
	switch s {
	case SeatBooked:
		return "BOOKED"
	case SeatFree:
		return "FREE"
	case SeatHeld:
		return "HELD"
	default:
		return "UNKNOWN"
	}
}

// SeatLock is the per-seat state of a trip.  A row only exists once the
// seat has been touched; readers synthesize a FREE value otherwise.
//
// Fields:
//  TripID        – trip the seat belongs to.
//  SeatCode      – row letter + seat number, e.g. "A1".
//  Status        – FREE, HELD or BOOKED.
//  HolderUserID  – user holding the seat (nil unless HELD).
//  HoldExpiresAt – end of the temporary hold (nil unless HELD).
type SeatLock struct {
	TripID        uint64     `json:"trip_id"`
	SeatCode      string     `json:"seat_code"`
	Status        SeatStatus `json:"status"`
	HolderUserID  *uint64    `json:"holder_user_id,omitempty"`
	HoldExpiresAt *time.Time `json:"hold_expires_at,omitempty"`
}

// FreeSeatLock is the implicit value of a seat that has no row yet.
func FreeSeatLock(tripID uint64, code string) SeatLock {
	return SeatLock{TripID: tripID, SeatCode: code, Status: SeatFree}
}

// HoldExpired reports whether a HELD lock has passed its expiry at now.
// Non-HELD locks and holds without an expiry count as expired.
func (l SeatLock) HoldExpired(now time.Time) bool {
	if l.Status != SeatHeld || l.HoldExpiresAt == nil {
		return true
	}
	return !now.Before(*l.HoldExpiresAt)
}

// AvailableAt reports whether the seat may be selected at now: it is FREE,
// or HELD with an expired hold.
func (l SeatLock) AvailableAt(now time.Time) bool {
	return l.Status == SeatFree || (l.Status == SeatHeld && l.HoldExpired(now))
}

// ActiveHold reports whether the seat is HELD by a hold that has not yet
// expired.
func (l SeatLock) ActiveHold(now time.Time) bool {
	return l.Status == SeatHeld && !l.HoldExpired(now)
}

// HeldBy reports whether userID holds an active hold on the seat.
func (l SeatLock) HeldBy(userID uint64, now time.Time) bool {
	return l.ActiveHold(now) && l.HolderUserID != nil && *l.HolderUserID == userID
}

// Effective collapses the lock into the state visible at now, treating an
// expired hold as FREE.
func (l SeatLock) Effective(now time.Time) SeatState {
	switch {
	case l.Status == SeatBooked:
		return SeatStateBooked
	case l.ActiveHold(now):
		return SeatStateHeld
	default:
		return SeatStateFree
	}
}

// SeatState is the tri-state view of a seat used by the seat map.
type SeatState int

const (
	SeatStateFree SeatState = iota
	SeatStateHeld
	SeatStateBooked
	seatStateCount
)

// SeatStateStyle is the display metadata attached to each seat state.
type SeatStateStyle struct {
	Label      string
	Color      string
	Message    string
	Selectable bool
}

// seatStateStyles is indexed by SeatState; its length is tied to
// seatStateCount so a new state without a style fails to compile.
var seatStateStyles = [seatStateCount]SeatStateStyle{
	SeatStateFree:   {Label: "free", Color: "#28a745", Message: "Available", Selectable: true},
	SeatStateHeld:   {Label: "held", Color: "#ffc107", Message: "Temporarily selected"},
	SeatStateBooked: {Label: "booked", Color: "#dc3545", Message: "Booked"},
}

// Style returns the display metadata for s.
func (s SeatState) Style() SeatStateStyle {
	if s < 0 || s >= seatStateCount {
		return SeatStateStyle{Label: "unknown", Color: "#6c757d"}
	}
	return seatStateStyles[s]
}

// String returns the lower-case label of the state.
func (s SeatState) String() string { return s.Style().Label }
