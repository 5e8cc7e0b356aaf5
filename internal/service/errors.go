// Package service implements the seat inventory use cases on top of the
// repositories: cached availability, the seat map with temporary holds,
// the expiry reaper and live seat update fan-out.
package service

import "errors"

// ErrNotAuthorized is returned when a user releases a seat held by someone
// else or one that is already booked.
var ErrNotAuthorized = errors.New("not authorized")

// ErrTooManySeats is returned when a request names more than
// MaxSeatsPerRequest seats.
var ErrTooManySeats = errors.New("too many seats requested")

// ErrInvalidSeatCode is returned for codes that are not a row letter
// followed by a seat number.
var ErrInvalidSeatCode = errors.New("invalid seat code")

// ErrTripNotBookable is returned when the trip is cancelled or departed.
var ErrTripNotBookable = errors.New("trip is not open for booking")

// ErrTooManyTrips is returned when a batch availability request names more
// than MaxTripsPerRequest trips.
var ErrTooManyTrips = errors.New("too many trips requested")

// ErrInvalidPlaces is returned when a places check asks for fewer than 1 or
// more than MaxSeatsPerRequest seats.
var ErrInvalidPlaces = errors.New("invalid number of places")

// ErrNoSeats is returned when a booking names no seat at all.
var ErrNoSeats = errors.New("no seats given")

// ErrLiveDisabled is returned by Subscribe when no subscriber backend or
// token secret was configured.
var ErrLiveDisabled = errors.New("live updates are not configured")

const (
	MaxSeatsPerRequest = 20
	MaxTripsPerRequest = 20
)
