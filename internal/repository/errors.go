// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as the
// seat map service and the HTTP handlers to distinguish between the
// failure scenarios of the seat inventory. Every error returned from
// inside a transaction means the transaction was rolled back.
package repository

import "errors"

// ErrSeatUnavailable is returned when a seat is booked or actively held
// by someone else. Handlers translate it into an HTTP 409 response.
var ErrSeatUnavailable = errors.New("seat unavailable")

// ErrNotHolder is returned when a release or confirmation is attempted by
// a user that does not hold the seat.
var ErrNotHolder = errors.New("not the seat holder")

// ErrCapacityExceeded is returned when a booked-count adjustment would
// push the counter above the trip capacity.
var ErrCapacityExceeded = errors.New("capacity exceeded")

// ErrNegativeCount is returned when a booked-count adjustment would push
// the counter below zero.
var ErrNegativeCount = errors.New("booked count cannot be negative")

// ErrTripNotFound indicates that a trip was not located in the DB.
var ErrTripNotFound = errors.New("trip not found")

// ErrSeatNotFound indicates that a seat code is not part of the trip's
// seat plan.
var ErrSeatNotFound = errors.New("seat not found")

// ErrSeatPlanNotFound indicates that the seat plan referenced by a trip
// does not exist.
var ErrSeatPlanNotFound = errors.New("seat plan not found")

// ErrForbidden is returned when the caller attempts an operation on a
// resource they do not own. Handlers should translate this into an HTTP
// 403 response.
var ErrForbidden = errors.New("forbidden")

// ErrConflict is returned when an update cannot be performed because of
// conflicting state, such as cancelling a seat that is not booked.
// Handlers should translate this into an HTTP 409 response.
var ErrConflict = errors.New("conflict")
