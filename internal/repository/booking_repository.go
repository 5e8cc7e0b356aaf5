package repository

import (
	"context"
	"database/sql"
	"sort"
	"time"
)

// BookingRepo books and cancels sets of seats.  A booking marks every seat
// BOOKED and moves trips.booked_count by the number of seats in a single
// transaction: the trip row is locked first and the seats are then locked
// in ascending code order, so concurrent bookings on the same trip cannot
// deadlock.
type BookingRepo struct {
	db *sql.DB
	clock
}

// NewBookingRepo returns a new BookingRepo bound to the given database.
func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

// WithClock replaces the time source used for hold and audit timestamps.
func (r *BookingRepo) WithClock(now func() time.Time) *BookingRepo {
	r.Now = now
	return r
}

// ConfirmBooking books codes on behalf of actorID and returns the new
// booked count.  Any unavailable seat or a capacity overflow rolls the
// whole booking back.
func (r *BookingRepo) ConfirmBooking(ctx context.Context, tripID uint64, codes []string, actorID uint64) (int, error) {
	codes = SortedUniqueCodes(codes)
	var after int
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		c, err := lockCountersTx(ctx, tx, tripID)
		if err != nil {
			return err
		}
		now := r.now()
		for _, code := range codes {
			if err := confirmSeatTx(ctx, tx, tripID, code, actorID, now); err != nil {
				return err
			}
		}
		after, err = applyBookedTx(ctx, tx, c, len(codes), actorID, now)
		return err
	})
	if err != nil {
		return 0, err
	}
	return after, nil
}

// CancelBooking reverts BOOKED seats to FREE and decrements the booked
// count.  A seat that is not BOOKED yields ErrConflict.
func (r *BookingRepo) CancelBooking(ctx context.Context, tripID uint64, codes []string, actorID uint64) (int, error) {
	codes = SortedUniqueCodes(codes)
	var after int
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		c, err := lockCountersTx(ctx, tx, tripID)
		if err != nil {
			return err
		}
		for _, code := range codes {
			if err := revertSeatTx(ctx, tx, tripID, code); err != nil {
				return err
			}
		}
		after, err = applyBookedTx(ctx, tx, c, -len(codes), actorID, r.now())
		return err
	})
	if err != nil {
		return 0, err
	}
	return after, nil
}

// SortedUniqueCodes returns codes sorted ascending without duplicates.
func SortedUniqueCodes(codes []string) []string {
	out := make([]string, 0, len(codes))
	seen := make(map[string]struct{}, len(codes))
	for _, c := range codes {
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}
