package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/bus-seat-reservation/internal/model"
)

// TripCounterRepo owns trips.booked_count.  Each adjustment locks the trip
// row, checks the bounds 0 <= booked_count <= capacity and appends an
// availability_audit row in the same transaction.
type TripCounterRepo struct {
	db *sql.DB
	clock
}

// NewTripCounterRepo constructs a TripCounterRepo bound to db.
func NewTripCounterRepo(db *sql.DB) *TripCounterRepo { return &TripCounterRepo{db: db} }

// WithClock replaces the time source used for audit timestamps.
func (r *TripCounterRepo) WithClock(now func() time.Time) *TripCounterRepo {
	r.Now = now
	return r
}

// Read returns the counters of a trip or ErrTripNotFound.
func (r *TripCounterRepo) Read(ctx context.Context, tripID uint64) (model.TripCounters, error) {
	const q = `SELECT id, capacity, booked_count, status FROM trips WHERE id = ?`
	return scanCounters(r.db.QueryRowContext(ctx, q, tripID))
}

// AdjustBooked adds delta to the booked count of a trip and returns the new
// value.  actorID 0 records a system adjustment.
func (r *TripCounterRepo) AdjustBooked(ctx context.Context, tripID uint64, delta int, actorID uint64) (int, error) {
	var after int
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		c, err := lockCountersTx(ctx, tx, tripID)
		if err != nil {
			return err
		}
		after, err = applyBookedTx(ctx, tx, c, delta, actorID, r.now())
		return err
	})
	if err != nil {
		return 0, err
	}
	return after, nil
}

// History returns the most recent audit rows of a trip, newest first.
func (r *TripCounterRepo) History(ctx context.Context, tripID uint64, limit int) ([]model.AuditRecord, error) {
	const q = `SELECT trip_id, before_count, after_count, delta, operation, actor_id, created_at FROM availability_audit WHERE trip_id = ? ORDER BY id DESC LIMIT ?`
	rows, err := r.db.QueryContext(ctx, q, tripID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.AuditRecord
	for rows.Next() {
		var (
			a     model.AuditRecord
			actor sql.NullInt64
		)
		if err := rows.Scan(&a.TripID, &a.Before, &a.After, &a.Delta, &a.OperationKind, &actor, &a.Timestamp); err != nil {
			return nil, err
		}
		if actor.Valid {
			id := uint64(actor.Int64)
			a.ActorID = &id
		}
		a.Timestamp = a.Timestamp.UTC()
		out = append(out, a)
	}
	return out, rows.Err()
}

func scanCounters(sc rowScanner) (model.TripCounters, error) {
	var (
		c      model.TripCounters
		status int
	)
	err := sc.Scan(&c.TripID, &c.Capacity, &c.BookedCount, &status)
	if errors.Is(err, sql.ErrNoRows) {
		return model.TripCounters{}, ErrTripNotFound
	}
	if err != nil {
		return model.TripCounters{}, err
	}
	c.Status = model.TripStatus(status)
	return c, nil
}

func lockCountersTx(ctx context.Context, tx *sql.Tx, tripID uint64) (model.TripCounters, error) {
	const q = `SELECT id, capacity, booked_count, status FROM trips WHERE id = ? FOR UPDATE`
	return scanCounters(tx.QueryRowContext(ctx, q, tripID))
}

// applyBookedTx updates a trip row already locked by lockCountersTx.
func applyBookedTx(ctx context.Context, tx *sql.Tx, c model.TripCounters, delta int, actorID uint64, now time.Time) (int, error) {
	after := c.BookedCount + delta
	if after < 0 {
		return 0, ErrNegativeCount
	}
	if after > c.Capacity {
		return 0, ErrCapacityExceeded
	}
	if _, err := tx.ExecContext(ctx, `UPDATE trips SET booked_count = ? WHERE id = ?`, after, c.TripID); err != nil {
		return 0, err
	}
	const ins = `INSERT INTO availability_audit (trip_id, before_count, after_count, delta, operation, actor_id, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`
	if _, err := tx.ExecContext(ctx, ins, c.TripID, c.BookedCount, after, delta, model.OperationKindFor(delta), nullableID(actorPtr(actorID)), now); err != nil {
		return 0, err
	}
	return after, nil
}
