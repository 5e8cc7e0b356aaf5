package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/iliyamo/bus-seat-reservation/internal/model"
)

const seatLockColumns = `trip_id, seat_code, status, holder_user_id, hold_expires_at`

// SeatLockRepo persists the per-seat state of trips in the seat_locks
// table.  Every mutating method runs in its own transaction and locks the
// affected row with SELECT ... FOR UPDATE, so two concurrent holds on the
// same seat serialize and exactly one of them succeeds.
type SeatLockRepo struct {
	db *sql.DB
	clock
}

// NewSeatLockRepo constructs a SeatLockRepo bound to db.
func NewSeatLockRepo(db *sql.DB) *SeatLockRepo { return &SeatLockRepo{db: db} }

// WithClock replaces the time source used for hold expiry comparisons.
func (r *SeatLockRepo) WithClock(now func() time.Time) *SeatLockRepo {
	r.Now = now
	return r
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSeatLock(sc rowScanner) (model.SeatLock, error) {
	var (
		l       model.SeatLock
		status  int
		holder  sql.NullInt64
		expires sql.NullTime
	)
	if err := sc.Scan(&l.TripID, &l.SeatCode, &status, &holder, &expires); err != nil {
		return model.SeatLock{}, err
	}
	l.Status = model.SeatStatus(status)
	if holder.Valid {
		id := uint64(holder.Int64)
		l.HolderUserID = &id
	}
	if expires.Valid {
		t := expires.Time.UTC()
		l.HoldExpiresAt = &t
	}
	return l, nil
}

// Get returns the lock of one seat.  A seat without a row is FREE.
func (r *SeatLockRepo) Get(ctx context.Context, tripID uint64, code string) (model.SeatLock, error) {
	const q = `SELECT ` + seatLockColumns + ` FROM seat_locks WHERE trip_id = ? AND seat_code = ?`
	l, err := scanSeatLock(r.db.QueryRowContext(ctx, q, tripID, code))
	if errors.Is(err, sql.ErrNoRows) {
		return model.FreeSeatLock(tripID, code), nil
	}
	if err != nil {
		return model.SeatLock{}, err
	}
	return l, nil
}

// GetMany returns the locks of the given seats keyed by seat code.  Codes
// without a row are reported FREE.
func (r *SeatLockRepo) GetMany(ctx context.Context, tripID uint64, codes []string) (map[string]model.SeatLock, error) {
	out := make(map[string]model.SeatLock, len(codes))
	if len(codes) == 0 {
		return out, nil
	}
	placeholders := make([]string, len(codes))
	args := make([]interface{}, 0, len(codes)+1)
	args = append(args, tripID)
	for i, c := range codes {
		placeholders[i] = "?"
		args = append(args, c)
	}
	q := `SELECT ` + seatLockColumns + ` FROM seat_locks WHERE trip_id = ? AND seat_code IN (` + strings.Join(placeholders, ",") + `)`
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		l, err := scanSeatLock(rows)
		if err != nil {
			return nil, err
		}
		out[l.SeatCode] = l
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, c := range codes {
		if _, ok := out[c]; !ok {
			out[c] = model.FreeSeatLock(tripID, c)
		}
	}
	return out, nil
}

// ListByStatus returns all rows of a trip with the given status ordered by
// seat code.  Expired holds are still HELD here; callers filter by time.
func (r *SeatLockRepo) ListByStatus(ctx context.Context, tripID uint64, status model.SeatStatus) ([]model.SeatLock, error) {
	const q = `SELECT ` + seatLockColumns + ` FROM seat_locks WHERE trip_id = ? AND status = ? ORDER BY seat_code`
	return r.list(ctx, q, tripID, int(status))
}

// ListAll returns every materialized row of a trip ordered by seat code.
func (r *SeatLockRepo) ListAll(ctx context.Context, tripID uint64) ([]model.SeatLock, error) {
	const q = `SELECT ` + seatLockColumns + ` FROM seat_locks WHERE trip_id = ? ORDER BY seat_code`
	return r.list(ctx, q, tripID)
}

// ListExpired returns up to limit HELD rows, across all trips, whose hold
// ended before now.  The oldest expiries come first.
func (r *SeatLockRepo) ListExpired(ctx context.Context, now time.Time, limit int) ([]model.SeatLock, error) {
	const q = `SELECT ` + seatLockColumns + ` FROM seat_locks WHERE status = ? AND hold_expires_at <= ? ORDER BY hold_expires_at LIMIT ?`
	return r.list(ctx, q, int(model.SeatHeld), now.UTC(), limit)
}

func (r *SeatLockRepo) list(ctx context.Context, q string, args ...interface{}) ([]model.SeatLock, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.SeatLock
	for rows.Next() {
		l, err := scanSeatLock(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// Hold places a temporary hold of userID on the seat for ttl.  A FREE seat
// or a seat whose previous hold expired can be held; anything else yields
// ErrSeatUnavailable.
func (r *SeatLockRepo) Hold(ctx context.Context, tripID uint64, code string, userID uint64, ttl time.Duration) (model.SeatLock, error) {
	var out model.SeatLock
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		cur, err := lockSeatTx(ctx, tx, tripID, code)
		if err != nil {
			return err
		}
		now := r.now()
		// an expired hold of anyone counts as free; it is overwritten
		if !cur.AvailableAt(now) {
			return ErrSeatUnavailable
		}
		holder := userID
		expires := now.Add(ttl)
		out = model.SeatLock{TripID: tripID, SeatCode: code, Status: model.SeatHeld, HolderUserID: &holder, HoldExpiresAt: &expires}
		return writeSeatTx(ctx, tx, out)
	})
	if err != nil {
		return model.SeatLock{}, err
	}
	return out, nil
}

// Release frees a seat held by userID.  Releasing a seat that is already
// FREE, or whose hold has expired, succeeds; changed reports whether a row
// was actually modified.  A BOOKED seat or an active hold of another user
// yields ErrNotHolder.
func (r *SeatLockRepo) Release(ctx context.Context, tripID uint64, code string, userID uint64) (bool, error) {
	changed := false
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		// no row means the seat was never held: nothing to release
		cur, found, err := lockExistingSeatTx(ctx, tx, tripID, code)
		if err != nil || !found {
			return err
		}
		switch cur.Status {
		case model.SeatFree:
			return nil
		case model.SeatBooked:
			return ErrNotHolder
		}
		if cur.ActiveHold(r.now()) && (cur.HolderUserID == nil || *cur.HolderUserID != userID) {
			return ErrNotHolder
		}
		changed = true
		return writeSeatTx(ctx, tx, model.FreeSeatLock(tripID, code))
	})
	if err != nil {
		return false, err
	}
	return changed, nil
}

// ReleaseExpired frees the seat only if it is HELD with a hold expired at
// now.  It returns the lock as it was before the release and whether the
// seat was freed, so a racing re-hold is never clobbered by the reaper.
func (r *SeatLockRepo) ReleaseExpired(ctx context.Context, tripID uint64, code string, now time.Time) (model.SeatLock, bool, error) {
	var prev model.SeatLock
	released := false
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		cur, found, err := lockExistingSeatTx(ctx, tx, tripID, code)
		if err != nil || !found {
			return err
		}
		// re-checked under the row lock; the hold may have been renewed
		// or confirmed since ListExpired saw it
		if cur.Status != model.SeatHeld || !cur.HoldExpired(now) {
			return nil
		}
		prev = cur
		released = true
		return writeSeatTx(ctx, tx, model.FreeSeatLock(tripID, code))
	})
	if err != nil {
		return model.SeatLock{}, false, err
	}
	return prev, released, nil
}

// Confirm marks a seat BOOKED on behalf of actorID (0 is the system).  The
// seat counter is not touched; use BookingRepo.ConfirmBooking to update
// both in one transaction.
func (r *SeatLockRepo) Confirm(ctx context.Context, tripID uint64, code string, actorID uint64) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		return confirmSeatTx(ctx, tx, tripID, code, actorID, r.now())
	})
}

// lockSeatTx materializes the row if needed and locks it.  The upsert takes
// an exclusive lock straight away, which keeps two concurrent first holds
// from deadlocking on a shared-to-exclusive upgrade.
func lockSeatTx(ctx context.Context, tx *sql.Tx, tripID uint64, code string) (model.SeatLock, error) {
	// seats never touched have no row yet; the no-op update leaves an
	// existing row unchanged
	const ins = `INSERT INTO seat_locks (trip_id, seat_code, status) VALUES (?, ?, ?) ON DUPLICATE KEY UPDATE seat_code = seat_code`
	if _, err := tx.ExecContext(ctx, ins, tripID, code, int(model.SeatFree)); err != nil {
		return model.SeatLock{}, err
	}
	// re-read under FOR UPDATE: a concurrent writer waits here until this
	// transaction ends, so the state we decide on cannot change under us
	cur, found, err := lockExistingSeatTx(ctx, tx, tripID, code)
	if err != nil {
		return model.SeatLock{}, err
	}
	if !found {
		// only reachable if the row was deleted between the two statements
		return model.FreeSeatLock(tripID, code), nil
	}
	return cur, nil
}

func lockExistingSeatTx(ctx context.Context, tx *sql.Tx, tripID uint64, code string) (model.SeatLock, bool, error) {
	const q = `SELECT ` + seatLockColumns + ` FROM seat_locks WHERE trip_id = ? AND seat_code = ? FOR UPDATE`
	l, err := scanSeatLock(tx.QueryRowContext(ctx, q, tripID, code))
	if errors.Is(err, sql.ErrNoRows) {
		return model.SeatLock{}, false, nil
	}
	if err != nil {
		return model.SeatLock{}, false, err
	}
	return l, true, nil
}

func writeSeatTx(ctx context.Context, tx *sql.Tx, l model.SeatLock) error {
	const q = `UPDATE seat_locks SET status = ?, holder_user_id = ?, hold_expires_at = ? WHERE trip_id = ? AND seat_code = ?`
	_, err := tx.ExecContext(ctx, q, int(l.Status), nullableID(l.HolderUserID), nullableTime(l.HoldExpiresAt), l.TripID, l.SeatCode)
	return err
}

func confirmSeatTx(ctx context.Context, tx *sql.Tx, tripID uint64, code string, actorID uint64, now time.Time) error {
	cur, err := lockSeatTx(ctx, tx, tripID, code)
	if err != nil {
		return err
	}
	if cur.Status == model.SeatBooked {
		return ErrSeatUnavailable
	}
	// the system may confirm over any hold; a user only over their own
	if actorID != 0 && cur.ActiveHold(now) && !cur.HeldBy(actorID, now) {
		return ErrNotHolder
	}
	return writeSeatTx(ctx, tx, model.SeatLock{TripID: tripID, SeatCode: code, Status: model.SeatBooked, HolderUserID: actorPtr(actorID)})
}

func revertSeatTx(ctx context.Context, tx *sql.Tx, tripID uint64, code string) error {
	cur, found, err := lockExistingSeatTx(ctx, tx, tripID, code)
	if err != nil {
		return err
	}
	if !found || cur.Status != model.SeatBooked {
		return ErrConflict
	}
	return writeSeatTx(ctx, tx, model.FreeSeatLock(tripID, code))
}
