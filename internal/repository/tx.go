package repository

import (
	"context"
	"database/sql"
	"time"
)

// withTx runs fn inside a transaction. The transaction is committed when
// fn returns nil and rolled back otherwise, so no partial seat or counter
// change survives a failure.
func withTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	// roll back on every exit path except a successful commit, including
	// a panic inside fn
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(tx); err != nil {
		return err // the deferred rollback releases the row locks
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// clock is embedded by repositories that compare against the current time.
// Holds and expiries are computed in Go rather than with UTC_TIMESTAMP()
// so that every backend shares the same notion of now.
type clock struct {
	Now func() time.Time
}

func (c clock) now() time.Time {
	if c.Now != nil {
		return c.Now().UTC()
	}
	return time.Now().UTC()
}

// nullableID converts an optional user ID into a driver value.
func nullableID(id *uint64) interface{} {
	if id == nil {
		return nil
	}
	return *id
}

// nullableTime converts an optional timestamp into a driver value.
func nullableTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC()
}

// actorPtr maps the system actor (0) to nil.
func actorPtr(actorID uint64) *uint64 {
	if actorID == 0 {
		return nil
	}
	id := actorID
	return &id
}
