package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/bus-seat-reservation/internal/model"
)

// TripRepo reads trips and their seat plans.  Trip scheduling owns these
// tables; the seat inventory only reads them.
type TripRepo struct {
	db *sql.DB
}

// NewTripRepo constructs a TripRepo with the given DB handle.
func NewTripRepo(db *sql.DB) *TripRepo { return &TripRepo{db: db} }

// DB exposes the underlying sql.DB.
func (r *TripRepo) DB() *sql.DB { return r.db }

// GetTrip retrieves a trip by its ID.  It returns ErrTripNotFound if there
// is no matching row.
func (r *TripRepo) GetTrip(ctx context.Context, id uint64) (model.Trip, error) {
	const q = `SELECT id, capacity, booked_count, status, seat_plan_id, departs_at FROM trips WHERE id = ?`
	var (
		t       model.Trip
		status  int
		departs time.Time
	)
	err := r.db.QueryRowContext(ctx, q, id).Scan(&t.ID, &t.Capacity, &t.BookedCount, &status, &t.SeatPlanID, &departs)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Trip{}, ErrTripNotFound
	}
	if err != nil {
		return model.Trip{}, err
	}
	t.Status = model.TripStatus(status)
	t.DepartsAt = departs.UTC()
	return t, nil
}

// GetSeatPlan loads and parses a seat plan layout.
func (r *TripRepo) GetSeatPlan(ctx context.Context, id uint64) (model.SeatPlan, error) {
	const q = `SELECT id, name, layout FROM seat_plans WHERE id = ?`
	var (
		planID uint64
		name   string
		layout []byte
	)
	err := r.db.QueryRowContext(ctx, q, id).Scan(&planID, &name, &layout)
	if errors.Is(err, sql.ErrNoRows) {
		return model.SeatPlan{}, ErrSeatPlanNotFound
	}
	if err != nil {
		return model.SeatPlan{}, err
	}
	return model.ParseSeatPlanLayout(planID, name, layout)
}
