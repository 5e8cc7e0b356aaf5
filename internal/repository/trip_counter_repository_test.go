package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/bus-seat-reservation/internal/model"
)

var tripCounterCols = []string{"id", "capacity", "booked_count", "status"}

func TestTripCounterRepo_ReadNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, capacity, booked_count, status FROM trips WHERE id = ?`)).
		WithArgs(42).
		WillReturnRows(sqlmock.NewRows(tripCounterCols))

	_, err = NewTripCounterRepo(db).Read(context.Background(), 42)
	assert.ErrorIs(t, err, ErrTripNotFound)
}

func TestTripCounterRepo_AdjustBookedWritesAudit(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	mock.ExpectBegin()
	mock.ExpectQuery(lockTripSQL).WithArgs(1).
		WillReturnRows(sqlmock.NewRows(tripCounterCols).AddRow(1, 20, 18, 1))
	mock.ExpectExec(updateTripSQL).WithArgs(19, 1).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(insertAuditSQL).WithArgs(1, 18, 19, 1, "reservation", 5, testNow).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	after, err := NewTripCounterRepo(db).WithClock(fixedNow).AdjustBooked(context.Background(), 1, 1, 5)
	require.NoError(t, err)
	assert.Equal(t, 19, after)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTripCounterRepo_AdjustBookedBounds(t *testing.T) {
	cases := []struct {
		name   string
		booked int
		delta  int
		want   error
	}{
		{"above capacity", 20, 1, ErrCapacityExceeded},
		{"below zero", 0, -1, ErrNegativeCount},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			require.NoError(t, err)
			defer db.Close()
			mock.ExpectBegin()
			mock.ExpectQuery(lockTripSQL).WithArgs(1).
				WillReturnRows(sqlmock.NewRows(tripCounterCols).AddRow(1, 20, tc.booked, 1))
			mock.ExpectRollback()

			_, err = NewTripCounterRepo(db).AdjustBooked(context.Background(), 1, tc.delta, 0)
			assert.ErrorIs(t, err, tc.want)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestTripCounterRepo_History(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	cols := []string{"trip_id", "before_count", "after_count", "delta", "operation", "actor_id", "created_at"}
	mock.ExpectQuery(regexp.QuoteMeta(`FROM availability_audit WHERE trip_id = ? ORDER BY id DESC LIMIT ?`)).
		WithArgs(1, 10).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(1, 3, 2, -1, "cancellation", nil, testNow).
			AddRow(1, 2, 3, 1, "reservation", 7, testNow.Add(-time.Minute)))

	got, err := NewTripCounterRepo(db).History(context.Background(), 1, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, model.OperationCancellation, got[0].OperationKind)
	assert.Nil(t, got[0].ActorID)
	require.NotNil(t, got[1].ActorID)
	assert.Equal(t, uint64(7), *got[1].ActorID)
}

func TestBookingRepo_ConfirmBookingLocksTripThenSortedSeats(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	mock.ExpectBegin()
	mock.ExpectQuery(lockTripSQL).WithArgs(1).
		WillReturnRows(sqlmock.NewRows(tripCounterCols).AddRow(1, 40, 3, 1))
	for _, code := range []string{"A1", "B2"} {
		mock.ExpectExec(upsertSeatSQL).WithArgs(1, code, 2).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(lockSeatSQL).WithArgs(1, code).
			WillReturnRows(sqlmock.NewRows(seatLockCols).AddRow(1, code, 3, 7, testNow.Add(time.Minute)))
		mock.ExpectExec(updateSeatSQL).WithArgs(1, 7, nil, 1, code).WillReturnResult(sqlmock.NewResult(0, 1))
	}
	mock.ExpectExec(updateTripSQL).WithArgs(5, 1).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(insertAuditSQL).WithArgs(1, 3, 5, 2, "reservation", 7, testNow).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	after, err := NewBookingRepo(db).WithClock(fixedNow).ConfirmBooking(context.Background(), 1, []string{"B2", "A1", "B2"}, 7)
	require.NoError(t, err)
	assert.Equal(t, 5, after)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepo_CancelBookingRejectsUnbookedSeat(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	mock.ExpectBegin()
	mock.ExpectQuery(lockTripSQL).WithArgs(1).
		WillReturnRows(sqlmock.NewRows(tripCounterCols).AddRow(1, 40, 3, 1))
	mock.ExpectQuery(lockSeatSQL).WithArgs(1, "A1").
		WillReturnRows(sqlmock.NewRows(seatLockCols).AddRow(1, "A1", 2, nil, nil))
	mock.ExpectRollback()

	_, err = NewBookingRepo(db).CancelBooking(context.Background(), 1, []string{"A1"}, 0)
	assert.ErrorIs(t, err, ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTripRepo_GetSeatPlan(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	layout := `{"rows":[{"letter":"A","seats":{"1":"window","2":"aisle"}}]}`
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, name, layout FROM seat_plans WHERE id = ?`)).
		WithArgs(3).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "layout"}).AddRow(3, "coach-2x2", []byte(layout)))

	plan, err := NewTripRepo(db).GetSeatPlan(context.Background(), 3)
	require.NoError(t, err)
	seats := plan.Seats()
	require.Len(t, seats, 2)
	assert.Equal(t, "A1", seats[0].Code)
	assert.Equal(t, model.SeatWindow, seats[0].Category)
}
