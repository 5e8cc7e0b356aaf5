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

var (
	testNow        = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	seatLockCols   = []string{"trip_id", "seat_code", "status", "holder_user_id", "hold_expires_at"}
	upsertSeatSQL  = regexp.QuoteMeta(`INSERT INTO seat_locks (trip_id, seat_code, status) VALUES (?, ?, ?) ON DUPLICATE KEY UPDATE seat_code = seat_code`)
	lockSeatSQL    = regexp.QuoteMeta(`SELECT trip_id, seat_code, status, holder_user_id, hold_expires_at FROM seat_locks WHERE trip_id = ? AND seat_code = ? FOR UPDATE`)
	updateSeatSQL  = regexp.QuoteMeta(`UPDATE seat_locks SET status = ?, holder_user_id = ?, hold_expires_at = ? WHERE trip_id = ? AND seat_code = ?`)
	lockTripSQL    = regexp.QuoteMeta(`SELECT id, capacity, booked_count, status FROM trips WHERE id = ? FOR UPDATE`)
	updateTripSQL  = regexp.QuoteMeta(`UPDATE trips SET booked_count = ? WHERE id = ?`)
	insertAuditSQL = regexp.QuoteMeta(`INSERT INTO availability_audit (trip_id, before_count, after_count, delta, operation, actor_id, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`)
)

func fixedNow() time.Time { return testNow }

func newMockSeatLockRepo(t *testing.T) (*SeatLockRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewSeatLockRepo(db).WithClock(fixedNow), mock
}

func TestSeatLockRepo_GetMissingRowIsFree(t *testing.T) {
	repo, mock := newMockSeatLockRepo(t)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT trip_id, seat_code, status, holder_user_id, hold_expires_at FROM seat_locks WHERE trip_id = ? AND seat_code = ?`)).
		WithArgs(1, "A1").
		WillReturnRows(sqlmock.NewRows(seatLockCols))

	l, err := repo.Get(context.Background(), 1, "A1")
	require.NoError(t, err)
	assert.Equal(t, model.SeatFree, l.Status)
	assert.Nil(t, l.HolderUserID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSeatLockRepo_GetManyFillsMissingCodes(t *testing.T) {
	repo, mock := newMockSeatLockRepo(t)
	exp := testNow.Add(time.Minute)
	mock.ExpectQuery(regexp.QuoteMeta(`FROM seat_locks WHERE trip_id = ? AND seat_code IN (?,?)`)).
		WithArgs(1, "A1", "A2").
		WillReturnRows(sqlmock.NewRows(seatLockCols).AddRow(1, "A1", 3, 7, exp))

	got, err := repo.GetMany(context.Background(), 1, []string{"A1", "A2"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, model.SeatHeld, got["A1"].Status)
	require.NotNil(t, got["A1"].HolderUserID)
	assert.Equal(t, uint64(7), *got["A1"].HolderUserID)
	assert.Equal(t, model.SeatFree, got["A2"].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSeatLockRepo_HoldFreeSeat(t *testing.T) {
	repo, mock := newMockSeatLockRepo(t)
	mock.ExpectBegin()
	mock.ExpectExec(upsertSeatSQL).WithArgs(1, "A1", 2).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(lockSeatSQL).WithArgs(1, "A1").
		WillReturnRows(sqlmock.NewRows(seatLockCols).AddRow(1, "A1", 2, nil, nil))
	mock.ExpectExec(updateSeatSQL).WithArgs(3, 7, sqlmock.AnyArg(), 1, "A1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	l, err := repo.Hold(context.Background(), 1, "A1", 7, 5*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, model.SeatHeld, l.Status)
	require.NotNil(t, l.HoldExpiresAt)
	assert.Equal(t, testNow.Add(5*time.Minute), *l.HoldExpiresAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSeatLockRepo_HoldActiveHoldRollsBack(t *testing.T) {
	repo, mock := newMockSeatLockRepo(t)
	mock.ExpectBegin()
	mock.ExpectExec(upsertSeatSQL).WithArgs(1, "A1", 2).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(lockSeatSQL).WithArgs(1, "A1").
		WillReturnRows(sqlmock.NewRows(seatLockCols).AddRow(1, "A1", 3, 8, testNow.Add(time.Minute)))
	mock.ExpectRollback()

	_, err := repo.Hold(context.Background(), 1, "A1", 7, 5*time.Minute)
	assert.ErrorIs(t, err, ErrSeatUnavailable)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSeatLockRepo_HoldOverExpiredHold(t *testing.T) {
	repo, mock := newMockSeatLockRepo(t)
	mock.ExpectBegin()
	mock.ExpectExec(upsertSeatSQL).WithArgs(1, "A1", 2).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(lockSeatSQL).WithArgs(1, "A1").
		WillReturnRows(sqlmock.NewRows(seatLockCols).AddRow(1, "A1", 3, 8, testNow.Add(-time.Second)))
	mock.ExpectExec(updateSeatSQL).WithArgs(3, 7, sqlmock.AnyArg(), 1, "A1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	_, err := repo.Hold(context.Background(), 1, "A1", 7, time.Minute)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSeatLockRepo_ReleaseByOtherUser(t *testing.T) {
	repo, mock := newMockSeatLockRepo(t)
	mock.ExpectBegin()
	mock.ExpectQuery(lockSeatSQL).WithArgs(1, "A1").
		WillReturnRows(sqlmock.NewRows(seatLockCols).AddRow(1, "A1", 3, 8, testNow.Add(time.Minute)))
	mock.ExpectRollback()

	changed, err := repo.Release(context.Background(), 1, "A1", 7)
	assert.ErrorIs(t, err, ErrNotHolder)
	assert.False(t, changed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSeatLockRepo_ReleaseMissingRowIsNoop(t *testing.T) {
	repo, mock := newMockSeatLockRepo(t)
	mock.ExpectBegin()
	mock.ExpectQuery(lockSeatSQL).WithArgs(1, "A1").WillReturnRows(sqlmock.NewRows(seatLockCols))
	mock.ExpectCommit()

	changed, err := repo.Release(context.Background(), 1, "A1", 7)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSeatLockRepo_ReleaseByHolder(t *testing.T) {
	repo, mock := newMockSeatLockRepo(t)
	mock.ExpectBegin()
	mock.ExpectQuery(lockSeatSQL).WithArgs(1, "A1").
		WillReturnRows(sqlmock.NewRows(seatLockCols).AddRow(1, "A1", 3, 7, testNow.Add(time.Minute)))
	mock.ExpectExec(updateSeatSQL).WithArgs(2, nil, nil, 1, "A1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	changed, err := repo.Release(context.Background(), 1, "A1", 7)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSeatLockRepo_ReleaseExpiredSkipsLiveHold(t *testing.T) {
	repo, mock := newMockSeatLockRepo(t)
	mock.ExpectBegin()
	mock.ExpectQuery(lockSeatSQL).WithArgs(1, "A1").
		WillReturnRows(sqlmock.NewRows(seatLockCols).AddRow(1, "A1", 3, 9, testNow.Add(time.Minute)))
	mock.ExpectCommit()

	_, released, err := repo.ReleaseExpired(context.Background(), 1, "A1", testNow)
	require.NoError(t, err)
	assert.False(t, released)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSeatLockRepo_ConfirmBookedSeat(t *testing.T) {
	repo, mock := newMockSeatLockRepo(t)
	mock.ExpectBegin()
	mock.ExpectExec(upsertSeatSQL).WithArgs(1, "A1", 2).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(lockSeatSQL).WithArgs(1, "A1").
		WillReturnRows(sqlmock.NewRows(seatLockCols).AddRow(1, "A1", 1, 5, nil))
	mock.ExpectRollback()

	err := repo.Confirm(context.Background(), 1, "A1", 7)
	assert.ErrorIs(t, err, ErrSeatUnavailable)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSeatLockRepo_ListExpired(t *testing.T) {
	repo, mock := newMockSeatLockRepo(t)
	mock.ExpectQuery(regexp.QuoteMeta(`FROM seat_locks WHERE status = ? AND hold_expires_at <= ? ORDER BY hold_expires_at LIMIT ?`)).
		WithArgs(3, testNow, 500).
		WillReturnRows(sqlmock.NewRows(seatLockCols).
			AddRow(1, "A1", 3, 7, testNow.Add(-time.Minute)).
			AddRow(2, "B3", 3, 8, testNow.Add(-time.Second)))

	got, err := repo.ListExpired(context.Background(), testNow, 500)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "B3", got[1].SeatCode)
	assert.Equal(t, uint64(2), got[1].TripID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
