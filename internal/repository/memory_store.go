package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/iliyamo/bus-seat-reservation/internal/model"
)

// MemoryStore is an in-process implementation of the seat lock, trip
// counter, booking and trip repositories.  A single mutex plays the role
// of the row locks taken by the MySQL repositories, so every operation is
// atomic and linearizable.  It backs STORE_DRIVER=memory and the
// concurrency tests.
type MemoryStore struct {
	mu    sync.Mutex
	trips map[uint64]model.Trip
	plans map[uint64]model.SeatPlan
	locks map[uint64]map[string]model.SeatLock
	audit map[uint64][]model.AuditRecord
	clock
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		trips: make(map[uint64]model.Trip),
		plans: make(map[uint64]model.SeatPlan),
		locks: make(map[uint64]map[string]model.SeatLock),
		audit: make(map[uint64][]model.AuditRecord),
	}
}

// WithClock replaces the time source of the store.
func (s *MemoryStore) WithClock(now func() time.Time) *MemoryStore {
	s.mu.Lock()
	s.Now = now
	s.mu.Unlock()
	return s
}

// PutTrip inserts or replaces a trip.
func (s *MemoryStore) PutTrip(t model.Trip) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trips[t.ID] = t
}

// PutSeatPlan inserts or replaces a seat plan.
func (s *MemoryStore) PutSeatPlan(p model.SeatPlan) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.plans[p.ID] = p
}

// GetTrip implements TripRepo.GetTrip.
func (s *MemoryStore) GetTrip(_ context.Context, id uint64) (model.Trip, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.trips[id]
	if !ok {
		return model.Trip{}, ErrTripNotFound
	}
	return t, nil
}

// GetSeatPlan implements TripRepo.GetSeatPlan.
func (s *MemoryStore) GetSeatPlan(_ context.Context, id uint64) (model.SeatPlan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.plans[id]
	if !ok {
		return model.SeatPlan{}, ErrSeatPlanNotFound
	}
	return p, nil
}

// Get implements SeatLockRepo.Get.
func (s *MemoryStore) Get(_ context.Context, tripID uint64, code string) (model.SeatLock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lockOf(tripID, code), nil
}

// GetMany implements SeatLockRepo.GetMany.
func (s *MemoryStore) GetMany(_ context.Context, tripID uint64, codes []string) (map[string]model.SeatLock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]model.SeatLock, len(codes))
	for _, c := range codes {
		out[c] = s.lockOf(tripID, c)
	}
	return out, nil
}

// ListByStatus implements SeatLockRepo.ListByStatus.
func (s *MemoryStore) ListByStatus(_ context.Context, tripID uint64, status model.SeatStatus) ([]model.SeatLock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.SeatLock
	for _, l := range s.locks[tripID] {
		if l.Status == status {
			out = append(out, copyLock(l))
		}
	}
	sortLocks(out)
	return out, nil
}

// ListAll implements SeatLockRepo.ListAll.
func (s *MemoryStore) ListAll(_ context.Context, tripID uint64) ([]model.SeatLock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.SeatLock
	for _, l := range s.locks[tripID] {
		out = append(out, copyLock(l))
	}
	sortLocks(out)
	return out, nil
}

// ListExpired implements SeatLockRepo.ListExpired.
func (s *MemoryStore) ListExpired(_ context.Context, now time.Time, limit int) ([]model.SeatLock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.SeatLock
	for _, seats := range s.locks {
		for _, l := range seats {
			if l.Status == model.SeatHeld && l.HoldExpired(now) {
				out = append(out, copyLock(l))
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].HoldExpiresAt, out[j].HoldExpiresAt
		if a != nil && b != nil && !a.Equal(*b) {
			return a.Before(*b)
		}
		if out[i].TripID != out[j].TripID {
			return out[i].TripID < out[j].TripID
		}
		return out[i].SeatCode < out[j].SeatCode
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Hold implements SeatLockRepo.Hold.
func (s *MemoryStore) Hold(_ context.Context, tripID uint64, code string, userID uint64, ttl time.Duration) (model.SeatLock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if !s.lockOf(tripID, code).AvailableAt(now) {
		return model.SeatLock{}, ErrSeatUnavailable
	}
	holder := userID
	expires := now.Add(ttl)
	l := model.SeatLock{TripID: tripID, SeatCode: code, Status: model.SeatHeld, HolderUserID: &holder, HoldExpiresAt: &expires}
	s.setLock(l)
	return copyLock(l), nil
}

// Release implements SeatLockRepo.Release.
func (s *MemoryStore) Release(_ context.Context, tripID uint64, code string, userID uint64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur := s.lockOf(tripID, code)
	switch cur.Status {
	case model.SeatFree:
		return false, nil
	case model.SeatBooked:
		return false, ErrNotHolder
	}
	if cur.ActiveHold(s.now()) && (cur.HolderUserID == nil || *cur.HolderUserID != userID) {
		return false, ErrNotHolder
	}
	s.setLock(model.FreeSeatLock(tripID, code))
	return true, nil
}

// ReleaseExpired implements SeatLockRepo.ReleaseExpired.
func (s *MemoryStore) ReleaseExpired(_ context.Context, tripID uint64, code string, now time.Time) (model.SeatLock, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur := s.lockOf(tripID, code)
	if cur.Status != model.SeatHeld || !cur.HoldExpired(now) {
		return model.SeatLock{}, false, nil
	}
	s.setLock(model.FreeSeatLock(tripID, code))
	return cur, true, nil
}

// Confirm implements SeatLockRepo.Confirm.
func (s *MemoryStore) Confirm(_ context.Context, tripID uint64, code string, actorID uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkConfirm(tripID, code, actorID, s.now()); err != nil {
		return err
	}
	s.setLock(model.SeatLock{TripID: tripID, SeatCode: code, Status: model.SeatBooked, HolderUserID: actorPtr(actorID)})
	return nil
}

// Read implements TripCounterRepo.Read.
func (s *MemoryStore) Read(_ context.Context, tripID uint64) (model.TripCounters, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.trips[tripID]
	if !ok {
		return model.TripCounters{}, ErrTripNotFound
	}
	return countersOf(t), nil
}

// AdjustBooked implements TripCounterRepo.AdjustBooked.
func (s *MemoryStore) AdjustBooked(_ context.Context, tripID uint64, delta int, actorID uint64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkAdjust(tripID, delta); err != nil {
		return 0, err
	}
	return s.applyAdjust(tripID, delta, actorID), nil
}

// History implements TripCounterRepo.History.
func (s *MemoryStore) History(_ context.Context, tripID uint64, limit int) ([]model.AuditRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := s.audit[tripID]
	out := make([]model.AuditRecord, 0, len(rows))
	for i := len(rows) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, rows[i])
	}
	return out, nil
}

// ConfirmBooking implements BookingRepo.ConfirmBooking.
func (s *MemoryStore) ConfirmBooking(_ context.Context, tripID uint64, codes []string, actorID uint64) (int, error) {
	codes = SortedUniqueCodes(codes)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.trips[tripID]; !ok {
		return 0, ErrTripNotFound
	}
	now := s.now()
	for _, c := range codes {
		if err := s.checkConfirm(tripID, c, actorID, now); err != nil {
			return 0, err
		}
	}
	if err := s.checkAdjust(tripID, len(codes)); err != nil {
		return 0, err
	}
	for _, c := range codes {
		s.setLock(model.SeatLock{TripID: tripID, SeatCode: c, Status: model.SeatBooked, HolderUserID: actorPtr(actorID)})
	}
	return s.applyAdjust(tripID, len(codes), actorID), nil
}

// CancelBooking implements BookingRepo.CancelBooking.
func (s *MemoryStore) CancelBooking(_ context.Context, tripID uint64, codes []string, actorID uint64) (int, error) {
	codes = SortedUniqueCodes(codes)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.trips[tripID]; !ok {
		return 0, ErrTripNotFound
	}
	for _, c := range codes {
		if s.lockOf(tripID, c).Status != model.SeatBooked {
			return 0, ErrConflict
		}
	}
	if err := s.checkAdjust(tripID, -len(codes)); err != nil {
		return 0, err
	}
	for _, c := range codes {
		s.setLock(model.FreeSeatLock(tripID, c))
	}
	return s.applyAdjust(tripID, -len(codes), actorID), nil
}

func (s *MemoryStore) lockOf(tripID uint64, code string) model.SeatLock {
	if l, ok := s.locks[tripID][code]; ok {
		return copyLock(l)
	}
	return model.FreeSeatLock(tripID, code)
}

func (s *MemoryStore) setLock(l model.SeatLock) {
	seats, ok := s.locks[l.TripID]
	if !ok {
		seats = make(map[string]model.SeatLock)
		s.locks[l.TripID] = seats
	}
	seats[l.SeatCode] = copyLock(l)
}

func (s *MemoryStore) checkConfirm(tripID uint64, code string, actorID uint64, now time.Time) error {
	cur := s.lockOf(tripID, code)
	if cur.Status == model.SeatBooked {
		return ErrSeatUnavailable
	}
	if actorID != 0 && cur.ActiveHold(now) && !cur.HeldBy(actorID, now) {
		return ErrNotHolder
	}
	return nil
}

func (s *MemoryStore) checkAdjust(tripID uint64, delta int) error {
	t, ok := s.trips[tripID]
	if !ok {
		return ErrTripNotFound
	}
	after := t.BookedCount + delta
	if after < 0 {
		return ErrNegativeCount
	}
	if after > t.Capacity {
		return ErrCapacityExceeded
	}
	return nil
}

func (s *MemoryStore) applyAdjust(tripID uint64, delta int, actorID uint64) int {
	t := s.trips[tripID]
	before := t.BookedCount
	t.BookedCount += delta
	s.trips[tripID] = t
	s.audit[tripID] = append(s.audit[tripID], model.AuditRecord{
		TripID:        tripID,
		Before:        before,
		After:         t.BookedCount,
		Delta:         delta,
		OperationKind: model.OperationKindFor(delta),
		ActorID:       actorPtr(actorID),
		Timestamp:     s.now(),
	})
	return t.BookedCount
}

func countersOf(t model.Trip) model.TripCounters {
	return model.TripCounters{TripID: t.ID, Capacity: t.Capacity, BookedCount: t.BookedCount, Status: t.Status}
}

// copyLock detaches the pointer fields so callers cannot mutate stored
// state.
func copyLock(l model.SeatLock) model.SeatLock {
	if l.HolderUserID != nil {
		id := *l.HolderUserID
		l.HolderUserID = &id
	}
	if l.HoldExpiresAt != nil {
		t := *l.HoldExpiresAt
		l.HoldExpiresAt = &t
	}
	return l
}

func sortLocks(locks []model.SeatLock) {
	sort.Slice(locks, func(i, j int) bool { return locks[i].SeatCode < locks[j].SeatCode })
}
