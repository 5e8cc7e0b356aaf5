package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/bus-seat-reservation/internal/model"
	"github.com/iliyamo/bus-seat-reservation/internal/queue"
)

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, topic string, ev queue.SeatUpdateEvent) error {
	return m.Called(ctx, topic, ev).Error(0)
}

func TestPublishFailureDoesNotFailTransition(t *testing.T) {
	f := newFixture(t, 4, 0, DefaultHoldTTL)
	pub := &mockPublisher{}
	pub.On("Publish", mock.Anything, "seat-updates-1", mock.MatchedBy(func(ev queue.SeatUpdateEvent) bool {
		return ev.Action == queue.ActionSelected && ev.SeatCode == "A1" && ev.Snapshot != nil
	})).Return(queue.ErrClosed).Once()

	seats := NewSeatMapService(SeatMapDeps{
		Trips:        f.store,
		Locks:        f.store,
		Bookings:     f.store,
		Availability: f.availability,
		Publisher:    pub,
	}, WithSeatMapClock(f.clock.Now))

	lock, err := seats.SelectSeat(context.Background(), 1, "A1", 5)
	require.NoError(t, err)
	assert.Equal(t, model.SeatHeld, lock.Status)
	pub.AssertExpectations(t)
}

func TestTransitionInvalidatesCache(t *testing.T) {
	f := newFixture(t, 4, 0, DefaultHoldTTL)
	ctx := context.Background()
	_, err := f.availability.GetOrCompute(ctx, 1)
	require.NoError(t, err)
	_, err = f.seats.GetSeatMap(ctx, 1)
	require.NoError(t, err)

	_, err = f.store.AdjustBooked(ctx, 1, 1, 0)
	require.NoError(t, err)
	_, err = f.seats.SelectSeat(ctx, 1, "B1", 5)
	require.NoError(t, err)

	snap, err := f.availability.GetOrCompute(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, snap.BookedCount)
	m, err := f.seats.GetSeatMap(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, m.Held)
}
