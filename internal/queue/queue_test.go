package queue

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/bus-seat-reservation/internal/model"
	"github.com/iliyamo/bus-seat-reservation/internal/utils"
)

var eventTime = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func recv(t *testing.T, sub Subscription) SeatUpdateEvent {
	t.Helper()
	select {
	case ev, ok := <-sub.Events():
		require.True(t, ok, "subscription closed")
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("no event received")
	}
	return SeatUpdateEvent{}
}

func TestTopic(t *testing.T) {
	assert.Equal(t, "seat-updates-42", Topic(42))
	id, ok := TripFromTopic("seat-updates-42")
	assert.True(t, ok)
	assert.Equal(t, uint64(42), id)
	_, ok = TripFromTopic("seat-updates-x")
	assert.False(t, ok)
}

func TestEventLogConsumer_HandleMessage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.log")
	c := &EventLogConsumer{Path: path}

	ev := NewSeatUpdateEvent(ActionConfirmed, 0, "C3", nil, eventTime)
	body, err := json.Marshal(ev)
	require.NoError(t, err)
	require.NoError(t, c.handleMessage(Topic(9), body))

	ev.TripID = 5
	body, err = json.Marshal(ev)
	require.NoError(t, err)
	assert.Error(t, c.handleMessage(Topic(9), body), "trip mismatch")
	assert.Error(t, c.handleMessage("orders.created", body))
	assert.Error(t, c.handleMessage(Topic(5), []byte("{")))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "trip_id=9")
	assert.Contains(t, lines[0], "seat=C3")
}

func TestHub_CloseStopsContextWatcher(t *testing.T) {
	h := NewHub(4, nil)
	defer h.Close()
	base := runtime.NumGoroutine()

	subs := make([]Subscription, 0, 20)
	for i := 0; i < 20; i++ {
		sub, err := h.Subscribe(context.Background(), Topic(1))
		require.NoError(t, err)
		subs = append(subs, sub)
	}
	assert.Equal(t, 20, h.Subscribers(Topic(1)))

	for _, sub := range subs {
		require.NoError(t, sub.Close())
		_, ok := <-sub.Events()
		assert.False(t, ok)
		select {
		case <-sub.(*hubSubscription).done:
		default:
			t.Fatal("watcher not released by Close")
		}
	}
	assert.Equal(t, 0, h.Subscribers(Topic(1)))
	assert.Eventually(t, func() bool { return runtime.NumGoroutine() <= base }, time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	sub, err := h.Subscribe(ctx, Topic(2))
	require.NoError(t, err)
	cancel()
	assert.Eventually(t, func() bool { return h.Subscribers(Topic(2)) == 0 }, time.Second, 5*time.Millisecond)
	_, ok := <-sub.Events()
	assert.False(t, ok)
}

func TestHub_DeliversToCurrentSubscribersOnly(t *testing.T) {
	h := NewHub(4, nil)
	defer h.Close()
	ctx := context.Background()

	early, err := h.Subscribe(ctx, Topic(1))
	require.NoError(t, err)
	other, err := h.Subscribe(ctx, Topic(2))
	require.NoError(t, err)

	first := NewSeatUpdateEvent(ActionSelected, 1, "A1", nil, eventTime)
	require.NoError(t, h.Publish(ctx, Topic(1), first))

	late, err := h.Subscribe(ctx, Topic(1))
	require.NoError(t, err)
	second := NewSeatUpdateEvent(ActionReleased, 1, "A1", nil, eventTime)
	require.NoError(t, h.Publish(ctx, Topic(1), second))

	assert.Equal(t, first.ID, recv(t, early).ID)
	assert.Equal(t, second.ID, recv(t, early).ID)
	assert.Equal(t, second.ID, recv(t, late).ID, "late subscriber only sees later events")
	assert.Empty(t, other.Events())
}

func TestHub_DropsWhenBufferFull(t *testing.T) {
	h := NewHub(1, nil)
	defer h.Close()
	ctx := context.Background()
	sub, err := h.Subscribe(ctx, Topic(1))
	require.NoError(t, err)

	require.NoError(t, h.Publish(ctx, Topic(1), NewSeatUpdateEvent(ActionSelected, 1, "A1", nil, eventTime)))
	require.NoError(t, h.Publish(ctx, Topic(1), NewSeatUpdateEvent(ActionSelected, 1, "A2", nil, eventTime)))

	assert.Equal(t, "A1", recv(t, sub).SeatCode)
	assert.Empty(t, sub.Events())
}

func TestHub_ContextCancelClosesSubscription(t *testing.T) {
	h := NewHub(1, nil)
	defer h.Close()
	ctx, cancel := context.WithCancel(context.Background())
	sub, err := h.Subscribe(ctx, Topic(1))
	require.NoError(t, err)
	cancel()

	assert.Eventually(t, func() bool { return h.Subscribers(Topic(1)) == 0 }, time.Second, 10*time.Millisecond)
	_, ok := <-sub.Events()
	assert.False(t, ok)
}

func TestRedisBus_PublishSubscribe(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()
	bus := NewRedisBus(rdb, 8, nil)
	ctx := context.Background()

	sub, err := bus.Subscribe(ctx, Topic(9))
	require.NoError(t, err)
	defer sub.Close()

	actor := uint64(7)
	ev := NewSeatUpdateEvent(ActionConfirmed, 9, "B2", &actor, eventTime)
	snap := model.NewAvailabilitySnapshot(model.TripCounters{TripID: 9, Capacity: 20, BookedCount: 19}, eventTime)
	ev.Snapshot = &snap
	require.NoError(t, bus.Publish(ctx, Topic(9), ev))

	got := recv(t, sub)
	assert.Equal(t, ev.ID, got.ID)
	assert.Equal(t, ActionConfirmed, got.Action)
	require.NotNil(t, got.ActorUserID)
	assert.Equal(t, actor, *got.ActorUserID)
	require.NotNil(t, got.Snapshot)
	assert.Equal(t, model.UrgencyCritical, got.Snapshot.UrgencyLevel)
}

func TestGuardedSubscriber(t *testing.T) {
	const secret = "channel-secret"
	h := NewHub(4, nil)
	defer h.Close()
	g := NewGuardedSubscriber(h, secret).WithClock(func() time.Time { return eventTime })
	ctx := context.Background()

	token, _, err := utils.NewChannelToken(secret, 5, 7, time.Hour, eventTime)
	require.NoError(t, err)
	expired, _, err := utils.NewChannelToken(secret, 5, 7, -time.Minute, eventTime)
	require.NoError(t, err)
	foreign, _, err := utils.NewChannelToken(secret, 6, 7, time.Hour, eventTime)
	require.NoError(t, err)

	for name, tok := range map[string]string{"expired": expired, "other trip": foreign, "garbage": "abc"} {
		t.Run(name, func(t *testing.T) {
			_, _, err := g.Subscribe(ctx, 5, tok)
			assert.ErrorIs(t, err, utils.ErrInvalidToken)
		})
	}
	assert.Equal(t, 0, h.Subscribers(Topic(5)))

	sub, claims, err := g.Subscribe(ctx, 5, token)
	require.NoError(t, err)
	defer sub.Close()
	assert.Equal(t, uint64(7), claims.UserID())
	assert.Equal(t, 1, h.Subscribers(Topic(5)))
}

func TestAppendEventLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "seat-events.log")
	ev := NewSeatUpdateEvent(ActionExpired, 3, "C4", nil, eventTime)
	require.NoError(t, AppendEventLine(path, ev))
	require.NoError(t, AppendEventLine(path, ev))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "Seat expired")
	assert.Contains(t, lines[0], "trip_id=3")
	assert.Contains(t, lines[0], "actor=system")
	assert.Contains(t, lines[0], "event_id="+ev.ID)
}
