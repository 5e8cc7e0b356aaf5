package service

import (
	"context"
	"time"

	"github.com/labstack/gommon/log"

	"github.com/iliyamo/bus-seat-reservation/internal/model"
	"github.com/iliyamo/bus-seat-reservation/internal/queue"
)

// Reaper defaults.
const (
	DefaultReaperInterval = 5 * time.Second
	DefaultReaperBatch    = 500
)

// Reaper frees HELD seats whose hold expired.  Readers already treat an
// expired hold as free; the reaper makes it visible in the store, the
// cache and to live subscribers.
type Reaper struct {
	locks    SeatLockStore
	notify   *notifier
	interval time.Duration
	batch    int
	now      func() time.Time
	logger   *log.Logger
}

// ReaperOption customizes a Reaper.
type ReaperOption func(*Reaper)

// WithReaperInterval overrides DefaultReaperInterval.
func WithReaperInterval(d time.Duration) ReaperOption {
	return func(r *Reaper) {
		if d > 0 {
			r.interval = d
		}
	}
}

// WithReaperBatch overrides DefaultReaperBatch.
func WithReaperBatch(n int) ReaperOption {
	return func(r *Reaper) {
		if n > 0 {
			r.batch = n
		}
	}
}

// WithReaperClock replaces the time source.
func WithReaperClock(now func() time.Time) ReaperOption {
	return func(r *Reaper) { r.now = now }
}

// WithReaperLogger sets the logger.
func WithReaperLogger(l *log.Logger) ReaperOption {
	return func(r *Reaper) { r.logger = l }
}

// NewReaper builds a reaper.  publisher may be nil.
func NewReaper(locks SeatLockStore, availability *AvailabilityCache, publisher queue.Publisher, opts ...ReaperOption) *Reaper {
	r := &Reaper{
		locks:    locks,
		interval: DefaultReaperInterval,
		batch:    DefaultReaperBatch,
		now:      time.Now,
		logger:   log.New("reaper"),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.notify = &notifier{availability: availability, publisher: publisher, now: r.now, logger: r.logger}
	return r
}

// Sweep releases up to one batch of expired holds and returns how many
// seats were freed.  A seat that fails or was re-held in the meantime is
// skipped.
func (r *Reaper) Sweep(ctx context.Context) (int, error) {
	now := r.now()
	expired, err := r.locks.ListExpired(ctx, now, r.batch)
	if err != nil {
		return 0, err
	}
	reaped := 0
	for _, l := range expired {
		prev, released, err := r.locks.ReleaseExpired(ctx, l.TripID, l.SeatCode, now)
		if err != nil {
			r.logger.Errorj(log.JSON{"msg": "release expired hold failed", "trip_id": l.TripID, "seat": l.SeatCode, "error": err.Error()})
			continue
		}
		if !released {
			continue
		}
		reaped++
		r.notify.seatChanged(ctx, queue.ActionExpired, model.FreeSeatLock(l.TripID, l.SeatCode), prev.HolderUserID)
	}
	return reaped, nil
}

// Run sweeps every interval until ctx is done.
func (r *Reaper) Run(ctx context.Context) error {
	t := time.NewTicker(r.interval)
	defer t.Stop()
	r.logger.Infoj(log.JSON{"msg": "reaper started", "interval": r.interval.String(), "batch": r.batch})
	for {
		select {
		case <-ctx.Done():
			r.logger.Infoj(log.JSON{"msg": "reaper stopped"})
			return nil
		case <-t.C:
			n, err := r.Sweep(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				r.logger.Errorj(log.JSON{"msg": "sweep failed", "error": err.Error()})
				continue
			}
			if n > 0 {
				r.logger.Infoj(log.JSON{"msg": "expired holds released", "count": n})
			}
		}
	}
}
