package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/labstack/gommon/log"
	"golang.org/x/sync/singleflight"

	"github.com/iliyamo/bus-seat-reservation/internal/cache"
	"github.com/iliyamo/bus-seat-reservation/internal/model"
)

// DefaultCacheTTL is the lifetime of cached availability snapshots and
// seat maps.
const DefaultCacheTTL = 30 * time.Second

// Freshness bands of a cached snapshot.
const (
	FreshnessExcellent = "excellent"
	FreshnessGood      = "good"
	FreshnessStale     = "stale"
)

// Freshness labels a snapshot by the age of its cache entry.
func Freshness(age time.Duration) string {
	switch {
	case age < 10*time.Second:
		return FreshnessExcellent
	case age < 30*time.Second:
		return FreshnessGood
	default:
		return FreshnessStale
	}
}

func availabilityKey(tripID uint64) string { return fmt.Sprintf("availability:%d", tripID) }
func seatMapKey(tripID uint64) string      { return fmt.Sprintf("seatmap:%d", tripID) }

type cachedSnapshot struct {
	Snapshot model.AvailabilitySnapshot `json:"snapshot"`
	CachedAt time.Time                  `json:"cached_at"`
}

// AvailabilityCache serves availability snapshots of trips from a cache
// backend, computing them from the counters on a miss.  A nil backend
// disables caching but still collapses concurrent computations.
type AvailabilityCache struct {
	store    cache.Store
	counters AvailabilityCounter
	ttl      time.Duration
	now      func() time.Time
	logger   *log.Logger
	group    singleflight.Group

	mu  sync.Mutex
	gen map[uint64]uint64 // bumped by Invalidate
}

// AvailabilityCacheOption customizes an AvailabilityCache.
type AvailabilityCacheOption func(*AvailabilityCache)

// WithCacheTTL overrides DefaultCacheTTL.
func WithCacheTTL(d time.Duration) AvailabilityCacheOption {
	return func(c *AvailabilityCache) {
		if d > 0 {
			c.ttl = d
		}
	}
}

// WithCacheClock replaces the time source.
func WithCacheClock(now func() time.Time) AvailabilityCacheOption {
	return func(c *AvailabilityCache) { c.now = now }
}

// WithCacheLogger sets the logger used for backend failures.
func WithCacheLogger(l *log.Logger) AvailabilityCacheOption {
	return func(c *AvailabilityCache) { c.logger = l }
}

// NewAvailabilityCache builds a cache over counters.  store may be nil.
func NewAvailabilityCache(store cache.Store, counters AvailabilityCounter, opts ...AvailabilityCacheOption) *AvailabilityCache {
	c := &AvailabilityCache{store: store, counters: counters, ttl: DefaultCacheTTL, now: time.Now, logger: log.New("availability"), gen: make(map[uint64]uint64)}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// TTL returns the configured entry lifetime.
func (c *AvailabilityCache) TTL() time.Duration { return c.ttl }

// Get returns the cached snapshot with its freshness label.
func (c *AvailabilityCache) Get(ctx context.Context, tripID uint64) (model.AvailabilitySnapshot, bool) {
	if c.store == nil {
		return model.AvailabilitySnapshot{}, false
	}
	var entry cachedSnapshot
	if err := c.store.Get(ctx, availabilityKey(tripID), &entry); err != nil {
		if !errors.Is(err, cache.ErrMiss) {
			c.logger.Warnj(log.JSON{"msg": "availability cache read failed", "trip_id": tripID, "error": err.Error()})
		}
		return model.AvailabilitySnapshot{}, false
	}
	snap := entry.Snapshot
	snap.Freshness = Freshness(c.now().Sub(entry.CachedAt))
	return snap, true
}

// Put stores snap for ttl; ttl <= 0 uses the configured TTL.
func (c *AvailabilityCache) Put(ctx context.Context, snap model.AvailabilitySnapshot, ttl time.Duration) {
	if c.store == nil {
		return
	}
	if ttl <= 0 {
		ttl = c.ttl
	}
	snap.Freshness = ""
	entry := cachedSnapshot{Snapshot: snap, CachedAt: c.now().UTC()}
	if err := c.store.Set(ctx, availabilityKey(snap.TripID), entry, ttl); err != nil {
		c.logger.Warnj(log.JSON{"msg": "availability cache write failed", "trip_id": snap.TripID, "error": err.Error()})
	}
}

// Generation returns the invalidation counter of a trip.  A value derived
// from the store after reading the generation may only be cached while
// Current still reports that generation.
func (c *AvailabilityCache) Generation(tripID uint64) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen[tripID]
}

// Current reports whether no invalidation happened since gen was read.
func (c *AvailabilityCache) Current(tripID, gen uint64) bool {
	return c.Generation(tripID) == gen
}

// Invalidate drops every derived entry of a trip: its snapshot and its
// seat map.  Lookups already in flight are detached so that later callers
// recompute, and their results are no longer cached.
func (c *AvailabilityCache) Invalidate(ctx context.Context, tripID uint64) {
	c.mu.Lock()
	c.gen[tripID]++
	c.mu.Unlock()
	c.group.Forget(strconv.FormatUint(tripID, 10))
	if c.store == nil {
		return
	}
	if err := c.store.Delete(ctx, availabilityKey(tripID), seatMapKey(tripID)); err != nil {
		c.logger.Warnj(log.JSON{"msg": "availability cache invalidation failed", "trip_id": tripID, "error": err.Error()})
	}
}

// Compute derives a snapshot from the counters without touching the
// cache.
func (c *AvailabilityCache) Compute(ctx context.Context, tripID uint64) (model.AvailabilitySnapshot, error) {
	counters, err := c.counters.Read(ctx, tripID)
	if err != nil {
		return model.AvailabilitySnapshot{}, err
	}
	snap := model.NewAvailabilitySnapshot(counters, c.now())
	snap.Freshness = FreshnessExcellent
	return snap, nil
}

// GetOrCompute returns the cached snapshot or computes and caches it.
// Concurrent misses for the same trip share one computation.
func (c *AvailabilityCache) GetOrCompute(ctx context.Context, tripID uint64) (model.AvailabilitySnapshot, error) {
	if snap, ok := c.Get(ctx, tripID); ok {
		return snap, nil
	}
	v, err, _ := c.group.Do(strconv.FormatUint(tripID, 10), func() (interface{}, error) {
		// read the generation before the counters: a write that lands
		// in between bumps it and the stale result is not cached
		gen := c.Generation(tripID)
		snap, err := c.Compute(ctx, tripID)
		if err != nil {
			return nil, err
		}
		if c.Current(tripID, gen) {
			c.Put(ctx, snap, c.ttl)
		}
		return snap, nil
	})
	if err != nil {
		return model.AvailabilitySnapshot{}, err
	}
	return v.(model.AvailabilitySnapshot), nil
}

// AvailabilityService answers the availability queries of the API on top
// of the cache and the authoritative counters.
type AvailabilityService struct {
	cache    *AvailabilityCache
	counters AvailabilityCounter
	now      func() time.Time
}

// NewAvailabilityService wires the service.
func NewAvailabilityService(c *AvailabilityCache, counters AvailabilityCounter) *AvailabilityService {
	return &AvailabilityService{cache: c, counters: counters, now: c.now}
}

// Get returns the snapshot of one trip.
func (s *AvailabilityService) Get(ctx context.Context, tripID uint64) (model.AvailabilitySnapshot, error) {
	return s.cache.GetOrCompute(ctx, tripID)
}

// GetMany returns the snapshots of up to MaxTripsPerRequest trips keyed by
// trip ID.  Unknown trips are omitted.
func (s *AvailabilityService) GetMany(ctx context.Context, tripIDs []uint64) (map[uint64]model.AvailabilitySnapshot, error) {
	if len(tripIDs) > MaxTripsPerRequest {
		return nil, ErrTooManyTrips
	}
	out := make(map[uint64]model.AvailabilitySnapshot, len(tripIDs))
	for _, id := range tripIDs {
		if _, done := out[id]; done {
			continue
		}
		snap, err := s.cache.GetOrCompute(ctx, id)
		if err != nil {
			if isNotFound(err) {
				continue
			}
			return nil, err
		}
		out[id] = snap
	}
	return out, nil
}

// Refresh discards the cached snapshot and recomputes it.
func (s *AvailabilityService) Refresh(ctx context.Context, tripID uint64) (model.AvailabilitySnapshot, error) {
	s.cache.Invalidate(ctx, tripID)
	return s.cache.GetOrCompute(ctx, tripID)
}

// CheckPlaces reports whether places seats can still be booked, reading the
// counters rather than the cache.
func (s *AvailabilityService) CheckPlaces(ctx context.Context, tripID uint64, places int) (model.PlacesCheck, error) {
	if places < 1 || places > MaxSeatsPerRequest {
		return model.PlacesCheck{}, ErrInvalidPlaces
	}
	counters, err := s.counters.Read(ctx, tripID)
	if err != nil {
		return model.PlacesCheck{}, err
	}
	free := counters.FreeCount()
	check := model.PlacesCheck{
		TripID:    tripID,
		Requested: places,
		FreeCount: free,
		Available: counters.Status == model.TripScheduled && free >= places,
		Timestamp: s.now().UTC(),
	}
	switch {
	case counters.Status != model.TripScheduled:
		check.Message = fmt.Sprintf("Trip is %s", counters.Status)
	case check.Available:
		check.Message = fmt.Sprintf("%d seat(s) available", places)
	default:
		check.Message = fmt.Sprintf("Only %d seat(s) left", free)
	}
	return check, nil
}

// History returns the latest counter adjustments of a trip.
func (s *AvailabilityService) History(ctx context.Context, tripID uint64, limit int) ([]model.AuditRecord, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if _, err := s.counters.Read(ctx, tripID); err != nil {
		return nil, err
	}
	return s.counters.History(ctx, tripID, limit)
}
