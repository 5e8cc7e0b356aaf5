package service

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/labstack/gommon/log"

	"github.com/iliyamo/bus-seat-reservation/internal/cache"
	"github.com/iliyamo/bus-seat-reservation/internal/model"
	"github.com/iliyamo/bus-seat-reservation/internal/queue"
	"github.com/iliyamo/bus-seat-reservation/internal/repository"
	"github.com/iliyamo/bus-seat-reservation/internal/utils"
)

// Seat map defaults.
const (
	DefaultHoldTTL         = 300 * time.Second
	DefaultChannelTokenTTL = time.Hour
)

// LiveConfig tells a client where and how to follow the seat updates of a
// trip.
type LiveConfig struct {
	TripID    uint64    `json:"trip_id"`
	Topic     string    `json:"channel"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	URL       string    `json:"url,omitempty"`
}

// SeatMapDeps are the collaborators of a SeatMapService.  Cache, Publisher
// and Subscriber may be nil.
type SeatMapDeps struct {
	Trips        TripCatalog
	Locks        SeatLockStore
	Bookings     BookingStore
	Availability *AvailabilityCache
	Reaper       *Reaper
	Cache        cache.Store
	Publisher    queue.Publisher
	Subscriber   queue.Subscriber
}

// SeatMapService exposes the seat map of a trip and the seat selection
// flow.
type SeatMapService struct {
	SeatMapDeps
	notify   *notifier
	guard    *queue.GuardedSubscriber
	holdTTL  time.Duration
	tokenTTL time.Duration
	secret   string
	liveURL  string
	now      func() time.Time
	logger   *log.Logger
}

// SeatMapOption customizes a SeatMapService.
type SeatMapOption func(*SeatMapService)

// WithHoldTTL overrides DefaultHoldTTL.
func WithHoldTTL(d time.Duration) SeatMapOption {
	return func(s *SeatMapService) {
		if d > 0 {
			s.holdTTL = d
		}
	}
}

// WithChannelTokens sets the secret and lifetime of live capability
// tokens.
func WithChannelTokens(secret string, ttl time.Duration) SeatMapOption {
	return func(s *SeatMapService) {
		s.secret = secret
		if ttl > 0 {
			s.tokenTTL = ttl
		}
	}
}

// WithLiveURL sets the public URL returned by LiveConfig.
func WithLiveURL(url string) SeatMapOption {
	return func(s *SeatMapService) { s.liveURL = url }
}

// WithSeatMapClock replaces the time source.
func WithSeatMapClock(now func() time.Time) SeatMapOption {
	return func(s *SeatMapService) { s.now = now }
}

// WithSeatMapLogger sets the logger.
func WithSeatMapLogger(l *log.Logger) SeatMapOption {
	return func(s *SeatMapService) { s.logger = l }
}

// NewSeatMapService wires the service.
func NewSeatMapService(deps SeatMapDeps, opts ...SeatMapOption) *SeatMapService {
	s := &SeatMapService{
		SeatMapDeps: deps,
		holdTTL:     DefaultHoldTTL,
		tokenTTL:    DefaultChannelTokenTTL,
		now:         time.Now,
		logger:      log.New("seatmap"),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.notify = &notifier{availability: deps.Availability, publisher: deps.Publisher, now: s.now, logger: s.logger}
	if deps.Subscriber != nil && s.secret != "" {
		s.guard = queue.NewGuardedSubscriber(deps.Subscriber, s.secret).WithClock(s.now)
	}
	return s
}

// HoldTTL returns the lifetime of new holds.
func (s *SeatMapService) HoldTTL() time.Duration { return s.holdTTL }

// GetSeatMap merges the seat plan of a trip with its booked and actively
// held seats.  The result is cached for the availability TTL.
func (s *SeatMapService) GetSeatMap(ctx context.Context, tripID uint64) (model.SeatMap, error) {
	if s.Cache != nil {
		var cached model.SeatMap
		err := s.Cache.Get(ctx, seatMapKey(tripID), &cached)
		if err == nil {
			return cached, nil
		}
		if !errors.Is(err, cache.ErrMiss) {
			s.logger.Warnj(log.JSON{"msg": "seat map cache read failed", "trip_id": tripID, "error": err.Error()})
		}
	}
	// a map built from reads older than the latest invalidation is
	// returned but not cached
	gen := s.Availability.Generation(tripID)
	trip, err := s.Trips.GetTrip(ctx, tripID)
	if err != nil {
		return model.SeatMap{}, err
	}
	plan, err := s.Trips.GetSeatPlan(ctx, trip.SeatPlanID)
	if err != nil {
		return model.SeatMap{}, err
	}
	locks, err := s.Locks.ListAll(ctx, tripID)
	if err != nil {
		return model.SeatMap{}, err
	}
	byCode := make(map[string]model.SeatLock, len(locks))
	for _, l := range locks {
		byCode[l.SeatCode] = l
	}
	now := s.now()
	m := model.SeatMap{TripID: tripID, SeatPlanID: plan.ID, Seats: make([]model.SeatMapSeat, 0), Timestamp: now.UTC()}
	for _, ps := range plan.Seats() {
		l, ok := byCode[ps.Code]
		if !ok {
			l = model.FreeSeatLock(tripID, ps.Code)
		}
		state := l.Effective(now)
		style := state.Style()
		seat := model.SeatMapSeat{
			Code:       ps.Code,
			Row:        ps.Row,
			Number:     ps.Number,
			Category:   ps.Category,
			Status:     style.Label,
			Color:      style.Color,
			Message:    style.Message,
			Selectable: style.Selectable,
		}
		switch state {
		case model.SeatStateHeld:
			seat.HolderUserID, seat.HoldExpiresAt = l.HolderUserID, l.HoldExpiresAt
			m.Held++
		case model.SeatStateBooked:
			m.Booked++
		default:
			m.Free++
		}
		m.Seats = append(m.Seats, seat)
	}
	m.Total = len(m.Seats)
	if s.Cache != nil && s.Availability.Current(tripID, gen) {
		if err := s.Cache.Set(ctx, seatMapKey(tripID), m, s.Availability.TTL()); err != nil {
			s.logger.Warnj(log.JSON{"msg": "seat map cache write failed", "trip_id": tripID, "error": err.Error()})
		}
	}
	return m, nil
}

// SelectSeat places a temporary hold of userID on a seat of a scheduled
// trip and announces it.
func (s *SeatMapService) SelectSeat(ctx context.Context, tripID uint64, code string, userID uint64) (model.SeatLock, error) {
	code, ok := model.NormalizeSeatCode(code)
	if !ok {
		return model.SeatLock{}, ErrInvalidSeatCode
	}
	trip, err := s.bookableTrip(ctx, tripID)
	if err != nil {
		return model.SeatLock{}, err
	}
	if err := s.checkPlanSeats(ctx, trip, []string{code}); err != nil {
		return model.SeatLock{}, err
	}
	lock, err := s.Locks.Hold(ctx, tripID, code, userID, s.holdTTL)
	if err != nil {
		return model.SeatLock{}, err
	}
	s.notify.seatChanged(ctx, queue.ActionSelected, lock, userPtr(userID))
	return lock, nil
}

// ReleaseSeat drops the hold of userID.  It reports whether the seat
// actually changed; an already free seat is not announced.
func (s *SeatMapService) ReleaseSeat(ctx context.Context, tripID uint64, code string, userID uint64) (bool, error) {
	code, ok := model.NormalizeSeatCode(code)
	if !ok {
		return false, ErrInvalidSeatCode
	}
	changed, err := s.Locks.Release(ctx, tripID, code, userID)
	if errors.Is(err, repository.ErrNotHolder) {
		return false, ErrNotAuthorized
	}
	if err != nil {
		return false, err
	}
	if changed {
		s.notify.seatChanged(ctx, queue.ActionReleased, model.FreeSeatLock(tripID, code), userPtr(userID))
	}
	return changed, nil
}

// CheckSeats reports the state of up to MaxSeatsPerRequest seats.  Codes
// are not checked against the seat plan; a seat never touched is FREE.
func (s *SeatMapService) CheckSeats(ctx context.Context, tripID uint64, codes []string) (map[string]model.SeatCheck, error) {
	if len(codes) > MaxSeatsPerRequest {
		return nil, ErrTooManySeats
	}
	normalized, err := normalizeCodes(codes)
	if err != nil {
		return nil, err
	}
	locks, err := s.Locks.GetMany(ctx, tripID, normalized)
	if err != nil {
		return nil, err
	}
	now := s.now()
	out := make(map[string]model.SeatCheck, len(normalized))
	for _, code := range normalized {
		l := locks[code]
		check := model.SeatCheck{Available: l.AvailableAt(now), Status: model.SeatFree.String()}
		switch l.Effective(now) {
		case model.SeatStateBooked:
			check.Status = model.SeatBooked.String()
		case model.SeatStateHeld:
			check.Status = model.SeatHeld.String()
			check.HolderUserID, check.HoldExpiresAt = l.HolderUserID, l.HoldExpiresAt
		}
		out[code] = check
	}
	return out, nil
}

// ReapExpired runs one reaper sweep.
func (s *SeatMapService) ReapExpired(ctx context.Context) (int, error) {
	return s.Reaper.Sweep(ctx)
}

// ConfirmSeats books seats on behalf of actorID (0 for the system) and
// returns the new booked count.  Either every seat is booked or none is.
func (s *SeatMapService) ConfirmSeats(ctx context.Context, tripID uint64, codes []string, actorID uint64) (int, error) {
	normalized, err := s.bookingCodes(codes)
	if err != nil {
		return 0, err
	}
	trip, err := s.bookableTrip(ctx, tripID)
	if err != nil {
		return 0, err
	}
	if err := s.checkPlanSeats(ctx, trip, normalized); err != nil {
		return 0, err
	}
	after, err := s.Bookings.ConfirmBooking(ctx, tripID, normalized, actorID)
	if err != nil {
		return 0, err
	}
	for _, code := range normalized {
		seat := model.SeatLock{TripID: tripID, SeatCode: code, Status: model.SeatBooked, HolderUserID: userPtr(actorID)}
		s.notify.seatChanged(ctx, queue.ActionConfirmed, seat, userPtr(actorID))
	}
	return after, nil
}

// CancelSeats reverts booked seats to free and returns the new booked
// count.
func (s *SeatMapService) CancelSeats(ctx context.Context, tripID uint64, codes []string, actorID uint64) (int, error) {
	normalized, err := s.bookingCodes(codes)
	if err != nil {
		return 0, err
	}
	after, err := s.Bookings.CancelBooking(ctx, tripID, normalized, actorID)
	if err != nil {
		return 0, err
	}
	for _, code := range normalized {
		s.notify.seatChanged(ctx, queue.ActionCancelled, model.FreeSeatLock(tripID, code), userPtr(actorID))
	}
	return after, nil
}

// ListBooked returns the codes of the booked seats of a trip.
func (s *SeatMapService) ListBooked(ctx context.Context, tripID uint64) ([]string, error) {
	if _, err := s.Trips.GetTrip(ctx, tripID); err != nil {
		return nil, err
	}
	locks, err := s.Locks.ListByStatus(ctx, tripID, model.SeatBooked)
	if err != nil {
		return nil, err
	}
	codes := make([]string, 0, len(locks))
	for _, l := range locks {
		codes = append(codes, l.SeatCode)
	}
	sort.Strings(codes)
	return codes, nil
}

// ListHeld returns the active holds of a trip.  Expired holds not yet
// reaped are left out.
func (s *SeatMapService) ListHeld(ctx context.Context, tripID uint64) ([]model.HeldSeat, error) {
	if _, err := s.Trips.GetTrip(ctx, tripID); err != nil {
		return nil, err
	}
	locks, err := s.Locks.ListByStatus(ctx, tripID, model.SeatHeld)
	if err != nil {
		return nil, err
	}
	now := s.now()
	out := make([]model.HeldSeat, 0, len(locks))
	for _, l := range locks {
		if !l.ActiveHold(now) || l.HolderUserID == nil {
			continue
		}
		out = append(out, model.HeldSeat{SeatCode: l.SeatCode, HolderUserID: *l.HolderUserID, HoldExpiresAt: *l.HoldExpiresAt})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SeatCode < out[j].SeatCode })
	return out, nil
}

// LiveConfig issues a capability token allowing userID to follow the
// trip's seat updates.
func (s *SeatMapService) LiveConfig(ctx context.Context, tripID, userID uint64) (LiveConfig, error) {
	if _, err := s.Trips.GetTrip(ctx, tripID); err != nil {
		return LiveConfig{}, err
	}
	token, exp, err := utils.NewChannelToken(s.secret, tripID, userID, s.tokenTTL, s.now())
	if err != nil {
		return LiveConfig{}, err
	}
	return LiveConfig{TripID: tripID, Topic: queue.Topic(tripID), Token: token, ExpiresAt: exp, URL: s.liveURL}, nil
}

// Subscribe opens a live subscription for the holder of a capability
// token.  Invalid tokens yield utils.ErrInvalidToken and nothing is
// delivered.
func (s *SeatMapService) Subscribe(ctx context.Context, tripID uint64, token string) (queue.Subscription, error) {
	if s.guard == nil {
		return nil, ErrLiveDisabled
	}
	sub, _, err := s.guard.Subscribe(ctx, tripID, token)
	return sub, err
}

func (s *SeatMapService) bookableTrip(ctx context.Context, tripID uint64) (model.Trip, error) {
	trip, err := s.Trips.GetTrip(ctx, tripID)
	if err != nil {
		return model.Trip{}, err
	}
	if !trip.Bookable() {
		return model.Trip{}, ErrTripNotBookable
	}
	return trip, nil
}

func (s *SeatMapService) checkPlanSeats(ctx context.Context, trip model.Trip, codes []string) error {
	plan, err := s.Trips.GetSeatPlan(ctx, trip.SeatPlanID)
	if err != nil {
		return err
	}
	for _, code := range codes {
		if _, ok := plan.Lookup(code); !ok {
			return repository.ErrSeatNotFound
		}
	}
	return nil
}

func (s *SeatMapService) bookingCodes(codes []string) ([]string, error) {
	if len(codes) == 0 {
		return nil, ErrNoSeats
	}
	if len(codes) > MaxSeatsPerRequest {
		return nil, ErrTooManySeats
	}
	normalized, err := normalizeCodes(codes)
	if err != nil {
		return nil, err
	}
	return repository.SortedUniqueCodes(normalized), nil
}

func normalizeCodes(codes []string) ([]string, error) {
	out := make([]string, 0, len(codes))
	for _, c := range codes {
		n, ok := model.NormalizeSeatCode(c)
		if !ok {
			return nil, ErrInvalidSeatCode
		}
		out = append(out, n)
	}
	return out, nil
}
