package queue

import (
	"context"
	"time"

	"github.com/iliyamo/bus-seat-reservation/internal/utils"
)

// GuardedSubscriber admits a subscription only with a valid capability
// token for the requested trip.
type GuardedSubscriber struct {
	inner  Subscriber
	secret string
	now    func() time.Time
}

// NewGuardedSubscriber wraps inner with token validation.
func NewGuardedSubscriber(inner Subscriber, secret string) *GuardedSubscriber {
	return &GuardedSubscriber{inner: inner, secret: secret, now: time.Now}
}

// WithClock replaces the time source used to check token expiry.
func (g *GuardedSubscriber) WithClock(now func() time.Time) *GuardedSubscriber {
	g.now = now
	return g
}

// Subscribe validates token and opens a subscription on the trip topic.
// A malformed, expired or foreign token yields utils.ErrInvalidToken.
func (g *GuardedSubscriber) Subscribe(ctx context.Context, tripID uint64, token string) (Subscription, utils.ChannelClaims, error) {
	claims, err := utils.ParseChannelToken(g.secret, token, g.now())
	if err != nil {
		return nil, utils.ChannelClaims{}, err
	}
	if claims.TripID != tripID {
		return nil, utils.ChannelClaims{}, utils.ErrInvalidToken
	}
	sub, err := g.inner.Subscribe(ctx, Topic(tripID))
	if err != nil {
		return nil, utils.ChannelClaims{}, err
	}
	return sub, claims, nil
}
