package utils

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func TestAccessTokenRoundTrip(t *testing.T) {
	tok, err := NewAccessToken(testSecret, 42, "ADMIN", time.Hour)
	require.NoError(t, err)

	p, err := ParseAccessToken(testSecret, tok.Token)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), p.UserID)
	assert.Equal(t, "ADMIN", p.Role)

	_, err = ParseAccessToken("other-secret", tok.Token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseAccessTokenNumericSubject(t *testing.T) {
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": 7,
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)

	p, err := ParseAccessToken(testSecret, raw)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), p.UserID)
	assert.Empty(t, p.Role)
}

func TestChannelToken(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	raw, exp, err := NewChannelToken(testSecret, 12, 7, time.Hour, now)
	require.NoError(t, err)
	assert.Equal(t, now.Add(time.Hour), exp)

	claims, err := ParseChannelToken(testSecret, raw, now.Add(30*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, uint64(12), claims.TripID)
	assert.Equal(t, uint64(7), claims.UserID())

	cases := map[string]struct {
		secret string
		raw    string
		at     time.Time
	}{
		"expired":     {testSecret, raw, now.Add(2 * time.Hour)},
		"wrong key":   {"nope", raw, now},
		"malformed":   {testSecret, "not-a-jwt", now},
		"empty token": {testSecret, "", now},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseChannelToken(tc.secret, tc.raw, tc.at)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestChannelTokenRequiresExpiry(t *testing.T) {
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, ChannelClaims{
		TripID:           1,
		RegisteredClaims: jwt.RegisteredClaims{Subject: "7"},
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)

	_, err = ParseChannelToken(testSecret, raw, time.Now())
	assert.ErrorIs(t, err, ErrInvalidToken)
}
