package utils // package utils provides helpers for signing and parsing tokens

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned for any token that is malformed, badly
// signed, expired or issued for another resource.
var ErrInvalidToken = errors.New("invalid token")

// AccessToken represents a signed JWT access token along with its expiry.
// Tokens are issued by the platform's auth service; this package mints
// them only for local tooling and tests.
type AccessToken struct {
	Token string    // the serialized JWT string
	Exp   time.Time // the UTC expiration time
}

// NewAccessToken builds and signs an HS256 JWT for a user with the
// standard claims sub, role, exp and iat.
func NewAccessToken(secret string, userID uint64, role string, ttl time.Duration) (AccessToken, error) {
	now := time.Now().UTC()
	exp := now.Add(ttl)
	claims := jwt.MapClaims{
		"sub":  strconv.FormatUint(userID, 10),
		"role": role,
		"exp":  exp.Unix(),
		"iat":  now.Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return AccessToken{}, err
	}
	return AccessToken{Token: signed, Exp: exp}, nil
}

// Principal is the identity carried by an access token.
type Principal struct {
	UserID uint64
	Role   string
}

// ParseAccessToken validates an HS256 access token and returns its
// principal.  The subject may be encoded as a string or a number.
func ParseAccessToken(secret, raw string) (Principal, error) {
	tok, err := jwt.Parse(raw, hmacKey(secret), jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !tok.Valid {
		return Principal{}, ErrInvalidToken
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return Principal{}, ErrInvalidToken
	}
	var p Principal
	switch sub := claims["sub"].(type) {
	case string:
		id, err := strconv.ParseUint(sub, 10, 64)
		if err != nil {
			return Principal{}, ErrInvalidToken
		}
		p.UserID = id
	case float64:
		if sub < 0 {
			return Principal{}, ErrInvalidToken
		}
		p.UserID = uint64(sub)
	default:
		return Principal{}, ErrInvalidToken
	}
	p.Role, _ = claims["role"].(string)
	return p, nil
}

// ChannelClaims authorize one user to follow the live seat updates of one
// trip until the token expires.
type ChannelClaims struct {
	TripID uint64 `json:"trip_id"`
	jwt.RegisteredClaims
}

// UserID returns the subject as a numeric user ID.
func (c ChannelClaims) UserID() uint64 {
	id, _ := strconv.ParseUint(c.Subject, 10, 64)
	return id
}

// NewChannelToken signs a capability token for the seat channel of tripID.
func NewChannelToken(secret string, tripID, userID uint64, ttl time.Duration, now time.Time) (string, time.Time, error) {
	exp := now.UTC().Add(ttl)
	claims := ChannelClaims{
		TripID: tripID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(userID, 10),
			IssuedAt:  jwt.NewNumericDate(now.UTC()),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// ParseChannelToken validates a capability token at instant now.  Tokens
// without an expiry are rejected.
func ParseChannelToken(secret, raw string, now time.Time) (ChannelClaims, error) {
	var claims ChannelClaims
	tok, err := jwt.ParseWithClaims(raw, &claims, hmacKey(secret),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	if err != nil || !tok.Valid || claims.TripID == 0 {
		return ChannelClaims{}, ErrInvalidToken
	}
	return claims, nil
}

func hmacKey(secret string) jwt.Keyfunc {
	return func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(secret), nil
	}
}
