package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/bus-seat-reservation/internal/config"
	"github.com/iliyamo/bus-seat-reservation/internal/utils"
)

const secret = "mw-secret"

func bearer(t *testing.T, userID uint64, role string) string {
	t.Helper()
	tok, err := utils.NewAccessToken(secret, userID, role, time.Hour)
	require.NoError(t, err)
	return "Bearer " + tok.Token
}

func serve(e *echo.Echo, method, path, auth string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if auth != "" {
		req.Header.Set(echo.HeaderAuthorization, auth)
	}
	req.RemoteAddr = "10.0.0.1:1234"
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestJWTAuthAndRole(t *testing.T) {
	e := echo.New()
	admin := e.Group("/admin", JWTAuth(secret), RequireRole(RoleAdmin, RoleSystem))
	admin.GET("/who", func(c echo.Context) error {
		id, ok := UserID(c)
		return c.JSON(http.StatusOK, echo.Map{"id": id, "ok": ok, "role": Role(c)})
	})

	assert.Equal(t, http.StatusUnauthorized, serve(e, http.MethodGet, "/admin/who", "").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(e, http.MethodGet, "/admin/who", "Bearer junk").Code)
	assert.Equal(t, http.StatusForbidden, serve(e, http.MethodGet, "/admin/who", bearer(t, 5, "USER")).Code)

	rec := serve(e, http.MethodGet, "/admin/who", bearer(t, 5, "admin"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"id":5,"ok":true,"role":"admin"}`, rec.Body.String())
}

func newLimited(t *testing.T, cfg config.RateLimitConfig) (*echo.Echo, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	e := echo.New()
	e.GET("/r", func(c echo.Context) error { return c.NoContent(http.StatusOK) }, RateLimit(cfg, rdb))
	u := e.Group("/u", JWTAuth(secret))
	u.GET("/r", func(c echo.Context) error { return c.NoContent(http.StatusOK) }, RateLimit(cfg, rdb))
	return e, mr
}

func TestRateLimitBlocksAfterCapacity(t *testing.T) {
	cfg := config.RateLimitConfig{
		Enabled: true, Capacity: 2, RefillTokens: 1,
		RefillInterval: time.Minute, TTL: 10 * time.Minute,
		KeyStrategy: "user_or_ip", Prefix: "rl",
	}
	e, mr := newLimited(t, cfg)

	assert.Equal(t, http.StatusOK, serve(e, http.MethodGet, "/r", "").Code)
	rec := serve(e, http.MethodGet, "/r", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))

	rec = serve(e, http.MethodGet, "/r", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.True(t, mr.Exists("rl:ip:10.0.0.1"))

	// authenticated callers get their own bucket
	assert.Equal(t, http.StatusOK, serve(e, http.MethodGet, "/u/r", bearer(t, 9, "USER")).Code)
	assert.True(t, mr.Exists("rl:user:9"))
}

func TestRateLimitDisabledOrNoRedis(t *testing.T) {
	e := echo.New()
	e.GET("/r", func(c echo.Context) error { return c.NoContent(http.StatusOK) },
		RateLimit(config.RateLimitConfig{Enabled: true, Capacity: 1}, nil))
	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, serve(e, http.MethodGet, "/r", "").Code)
	}
}

func TestRateLimitFailsOpen(t *testing.T) {
	cfg := config.RateLimitConfig{Enabled: true, Capacity: 1, RefillTokens: 1, RefillInterval: time.Minute, TTL: time.Hour, Prefix: "rl"}
	e, mr := newLimited(t, cfg)
	mr.Close()
	assert.Equal(t, http.StatusOK, serve(e, http.MethodGet, "/r", "").Code)
	assert.Equal(t, http.StatusOK, serve(e, http.MethodGet, "/r", "").Code)
}
