package middleware

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

// UserID returns the authenticated user's ID stored by JWTAuth.
func UserID(c echo.Context) (uint64, bool) {
	id, ok := c.Get(CtxUserID).(uint64)
	return id, ok && id != 0
}

// Role returns the authenticated user's role, or "" for anonymous callers.
func Role(c echo.Context) string {
	r, _ := c.Get(CtxRole).(string)
	return r
}

// identity names the caller for rate limiting: "user:<id>" when
// authenticated, otherwise "ip:<addr>".
func identity(c echo.Context) string {
	if id, ok := UserID(c); ok {
		return "user:" + strconv.FormatUint(id, 10)
	}
	ip := c.RealIP()
	if ip == "" {
		ip = "unknown"
	}
	return "ip:" + ip
}
