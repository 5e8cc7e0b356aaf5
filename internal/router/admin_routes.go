package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/bus-seat-reservation/internal/handler"
	"github.com/iliyamo/bus-seat-reservation/internal/middleware"
)

// RegisterAdmin registers the back office routes under /v1/admin.  They
// require a JWT carrying the ADMIN or SYSTEM role.
func RegisterAdmin(e *echo.Echo, h *handler.AdminHandler, jwtSecret string) {
	g := e.Group(
		"/v1/admin",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(middleware.RoleAdmin, middleware.RoleSystem),
	)
	g.POST("/trips/:id/bookings", h.ConfirmBooking)
	g.DELETE("/trips/:id/bookings", h.CancelBooking)
	g.GET("/trips/:id/audit", h.Audit)
	g.POST("/seats/reap", h.Reap)
}
