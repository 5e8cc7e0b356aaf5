package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/bus-seat-reservation/internal/handler"
)

// Handlers bundles everything the API routes dispatch to.
type Handlers struct {
	Seats        *handler.SeatHandler
	Availability *handler.AvailabilityHandler
	Admin        *handler.AdminHandler
	Live         *handler.LiveHandler
	Ready        echo.HandlerFunc
}

// RegisterRoutes registers the health checks.  /readyz is only exposed when a
// readiness handler is configured.
func RegisterRoutes(e *echo.Echo, h Handlers) {
	e.GET("/healthz", handler.Health)
	if h.Ready != nil {
		e.GET("/readyz", h.Ready)
	}
}

// Register wires every route of the service.
func Register(e *echo.Echo, h Handlers, jwtSecret string, limit echo.MiddlewareFunc) {
	RegisterRoutes(e, h)
	RegisterSeats(e, h.Seats, h.Live, jwtSecret)
	RegisterAvailability(e, h.Availability, limit)
	RegisterAdmin(e, h.Admin, jwtSecret)
}
