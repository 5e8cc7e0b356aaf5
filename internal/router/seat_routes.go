package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/bus-seat-reservation/internal/handler"
	"github.com/iliyamo/bus-seat-reservation/internal/middleware"
)

// RegisterSeats registers the seat map routes.  Reads are public; selecting,
// releasing and asking for a live token require a valid JWT.  The live
// stream authenticates with its capability token instead.
func RegisterSeats(e *echo.Echo, h *handler.SeatHandler, live *handler.LiveHandler, jwtSecret string) {
	g := e.Group("/v1/trips/:id")
	g.GET("/seats", h.GetSeatMap)
	g.GET("/seats/booked", h.ListBooked)
	g.GET("/seats/held", h.ListHeld)
	g.POST("/seats/check", h.CheckSeats)
	if live != nil {
		g.GET("/live", live.Stream)
	}

	auth := e.Group("/v1/trips/:id", middleware.JWTAuth(jwtSecret))
	auth.POST("/seats/select", h.SelectSeat)
	auth.POST("/seats/release", h.ReleaseSeat)
	auth.GET("/live/config", h.LiveConfig)
}

// RegisterAvailability registers the availability routes behind limit,
// which may be nil.
func RegisterAvailability(e *echo.Echo, h *handler.AvailabilityHandler, limit echo.MiddlewareFunc) {
	var mw []echo.MiddlewareFunc
	if limit != nil {
		mw = append(mw, limit)
	}
	g := e.Group("/v1", mw...)
	g.GET("/trips/:id/availability", h.Get)
	g.POST("/trips/:id/availability/refresh", h.Refresh)
	g.GET("/trips/:id/availability/check", h.CheckPlaces)
	g.POST("/availability", h.GetMany)
}
