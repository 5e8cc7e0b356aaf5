package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/bus-seat-reservation/internal/middleware"
	"github.com/iliyamo/bus-seat-reservation/internal/model"
	"github.com/iliyamo/bus-seat-reservation/internal/service"
)

// SeatHandler serves the seat map and the seat selection flow of a trip.
type SeatHandler struct {
	Seats *service.SeatMapService
}

// NewSeatHandler panics on a nil service, like every handler constructor.
func NewSeatHandler(seats *service.SeatMapService) *SeatHandler {
	if seats == nil {
		panic("nil service passed to NewSeatHandler")
	}
	return &SeatHandler{Seats: seats}
}

type seatCodeBody struct {
	SeatCode string `json:"seat_code"`
}

type seatCodesBody struct {
	Seats []string `json:"seats"`
}

// GetSeatMap handles GET /v1/trips/:id/seats.
func (h *SeatHandler) GetSeatMap(c echo.Context) error {
	id, ok := tripID(c)
	if !ok {
		return badTripID(c)
	}
	m, err := h.Seats.GetSeatMap(c.Request().Context(), id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, m)
}

// ListBooked handles GET /v1/trips/:id/seats/booked.
func (h *SeatHandler) ListBooked(c echo.Context) error {
	id, ok := tripID(c)
	if !ok {
		return badTripID(c)
	}
	codes, err := h.Seats.ListBooked(c.Request().Context(), id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"trip_id": id, "booked_seats": codes, "count": len(codes)})
}

// ListHeld handles GET /v1/trips/:id/seats/held.
func (h *SeatHandler) ListHeld(c echo.Context) error {
	id, ok := tripID(c)
	if !ok {
		return badTripID(c)
	}
	held, err := h.Seats.ListHeld(c.Request().Context(), id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"trip_id": id, "held_seats": held, "count": len(held)})
}

// CheckSeats handles POST /v1/trips/:id/seats/check with {"seats": [...]}.
func (h *SeatHandler) CheckSeats(c echo.Context) error {
	id, ok := tripID(c)
	if !ok {
		return badTripID(c)
	}
	var body seatCodesBody
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if len(body.Seats) == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "seats is required"})
	}
	// the batch limit is enforced by the service and mapped to 400
	res, err := h.Seats.CheckSeats(c.Request().Context(), id, body.Seats)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"trip_id": id, "seats": res})
}

// SelectSeat handles POST /v1/trips/:id/seats/select.  The hold belongs to
// the authenticated user.
func (h *SeatHandler) SelectSeat(c echo.Context) error {
	// JWTAuth guards the route; a missing identity means it was mounted
	// without the middleware
	userID, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := tripID(c)
	if !ok {
		return badTripID(c)
	}
	// shape checks happen in the service; here only presence is required
	var body seatCodeBody
	if err := c.Bind(&body); err != nil || strings.TrimSpace(body.SeatCode) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "seat_code is required"})
	}
	lock, err := h.Seats.SelectSeat(c.Request().Context(), id, body.SeatCode, userID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"trip_id":         id,
		"seat_code":       lock.SeatCode,
		"status":          lock.Status.String(),
		"hold_expires_at": lock.HoldExpiresAt,
		"ttl_seconds":     int(h.Seats.HoldTTL().Seconds()),
	})
}

// ReleaseSeat handles POST /v1/trips/:id/seats/release.
func (h *SeatHandler) ReleaseSeat(c echo.Context) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := tripID(c)
	if !ok {
		return badTripID(c)
	}
	var body seatCodeBody
	if err := c.Bind(&body); err != nil || strings.TrimSpace(body.SeatCode) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "seat_code is required"})
	}
	released, err := h.Seats.ReleaseSeat(c.Request().Context(), id, body.SeatCode, userID)
	if err != nil {
		return fail(c, err)
	}
	// the service rejects codes that do not normalize, so this cannot fail
	code, _ := model.NormalizeSeatCode(body.SeatCode)
	return c.JSON(http.StatusOK, echo.Map{"trip_id": id, "seat_code": code, "released": released})
}

// LiveConfig handles GET /v1/trips/:id/live/config.  It returns the topic
// and a capability token for the live stream.
func (h *SeatHandler) LiveConfig(c echo.Context) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := tripID(c)
	if !ok {
		return badTripID(c)
	}
	cfg, err := h.Seats.LiveConfig(c.Request().Context(), id, userID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, cfg)
}
