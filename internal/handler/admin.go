package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/bus-seat-reservation/internal/middleware"
	"github.com/iliyamo/bus-seat-reservation/internal/service"
)

// AdminHandler exposes the booking transitions and the audit trail to the
// reservation back office.  Routes are guarded by JWTAuth + RequireRole.
type AdminHandler struct {
	Seats        *service.SeatMapService
	Availability *service.AvailabilityService
}

// NewAdminHandler panics if any dependency is nil.
func NewAdminHandler(seats *service.SeatMapService, a *service.AvailabilityService) *AdminHandler {
	if seats == nil || a == nil {
		panic("nil service passed to NewAdminHandler")
	}
	return &AdminHandler{Seats: seats, Availability: a}
}

type bookingBody struct {
	SeatCodes []string `json:"seat_codes"`
}

// actor returns the calling user; SYSTEM callers act as the system (0).
func actor(c echo.Context) uint64 {
	if middleware.Role(c) == middleware.RoleSystem {
		return 0
	}
	id, _ := middleware.UserID(c)
	return id
}

// ConfirmBooking handles POST /v1/admin/trips/:id/bookings.
func (h *AdminHandler) ConfirmBooking(c echo.Context) error {
	id, ok := tripID(c)
	if !ok {
		return badTripID(c)
	}
	var body bookingBody
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	booked, err := h.Seats.ConfirmSeats(c.Request().Context(), id, body.SeatCodes, actor(c))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"trip_id": id, "booked_count": booked})
}

// CancelBooking handles DELETE /v1/admin/trips/:id/bookings.
func (h *AdminHandler) CancelBooking(c echo.Context) error {
	id, ok := tripID(c)
	if !ok {
		return badTripID(c)
	}
	var body bookingBody
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	booked, err := h.Seats.CancelSeats(c.Request().Context(), id, body.SeatCodes, actor(c))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"trip_id": id, "booked_count": booked})
}

// Audit handles GET /v1/admin/trips/:id/audit?limit=n.
func (h *AdminHandler) Audit(c echo.Context) error {
	id, ok := tripID(c)
	if !ok {
		return badTripID(c)
	}
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	recs, err := h.Availability.History(c.Request().Context(), id, limit)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"trip_id": id, "records": recs})
}

// Reap handles POST /v1/admin/seats/reap and runs one reaper sweep.
func (h *AdminHandler) Reap(c echo.Context) error {
	n, err := h.Seats.ReapExpired(c.Request().Context())
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"released": n})
}
