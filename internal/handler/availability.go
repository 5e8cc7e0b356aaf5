package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/bus-seat-reservation/internal/service"
)

// AvailabilityHandler serves the cached availability snapshots.
type AvailabilityHandler struct {
	Availability *service.AvailabilityService
}

// NewAvailabilityHandler panics on a nil service.
func NewAvailabilityHandler(a *service.AvailabilityService) *AvailabilityHandler {
	if a == nil {
		panic("nil service passed to NewAvailabilityHandler")
	}
	return &AvailabilityHandler{Availability: a}
}

// Get handles GET /v1/trips/:id/availability.
func (h *AvailabilityHandler) Get(c echo.Context) error {
	id, ok := tripID(c)
	if !ok {
		return badTripID(c)
	}
	snap, err := h.Availability.Get(c.Request().Context(), id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, snap)
}

// Refresh handles POST /v1/trips/:id/availability/refresh.
func (h *AvailabilityHandler) Refresh(c echo.Context) error {
	id, ok := tripID(c)
	if !ok {
		return badTripID(c)
	}
	snap, err := h.Availability.Refresh(c.Request().Context(), id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, snap)
}

// CheckPlaces handles GET /v1/trips/:id/availability/check?places=n.
func (h *AvailabilityHandler) CheckPlaces(c echo.Context) error {
	id, ok := tripID(c)
	if !ok {
		return badTripID(c)
	}
	places := 1
	if raw := c.QueryParam("places"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid places"})
		}
		places = n
	}
	check, err := h.Availability.CheckPlaces(c.Request().Context(), id, places)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, check)
}

// GetMany handles POST /v1/availability with {"trip_ids": [...]}.
func (h *AvailabilityHandler) GetMany(c echo.Context) error {
	var body struct {
		TripIDs []uint64 `json:"trip_ids"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if len(body.TripIDs) == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "trip_ids is required"})
	}
	snaps, err := h.Availability.GetMany(c.Request().Context(), body.TripIDs)
	if err != nil {
		return fail(c, err)
	}
	out := make(map[string]interface{}, len(snaps))
	for id, s := range snaps {
		out[strconv.FormatUint(id, 10)] = s
	}
	return c.JSON(http.StatusOK, echo.Map{"trips": out, "count": len(out)})
}
