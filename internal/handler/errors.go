package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"

	"github.com/iliyamo/bus-seat-reservation/internal/repository"
	"github.com/iliyamo/bus-seat-reservation/internal/service"
	"github.com/iliyamo/bus-seat-reservation/internal/utils"
)

// statusOf maps domain errors to HTTP status codes.  Anything unknown is
// an internal error.
func statusOf(err error) int {
	switch {
	case errors.Is(err, repository.ErrTripNotFound),
		errors.Is(err, repository.ErrSeatNotFound),
		errors.Is(err, repository.ErrSeatPlanNotFound):
		return http.StatusNotFound
	case errors.Is(err, repository.ErrSeatUnavailable),
		errors.Is(err, repository.ErrConflict),
		errors.Is(err, repository.ErrCapacityExceeded),
		errors.Is(err, repository.ErrNegativeCount):
		return http.StatusConflict
	case errors.Is(err, service.ErrNotAuthorized),
		errors.Is(err, repository.ErrNotHolder),
		errors.Is(err, repository.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, utils.ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrInvalidSeatCode),
		errors.Is(err, service.ErrTooManySeats),
		errors.Is(err, service.ErrTooManyTrips),
		errors.Is(err, service.ErrInvalidPlaces),
		errors.Is(err, service.ErrNoSeats):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrTripNotBookable):
		return http.StatusUnprocessableEntity
	case errors.Is(err, service.ErrLiveDisabled):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// fail writes err as {"error": ...}.  Internal errors are logged and
// replaced by a generic message.
func fail(c echo.Context, err error) error {
	code := statusOf(err)
	// driver and backend errors may carry SQL or hostnames; keep them in
	// the log only
	if code == http.StatusInternalServerError {
		c.Logger().Errorj(log.JSON{"msg": "request failed", "path": c.Path(), "error": err.Error()})
		return c.JSON(code, echo.Map{"error": "internal error"})
	}
	return c.JSON(code, echo.Map{"error": err.Error()})
}

// tripID parses the :id path parameter.
func tripID(c echo.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	return id, err == nil && id != 0
}

func badTripID(c echo.Context) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid trip id"})
}
