package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"

	"github.com/iliyamo/bus-seat-reservation/internal/queue"
	"github.com/iliyamo/bus-seat-reservation/internal/service"
)

// DefaultHeartbeat is the interval of SSE keep-alive comments.
const DefaultHeartbeat = 15 * time.Second

// LiveHandler streams the seat updates of a trip as server-sent events to
// holders of a capability token.
type LiveHandler struct {
	Seats     *service.SeatMapService
	Heartbeat time.Duration
}

// NewLiveHandler panics on a nil service.
func NewLiveHandler(seats *service.SeatMapService) *LiveHandler {
	if seats == nil {
		panic("nil service passed to NewLiveHandler")
	}
	return &LiveHandler{Seats: seats, Heartbeat: DefaultHeartbeat}
}

// Stream handles GET /v1/trips/:id/live?token=...
func (h *LiveHandler) Stream(c echo.Context) error {
	id, ok := tripID(c)
	if !ok {
		return badTripID(c)
	}
	ctx := c.Request().Context()
	// subscribe before reading the seat map so no update published in
	// between is lost; a client may see a change twice but never miss one
	sub, err := h.Seats.Subscribe(ctx, id, c.QueryParam("token"))
	if err != nil {
		return fail(c, err)
	}
	defer sub.Close()
	initial, err := h.Seats.GetSeatMap(ctx, id)
	if err != nil {
		return fail(c, err)
	}
	state, err := json.Marshal(initial)
	if err != nil {
		return fail(c, err)
	}

	w := c.Response()
	w.Header().Set(echo.HeaderContentType, "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, ": subscribed %s\n\n", queue.Topic(id))
	fmt.Fprintf(w, "event: initial-state\ndata: %s\n\n", state)
	w.Flush()

	beat := h.Heartbeat
	if beat <= 0 {
		beat = DefaultHeartbeat
	}
	ticker := time.NewTicker(beat)
	defer ticker.Stop()
	// the loop ends when the client goes away or the subscription is closed
	// under us; write errors mean the connection is gone as well
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-sub.Events():
			if !ok {
				return nil
			}
			data, err := json.Marshal(ev)
			if err != nil {
				c.Logger().Warnj(log.JSON{"msg": "encode seat update", "event_id": ev.ID, "error": err.Error()})
				continue
			}
			if _, err := fmt.Fprintf(w, "id: %s\nevent: seat-update\ndata: %s\n\n", ev.ID, data); err != nil {
				return nil
			}
			w.Flush()
		case <-ticker.C:
			// comment lines keep proxies from timing out idle streams
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return nil
			}
			w.Flush()
		}
	}
}
