package model

import "time"

// SeatMapSeat is one seat of the rendered seat map.
type SeatMapSeat struct {
	Code          string       `json:"code"`
	Row           string       `json:"row"`
	Number        int          `json:"number"`
	Category      SeatCategory `json:"category"`
	Status        string       `json:"status"`
	Color         string       `json:"color"`
	Message       string       `json:"message"`
	Selectable    bool         `json:"selectable"`
	HolderUserID  *uint64      `json:"holder_user_id,omitempty"`
	HoldExpiresAt *time.Time   `json:"hold_expires_at,omitempty"`
}

// SeatMap is the seat plan of a trip merged with the current lock state.
type SeatMap struct {
	TripID     uint64        `json:"trip_id"`
	SeatPlanID uint64        `json:"seat_plan_id"`
	Seats      []SeatMapSeat `json:"plan"`
	Total      int           `json:"total_seats"`
	Free       int           `json:"free_seats"`
	Booked     int           `json:"booked_seats"`
	Held       int           `json:"held_seats"`
	Timestamp  time.Time     `json:"timestamp"`
}

// SeatCheck is the availability of a single seat returned by batch checks.
type SeatCheck struct {
	Available     bool       `json:"available"`
	Status        string     `json:"status"`
	HolderUserID  *uint64    `json:"holder_user_id"`
	HoldExpiresAt *time.Time `json:"hold_expires_at"`
}

// HeldSeat describes an active temporary hold.
type HeldSeat struct {
	SeatCode      string    `json:"seat_code"`
	HolderUserID  uint64    `json:"holder_user_id"`
	HoldExpiresAt time.Time `json:"hold_expires_at"`
}
