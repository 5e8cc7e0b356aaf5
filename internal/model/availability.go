package model

import (
	"fmt"
	"math"
	"time"
)

// UrgencyLevel classifies how close a trip is to being full.
type UrgencyLevel int

const (
	UrgencyNormal UrgencyLevel = iota
	UrgencyUrgent
	UrgencyCritical
	urgencyCount
)

// UrgencyStyle is the label and color shown for an urgency level.
type UrgencyStyle struct {
	Label string
	Color string
}

// urgencyStyles is indexed by UrgencyLevel and sized by urgencyCount, so
// every level must have an entry.
var urgencyStyles = [urgencyCount]UrgencyStyle{
	UrgencyNormal:   {Label: "NORMAL", Color: "#28a745"},
	UrgencyUrgent:   {Label: "URGENT", Color: "#ffc107"},
	UrgencyCritical: {Label: "CRITICAL", Color: "#dc3545"},
}

// Style returns the display metadata for u.
func (u UrgencyLevel) Style() UrgencyStyle {
	if u < 0 || u >= urgencyCount {
		return UrgencyStyle{Label: "UNKNOWN", Color: "#6c757d"}
	}
	return urgencyStyles[u]
}

func (u UrgencyLevel) String() string { return u.Style().Label }

// MarshalText encodes the level as its label.
func (u UrgencyLevel) MarshalText() ([]byte, error) { return []byte(u.String()), nil }

// UnmarshalText decodes a label written by MarshalText.
func (u *UrgencyLevel) UnmarshalText(b []byte) error {
	for lvl := UrgencyLevel(0); lvl < urgencyCount; lvl++ {
		if urgencyStyles[lvl].Label == string(b) {
			*u = lvl
			return nil
		}
	}
	return fmt.Errorf("unknown urgency level %q", b)
}

// Urgency thresholds on the free/capacity ratio.
const (
	CriticalFreeRatio = 0.10
	UrgentFreeRatio   = 0.30
)

// Textual availability statuses.
const (
	StatusFull             = "FULL"
	StatusLastSeats        = "LAST SEATS"
	StatusAlmostFull       = "ALMOST FULL"
	StatusGoodAvailability = "GOOD AVAILABILITY"
	StatusAvailable        = "AVAILABLE"
)

// Alert is a short notice attached to an availability snapshot.
type Alert struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// AvailabilitySnapshot is the derived, cacheable view of a trip's
// availability.  It is never authoritative and can always be rebuilt from
// the trip counters.
type AvailabilitySnapshot struct {
	TripID              uint64       `json:"trip_id"`
	Capacity            int          `json:"capacity"`
	BookedCount         int          `json:"booked_count"`
	FreeCount           int          `json:"free_count"`
	FillPercentage      float64      `json:"fill_percentage"`
	AvailablePercentage float64      `json:"available_percentage"`
	UrgencyLevel        UrgencyLevel `json:"urgency_level"`
	UrgencyColor        string       `json:"urgency_color"`
	TextualStatus       string       `json:"status"`
	IsFull              bool         `json:"is_full"`
	Alerts              []Alert      `json:"alerts"`
	Recommendation      string       `json:"recommendation"`
	Timestamp           time.Time    `json:"timestamp"`
	Freshness           string       `json:"freshness,omitempty"`
}

// NewAvailabilitySnapshot derives every field of the snapshot from the
// trip counters at instant now.
func NewAvailabilitySnapshot(c TripCounters, now time.Time) AvailabilitySnapshot {
	free := c.FreeCount()
	fill := FillPercentage(c.Capacity, c.BookedCount)
	urgency := Urgency(c.Capacity, free)
	return AvailabilitySnapshot{
		TripID:              c.TripID,
		Capacity:            c.Capacity,
		BookedCount:         c.BookedCount,
		FreeCount:           free,
		FillPercentage:      fill,
		AvailablePercentage: math.Round((100-fill)*10) / 10,
		UrgencyLevel:        urgency,
		UrgencyColor:        urgency.Style().Color,
		TextualStatus:       TextualStatus(free, fill),
		IsFull:              free <= 0,
		Alerts:              Alerts(free, fill),
		Recommendation:      Recommendation(free),
		Timestamp:           now.UTC(),
	}
}

// FillPercentage is booked/capacity*100 rounded to one decimal, 0 when the
// capacity is 0.
func FillPercentage(capacity, booked int) float64 {
	if capacity <= 0 {
		return 0
	}
	return math.Round(float64(booked)*1000/float64(capacity)) / 10
}

// Urgency maps the free/capacity ratio to a level.  Capacity 0 is NORMAL.
func Urgency(capacity, free int) UrgencyLevel {
	if capacity <= 0 {
		return UrgencyNormal
	}
	ratio := float64(free) / float64(capacity)
	switch {
	case ratio <= CriticalFreeRatio:
		return UrgencyCritical
	case ratio <= UrgentFreeRatio:
		return UrgencyUrgent
	default:
		return UrgencyNormal
	}
}

// TextualStatus returns the human readable status of a trip.
func TextualStatus(free int, fill float64) string {
	switch {
	case free <= 0:
		return StatusFull
	case free <= 2:
		return StatusLastSeats
	case fill >= 80:
		return StatusAlmostFull
	case free >= 10:
		return StatusGoodAvailability
	default:
		return StatusAvailable
	}
}

// Alerts builds the notices shown next to the availability.
func Alerts(free int, fill float64) []Alert {
	switch {
	case free <= 0:
		return []Alert{{Type: "danger", Message: "Trip full"}}
	case free <= 2:
		return []Alert{{Type: "warning", Message: fmt.Sprintf("Only %d seat(s) left!", free)}}
	case fill >= 80:
		return []Alert{{Type: "info", Message: "Almost full"}}
	default:
		return []Alert{}
	}
}

// Recommendation returns a booking hint based on the free seat count.
func Recommendation(free int) string {
	switch {
	case free <= 0:
		return "Trip full - look for another date"
	case free <= 2:
		return "Book quickly before the last seats are gone!"
	case free <= 5:
		return "Only a few seats left"
	default:
		return "Good availability - book any time"
	}
}

// PlacesCheck answers whether a number of seats can still be booked.
type PlacesCheck struct {
	TripID    uint64    `json:"trip_id"`
	Requested int       `json:"requested"`
	FreeCount int       `json:"free_count"`
	Available bool      `json:"available"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}
