package model

import "time"

// Operation kinds written to the availability audit log.
const (
	OperationReservation  = "reservation"
	OperationCancellation = "cancellation"
	OperationAdjustment   = "adjustment"
)

// OperationKindFor names an adjustment by the sign of its delta.
func OperationKindFor(delta int) string {
	switch {
	case delta > 0:
		return OperationReservation
	case delta < 0:
		return OperationCancellation
	default:
		return OperationAdjustment
	}
}

// AuditRecord is one append-only row of availability_audit.  Rows are
// written in the same transaction as the counter change they describe and
// are never updated or deleted.
type AuditRecord struct {
	TripID        uint64    `json:"trip_id"`
	Before        int       `json:"before"`
	After         int       `json:"after"`
	Delta         int       `json:"delta"`
	OperationKind string    `json:"operation"`
	ActorID       *uint64   `json:"actor_id,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}
