package timeline

import (
	"time"

	"github.com/google/uuid"
)

// Event is one immutable timeline entry. Every state change in the core
// appends exactly one. Keep it transport-agnostic so stores and sinks can
// fan out.
type Event struct {
	ID         uuid.UUID         `json:"id"`
	OrderID    uuid.UUID         `json:"order_id"`
	EntityType string            `json:"entity_type"` // decision | adverse_action | rule_matrix
	EntityID   uuid.UUID         `json:"entity_id"`
	Action     string            `json:"action"`
	Actor      string            `json:"actor"`
	Detail     map[string]string `json:"detail,omitempty"`
	Timestamp  time.Time         `json:"timestamp"`
}
