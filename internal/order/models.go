// Package order is the port onto the surrounding ordering platform. The core
// never owns orders; it reads findings and applicant contact details and
// writes status back when adjudication or adverse action concludes.
package order

import (
	"time"

	"github.com/google/uuid"
)

// Status is the order lifecycle as seen by this core.
type Status string

const (
	StatusPending        Status = "pending"
	StatusInProgress     Status = "in_progress"
	StatusCompleted      Status = "completed"
	StatusRequiresAction Status = "requires_action"
	StatusCancelled      Status = "cancelled"
)

// Applicant is the subject of the screening. Contactability gates adverse
// action initiation.
type Applicant struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
}

// Contactable reports whether a legally sufficient contact address exists.
func (a Applicant) Contactable() bool {
	return a.Email != "" || a.Phone != ""
}

// Finding is one screening result returned by a vendor.
type Finding struct {
	ID          uuid.UUID `json:"id"`
	OffenseType string    `json:"offense_type"`
	Severity    string    `json:"severity"`
	OffenseDate time.Time `json:"offense_date"`
	Description string    `json:"description"`
}

// Order is the platform's screening order, reduced to what the core needs.
type Order struct {
	ID               uuid.UUID `json:"id"`
	ClientID         uuid.UUID `json:"client_id"`
	Status           Status    `json:"status"`
	PositionCategory string    `json:"position_category"`
	Applicant        Applicant `json:"applicant"`
	Findings         []Finding `json:"findings"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}
