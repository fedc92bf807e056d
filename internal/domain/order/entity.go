package order

import (
	"time"

	"github.com/google/uuid"
)

// Status is the order lifecycle state. pending is the only initial state;
// completed, timeout, cancelled and error are terminal for polling; refunded
// follows a terminal failure after settlement.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusTimeout   Status = "timeout"
	StatusCancelled Status = "cancelled"
	StatusError     Status = "error"
	StatusRefunded  Status = "refunded"
)

// transitions is the full state machine. Anything not listed is rejected.
var transitions = map[Status][]Status{
	StatusPending:   {StatusCompleted, StatusTimeout, StatusCancelled, StatusError},
	StatusTimeout:   {StatusRefunded},
	StatusCancelled: {StatusRefunded},
	StatusError:     {StatusRefunded},
}

// CanTransition reports whether from -> to is a legal move.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal reports whether polling has finished for this status.
func (s Status) Terminal() bool {
	return s != StatusPending
}

// Refundable reports whether a refund may still be applied for this status.
func (s Status) Refundable() bool {
	return s == StatusTimeout || s == StatusCancelled || s == StatusError
}

// Order is one purchase attempt. Orders are archived, never deleted.
type Order struct {
	ID                 uuid.UUID  `db:"id" json:"id"`
	UserID             uuid.UUID  `db:"user_id" json:"user_id"`
	ServiceKey         string     `db:"service_key" json:"service_key"`
	Country            string     `db:"country" json:"country"`
	Number             string     `db:"number" json:"number"`
	ProviderRef        string     `db:"provider_ref" json:"provider_ref"`
	Status             Status     `db:"status" json:"status"`
	CostCents          int64      `db:"cost_cents" json:"cost_cents"`
	OTP                *string    `db:"otp" json:"otp,omitempty"`
	OTPReceivedAt      *time.Time `db:"otp_received_at" json:"otp_received_at,omitempty"`
	LastProviderStatus *string    `db:"last_provider_status" json:"last_provider_status,omitempty"`
	LastPolledAt       *time.Time `db:"last_polled_at" json:"last_polled_at,omitempty"`
	CreatedAt          time.Time  `db:"created_at" json:"created_at"`
	ExpiresAt          time.Time  `db:"expires_at" json:"expires_at"`
	UpdatedAt          time.Time  `db:"updated_at" json:"updated_at"`
}
