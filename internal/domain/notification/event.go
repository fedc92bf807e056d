package notification

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventOrderCompleted  EventType = "order_completed"
	EventOrderRefunded   EventType = "order_refunded"
	EventDepositClaimed  EventType = "deposit_claimed"
	EventRefundRequested EventType = "refund_requested"
)

// Event is one push payload. User events carry the order outcome; admin
// events announce work waiting in the reconciliation queues.
type Event struct {
	Type        EventType `json:"type"`
	UserID      uuid.UUID `json:"user_id"`
	OrderID     uuid.UUID `json:"order_id,omitempty"`
	ReferenceID uuid.UUID `json:"reference_id,omitempty"`
	OTP         string    `json:"otp,omitempty"`
	Reason      string    `json:"reason,omitempty"`
	AmountCents int64     `json:"amount_cents,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}
