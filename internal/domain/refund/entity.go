package refund

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// Request is one manual refund request. An order carries at most one open
// request at a time; approval rides the same reference-keyed credit path as
// automatic settlement, so the two can race without double-refunding.
type Request struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	OrderID     uuid.UUID  `db:"order_id" json:"order_id"`
	UserID      uuid.UUID  `db:"user_id" json:"user_id"`
	Status      Status     `db:"status" json:"status"`
	AdminID     *uuid.UUID `db:"admin_id" json:"admin_id,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	ProcessedAt *time.Time `db:"processed_at" json:"processed_at,omitempty"`
}
