package deposit

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

// Claim is one funding request. A claim is created by the user and moved to
// a terminal status exactly once by an admin; the wallet credit it triggers
// is keyed by the claim id, so replayed approvals cannot double-fund.
type Claim struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	UserID      uuid.UUID  `db:"user_id" json:"user_id"`
	AmountCents int64      `db:"amount_cents" json:"amount_cents"`
	Status      Status     `db:"status" json:"status"`
	AdminID     *uuid.UUID `db:"admin_id" json:"admin_id,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	ProcessedAt *time.Time `db:"processed_at" json:"processed_at,omitempty"`
}
