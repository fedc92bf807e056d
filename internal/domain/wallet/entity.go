package wallet

import (
	"time"

	"github.com/google/uuid"
)

// TransactionKind classifies ledger entries. Every entry carries a positive
// amount; the kind decides the sign applied to the balance.
type TransactionKind string

const (
	KindDeposit TransactionKind = "deposit"
	KindSpend   TransactionKind = "spend"
	KindRefund  TransactionKind = "refund"
)

// Wallet is the per-user balance row. Amounts are cents.
// Invariant: Balance == TotalDeposited + TotalRefunded - TotalSpent.
type Wallet struct {
	UserID         uuid.UUID `db:"user_id" json:"user_id"`
	Balance        int64     `db:"balance" json:"balance"`
	TotalDeposited int64     `db:"total_deposited" json:"total_deposited"`
	TotalSpent     int64     `db:"total_spent" json:"total_spent"`
	TotalRefunded  int64     `db:"total_refunded" json:"total_refunded"`
	Frozen         bool      `db:"frozen" json:"frozen"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// Transaction is an immutable ledger entry. Entries are write-once:
// corrections are new entries, never edits, and nothing is ever deleted.
type Transaction struct {
	ID          uuid.UUID       `db:"id" json:"id"`
	UserID      uuid.UUID       `db:"user_id" json:"user_id"`
	Kind        TransactionKind `db:"kind" json:"kind"`
	Amount      int64           `db:"amount" json:"amount"`
	ReferenceID string          `db:"reference_id" json:"reference_id"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
}
