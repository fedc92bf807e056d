package wallet

import "errors"

var (
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrInvalidKind        = errors.New("invalid transaction kind")
	ErrInsufficientFunds  = errors.New("insufficient wallet balance")
	ErrDuplicateReference = errors.New("duplicate reference")
	ErrReferenceConflict  = errors.New("reference conflicts with different amount")
	ErrWalletFrozen       = errors.New("wallet is frozen pending operator review")

	// ErrInvariantViolation means the balance no longer matches the transaction
	// log. The wallet is frozen and refuses further mutation until an operator
	// intervenes.
	ErrInvariantViolation = errors.New("wallet balance invariant violated")
)
