package deposit

import "errors"

var (
	ErrClaimNotFound    = errors.New("deposit claim not found")
	ErrInvalidAmount    = errors.New("deposit amount must be positive")
	ErrAlreadyProcessed = errors.New("deposit claim already processed")
)
