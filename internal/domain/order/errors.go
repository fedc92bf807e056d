package order

import "errors"

var (
	ErrOrderNotFound     = errors.New("order not found")
	ErrNotOwner          = errors.New("order belongs to another user")
	ErrInvalidTransition = errors.New("invalid order status transition")
	ErrNotCancellable    = errors.New("order is no longer cancellable")

	// ErrServiceUnavailable covers provider refusals: no price or declined
	// purchase. Surfaced as "try another service", never as an internal fault.
	ErrServiceUnavailable = errors.New("service currently unavailable")
)
