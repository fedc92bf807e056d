package pricing

import "errors"

var (
	// ErrUnpricableService is returned when the provider supplied no usable cost.
	// Callers must surface this as "service currently unavailable", never as free.
	ErrUnpricableService = errors.New("service cannot be priced")

	// ErrInvalidBounds is returned at construction when MIN_PRICE > MAX_PRICE
	ErrInvalidBounds = errors.New("invalid price bounds")
)
