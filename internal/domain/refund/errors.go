package refund

import "errors"

var (
	ErrRequestNotFound    = errors.New("refund request not found")
	ErrOrderNotRefundable = errors.New("order is not in a refundable state")
	ErrAlreadyRefunded    = errors.New("order was already refunded")
	ErrOpenRequestExists  = errors.New("order already has an open refund request")
	ErrAlreadyProcessed   = errors.New("refund request already processed")
)
