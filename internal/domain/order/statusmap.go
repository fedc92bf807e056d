package order

import "github.com/rs/zerolog/log"

// ProviderStatus is the interpreted provider state for an active order.
type ProviderStatus string

const (
	ProviderPending    ProviderStatus = "pending"
	ProviderProcessing ProviderStatus = "processing"
	ProviderSuccess    ProviderStatus = "success"
	ProviderExpired    ProviderStatus = "expired"
	ProviderCancelled  ProviderStatus = "cancelled"
	ProviderError      ProviderStatus = "error"
)

// statusCodes is the versioned contract with the provider's documented status
// codes. Code 3 is "SMS dispatched/processing" and is NOT terminal: an earlier
// deployment mapped it to cancelled, refunding orders whose SMS was already on
// the way. Keep this table exhaustive and in sync with the provider docs; it
// gates the refund-vs-wait decision.
var statusCodes = map[string]ProviderStatus{
	"1": ProviderPending,
	"2": ProviderSuccess,
	"3": ProviderProcessing,
	"4": ProviderExpired,
	"5": ProviderExpired, // provider-side timeout
	"6": ProviderCancelled,

	// Some endpoints echo string statuses instead of numeric codes.
	"pending":    ProviderPending,
	"success":    ProviderSuccess,
	"processing": ProviderProcessing,
	"expired":    ProviderExpired,
	"timeout":    ProviderExpired,
	"cancelled":  ProviderCancelled,
	"error":      ProviderError,
}

// MapStatusCode translates a raw provider status code. Unknown codes never
// terminate an order: they map to pending with a warning so a provider-side
// contract change cannot trigger a premature refund.
func MapStatusCode(code string) ProviderStatus {
	if status, ok := statusCodes[code]; ok {
		return status
	}
	log.Warn().Str("code", code).Msg("Unknown provider status code, treating as pending")
	return ProviderPending
}

// terminalStatusFor maps an interpreted terminal provider failure to the
// order status it settles into.
func terminalStatusFor(ps ProviderStatus) (Status, bool) {
	switch ps {
	case ProviderExpired:
		return StatusTimeout, true
	case ProviderCancelled:
		return StatusCancelled, true
	case ProviderError:
		return StatusError, true
	default:
		return "", false
	}
}
