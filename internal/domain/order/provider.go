package order

import "context"

// ProviderOrder is a number rental accepted by the provider.
type ProviderOrder struct {
	Ref       string
	Number    string
	CostCents int64
}

// ProviderPoll is one raw status check. Code is the provider's untranslated
// status code; MapStatusCode owns its interpretation.
type ProviderPoll struct {
	Code string
	SMS  string
}

// ProviderClient is the boundary to the external verification-number
// provider. Errors returned from any call are transport-level and retryable;
// business outcomes arrive as values (a declined purchase is ErrServiceUnavailable
// from the adapter, a status code comes back inside ProviderPoll).
type ProviderClient interface {
	// Quote returns the provider's cost in cents, or an error wrapping
	// ErrServiceUnavailable when the service cannot be priced.
	Quote(ctx context.Context, serviceKey, country string) (int64, error)

	// Purchase rents a number, or fails with ErrServiceUnavailable when declined.
	Purchase(ctx context.Context, serviceKey, country string) (*ProviderOrder, error)

	// Poll checks for a received SMS.
	Poll(ctx context.Context, providerRef string) (*ProviderPoll, error)

	// Cancel releases a rented number. Best effort.
	Cancel(ctx context.Context, providerRef string) error
}
