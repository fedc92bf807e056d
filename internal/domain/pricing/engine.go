package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Config holds pricing data. Overrides are configuration, not code:
// the engine never consults process-wide mutable state.
type Config struct {
	MinPriceCents        int64
	MaxPriceCents        int64
	DefaultMarginPercent float64
	ServiceMargins       map[string]float64 // service key -> margin percent override
	ServiceFixedPrices   map[string]int64   // service key -> fixed sale price in cents
}

// Engine computes sale prices from provider costs. It is pure: no I/O,
// no side effects, deterministic for a given construction.
type Engine struct {
	min           int64
	max           int64
	defaultMargin decimal.Decimal
	margins       map[string]decimal.Decimal
	fixed         map[string]int64
}

var hundred = decimal.NewFromInt(100)

// NewEngine validates bounds once at construction.
func NewEngine(cfg Config) (*Engine, error) {
	if cfg.MinPriceCents < 0 || cfg.MinPriceCents > cfg.MaxPriceCents {
		return nil, fmt.Errorf("%w: min=%d max=%d", ErrInvalidBounds, cfg.MinPriceCents, cfg.MaxPriceCents)
	}

	margins := make(map[string]decimal.Decimal, len(cfg.ServiceMargins))
	for key, pct := range cfg.ServiceMargins {
		margins[key] = decimal.NewFromFloat(pct)
	}

	fixed := make(map[string]int64, len(cfg.ServiceFixedPrices))
	for key, cents := range cfg.ServiceFixedPrices {
		fixed[key] = cents
	}

	return &Engine{
		min:           cfg.MinPriceCents,
		max:           cfg.MaxPriceCents,
		defaultMargin: decimal.NewFromFloat(cfg.DefaultMarginPercent),
		margins:       margins,
		fixed:         fixed,
	}, nil
}

// Price computes the sale price in cents for a provider cost in cents.
// A non-positive provider cost means the provider supplied no usable price
// and the service must not be sold, so ErrUnpricableService is returned.
// The result is always within [min, max].
func (e *Engine) Price(serviceKey string, providerCostCents int64) (int64, error) {
	if providerCostCents <= 0 {
		return 0, fmt.Errorf("%w: service=%s cost=%d", ErrUnpricableService, serviceKey, providerCostCents)
	}

	if fixed, ok := e.fixed[serviceKey]; ok {
		return e.clamp(fixed), nil
	}

	cost := decimal.NewFromInt(providerCostCents)
	margin := e.marginFor(serviceKey)
	sale := cost.Mul(hundred.Add(margin)).Div(hundred)

	return e.clamp(sale.Round(0).IntPart()), nil
}

// MarginPercent reports the margin that applies to a service, for display.
func (e *Engine) MarginPercent(serviceKey string) float64 {
	f, _ := e.marginFor(serviceKey).Float64()
	return f
}

func (e *Engine) marginFor(serviceKey string) decimal.Decimal {
	if margin, ok := e.margins[serviceKey]; ok {
		return margin
	}
	return e.defaultMargin
}

func (e *Engine) clamp(cents int64) int64 {
	if cents < e.min {
		return e.min
	}
	if cents > e.max {
		return e.max
	}
	return cents
}
