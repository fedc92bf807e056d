package pricing_test

import (
	"errors"
	"testing"

	"github.com/smsrent/smsrent-api/internal/domain/pricing"
)

func newEngine(t *testing.T, cfg pricing.Config) *pricing.Engine {
	t.Helper()
	e, err := pricing.NewEngine(cfg)
	if err != nil {
		t.Fatalf("engine construction failed: %v", err)
	}
	return e
}

func TestPriceAppliesDefaultMargin(t *testing.T) {
	e := newEngine(t, pricing.Config{
		MinPriceCents:        15,
		MaxPriceCents:        100,
		DefaultMarginPercent: 5.0,
	})

	// 20 cents * 1.05 = 21 cents
	price, err := e.Price("ring4", 20)
	if err != nil {
		t.Fatalf("price failed: %v", err)
	}
	if price != 21 {
		t.Fatalf("expected 21, got %d", price)
	}
}

func TestPriceServiceMarginOverride(t *testing.T) {
	e := newEngine(t, pricing.Config{
		MinPriceCents:        1,
		MaxPriceCents:        1000,
		DefaultMarginPercent: 5.0,
		ServiceMargins:       map[string]float64{"telegram": 50.0},
	})

	price, err := e.Price("telegram", 40)
	if err != nil {
		t.Fatalf("price failed: %v", err)
	}
	if price != 60 {
		t.Fatalf("expected 60 with 50%% override, got %d", price)
	}

	price, err = e.Price("whatsapp", 40)
	if err != nil {
		t.Fatalf("price failed: %v", err)
	}
	if price != 42 {
		t.Fatalf("expected 42 with default margin, got %d", price)
	}
}

func TestPriceFixedOverrideStillClamped(t *testing.T) {
	e := newEngine(t, pricing.Config{
		MinPriceCents:        15,
		MaxPriceCents:        100,
		DefaultMarginPercent: 5.0,
		ServiceFixedPrices:   map[string]int64{"ring4": 17, "premium": 250},
	})

	price, err := e.Price("ring4", 12)
	if err != nil {
		t.Fatalf("price failed: %v", err)
	}
	if price != 17 {
		t.Fatalf("expected fixed price 17, got %d", price)
	}

	price, err = e.Price("premium", 12)
	if err != nil {
		t.Fatalf("price failed: %v", err)
	}
	if price != 100 {
		t.Fatalf("expected fixed price clamped to 100, got %d", price)
	}
}

func TestPriceUnpricableService(t *testing.T) {
	e := newEngine(t, pricing.Config{
		MinPriceCents:        15,
		MaxPriceCents:        100,
		DefaultMarginPercent: 5.0,
		ServiceFixedPrices:   map[string]int64{"ring4": 17},
	})

	for _, cost := range []int64{0, -1} {
		if _, err := e.Price("telegram", cost); !errors.Is(err, pricing.ErrUnpricableService) {
			t.Fatalf("expected ErrUnpricableService for cost %d, got %v", cost, err)
		}
		// A fixed price must not mask an unavailable service either
		if _, err := e.Price("ring4", cost); !errors.Is(err, pricing.ErrUnpricableService) {
			t.Fatalf("expected ErrUnpricableService for fixed-price service with cost %d, got %v", cost, err)
		}
	}
}

func TestPriceAlwaysWithinBounds(t *testing.T) {
	e := newEngine(t, pricing.Config{
		MinPriceCents:        15,
		MaxPriceCents:        100,
		DefaultMarginPercent: 5.0,
		ServiceMargins:       map[string]float64{"big": 400.0, "zero": 0.0},
	})

	costs := []int64{1, 2, 5, 14, 15, 16, 50, 95, 96, 100, 101, 500, 10000}
	for _, service := range []string{"big", "zero", "other"} {
		for _, cost := range costs {
			price, err := e.Price(service, cost)
			if err != nil {
				t.Fatalf("price failed for %s/%d: %v", service, cost, err)
			}
			if price < 15 || price > 100 {
				t.Fatalf("price %d for %s/%d outside [15,100]", price, service, cost)
			}
		}
	}
}

func TestNewEngineRejectsInvertedBounds(t *testing.T) {
	_, err := pricing.NewEngine(pricing.Config{MinPriceCents: 100, MaxPriceCents: 15})
	if !errors.Is(err, pricing.ErrInvalidBounds) {
		t.Fatalf("expected ErrInvalidBounds, got %v", err)
	}

	_, err = pricing.NewEngine(pricing.Config{MinPriceCents: -1, MaxPriceCents: 15})
	if !errors.Is(err, pricing.ErrInvalidBounds) {
		t.Fatalf("expected ErrInvalidBounds for negative min, got %v", err)
	}
}
