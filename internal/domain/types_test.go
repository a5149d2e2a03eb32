package domain

import "testing"

func TestConfigurationFingerprintIgnoresKeyOrder(t *testing.T) {
	first := Configuration{"bays": int64(2), "beamSize": "6x6", "catSlide": true}
	second := Configuration{"catSlide": true, "beamSize": "6x6", "bays": int64(2)}

	a := first.Fingerprint()
	b := second.Fingerprint()
	if a == "" {
		t.Fatalf("expected a non-empty fingerprint")
	}
	if a != b {
		t.Fatalf("expected identical fingerprints, got %q and %q", a, b)
	}
}

func TestConfigurationFingerprintDistinguishesValues(t *testing.T) {
	first := Configuration{"bays": int64(2)}
	second := Configuration{"bays": int64(3)}

	if first.Fingerprint() == second.Fingerprint() {
		t.Fatalf("expected different fingerprints for different values")
	}
}

func TestAddressTypeCoverage(t *testing.T) {
	if !AddressTypeBilling.CoversBilling() || AddressTypeBilling.CoversShipping() {
		t.Fatalf("expected billing to cover billing only")
	}
	if AddressTypeShipping.CoversBilling() || !AddressTypeShipping.CoversShipping() {
		t.Fatalf("expected shipping to cover shipping only")
	}
	if !AddressTypeBoth.CoversBilling() || !AddressTypeBoth.CoversShipping() {
		t.Fatalf("expected both to cover billing and shipping")
	}
}

func TestConfigurationIntValueAcceptsJSONNumbers(t *testing.T) {
	cfg := Configuration{"bays": float64(3)}
	value, ok := cfg.IntValue("bays")
	if !ok || value != 3 {
		t.Fatalf("expected 3, got %d (ok=%v)", value, ok)
	}

	cfg = Configuration{"bays": 2.5}
	if _, ok := cfg.IntValue("bays"); ok {
		t.Fatalf("expected fractional value to be rejected")
	}
}

func TestOrderStatusCanTransition(t *testing.T) {
	cases := []struct {
		from    OrderStatus
		to      OrderStatus
		allowed bool
	}{
		{OrderStatusPending, OrderStatusConfirmed, true},
		{OrderStatusPending, OrderStatusCancelled, true},
		{OrderStatusPending, OrderStatusDispatched, false},
		{OrderStatusConfirmed, OrderStatusInProduction, true},
		{OrderStatusConfirmed, OrderStatusCancelled, true},
		{OrderStatusInProduction, OrderStatusDispatched, true},
		{OrderStatusInProduction, OrderStatusCancelled, false},
		{OrderStatusDispatched, OrderStatusCompleted, true},
		{OrderStatusCompleted, OrderStatusPending, false},
		{OrderStatusCancelled, OrderStatusConfirmed, false},
	}

	for _, tc := range cases {
		if got := tc.from.CanTransition(tc.to); got != tc.allowed {
			t.Fatalf("expected %s -> %s allowed=%v, got %v", tc.from, tc.to, tc.allowed, got)
		}
	}
}

func TestBasketItemLineTotal(t *testing.T) {
	item := BasketItem{UnitPrice: 1100000, Quantity: 3}
	if got := item.LineTotal(); got != 3300000 {
		t.Fatalf("expected line total 3300000, got %d", got)
	}
}

func TestDefaultDeliverySettings(t *testing.T) {
	settings := DefaultDeliverySettings()
	if settings.VATRateBps != 2000 {
		t.Fatalf("expected 2000 bps VAT, got %d", settings.VATRateBps)
	}
	if len(settings.ShippingTiers) != 3 {
		t.Fatalf("expected 3 shipping tiers, got %d", len(settings.ShippingTiers))
	}
	if settings.ShippingTiers[len(settings.ShippingTiers)-1].Threshold != 0 {
		t.Fatalf("expected a zero-threshold tier last")
	}
}
