package domain

import "testing"

func TestMoneyString(t *testing.T) {
	cases := []struct {
		amount   Money
		expected string
	}{
		{0, "£0.00"},
		{2500, "£25.00"},
		{1100000, "£11,000.00"},
		{123456789, "£1,234,567.89"},
		{-4500, "-£45.00"},
	}

	for _, tc := range cases {
		if got := tc.amount.String(); got != tc.expected {
			t.Fatalf("expected %q for %d pence, got %q", tc.expected, tc.amount.Pence(), got)
		}
	}
}

func TestMoneyApplyBasisPointsRoundsHalfUp(t *testing.T) {
	cases := []struct {
		amount   Money
		bps      int64
		expected Money
	}{
		{1100000, 2000, 220000},
		{99999, 2000, 20000},
		{25, 2000, 5},
		{1, 5000, 1},
		{0, 2000, 0},
		{-99999, 2000, -20000},
	}

	for _, tc := range cases {
		if got := tc.amount.ApplyBasisPoints(tc.bps); got != tc.expected {
			t.Fatalf("expected %d for %d at %d bps, got %d", tc.expected, tc.amount, tc.bps, got)
		}
	}
}

func TestMoneyMulInt(t *testing.T) {
	if got := Money(9500).MulInt(12); got != 114000 {
		t.Fatalf("expected 114000, got %d", got)
	}
	if got := Money(9500).MulInt(0); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
}
