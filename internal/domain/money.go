package domain

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Money is a monetary amount in pence sterling. All arithmetic in the
// pricing pipeline happens on integer pence to avoid float drift.
type Money int64

var gbpPrinter = message.NewPrinter(language.BritishEnglish)

// Pence returns the raw pence value.
func (m Money) Pence() int64 { return int64(m) }

// MulInt scales the amount by a whole quantity.
func (m Money) MulInt(n int64) Money { return Money(int64(m) * n) }

// IsNegative reports whether the amount is below zero.
func (m Money) IsNegative() bool { return m < 0 }

// String renders the amount as a grouped sterling string, e.g. "£11,000.00".
func (m Money) String() string {
	neg := m < 0
	if neg {
		m = -m
	}
	formatted := gbpPrinter.Sprintf("£%d.%02d", int64(m)/100, int64(m)%100)
	if neg {
		return "-" + formatted
	}
	return formatted
}

// ApplyBasisPoints scales the amount by rate expressed in basis points,
// rounding half up. A rate of 2000 yields 20% of the amount.
func (m Money) ApplyBasisPoints(bps int64) Money {
	value := int64(m) * bps
	if value >= 0 {
		return Money((value + 5000) / 10000)
	}
	return Money(-((-value + 5000) / 10000))
}
