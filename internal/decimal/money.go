// Package decimal holds the exact money arithmetic and the fixed-point
// formatting used in documents and reports.
package decimal

import (
	"github.com/shopspring/decimal"
)

// Zero is decimal zero
var Zero = decimal.Zero

// AmountPlaces is the number of decimals rendered for monetary amounts
const AmountPlaces = 2

// QuantityPlaces is the number of decimals rendered for quantities
const QuantityPlaces = 4

// MaxPrecision bounds both the significant digits and the exponent of a
// value the engine accepts. Anything wider cannot be formatted in bounded time.
const MaxPrecision = 28

// InRange reports whether d fits within MaxPrecision
func InRange(d decimal.Decimal) bool {
	exp := d.Exponent()
	if exp < -MaxPrecision || exp > MaxPrecision {
		return false
	}
	return d.NumDigits() <= MaxPrecision
}

// LineTotal computes quantity * unit price without rounding
func LineTotal(quantity, unitPrice decimal.Decimal) decimal.Decimal {
	return quantity.Mul(unitPrice)
}

// PercentOf computes amount * (percent/100).
// Dividing by 100 is a decimal shift, so the result stays exact.
func PercentOf(amount, percent decimal.Decimal) decimal.Decimal {
	return amount.Mul(percent).Shift(-2)
}

// IsPositive returns true if decimal is greater than zero
func IsPositive(d decimal.Decimal) bool {
	return d.GreaterThan(Zero)
}

// IsNonNegative returns true if decimal is >= zero
func IsNonNegative(d decimal.Decimal) bool {
	return d.GreaterThanOrEqual(Zero)
}

// FormatAmount renders a monetary amount with two decimals, half away from zero
func FormatAmount(d decimal.Decimal) string {
	return d.StringFixed(AmountPlaces)
}

// FormatQuantity renders a quantity with four decimals, half away from zero
func FormatQuantity(d decimal.Decimal) string {
	return d.StringFixed(QuantityPlaces)
}

// FormatPercent renders a rate with two decimals ("20.00", "5.50")
func FormatPercent(d decimal.Decimal) string {
	return d.StringFixed(AmountPlaces)
}
