package pricing

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// AmountScale is the number of fraction digits in emitted prices.
const AmountScale = 2

// maxAmountExponent bounds the decimal exponent accepted by ParseAmount. Larger exponents make
// rounding and formatting cost proportional to the exponent.
const maxAmountExponent = 18

// BasePrice selects the discount basis for a line: the compare-at amount when present,
// otherwise the current amount.
func BasePrice(c Cost) (decimal.Decimal, error) {
	raw := strings.TrimSpace(c.CompareAtAmount)
	if raw == "" {
		raw = strings.TrimSpace(c.Amount)
	}
	if raw == "" {
		return decimal.Zero, ErrPriceUnavailable
	}
	return ParseAmount(raw)
}

// ParseAmount parses a decimal string and rejects negative values.
// NaN and infinities fail to parse. Values outside float64 range, or written with an exponent
// beyond ±maxAmountExponent, are rejected as well.
func ParseAmount(raw string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, ErrInvalidPrice
	}
	if d.IsNegative() {
		return decimal.Zero, ErrInvalidPrice
	}
	if exp := d.Exponent(); exp > maxAmountExponent || exp < -maxAmountExponent {
		return decimal.Zero, ErrInvalidPrice
	}
	if math.IsInf(d.InexactFloat64(), 0) {
		return decimal.Zero, ErrInvalidPrice
	}
	return d, nil
}

// DiscountedUnitPrice returns base*(1-percent/100) rounded half-up to AmountScale places.
// The product is exact; only the final rounding loses precision.
func DiscountedUnitPrice(base decimal.Decimal, percent int) decimal.Decimal {
	if percent <= 0 {
		return base.Round(AmountScale)
	}
	if percent >= 100 {
		return decimal.Zero
	}
	keep := decimal.NewFromInt(int64(100 - percent))
	// decimal rounds half away from zero, which is half-up for non-negative prices.
	return base.Mul(keep).Shift(-2).Round(AmountScale)
}

// FormatAmount renders d with exactly AmountScale fraction digits.
func FormatAmount(d decimal.Decimal) string {
	return d.StringFixed(AmountScale)
}
