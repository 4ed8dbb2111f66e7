package pricing

import "errors"

var reasonLabels = []struct {
	err   error
	label string
}{
	{ErrMissingLineID, "missing_line_id"},
	{ErrNotProductVariant, "not_product_variant"},
	{ErrNoPackSize, "no_pack_size"},
	{ErrPackSizeUnconfigured, "pack_size_unconfigured"},
	{ErrQuantityMismatch, "quantity_mismatch"},
	{ErrQuantityTooLow, "quantity_too_low"},
	{ErrPackNotEnabled, "pack_not_enabled"},
	{ErrNoDiscount, "no_discount"},
	{ErrPriceUnavailable, "price_unavailable"},
	{ErrInvalidPrice, "invalid_price"},
	{ErrDuplicateLine, "duplicate_line"},
	{ErrLinePanic, "panic"},
}

// Reason maps a skip error to a short stable label for logs and metrics.
// Unknown errors map to "other" and nil to "".
func Reason(err error) string {
	if err == nil {
		return ""
	}
	for _, r := range reasonLabels {
		if errors.Is(err, r.err) {
			return r.label
		}
	}
	return "other"
}
