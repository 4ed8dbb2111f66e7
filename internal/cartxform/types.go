package cartxform

import (
	"bytes"
	"encoding/json"
	"errors"
)

// ErrMalformedLine marks a cart line whose JSON shape could not be decoded.
var ErrMalformedLine = errors.New("malformed cart line")

// Input is the cart-transform request document sent by the host.
type Input struct {
	Cart *Cart `json:"cart"`
}

// Cart holds the ordered cart lines.
type Cart struct {
	Lines []CartLine `json:"lines"`
}

// CartLine mirrors a host cart line.
type CartLine struct {
	ID          string        `json:"id"`
	Quantity    int           `json:"quantity"`
	Merchandise *Merchandise  `json:"merchandise,omitempty"`
	Cost        *CartLineCost `json:"cost,omitempty"`

	decodeErr error
}

// Err reports why the line could not be decoded, if it could not.
func (l CartLine) Err() error {
	return l.decodeErr
}

// Merchandise is the tagged union of purchasable things. Only ProductVariant carries a product.
type Merchandise struct {
	TypeName string   `json:"__typename"`
	Product  *Product `json:"product,omitempty"`
}

// Product is the subset of product fields the pack rules read.
type Product struct {
	Title       string     `json:"title"`
	PackEnabled *Metafield `json:"packEnabled,omitempty"`
}

// Metafield holds a custom attribute value. The host sends {"value": ...}; bare scalars are accepted too.
type Metafield struct {
	Value any `json:"value"`
}

// UnmarshalJSON keeps numbers as json.Number so 1 and 1.5 stay distinguishable.
func (m *Metafield) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	if obj, ok := raw.(map[string]any); ok {
		m.Value = obj["value"]
		return nil
	}
	m.Value = raw
	return nil
}

// CartLineCost carries per-unit amounts.
type CartLineCost struct {
	AmountPerQuantity          *Money `json:"amountPerQuantity,omitempty"`
	CompareAtAmountPerQuantity *Money `json:"compareAtAmountPerQuantity,omitempty"`
}

// Money is a decimal amount with its currency.
type Money struct {
	Amount       Amount `json:"amount"`
	CurrencyCode string `json:"currencyCode,omitempty"`
}

// Amount is a decimal kept in its textual form. It decodes from a JSON string or number.
type Amount string

// UnmarshalJSON implements json.Unmarshaler.
func (a *Amount) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("null")) {
		*a = ""
		return nil
	}
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		*a = Amount(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(trimmed, &n); err != nil {
		return err
	}
	*a = Amount(n.String())
	return nil
}

// Result is the cart-transform response document.
type Result struct {
	Operations []Operation `json:"operations"`
}

// NoChanges returns a result with an empty, non-null operation list.
func NoChanges() Result {
	return Result{Operations: []Operation{}}
}

// Operation is one host instruction. Only line updates are produced.
type Operation struct {
	LineUpdate *LineUpdateOperation `json:"lineUpdate,omitempty"`
}

// LineUpdateOperation overrides a cart line's price.
type LineUpdateOperation struct {
	CartLineID string           `json:"cartLineId"`
	Price      *LineUpdatePrice `json:"price,omitempty"`
}

// LineUpdatePrice wraps the price adjustment.
type LineUpdatePrice struct {
	Adjustment PriceAdjustment `json:"adjustment"`
}

// PriceAdjustment sets a fixed per-unit price.
type PriceAdjustment struct {
	FixedPricePerUnit FixedPricePerUnit `json:"fixedPricePerUnit"`
}

// FixedPricePerUnit is the new unit price.
type FixedPricePerUnit struct {
	Amount string `json:"amount"`
}
