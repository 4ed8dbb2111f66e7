package cartxform

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/noah-isme/pack-discount/internal/pricing"
)

// ErrInvalidJSON is returned when the request body is not a JSON document.
var ErrInvalidJSON = errors.New("input is not valid JSON")

// Decode reads a whole input document from r. See DecodeBytes.
func Decode(r io.Reader) (Input, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Input{}, fmt.Errorf("read input: %w", err)
	}
	return DecodeBytes(data)
}

// DecodeBytes parses an input document leniently. Only invalid JSON is an error.
// A document without a cart, or whose cart has no lines array, decodes to an input with no lines.
// Lines that do not match the expected shape are kept with Err set so they can be skipped and reported.
func DecodeBytes(data []byte) (Input, error) {
	if !json.Valid(data) {
		return Input{}, ErrInvalidJSON
	}

	var envelope struct {
		Cart *struct {
			Lines json.RawMessage `json:"lines"`
		} `json:"cart"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil || envelope.Cart == nil {
		return Input{}, nil
	}

	var rawLines []json.RawMessage
	if err := json.Unmarshal(envelope.Cart.Lines, &rawLines); err != nil || rawLines == nil {
		return Input{Cart: &Cart{}}, nil
	}

	lines := make([]CartLine, 0, len(rawLines))
	for i, raw := range rawLines {
		var line CartLine
		if err := json.Unmarshal(raw, &line); err != nil {
			line = CartLine{decodeErr: fmt.Errorf("%w at index %d: %v", ErrMalformedLine, i, err)}
		}
		lines = append(lines, line)
	}
	return Input{Cart: &Cart{Lines: lines}}, nil
}

// Encode writes the result document to w.
func Encode(w io.Writer, res Result) error {
	if res.Operations == nil {
		res.Operations = []Operation{}
	}
	return json.NewEncoder(w).Encode(res)
}

// toPricing converts decoded lines to evaluator lines. Malformed lines are dropped and returned separately.
func (in Input) toPricing() (*pricing.Cart, []CartLine) {
	if in.Cart == nil || in.Cart.Lines == nil {
		return nil, nil
	}
	var malformed []CartLine
	lines := make([]pricing.Line, 0, len(in.Cart.Lines))
	for _, l := range in.Cart.Lines {
		if l.decodeErr != nil {
			malformed = append(malformed, l)
			continue
		}
		lines = append(lines, l.toPricing())
	}
	return &pricing.Cart{Lines: lines}, malformed
}

func (l CartLine) toPricing() pricing.Line {
	out := pricing.Line{ID: l.ID, Quantity: l.Quantity}
	if m := l.Merchandise; m != nil {
		out.Merchandise.Kind = m.TypeName
		if p := m.Product; p != nil {
			product := &pricing.Product{Title: p.Title}
			if p.PackEnabled != nil {
				product.PackEnabled = p.PackEnabled.Value
			}
			out.Merchandise.Product = product
		}
	}
	if c := l.Cost; c != nil {
		if c.AmountPerQuantity != nil {
			out.Cost.Amount = string(c.AmountPerQuantity.Amount)
		}
		if c.CompareAtAmountPerQuantity != nil {
			out.Cost.CompareAtAmount = string(c.CompareAtAmountPerQuantity.Amount)
		}
	}
	return out
}

func fromPricing(ops []pricing.Operation) Result {
	if len(ops) == 0 {
		return NoChanges()
	}
	out := make([]Operation, 0, len(ops))
	for _, op := range ops {
		out = append(out, Operation{LineUpdate: &LineUpdateOperation{
			CartLineID: op.CartLineID,
			Price: &LineUpdatePrice{Adjustment: PriceAdjustment{
				FixedPricePerUnit: FixedPricePerUnit{Amount: op.Amount},
			}},
		}})
	}
	return Result{Operations: out}
}
