package pricing

import (
	"errors"
	"fmt"
)

// MerchandiseProductVariant is the only merchandise kind eligible for pack discounts.
const MerchandiseProductVariant = "ProductVariant"

var (
	// ErrMissingLineID is returned for lines without an identifier.
	ErrMissingLineID = errors.New("line has no id")
	// ErrNotProductVariant indicates the merchandise is not a product variant.
	ErrNotProductVariant = errors.New("merchandise is not a product variant")
	// ErrNoPackSize indicates the product title carries no "pack of N" marker.
	ErrNoPackSize = errors.New("no pack size in product title")
	// ErrPackSizeUnconfigured indicates the parsed pack size has no entry in the discount table.
	ErrPackSizeUnconfigured = errors.New("pack size has no configured discount")
	// ErrQuantityMismatch is returned by the strict quantity policy when quantity differs from the pack size.
	ErrQuantityMismatch = errors.New("quantity does not match pack size")
	// ErrQuantityTooLow is returned by the flag strategy below the minimum quantity.
	ErrQuantityTooLow = errors.New("quantity below pack minimum")
	// ErrPackNotEnabled indicates the product pack flag is absent or falsy.
	ErrPackNotEnabled = errors.New("pack flag not enabled")
	// ErrNoDiscount indicates the computed discount percent is not positive.
	ErrNoDiscount = errors.New("no discount applies")
	// ErrPriceUnavailable indicates neither compare-at nor current amount is present.
	ErrPriceUnavailable = errors.New("no unit price available")
	// ErrInvalidPrice indicates the chosen unit price is not a finite non-negative decimal.
	ErrInvalidPrice = errors.New("invalid unit price")
	// ErrDuplicateLine indicates an operation was already emitted for the line id.
	ErrDuplicateLine = errors.New("line already updated")
	// ErrLinePanic wraps a recovered panic raised while evaluating a line.
	ErrLinePanic = errors.New("line evaluation panicked")
)

// Cart is the evaluator view of a cart. Only lines are consumed.
type Cart struct {
	Lines []Line
}

// Line is an immutable snapshot of a cart line.
type Line struct {
	ID          string
	Quantity    int
	Merchandise Merchandise
	Cost        Cost
}

// Merchandise is a tagged union keyed by Kind.
type Merchandise struct {
	Kind    string
	Product *Product
}

// Product carries the attributes the pack rules read.
type Product struct {
	Title string
	// PackEnabled holds the raw pack flag value; see IsTruthy.
	PackEnabled any
}

// Cost holds decimal amounts as strings. Blank means absent.
type Cost struct {
	Amount          string
	CompareAtAmount string
}

// Operation instructs the host to fix a line's unit price.
type Operation struct {
	CartLineID string
	Amount     string
}

// Evaluator applies a Policy to carts. It holds no mutable state and is safe for concurrent use.
type Evaluator struct {
	policy   Policy
	observer Observer
}

// NewEvaluator validates the policy and returns an evaluator. A nil observer is replaced with NopObserver.
func NewEvaluator(policy Policy, observer Observer) (*Evaluator, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	if observer == nil {
		observer = NopObserver{}
	}
	return &Evaluator{policy: policy.clone(), observer: observer}, nil
}

// Policy returns a copy of the evaluator policy.
func (e *Evaluator) Policy() Policy {
	return e.policy.clone()
}

// Evaluate returns the line updates for the cart. It never fails: lines that do not qualify are skipped
// and reported to the observer. The result is empty, never nil, when nothing qualifies.
func (e *Evaluator) Evaluate(cart *Cart) []Operation {
	ops := make([]Operation, 0)
	if cart == nil || cart.Lines == nil {
		return ops
	}
	emitted := make(map[string]struct{}, len(cart.Lines))
	for _, line := range cart.Lines {
		op, percent, err := e.evaluateLine(line)
		if err == nil {
			if _, dup := emitted[op.CartLineID]; dup {
				err = ErrDuplicateLine
			}
		}
		if err != nil {
			e.notify(func() { e.observer.LineSkipped(line, err) })
			continue
		}
		emitted[op.CartLineID] = struct{}{}
		ops = append(ops, op)
		e.notify(func() { e.observer.LineDiscounted(line, op, percent) })
	}
	return ops
}

func (e *Evaluator) evaluateLine(line Line) (op Operation, percent int, err error) {
	defer func() {
		if r := recover(); r != nil {
			op, percent = Operation{}, 0
			err = fmt.Errorf("%w: %v", ErrLinePanic, r)
		}
	}()

	if line.ID == "" {
		return Operation{}, 0, ErrMissingLineID
	}
	if line.Merchandise.Kind != MerchandiseProductVariant {
		return Operation{}, 0, ErrNotProductVariant
	}
	var product Product
	if line.Merchandise.Product != nil {
		product = *line.Merchandise.Product
	}

	percent, err = e.discountPercent(line.Quantity, product)
	if err != nil {
		return Operation{}, 0, err
	}

	base, err := BasePrice(line.Cost)
	if err != nil {
		return Operation{}, 0, err
	}

	return Operation{
		CartLineID: line.ID,
		Amount:     FormatAmount(DiscountedUnitPrice(base, percent)),
	}, percent, nil
}

func (e *Evaluator) discountPercent(quantity int, product Product) (int, error) {
	switch e.policy.Strategy {
	case StrategyFlag:
		return e.flagPercent(quantity, product)
	case StrategyAuto:
		if _, ok := ParsePackSize(product.Title); ok {
			return e.titlePercent(quantity, product)
		}
		return e.flagPercent(quantity, product)
	default:
		return e.titlePercent(quantity, product)
	}
}

func (e *Evaluator) titlePercent(quantity int, product Product) (int, error) {
	size, ok := ParsePackSize(product.Title)
	if !ok {
		return 0, ErrNoPackSize
	}
	if e.policy.QuantityPolicy == QuantityStrict && quantity != size {
		return 0, ErrQuantityMismatch
	}
	percent, ok := e.policy.Table[size]
	if !ok || percent <= 0 {
		return 0, ErrPackSizeUnconfigured
	}
	return percent, nil
}

func (e *Evaluator) flagPercent(quantity int, product Product) (int, error) {
	if quantity < e.policy.FlagMinQuantity {
		return 0, ErrQuantityTooLow
	}
	if !IsTruthy(product.PackEnabled) {
		return 0, ErrPackNotEnabled
	}
	percent := ScaledPercent(quantity, e.policy.ScaleStepPercent, e.policy.ScaleMaxPercent)
	if percent <= 0 {
		return 0, ErrNoDiscount
	}
	return percent, nil
}

// ScaledPercent returns min(quantity*step, max) without overflowing.
func ScaledPercent(quantity, step, max int) int {
	if quantity <= 0 || step <= 0 {
		return 0
	}
	if quantity >= max/step+1 {
		return max
	}
	if p := quantity * step; p < max {
		return p
	}
	return max
}

// notify shields the evaluation loop from observer panics.
func (e *Evaluator) notify(fn func()) {
	defer func() { _ = recover() }()
	fn()
}
