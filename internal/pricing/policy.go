package pricing

import (
	"fmt"
	"maps"

	validator "github.com/go-playground/validator/v10"
)

// Strategy selects how a line becomes eligible for a pack discount.
type Strategy string

const (
	// StrategyTitle matches "pack of N" in the product title and looks N up in the discount table.
	StrategyTitle Strategy = "title"
	// StrategyFlag requires the product pack flag and scales the percent with quantity.
	StrategyFlag Strategy = "flag"
	// StrategyAuto uses the title strategy for lines whose title carries a pack size and the flag strategy otherwise.
	StrategyAuto Strategy = "auto"
)

// QuantityPolicy controls whether the title strategy checks quantity against the pack size.
type QuantityPolicy string

const (
	// QuantityLenient takes the pack size from the title whatever the line quantity.
	QuantityLenient QuantityPolicy = "lenient"
	// QuantityStrict only discounts lines whose quantity equals the pack size.
	QuantityStrict QuantityPolicy = "strict"
)

// Policy is the configurable rule set applied by an Evaluator.
type Policy struct {
	Strategy       Strategy       `validate:"oneof=title flag auto"`
	QuantityPolicy QuantityPolicy `validate:"oneof=lenient strict"`
	// Table maps pack size to discount percent.
	Table            map[int]int `validate:"dive,keys,min=1,endkeys,min=1,max=100"`
	ScaleStepPercent int         `validate:"min=1,max=100"`
	ScaleMaxPercent  int         `validate:"min=1,max=100"`
	FlagMinQuantity  int         `validate:"min=1"`
}

var validate = validator.New()

// DefaultPolicy returns the storefront's baseline rules: title matching, no quantity check,
// 10% off a pack of 1 and 20% off a pack of 2.
func DefaultPolicy() Policy {
	return Policy{
		Strategy:         StrategyTitle,
		QuantityPolicy:   QuantityLenient,
		Table:            map[int]int{1: 10, 2: 20},
		ScaleStepPercent: 10,
		ScaleMaxPercent:  100,
		FlagMinQuantity:  2,
	}
}

// Validate reports whether the policy can be evaluated.
func (p Policy) Validate() error {
	if err := validate.Struct(p); err != nil {
		return fmt.Errorf("invalid pricing policy: %w", err)
	}
	return nil
}

func (p Policy) clone() Policy {
	out := p
	out.Table = maps.Clone(p.Table)
	return out
}
