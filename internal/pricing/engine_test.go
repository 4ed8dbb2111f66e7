package pricing

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func variantLine(id string, qty int, title string, cost Cost) Line {
	return Line{
		ID:          id,
		Quantity:    qty,
		Merchandise: Merchandise{Kind: MerchandiseProductVariant, Product: &Product{Title: title}},
		Cost:        cost,
	}
}

func flagLine(id string, qty int, flag any, cost Cost) Line {
	return Line{
		ID:          id,
		Quantity:    qty,
		Merchandise: Merchandise{Kind: MerchandiseProductVariant, Product: &Product{Title: "Socks", PackEnabled: flag}},
		Cost:        cost,
	}
}

func mustEvaluator(t *testing.T, policy Policy, observer Observer) *Evaluator {
	t.Helper()
	ev, err := NewEvaluator(policy, observer)
	require.NoError(t, err)
	return ev
}

func flagPolicy() Policy {
	p := DefaultPolicy()
	p.Strategy = StrategyFlag
	return p
}

func TestEvaluateEmptyCart(t *testing.T) {
	ev := mustEvaluator(t, DefaultPolicy(), nil)

	for name, cart := range map[string]*Cart{
		"nil cart":  nil,
		"nil lines": {},
		"no lines":  {Lines: []Line{}},
	} {
		t.Run(name, func(t *testing.T) {
			ops := ev.Evaluate(cart)
			require.NotNil(t, ops)
			require.Empty(t, ops)
		})
	}
}

func TestEvaluateTitlePackOfTwoUsesCompareAt(t *testing.T) {
	ev := mustEvaluator(t, DefaultPolicy(), nil)
	cart := &Cart{Lines: []Line{
		variantLine("gid://line/1", 2, "Sport Socks - Pack of 2", Cost{Amount: "9.00", CompareAtAmount: "10.00"}),
	}}

	ops := ev.Evaluate(cart)
	require.Equal(t, []Operation{{CartLineID: "gid://line/1", Amount: "8.00"}}, ops)
}

func TestEvaluateTitleIsCaseInsensitiveAndLenient(t *testing.T) {
	ev := mustEvaluator(t, DefaultPolicy(), nil)
	cart := &Cart{Lines: []Line{
		variantLine("a", 7, "PACK OF 2", Cost{Amount: "10.00"}),
		variantLine("b", 1, "socks pack of 1 - special", Cost{Amount: "20"}),
	}}

	ops := ev.Evaluate(cart)
	require.Equal(t, []Operation{
		{CartLineID: "a", Amount: "8.00"},
		{CartLineID: "b", Amount: "18.00"},
	}, ops)
}

func TestEvaluateUnconfiguredPackSize(t *testing.T) {
	ev := mustEvaluator(t, DefaultPolicy(), nil)
	ops := ev.Evaluate(&Cart{Lines: []Line{
		variantLine("a", 5, "Pack of 5", Cost{Amount: "10.00"}),
	}})
	require.Empty(t, ops)
}

func TestEvaluateStrictQuantity(t *testing.T) {
	policy := DefaultPolicy()
	policy.QuantityPolicy = QuantityStrict
	var reasons []error
	ev := mustEvaluator(t, policy, ObserverFuncs{Skipped: func(_ Line, reason error) { reasons = append(reasons, reason) }})

	ops := ev.Evaluate(&Cart{Lines: []Line{
		variantLine("a", 3, "Pack of 2", Cost{Amount: "10.00"}),
		variantLine("b", 2, "Pack of 2", Cost{Amount: "10.00"}),
	}})

	require.Equal(t, []Operation{{CartLineID: "b", Amount: "8.00"}}, ops)
	require.Len(t, reasons, 1)
	require.ErrorIs(t, reasons[0], ErrQuantityMismatch)
}

func TestEvaluateBadPriceDoesNotAbortBatch(t *testing.T) {
	ev := mustEvaluator(t, DefaultPolicy(), nil)
	cart := &Cart{Lines: []Line{
		variantLine("missing", 2, "Pack of 2", Cost{}),
		variantLine("garbage", 2, "Pack of 2", Cost{Amount: "ten dollars"}),
		variantLine("nan", 2, "Pack of 2", Cost{CompareAtAmount: "NaN", Amount: "10.00"}),
		variantLine("negative", 2, "Pack of 2", Cost{Amount: "-3.00"}),
		variantLine("huge exponent", 2, "Pack of 2", Cost{Amount: "1e50000000"}),
		variantLine("tiny exponent", 2, "Pack of 2", Cost{Amount: "1e-500000000"}),
		variantLine("beyond float64", 2, "Pack of 2", Cost{Amount: "1" + strings.Repeat("0", 400)}),
		variantLine("ok", 2, "Pack of 2", Cost{Amount: "5.00"}),
	}}

	start := time.Now()
	ops := ev.Evaluate(cart)
	require.Less(t, time.Since(start), time.Second)
	require.Equal(t, []Operation{{CartLineID: "ok", Amount: "4.00"}}, ops)
}

func TestEvaluateFlagStrategyScalesWithQuantity(t *testing.T) {
	ev := mustEvaluator(t, flagPolicy(), nil)
	ops := ev.Evaluate(&Cart{Lines: []Line{
		flagLine("a", 3, "true", Cost{Amount: "9.99"}),
	}})
	// 9.99 * 0.70 = 6.993
	require.Equal(t, []Operation{{CartLineID: "a", Amount: "6.99"}}, ops)
}

func TestEvaluateFlagStrategyCapsPercent(t *testing.T) {
	ev := mustEvaluator(t, flagPolicy(), nil)
	ops := ev.Evaluate(&Cart{Lines: []Line{
		flagLine("a", 15, true, Cost{Amount: "12.34"}),
	}})
	require.Equal(t, []Operation{{CartLineID: "a", Amount: "0.00"}}, ops)
}

func TestEvaluateFlagStrategyPreconditions(t *testing.T) {
	var reasons []error
	ev := mustEvaluator(t, flagPolicy(), ObserverFuncs{Skipped: func(_ Line, reason error) { reasons = append(reasons, reason) }})

	ops := ev.Evaluate(&Cart{Lines: []Line{
		flagLine("single", 1, true, Cost{Amount: "10.00"}),
		flagLine("off", 2, "false", Cost{Amount: "10.00"}),
		flagLine("unset", 2, nil, Cost{Amount: "10.00"}),
	}})

	require.Empty(t, ops)
	require.Len(t, reasons, 3)
	require.ErrorIs(t, reasons[0], ErrQuantityTooLow)
	require.ErrorIs(t, reasons[1], ErrPackNotEnabled)
	require.ErrorIs(t, reasons[2], ErrPackNotEnabled)
}

func TestEvaluateAutoStrategyDoesNotOverlap(t *testing.T) {
	policy := DefaultPolicy()
	policy.Strategy = StrategyAuto
	var reasons = map[string]error{}
	ev := mustEvaluator(t, policy, ObserverFuncs{Skipped: func(line Line, reason error) { reasons[line.ID] = reason }})

	titled := variantLine("titled", 4, "Pack of 2", Cost{Amount: "10.00"})
	titled.Merchandise.Product.PackEnabled = true
	unconfigured := variantLine("unconfigured", 4, "Pack of 9", Cost{Amount: "10.00"})
	unconfigured.Merchandise.Product.PackEnabled = true

	ops := ev.Evaluate(&Cart{Lines: []Line{
		titled,
		unconfigured,
		flagLine("flagged", 4, 1, Cost{Amount: "10.00"}),
	}})

	require.Equal(t, []Operation{
		{CartLineID: "titled", Amount: "8.00"},
		{CartLineID: "flagged", Amount: "6.00"},
	}, ops)
	require.ErrorIs(t, reasons["unconfigured"], ErrPackSizeUnconfigured)
}

func TestEvaluateSkipsNonVariantAndMissingIDs(t *testing.T) {
	var reasons []error
	ev := mustEvaluator(t, DefaultPolicy(), ObserverFuncs{Skipped: func(_ Line, reason error) { reasons = append(reasons, reason) }})

	custom := variantLine("custom", 2, "Pack of 2", Cost{Amount: "10.00"})
	custom.Merchandise.Kind = "CustomProduct"
	noProduct := variantLine("no-product", 2, "", Cost{Amount: "10.00"})
	noProduct.Merchandise.Product = nil

	ops := ev.Evaluate(&Cart{Lines: []Line{
		custom,
		variantLine("", 2, "Pack of 2", Cost{Amount: "10.00"}),
		noProduct,
	}})

	require.Empty(t, ops)
	require.Len(t, reasons, 3)
	require.ErrorIs(t, reasons[0], ErrNotProductVariant)
	require.ErrorIs(t, reasons[1], ErrMissingLineID)
	require.ErrorIs(t, reasons[2], ErrNoPackSize)
}

func TestEvaluateDuplicateLineIDs(t *testing.T) {
	ev := mustEvaluator(t, DefaultPolicy(), nil)
	ops := ev.Evaluate(&Cart{Lines: []Line{
		variantLine("a", 2, "Pack of 2", Cost{Amount: "10.00"}),
		variantLine("a", 1, "Pack of 1", Cost{Amount: "10.00"}),
	}})
	require.Equal(t, []Operation{{CartLineID: "a", Amount: "8.00"}}, ops)
}

func TestEvaluateIsDeterministicAndPreservesOrder(t *testing.T) {
	ev := mustEvaluator(t, DefaultPolicy(), nil)
	cart := &Cart{Lines: []Line{
		variantLine("c", 2, "Pack of 2", Cost{Amount: "3.00"}),
		variantLine("skip", 2, "Single", Cost{Amount: "3.00"}),
		variantLine("a", 1, "Pack of 1", Cost{Amount: "3.00"}),
		variantLine("b", 2, "Pack of 2", Cost{CompareAtAmount: "4.00", Amount: "3.00"}),
	}}
	snapshot := &Cart{Lines: append([]Line(nil), cart.Lines...)}

	first := ev.Evaluate(cart)
	second := ev.Evaluate(cart)

	require.Equal(t, first, second)
	require.Equal(t, []string{"c", "a", "b"}, []string{first[0].CartLineID, first[1].CartLineID, first[2].CartLineID})
	require.Equal(t, snapshot, cart)
}

func TestEvaluateSurvivesPanickingObserver(t *testing.T) {
	ev := mustEvaluator(t, DefaultPolicy(), ObserverFuncs{
		Skipped:    func(Line, error) { panic("boom") },
		Discounted: func(Line, Operation, int) { panic("boom") },
	})
	ops := ev.Evaluate(&Cart{Lines: []Line{
		variantLine("skip", 2, "Pack of 7", Cost{Amount: "1.00"}),
		variantLine("a", 2, "Pack of 2", Cost{Amount: "1.00"}),
		variantLine("b", 2, "Pack of 2", Cost{Amount: "2.00"}),
	}})
	require.Len(t, ops, 2)
}

type flagValue struct{ raw *string }

func (f flagValue) String() string { return *f.raw }

func TestEvaluateRecoversLinePanic(t *testing.T) {
	var reasons []error
	observer := ObserverFuncs{Skipped: func(_ Line, reason error) { reasons = append(reasons, reason) }}
	ev := mustEvaluator(t, flagPolicy(), observer)

	enabled := "true"
	ops := ev.Evaluate(&Cart{Lines: []Line{
		flagLine("broken", 3, flagValue{}, Cost{Amount: "10.00"}),
		flagLine("ok", 3, flagValue{raw: &enabled}, Cost{Amount: "10.00"}),
	}})

	require.Equal(t, []Operation{{CartLineID: "ok", Amount: "7.00"}}, ops)
	require.Len(t, reasons, 1)
	require.ErrorIs(t, reasons[0], ErrLinePanic)
	require.Equal(t, "panic", Reason(reasons[0]))
}

func TestEvaluateReportsDiscountPercent(t *testing.T) {
	var got []int
	ev := mustEvaluator(t, flagPolicy(), Observers(nil, ObserverFuncs{
		Discounted: func(_ Line, _ Operation, percent int) { got = append(got, percent) },
	}))
	ev.Evaluate(&Cart{Lines: []Line{
		flagLine("a", 2, json.Number("1"), Cost{Amount: "1.00"}),
		flagLine("b", 4, "1", Cost{Amount: "1.00"}),
	}})
	require.Equal(t, []int{20, 40}, got)
}

func TestNewEvaluatorRejectsInvalidPolicy(t *testing.T) {
	cases := map[string]func(*Policy){
		"unknown strategy":      func(p *Policy) { p.Strategy = "metafield" },
		"unknown quantity rule": func(p *Policy) { p.QuantityPolicy = "exact" },
		"zero pack size":        func(p *Policy) { p.Table = map[int]int{0: 10} },
		"percent over 100":      func(p *Policy) { p.Table = map[int]int{2: 120} },
		"zero scale step":       func(p *Policy) { p.ScaleStepPercent = 0 },
		"zero min quantity":     func(p *Policy) { p.FlagMinQuantity = 0 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			policy := DefaultPolicy()
			mutate(&policy)
			_, err := NewEvaluator(policy, nil)
			require.Error(t, err)
		})
	}
}

func TestEvaluatorPolicyIsCopied(t *testing.T) {
	policy := DefaultPolicy()
	ev := mustEvaluator(t, policy, nil)
	policy.Table[5] = 50
	ev.Policy().Table[5] = 50

	ops := ev.Evaluate(&Cart{Lines: []Line{variantLine("a", 5, "Pack of 5", Cost{Amount: "1.00"})}})
	require.Empty(t, ops)
}

func TestScaledPercent(t *testing.T) {
	cases := []struct {
		qty, step, max, want int
	}{
		{3, 10, 100, 30},
		{10, 10, 100, 100},
		{11, 10, 100, 100},
		{2, 10, 15, 15},
		{1, 30, 20, 20},
		{0, 10, 100, 0},
		{int(^uint(0) >> 1), 10, 100, 100},
	}
	for _, tc := range cases {
		if got := ScaledPercent(tc.qty, tc.step, tc.max); got != tc.want {
			t.Fatalf("ScaledPercent(%d, %d, %d) = %d, want %d", tc.qty, tc.step, tc.max, got, tc.want)
		}
	}
}
