package processor

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"cryptoquote/models"
)

// Resolve prices a market order of target units against curve.
//
// Targets at or beyond the book's depth fill what exists and report
// FullyFilled=false. Targets inside the first level are priced at the best
// price. Anything in between is interpolated linearly inside the level that
// completes the fill.
// A curve that breaks its own ordering returns *InvariantViolationError.
func Resolve(curve models.CumulativeCurve, target decimal.Decimal) (models.ExecutionQuote, error) {
	quote := models.ExecutionQuote{
		Side:      curve.Side,
		TargetQty: target,
		FilledQty: decimal.Zero,
		TotalCost: decimal.Zero,
	}

	if target.IsNegative() {
		return quote, fmt.Errorf("resolve %s %s: %w", curve.Side, target, ErrNegativeQuantity)
	}

	n := curve.Len()
	if n == 0 && len(curve.Levels) == 0 && len(curve.CumCost) == 0 {
		return quote, nil
	}
	if err := validateCurve(curve); err != nil {
		return quote, err
	}

	depth := curve.Depth()
	if target.GreaterThanOrEqual(depth) {
		quote.FilledQty = depth
		quote.TotalCost = curve.TotalCost()
		quote.LevelsConsumed = n
		return quote, nil
	}

	if target.LessThanOrEqual(curve.CumQty[0]) {
		quote.FilledQty = target
		quote.TotalCost = target.Mul(curve.Levels[0].Price)
		quote.FullyFilled = true
		if target.IsPositive() {
			quote.LevelsConsumed = 1
		}
		return quote, nil
	}

	// First level whose cumulative quantity covers the target. i >= 1 here.
	i := sort.Search(n, func(k int) bool {
		return curve.CumQty[k].GreaterThanOrEqual(target)
	})

	quote.FilledQty = target
	quote.FullyFilled = true
	quote.LevelsConsumed = i + 1
	if curve.CumQty[i].Equal(target) {
		quote.TotalCost = curve.CumCost[i]
		return quote, nil
	}
	remainder := target.Sub(curve.CumQty[i-1])
	quote.TotalCost = curve.CumCost[i-1].Add(remainder.Mul(curve.Levels[i].Price))
	return quote, nil
}

func validateCurve(curve models.CumulativeCurve) error {
	n := len(curve.CumQty)
	if len(curve.Levels) != n || len(curve.CumCost) != n {
		return &InvariantViolationError{
			Index:  -1,
			Reason: fmt.Sprintf("length mismatch: levels=%d cum_qty=%d cum_cost=%d", len(curve.Levels), n, len(curve.CumCost)),
		}
	}
	for i := 0; i < n; i++ {
		if !curve.Levels[i].Price.IsPositive() {
			return &InvariantViolationError{Index: i, Reason: fmt.Sprintf("price %s is not positive", curve.Levels[i].Price)}
		}
		if i == 0 {
			if !curve.CumQty[0].IsPositive() {
				return &InvariantViolationError{Index: 0, Reason: fmt.Sprintf("cumulative quantity %s is not positive", curve.CumQty[0])}
			}
			continue
		}
		if !curve.CumQty[i].GreaterThan(curve.CumQty[i-1]) {
			return &InvariantViolationError{
				Index:  i,
				Reason: fmt.Sprintf("cumulative quantity %s does not exceed %s", curve.CumQty[i], curve.CumQty[i-1]),
			}
		}
	}
	return nil
}
