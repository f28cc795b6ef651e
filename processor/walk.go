package processor

import (
	"fmt"

	"github.com/shopspring/decimal"

	"cryptoquote/models"
)

// Walk prices target by consuming book levels from the best price outward.
// It is the direct form of Resolve and returns the same quote for any valid book.
func Walk(book models.Book, target decimal.Decimal) (models.ExecutionQuote, error) {
	quote := models.ExecutionQuote{
		Side:      book.Side,
		TargetQty: target,
		FilledQty: decimal.Zero,
		TotalCost: decimal.Zero,
	}
	if target.IsNegative() {
		return quote, fmt.Errorf("walk %s %s: %w", book.Side, target, ErrNegativeQuantity)
	}

	remaining := target
	for _, l := range book.Levels {
		if !remaining.IsPositive() {
			break
		}
		if l.Quantity.IsZero() {
			continue
		}
		take := decimal.Min(l.Quantity, remaining)
		quote.TotalCost = quote.TotalCost.Add(take.Mul(l.Price))
		quote.FilledQty = quote.FilledQty.Add(take)
		remaining = remaining.Sub(take)
		quote.LevelsConsumed++
	}

	// An empty book never fills, even for a zero target, and consuming the
	// whole book counts as a partial fill.
	quote.FullyFilled = book.Len() > 0 && !remaining.IsPositive() && quote.FilledQty.LessThan(book.Depth())
	return quote, nil
}
