package processor

import (
	"github.com/shopspring/decimal"

	"cryptoquote/models"
)

// BuildCurve computes running quantity and notional sums over the book in
// level order.
func BuildCurve(book models.Book) models.CumulativeCurve {
	n := len(book.Levels)
	curve := models.CumulativeCurve{
		Side:    book.Side,
		Levels:  make([]models.PriceLevel, n),
		CumQty:  make([]decimal.Decimal, n),
		CumCost: make([]decimal.Decimal, n),
	}
	copy(curve.Levels, book.Levels)

	qty, cost := decimal.Zero, decimal.Zero
	for i, l := range book.Levels {
		qty = qty.Add(l.Quantity)
		cost = cost.Add(l.Notional())
		curve.CumQty[i] = qty
		curve.CumCost[i] = cost
	}
	return curve
}
