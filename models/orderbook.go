package models

import (
	"github.com/shopspring/decimal"
)

// Side identifies one half of an order book.
type Side string

const (
	SideBid Side = "bid"
	SideAsk Side = "ask"
)

// Valid reports whether s is a known side.
func (s Side) Valid() bool {
	return s == SideBid || s == SideAsk
}

// Better reports whether price a ranks ahead of price b on this side:
// lower prices first for asks, higher prices first for bids.
func (s Side) Better(a, b decimal.Decimal) bool {
	if s == SideBid {
		return a.GreaterThan(b)
	}
	return a.LessThan(b)
}

// Key returns the JSON field name that holds this side's levels in the
// common {"bids": [...], "asks": [...]} snapshot layout.
func (s Side) Key() string {
	if s == SideBid {
		return "bids"
	}
	return "asks"
}

// PriceLevel represents a single (price, aggregate quantity) pair.
type PriceLevel struct {
	Price    decimal.Decimal `json:"price"`
	Quantity decimal.Decimal `json:"quantity"`
}

// Notional returns price * quantity.
func (l PriceLevel) Notional() decimal.Decimal {
	return l.Price.Mul(l.Quantity)
}

// Book is the consolidated, sorted level list for one side. Levels are
// ordered best price first and hold at most one entry per distinct price.
type Book struct {
	Side   Side         `json:"side"`
	Levels []PriceLevel `json:"levels"`
}

// Len returns the number of price levels.
func (b Book) Len() int { return len(b.Levels) }

// Depth returns the total quantity available on the book.
func (b Book) Depth() decimal.Decimal {
	total := decimal.Zero
	for _, l := range b.Levels {
		total = total.Add(l.Quantity)
	}
	return total
}

// Best returns the top of book. ok is false for an empty book.
func (b Book) Best() (PriceLevel, bool) {
	if len(b.Levels) == 0 {
		return PriceLevel{}, false
	}
	return b.Levels[0], true
}

// CumulativeCurve holds running quantity and notional sums over a Book,
// index aligned with Levels.
type CumulativeCurve struct {
	Side    Side
	Levels  []PriceLevel
	CumQty  []decimal.Decimal
	CumCost []decimal.Decimal
}

// Len returns the number of points on the curve.
func (c CumulativeCurve) Len() int { return len(c.CumQty) }

// Depth returns the cumulative quantity at the last point, or zero.
func (c CumulativeCurve) Depth() decimal.Decimal {
	if len(c.CumQty) == 0 {
		return decimal.Zero
	}
	return c.CumQty[len(c.CumQty)-1]
}

// TotalCost returns the cumulative notional at the last point, or zero.
func (c CumulativeCurve) TotalCost() decimal.Decimal {
	if len(c.CumCost) == 0 {
		return decimal.Zero
	}
	return c.CumCost[len(c.CumCost)-1]
}

// AveragePrice returns the average fill price for the first i+1 levels.
func (c CumulativeCurve) AveragePrice(i int) decimal.Decimal {
	if i < 0 || i >= len(c.CumQty) || c.CumQty[i].IsZero() {
		return decimal.Zero
	}
	return c.CumCost[i].Div(c.CumQty[i])
}

// ExecutionQuote is the result of pricing a target quantity against a curve.
type ExecutionQuote struct {
	Side           Side            `json:"side"`
	TargetQty      decimal.Decimal `json:"target_qty"`
	FilledQty      decimal.Decimal `json:"filled_qty"`
	TotalCost      decimal.Decimal `json:"total_cost"`
	FullyFilled    bool            `json:"fully_filled"`
	LevelsConsumed int             `json:"levels_consumed"`
}

// RemainingQty returns the part of the target the book could not price.
func (q ExecutionQuote) RemainingQty() decimal.Decimal {
	rem := q.TargetQty.Sub(q.FilledQty)
	if rem.IsNegative() {
		return decimal.Zero
	}
	return rem
}

// AveragePrice returns the volume-weighted fill price, zero when nothing filled.
func (q ExecutionQuote) AveragePrice() decimal.Decimal {
	if q.FilledQty.IsZero() {
		return decimal.Zero
	}
	return q.TotalCost.Div(q.FilledQty)
}
