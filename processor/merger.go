package processor

import (
	"sort"

	"github.com/shopspring/decimal"

	"cryptoquote/models"
)

// Merge consolidates level lists from several sources into one book for side.
// Levels at numerically equal prices are summed, zero sums are dropped and the
// result is ordered best price first.
func Merge(side models.Side, sources ...[]models.PriceLevel) models.Book {
	type bucket struct {
		price decimal.Decimal
		qty   decimal.Decimal
	}

	// decimal.String is canonical for equal values, so 100 and 100.0 share a key.
	buckets := make(map[string]*bucket)
	for _, levels := range sources {
		for _, l := range levels {
			key := l.Price.String()
			b, ok := buckets[key]
			if !ok {
				b = &bucket{price: l.Price, qty: decimal.Zero}
				buckets[key] = b
			}
			b.qty = b.qty.Add(l.Quantity)
		}
	}

	merged := make([]models.PriceLevel, 0, len(buckets))
	for _, b := range buckets {
		if b.qty.IsZero() {
			continue
		}
		merged = append(merged, models.PriceLevel{Price: b.price, Quantity: b.qty})
	}

	sort.Slice(merged, func(i, j int) bool {
		return side.Better(merged[i].Price, merged[j].Price)
	})

	return models.Book{Side: side, Levels: merged}
}
