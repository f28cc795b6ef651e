package processor

import (
	"testing"

	"github.com/shopspring/decimal"

	"cryptoquote/models"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func lv(price, qty string) models.PriceLevel {
	return models.PriceLevel{Price: d(price), Quantity: d(qty)}
}

func assertLevels(t *testing.T, got []models.PriceLevel, want ...models.PriceLevel) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %d levels %v, want %d %v", len(got), got, len(want), want)
	}
	for i := range want {
		if !got[i].Price.Equal(want[i].Price) || !got[i].Quantity.Equal(want[i].Quantity) {
			t.Fatalf("level %d = (%s, %s), want (%s, %s)", i, got[i].Price, got[i].Quantity, want[i].Price, want[i].Quantity)
		}
	}
}

func askBook(levels ...models.PriceLevel) models.Book {
	return models.Book{Side: models.SideAsk, Levels: levels}
}
