package processor

import (
	"testing"

	"cryptoquote/models"
)

func TestMergeAsksAcrossSources(t *testing.T) {
	a := []models.PriceLevel{lv("100", "5")}
	b := []models.PriceLevel{lv("100", "3"), lv("101", "2")}

	book := Merge(models.SideAsk, a, b)
	if book.Side != models.SideAsk {
		t.Fatalf("side = %s", book.Side)
	}
	assertLevels(t, book.Levels, lv("100", "8"), lv("101", "2"))
}

func TestMergeBidsDescending(t *testing.T) {
	book := Merge(models.SideBid,
		[]models.PriceLevel{lv("99", "1"), lv("101", "1")},
		[]models.PriceLevel{lv("100", "2")},
	)
	assertLevels(t, book.Levels, lv("101", "1"), lv("100", "2"), lv("99", "1"))
}

func TestMergeExactPriceEquality(t *testing.T) {
	book := Merge(models.SideAsk,
		[]models.PriceLevel{lv("100.0", "1")},
		[]models.PriceLevel{lv("100", "2"), lv("100.00", "0.5")},
	)
	assertLevels(t, book.Levels, lv("100", "3.5"))
}

func TestMergeDropsZeroSums(t *testing.T) {
	book := Merge(models.SideAsk,
		[]models.PriceLevel{lv("100", "0"), lv("101", "1")},
		[]models.PriceLevel{lv("102", "0")},
	)
	assertLevels(t, book.Levels, lv("101", "1"))
}

func TestMergeEmptySources(t *testing.T) {
	if book := Merge(models.SideBid); book.Len() != 0 {
		t.Fatalf("expected empty book, got %v", book.Levels)
	}
	book := Merge(models.SideBid, nil, []models.PriceLevel{lv("5", "1")}, []models.PriceLevel{})
	assertLevels(t, book.Levels, lv("5", "1"))
}

func TestMergeWithItselfDoublesQuantities(t *testing.T) {
	src := []models.PriceLevel{lv("101", "2"), lv("100", "1.5"), lv("103", "0.25")}
	once := Merge(models.SideAsk, src)
	twice := Merge(models.SideAsk, src, src)

	if once.Len() != twice.Len() {
		t.Fatalf("level count changed: %d vs %d", once.Len(), twice.Len())
	}
	for i := range once.Levels {
		if !twice.Levels[i].Price.Equal(once.Levels[i].Price) {
			t.Fatalf("ordering changed at %d", i)
		}
		if !twice.Levels[i].Quantity.Equal(once.Levels[i].Quantity.Add(once.Levels[i].Quantity)) {
			t.Fatalf("level %d quantity %s is not double %s", i, twice.Levels[i].Quantity, once.Levels[i].Quantity)
		}
	}
}
