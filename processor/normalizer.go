package processor

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"cryptoquote/models"
)

var (
	priceKeys    = []string{"price", "px", "p"}
	quantityKeys = []string{"amount", "quantity", "qty", "size", "sz", "q"}
)

// Normalize extracts one side of a raw order book document as price levels.
// format selects where the level lists live in the document; see the
// models.Format* constants.
func Normalize(source, format string, data []byte, side models.Side) ([]models.PriceLevel, error) {
	doc, err := decodeDocument(source, data)
	if err != nil {
		return nil, err
	}
	return normalizeSide(source, format, doc, side)
}

// NormalizeSnapshot extracts both sides of a snapshot. Any error on either
// side fails the whole snapshot.
func NormalizeSnapshot(snap models.RawSnapshot) (bids, asks []models.PriceLevel, err error) {
	doc, err := decodeDocument(snap.Source, snap.Data)
	if err != nil {
		return nil, nil, err
	}
	if bids, err = normalizeSide(snap.Source, snap.Format, doc, models.SideBid); err != nil {
		return nil, nil, err
	}
	if asks, err = normalizeSide(snap.Source, snap.Format, doc, models.SideAsk); err != nil {
		return nil, nil, err
	}
	return bids, asks, nil
}

func decodeDocument(source string, data []byte) (map[string]interface{}, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return nil, &MalformedSnapshotError{Source: source, Reason: fmt.Sprintf("invalid JSON: %v", err)}
	}
	doc, ok := v.(map[string]interface{})
	if !ok {
		return nil, &MalformedSnapshotError{Source: source, Reason: "document is not a JSON object"}
	}
	return doc, nil
}

func normalizeSide(source, format string, doc map[string]interface{}, side models.Side) ([]models.PriceLevel, error) {
	if !side.Valid() {
		return nil, &MalformedSnapshotError{Source: source, Side: string(side), Reason: "unknown side"}
	}

	container, key, err := locateLevels(source, format, doc, side)
	if err != nil {
		return nil, err
	}

	raw, ok := container[key]
	if !ok || raw == nil {
		return nil, &MalformedSnapshotError{Source: source, Side: string(side), Reason: fmt.Sprintf("missing %q list", key)}
	}
	items, ok := raw.([]interface{})
	if !ok {
		return nil, &MalformedSnapshotError{Source: source, Side: string(side), Reason: fmt.Sprintf("%q is not a list", key)}
	}

	levels := make([]models.PriceLevel, 0, len(items))
	for i, item := range items {
		level, err := parseLevel(source, side, i, item)
		if err != nil {
			return nil, err
		}
		levels = append(levels, level)
	}
	return levels, nil
}

// locateLevels returns the object holding the side's level list and the key
// under which the list is stored.
func locateLevels(source, format string, doc map[string]interface{}, side models.Side) (map[string]interface{}, string, error) {
	switch strings.ToLower(format) {
	case models.FormatCoinbase, models.FormatGemini, models.FormatBinance, models.FormatGeneric:
		return doc, side.Key(), nil

	case models.FormatBybit:
		// The SDK hands over the result object; a plain GET returns the envelope.
		if result, ok := doc["result"].(map[string]interface{}); ok {
			doc = result
		}
		if side == models.SideBid {
			return doc, "b", nil
		}
		return doc, "a", nil

	case models.FormatOkx:
		data, ok := doc["data"].([]interface{})
		if !ok || len(data) == 0 {
			return nil, "", &MalformedSnapshotError{Source: source, Side: string(side), Reason: "missing data[0]"}
		}
		book, ok := data[0].(map[string]interface{})
		if !ok {
			return nil, "", &MalformedSnapshotError{Source: source, Side: string(side), Reason: "data[0] is not an object"}
		}
		return book, side.Key(), nil

	case models.FormatKraken:
		// {"error":[],"result":{"XXBTZUSD":{"asks":[...],"bids":[...]}}}
		result, ok := doc["result"].(map[string]interface{})
		if !ok {
			return doc, side.Key(), nil
		}
		if len(result) != 1 {
			return nil, "", &MalformedSnapshotError{Source: source, Side: string(side), Reason: fmt.Sprintf("result holds %d pairs, want 1", len(result))}
		}
		for _, pair := range result {
			book, ok := pair.(map[string]interface{})
			if !ok {
				return nil, "", &MalformedSnapshotError{Source: source, Side: string(side), Reason: "result pair is not an object"}
			}
			return book, side.Key(), nil
		}
	}
	return nil, "", &MalformedSnapshotError{Source: source, Reason: fmt.Sprintf("unknown snapshot format %q", format)}
}

func parseLevel(source string, side models.Side, i int, item interface{}) (models.PriceLevel, error) {
	var rawPrice, rawQty interface{}

	switch v := item.(type) {
	case []interface{}:
		if len(v) < 2 {
			return models.PriceLevel{}, &MalformedSnapshotError{Source: source, Side: string(side), Reason: fmt.Sprintf("level %d has %d entries", i, len(v))}
		}
		rawPrice, rawQty = v[0], v[1]
	case map[string]interface{}:
		var ok bool
		if rawPrice, ok = firstKey(v, priceKeys); !ok {
			return models.PriceLevel{}, &MalformedSnapshotError{Source: source, Side: string(side), Reason: fmt.Sprintf("level %d has no price field", i)}
		}
		if rawQty, ok = firstKey(v, quantityKeys); !ok {
			return models.PriceLevel{}, &MalformedSnapshotError{Source: source, Side: string(side), Reason: fmt.Sprintf("level %d has no quantity field", i)}
		}
	default:
		return models.PriceLevel{}, &MalformedSnapshotError{Source: source, Side: string(side), Reason: fmt.Sprintf("level %d is neither an array nor an object", i)}
	}

	price, err := parseNumber(source, "price", rawPrice)
	if err != nil {
		return models.PriceLevel{}, err
	}
	qty, err := parseNumber(source, "quantity", rawQty)
	if err != nil {
		return models.PriceLevel{}, err
	}

	if !price.IsPositive() {
		return models.PriceLevel{}, &MalformedSnapshotError{Source: source, Side: string(side), Reason: fmt.Sprintf("level %d has non-positive price %s", i, price)}
	}
	if qty.IsNegative() {
		return models.PriceLevel{}, &MalformedSnapshotError{Source: source, Side: string(side), Reason: fmt.Sprintf("level %d has negative quantity %s", i, qty)}
	}
	return models.PriceLevel{Price: price, Quantity: qty}, nil
}

func firstKey(obj map[string]interface{}, keys []string) (interface{}, bool) {
	for _, k := range keys {
		if v, ok := obj[k]; ok {
			return v, true
		}
	}
	return nil, false
}

func parseNumber(source, field string, v interface{}) (decimal.Decimal, error) {
	var s string
	switch n := v.(type) {
	case json.Number:
		s = n.String()
	case string:
		s = strings.TrimSpace(n)
	default:
		return decimal.Decimal{}, &NumericParseError{Source: source, Field: field, Value: fmt.Sprintf("%v", v), Err: fmt.Errorf("unexpected JSON type %T", v)}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, &NumericParseError{Source: source, Field: field, Value: s, Err: err}
	}
	return d, nil
}
