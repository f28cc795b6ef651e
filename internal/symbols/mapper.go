package symbols

import (
	"fmt"
	"strings"
)

// quoteAssets are matched longest first so USDT wins over USD.
var quoteAssets = []string{"USDT", "USDC", "FDUSD", "BUSD", "USD", "EUR", "GBP"}

// Canonical converts an exchange-specific symbol to upper case without
// separators, using BTC instead of XBT. For example BTC-USD, btcusd,
// BTC-USDT-SWAP, XXBTZUSD and XBT-USDTM become BTCUSD, BTCUSD, BTCUSDT,
// BTCUSD and BTCUSDT.
func Canonical(format, sym string) string {
	sym = strings.ToUpper(strings.TrimSpace(sym))
	switch strings.ToLower(format) {
	case "binance", "bybit":
		for _, prefix := range []string{"1000000", "1000"} {
			if strings.HasPrefix(sym, prefix) {
				sym = strings.TrimPrefix(sym, prefix)
				break
			}
		}
		sym = strings.Replace(sym, "1000USDT", "USDT", 1)
	case "okx":
		sym = strings.TrimSuffix(sym, "-SWAP")
	case "kraken":
		// Legacy pairs carry X/Z class prefixes: XXBTZUSD.
		if len(sym) == 8 && sym[0] == 'X' && sym[4] == 'Z' {
			sym = sym[1:4] + sym[5:]
		}
	case "kucoin":
		sym = strings.ReplaceAll(sym, "-", "")
		sym = strings.TrimSuffix(sym, "M")
	}
	sym = strings.NewReplacer("-", "", "/", "", "_", "").Replace(sym)
	if strings.HasPrefix(sym, "XBT") {
		sym = "BTC" + sym[3:]
	}
	return sym
}

// Split returns the base and quote assets of sym. ok is false when no known
// quote asset terminates the canonical symbol.
func Split(format, sym string) (base, quote string, ok bool) {
	c := Canonical(format, sym)
	for _, q := range quoteAssets {
		if strings.HasSuffix(c, q) && len(c) > len(q) {
			return strings.TrimSuffix(c, q), q, true
		}
	}
	return "", "", false
}

// BaseAsset returns the traded asset of sym, or the canonical symbol when the
// quote asset is unknown.
func BaseAsset(format, sym string) string {
	if base, _, ok := Split(format, sym); ok {
		return base
	}
	return Canonical(format, sym)
}

// Pair is a symbol as one source lists it.
type Pair struct {
	Source string
	Format string
	Symbol string
}

// CommonBase returns the single base asset shared by pairs. It fails when the
// pairs trade different assets.
func CommonBase(pairs []Pair) (string, error) {
	var base, first string
	for _, p := range pairs {
		b := BaseAsset(p.Format, p.Symbol)
		if base == "" {
			base, first = b, p.Source
			continue
		}
		if b != base {
			return "", fmt.Errorf("source %s trades %s but %s trades %s", p.Source, b, first, base)
		}
	}
	if base == "" {
		return "", fmt.Errorf("no symbols given")
	}
	return base, nil
}
