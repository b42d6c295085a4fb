// Package symbols maps charting-platform tickers to the form the market-data
// provider accepts.
package symbols

import (
	"strings"
)

var exchanges = map[string]struct{}{
	"BINANCE": {}, "NASDAQ": {}, "NYSE": {}, "AMEX": {}, "FX": {}, "OANDA": {},
	"COINBASE": {}, "TVC": {}, "CBOE": {}, "CME": {}, "COMEX": {}, "NYMEX": {},
	"BITSTAMP": {}, "KRAKEN": {}, "SP": {}, "DJ": {}, "CAPITALCOM": {},
	"FOREXCOM": {}, "FX_IDC": {}, "ICE": {}, "EUREX": {}, "LSE": {},
}

// proxies maps indices and commodities that the provider does not quote
// directly to a liquid ETF tracking them. No value may appear as a key.
var proxies = map[string]string{
	"VIX":    "VIXY",
	"SPX":    "SPY",
	"SPX500": "SPY",
	"US500":  "SPY",
	"ES1!":   "SPY",
	"NDX":    "QQQ",
	"NAS100": "QQQ",
	"NQ1!":   "QQQ",
	"DJI":    "DIA",
	"US30":   "DIA",
	"RUT":    "IWM",
	"DXY":    "UUP",
	"GOLD":   "GLD",
	"XAUUSD": "GLD",
	"GC1!":   "GLD",
	"SILVER": "SLV",
	"XAGUSD": "SLV",
	"USOIL":  "USO",
	"WTI":    "USO",
	"CL1!":   "USO",
	"UKOIL":  "BNO",
	"BRENT":  "BNO",
	"NATGAS": "UNG",
	"NG1!":   "UNG",
	"US10Y":  "IEF",
	"TNX":    "IEF",
	"US02Y":  "SHY",
	"COPPER": "CPER",
	"HG1!":   "CPER",
}

// stableQuotes are settled as USD by the provider.
var stableQuotes = []string{"USDT", "USDC", "BUSD"}

// fiat codes recognised in separated pairs such as EUR/USD or BTC-EUR.
var fiat = map[string]struct{}{
	"USD": {}, "EUR": {}, "GBP": {}, "JPY": {}, "CHF": {}, "CAD": {},
	"AUD": {}, "NZD": {}, "CNH": {}, "HKD": {}, "SGD": {},
}

// listingSuffixes are venue markers appended to bare equity tickers.
var listingSuffixes = []string{".US", ".O", ".N", ".OQ", "-US"}

// IsKnownExchange reports whether prefix is one of the exchange prefixes the
// normalizer recognises.
func IsKnownExchange(prefix string) bool {
	_, ok := exchanges[strings.ToUpper(strings.TrimSpace(prefix))]
	return ok
}

// Exchange returns the prefix of a qualified ticker such as "NASDAQ:AAPL", or
// "" when the ticker is bare.
func Exchange(asset string) string {
	asset = strings.TrimSpace(asset)
	if i := strings.LastIndexByte(asset, ':'); i > 0 {
		return strings.ToUpper(asset[:i])
	}
	return ""
}

// Normalize converts a charting ticker to the provider form. It is total and
// idempotent: Normalize(Normalize(s)) == Normalize(s).
func Normalize(asset string) string {
	// Rewrites can expose another one (XAUUSDT -> XAUUSD -> proxy, or stacked
	// venue suffixes), so settle on a fixed point. Every rewrite either
	// shortens the string or lands on a proxy value, which is itself fixed,
	// so the loop ends.
	s := normalizeOnce(asset)
	for {
		next := normalizeOnce(s)
		if next == s {
			return s
		}
		s = next
	}
}

func normalizeOnce(asset string) string {
	s := strings.ToUpper(strings.TrimSpace(asset))
	if s == "" {
		return ""
	}

	// Any prefix is dropped; IsKnownExchange lets callers reject unfamiliar venues.
	if i := strings.LastIndexByte(s, ':'); i >= 0 {
		s = s[i+1:]
	}

	if p, ok := proxies[s]; ok {
		return p
	}

	if c, ok := crypto(s); ok {
		return c
	}

	return stripSuffix(s)
}

// crypto rewrites stablecoin-quoted pairs to USD: BTCUSDT -> BTCUSD.
func crypto(s string) (string, bool) {
	for _, q := range stableQuotes {
		if strings.HasSuffix(s, q) && len(s) > len(q)+1 {
			base := strings.TrimRight(strings.TrimSuffix(s, q), "-/_")
			return base + "USD", true
		}
	}
	return "", false
}

func stripSuffix(s string) string {
	for _, sfx := range listingSuffixes {
		if strings.HasSuffix(s, sfx) && len(s) > len(sfx) {
			return strings.TrimSuffix(s, sfx)
		}
	}

	// Separated pairs collapse into the provider's six-letter form.
	if i := strings.IndexAny(s, "/-_"); i > 0 && i < len(s)-1 {
		base, quote := s[:i], s[i+1:]
		if _, ok := fiat[quote]; ok && isAlpha(base) {
			return base + quote
		}
	}
	return s
}

func isAlpha(s string) bool {
	for _, r := range s {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return s != ""
}

// NormalizeAll normalizes every entry and drops empties and duplicates while
// keeping the first-seen order.
func NormalizeAll(assets []string) []string {
	seen := make(map[string]struct{}, len(assets))
	out := make([]string, 0, len(assets))
	for _, a := range assets {
		n := Normalize(a)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}

// AllowSet builds a lookup set of normalized symbols.
func AllowSet(assets ...[]string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, group := range assets {
		for _, a := range group {
			if n := Normalize(a); n != "" {
				set[n] = struct{}{}
			}
		}
	}
	return set
}
