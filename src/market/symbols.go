package market

import (
	"strings"
)

// Normalize upper-cases a symbol and completes a bare USD quote to quote.
//
//	btcusd  -> BTCUSDT (quote USDT)
//	ETHUSDT -> ETHUSDT
//	SOL     -> SOL
func Normalize(symbol, quote string) string {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	if s == "" {
		return s
	}
	quote = strings.ToUpper(quote)

	if strings.HasSuffix(s, quote) {
		return s
	}
	if strings.HasPrefix(quote, "USD") && strings.HasSuffix(s, "USD") {
		return strings.TrimSuffix(s, "USD") + quote
	}
	return s
}

// Split separates a concatenated symbol into base and quote assets.
// It returns ok=false when symbol does not end with quote or has no base.
func Split(symbol, quote string) (base string, q string, ok bool) {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	quote = strings.ToUpper(quote)
	if quote == "" || !strings.HasSuffix(s, quote) || len(s) == len(quote) {
		return "", "", false
	}
	return strings.TrimSuffix(s, quote), quote, true
}

// group normalizes symbols and maps each normalized symbol to the caller
// spellings that resolve to it. Blank symbols are dropped; order is kept.
func group(symbols []string, quote string) ([]string, map[string][]string) {
	order := make([]string, 0, len(symbols))
	aliases := make(map[string][]string, len(symbols))
	for _, s := range symbols {
		n := Normalize(s, quote)
		if n == "" {
			continue
		}
		if _, ok := aliases[n]; !ok {
			order = append(order, n)
		}
		key := strings.ToUpper(strings.TrimSpace(s))
		aliases[n] = appendUnique(aliases[n], key)
	}
	return order, aliases
}

func appendUnique(list []string, v string) []string {
	for _, x := range list {
		if x == v {
			return list
		}
	}
	return append(list, v)
}
