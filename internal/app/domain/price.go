package domain

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// MaxPrice caps a single price at the total BTC supply.
const MaxPrice = 21_000_000

// ParsePrice parses a decimal BTC amount such as "0.001".
func ParsePrice(raw string) (float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, fmt.Errorf("price is empty")
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("invalid price %q", raw)
	}
	if v < 0 {
		return 0, fmt.Errorf("price %q is negative", raw)
	}
	if v > MaxPrice {
		return 0, fmt.Errorf("price %q exceeds %d BTC", raw, MaxPrice)
	}
	return v, nil
}

// FormatPrice renders a BTC amount without trailing zeros.
func FormatPrice(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// ToSats converts a BTC amount to satoshis, rounding to the nearest sat.
// Amounts outside what ParsePrice accepts convert to 0.
func ToSats(btc float64) int64 {
	if math.IsNaN(btc) || btc < 0 || btc > MaxPrice {
		return 0
	}
	return int64(btc*1e8 + 0.5)
}
