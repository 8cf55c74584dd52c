package domain

import (
	"math"
	"testing"
)

func TestParsePrice(t *testing.T) {
	v, err := ParsePrice(" 0.001 ")
	if err != nil || v != 0.001 {
		t.Fatalf("ParsePrice = %v, %v", v, err)
	}
	if v, err := ParsePrice("21000000"); err != nil || v != MaxPrice {
		t.Fatalf("ParsePrice at cap = %v, %v", v, err)
	}
	for _, bad := range []string{"", "abc", "-1", "NaN", "nan", "Inf", "+Inf", "-Inf", "infinity", "1e308", "21000000.5"} {
		if _, err := ParsePrice(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
	if got := FormatPrice(0.0015); got != "0.0015" {
		t.Fatalf("FormatPrice = %s", got)
	}
}

func TestToSats(t *testing.T) {
	cases := []struct {
		in   float64
		want int64
	}{
		{0.001, 100000},
		{0, 0},
		{MaxPrice, 2_100_000_000_000_000},
		{math.NaN(), 0},
		{math.Inf(1), 0},
		{-1, 0},
	}
	for _, tc := range cases {
		if got := ToSats(tc.in); got != tc.want {
			t.Fatalf("ToSats(%v) = %d, want %d", tc.in, got, tc.want)
		}
	}
}
