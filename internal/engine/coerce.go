package engine

import (
	"math"
	"strconv"
	"strings"
)

// ParseNumber converts a raw cell to a float. Thousands separators, currency
// marks and surrounding blanks are stripped; a trailing percent sign divides
// by 100. Empty, non-numeric and non-finite inputs report ok=false.
func ParseNumber(s string) (float64, bool) {
	if strings.TrimSpace(s) == "" {
		return 0, false
	}
	clean := strings.Map(func(r rune) rune {
		switch r {
		case ',', '$', '₹', ' ', '\u00a0':
			return -1
		default:
			return r
		}
	}, s)
	scale := 1.0
	if strings.HasSuffix(clean, "%") {
		clean = strings.TrimSuffix(clean, "%")
		scale = 0.01
	}
	f, err := strconv.ParseFloat(clean, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f * scale, true
}

// ParsePeriod converts a raw year cell to an integer period. Integral floats
// such as "2019.0" are accepted; fractional values and ranges like "2019-20"
// are not.
func ParsePeriod(s string) (int, bool) {
	t := strings.TrimSpace(s)
	if t == "" {
		return 0, false
	}
	if n, err := strconv.Atoi(t); err == nil {
		return n, true
	}
	f, err := strconv.ParseFloat(t, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || math.Trunc(f) != f {
		return 0, false
	}
	return int(f), true
}

// Round1 rounds to one decimal place for display.
func Round1(x float64) float64 { return math.Round(x*10) / 10 }

// Round2 rounds to two decimal places for display.
func Round2(x float64) float64 { return math.Round(x*100) / 100 }
