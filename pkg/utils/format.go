// Package utils provides display formatting shared by the CLI, API and reports.
package utils

import (
	"fmt"
	"math"
	"strings"
)

// CurrencySymbol prefixes formatted money amounts.
var CurrencySymbol = "$"

// FormatMoney formats an amount with thousands separators, e.g. 1234567 → "$1,234,567".
func FormatMoney(amount float64, decimals int) string {
	if amount < 0 {
		return "-" + CurrencySymbol + FormatNumber(-amount, decimals)
	}
	return CurrencySymbol + FormatNumber(amount, decimals)
}

// FormatMoneyCompact formats an amount in K / M / B notation.
// e.g., 1500000 → "$1.5M", 2500 → "$2.5K"
func FormatMoneyCompact(amount float64) string {
	prefix := CurrencySymbol
	if amount < 0 {
		prefix = "-" + CurrencySymbol
		amount = -amount
	}

	switch {
	case amount >= 1e9:
		return fmt.Sprintf("%s%sB", prefix, formatWithDecimals(amount/1e9))
	case amount >= 1e6:
		return fmt.Sprintf("%s%sM", prefix, formatWithDecimals(amount/1e6))
	case amount >= 1e3:
		return fmt.Sprintf("%s%sK", prefix, formatWithDecimals(amount/1e3))
	default:
		return fmt.Sprintf("%s%.0f", prefix, amount)
	}
}

// FormatNumber formats a non-negative or negative number with comma grouping.
func FormatNumber(value float64, decimals int) string {
	if math.IsInf(value, 0) || math.IsNaN(value) {
		return fmt.Sprintf("%v", value)
	}
	negative := value < 0
	s := fmt.Sprintf("%.*f", decimals, math.Abs(value))

	intPart, frac := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart, frac = s[:i], s[i:]
	}

	out := groupThousands(intPart) + frac
	if negative && strings.Trim(out, "0.,") != "" {
		return "-" + out
	}
	return out
}

// FormatPercent formats a ratio as a percentage, e.g. 0.065 → "6.50%".
func FormatPercent(ratio float64, decimals int) string {
	return fmt.Sprintf("%.*f%%", decimals, ratio*100)
}

// FormatPct formats a percentage value with sign and suffix.
// e.g., 2.45 → "+2.45%", -1.23 → "-1.23%"
func FormatPct(pct float64) string {
	if pct >= 0 {
		return fmt.Sprintf("+%.2f%%", pct)
	}
	return fmt.Sprintf("%.2f%%", pct)
}

// FormatRatio formats a multiple such as DSCR, e.g. 1.254 → "1.25x".
func FormatRatio(value float64, decimals int) string {
	return fmt.Sprintf("%.*fx", decimals, value)
}

// groupThousands inserts commas every three digits from the right.
func groupThousands(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	var b strings.Builder
	lead := len(digits) % 3
	if lead > 0 {
		b.WriteString(digits[:lead])
	}
	for i := lead; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}

// formatWithDecimals formats a number with up to 2 decimal places,
// removing trailing zeros.
func formatWithDecimals(n float64) string {
	s := fmt.Sprintf("%.2f", n)
	s = strings.TrimRight(s, "0")
	s = strings.TrimRight(s, ".")
	return s
}
