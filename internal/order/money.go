package order

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var moneyRegex = regexp.MustCompile(`-?\$?\s*-?\d[\d,]*(?:\.\d+)?`)

// FormatMoney renders value as "$12.34" (or "-$1.00").
func FormatMoney(value decimal.Decimal) string {
	if value.IsNegative() {
		return "-$" + value.Neg().StringFixed(2)
	}
	return "$" + value.StringFixed(2)
}

// ParseMoney pulls the first money-looking number out of s.
func ParseMoney(s string) (decimal.Decimal, bool) {
	match := moneyRegex.FindString(s)
	if match == "" {
		return decimal.Zero, false
	}
	negative := strings.Contains(match, "-")
	cleaned := strings.NewReplacer("$", "", ",", "", " ", "", "-", "").Replace(match)
	value, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, false
	}
	if negative {
		value = value.Neg()
	}
	return value, true
}
