// Package currencyutils parses and formats the money amounts found in bank statements.
package currencyutils

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var currencyMarks = regexp.MustCompile(`(?i)R\$|US\$|BRL|USD|EUR|CHF|[€$£¥\s\x{00a0}]`)

// ParseAmount parses a formatted amount into a decimal.
// It handles "R$ 1.234,56", "-1,234.56", "1234,56", "CHF 1'234.56" and plain numbers.
func ParseAmount(amountStr string) (decimal.Decimal, error) {
	standardized := StandardizeAmount(amountStr)
	if standardized == "" || standardized == "-" || standardized == "+" {
		return decimal.Zero, fmt.Errorf("empty amount %q", amountStr)
	}

	amount, err := decimal.NewFromString(standardized)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to parse amount '%s': %w", amountStr, err)
	}
	return amount, nil
}

// StandardizeAmount strips currency marks and converts the separators so the result can
// be read by decimal.NewFromString. When both '.' and ',' appear, the last one is the
// decimal separator. A lone comma followed by at most two digits is a decimal comma.
func StandardizeAmount(amountStr string) string {
	amountStr = currencyMarks.ReplaceAllString(amountStr, "")
	amountStr = strings.ReplaceAll(amountStr, "'", "")

	// Accounting negatives: (123,45)
	if strings.HasPrefix(amountStr, "(") && strings.HasSuffix(amountStr, ")") {
		amountStr = "-" + strings.Trim(amountStr, "()")
	}
	// Trailing sign as in "123,45-"
	if strings.HasSuffix(amountStr, "-") && !strings.HasPrefix(amountStr, "-") {
		amountStr = "-" + strings.TrimSuffix(amountStr, "-")
	}

	lastDot := strings.LastIndex(amountStr, ".")
	lastComma := strings.LastIndex(amountStr, ",")
	switch {
	case lastDot >= 0 && lastComma >= 0:
		if lastComma > lastDot {
			amountStr = strings.ReplaceAll(amountStr, ".", "")
			amountStr = strings.ReplaceAll(amountStr, ",", ".")
		} else {
			amountStr = strings.ReplaceAll(amountStr, ",", "")
		}
	case lastComma >= 0:
		parts := strings.Split(amountStr, ",")
		if len(parts) == 2 && len(parts[1]) <= 2 {
			amountStr = strings.Replace(amountStr, ",", ".", 1)
		} else {
			amountStr = strings.ReplaceAll(amountStr, ",", "")
		}
	}
	return amountStr
}

// FormatAmount formats an amount with two decimal places and a currency prefix.
// Returns strings like "R$ 1234.56" or "€1234.56".
func FormatAmount(amount decimal.Decimal, currency string) string {
	formattedAmount := amount.StringFixed(2)

	switch strings.ToUpper(currency) {
	case "":
		return formattedAmount
	case "BRL":
		return "R$ " + formattedAmount
	case "EUR":
		return "€" + formattedAmount
	case "USD":
		return "$" + formattedAmount
	case "GBP":
		return "£" + formattedAmount
	default:
		return currency + " " + formattedAmount
	}
}
