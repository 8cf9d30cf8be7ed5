// Package currencyutils provides currency detection and locale-aware
// amount parsing for text pulled out of emails.
package currencyutils

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// symbolToCode maps currency symbols and textual codes to ISO codes.
// Longer markers are checked first so "Rs." wins over "R".
var symbolToCode = []struct {
	Marker string
	Code   string
}{
	{"₹", "INR"},
	{"Rs.", "INR"},
	{"Rs", "INR"},
	{"INR", "INR"},
	{"CHF", "CHF"},
	{"USD", "USD"},
	{"US$", "USD"},
	{"$", "USD"},
	{"EUR", "EUR"},
	{"€", "EUR"},
	{"GBP", "GBP"},
	{"£", "GBP"},
}

// europeanDecimalComma is the set of currencies whose home locales write
// decimals with a comma. Used only to break ties the separator-position
// heuristic cannot settle on its own.
var europeanDecimalComma = map[string]bool{
	"EUR": true,
	"CHF": true,
}

// DetectCurrency finds the currency marker in a snippet of text
// surrounding an amount. Returns the ISO code and true when found.
func DetectCurrency(context string) (string, bool) {
	for _, entry := range symbolToCode {
		if strings.Contains(context, entry.Marker) {
			return entry.Code, true
		}
	}
	return "", false
}

// ParseAmount parses a numeric amount string whose thousands and decimal
// separators may follow any locale. The currency code supplies locale
// context for the one genuinely ambiguous case (a single comma or dot
// with exactly three trailing digits).
func ParseAmount(amountStr, currency string) (decimal.Decimal, error) {
	standardized := standardize(amountStr, currency)
	if standardized == "" {
		return decimal.Zero, fmt.Errorf("empty amount string")
	}

	amount, err := decimal.NewFromString(standardized)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to parse amount: %w", err)
	}
	return amount, nil
}

// standardize rewrites a locale-formatted amount into decimal syntax.
// Handles "1,234.56", "1.234,56", "1'234.56", "1 234,56" and the
// plain forms.
func standardize(amountStr, currency string) string {
	s := strings.TrimSpace(amountStr)

	// Strip currency markers that leaked into the numeric token.
	for _, entry := range symbolToCode {
		s = strings.ReplaceAll(s, entry.Marker, "")
	}
	// Swiss thousands apostrophes and embedded spaces carry no meaning.
	s = strings.ReplaceAll(s, "'", "")
	s = strings.ReplaceAll(s, " ", "")
	s = strings.TrimSpace(s)

	hasComma := strings.Contains(s, ",")
	hasDot := strings.Contains(s, ".")

	switch {
	case hasComma && hasDot:
		// Whichever separator comes last is the decimal point.
		if strings.LastIndex(s, ".") < strings.LastIndex(s, ",") {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.ReplaceAll(s, ",", ".")
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case hasComma:
		s = resolveSingleSeparator(s, ",", currency)
	case hasDot:
		s = resolveSingleSeparator(s, ".", currency)
	}

	return s
}

// resolveSingleSeparator decides whether a lone separator is a decimal
// point or a thousands separator. One or two trailing digits always mean
// a decimal; exactly three mean thousands unless the currency's locale
// says otherwise; anything else is malformed enough to leave alone.
func resolveSingleSeparator(s, sep, currency string) string {
	parts := strings.Split(s, sep)
	tail := parts[len(parts)-1]

	decimalSep := len(parts) == 2 && len(tail) <= 2
	if len(parts) == 2 && len(tail) == 3 {
		// "1,500" is a thousand and a half in the US and 1.5 in much of
		// Europe. The currency context settles it.
		decimalSep = sep == "," && europeanDecimalComma[currency]
	}

	if decimalSep {
		return strings.Join(parts, ".")
	}
	return strings.Join(parts, "")
}
