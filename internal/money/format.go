package money

import (
	"fmt"

	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Format renders c for display in the given ISO 4217 currency and locale,
// e.g. Format(1234, "USD", language.AmericanEnglish) -> "$ 12.34".
//
// The result is display-only; never parse it back for further computation.
func Format(c Cents, currencyCode string, tag language.Tag) (string, error) {
	unit, err := currency.ParseISO(currencyCode)
	if err != nil {
		return "", fmt.Errorf("unknown currency %q: %w", currencyCode, err)
	}
	p := message.NewPrinter(tag)
	return p.Sprint(currency.Symbol(unit.Amount(c.Decimal().InexactFloat64()))), nil
}

// ValidCurrency reports whether code is a recognized ISO 4217 currency code.
func ValidCurrency(code string) bool {
	if len(code) != 3 {
		return false
	}
	_, err := currency.ParseISO(code)
	return err == nil
}
