// Package money converts between minor units and decimal amounts.
//
// The engine works in int64 minor units only. Conversions happen at the
// edges: parsing user input and formatting amounts for display.
package money

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrTooManyDecimals = errors.New("amount has more decimals than the currency allows")
	ErrUnknownCurrency = errors.New("unknown currency")
)

// exponents lists currencies whose minor unit is not 1/100.
var exponents = map[string]int32{
	"BHD": 3, "IQD": 3, "JOD": 3, "KWD": 3, "LYD": 3, "OMR": 3, "TND": 3,
	"BIF": 0, "CLP": 0, "DJF": 0, "GNF": 0, "ISK": 0, "JPY": 0, "KMF": 0,
	"KRW": 0, "PYG": 0, "RWF": 0, "UGX": 0, "VND": 0, "VUV": 0, "XAF": 0,
	"XOF": 0, "XPF": 0,
}

// NormalizeCurrency upper-cases and checks a three letter currency code.
func NormalizeCurrency(code string) (string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) != 3 {
		return "", fmt.Errorf("%w: %q", ErrUnknownCurrency, code)
	}
	for _, r := range code {
		if r < 'A' || r > 'Z' {
			return "", fmt.Errorf("%w: %q", ErrUnknownCurrency, code)
		}
	}
	return code, nil
}

// Exponent returns the number of decimals of the currency's minor unit.
func Exponent(currency string) int32 {
	if e, ok := exponents[strings.ToUpper(currency)]; ok {
		return e
	}
	return 2
}

// Parse converts a decimal string in major units ("300.00", "12,5") into
// minor units of currency. More decimals than the currency has is an error
// rather than a silent rounding.
func Parse(s, currency string) (int64, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	if s == "" {
		return 0, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	exp := Exponent(currency)
	minor := d.Shift(exp)
	if !minor.Equal(minor.Truncate(0)) {
		return 0, fmt.Errorf("%w: %q in %s", ErrTooManyDecimals, s, currency)
	}
	if minor.Abs().GreaterThan(decimal.NewFromInt(1 << 53)) {
		return 0, fmt.Errorf("%w: %q out of range", ErrInvalidAmount, s)
	}
	return minor.IntPart(), nil
}

// Decimal returns minor units of currency as a decimal in major units.
func Decimal(minor int64, currency string) decimal.Decimal {
	return decimal.New(minor, -Exponent(currency))
}

// Format renders minor units with the currency's decimals, e.g. "300.00 EUR".
func Format(minor int64, currency string) string {
	return Decimal(minor, currency).StringFixed(Exponent(currency)) + " " + strings.ToUpper(currency)
}

// FormatPlain renders minor units without the currency code, e.g. "300.00".
func FormatPlain(minor int64, currency string) string {
	return Decimal(minor, currency).StringFixed(Exponent(currency))
}
