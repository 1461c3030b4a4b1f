package money

import (
	"errors"
	"testing"
)

func TestParse(t *testing.T) {
	cases := []struct {
		in       string
		currency string
		out      int64
		err      error
	}{
		{"300.00", "EUR", 30000, nil},
		{"300", "EUR", 30000, nil},
		{"12,5", "EUR", 1250, nil},
		{" 0.01 ", "usd", 1, nil},
		{"-10.00", "EUR", -1000, nil},
		{"1500", "JPY", 1500, nil},
		{"1.234", "KWD", 1234, nil},
		{"1.005", "EUR", 0, ErrTooManyDecimals},
		{"1.5", "JPY", 0, ErrTooManyDecimals},
		{"abc", "EUR", 0, ErrInvalidAmount},
		{"", "EUR", 0, ErrInvalidAmount},
	}
	for _, tc := range cases {
		got, err := Parse(tc.in, tc.currency)
		if tc.err != nil {
			if !errors.Is(err, tc.err) {
				t.Fatalf("%q %s: err = %v, want %v", tc.in, tc.currency, err, tc.err)
			}
			continue
		}
		if err != nil || got != tc.out {
			t.Fatalf("%q %s: got %d (err=%v), want %d", tc.in, tc.currency, got, err, tc.out)
		}
	}
}

func TestFormat(t *testing.T) {
	cases := []struct {
		minor    int64
		currency string
		want     string
	}{
		{30000, "EUR", "300.00 EUR"},
		{1, "eur", "0.01 EUR"},
		{-5000, "USD", "-50.00 USD"},
		{1500, "JPY", "1500 JPY"},
		{1234, "KWD", "1.234 KWD"},
	}
	for _, tc := range cases {
		if got := Format(tc.minor, tc.currency); got != tc.want {
			t.Errorf("Format(%d, %s) = %q, want %q", tc.minor, tc.currency, got, tc.want)
		}
	}
	if got := FormatPlain(12345, "EUR"); got != "123.45" {
		t.Errorf("FormatPlain = %q, want 123.45", got)
	}
}

func TestNormalizeCurrency(t *testing.T) {
	if got, err := NormalizeCurrency(" eur "); err != nil || got != "EUR" {
		t.Errorf("NormalizeCurrency = %q, %v", got, err)
	}
	for _, bad := range []string{"", "EU", "EURO", "E1R"} {
		if _, err := NormalizeCurrency(bad); !errors.Is(err, ErrUnknownCurrency) {
			t.Errorf("NormalizeCurrency(%q) err = %v", bad, err)
		}
	}
}
