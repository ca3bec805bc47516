package enums

import (
	"fmt"
	"sort"
	"strings"
)

// Currency is an ISO-4217 code accepted for listing and competitor prices.
type Currency string

const (
	CurrencyUSD Currency = "USD"
	CurrencyEUR Currency = "EUR"
	CurrencyGBP Currency = "GBP"
	CurrencyCAD Currency = "CAD"
	CurrencyZAR Currency = "ZAR"
)

var supportedCurrencies = map[Currency]struct{}{
	CurrencyUSD: {},
	CurrencyEUR: {},
	CurrencyGBP: {},
	CurrencyCAD: {},
	CurrencyZAR: {},
}

func (c Currency) String() string { return string(c) }

func (c Currency) IsValid() bool {
	_, ok := supportedCurrencies[c]
	return ok
}

// NormalizeCurrency trims and upper-cases value without validating it.
func NormalizeCurrency(value string) Currency {
	return Currency(strings.ToUpper(strings.TrimSpace(value)))
}

// ParseCurrency normalizes value and rejects unsupported codes.
func ParseCurrency(value string) (Currency, error) {
	if c := NormalizeCurrency(value); c.IsValid() {
		return c, nil
	}
	return "", fmt.Errorf("invalid currency %q, expected one of %s", value, strings.Join(SupportedCurrencies(), ", "))
}

// SupportedCurrencies lists the accepted codes alphabetically.
func SupportedCurrencies() []string {
	codes := make([]string, 0, len(supportedCurrencies))
	for c := range supportedCurrencies {
		codes = append(codes, string(c))
	}
	sort.Strings(codes)
	return codes
}
