package utils

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ParseDecimal parses a broker-formatted numeric cell into a decimal.
// Broker exports write numbers with thousands separators, currency signs,
// and accounting-style parentheses for negatives ("(1,234.56)"). Blank or
// unparseable cells yield zero; numeric degradation is always recovered
// locally, never fatal.
func ParseDecimal(s string) decimal.Decimal {
	cleaned := strings.TrimSpace(s)
	if cleaned == "" || strings.EqualFold(cleaned, "nan") || cleaned == "-" {
		return decimal.Zero
	}

	negative := false
	if strings.HasPrefix(cleaned, "(") && strings.HasSuffix(cleaned, ")") {
		negative = true
		cleaned = cleaned[1 : len(cleaned)-1]
	}
	cleaned = strings.NewReplacer(",", "", "$", "", " ", "").Replace(cleaned)

	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero
	}
	if negative {
		d = d.Neg()
	}
	return d
}
