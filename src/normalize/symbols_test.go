package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSymbolCanonicalForms(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		raw         string
		broker      string
		description string
		want        string
	}{
		{"upper_cases_and_trims", "  msft ", "CIBC", "", "MSFT"},
		{"canadian_ticker_gets_suffix", "cm", "CIBC", "", "CM.TO"},
		{"existing_suffix_not_doubled", "WCP.TO", "RBC", "", "WCP.TO"},
		{"units_suffix_stripped", "XEI UNITS", "RBC", "", "XEI.TO"},
		{"etf_suffix_stripped", "VDY ETF", "RBC", "", "VDY.TO"},
		{"non_canadian_left_bare", "VOO", "TD", "", "VOO"},
		{"empty_symbol_empty_description", "", "CIBC", "", ""},
		{"nan_cell_treated_as_empty", "nan", "CIBC", "", ""},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Symbol(tt.raw, tt.broker, tt.description))
		})
	}
}

func TestSymbolFallsBackToDescription(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		raw         string
		description string
		want        string
	}{
		{"blank_symbol", "", "VANGUARD 500 INDX ETF-NEW", "VOO"},
		{"description_leaked_into_symbol_column", "ISHARES CORE MSCI EAFE IMI INDEX", "ISHARES CORE MSCI EAFE IMI INDEX", "XEF.TO"},
		{"veren_maps_to_whitecap", "", "VEREN INC COM", "WCP.TO"},
		{"unknown_description", "", "SOME UNLISTED NAME", ""},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Symbol(tt.raw, "TD", tt.description))
		})
	}
}

func TestSymbolIsTotal(t *testing.T) {
	t.Parallel()

	// Whatever garbage comes in, a string comes out.
	inputs := []string{"", " ", "\t\n", "!!!@#$", "A VERY LONG STRING THAT IS NOT A TICKER AT ALL"}
	for _, raw := range inputs {
		assert.NotPanics(t, func() { Symbol(raw, "NOBODY", raw) })
	}
}
