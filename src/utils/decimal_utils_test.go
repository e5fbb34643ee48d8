package utils

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestParseDecimalBrokerFormats(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		want  string
	}{
		{"123.45", "123.45"},
		{"-123.45", "-123.45"},
		{"1,234.56", "1234.56"},
		{"$1,234.56", "1234.56"},
		{"(1,234.56)", "-1234.56"},
		{" 42 ", "42"},
		{"", "0"},
		{"-", "0"},
		{"nan", "0"},
		{"NaN", "0"},
		{"garbage", "0"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()
			got := ParseDecimal(tt.input)
			assert.True(t, decimal.RequireFromString(tt.want).Equal(got),
				"input %q: want %s, got %s", tt.input, tt.want, got.String())
		})
	}
}
