package parsers

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseManualPositions(t *testing.T) {
	t.Parallel()

	csvData := strings.Join([]string{
		"Symbol,Purchase Price,Quantity,Commission,Trade Date,Broker,Account Type,Comment",
		"cm,55.20,100,9.99,20230115,CIBC,TFSA,core bank position",
		"VOO,380.00,12,0,2023-06-01,,,",
	}, "\n")

	positions, err := ParseManualPositions(strings.NewReader(csvData))
	require.NoError(t, err)
	require.Len(t, positions, 2)

	first := positions[0]
	assert.Equal(t, "CM.TO", first.Symbol, "manual symbols are normalized too")
	assert.Equal(t, "CIBC", first.Broker)
	assert.Equal(t, "TFSA", first.AccountType)
	assert.True(t, first.Quantity.Valid)
	assert.True(t, decimal.RequireFromString("100").Equal(first.Quantity.Decimal))
	assert.True(t, decimal.RequireFromString("55.20").Equal(first.PurchasePrice.Decimal))
	require.NotNil(t, first.TradeDate)
	assert.Equal(t, "2023-01-15", first.TradeDate.Format("2006-01-02"))
	assert.Equal(t, "core bank position", first.Comment)

	second := positions[1]
	assert.Equal(t, "VOO", second.Symbol)
	assert.Equal(t, "Manual", second.Broker, "blank provenance defaults to Manual")
	assert.Equal(t, "Manual", second.AccountType)
}

func TestParseManualPositionsDropsBadRows(t *testing.T) {
	t.Parallel()

	csvData := strings.Join([]string{
		"Symbol,Purchase Price,Quantity,Commission,Trade Date",
		"ABC,10.00,0,0,20230101",
		"DEF,10.00,5,0,not-a-date",
		",10.00,5,0,20230101",
		"GHI,10.00,5,0,20230101",
	}, "\n")

	positions, err := ParseManualPositions(strings.NewReader(csvData))
	require.NoError(t, err)
	require.Len(t, positions, 1)
	assert.Equal(t, "GHI", positions[0].Symbol)
}

func TestParseManualPositionsRequiresColumns(t *testing.T) {
	t.Parallel()

	_, err := ParseManualPositions(strings.NewReader("Symbol,Quantity\nABC,5\n"))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "purchase price")
}
