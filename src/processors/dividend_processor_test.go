package processors

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mingli/holding-analyzer/backend/src/models"
)

func dividend(date, symbol, amount, currency string) models.TransactionRecord {
	return models.TransactionRecord{
		Date:     day(date),
		Symbol:   symbol,
		Action:   models.ActionDividend,
		Amount:   d(amount),
		Currency: currency,
	}
}

func TestDividendCalculateGroups(t *testing.T) {
	t.Parallel()

	txs := []models.TransactionRecord{
		dividend("2023-03-15", "XEI.TO", "42.10", "CAD"),
		dividend("2023-09-15", "XEI.TO", "44.35", "CAD"),
		dividend("2023-06-10", "MSFT", "6.80", "USD"),
		dividend("2024-03-15", "XEI.TO", "45.00", "CAD"),
		buy("2023-03-15", "XEI.TO", "10", "25", "0", "250"),
	}

	summary := NewDividendProcessor().Calculate(txs)

	assert.Len(t, summary, 2)
	assertDecimal(t, "86.45", summary["2023"]["XEI.TO"]["CAD"])
	assertDecimal(t, "6.80", summary["2023"]["MSFT"]["USD"])
	assertDecimal(t, "45.00", summary["2024"]["XEI.TO"]["CAD"])
}

func TestDividendAmountFallback(t *testing.T) {
	t.Parallel()

	tx := models.TransactionRecord{
		Date:     day("2024-01-10"),
		Symbol:   "VDY.TO",
		Action:   models.ActionDividend,
		Quantity: d("100"),
		Price:    d("0.12"),
		Currency: "CAD",
	}

	summary := NewDividendProcessor().Calculate([]models.TransactionRecord{tx})

	assertDecimal(t, "12", summary["2024"]["VDY.TO"]["CAD"])
}

func TestDividendSkipsEmptyRows(t *testing.T) {
	t.Parallel()

	txs := []models.TransactionRecord{
		dividend("2024-01-10", "ABC", "0", "CAD"),
		dividend("2024-01-10", "", "10", "CAD"),
	}

	summary := NewDividendProcessor().Calculate(txs)

	assert.Empty(t, summary)
}

func TestDividendDefaultsCurrency(t *testing.T) {
	t.Parallel()

	txs := []models.TransactionRecord{
		dividend("2024-01-10", "ABC", "10", ""),
	}

	summary := NewDividendProcessor().Calculate(txs)

	assertDecimal(t, "10", summary["2024"]["ABC"]["CAD"])
}
