package processors

import (
	"github.com/shopspring/decimal"

	"github.com/mingli/holding-analyzer/backend/src/models"
)

// dividendProcessorImpl implements the DividendProcessor interface.
type dividendProcessorImpl struct{}

// NewDividendProcessor creates a new instance of DividendProcessor.
func NewDividendProcessor() DividendProcessor {
	return &dividendProcessorImpl{}
}

// Calculate groups dividend income by year, symbol, and currency. The
// settled amount is used when the export provides one; otherwise the
// per-share rate times quantity stands in.
func (p *dividendProcessorImpl) Calculate(txs []models.TransactionRecord) models.DividendSummary {
	result := make(models.DividendSummary)

	for _, tx := range txs {
		if tx.Action != models.ActionDividend {
			continue
		}
		amount := tx.Amount
		if amount.IsZero() {
			amount = tx.Quantity.Mul(tx.Price)
		}
		if amount.IsZero() || tx.Symbol == "" {
			continue
		}

		year := tx.Date.Format("2006")
		currency := tx.Currency
		if currency == "" {
			currency = "CAD"
		}

		if _, ok := result[year]; !ok {
			result[year] = make(map[string]map[string]decimal.Decimal)
		}
		if _, ok := result[year][tx.Symbol]; !ok {
			result[year][tx.Symbol] = make(map[string]decimal.Decimal)
		}
		result[year][tx.Symbol][currency] = result[year][tx.Symbol][currency].Add(amount)
	}
	return result
}
