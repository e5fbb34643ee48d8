// backend/src/parsers/manual.go
package parsers

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/mingli/holding-analyzer/backend/src/logger"
	"github.com/mingli/holding-analyzer/backend/src/models"
	"github.com/mingli/holding-analyzer/backend/src/normalize"
	"github.com/mingli/holding-analyzer/backend/src/utils"
)

// ParseManualPositions reads the hand-maintained portfolio CSV
// (Symbol, Purchase Price, Quantity, Commission, Trade Date, plus optional
// Broker, Account Type, Comment). Columns are matched by header name since
// the file is human-edited and column order drifts. Rows with an invalid
// trade date or non-positive quantity are dropped.
func ParseManualPositions(file io.Reader) ([]models.ManualPosition, error) {
	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read manual portfolio header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range []string{"symbol", "purchase price", "quantity", "commission", "trade date"} {
		if _, ok := col[required]; !ok {
			return nil, fmt.Errorf("manual portfolio CSV missing column %q", required)
		}
	}

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read manual portfolio rows: %w", err)
	}

	field := func(record []string, name string) string {
		idx, ok := col[name]
		if !ok || idx >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[idx])
	}

	var positions []models.ManualPosition
	for _, record := range records {
		quantity := utils.ParseDecimal(field(record, "quantity"))
		if quantity.Sign() <= 0 {
			logger.L.Debug("Skipping manual position with non-positive quantity", "record", record)
			continue
		}
		tradeDate, err := utils.ParseBrokerDate(field(record, "trade date"))
		if err != nil {
			logger.L.Debug("Skipping manual position with invalid trade date", "error", err)
			continue
		}

		broker := field(record, "broker")
		if broker == "" {
			broker = "Manual"
		}
		accountType := field(record, "account type")
		if accountType == "" {
			accountType = "Manual"
		}

		symbol := normalize.Symbol(field(record, "symbol"), broker, "")
		if symbol == "" {
			logger.L.Debug("Skipping manual position with empty symbol", "record", record)
			continue
		}

		positions = append(positions, models.ManualPosition{
			Symbol:        symbol,
			Broker:        broker,
			AccountType:   accountType,
			Quantity:      decimal.NullDecimal{Decimal: quantity, Valid: true},
			PurchasePrice: decimal.NullDecimal{Decimal: utils.ParseDecimal(field(record, "purchase price")), Valid: true},
			Commission:    decimal.NullDecimal{Decimal: utils.ParseDecimal(field(record, "commission")), Valid: true},
			TradeDate:     &tradeDate,
			Comment:       field(record, "comment"),
		})
	}
	return positions, nil
}
