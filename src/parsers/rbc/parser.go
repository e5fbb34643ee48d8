// backend/src/parsers/rbc/parser.go
package rbc

import (
	"bufio"
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

// RBC Direct Investing activity exports open with an 8-line preamble, then
// the header row:
// Date, Activity, Symbol, Symbol Description, Quantity, Price,
// Settlement Date, Account, Value, Currency, Description
const headerSkipRows = 8

type Row struct {
	Date, Activity, Symbol, SymbolDescription, Quantity, Price string
	SettlementDate, Account, Value, Currency, Description      string
}

type RBCParser struct{}

func NewParser() *RBCParser {
	return &RBCParser{}
}

func (p *RBCParser) Parse(file io.Reader, meta models.FileMeta) ([]models.TransactionRecord, error) {
	br := bufio.NewReader(file)
	for i := 0; i < headerSkipRows; i++ {
		if _, err := br.ReadString('\n'); err != nil {
			return nil, fmt.Errorf("RBC export shorter than its %d-line preamble: %w", headerSkipRows, err)
		}
	}

	reader := csv.NewReader(br)
	reader.FieldsPerRecord = -1

	if _, err := reader.Read(); err != nil {
		return nil, fmt.Errorf("failed to read RBC header row: %w", err)
	}
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read RBC records: %w", err)
	}

	var rows []Row
	for _, record := range records {
		if len(record) >= 11 {
			rows = append(rows, Row{
				Date: record[0], Activity: strings.TrimSpace(record[1]), Symbol: record[2],
				SymbolDescription: record[3], Quantity: record[4], Price: record[5],
				SettlementDate: record[6], Account: record[7], Value: record[8],
				Currency: record[9], Description: record[10],
			})
		}
	}

	var txs []models.TransactionRecord
	for _, row := range rows {
		date, err := utils.ParseBrokerDate(row.Date)
		if err != nil {
			logger.L.Debug("Skipping RBC row with unparseable date", "date", row.Date)
			continue
		}
		symbol := normalize.Symbol(row.Symbol, "RBC", row.Description)
		if symbol == "" {
			logger.L.Debug("Skipping RBC row with no recognizable symbol", "description", row.Description)
			continue
		}
		action, isMerger := normalize.Classify("RBC", row.Activity, row.Description)

		currency := strings.TrimSpace(row.Currency)
		if currency == "" {
			currency = meta.Currency
		}

		txs = append(txs, models.TransactionRecord{
			Date:     date,
			Symbol:   symbol,
			Action:   action,
			Quantity: utils.ParseDecimal(row.Quantity).Abs(),
			Price:    utils.ParseDecimal(row.Price),
			// RBC folds commissions into the settled Value column.
			Commission:  decimal.Zero,
			Amount:      utils.ParseDecimal(row.Value),
			Currency:    currency,
			Description: row.Description,
			Broker:      "RBC",
			AccountType: meta.AccountType,
			Source:      "broker_csv",
			IsMerger:    isMerger,
		})
	}
	return txs, nil
}
