// backend/src/parsers/td/parser.go
package td

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/mingli/holding-analyzer/backend/src/logger"
	"github.com/mingli/holding-analyzer/backend/src/models"
	"github.com/mingli/holding-analyzer/backend/src/normalize"
	"github.com/mingli/holding-analyzer/backend/src/utils"
)

// TD Direct Investing activity exports open with a 3-line preamble, then
// the header row:
// Trade Date, Settle Date, Description, Action, Quantity, Price,
// Commission, Net Amount, Security Type, Currency
//
// There is no symbol column; the ticker is inferred from the free-text
// description.
const headerSkipRows = 3

type Row struct {
	TradeDate, SettleDate, Description, Action, Quantity string
	Price, Commission, NetAmount, SecurityType, Currency string
}

type TDParser struct{}

func NewParser() *TDParser {
	return &TDParser{}
}

func (p *TDParser) Parse(file io.Reader, meta models.FileMeta) ([]models.TransactionRecord, error) {
	br := bufio.NewReader(file)
	for i := 0; i < headerSkipRows; i++ {
		if _, err := br.ReadString('\n'); err != nil {
			return nil, fmt.Errorf("TD export shorter than its %d-line preamble: %w", headerSkipRows, err)
		}
	}

	reader := csv.NewReader(br)
	reader.FieldsPerRecord = -1

	if _, err := reader.Read(); err != nil {
		return nil, fmt.Errorf("failed to read TD header row: %w", err)
	}
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read TD records: %w", err)
	}

	var rows []Row
	for _, record := range records {
		if len(record) >= 10 {
			rows = append(rows, Row{
				TradeDate: record[0], SettleDate: record[1], Description: record[2],
				Action: strings.TrimSpace(record[3]), Quantity: record[4], Price: record[5],
				Commission: record[6], NetAmount: record[7], SecurityType: record[8],
				Currency: record[9],
			})
		}
	}

	var txs []models.TransactionRecord
	for _, row := range rows {
		date, err := utils.ParseBrokerDate(row.TradeDate)
		if err != nil {
			logger.L.Debug("Skipping TD row with unparseable date", "date", row.TradeDate)
			continue
		}
		symbol := normalize.Symbol("", "TD", row.Description)
		if symbol == "" {
			logger.L.Debug("Skipping TD row with no recognizable symbol", "description", row.Description)
			continue
		}
		action, isMerger := normalize.Classify("TD", row.Action, row.Description)

		// TD USD-account exports routinely leave the currency column blank;
		// the filename is the only hint.
		currency := strings.TrimSpace(row.Currency)
		if currency == "" {
			currency = meta.Currency
		}
		if currency == "" {
			currency = "CAD"
		}

		txs = append(txs, models.TransactionRecord{
			Date:        date,
			Symbol:      symbol,
			Action:      action,
			Quantity:    utils.ParseDecimal(row.Quantity).Abs(),
			Price:       utils.ParseDecimal(row.Price),
			Commission:  utils.ParseDecimal(row.Commission).Abs(),
			Amount:      utils.ParseDecimal(row.NetAmount),
			Currency:    currency,
			Description: row.Description,
			Broker:      "TD",
			AccountType: meta.AccountType,
			Source:      "broker_csv",
			IsMerger:    isMerger,
		})
	}
	return txs, nil
}
