// backend/src/parsers/cibc/parser.go
package cibc

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/mingli/holding-analyzer/backend/src/logger"
	"github.com/mingli/holding-analyzer/backend/src/models"
	"github.com/mingli/holding-analyzer/backend/src/normalize"
	"github.com/mingli/holding-analyzer/backend/src/utils"
)

// CIBC Transaction History exports open with a 9-line account preamble,
// then the header row:
// Transaction Date, Settlement Date, Currency of Sub-account Held In,
// Transaction Type, Symbol, Quantity, Price, Commission, Amount,
// Currency of Amount, Description
const headerSkipRows = 9

type Row struct {
	TransactionDate, SettlementDate, SubAccountCurrency, TransactionType, Symbol string
	Quantity, Price, Commission, Amount, Currency, Description                   string
}

// Transaction types the ledger cares about; everything else in the export
// (interest, fees, cash movements) is dropped at this boundary.
var includedTypes = map[string]bool{
	"Buy":       true,
	"Sell":      true,
	"Dividend":  true,
	"Reinvest":  true,
	"Merger":    true,
	"Transf In": true,
}

// Transfer and merger rows often report a zero settlement amount and bury
// the real figure in the description, e.g. "... BOOK VALUE 5,432.10".
var bookValueRe = regexp.MustCompile(`BOOK VALUE\s+([\d,.]+)`)

type CIBCParser struct{}

func NewParser() *CIBCParser {
	return &CIBCParser{}
}

func (p *CIBCParser) Parse(file io.Reader, meta models.FileMeta) ([]models.TransactionRecord, error) {
	br := bufio.NewReader(file)
	for i := 0; i < headerSkipRows; i++ {
		if _, err := br.ReadString('\n'); err != nil {
			return nil, fmt.Errorf("CIBC export shorter than its %d-line preamble: %w", headerSkipRows, err)
		}
	}

	reader := csv.NewReader(br)
	reader.FieldsPerRecord = -1

	if _, err := reader.Read(); err != nil {
		return nil, fmt.Errorf("failed to read CIBC header row: %w", err)
	}
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CIBC records: %w", err)
	}

	var rows []Row
	for _, record := range records {
		if len(record) >= 11 {
			rows = append(rows, Row{
				TransactionDate: record[0], SettlementDate: record[1], SubAccountCurrency: record[2],
				TransactionType: strings.TrimSpace(record[3]), Symbol: record[4],
				Quantity: record[5], Price: record[6], Commission: record[7],
				Amount: record[8], Currency: record[9], Description: record[10],
			})
		}
	}

	var txs []models.TransactionRecord
	for _, row := range rows {
		if !includedTypes[row.TransactionType] {
			continue
		}
		date, err := utils.ParseBrokerDate(row.TransactionDate)
		if err != nil {
			logger.L.Debug("Skipping CIBC row with unparseable date", "date", row.TransactionDate)
			continue
		}
		symbol := normalize.Symbol(row.Symbol, "CIBC", row.Description)
		if symbol == "" {
			logger.L.Debug("Skipping CIBC row with no recognizable symbol", "description", row.Description)
			continue
		}
		action, isMerger := normalize.Classify("CIBC", row.TransactionType, row.Description)

		currency := strings.TrimSpace(row.Currency)
		if currency == "" {
			currency = meta.Currency
		}

		txs = append(txs, models.TransactionRecord{
			Date:        date,
			Symbol:      symbol,
			Action:      action,
			Quantity:    utils.ParseDecimal(row.Quantity),
			Price:       utils.ParseDecimal(row.Price),
			Commission:  utils.ParseDecimal(row.Commission),
			Amount:      settlementAmount(row),
			Currency:    currency,
			Description: row.Description,
			Broker:      "CIBC",
			AccountType: meta.AccountType,
			Source:      "broker_csv",
			IsMerger:    isMerger,
		})
	}
	return txs, nil
}

// settlementAmount returns the row's cash effect. When the Amount column is
// zero the book value is recovered from the description; acquisitions
// (Buy, Transf In, Merger receipts) are negated so the sign convention
// matches settled trades.
func settlementAmount(row Row) decimal.Decimal {
	amount := utils.ParseDecimal(row.Amount)
	if !amount.IsZero() {
		return amount
	}
	match := bookValueRe.FindStringSubmatch(strings.ToUpper(row.Description))
	if match == nil {
		return amount
	}
	value := utils.ParseDecimal(match[1])
	switch row.TransactionType {
	case "Buy", "Transf In", "Merger":
		return value.Neg()
	default:
		return value
	}
}
