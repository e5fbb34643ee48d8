// backend/src/processors/transaction_processor.go
package processors

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/mingli/holding-analyzer/backend/src/logger"
	"github.com/mingli/holding-analyzer/backend/src/models"
)

// TransactionProcessor prepares parsed records for storage and replay:
// it drops rows that can never affect the books, normalizes symbols to
// upper case, and stamps each record with its dedup hash.
type TransactionProcessor struct{}

func NewTransactionProcessor() *TransactionProcessor { return &TransactionProcessor{} }

// Process returns a new slice with unusable rows removed and HashId set.
// Rows without a symbol are dropped here rather than in the parsers so
// that every ingestion path (file upload, directory scan, manual entry)
// goes through the same gate.
func (p *TransactionProcessor) Process(txs []models.TransactionRecord) []models.TransactionRecord {
	processed := make([]models.TransactionRecord, 0, len(txs))
	for _, tx := range txs {
		tx.Symbol = strings.ToUpper(strings.TrimSpace(tx.Symbol))
		if tx.Symbol == "" {
			logger.L.Debug("Dropping transaction without symbol",
				"date", tx.Date, "action", tx.Action, "broker", tx.Broker)
			continue
		}
		if tx.HashId == "" {
			tx.HashId = generateHash(tx)
		}
		processed = append(processed, tx)
	}
	return processed
}

// generateHash creates the stable identity used for duplicate detection
// across re-imported files. Two exports of the same trade hash the same;
// the unique index on the transactions table does the rest.
func generateHash(tx models.TransactionRecord) string {
	input := fmt.Sprintf("%s|%s|%s|%s|%s|%s|%s|%s|%s|%s",
		tx.Date.Format("2006-01-02"),
		tx.Symbol,
		tx.Action,
		tx.Quantity.String(),
		tx.Price.String(),
		tx.Commission.String(),
		tx.Amount.String(),
		tx.Broker,
		tx.AccountType,
		tx.Description,
	)
	hash := sha256.Sum256([]byte(input))
	return hex.EncodeToString(hash[:])
}

// SortForLedger orders records the way the replay consumes them: by date,
// then by an action rank that puts merger surrenders before the buys of
// the same day, buys before ordinary sells, and sells before dividends.
// The sort is stable, so same-day records of equal rank keep file order.
func SortForLedger(txs []models.TransactionRecord) {
	sort.SliceStable(txs, func(i, j int) bool {
		if !txs[i].Date.Equal(txs[j].Date) {
			return txs[i].Date.Before(txs[j].Date)
		}
		return actionRank(txs[i]) < actionRank(txs[j])
	})
}

func actionRank(tx models.TransactionRecord) int {
	switch {
	case tx.Action == models.ActionSell && tx.IsMerger:
		return 0
	case tx.Action == models.ActionBuy:
		return 1
	case tx.Action == models.ActionSell:
		return 2
	case tx.Action == models.ActionDividend:
		return 3
	default:
		return 99
	}
}
