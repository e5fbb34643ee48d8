package processors

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mingli/holding-analyzer/backend/src/models"
)

func TestProcessDropsRowsWithoutSymbol(t *testing.T) {
	t.Parallel()

	txs := []models.TransactionRecord{
		buy("2024-01-01", "abc", "10", "10", "0", "100"),
		buy("2024-01-02", "  ", "10", "10", "0", "100"),
		sell("2024-01-03", "DEF", "5", "12", "0", "60"),
	}

	processed := NewTransactionProcessor().Process(txs)

	assert.Len(t, processed, 2)
	assert.Equal(t, "ABC", processed[0].Symbol)
	assert.Equal(t, "DEF", processed[1].Symbol)
}

func TestProcessStampsStableHash(t *testing.T) {
	t.Parallel()

	tx := buy("2024-01-01", "ABC", "10", "10", "0", "100")
	tx.Broker = "CIBC"
	tx.AccountType = "TFSA"

	first := NewTransactionProcessor().Process([]models.TransactionRecord{tx})
	second := NewTransactionProcessor().Process([]models.TransactionRecord{tx})

	assert.NotEmpty(t, first[0].HashId)
	assert.Equal(t, first[0].HashId, second[0].HashId,
		"the same trade must hash identically across imports")
}

func TestProcessHashDistinguishesTrades(t *testing.T) {
	t.Parallel()

	base := buy("2024-01-01", "ABC", "10", "10", "0", "100")
	tests := []struct {
		name   string
		mutate func(models.TransactionRecord) models.TransactionRecord
	}{
		{"different_date", func(tx models.TransactionRecord) models.TransactionRecord {
			tx.Date = day("2024-01-02")
			return tx
		}},
		{"different_quantity", func(tx models.TransactionRecord) models.TransactionRecord {
			tx.Quantity = d("11")
			return tx
		}},
		{"different_account", func(tx models.TransactionRecord) models.TransactionRecord {
			tx.AccountType = "RRSP"
			return tx
		}},
		{"different_action", func(tx models.TransactionRecord) models.TransactionRecord {
			tx.Action = models.ActionSell
			return tx
		}},
	}

	p := NewTransactionProcessor()
	baseHash := p.Process([]models.TransactionRecord{base})[0].HashId

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := p.Process([]models.TransactionRecord{tt.mutate(base)})[0].HashId
			assert.NotEqual(t, baseHash, got)
		})
	}
}

func TestProcessKeepsExistingHash(t *testing.T) {
	t.Parallel()

	tx := buy("2024-01-01", "ABC", "10", "10", "0", "100")
	tx.HashId = "preset"

	processed := NewTransactionProcessor().Process([]models.TransactionRecord{tx})

	assert.Equal(t, "preset", processed[0].HashId)
}

func TestSortForLedgerSameDayRanks(t *testing.T) {
	t.Parallel()

	dividend := models.TransactionRecord{
		Date: day("2024-05-01"), Symbol: "RNK", Action: models.ActionDividend,
	}
	other := models.TransactionRecord{
		Date: day("2024-05-01"), Symbol: "RNK", Action: models.ActionOther,
	}
	txs := []models.TransactionRecord{
		other,
		dividend,
		sell("2024-05-01", "RNK", "5", "10", "0", "50"),
		buy("2024-05-01", "RNK", "5", "10", "0", "50"),
		asMerger(sell("2024-05-01", "RNK", "1", "0", "0", "0")),
	}

	SortForLedger(txs)

	assert.True(t, txs[0].IsMerger, "merger surrender sorts first")
	assert.Equal(t, models.ActionBuy, txs[1].Action)
	assert.Equal(t, models.ActionSell, txs[2].Action)
	assert.Equal(t, models.ActionDividend, txs[3].Action)
	assert.Equal(t, models.ActionOther, txs[4].Action)
}

func TestSortForLedgerDateBeforeRank(t *testing.T) {
	t.Parallel()

	txs := []models.TransactionRecord{
		buy("2024-05-02", "AAA", "1", "1", "0", "1"),
		sell("2024-05-01", "AAA", "1", "1", "0", "1"),
	}

	SortForLedger(txs)

	assert.Equal(t, models.ActionSell, txs[0].Action)
	assert.True(t, txs[0].Date.Before(txs[1].Date))
}

func TestSortForLedgerStableWithinRank(t *testing.T) {
	t.Parallel()

	first := buy("2024-05-01", "AAA", "1", "1", "0", "1")
	first.Description = "first"
	second := buy("2024-05-01", "AAA", "2", "1", "0", "2")
	second.Description = "second"

	txs := []models.TransactionRecord{first, second}
	SortForLedger(txs)

	assert.Equal(t, "first", txs[0].Description)
	assert.Equal(t, "second", txs[1].Description)
}
