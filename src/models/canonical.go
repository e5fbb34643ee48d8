// backend/src/models/canonical.go
package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Action is the canonical transaction action shared by every broker.
type Action string

const (
	ActionBuy      Action = "BUY"
	ActionSell     Action = "SELL"
	ActionDividend Action = "DIVIDEND"
	ActionOther    Action = "OTHER"
)

// TransactionRecord is the unified, immutable representation of a broker
// transaction. Each parser is responsible for populating every field it can
// from the source file, including the canonical action classification; the
// record is never mutated after parsing.
type TransactionRecord struct {
	ID          int64           `json:"id,omitempty"`
	Date        time.Time       `json:"date"`
	Symbol      string          `json:"symbol"`
	Action      Action          `json:"action"`
	Quantity    decimal.Decimal `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
	Commission  decimal.Decimal `json:"commission"`
	Amount      decimal.Decimal `json:"amount"` // signed native-currency cash effect, authoritative when non-zero
	Currency    string          `json:"currency"`
	Description string          `json:"description"`
	Broker      string          `json:"broker"`
	AccountType string          `json:"account_type"`
	Source      string          `json:"source"`

	// IsMerger marks corporate-action rows (merger/reorg share exchanges)
	// whose cost basis carries forward instead of realizing P&L.
	IsMerger bool `json:"is_merger"`

	// HashId identifies the row across repeated imports of the same export.
	HashId string `json:"hash_id"`
}

// FileMeta is what a broker export's filename tells us about its contents.
type FileMeta struct {
	Broker      string `json:"broker"`
	AccountType string `json:"account_type"`
	Currency    string `json:"currency"` // fallback only; column data wins when present
}
