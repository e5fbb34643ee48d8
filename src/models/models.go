package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Lot is a discrete purchase record owned by one symbol's ledger, consumed
// in FIFO order by later sells. Cost is the total for the lot, not per share.
type Lot struct {
	Quantity   decimal.Decimal `json:"quantity"`
	Cost       decimal.Decimal `json:"cost"`
	Commission decimal.Decimal `json:"commission"`
	Currency   string          `json:"currency"`
	TradeDate  time.Time       `json:"trade_date"`
}

// CostPerShare returns Cost/Quantity, or zero for an empty lot.
func (l Lot) CostPerShare() decimal.Decimal {
	if l.Quantity.IsZero() {
		return decimal.Zero
	}
	return l.Cost.Div(l.Quantity)
}

// RealizedPnL accumulates the outcome of SELL events for one
// (symbol, currency) pair within a single ledger run.
type RealizedPnL struct {
	ID            int64           `json:"id,omitempty"`
	Symbol        string          `json:"symbol"`
	Currency      string          `json:"currency"`
	PnLAmount     decimal.Decimal `json:"pnl_amount"`
	CostBasisSold decimal.Decimal `json:"cost_basis_sold"`
	Broker        string          `json:"broker"`
	AccountType   string          `json:"account_type"`
	Source        string          `json:"source"`
}

// Holding is the derived view of one symbol's remaining lots: total
// quantity, weighted-average purchase price, commission total, and the
// earliest acquisition date.
type Holding struct {
	Symbol        string          `json:"symbol"`
	Quantity      decimal.Decimal `json:"quantity"`
	PurchasePrice decimal.Decimal `json:"purchase_price"`
	Commission    decimal.Decimal `json:"commission"`
	TradeDate     time.Time       `json:"trade_date"`
	Currency      string          `json:"currency"`
	Broker        string          `json:"broker"`
	AccountType   string          `json:"account_type"`
}

// ManualPosition is a manually entered override row. Optional fields
// replace the ledger-derived value only when set.
type ManualPosition struct {
	ID            int64               `json:"id,omitempty"`
	Symbol        string              `json:"symbol"`
	Broker        string              `json:"broker"`
	AccountType   string              `json:"account_type"`
	Quantity      decimal.NullDecimal `json:"quantity"`
	PurchasePrice decimal.NullDecimal `json:"purchase_price"`
	Commission    decimal.NullDecimal `json:"commission"`
	TradeDate     *time.Time          `json:"trade_date,omitempty"`
	Comment       string              `json:"comment"`
}

// Annotation carries the free-text research notes attached to a symbol.
// Annotations are keyed by symbol alone and never affect reconciliation
// arithmetic.
type Annotation struct {
	ID         int64  `json:"id,omitempty"`
	Symbol     string `json:"symbol"`
	Thesis     string `json:"thesis"`
	Conviction string `json:"conviction"`
	Timeframe  string `json:"timeframe"`
	KillSwitch string `json:"kill_switch"`
	Comment    string `json:"comment"`
}

// ReconciledHolding is a Holding after manual overrides and annotations
// have been applied.
type ReconciledHolding struct {
	Symbol        string          `json:"symbol"`
	Quantity      decimal.Decimal `json:"quantity"`
	PurchasePrice decimal.Decimal `json:"purchase_price"`
	Commission    decimal.Decimal `json:"commission"`
	TradeDate     time.Time       `json:"trade_date"`
	Currency      string          `json:"currency"`
	Broker        string          `json:"broker"`
	AccountType   string          `json:"account_type"`
	Source        string          `json:"source"` // "ledger", "manual", or "ledger+manual"
	Thesis        string          `json:"thesis,omitempty"`
	Conviction    string          `json:"conviction,omitempty"`
	Timeframe     string          `json:"timeframe,omitempty"`
	KillSwitch    string          `json:"kill_switch,omitempty"`
	Comment       string          `json:"comment,omitempty"`
}

// LedgerResult is the complete output of one ledger engine run.
type LedgerResult struct {
	Lots        map[string][]Lot `json:"lots"`
	Holdings    []Holding        `json:"holdings"`
	RealizedPnL []RealizedPnL    `json:"realized_pnl"`
}

// DividendSummary maps year -> symbol -> currency -> dividend income.
type DividendSummary map[string]map[string]map[string]decimal.Decimal

// Quote is a point-in-time market quote for one symbol.
type Quote struct {
	Symbol    string          `json:"symbol"`
	Price     decimal.Decimal `json:"price"`
	Currency  string          `json:"currency"`
	ChangePct decimal.Decimal `json:"change_pct"`
}

// HoldingValue decorates a reconciled holding with its current market value.
type HoldingValue struct {
	ReconciledHolding
	CurrentPrice decimal.Decimal `json:"current_price"`
	MarketValue  decimal.Decimal `json:"market_value"`
	GainPct      decimal.Decimal `json:"gain_pct"`
}

// ImportRun is the audit record of one file import.
type ImportRun struct {
	ID          string    `json:"id"`
	Broker      string    `json:"broker"`
	AccountType string    `json:"account_type"`
	Filename    string    `json:"filename"`
	Parsed      int       `json:"parsed"`
	Inserted    int       `json:"inserted"`
	Duplicates  int       `json:"duplicates"`
	ImportedAt  time.Time `json:"imported_at"`
}

// UserSetting is a persisted key/value preference.
type UserSetting struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}
