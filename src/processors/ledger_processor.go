// backend/src/processors/ledger_processor.go
package processors

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/mingli/holding-analyzer/backend/src/logger"
	"github.com/mingli/holding-analyzer/backend/src/models"
)

// lotEpsilon is the exhaustion threshold: a lot whose quantity falls below
// it is removed from the queue. It exists only for that comparison; all
// other arithmetic is exact decimal.
var lotEpsilon = decimal.New(1, -6)

// Ledger owns one symbol's open lot queue. A fresh Ledger is built per
// engine run and discarded afterwards, which is what makes rerunning the
// engine on the same transaction set reproduce identical output.
type Ledger struct {
	Symbol string
	Lots   []models.Lot
}

// LedgerEngine replays a transaction stream into per-symbol lot queues,
// realized P&L, and merger carryover. The engine itself is stateless;
// every Run builds its state from scratch.
type LedgerEngine struct{}

func NewLedgerEngine() *LedgerEngine { return &LedgerEngine{} }

// ledgerRun holds the mutable state of one replay. Carryover is run-scoped
// rather than ledger-scoped because a merger can move cost basis between
// two symbols (the surrendered security and the received one).
type ledgerRun struct {
	ledgers   map[string]*Ledger
	realized  map[string]*models.RealizedPnL
	carryover map[string]decimal.Decimal
}

// Run replays the given transactions in (date, action rank) order and
// returns the remaining lots, derived holdings, and realized P&L. The
// input slice is not modified; records are consumed by a single
// sequential pass so cross-symbol merger ordering always holds.
func (e *LedgerEngine) Run(transactions []models.TransactionRecord) models.LedgerResult {
	txs := make([]models.TransactionRecord, len(transactions))
	copy(txs, transactions)
	SortForLedger(txs)

	run := &ledgerRun{
		ledgers:   make(map[string]*Ledger),
		realized:  make(map[string]*models.RealizedPnL),
		carryover: make(map[string]decimal.Decimal),
	}
	for _, tx := range txs {
		run.apply(tx)
	}
	return run.result()
}

func (r *ledgerRun) apply(tx models.TransactionRecord) {
	switch tx.Action {
	case models.ActionBuy, models.ActionSell:
	default:
		// Dividends and OTHER rows have no lot or P&L effect here.
		return
	}
	if tx.Quantity.Sign() <= 0 {
		logger.L.Debug("Dropping trade with non-positive quantity",
			"symbol", tx.Symbol, "action", tx.Action, "quantity", tx.Quantity)
		return
	}

	ledger := r.ledgers[tx.Symbol]
	if ledger == nil {
		ledger = &Ledger{Symbol: tx.Symbol}
		r.ledgers[tx.Symbol] = ledger
	}

	if tx.Action == models.ActionBuy {
		r.applyBuy(ledger, tx)
	} else {
		r.applySell(ledger, tx)
	}
}

// applyBuy appends a new lot at the tail of the queue. Cost comes from the
// settled amount when the export provides one, else quantity*price plus
// commission. A merger receipt additionally absorbs the carryover parked
// by the matching surrender.
func (r *ledgerRun) applyBuy(ledger *Ledger, tx models.TransactionRecord) {
	cost := tx.Amount.Abs()
	if tx.Amount.IsZero() {
		cost = tx.Quantity.Mul(tx.Price).Add(tx.Commission)
	}

	if tx.IsMerger {
		cost = cost.Add(r.popCarryover(tx.Symbol))
	}

	ledger.Lots = append(ledger.Lots, models.Lot{
		Quantity:   tx.Quantity,
		Cost:       cost,
		Commission: tx.Commission,
		Currency:   tx.Currency,
		TradeDate:  tx.Date,
	})
}

// applySell walks the lot queue oldest-first. Each consumed slice takes a
// proportional share of the lot's cost and of the sell order's proceeds.
// Merger surrenders divert the consumed cost to the carryover instead of
// realizing P&L. Quantity beyond the available lot history is dropped:
// partial-history imports are lossy in exactly this direction, and
// downstream reconciliation relies on that.
func (r *ledgerRun) applySell(ledger *Ledger, tx models.TransactionRecord) {
	totalProceeds := tx.Amount
	if totalProceeds.IsZero() {
		totalProceeds = tx.Quantity.Mul(tx.Price).Sub(tx.Commission)
	}

	remaining := tx.Quantity
	for remaining.Sign() > 0 && len(ledger.Lots) > 0 {
		lot := &ledger.Lots[0]

		sold := decimal.Min(lot.Quantity, remaining)
		costSlice := lot.Cost.Mul(sold).Div(lot.Quantity)
		proceedsSlice := totalProceeds.Mul(sold).Div(tx.Quantity)

		if tx.IsMerger {
			r.carryover[tx.Symbol] = r.carryover[tx.Symbol].Add(costSlice)
		} else {
			entry := r.realizedEntry(tx)
			entry.PnLAmount = entry.PnLAmount.Add(proceedsSlice.Sub(costSlice))
			entry.CostBasisSold = entry.CostBasisSold.Add(costSlice)
		}

		lot.Quantity = lot.Quantity.Sub(sold)
		lot.Cost = lot.Cost.Sub(costSlice)
		remaining = remaining.Sub(sold)

		if lot.Quantity.LessThan(lotEpsilon) {
			ledger.Lots = ledger.Lots[1:]
		}
	}

	if remaining.Sign() > 0 {
		// Sold without history: documented approximation, not an error.
		logger.L.Debug("Sell quantity exceeds available lots; dropping remainder",
			"symbol", tx.Symbol, "remaining", remaining)
	}
}

func (r *ledgerRun) realizedEntry(tx models.TransactionRecord) *models.RealizedPnL {
	key := tx.Symbol + "|" + tx.Currency
	entry, ok := r.realized[key]
	if !ok {
		entry = &models.RealizedPnL{
			Symbol:      tx.Symbol,
			Currency:    tx.Currency,
			Broker:      tx.Broker,
			AccountType: tx.AccountType,
			Source:      tx.Source,
		}
		r.realized[key] = entry
	}
	return entry
}

// popCarryover hands a merger receipt the cost basis parked by its
// surrender. The receipt's own symbol wins; failing that, a sole pending
// carryover is taken to be the matching one (the surrendered and received
// securities need not share a symbol). Anything else is a data-ordering or
// data-completeness defect in the export and is logged loudly.
func (r *ledgerRun) popCarryover(symbol string) decimal.Decimal {
	if cost, ok := r.carryover[symbol]; ok {
		delete(r.carryover, symbol)
		return cost
	}
	if len(r.carryover) == 1 {
		for from, cost := range r.carryover {
			logger.L.Info("Applying cross-symbol merger carryover",
				"from", from, "to", symbol, "cost", cost)
			delete(r.carryover, from)
			return cost
		}
	}
	if len(r.carryover) > 1 {
		pending := make([]string, 0, len(r.carryover))
		for from := range r.carryover {
			pending = append(pending, from)
		}
		sort.Strings(pending)
		logger.L.Error("Ambiguous merger carryover; receipt left uncosted",
			"symbol", symbol, "pending", pending)
	} else {
		logger.L.Error("Merger receipt with no pending carryover",
			"symbol", symbol)
	}
	return decimal.Zero
}

// result assembles the run's output: remaining lots per symbol, one derived
// holding per symbol with open lots, and the realized P&L entries. Output
// ordering is deterministic (sorted by symbol, then currency).
func (r *ledgerRun) result() models.LedgerResult {
	lots := make(map[string][]models.Lot)
	holdings := make([]models.Holding, 0, len(r.ledgers))

	symbols := make([]string, 0, len(r.ledgers))
	for symbol := range r.ledgers {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)

	for _, symbol := range symbols {
		ledger := r.ledgers[symbol]
		if len(ledger.Lots) == 0 {
			continue
		}
		remaining := make([]models.Lot, len(ledger.Lots))
		copy(remaining, ledger.Lots)
		lots[symbol] = remaining
		holdings = append(holdings, deriveHolding(symbol, remaining))
	}

	realized := make([]models.RealizedPnL, 0, len(r.realized))
	for _, entry := range r.realized {
		realized = append(realized, *entry)
	}
	sort.Slice(realized, func(i, j int) bool {
		if realized[i].Symbol != realized[j].Symbol {
			return realized[i].Symbol < realized[j].Symbol
		}
		return realized[i].Currency < realized[j].Currency
	})

	return models.LedgerResult{Lots: lots, Holdings: holdings, RealizedPnL: realized}
}

// deriveHolding sums a symbol's remaining lots into the holdings view:
// total quantity, weighted-average price, commission total, earliest
// acquisition date, and the first lot's currency.
func deriveHolding(symbol string, lots []models.Lot) models.Holding {
	holding := models.Holding{
		Symbol:    symbol,
		Currency:  lots[0].Currency,
		TradeDate: lots[0].TradeDate,
	}
	totalQty := decimal.Zero
	totalCost := decimal.Zero
	for _, lot := range lots {
		totalQty = totalQty.Add(lot.Quantity)
		totalCost = totalCost.Add(lot.Cost)
		holding.Commission = holding.Commission.Add(lot.Commission)
		if lot.TradeDate.Before(holding.TradeDate) {
			holding.TradeDate = lot.TradeDate
		}
	}
	holding.Quantity = totalQty
	if totalQty.Sign() > 0 {
		holding.PurchasePrice = totalCost.Div(totalQty)
	}
	return holding
}
