package processors

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/mingli/holding-analyzer/backend/src/models"
)

// positionReconcilerImpl implements the PositionReconciler interface.
type positionReconcilerImpl struct{}

// NewPositionReconciler creates a new instance of PositionReconciler.
func NewPositionReconciler() PositionReconciler {
	return &positionReconcilerImpl{}
}

// overrideKey identifies the holding a manual row targets. Manual rows and
// ledger holdings only merge when all three parts agree.
type overrideKey struct {
	Symbol      string
	Broker      string
	AccountType string
}

// Reconcile merges ledger-derived holdings with manual position rows and
// attaches annotations. A manual row matching a holding on
// (symbol, broker, account type) replaces exactly the fields it carries;
// an unmatched manual row becomes a standalone holding. When several
// manual rows share a key, the later row wins. Positions whose final
// quantity is not positive are dropped from the view.
func (r *positionReconcilerImpl) Reconcile(holdings []models.Holding, manual []models.ManualPosition, annotations []models.Annotation) []models.ReconciledHolding {
	merged := make(map[overrideKey]*models.ReconciledHolding, len(holdings))
	order := make([]overrideKey, 0, len(holdings))

	for _, h := range holdings {
		key := overrideKey{h.Symbol, h.Broker, h.AccountType}
		merged[key] = &models.ReconciledHolding{
			Symbol:        h.Symbol,
			Quantity:      h.Quantity,
			PurchasePrice: h.PurchasePrice,
			Commission:    h.Commission,
			TradeDate:     h.TradeDate,
			Currency:      h.Currency,
			Broker:        h.Broker,
			AccountType:   h.AccountType,
			Source:        "ledger",
		}
		order = append(order, key)
	}

	for _, m := range manual {
		key := overrideKey{m.Symbol, m.Broker, m.AccountType}
		existing, ok := merged[key]
		if !ok {
			existing = &models.ReconciledHolding{
				Symbol:      m.Symbol,
				Currency:    currencyForSymbol(m.Symbol),
				Broker:      m.Broker,
				AccountType: m.AccountType,
				Source:      "manual",
			}
			merged[key] = existing
			order = append(order, key)
		} else if existing.Source == "ledger" {
			existing.Source = "ledger+manual"
		}
		applyOverride(existing, m)
	}

	bySymbol := make(map[string]models.Annotation, len(annotations))
	for _, a := range annotations {
		bySymbol[a.Symbol] = a
	}

	result := make([]models.ReconciledHolding, 0, len(order))
	for _, key := range order {
		h := merged[key]
		if h.Quantity.Sign() <= 0 {
			continue
		}
		if a, ok := bySymbol[h.Symbol]; ok {
			h.Thesis = a.Thesis
			h.Conviction = a.Conviction
			h.Timeframe = a.Timeframe
			h.KillSwitch = a.KillSwitch
			if h.Comment == "" {
				h.Comment = a.Comment
			}
		}
		result = append(result, *h)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Symbol != result[j].Symbol {
			return result[i].Symbol < result[j].Symbol
		}
		if result[i].Broker != result[j].Broker {
			return result[i].Broker < result[j].Broker
		}
		return result[i].AccountType < result[j].AccountType
	})
	return result
}

// AggregateBySymbol collapses reconciled holdings across brokers and
// accounts into one row per symbol with a weighted-average purchase price.
func (r *positionReconcilerImpl) AggregateBySymbol(holdings []models.ReconciledHolding) []models.ReconciledHolding {
	type rollup struct {
		row       models.ReconciledHolding
		totalCost decimal.Decimal
	}
	groups := make(map[string]*rollup)
	symbols := make([]string, 0, len(holdings))

	for _, h := range holdings {
		g, ok := groups[h.Symbol]
		if !ok {
			g = &rollup{row: models.ReconciledHolding{
				Symbol:     h.Symbol,
				TradeDate:  h.TradeDate,
				Currency:   h.Currency,
				Source:     "aggregate",
				Thesis:     h.Thesis,
				Conviction: h.Conviction,
				Timeframe:  h.Timeframe,
				KillSwitch: h.KillSwitch,
				Comment:    h.Comment,
			}}
			groups[h.Symbol] = g
			symbols = append(symbols, h.Symbol)
		}
		g.row.Quantity = g.row.Quantity.Add(h.Quantity)
		g.row.Commission = g.row.Commission.Add(h.Commission)
		g.totalCost = g.totalCost.Add(h.Quantity.Mul(h.PurchasePrice))
		if h.TradeDate.Before(g.row.TradeDate) {
			g.row.TradeDate = h.TradeDate
		}
	}

	sort.Strings(symbols)
	result := make([]models.ReconciledHolding, 0, len(symbols))
	for _, symbol := range symbols {
		g := groups[symbol]
		if g.row.Quantity.Sign() > 0 {
			g.row.PurchasePrice = g.totalCost.Div(g.row.Quantity)
		}
		result = append(result, g.row)
	}
	return result
}

// applyOverride copies only the fields the manual row actually carries.
func applyOverride(h *models.ReconciledHolding, m models.ManualPosition) {
	if m.Quantity.Valid {
		h.Quantity = m.Quantity.Decimal
	}
	if m.PurchasePrice.Valid {
		h.PurchasePrice = m.PurchasePrice.Decimal
	}
	if m.Commission.Valid {
		h.Commission = m.Commission.Decimal
	}
	if m.TradeDate != nil {
		h.TradeDate = *m.TradeDate
	}
	if m.Comment != "" {
		h.Comment = m.Comment
	}
}

// currencyForSymbol guesses the trading currency of a standalone manual
// position from its exchange suffix. Good enough for the two markets the
// exports cover.
func currencyForSymbol(symbol string) string {
	if strings.HasSuffix(symbol, ".TO") {
		return "CAD"
	}
	return "USD"
}
