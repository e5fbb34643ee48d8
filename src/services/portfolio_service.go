// backend/src/services/portfolio_service.go
package services

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/shopspring/decimal"

	"github.com/mingli/holding-analyzer/backend/src/database"
	"github.com/mingli/holding-analyzer/backend/src/logger"
	"github.com/mingli/holding-analyzer/backend/src/models"
	"github.com/mingli/holding-analyzer/backend/src/processors"
	"github.com/mingli/holding-analyzer/backend/src/utils"
)

const (
	// Long-lived caches for reconciled views; invalidated on every import.
	ckReconciledHoldings = "res_reconciled_holdings"
	ckAggregatedHoldings = "res_aggregated_holdings"
	ckRealizedPnL        = "res_realized_pnl"
	ckDividendSummary    = "agg_dividend_summary"

	// Short-lived cache for quote-decorated holdings.
	ckHoldingsValue = "agg_holdings_value"

	DefaultCacheExpiration = 15 * time.Minute
	CacheCleanupInterval   = 30 * time.Minute
)

type portfolioServiceImpl struct {
	dividendProcessor processors.DividendProcessor
	reconciler        processors.PositionReconciler
	priceService      PriceService
	reportCache       *cache.Cache
	priceCacheTTL     time.Duration
}

func NewPortfolioService(
	dividendProcessor processors.DividendProcessor,
	reconciler processors.PositionReconciler,
	priceService PriceService,
	reportCache *cache.Cache,
	priceCacheTTL time.Duration,
) PortfolioService {
	return &portfolioServiceImpl{
		dividendProcessor: dividendProcessor,
		reconciler:        reconciler,
		priceService:      priceService,
		reportCache:       reportCache,
		priceCacheTTL:     priceCacheTTL,
	}
}

// GetHoldings returns the reconciled view, per account by default or
// collapsed to one row per symbol when aggregate is set.
func (s *portfolioServiceImpl) GetHoldings(aggregate bool) ([]models.ReconciledHolding, error) {
	cacheKey := ckReconciledHoldings
	if aggregate {
		cacheKey = ckAggregatedHoldings
	}
	if cached, found := s.reportCache.Get(cacheKey); found {
		logger.L.Debug("Cache hit for holdings", "aggregate", aggregate)
		return cached.([]models.ReconciledHolding), nil
	}

	holdings, err := fetchHoldings()
	if err != nil {
		return nil, err
	}
	manual, err := fetchManualPositions()
	if err != nil {
		return nil, err
	}
	annotations, err := fetchAnnotations()
	if err != nil {
		return nil, err
	}

	reconciled := s.reconciler.Reconcile(holdings, manual, annotations)
	if aggregate {
		reconciled = s.reconciler.AggregateBySymbol(reconciled)
	}
	s.reportCache.Set(cacheKey, reconciled, cache.NoExpiration)
	return reconciled, nil
}

// GetHoldingsWithValue decorates the reconciled holdings with market
// quotes. Symbols with no quote keep a zero price rather than vanishing.
func (s *portfolioServiceImpl) GetHoldingsWithValue() ([]models.HoldingValue, error) {
	if cached, found := s.reportCache.Get(ckHoldingsValue); found {
		logger.L.Debug("Cache hit for holdings value")
		return cached.([]models.HoldingValue), nil
	}

	reconciled, err := s.GetHoldings(false)
	if err != nil {
		return nil, err
	}

	symbols := make([]string, 0, len(reconciled))
	seen := make(map[string]bool, len(reconciled))
	for _, h := range reconciled {
		if !seen[h.Symbol] {
			seen[h.Symbol] = true
			symbols = append(symbols, h.Symbol)
		}
	}
	quotes := s.priceService.GetQuotes(symbols)

	values := make([]models.HoldingValue, 0, len(reconciled))
	for _, h := range reconciled {
		value := models.HoldingValue{ReconciledHolding: h}
		if quote, ok := quotes[h.Symbol]; ok {
			value.CurrentPrice = quote.Price
			value.MarketValue = quote.Price.Mul(h.Quantity)
			if h.PurchasePrice.Sign() > 0 {
				value.GainPct = quote.Price.Sub(h.PurchasePrice).
					Div(h.PurchasePrice).Mul(decimal.NewFromInt(100))
			}
		}
		values = append(values, value)
	}

	s.reportCache.Set(ckHoldingsValue, values, s.priceCacheTTL)
	return values, nil
}

func (s *portfolioServiceImpl) GetRealizedPnL() ([]models.RealizedPnL, error) {
	if cached, found := s.reportCache.Get(ckRealizedPnL); found {
		return cached.([]models.RealizedPnL), nil
	}
	entries, err := fetchRealizedPnL()
	if err != nil {
		return nil, err
	}
	s.reportCache.Set(ckRealizedPnL, entries, cache.NoExpiration)
	return entries, nil
}

func (s *portfolioServiceImpl) GetDividends() (models.DividendSummary, error) {
	if cached, found := s.reportCache.Get(ckDividendSummary); found {
		return cached.(models.DividendSummary), nil
	}
	txs, err := fetchAllTransactions()
	if err != nil {
		return nil, err
	}
	summary := s.dividendProcessor.Calculate(txs)
	s.reportCache.Set(ckDividendSummary, summary, DefaultCacheExpiration)
	return summary, nil
}

func (s *portfolioServiceImpl) GetTransactions() ([]models.TransactionRecord, error) {
	return fetchAllTransactions()
}

// InvalidateCache clears every derived view, forcing a recomputation on
// the next request.
func (s *portfolioServiceImpl) InvalidateCache() {
	keysToDelete := []string{
		ckReconciledHoldings,
		ckAggregatedHoldings,
		ckRealizedPnL,
		ckDividendSummary,
		ckHoldingsValue,
	}
	for _, key := range keysToDelete {
		s.reportCache.Delete(key)
	}
	logger.L.Info("Invalidated portfolio caches")
}

func fetchHoldings() ([]models.Holding, error) {
	rows, err := database.DB.Query(`SELECT symbol, quantity, purchase_price, commission, trade_date, currency, broker, account_type FROM holdings ORDER BY symbol ASC, broker ASC, account_type ASC`)
	if err != nil {
		return nil, fmt.Errorf("error querying holdings: %w", err)
	}
	defer rows.Close()

	var holdings []models.Holding
	for rows.Next() {
		var h models.Holding
		var dateStr sql.NullString
		if err := rows.Scan(&h.Symbol, &h.Quantity, &h.PurchasePrice, &h.Commission,
			&dateStr, &h.Currency, &h.Broker, &h.AccountType); err != nil {
			return nil, fmt.Errorf("error scanning holding row: %w", err)
		}
		if dateStr.Valid && dateStr.String != "" {
			h.TradeDate, err = time.Parse(utils.DefaultDateFormat, dateStr.String)
			if err != nil {
				return nil, fmt.Errorf("error parsing holding trade date %q: %w", dateStr.String, err)
			}
		}
		holdings = append(holdings, h)
	}
	return holdings, rows.Err()
}

func fetchManualPositions() ([]models.ManualPosition, error) {
	rows, err := database.DB.Query(`SELECT id, symbol, broker, account_type, quantity, purchase_price, commission, trade_date, comment FROM manual_positions ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("error querying manual positions: %w", err)
	}
	defer rows.Close()

	var positions []models.ManualPosition
	for rows.Next() {
		var pos models.ManualPosition
		var dateStr, comment sql.NullString
		if err := rows.Scan(&pos.ID, &pos.Symbol, &pos.Broker, &pos.AccountType,
			&pos.Quantity, &pos.PurchasePrice, &pos.Commission, &dateStr, &comment); err != nil {
			return nil, fmt.Errorf("error scanning manual position row: %w", err)
		}
		if dateStr.Valid && dateStr.String != "" {
			parsed, err := time.Parse(utils.DefaultDateFormat, dateStr.String)
			if err != nil {
				return nil, fmt.Errorf("error parsing manual trade date %q: %w", dateStr.String, err)
			}
			pos.TradeDate = &parsed
		}
		pos.Comment = comment.String
		positions = append(positions, pos)
	}
	return positions, rows.Err()
}

func fetchAnnotations() ([]models.Annotation, error) {
	rows, err := database.DB.Query(`SELECT id, symbol, thesis, conviction, timeframe, kill_switch, comment FROM annotations ORDER BY symbol ASC`)
	if err != nil {
		return nil, fmt.Errorf("error querying annotations: %w", err)
	}
	defer rows.Close()

	var annotations []models.Annotation
	for rows.Next() {
		var a models.Annotation
		var thesis, conviction, timeframe, killSwitch, comment sql.NullString
		if err := rows.Scan(&a.ID, &a.Symbol, &thesis, &conviction, &timeframe, &killSwitch, &comment); err != nil {
			return nil, fmt.Errorf("error scanning annotation row: %w", err)
		}
		a.Thesis = thesis.String
		a.Conviction = conviction.String
		a.Timeframe = timeframe.String
		a.KillSwitch = killSwitch.String
		a.Comment = comment.String
		annotations = append(annotations, a)
	}
	return annotations, rows.Err()
}

func fetchRealizedPnL() ([]models.RealizedPnL, error) {
	rows, err := database.DB.Query(`SELECT id, symbol, currency, pnl_amount, cost_basis_sold, broker, account_type, source FROM realized_pnl ORDER BY symbol ASC, currency ASC`)
	if err != nil {
		return nil, fmt.Errorf("error querying realized pnl: %w", err)
	}
	defer rows.Close()

	var entries []models.RealizedPnL
	for rows.Next() {
		var entry models.RealizedPnL
		if err := rows.Scan(&entry.ID, &entry.Symbol, &entry.Currency,
			&entry.PnLAmount, &entry.CostBasisSold,
			&entry.Broker, &entry.AccountType, &entry.Source); err != nil {
			return nil, fmt.Errorf("error scanning realized pnl row: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
