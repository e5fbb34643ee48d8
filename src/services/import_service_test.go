package services

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mingli/holding-analyzer/backend/src/database"
	"github.com/mingli/holding-analyzer/backend/src/logger"
	"github.com/mingli/holding-analyzer/backend/src/models"
	"github.com/mingli/holding-analyzer/backend/src/processors"
)

func TestMain(m *testing.M) {
	logger.InitLogger("error")
	os.Exit(m.Run())
}

type stubPriceService struct{}

func (s *stubPriceService) GetQuotes(symbols []string) map[string]models.Quote {
	return map[string]models.Quote{}
}

// newTestEnv points the global database at a fresh temp file and wires the
// service stack against it. Tests sharing the global DB must not run in
// parallel.
func newTestEnv(t *testing.T) (ImportService, PortfolioService) {
	t.Helper()
	database.InitDB(filepath.Join(t.TempDir(), "test.db"))

	portfolio := NewPortfolioService(
		processors.NewDividendProcessor(),
		processors.NewPositionReconciler(),
		&stubPriceService{},
		cache.New(time.Minute, time.Minute),
		time.Minute,
	)
	importSvc := NewImportService(
		processors.NewTransactionProcessor(),
		processors.NewLedgerEngine(),
		portfolio,
	)
	return importSvc, portfolio
}

func testTx(date, symbol string, action models.Action, qty, amount string) models.TransactionRecord {
	parsed, err := time.Parse("2006-01-02", date)
	if err != nil {
		panic(err)
	}
	return models.TransactionRecord{
		Date:        parsed,
		Symbol:      symbol,
		Action:      action,
		Quantity:    decimal.RequireFromString(qty),
		Amount:      decimal.RequireFromString(amount),
		Currency:    "CAD",
		Broker:      "CIBC",
		AccountType: "TFSA",
		Source:      "test",
	}
}

func TestAddTransactionAndRebuildRoundTrip(t *testing.T) {
	importSvc, portfolio := newTestEnv(t)

	require.NoError(t, importSvc.AddTransaction(testTx("2024-01-01", "CM.TO", models.ActionBuy, "10", "-500")))
	require.NoError(t, importSvc.AddTransaction(testTx("2024-02-01", "CM.TO", models.ActionSell, "4", "280")))

	holdings, err := portfolio.GetHoldings(false)
	require.NoError(t, err)
	require.Len(t, holdings, 1)
	assert.Equal(t, "CM.TO", holdings[0].Symbol)
	assert.True(t, decimal.RequireFromString("6").Equal(holdings[0].Quantity))
	assert.True(t, decimal.RequireFromString("50").Equal(holdings[0].PurchasePrice))
	assert.Equal(t, "CIBC", holdings[0].Broker)
	assert.Equal(t, "TFSA", holdings[0].AccountType)

	realized, err := portfolio.GetRealizedPnL()
	require.NoError(t, err)
	require.Len(t, realized, 1)
	// Sold 4 of 10 shares: proceeds 280 against 200 of the 500 cost basis.
	assert.True(t, decimal.RequireFromString("80").Equal(realized[0].PnLAmount))
	assert.True(t, decimal.RequireFromString("200").Equal(realized[0].CostBasisSold))
}

func TestAddTransactionRejectsDuplicates(t *testing.T) {
	importSvc, _ := newTestEnv(t)

	tx := testTx("2024-01-01", "CM.TO", models.ActionBuy, "10", "-500")
	require.NoError(t, importSvc.AddTransaction(tx))

	err := importSvc.AddTransaction(tx)
	assert.ErrorIs(t, err, ErrProcessingFailed)
}

func TestRebuildIsIdempotent(t *testing.T) {
	importSvc, portfolio := newTestEnv(t)

	require.NoError(t, importSvc.AddTransaction(testTx("2024-01-01", "CM.TO", models.ActionBuy, "10", "-500")))
	require.NoError(t, importSvc.AddTransaction(testTx("2024-03-01", "XIU.TO", models.ActionBuy, "20", "-600")))

	first, err := portfolio.GetHoldings(false)
	require.NoError(t, err)

	require.NoError(t, importSvc.Rebuild())
	portfolio.InvalidateCache()

	second, err := portfolio.GetHoldings(false)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestRebuildExcludesNorbertGambitPnL(t *testing.T) {
	importSvc, portfolio := newTestEnv(t)

	require.NoError(t, importSvc.AddTransaction(testTx("2024-01-01", "DLR.TO", models.ActionBuy, "100", "-1350")))
	require.NoError(t, importSvc.AddTransaction(testTx("2024-01-05", "DLR.TO", models.ActionSell, "100", "1352")))
	require.NoError(t, importSvc.AddTransaction(testTx("2024-02-01", "CM.TO", models.ActionBuy, "10", "-500")))
	require.NoError(t, importSvc.AddTransaction(testTx("2024-03-01", "CM.TO", models.ActionSell, "10", "600")))

	realized, err := portfolio.GetRealizedPnL()
	require.NoError(t, err)
	require.Len(t, realized, 1, "the DLR round trip is an FX artifact, not P&L")
	assert.Equal(t, "CM.TO", realized[0].Symbol)
}

func TestManualPositionOverridesLedgerHolding(t *testing.T) {
	importSvc, portfolio := newTestEnv(t)

	require.NoError(t, importSvc.AddTransaction(testTx("2024-01-01", "CM.TO", models.ActionBuy, "10", "-500")))

	require.NoError(t, UpsertManualPosition(models.ManualPosition{
		Symbol:      "CM.TO",
		Broker:      "CIBC",
		AccountType: "TFSA",
		Quantity:    decimal.NullDecimal{Decimal: decimal.RequireFromString("12"), Valid: true},
	}))
	portfolio.InvalidateCache()

	holdings, err := portfolio.GetHoldings(false)
	require.NoError(t, err)
	require.Len(t, holdings, 1)
	assert.True(t, decimal.RequireFromString("12").Equal(holdings[0].Quantity))
	assert.Equal(t, "ledger+manual", holdings[0].Source)
	// The ledger-derived price survives since the override carried none.
	assert.True(t, decimal.RequireFromString("50").Equal(holdings[0].PurchasePrice))
}

func TestStandaloneManualPositionAppears(t *testing.T) {
	_, portfolio := newTestEnv(t)

	tradeDate := time.Date(2023, 5, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, UpsertManualPosition(models.ManualPosition{
		Symbol:        "PRIVATE",
		Broker:        "Manual",
		AccountType:   "Manual",
		Quantity:      decimal.NullDecimal{Decimal: decimal.RequireFromString("1000"), Valid: true},
		PurchasePrice: decimal.NullDecimal{Decimal: decimal.RequireFromString("1.25"), Valid: true},
		TradeDate:     &tradeDate,
	}))

	holdings, err := portfolio.GetHoldings(false)
	require.NoError(t, err)
	require.Len(t, holdings, 1)
	assert.Equal(t, "PRIVATE", holdings[0].Symbol)
	assert.Equal(t, "manual", holdings[0].Source)
	assert.Equal(t, "USD", holdings[0].Currency, "no .TO suffix, so USD is assumed")
}
