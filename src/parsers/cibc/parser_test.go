package cibc

import (
	"os"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mingli/holding-analyzer/backend/src/logger"
	"github.com/mingli/holding-analyzer/backend/src/models"
)

func TestMain(m *testing.M) {
	logger.InitLogger("error")
	os.Exit(m.Run())
}

// sampleExport mimics a CIBC Investor's Edge Transaction History download:
// a 9-line account preamble, the header row, then the data rows.
func sampleExport(rows ...string) string {
	preamble := []string{
		"CIBC Investor's Edge",
		"Transaction History",
		"",
		"Account Number: 500-12345",
		"Account Type: TFSA",
		"Currency: CAD",
		"From: 2024-01-01",
		"To: 2024-12-31",
		"",
		"Transaction Date,Settlement Date,Currency of Sub-account Held In,Transaction Type,Symbol,Quantity,Price,Commission,Amount,Currency of Amount,Description",
	}
	return strings.Join(append(preamble, rows...), "\n") + "\n"
}

func parseExport(t *testing.T, export string) []models.TransactionRecord {
	t.Helper()
	txs, err := NewParser().Parse(strings.NewReader(export), models.FileMeta{
		Broker: "CIBC", AccountType: "TFSA", Currency: "CAD",
	})
	require.NoError(t, err)
	return txs
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, decimal.RequireFromString(want).Equal(got), "want %s, got %s", want, got.String())
}

func TestParseBuyRow(t *testing.T) {
	t.Parallel()

	txs := parseExport(t, sampleExport(
		`2024-03-15,2024-03-18,CAD,Buy,XEI,100,25.10,6.95,"-2,516.95",CAD,ISHR S&PTSX CMP HI DV ETF`,
	))

	require.Len(t, txs, 1)
	tx := txs[0]
	assert.Equal(t, "XEI.TO", tx.Symbol)
	assert.Equal(t, models.ActionBuy, tx.Action)
	assertDecimal(t, "100", tx.Quantity)
	assertDecimal(t, "25.10", tx.Price)
	assertDecimal(t, "6.95", tx.Commission)
	assertDecimal(t, "-2516.95", tx.Amount)
	assert.Equal(t, "CAD", tx.Currency)
	assert.Equal(t, "CIBC", tx.Broker)
	assert.Equal(t, "TFSA", tx.AccountType)
	assert.Equal(t, "broker_csv", tx.Source)
	assert.Equal(t, "2024-03-15", tx.Date.Format("2006-01-02"))
	assert.False(t, tx.IsMerger)
}

func TestParseFiltersTransactionTypes(t *testing.T) {
	t.Parallel()

	txs := parseExport(t, sampleExport(
		`2024-03-15,2024-03-18,CAD,Buy,MSFT,10,400.00,6.95,"-4,006.95",USD,MICROSOFT CORP`,
		`2024-03-31,2024-03-31,CAD,Interest,,,,,0.42,CAD,INTEREST ON CASH BALANCE`,
		`2024-04-01,2024-04-01,CAD,Fee,,,,,-9.95,CAD,ACCOUNT FEE`,
		`2024-04-02,2024-04-02,CAD,Transf Out,MSFT,5,0,0,0,USD,TRANSFER OUT BOOK VALUE 2000.00`,
		`2024-04-15,2024-04-17,CAD,Sell,MSFT,4,410.00,6.95,"1,633.05",USD,MICROSOFT CORP`,
	))

	require.Len(t, txs, 2)
	assert.Equal(t, models.ActionBuy, txs[0].Action)
	assert.Equal(t, models.ActionSell, txs[1].Action)
}

func TestParseDividendAndReinvest(t *testing.T) {
	t.Parallel()

	txs := parseExport(t, sampleExport(
		`2024-05-01,2024-05-01,CAD,Dividend,XEI,,,,25.40,CAD,ISHR S&PTSX CMP HI DV ETF DIST`,
		`2024-05-01,2024-05-01,CAD,Reinvest,XEI,1,25.40,0,-25.40,CAD,ISHR S&PTSX CMP HI DV ETF DRIP`,
	))

	require.Len(t, txs, 2)
	assert.Equal(t, models.ActionDividend, txs[0].Action)
	assertDecimal(t, "25.40", txs[0].Amount)
	assert.Equal(t, models.ActionBuy, txs[1].Action)
	assertDecimal(t, "-25.40", txs[1].Amount)
}

func TestParseRecoversBookValueForTransfers(t *testing.T) {
	t.Parallel()

	txs := parseExport(t, sampleExport(
		`2024-01-05,2024-01-05,CAD,Transf In,CM,50,0,0,0,CAD,"TD WATERHOUSE TFSA TRANSFER BOOK VALUE 3,210.55"`,
	))

	require.Len(t, txs, 1)
	tx := txs[0]
	assert.Equal(t, "CM.TO", tx.Symbol)
	assert.Equal(t, models.ActionBuy, tx.Action)
	assertDecimal(t, "-3210.55", tx.Amount)
}

func TestParseMergerRows(t *testing.T) {
	t.Parallel()

	txs := parseExport(t, sampleExport(
		`2024-09-20,2024-09-20,CAD,Merger,VRN,120,0,0,0,CAD,"VEREN INC MERGER SURRENDERED BOOK VALUE 1,000.00"`,
		`2024-09-20,2024-09-20,CAD,Merger,WCP,120,0,0,0,CAD,WHITECAP RESOURCES MERGER RECEIVED`,
	))

	require.Len(t, txs, 2)

	surrender := txs[0]
	assert.Equal(t, models.ActionSell, surrender.Action)
	assert.True(t, surrender.IsMerger)
	assertDecimal(t, "-1000.00", surrender.Amount)

	receipt := txs[1]
	assert.Equal(t, "WCP.TO", receipt.Symbol)
	assert.Equal(t, models.ActionBuy, receipt.Action)
	assert.True(t, receipt.IsMerger)
	assertDecimal(t, "0", receipt.Amount)
}

func TestParseDropsUnusableRows(t *testing.T) {
	t.Parallel()

	txs := parseExport(t, sampleExport(
		`not a date,2024-03-18,CAD,Buy,XEI,100,25.10,6.95,-2516.95,CAD,ISHR S&PTSX CMP HI DV ETF`,
		`2024-03-15,2024-03-18,CAD,Buy,,100,25.10,6.95,-2516.95,CAD,NO TICKER HERE`,
		`2024-03-16,short row`,
		`2024-03-17,2024-03-20,CAD,Buy,TSLA,5,200.00,6.95,-1006.95,USD,TESLA INC`,
	))

	require.Len(t, txs, 1)
	assert.Equal(t, "TSLA", txs[0].Symbol)
}

func TestParseFallsBackToDescriptionTicker(t *testing.T) {
	t.Parallel()

	txs := parseExport(t, sampleExport(
		`2024-02-01,2024-02-01,CAD,Transf In,,30,0,0,0,CAD,VEREN INC COM NEW TD WATERHOUSE TFSA TRANSFER BOOK VALUE 6432.90`,
	))

	require.Len(t, txs, 1)
	assert.Equal(t, "WCP.TO", txs[0].Symbol)
	assertDecimal(t, "-6432.90", txs[0].Amount)
}

func TestParseBlankCurrencyFallsBackToMeta(t *testing.T) {
	t.Parallel()

	export := sampleExport(
		`2024-03-15,2024-03-18,USD,Buy,VOO,2,470.00,6.95,-946.95,,VANGUARD 500 INDX ETF`,
	)
	txs, err := NewParser().Parse(strings.NewReader(export), models.FileMeta{
		Broker: "CIBC", AccountType: "Open", Currency: "USD",
	})
	require.NoError(t, err)

	require.Len(t, txs, 1)
	assert.Equal(t, "USD", txs[0].Currency)
	assert.Equal(t, "Open", txs[0].AccountType)
}

func TestParseTruncatedPreamble(t *testing.T) {
	t.Parallel()

	_, err := NewParser().Parse(strings.NewReader("only\ntwo lines\n"), models.FileMeta{})
	assert.Error(t, err)
}
