package services

import (
	"errors"
	"io"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mingli/holding-analyzer/backend/src/models"
)

var (
	ErrParsingFailed    = errors.New("parsing failed")
	ErrProcessingFailed = errors.New("processing failed")
)

// PortfolioReport is the assembled payload of an emailed portfolio summary.
type PortfolioReport struct {
	GeneratedAt    time.Time
	Holdings       []models.HoldingValue
	Totals         map[string]decimal.Decimal // market value per currency
	RealizedTotals map[string]decimal.Decimal // realized P&L per currency
}

// ImportService ingests broker exports and manual position files and keeps
// the derived tables (holdings, realized_pnl) in sync. An empty broker on
// ProcessUpload means detect it from the filename.
type ImportService interface {
	ProcessUpload(fileReader io.Reader, filename, broker string) (*models.ImportRun, error)
	ScanTransactionsDir(dir string) ([]models.ImportRun, error)
	ImportManualPositions(fileReader io.Reader) (int, error)
	AddTransaction(tx models.TransactionRecord) error
	Rebuild() error
}

// PortfolioService serves the read-side views over the rebuilt tables.
type PortfolioService interface {
	GetHoldings(aggregate bool) ([]models.ReconciledHolding, error)
	GetHoldingsWithValue() ([]models.HoldingValue, error)
	GetRealizedPnL() ([]models.RealizedPnL, error)
	GetDividends() (models.DividendSummary, error)
	GetTransactions() ([]models.TransactionRecord, error)
	InvalidateCache()
}

// PriceService fetches market quotes for a set of symbols. Symbols with no
// quote are simply absent from the result.
type PriceService interface {
	GetQuotes(symbols []string) map[string]models.Quote
}

// EmailService delivers the portfolio report.
type EmailService interface {
	SendPortfolioReport(toEmail string, report PortfolioReport) error
}
