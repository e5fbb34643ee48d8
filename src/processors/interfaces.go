package processors

import (
	"github.com/mingli/holding-analyzer/backend/src/models"
)

// LedgerProcessor defines the interface for replaying transactions into
// lots, holdings, and realized P&L.
type LedgerProcessor interface {
	Run(transactions []models.TransactionRecord) models.LedgerResult
}

// DividendProcessor defines the interface for aggregating dividend income.
type DividendProcessor interface {
	Calculate(transactions []models.TransactionRecord) models.DividendSummary
}

// PositionReconciler defines the interface for merging ledger holdings
// with manual positions and annotations.
type PositionReconciler interface {
	Reconcile(holdings []models.Holding, manual []models.ManualPosition, annotations []models.Annotation) []models.ReconciledHolding
	AggregateBySymbol(holdings []models.ReconciledHolding) []models.ReconciledHolding
}
