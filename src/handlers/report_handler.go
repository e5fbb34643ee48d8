// backend/src/handlers/report_handler.go
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mingli/holding-analyzer/backend/src/config"
	"github.com/mingli/holding-analyzer/backend/src/logger"
	"github.com/mingli/holding-analyzer/backend/src/services"
	"github.com/mingli/holding-analyzer/backend/src/utils"
)

// ReportHandler assembles and emails the portfolio summary.
type ReportHandler struct {
	portfolioService services.PortfolioService
	emailService     services.EmailService
}

func NewReportHandler(portfolioService services.PortfolioService, emailService services.EmailService) *ReportHandler {
	return &ReportHandler{
		portfolioService: portfolioService,
		emailService:     emailService,
	}
}

// HandleSendReport emails the current portfolio summary. The body may name
// a recipient; otherwise the configured report recipient is used.
func (h *ReportHandler) HandleSendReport(w http.ResponseWriter, r *http.Request) {
	var body struct {
		To string `json:"to"`
	}
	if r.Body != nil {
		// An empty body is fine; only malformed JSON is rejected.
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
			utils.SendJSONError(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
			return
		}
	}
	toEmail := body.To
	if toEmail == "" {
		toEmail = config.Cfg.ReportRecipientEmail
	}
	if toEmail == "" {
		utils.SendJSONError(w, "No recipient: provide 'to' in the body or set REPORT_RECIPIENT_EMAIL", http.StatusBadRequest)
		return
	}

	holdings, err := h.portfolioService.GetHoldingsWithValue()
	if err != nil {
		logger.L.Error("Error assembling report holdings", "error", err)
		utils.SendJSONError(w, fmt.Sprintf("Error assembling report: %v", err), http.StatusInternalServerError)
		return
	}
	realized, err := h.portfolioService.GetRealizedPnL()
	if err != nil {
		logger.L.Error("Error assembling report realized P&L", "error", err)
		utils.SendJSONError(w, fmt.Sprintf("Error assembling report: %v", err), http.StatusInternalServerError)
		return
	}

	totals := make(map[string]decimal.Decimal)
	for _, h := range holdings {
		totals[h.Currency] = totals[h.Currency].Add(h.MarketValue)
	}
	realizedTotals := make(map[string]decimal.Decimal)
	for _, entry := range realized {
		realizedTotals[entry.Currency] = realizedTotals[entry.Currency].Add(entry.PnLAmount)
	}

	report := services.PortfolioReport{
		GeneratedAt:    time.Now().UTC(),
		Holdings:       holdings,
		Totals:         totals,
		RealizedTotals: realizedTotals,
	}

	if err := h.emailService.SendPortfolioReport(toEmail, report); err != nil {
		logger.L.Error("Error sending portfolio report", "to", toEmail, "error", err)
		utils.SendJSONError(w, fmt.Sprintf("Error sending report: %v", err), http.StatusInternalServerError)
		return
	}

	logger.L.Info("Portfolio report dispatched", "to", toEmail, "holdings", len(holdings))
	utils.WriteJSON(w, http.StatusOK, map[string]string{"status": "sent", "to": toEmail})
}
