package handlers

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/mingli/holding-analyzer/backend/src/logger"
	"github.com/mingli/holding-analyzer/backend/src/models"
	"github.com/mingli/holding-analyzer/backend/src/services"
	"github.com/mingli/holding-analyzer/backend/src/utils"
)

type PortfolioHandler struct {
	portfolioService services.PortfolioService
}

func NewPortfolioHandler(portfolioService services.PortfolioService) *PortfolioHandler {
	return &PortfolioHandler{
		portfolioService: portfolioService,
	}
}

// respondWithETag writes payload as JSON with an ETag derived from its
// content, answering 304 when the client already holds the current version.
func respondWithETag(w http.ResponseWriter, r *http.Request, payload interface{}) {
	currentETag, etagErr := utils.GenerateETag(payload)
	if etagErr != nil {
		logger.L.Error("Failed to generate ETag for response", "error", etagErr)
	}

	w.Header().Set("Cache-Control", "no-cache, private")

	if etagErr == nil && currentETag != "" {
		quotedETag := fmt.Sprintf("\"%s\"", currentETag)
		w.Header().Set("ETag", quotedETag)
		clientETag := r.Header.Get("If-None-Match")
		for _, cETag := range strings.Split(clientETag, ",") {
			if strings.TrimSpace(cETag) == quotedETag {
				w.WriteHeader(http.StatusNotModified)
				return
			}
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.L.Error("Error encoding JSON response", "error", err)
	}
}

// HandleGetHoldings returns reconciled holdings. ?aggregate=true collapses
// rows across brokers and accounts into one row per symbol.
func (h *PortfolioHandler) HandleGetHoldings(w http.ResponseWriter, r *http.Request) {
	aggregate := r.URL.Query().Get("aggregate") == "true"
	log.Printf("Handling GetHoldings, aggregate=%t", aggregate)

	holdings, err := h.portfolioService.GetHoldings(aggregate)
	if err != nil {
		utils.SendJSONError(w, fmt.Sprintf("Error retrieving holdings: %v", err), http.StatusInternalServerError)
		return
	}
	if holdings == nil {
		holdings = []models.ReconciledHolding{}
	}
	respondWithETag(w, r, holdings)
}

// HandleGetHoldingsValue returns holdings decorated with live quotes.
func (h *PortfolioHandler) HandleGetHoldingsValue(w http.ResponseWriter, r *http.Request) {
	log.Printf("Handling GetHoldingsValue")

	holdings, err := h.portfolioService.GetHoldingsWithValue()
	if err != nil {
		utils.SendJSONError(w, fmt.Sprintf("Error retrieving holdings value: %v", err), http.StatusInternalServerError)
		return
	}
	if holdings == nil {
		holdings = []models.HoldingValue{}
	}
	respondWithETag(w, r, holdings)
}

// HandleGetRealizedPnL returns realized P&L entries plus per-currency totals.
func (h *PortfolioHandler) HandleGetRealizedPnL(w http.ResponseWriter, r *http.Request) {
	log.Printf("Handling GetRealizedPnL")

	entries, err := h.portfolioService.GetRealizedPnL()
	if err != nil {
		utils.SendJSONError(w, fmt.Sprintf("Error retrieving realized P&L: %v", err), http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []models.RealizedPnL{}
	}

	totals := make(map[string]decimal.Decimal)
	for _, entry := range entries {
		totals[entry.Currency] = totals[entry.Currency].Add(entry.PnLAmount)
	}

	response := struct {
		Entries []models.RealizedPnL       `json:"entries"`
		Totals  map[string]decimal.Decimal `json:"totals"`
	}{Entries: entries, Totals: totals}
	respondWithETag(w, r, response)
}
