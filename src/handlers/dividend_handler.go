// backend/src/handlers/dividend_handler.go
package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/mingli/holding-analyzer/backend/src/logger"
	"github.com/mingli/holding-analyzer/backend/src/models"
	"github.com/mingli/holding-analyzer/backend/src/services"
)

type DividendHandler struct {
	portfolioService services.PortfolioService
}

func NewDividendHandler(service services.PortfolioService) *DividendHandler {
	return &DividendHandler{
		portfolioService: service,
	}
}

func sendJSONError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// HandleGetDividendSummary returns dividend income grouped
// year → symbol → currency.
func (h *DividendHandler) HandleGetDividendSummary(w http.ResponseWriter, r *http.Request) {
	logger.L.Info("Handling GetDividendSummary")
	summary, err := h.portfolioService.GetDividends()
	if err != nil {
		logger.L.Error("Error retrieving dividend summary", "error", err)
		sendJSONError(w, fmt.Sprintf("Error retrieving dividend summary: %v", err), http.StatusInternalServerError)
		return
	}
	if summary == nil {
		summary = make(models.DividendSummary) // Ensure an empty map is sent if no data
	}
	respondWithETag(w, r, summary)
}
