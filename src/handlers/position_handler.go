// backend/src/handlers/position_handler.go
package handlers

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/mingli/holding-analyzer/backend/src/database"
	"github.com/mingli/holding-analyzer/backend/src/logger"
	"github.com/mingli/holding-analyzer/backend/src/models"
	"github.com/mingli/holding-analyzer/backend/src/normalize"
	"github.com/mingli/holding-analyzer/backend/src/security/validation"
	"github.com/mingli/holding-analyzer/backend/src/services"
	"github.com/mingli/holding-analyzer/backend/src/utils"
)

// PositionHandler manages the manual override rows that reconciliation
// merges over ledger-derived holdings.
type PositionHandler struct {
	portfolioService services.PortfolioService
}

func NewPositionHandler(portfolioService services.PortfolioService) *PositionHandler {
	return &PositionHandler{
		portfolioService: portfolioService,
	}
}

func (h *PositionHandler) HandleGetManualPositions(w http.ResponseWriter, r *http.Request) {
	rows, err := database.DB.Query(`
		SELECT id, symbol, broker, account_type, quantity, purchase_price, commission, trade_date, comment
		FROM manual_positions
		ORDER BY symbol ASC, broker ASC, account_type ASC`)
	if err != nil {
		utils.SendJSONError(w, fmt.Sprintf("Error querying manual positions: %v", err), http.StatusInternalServerError)
		return
	}
	defer rows.Close()

	var positions []models.ManualPosition
	for rows.Next() {
		var pos models.ManualPosition
		var dateStr, comment sql.NullString
		scanErr := rows.Scan(&pos.ID, &pos.Symbol, &pos.Broker, &pos.AccountType,
			&pos.Quantity, &pos.PurchasePrice, &pos.Commission, &dateStr, &comment)
		if scanErr != nil {
			utils.SendJSONError(w, fmt.Sprintf("Error scanning manual position: %v", scanErr), http.StatusInternalServerError)
			return
		}
		if dateStr.Valid && dateStr.String != "" {
			if parsed, parseErr := time.Parse(utils.DefaultDateFormat, dateStr.String); parseErr == nil {
				pos.TradeDate = &parsed
			}
		}
		pos.Comment = comment.String
		positions = append(positions, pos)
	}
	if err = rows.Err(); err != nil {
		utils.SendJSONError(w, fmt.Sprintf("Error iterating over manual positions: %v", err), http.StatusInternalServerError)
		return
	}
	if positions == nil {
		positions = []models.ManualPosition{}
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(positions); err != nil {
		logger.L.Error("Error encoding manual positions to JSON", "error", err)
	}
}

// HandleUpsertManualPosition writes one override row, replacing any previous
// row with the same (symbol, broker, account type) key.
func (h *PositionHandler) HandleUpsertManualPosition(w http.ResponseWriter, r *http.Request) {
	var pos models.ManualPosition
	if err := json.NewDecoder(r.Body).Decode(&pos); err != nil {
		utils.SendJSONError(w, fmt.Sprintf("Invalid manual position body: %v", err), http.StatusBadRequest)
		return
	}

	pos.Symbol = normalize.Symbol(pos.Symbol, pos.Broker, "")
	if pos.Symbol == "" {
		utils.SendJSONError(w, "Manual position requires a symbol", http.StatusBadRequest)
		return
	}
	if pos.Broker == "" {
		pos.Broker = "Manual"
	}
	if pos.AccountType == "" {
		pos.AccountType = "Manual"
	}
	pos.Comment = validation.StripUnprintable(pos.Comment)

	if err := services.UpsertManualPosition(pos); err != nil {
		logger.L.Error("Error upserting manual position", "symbol", pos.Symbol, "error", err)
		utils.SendJSONError(w, fmt.Sprintf("Error saving manual position: %v", err), http.StatusInternalServerError)
		return
	}
	h.portfolioService.InvalidateCache()
	utils.WriteJSON(w, http.StatusCreated, pos)
}

// HandleDeleteManualPosition removes the override identified by the
// symbol, broker, and account_type query parameters.
func (h *PositionHandler) HandleDeleteManualPosition(w http.ResponseWriter, r *http.Request) {
	symbol := normalize.Symbol(r.URL.Query().Get("symbol"), r.URL.Query().Get("broker"), "")
	broker := r.URL.Query().Get("broker")
	accountType := r.URL.Query().Get("account_type")
	if symbol == "" || broker == "" || accountType == "" {
		utils.SendJSONError(w, "symbol, broker and account_type query parameters are required", http.StatusBadRequest)
		return
	}

	result, err := database.DB.Exec(
		`DELETE FROM manual_positions WHERE symbol = ? AND broker = ? AND account_type = ?`,
		symbol, broker, accountType)
	if err != nil {
		utils.SendJSONError(w, fmt.Sprintf("Error deleting manual position: %v", err), http.StatusInternalServerError)
		return
	}
	affected, _ := result.RowsAffected()
	if affected == 0 {
		utils.SendJSONError(w, fmt.Sprintf("Manual position %s (%s/%s) not found", symbol, broker, accountType), http.StatusNotFound)
		return
	}
	h.portfolioService.InvalidateCache()
	utils.WriteJSON(w, http.StatusOK, map[string]string{"status": "success"})
}
