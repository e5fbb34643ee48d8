package handlers

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/mingli/holding-analyzer/backend/src/database"
	"github.com/mingli/holding-analyzer/backend/src/models"
	"github.com/mingli/holding-analyzer/backend/src/services"
	"github.com/mingli/holding-analyzer/backend/src/utils"
)

type TransactionHandler struct {
	importService    services.ImportService
	portfolioService services.PortfolioService
}

func NewTransactionHandler(importService services.ImportService, portfolioService services.PortfolioService) *TransactionHandler {
	return &TransactionHandler{
		importService:    importService,
		portfolioService: portfolioService,
	}
}

func (h *TransactionHandler) HandleGetTransactions(w http.ResponseWriter, r *http.Request) {
	log.Printf("Handling GetTransactions")

	rows, err := database.DB.Query(`
		SELECT id, date, symbol, action, quantity, price, commission, amount,
		currency, description, broker, account_type, source, is_merger, hash_id
		FROM transactions
		ORDER BY date DESC, id DESC`)

	if err != nil {
		utils.SendJSONError(w, fmt.Sprintf("Error querying transactions: %v", err), http.StatusInternalServerError)
		return
	}
	defer rows.Close()

	var transactions []models.TransactionRecord
	for rows.Next() {
		var tx models.TransactionRecord
		var dateStr, action string
		scanErr := rows.Scan(
			&tx.ID,
			&dateStr, &tx.Symbol, &action, &tx.Quantity, &tx.Price,
			&tx.Commission, &tx.Amount, &tx.Currency, &tx.Description,
			&tx.Broker, &tx.AccountType, &tx.Source, &tx.IsMerger, &tx.HashId)
		if scanErr != nil {
			utils.SendJSONError(w, fmt.Sprintf("Error scanning transaction: %v", scanErr), http.StatusInternalServerError)
			return
		}
		tx.Action = models.Action(action)
		if parsed, parseErr := time.Parse(utils.DefaultDateFormat, dateStr); parseErr == nil {
			tx.Date = parsed
		}
		transactions = append(transactions, tx)
	}
	if err = rows.Err(); err != nil {
		utils.SendJSONError(w, fmt.Sprintf("Error iterating over transactions: %v", err), http.StatusInternalServerError)
		return
	}
	if transactions == nil {
		transactions = []models.TransactionRecord{}
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(transactions); err != nil {
		log.Printf("Error generating JSON response for transactions: %v", err)
	}
}

// HandleAddTransaction stores one hand-entered canonical record. Source,
// broker, and account type default to Manual when absent.
func (h *TransactionHandler) HandleAddTransaction(w http.ResponseWriter, r *http.Request) {
	var tx models.TransactionRecord
	if err := json.NewDecoder(r.Body).Decode(&tx); err != nil {
		utils.SendJSONError(w, fmt.Sprintf("Invalid transaction body: %v", err), http.StatusBadRequest)
		return
	}
	if tx.Date.IsZero() {
		utils.SendJSONError(w, "Transaction date is required", http.StatusBadRequest)
		return
	}
	if tx.Action == "" {
		utils.SendJSONError(w, "Transaction action is required", http.StatusBadRequest)
		return
	}

	if err := h.importService.AddTransaction(tx); err != nil {
		utils.SendJSONError(w, fmt.Sprintf("Error adding transaction: %v", err), http.StatusBadRequest)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, map[string]string{"status": "success"})
}

// HandleDeleteTransaction removes one row by id and rebuilds.
func (h *TransactionHandler) HandleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		utils.SendJSONError(w, "Invalid transaction id", http.StatusBadRequest)
		return
	}

	result, err := database.DB.Exec(`DELETE FROM transactions WHERE id = ?`, id)
	if err != nil {
		utils.SendJSONError(w, fmt.Sprintf("Error deleting transaction %d: %v", id, err), http.StatusInternalServerError)
		return
	}
	affected, _ := result.RowsAffected()
	if affected == 0 {
		utils.SendJSONError(w, fmt.Sprintf("Transaction %d not found", id), http.StatusNotFound)
		return
	}

	if err := h.importService.Rebuild(); err != nil {
		utils.SendJSONError(w, fmt.Sprintf("Error rebuilding after delete: %v", err), http.StatusInternalServerError)
		return
	}
	h.portfolioService.InvalidateCache()
	utils.WriteJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

// HandleDeleteAllTransactions wipes the transactions table and rebuilds,
// leaving only manual positions behind.
func (h *TransactionHandler) HandleDeleteAllTransactions(w http.ResponseWriter, r *http.Request) {
	result, err := database.DB.Exec(`DELETE FROM transactions`)
	if err != nil {
		utils.SendJSONError(w, fmt.Sprintf("Error deleting transactions: %v", err), http.StatusInternalServerError)
		return
	}
	affected, _ := result.RowsAffected()
	log.Printf("Deleted all transactions: %d rows", affected)

	if err := h.importService.Rebuild(); err != nil {
		utils.SendJSONError(w, fmt.Sprintf("Error rebuilding after delete: %v", err), http.StatusInternalServerError)
		return
	}
	h.portfolioService.InvalidateCache()
	utils.WriteJSON(w, http.StatusOK, map[string]int64{"deleted": affected})
}
