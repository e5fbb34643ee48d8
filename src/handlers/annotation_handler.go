// backend/src/handlers/annotation_handler.go
package handlers

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/mingli/holding-analyzer/backend/src/database"
	"github.com/mingli/holding-analyzer/backend/src/logger"
	"github.com/mingli/holding-analyzer/backend/src/models"
	"github.com/mingli/holding-analyzer/backend/src/normalize"
	"github.com/mingli/holding-analyzer/backend/src/security/validation"
	"github.com/mingli/holding-analyzer/backend/src/services"
	"github.com/mingli/holding-analyzer/backend/src/utils"
)

// AnnotationHandler manages the research notes attached to symbols. One
// annotation per symbol; writes are upserts.
type AnnotationHandler struct {
	portfolioService services.PortfolioService
}

func NewAnnotationHandler(portfolioService services.PortfolioService) *AnnotationHandler {
	return &AnnotationHandler{
		portfolioService: portfolioService,
	}
}

func (h *AnnotationHandler) HandleGetAnnotations(w http.ResponseWriter, r *http.Request) {
	rows, err := database.DB.Query(`
		SELECT id, symbol, thesis, conviction, timeframe, kill_switch, comment
		FROM annotations
		ORDER BY symbol ASC`)
	if err != nil {
		utils.SendJSONError(w, fmt.Sprintf("Error querying annotations: %v", err), http.StatusInternalServerError)
		return
	}
	defer rows.Close()

	var annotations []models.Annotation
	for rows.Next() {
		var a models.Annotation
		var thesis, conviction, timeframe, killSwitch, comment sql.NullString
		scanErr := rows.Scan(&a.ID, &a.Symbol, &thesis, &conviction,
			&timeframe, &killSwitch, &comment)
		if scanErr != nil {
			utils.SendJSONError(w, fmt.Sprintf("Error scanning annotation: %v", scanErr), http.StatusInternalServerError)
			return
		}
		a.Thesis = thesis.String
		a.Conviction = conviction.String
		a.Timeframe = timeframe.String
		a.KillSwitch = killSwitch.String
		a.Comment = comment.String
		annotations = append(annotations, a)
	}
	if err = rows.Err(); err != nil {
		utils.SendJSONError(w, fmt.Sprintf("Error iterating over annotations: %v", err), http.StatusInternalServerError)
		return
	}
	if annotations == nil {
		annotations = []models.Annotation{}
	}
	respondWithETag(w, r, annotations)
}

// HandleUpsertAnnotation writes the annotation for one symbol, replacing
// any previous version.
func (h *AnnotationHandler) HandleUpsertAnnotation(w http.ResponseWriter, r *http.Request) {
	var a models.Annotation
	if err := json.NewDecoder(r.Body).Decode(&a); err != nil {
		utils.SendJSONError(w, fmt.Sprintf("Invalid annotation body: %v", err), http.StatusBadRequest)
		return
	}

	a.Symbol = normalize.Symbol(a.Symbol, "", "")
	if a.Symbol == "" {
		utils.SendJSONError(w, "Annotation requires a symbol", http.StatusBadRequest)
		return
	}
	a.Thesis = validation.SanitizeForFormulaInjection(validation.StripUnprintable(a.Thesis))
	a.Conviction = validation.StripUnprintable(a.Conviction)
	a.Timeframe = validation.StripUnprintable(a.Timeframe)
	a.KillSwitch = validation.StripUnprintable(a.KillSwitch)
	a.Comment = validation.SanitizeForFormulaInjection(validation.StripUnprintable(a.Comment))

	_, err := database.DB.Exec(`
		INSERT INTO annotations (symbol, thesis, conviction, timeframe, kill_switch, comment)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(symbol) DO UPDATE SET
			thesis = excluded.thesis,
			conviction = excluded.conviction,
			timeframe = excluded.timeframe,
			kill_switch = excluded.kill_switch,
			comment = excluded.comment`,
		a.Symbol, a.Thesis, a.Conviction, a.Timeframe, a.KillSwitch, a.Comment)
	if err != nil {
		logger.L.Error("Error upserting annotation", "symbol", a.Symbol, "error", err)
		utils.SendJSONError(w, fmt.Sprintf("Error saving annotation: %v", err), http.StatusInternalServerError)
		return
	}
	h.portfolioService.InvalidateCache()
	utils.WriteJSON(w, http.StatusCreated, a)
}
