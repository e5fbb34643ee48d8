// backend/src/handlers/upload_handler.go
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/mingli/holding-analyzer/backend/src/config"
	"github.com/mingli/holding-analyzer/backend/src/database"
	"github.com/mingli/holding-analyzer/backend/src/logger"
	"github.com/mingli/holding-analyzer/backend/src/models"
	"github.com/mingli/holding-analyzer/backend/src/security/validation"
	"github.com/mingli/holding-analyzer/backend/src/services"
	"github.com/mingli/holding-analyzer/backend/src/utils"
)

type UploadHandler struct {
	importService services.ImportService
}

func NewUploadHandler(service services.ImportService) *UploadHandler {
	return &UploadHandler{
		importService: service,
	}
}

// HandleUpload accepts one broker CSV as multipart form data. The optional
// "broker" form field overrides filename detection.
func (h *UploadHandler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(config.Cfg.MaxUploadSizeBytes); err != nil {
		logger.L.Warn("Failed to parse multipart form or request too large", "error", err, "limit", config.Cfg.MaxUploadSizeBytes)
		utils.SendJSONError(w, fmt.Sprintf("Failed to parse form or request too large (max %d MB)", config.Cfg.MaxUploadSizeBytes/(1024*1024)), http.StatusBadRequest)
		return
	}

	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		logger.L.Warn("Failed to retrieve file from request", "error", err)
		utils.SendJSONError(w, "Failed to retrieve file from request. Ensure 'file' field is used.", http.StatusBadRequest)
		return
	}
	defer file.Close()

	if fileHeader.Size > config.Cfg.MaxUploadSizeBytes {
		logger.L.Warn("Uploaded file header reports size too large", "fileSize", fileHeader.Size, "limit", config.Cfg.MaxUploadSizeBytes)
		utils.SendJSONError(w, fmt.Sprintf("File too large, max %d MB (header check)", config.Cfg.MaxUploadSizeBytes/(1024*1024)), http.StatusBadRequest)
		return
	}

	clientContentType := fileHeader.Header.Get("Content-Type")
	if err := validation.ValidateClientContentType(clientContentType); err != nil {
		logger.L.Warn("Invalid client-declared file type", "contentType", clientContentType, "error", err)
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	logger.L.Debug("Client-declared Content-Type validated", "contentType", clientContentType)

	detectedContentType, err := validation.ValidateFileContentByMagicBytes(file)
	if err != nil {
		logger.L.Warn("Server-side file content validation failed", "filename", fileHeader.Filename, "error", err)
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	logger.L.Info("File content validated by magic bytes", "filename", fileHeader.Filename, "clientType", clientContentType, "detectedType", detectedContentType)

	broker := r.FormValue("broker")
	logger.L.Info("Processing upload request", "filename", fileHeader.Filename, "broker", broker)
	run, err := h.importService.ProcessUpload(file, fileHeader.Filename, broker)
	if err != nil {
		if errors.Is(err, services.ErrParsingFailed) {
			logger.L.Warn("Upload processing failed due to CSV parsing errors", "filename", fileHeader.Filename, "error", err)
			utils.SendJSONError(w, fmt.Sprintf("Error parsing CSV file: %v", err), http.StatusBadRequest)
		} else if errors.Is(err, services.ErrProcessingFailed) {
			logger.L.Warn("Upload processing failed during transaction processing", "filename", fileHeader.Filename, "error", err)
			utils.SendJSONError(w, fmt.Sprintf("Error processing transactions in file: %v", err), http.StatusBadRequest)
		} else {
			logger.L.Error("Internal error processing upload", "filename", fileHeader.Filename, "error", err)
			utils.SendJSONError(w, "An internal error occurred while processing the file. Please try again later.", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(run); err != nil {
		logger.L.Error("Error encoding JSON response for upload result", "error", err)
	}
}

// HandleScanImports walks the configured transactions directory and imports
// every broker CSV found there.
func (h *UploadHandler) HandleScanImports(w http.ResponseWriter, r *http.Request) {
	dir := config.Cfg.TransactionsDir
	logger.L.Info("Handling scan request", "dir", dir)

	runs, err := h.importService.ScanTransactionsDir(dir)
	if err != nil {
		logger.L.Error("Scan failed", "dir", dir, "error", err)
		utils.SendJSONError(w, fmt.Sprintf("Error scanning transactions directory: %v", err), http.StatusInternalServerError)
		return
	}
	if runs == nil {
		runs = []models.ImportRun{}
	}
	utils.WriteJSON(w, http.StatusOK, runs)
}

// HandleGetImportRuns lists past import runs, newest first.
func (h *UploadHandler) HandleGetImportRuns(w http.ResponseWriter, r *http.Request) {
	rows, err := database.DB.Query(`
		SELECT id, broker, account_type, filename, parsed, inserted, duplicates, imported_at
		FROM import_runs
		ORDER BY imported_at DESC, id DESC`)
	if err != nil {
		utils.SendJSONError(w, fmt.Sprintf("Error querying import runs: %v", err), http.StatusInternalServerError)
		return
	}
	defer rows.Close()

	var runs []models.ImportRun
	for rows.Next() {
		var run models.ImportRun
		var importedAt string
		scanErr := rows.Scan(&run.ID, &run.Broker, &run.AccountType, &run.Filename,
			&run.Parsed, &run.Inserted, &run.Duplicates, &importedAt)
		if scanErr != nil {
			utils.SendJSONError(w, fmt.Sprintf("Error scanning import run: %v", scanErr), http.StatusInternalServerError)
			return
		}
		if ts, parseErr := time.Parse(time.RFC3339, importedAt); parseErr == nil {
			run.ImportedAt = ts
		}
		runs = append(runs, run)
	}
	if err = rows.Err(); err != nil {
		utils.SendJSONError(w, fmt.Sprintf("Error iterating over import runs: %v", err), http.StatusInternalServerError)
		return
	}
	if runs == nil {
		runs = []models.ImportRun{}
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(runs); err != nil {
		logger.L.Error("Error encoding import runs to JSON", "error", err)
	}
}

// HandleImportManualPositions accepts the hand-maintained portfolio CSV.
func (h *UploadHandler) HandleImportManualPositions(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(config.Cfg.MaxUploadSizeBytes); err != nil {
		utils.SendJSONError(w, "Failed to parse form or request too large", http.StatusBadRequest)
		return
	}
	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		utils.SendJSONError(w, "Failed to retrieve file from request. Ensure 'file' field is used.", http.StatusBadRequest)
		return
	}
	defer file.Close()

	if _, err := validation.ValidateFileContentByMagicBytes(file); err != nil {
		logger.L.Warn("Manual portfolio content validation failed", "filename", fileHeader.Filename, "error", err)
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	count, err := h.importService.ImportManualPositions(file)
	if err != nil {
		if errors.Is(err, services.ErrParsingFailed) {
			utils.SendJSONError(w, fmt.Sprintf("Error parsing manual portfolio CSV: %v", err), http.StatusBadRequest)
		} else {
			logger.L.Error("Internal error importing manual positions", "filename", fileHeader.Filename, "error", err)
			utils.SendJSONError(w, "An internal error occurred while importing manual positions.", http.StatusInternalServerError)
		}
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string]int{"imported": count})
}
