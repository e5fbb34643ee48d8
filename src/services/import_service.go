// backend/src/services/import_service.go
package services

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mingli/holding-analyzer/backend/src/config"
	"github.com/mingli/holding-analyzer/backend/src/database"
	"github.com/mingli/holding-analyzer/backend/src/logger"
	"github.com/mingli/holding-analyzer/backend/src/models"
	"github.com/mingli/holding-analyzer/backend/src/parsers"
	"github.com/mingli/holding-analyzer/backend/src/processors"
	"github.com/mingli/holding-analyzer/backend/src/utils"
)

// norbertGambitExclude lists the symbols used for DLR/DLR.TO currency
// conversion round trips. Their apparent P&L is an FX artifact, so they
// never reach the realized_pnl table.
var norbertGambitExclude = map[string]bool{
	"DLR":    true,
	"DLR.TO": true,
}

type importServiceImpl struct {
	transactionProcessor *processors.TransactionProcessor
	ledger               processors.LedgerProcessor
	portfolio            PortfolioService

	// rebuildMu serializes wipe-and-rebuild runs; concurrent uploads would
	// otherwise interleave their derived-table writes.
	rebuildMu sync.Mutex
}

func NewImportService(
	transactionProcessor *processors.TransactionProcessor,
	ledger processors.LedgerProcessor,
	portfolio PortfolioService,
) ImportService {
	return &importServiceImpl{
		transactionProcessor: transactionProcessor,
		ledger:               ledger,
		portfolio:            portfolio,
	}
}

// ProcessUpload parses one broker export, stores the new rows, records the
// import run, and rebuilds the derived tables. An empty broker falls back
// to filename detection.
func (s *importServiceImpl) ProcessUpload(fileReader io.Reader, filename, broker string) (*models.ImportRun, error) {
	overallStartTime := time.Now()
	logger.L.Info("ProcessUpload START", "filename", filename, "broker", broker)

	run, err := s.importFile(fileReader, filename, broker)
	if err != nil {
		return nil, err
	}

	if err := s.Rebuild(); err != nil {
		return nil, fmt.Errorf("rebuilding derived tables after upload: %w", err)
	}
	s.portfolio.InvalidateCache()

	logger.L.Info("ProcessUpload END", "filename", filename,
		"inserted", run.Inserted, "duplicates", run.Duplicates,
		"duration", time.Since(overallStartTime))
	return run, nil
}

// importFile runs the parse-and-insert half of an import without touching
// the derived tables. Callers decide when to rebuild.
func (s *importServiceImpl) importFile(fileReader io.Reader, filename, broker string) (*models.ImportRun, error) {
	var meta models.FileMeta
	var err error
	if broker != "" {
		meta, err = parsers.MetaForBroker(broker, filename)
	} else {
		meta, err = parsers.DetectFileMeta(filename)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParsingFailed, err)
	}

	parser, err := parsers.GetParser(meta.Broker)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParsingFailed, err)
	}

	records, err := parser.Parse(fileReader, meta)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParsingFailed, err)
	}

	processed := s.transactionProcessor.Process(records)

	inserted, duplicates, err := insertTransactions(processed)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProcessingFailed, err)
	}

	run := &models.ImportRun{
		ID:          uuid.NewString(),
		Broker:      meta.Broker,
		AccountType: meta.AccountType,
		Filename:    filepath.Base(filename),
		Parsed:      len(processed),
		Inserted:    inserted,
		Duplicates:  duplicates,
		ImportedAt:  time.Now().UTC(),
	}
	if err := recordImportRun(run); err != nil {
		logger.L.Error("Failed to record import run", "filename", filename, "error", err)
	}
	return run, nil
}

// ScanTransactionsDir walks the configured directory for broker CSV
// exports, imports each file it recognizes, picks up the manual portfolio
// CSV when one is configured, and rebuilds once at the end.
func (s *importServiceImpl) ScanTransactionsDir(dir string) ([]models.ImportRun, error) {
	logger.L.Info("Scanning transactions directory", "dir", dir)

	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.EqualFold(filepath.Ext(path), ".csv") {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking transactions dir %s: %w", dir, err)
	}
	sort.Strings(files)

	runs := make([]models.ImportRun, 0, len(files))
	for _, path := range files {
		run, err := s.importPath(path)
		if err != nil {
			logger.L.Warn("Skipping file during scan", "file", path, "error", err)
			continue
		}
		runs = append(runs, *run)
	}

	if manualPath := config.Cfg.ManualPortfolioCSV; manualPath != "" {
		if f, err := os.Open(manualPath); err == nil {
			count, importErr := s.importManualFile(f)
			f.Close()
			if importErr != nil {
				logger.L.Warn("Manual portfolio import failed during scan", "file", manualPath, "error", importErr)
			} else {
				logger.L.Info("Manual portfolio imported during scan", "file", manualPath, "positions", count)
			}
		}
	}

	if err := s.Rebuild(); err != nil {
		return runs, fmt.Errorf("rebuilding derived tables after scan: %w", err)
	}
	s.portfolio.InvalidateCache()
	touchSetting(SettingLastScanAt, time.Now().UTC().Format(time.RFC3339))

	logger.L.Info("Scan complete", "dir", dir, "files", len(files), "imported", len(runs))
	return runs, nil
}

func (s *importServiceImpl) importPath(path string) (*models.ImportRun, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return s.importFile(f, filepath.Base(path), "")
}

// ImportManualPositions upserts rows from a manual portfolio CSV. Manual
// positions only matter at reconciliation time, so no rebuild is needed.
func (s *importServiceImpl) ImportManualPositions(fileReader io.Reader) (int, error) {
	count, err := s.importManualFile(fileReader)
	if err != nil {
		return 0, err
	}
	s.portfolio.InvalidateCache()
	return count, nil
}

func (s *importServiceImpl) importManualFile(fileReader io.Reader) (int, error) {
	positions, err := parsers.ParseManualPositions(fileReader)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrParsingFailed, err)
	}
	for _, pos := range positions {
		if err := UpsertManualPosition(pos); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrProcessingFailed, err)
		}
	}
	return len(positions), nil
}

// AddTransaction stores one hand-entered canonical record and rebuilds.
// Empty provenance fields default to Manual so the row groups apart from
// broker imports.
func (s *importServiceImpl) AddTransaction(tx models.TransactionRecord) error {
	if tx.Source == "" {
		tx.Source = "Manual"
	}
	if tx.Broker == "" {
		tx.Broker = "Manual"
	}
	if tx.AccountType == "" {
		tx.AccountType = "Manual"
	}
	if tx.Currency == "" {
		tx.Currency = "CAD"
	}

	processed := s.transactionProcessor.Process([]models.TransactionRecord{tx})
	if len(processed) == 0 {
		return fmt.Errorf("%w: transaction has no usable symbol", ErrProcessingFailed)
	}

	inserted, duplicates, err := insertTransactions(processed)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProcessingFailed, err)
	}
	if duplicates > 0 {
		return fmt.Errorf("%w: identical transaction already recorded", ErrProcessingFailed)
	}
	logger.L.Info("Manual transaction added",
		"symbol", processed[0].Symbol, "action", processed[0].Action, "inserted", inserted)

	if err := s.Rebuild(); err != nil {
		return fmt.Errorf("rebuilding derived tables after manual entry: %w", err)
	}
	s.portfolio.InvalidateCache()
	return nil
}

// Rebuild wipes and repopulates the derived tables from the transactions
// table. The engine runs once per (broker, account type) group so every
// derived row keeps its provenance and reconciliation overrides can find
// their target.
func (s *importServiceImpl) Rebuild() error {
	s.rebuildMu.Lock()
	defer s.rebuildMu.Unlock()

	startTime := time.Now()
	allTxs, err := fetchAllTransactions()
	if err != nil {
		return err
	}

	type groupKey struct {
		Broker      string
		AccountType string
	}
	groups := make(map[groupKey][]models.TransactionRecord)
	keys := make([]groupKey, 0)
	for _, tx := range allTxs {
		key := groupKey{tx.Broker, tx.AccountType}
		if _, ok := groups[key]; !ok {
			keys = append(keys, key)
		}
		groups[key] = append(groups[key], tx)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Broker != keys[j].Broker {
			return keys[i].Broker < keys[j].Broker
		}
		return keys[i].AccountType < keys[j].AccountType
	})

	var holdings []models.Holding
	var realized []models.RealizedPnL
	for _, key := range keys {
		result := s.ledger.Run(groups[key])
		for _, h := range result.Holdings {
			h.Broker = key.Broker
			h.AccountType = key.AccountType
			holdings = append(holdings, h)
		}
		for _, entry := range result.RealizedPnL {
			if norbertGambitExclude[entry.Symbol] {
				logger.L.Debug("Excluding Norbert's Gambit symbol from realized P&L",
					"symbol", entry.Symbol)
				continue
			}
			realized = append(realized, entry)
		}
	}

	if err := replaceDerivedTables(holdings, realized); err != nil {
		return err
	}
	touchSetting(SettingLastRebuildAt, time.Now().UTC().Format(time.RFC3339))

	logger.L.Info("Derived tables rebuilt",
		"transactions", len(allTxs), "groups", len(keys),
		"holdings", len(holdings), "realizedEntries", len(realized),
		"duration", time.Since(startTime))
	return nil
}

// insertTransactions writes prepared records inside one database
// transaction. Rows whose hash already exists are counted as duplicates
// and skipped.
func insertTransactions(records []models.TransactionRecord) (int, int, error) {
	if len(records) == 0 {
		return 0, 0, nil
	}

	dbTx, err := database.DB.Begin()
	if err != nil {
		return 0, 0, fmt.Errorf("error beginning database transaction: %w", err)
	}
	defer dbTx.Rollback()

	stmt, err := dbTx.Prepare(`INSERT INTO transactions (date, symbol, action, quantity, price, commission, amount, currency, description, broker, account_type, source, is_merger, hash_id) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, 0, fmt.Errorf("error preparing insert statement: %w", err)
	}
	defer stmt.Close()

	inserted, duplicates := 0, 0
	for _, tx := range records {
		_, err := stmt.Exec(
			utils.FormatDate(tx.Date), tx.Symbol, string(tx.Action),
			tx.Quantity, tx.Price, tx.Commission, tx.Amount,
			tx.Currency, tx.Description, tx.Broker, tx.AccountType,
			tx.Source, tx.IsMerger, tx.HashId,
		)
		if err != nil {
			if strings.Contains(strings.ToLower(err.Error()), "unique constraint failed") {
				logger.L.Debug("Skipping duplicate transaction", "hash_id", tx.HashId)
				duplicates++
				continue
			}
			return 0, 0, fmt.Errorf("error inserting transaction (symbol: %s): %w", tx.Symbol, err)
		}
		inserted++
	}

	if err := dbTx.Commit(); err != nil {
		return 0, 0, fmt.Errorf("error committing transactions: %w", err)
	}
	return inserted, duplicates, nil
}

// replaceDerivedTables swaps the holdings and realized_pnl contents in one
// transaction so readers never observe a half-rebuilt state.
func replaceDerivedTables(holdings []models.Holding, realized []models.RealizedPnL) error {
	dbTx, err := database.DB.Begin()
	if err != nil {
		return fmt.Errorf("error beginning rebuild transaction: %w", err)
	}
	defer dbTx.Rollback()

	if _, err := dbTx.Exec(`DELETE FROM holdings`); err != nil {
		return fmt.Errorf("error clearing holdings: %w", err)
	}
	if _, err := dbTx.Exec(`DELETE FROM realized_pnl`); err != nil {
		return fmt.Errorf("error clearing realized_pnl: %w", err)
	}

	holdingStmt, err := dbTx.Prepare(`INSERT INTO holdings (symbol, quantity, purchase_price, commission, trade_date, currency, broker, account_type) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("error preparing holdings insert: %w", err)
	}
	defer holdingStmt.Close()
	for _, h := range holdings {
		_, err := holdingStmt.Exec(
			h.Symbol, h.Quantity, h.PurchasePrice, h.Commission,
			utils.FormatDate(h.TradeDate), h.Currency, h.Broker, h.AccountType,
		)
		if err != nil {
			return fmt.Errorf("error inserting holding %s: %w", h.Symbol, err)
		}
	}

	pnlStmt, err := dbTx.Prepare(`INSERT INTO realized_pnl (symbol, currency, pnl_amount, cost_basis_sold, broker, account_type, source) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("error preparing realized_pnl insert: %w", err)
	}
	defer pnlStmt.Close()
	for _, entry := range realized {
		_, err := pnlStmt.Exec(
			entry.Symbol, entry.Currency, entry.PnLAmount, entry.CostBasisSold,
			entry.Broker, entry.AccountType, entry.Source,
		)
		if err != nil {
			return fmt.Errorf("error inserting realized pnl %s: %w", entry.Symbol, err)
		}
	}

	if err := dbTx.Commit(); err != nil {
		return fmt.Errorf("error committing rebuild: %w", err)
	}
	return nil
}

func recordImportRun(run *models.ImportRun) error {
	_, err := database.DB.Exec(
		`INSERT INTO import_runs (id, broker, account_type, filename, parsed, inserted, duplicates, imported_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Broker, run.AccountType, run.Filename,
		run.Parsed, run.Inserted, run.Duplicates,
		run.ImportedAt.Format(time.RFC3339),
	)
	return err
}

// UpsertManualPosition writes one manual row, replacing any previous row
// with the same (symbol, broker, account type) key.
func UpsertManualPosition(pos models.ManualPosition) error {
	var tradeDate interface{}
	if pos.TradeDate != nil {
		tradeDate = utils.FormatDate(*pos.TradeDate)
	}
	_, err := database.DB.Exec(`
		INSERT INTO manual_positions (symbol, broker, account_type, quantity, purchase_price, commission, trade_date, comment)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(symbol, broker, account_type) DO UPDATE SET
			quantity = excluded.quantity,
			purchase_price = excluded.purchase_price,
			commission = excluded.commission,
			trade_date = excluded.trade_date,
			comment = excluded.comment`,
		pos.Symbol, pos.Broker, pos.AccountType,
		pos.Quantity, pos.PurchasePrice, pos.Commission,
		tradeDate, pos.Comment,
	)
	return err
}

// fetchAllTransactions loads the whole transactions table in replay order.
func fetchAllTransactions() ([]models.TransactionRecord, error) {
	logger.L.Debug("Fetching transactions from DB")
	rows, err := database.DB.Query(`SELECT id, date, symbol, action, quantity, price, commission, amount, currency, description, broker, account_type, source, is_merger, hash_id FROM transactions ORDER BY date ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("error querying transactions: %w", err)
	}
	defer rows.Close()

	var transactions []models.TransactionRecord
	for rows.Next() {
		var tx models.TransactionRecord
		var dateStr, action string
		scanErr := rows.Scan(&tx.ID, &dateStr, &tx.Symbol, &action,
			&tx.Quantity, &tx.Price, &tx.Commission, &tx.Amount,
			&tx.Currency, &tx.Description, &tx.Broker, &tx.AccountType,
			&tx.Source, &tx.IsMerger, &tx.HashId)
		if scanErr != nil {
			return nil, fmt.Errorf("error scanning transaction row: %w", scanErr)
		}
		tx.Action = models.Action(action)
		tx.Date, scanErr = time.Parse(utils.DefaultDateFormat, dateStr)
		if scanErr != nil {
			return nil, fmt.Errorf("error parsing stored date %q: %w", dateStr, scanErr)
		}
		transactions = append(transactions, tx)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over transaction rows: %w", err)
	}
	logger.L.Debug("DB fetch complete", "transactionCount", len(transactions))
	return transactions, nil
}
