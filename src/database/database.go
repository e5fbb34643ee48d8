package database

import (
	"database/sql"
	stdlog "log"

	"github.com/mingli/holding-analyzer/backend/src/logger"
	_ "modernc.org/sqlite"
)

var DB *sql.DB

func InitDB(databasePath string) {
	db, err := sql.Open("sqlite", databasePath)
	if err != nil {
		stdlog.Fatalf("failed to open database at %s: %v", databasePath, err)
	}

	DB = db

	if logger.L != nil {
		logger.L.Info("Checking database migrations", "databasePath", databasePath)
	} else {
		stdlog.Println("Checking database migrations for:", databasePath)
	}
	migrateTransactionsTable()

	createTableStatement := `
	CREATE TABLE IF NOT EXISTS transactions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		date TEXT NOT NULL,
		symbol TEXT NOT NULL,
		action TEXT NOT NULL,
		quantity TEXT NOT NULL DEFAULT '0',
		price TEXT NOT NULL DEFAULT '0',
		commission TEXT NOT NULL DEFAULT '0',
		amount TEXT NOT NULL DEFAULT '0',
		currency TEXT,
		description TEXT,
		broker TEXT,
		account_type TEXT,
		source TEXT,
		is_merger INTEGER NOT NULL DEFAULT 0,
		hash_id TEXT NOT NULL UNIQUE
	);

	CREATE TABLE IF NOT EXISTS realized_pnl (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		symbol TEXT NOT NULL,
		currency TEXT NOT NULL,
		pnl_amount TEXT NOT NULL DEFAULT '0',
		cost_basis_sold TEXT NOT NULL DEFAULT '0',
		broker TEXT,
		account_type TEXT,
		source TEXT
	);

	CREATE TABLE IF NOT EXISTS holdings (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		symbol TEXT NOT NULL,
		quantity TEXT NOT NULL DEFAULT '0',
		purchase_price TEXT NOT NULL DEFAULT '0',
		commission TEXT NOT NULL DEFAULT '0',
		trade_date TEXT,
		currency TEXT,
		broker TEXT,
		account_type TEXT
	);

	CREATE TABLE IF NOT EXISTS manual_positions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		symbol TEXT NOT NULL,
		broker TEXT NOT NULL DEFAULT 'Manual',
		account_type TEXT NOT NULL DEFAULT 'Manual',
		quantity TEXT,
		purchase_price TEXT,
		commission TEXT,
		trade_date TEXT,
		comment TEXT,
		UNIQUE(symbol, broker, account_type)
	);

	CREATE TABLE IF NOT EXISTS annotations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		symbol TEXT NOT NULL UNIQUE,
		thesis TEXT,
		conviction TEXT,
		timeframe TEXT,
		kill_switch TEXT,
		comment TEXT
	);

	CREATE TABLE IF NOT EXISTS import_runs (
		id TEXT PRIMARY KEY,
		broker TEXT,
		account_type TEXT,
		filename TEXT,
		parsed INTEGER NOT NULL DEFAULT 0,
		inserted INTEGER NOT NULL DEFAULT 0,
		duplicates INTEGER NOT NULL DEFAULT 0,
		imported_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS user_settings (
		key TEXT PRIMARY KEY,
		value TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_transactions_symbol ON transactions(symbol);
	CREATE INDEX IF NOT EXISTS idx_transactions_broker_account ON transactions(broker, account_type);
	`

	_, err = DB.Exec(createTableStatement)
	if err != nil {
		if logger.L != nil {
			logger.L.Error("failed to create tables", "error", err)
		}
		stdlog.Fatalf("failed to create tables: %v", err)
	}
	if logger.L != nil {
		logger.L.Info("Database tables ensured/created.")
	} else {
		stdlog.Println("Database tables ensured/created.")
	}
}

// migrateTransactionsTable backfills columns added after the first release:
// is_merger and source did not exist in early databases.
func migrateTransactionsTable() {
	var tableName string
	err := DB.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name='transactions'").Scan(&tableName)
	if err != nil {
		if err == sql.ErrNoRows {
			return
		}
		if logger.L != nil {
			logger.L.Error("Error checking for transactions table", "error", err)
		} else {
			stdlog.Printf("Error checking for transactions table: %v", err)
		}
		return
	}

	rows, err := DB.Query("PRAGMA table_info(transactions)")
	if err != nil {
		if logger.L != nil {
			logger.L.Error("Error querying table schema for transactions", "error", err)
		} else {
			stdlog.Printf("Error querying table schema: %v", err)
		}
		return
	}
	defer rows.Close()

	columnExists := make(map[string]bool)
	for rows.Next() {
		var cid, pk int
		var name, dataType string
		var notnullVal int
		var dfltValue interface{}

		if err := rows.Scan(&cid, &name, &dataType, &notnullVal, &dfltValue, &pk); err != nil {
			if logger.L != nil {
				logger.L.Error("Error scanning column info", "error", err)
			} else {
				stdlog.Printf("Error scanning column info: %v", err)
			}
			return
		}
		columnExists[name] = true
	}
	if err = rows.Err(); err != nil {
		if logger.L != nil {
			logger.L.Error("Error iterating over column info", "error", err)
		} else {
			stdlog.Printf("Error iterating over column info: %v", err)
		}
		return
	}

	if _, ok := columnExists["is_merger"]; !ok {
		if _, err := DB.Exec("ALTER TABLE transactions ADD COLUMN is_merger INTEGER NOT NULL DEFAULT 0"); err != nil {
			logger.L.Error("Error adding is_merger column", "error", err)
		} else {
			logger.L.Info("Added is_merger column to transactions table")
		}
	}
	if _, ok := columnExists["source"]; !ok {
		if _, err := DB.Exec("ALTER TABLE transactions ADD COLUMN source TEXT"); err != nil {
			logger.L.Error("Error adding source column", "error", err)
		} else {
			logger.L.Info("Added source column to transactions table")
		}
	}
}
