// backend/src/services/settings.go
package services

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/mingli/holding-analyzer/backend/src/database"
	"github.com/mingli/holding-analyzer/backend/src/logger"
)

// Setting keys maintained by the services themselves.
const (
	SettingLastScanAt    = "last_scan_at"
	SettingLastRebuildAt = "last_rebuild_at"
)

// GetSetting returns the stored value for key, or "" when unset.
func GetSetting(key string) (string, error) {
	var value string
	err := database.DB.QueryRow(`SELECT value FROM user_settings WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("error reading setting %q: %w", key, err)
	}
	return value, nil
}

// SetSetting stores key=value, replacing any previous value.
func SetSetting(key, value string) error {
	_, err := database.DB.Exec(`
		INSERT INTO user_settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value)
	if err != nil {
		return fmt.Errorf("error writing setting %q: %w", key, err)
	}
	return nil
}

// touchSetting records a timestamp-style setting, logging instead of
// failing since bookkeeping must never abort the operation it annotates.
func touchSetting(key, value string) {
	if err := SetSetting(key, value); err != nil {
		logger.L.Warn("Failed to update setting", "key", key, "error", err)
	}
}
