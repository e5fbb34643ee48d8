// backend/src/parsers/filemeta.go
package parsers

import (
	"errors"
	"path/filepath"
	"strings"

	"github.com/mingli/holding-analyzer/backend/src/models"
)

// ErrUnknownBroker means the filename names no broker we can parse.
var ErrUnknownBroker = errors.New("filename does not identify a known broker")

// DetectFileMeta derives broker, account type, and a currency fallback from
// an export's filename, e.g. "CIBC_TFSA_2024.csv" or "td_usd.csv". Account
// defaults follow how each broker's exports are usually pulled: CIBC from
// the non-registered account, RBC and TD from the TFSA.
func DetectFileMeta(filename string) (models.FileMeta, error) {
	name := strings.ToUpper(filepath.Base(filename))

	switch {
	case strings.Contains(name, "CIBC"):
		return MetaForBroker("CIBC", filename)
	case strings.Contains(name, "RBC"):
		return MetaForBroker("RBC", filename)
	case strings.Contains(name, "TD"):
		return MetaForBroker("TD", filename)
	default:
		return models.FileMeta{Broker: "Unknown", AccountType: "Unknown"}, ErrUnknownBroker
	}
}

// MetaForBroker builds file metadata for an explicitly named broker,
// still reading account type and currency hints from the filename. Used
// when an upload declares its broker instead of relying on the filename.
func MetaForBroker(broker, filename string) (models.FileMeta, error) {
	name := strings.ToUpper(filepath.Base(filename))

	var meta models.FileMeta
	switch strings.ToUpper(strings.TrimSpace(broker)) {
	case "CIBC":
		meta.Broker = "CIBC"
		if strings.Contains(name, "TFSA") {
			meta.AccountType = "TFSA"
		} else {
			meta.AccountType = "Open"
		}
	case "RBC":
		meta.Broker = "RBC"
		if strings.Contains(name, "RRSP") {
			meta.AccountType = "RRSP"
		} else {
			meta.AccountType = "TFSA"
		}
	case "TD":
		meta.Broker = "TD"
		if strings.Contains(name, "RRSP") {
			meta.AccountType = "RRSP"
		} else {
			meta.AccountType = "TFSA"
		}
	default:
		return models.FileMeta{Broker: "Unknown", AccountType: "Unknown"}, ErrUnknownBroker
	}

	if strings.Contains(name, "USD") {
		meta.Currency = "USD"
	} else {
		meta.Currency = "CAD"
	}
	return meta, nil
}
