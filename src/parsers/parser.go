// backend/src/parsers/parser.go
package parsers

import (
	"io"

	"github.com/mingli/holding-analyzer/backend/src/models"
)

// Parser turns one broker export into canonical transaction records. The
// file meta supplies what the export itself omits (broker, account type,
// currency fallback). Parsing is best-effort: malformed rows are dropped,
// never fatal.
type Parser interface {
	Parse(file io.Reader, meta models.FileMeta) ([]models.TransactionRecord, error)
}
