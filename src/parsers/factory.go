// backend/src/parsers/factory.go
package parsers

import (
	"fmt"
	"strings"

	"github.com/mingli/holding-analyzer/backend/src/parsers/cibc"
	"github.com/mingli/holding-analyzer/backend/src/parsers/rbc"
	"github.com/mingli/holding-analyzer/backend/src/parsers/td"
)

func GetParser(broker string) (Parser, error) {
	switch strings.ToUpper(broker) {
	case "CIBC":
		return cibc.NewParser(), nil
	case "RBC":
		return rbc.NewParser(), nil
	case "TD":
		return td.NewParser(), nil
	default:
		return nil, fmt.Errorf("no parser available for broker: %s", broker)
	}
}
