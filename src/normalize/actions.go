// backend/src/normalize/actions.go
package normalize

import (
	"strings"

	"github.com/mingli/holding-analyzer/backend/src/models"
)

// Per-broker transaction-type vocabularies. Keys are the literal strings
// the broker writes; anything outside the map classifies as OTHER.
var actionVocabularies = map[string]map[string]models.Action{
	"CIBC": {
		"Buy":          models.ActionBuy,
		"Sell":         models.ActionSell,
		"Sell (short)": models.ActionSell,
		"Dividend":     models.ActionDividend,
		"Reinvest":     models.ActionBuy,
		"Transf In":    models.ActionBuy,
		"Transf Out":   models.ActionSell,
	},
	"RBC": {
		"Buy":          models.ActionBuy,
		"Sell":         models.ActionSell,
		"Dividends":    models.ActionDividend,
		"Distribution": models.ActionDividend,
	},
	"TD": {
		"BUY":    models.ActionBuy,
		"SELL":   models.ActionSell,
		"DIV":    models.ActionDividend,
		"DRIP":   models.ActionBuy,
		"TXPDDV": models.ActionDividend,
	},
}

var mergerKeywords = []string{"MERGER", "ADJUSTMENT", "REORG"}

// Classify maps a broker-specific transaction-type string plus the row's
// free-text description to the canonical action. The second return reports
// whether the row is a merger/reorg share exchange, which routes cost basis
// through the carryover instead of realized P&L.
func Classify(broker, rawAction, description string) (models.Action, bool) {
	if action, ok := classifyMergerEvent(rawAction, description); ok {
		return action, true
	}

	rawAction = strings.TrimSpace(rawAction)
	upperDesc := strings.ToUpper(description)

	// RBC reports reinvested distributions under the Dividends activity;
	// the description is what tells them apart from cash payouts.
	if strings.ToUpper(broker) == "RBC" &&
		(strings.Contains(upperDesc, "REINV") || strings.Contains(upperDesc, "REI -")) {
		return models.ActionBuy, false
	}

	vocab, ok := actionVocabularies[strings.ToUpper(broker)]
	if !ok {
		return models.ActionOther, false
	}
	if action, ok := vocab[rawAction]; ok {
		return action, false
	}
	return models.ActionOther, false
}

// classifyMergerEvent reports whether the row is a merger event and which
// side it is on. A row qualifies only when a merger keyword appears in the
// type or description AND the description names a side: SURRENDERED rows
// give up shares (SELL), RECEIVED rows take delivery (BUY).
func classifyMergerEvent(rawAction, description string) (models.Action, bool) {
	combined := strings.ToUpper(rawAction + " " + description)

	keyword := false
	for _, k := range mergerKeywords {
		if strings.Contains(combined, k) {
			keyword = true
			break
		}
	}
	if !keyword {
		return models.ActionOther, false
	}

	switch {
	case strings.Contains(combined, "SURRENDERED"):
		return models.ActionSell, true
	case strings.Contains(combined, "RECEIVED"):
		return models.ActionBuy, true
	default:
		return models.ActionOther, false
	}
}
