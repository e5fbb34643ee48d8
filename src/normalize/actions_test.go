package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mingli/holding-analyzer/backend/src/models"
)

func TestClassifyBrokerVocabularies(t *testing.T) {
	t.Parallel()

	tests := []struct {
		broker    string
		rawAction string
		want      models.Action
	}{
		{"CIBC", "Buy", models.ActionBuy},
		{"CIBC", "Sell", models.ActionSell},
		{"CIBC", "Dividend", models.ActionDividend},
		{"CIBC", "Reinvest", models.ActionBuy},
		{"CIBC", "Transf In", models.ActionBuy},
		{"CIBC", "Transf Out", models.ActionSell},
		{"RBC", "Buy", models.ActionBuy},
		{"RBC", "Dividends", models.ActionDividend},
		{"RBC", "Distribution", models.ActionDividend},
		{"TD", "BUY", models.ActionBuy},
		{"TD", "DRIP", models.ActionBuy},
		{"TD", "TXPDDV", models.ActionDividend},
		{"CIBC", "Interest", models.ActionOther},
		{"RBC", "Deposits & Contributions", models.ActionOther},
		{"NOBODY", "Buy", models.ActionOther},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.broker+"_"+tt.rawAction, func(t *testing.T) {
			t.Parallel()
			action, isMerger := Classify(tt.broker, tt.rawAction, "")
			assert.Equal(t, tt.want, action)
			assert.False(t, isMerger)
		})
	}
}

func TestClassifyRBCReinvestOverride(t *testing.T) {
	t.Parallel()

	action, isMerger := Classify("RBC", "Dividends", "REINV @ 28.50 XEI")
	assert.Equal(t, models.ActionBuy, action, "reinvested distributions buy more units")
	assert.False(t, isMerger)

	action, _ = Classify("RBC", "Dividends", "ISHR CORE MSCI REI - DIST")
	assert.Equal(t, models.ActionBuy, action)

	action, _ = Classify("RBC", "Dividends", "CASH DIV ON 100 SHS")
	assert.Equal(t, models.ActionDividend, action, "plain cash payouts stay dividends")
}

func TestClassifyMergerDetection(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		rawAction   string
		description string
		wantAction  models.Action
		wantMerger  bool
	}{
		{"surrender", "Merger", "VEREN INC SURRENDERED PURSUANT TO MERGER", models.ActionSell, true},
		{"receipt", "Merger", "WHITECAP RESOURCES RECEIVED PURSUANT TO MERGER", models.ActionBuy, true},
		{"reorg_surrender", "Sell", "SHARES SURRENDERED IN REORG", models.ActionSell, true},
		{"adjustment_receipt", "Buy", "ADJUSTMENT - UNITS RECEIVED", models.ActionBuy, true},
		{"keyword_without_side", "Merger", "MERGER PENDING SHAREHOLDER APPROVAL", models.ActionOther, false},
		{"side_without_keyword", "Transf Out", "CERTIFICATE SURRENDERED FOR REISSUE", models.ActionSell, false},
		{"lower_case_matches", "Merger", "surrendered pursuant to merger", models.ActionSell, true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			action, isMerger := Classify("CIBC", tt.rawAction, tt.description)
			assert.Equal(t, tt.wantAction, action)
			assert.Equal(t, tt.wantMerger, isMerger)
		})
	}
}
