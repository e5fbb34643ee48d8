package parsers

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mingli/holding-analyzer/backend/src/logger"
)

func TestMain(m *testing.M) {
	logger.InitLogger("error")
	os.Exit(m.Run())
}

func TestDetectFileMeta(t *testing.T) {
	t.Parallel()

	tests := []struct {
		filename    string
		wantBroker  string
		wantAccount string
		wantCurr    string
	}{
		{"CIBC_2024.csv", "CIBC", "Open", "CAD"},
		{"cibc_tfsa_export.csv", "CIBC", "TFSA", "CAD"},
		{"RBC Activity.csv", "RBC", "TFSA", "CAD"},
		{"rbc_rrsp.csv", "RBC", "RRSP", "CAD"},
		{"td_usd_activity.csv", "TD", "TFSA", "USD"},
		{"/some/dir/TD_RRSP_2023.csv", "TD", "RRSP", "CAD"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.filename, func(t *testing.T) {
			t.Parallel()
			meta, err := DetectFileMeta(tt.filename)
			assert.NoError(t, err)
			assert.Equal(t, tt.wantBroker, meta.Broker)
			assert.Equal(t, tt.wantAccount, meta.AccountType)
			assert.Equal(t, tt.wantCurr, meta.Currency)
		})
	}
}

func TestDetectFileMetaUnknownBroker(t *testing.T) {
	t.Parallel()

	meta, err := DetectFileMeta("statement.csv")
	assert.ErrorIs(t, err, ErrUnknownBroker)
	assert.Equal(t, "Unknown", meta.Broker)
}

func TestMetaForBrokerOverridesFilename(t *testing.T) {
	t.Parallel()

	// The declared broker wins even when the filename says something else.
	meta, err := MetaForBroker("rbc", "CIBC_USD.csv")
	assert.NoError(t, err)
	assert.Equal(t, "RBC", meta.Broker)
	assert.Equal(t, "USD", meta.Currency)

	_, err = MetaForBroker("questrade", "anything.csv")
	assert.ErrorIs(t, err, ErrUnknownBroker)
}

func TestGetParserCoversKnownBrokers(t *testing.T) {
	t.Parallel()

	for _, broker := range []string{"CIBC", "rbc", "Td"} {
		parser, err := GetParser(broker)
		assert.NoError(t, err, broker)
		assert.NotNil(t, parser, broker)
	}

	_, err := GetParser("Questrade")
	assert.Error(t, err)
}
