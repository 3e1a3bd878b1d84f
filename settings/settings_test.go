package settings

import (
	"testing"

	"github.com/bsv-blockchain/utxo-ttl/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// check settings object is initialised
func TestInitialiseSettings(t *testing.T) {
	tSettings := NewSettings()

	require.NotNil(t, tSettings.ChainCfgParams)
	assert.NotEmpty(t, tSettings.Ledger.StoreURL)
	assert.NotEmpty(t, tSettings.Ledger.BitcoinDir)
	assert.NotEmpty(t, tSettings.Ledger.CheckpointFile)
	assert.Positive(t, tSettings.Ledger.ProgressInterval)
	assert.Positive(t, tSettings.Stats.ProgressInterval)
}

func TestParseStoreURL(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		scheme string
		host   string
		path   string
	}{
		{"bare path", "/data1/ttls.sqlite", "file", "", "/data1/ttls.sqlite"},
		{"relative path", "ttls.sqlite", "file", "", "ttls.sqlite"},
		{"sqlite", "sqlite:///ledger", "sqlite", "", "/ledger"},
		{"sqlitememory", "sqlitememory:///test", "sqlitememory", "", "/test"},
		{"postgres", "postgres://u:p@localhost:5432/ttl", "postgres", "localhost:5432", "/ttl"},
		{"memory", "memory://", "memory", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := ParseStoreURL(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.scheme, u.Scheme)
			assert.Equal(t, tt.host, u.Host)
			assert.Equal(t, tt.path, u.Path)
		})
	}

	_, err := ParseStoreURL("")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrConfiguration))
}
