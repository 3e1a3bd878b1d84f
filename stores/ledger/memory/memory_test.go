package memory

import (
	"context"
	"testing"

	"github.com/bsv-blockchain/utxo-ttl/errors"
	"github.com/bsv-blockchain/utxo-ttl/model"
	"github.com/bsv-blockchain/utxo-ttl/stores/ledger"
	"github.com/bsv-blockchain/utxo-ttl/stores/ledger/tests"
	"github.com/bsv-blockchain/utxo-ttl/ulogger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	logger := ulogger.NewVerboseTestLogger(t)

	t.Run("insert ignoring", func(t *testing.T) {
		tests.InsertIgnoring(t, New(logger))
	})

	t.Run("update spend height", func(t *testing.T) {
		tests.UpdateSpendHeight(t, New(logger))
	})

	t.Run("first spend wins", func(t *testing.T) {
		tests.FirstSpendWins(t, New(logger, ledger.WithFirstSpendWins(true)))
	})

	t.Run("summary", func(t *testing.T) {
		tests.Summary(t, New(logger))
	})

	t.Run("health", func(t *testing.T) {
		tests.Health(t, New(logger))
	})
}

func TestMemoryStoreCancelledContext(t *testing.T) {
	store := New(&ulogger.TestLogger{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := store.InsertIgnoring(ctx, []*model.Record{tests.Record(tests.TxA, 0, model.ScriptP2PKH, 1, 1)})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrStorageError))

	count, err := store.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)
}
