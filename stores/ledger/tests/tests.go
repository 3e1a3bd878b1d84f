// Package tests holds the conformance suite every ledger store implementation runs.
package tests

import (
	"context"
	"testing"

	"github.com/bsv-blockchain/utxo-ttl/errors"
	"github.com/bsv-blockchain/utxo-ttl/model"
	"github.com/bsv-blockchain/utxo-ttl/stores/ledger"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	TxA, _ = chainhash.NewHashFromStr("5e3bc5947f48cec766090aa17f309fd16259de029dcef5d306b514848c9687c7")
	TxB, _ = chainhash.NewHashFromStr("663bc5947f48cec766090aa17f309fd16259de029dcef5d306b514848c9687c8")
	TxC, _ = chainhash.NewHashFromStr("773bc5947f48cec766090aa17f309fd16259de029dcef5d306b514848c9687c9")
)

// Record builds an unspent record.
func Record(txid *chainhash.Hash, vout uint32, category model.ScriptCategory, amount int64, created uint32) *model.Record {
	return &model.Record{
		Outpoint:      model.NewOutpoint(*txid, vout),
		Category:      category,
		Amount:        amount,
		CreatedHeight: created,
	}
}

func requireRecord(t *testing.T, store ledger.Store, op model.Outpoint, expected *model.Record) {
	t.Helper()

	record, err := store.Get(context.Background(), op)
	require.NoError(t, err)
	assert.Equal(t, expected.Outpoint, record.Outpoint)
	assert.Equal(t, expected.Category, record.Category)
	assert.Equal(t, expected.Amount, record.Amount)
	assert.Equal(t, expected.CreatedHeight, record.CreatedHeight)

	if expected.SpendHeight == nil {
		assert.Nil(t, record.SpendHeight)
	} else {
		require.NotNil(t, record.SpendHeight)
		assert.Equal(t, *expected.SpendHeight, *record.SpendHeight)
	}
}

func heightPtr(h uint32) *uint32 {
	return &h
}

// InsertIgnoring checks inserts, lookups and that re-inserting an existing outpoint changes nothing.
func InsertIgnoring(t *testing.T, store ledger.Store) {
	ctx := context.Background()

	a0 := Record(TxA, 0, model.ScriptP2PKH, 5_000_000_000, 1)
	a1 := Record(TxA, 1, model.ScriptP2WPKH, 1_000, 1)

	require.NoError(t, store.InsertIgnoring(ctx, []*model.Record{a0, a1}))
	requireRecord(t, store, a0.Outpoint, a0)
	requireRecord(t, store, a1.Outpoint, a1)

	// same key, different payload: ignored
	dup := Record(TxA, 0, model.ScriptCoinbaseOutput, 1, 99)
	require.NoError(t, store.InsertIgnoring(ctx, []*model.Record{dup}))
	requireRecord(t, store, a0.Outpoint, a0)

	// duplicates inside one batch keep the first
	b0 := Record(TxB, 0, model.ScriptP2SH, 7, 2)
	b0dup := Record(TxB, 0, model.ScriptP2TR, 8, 2)
	require.NoError(t, store.InsertIgnoring(ctx, []*model.Record{b0, b0dup}))
	requireRecord(t, store, b0.Outpoint, b0)

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), count)

	// empty batches are a no-op
	require.NoError(t, store.InsertIgnoring(ctx, nil))

	_, err = store.Get(ctx, model.NewOutpoint(*TxC, 0))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

// UpdateSpendHeight checks spends of present and absent outpoints, with the default overwrite policy.
func UpdateSpendHeight(t *testing.T, store ledger.Store) {
	ctx := context.Background()

	a0 := Record(TxA, 0, model.ScriptP2PKH, 5_000_000_000, 1)
	a1 := Record(TxA, 1, model.ScriptP2PKH, 10, 1)
	require.NoError(t, store.InsertIgnoring(ctx, []*model.Record{a0, a1}))

	missing := model.NewOutpoint(*TxC, 5)
	require.NoError(t, store.UpdateSpendHeight(ctx, []model.Outpoint{a0.Outpoint, missing}, 2))

	a0.SpendHeight = heightPtr(2)
	requireRecord(t, store, a0.Outpoint, a0)
	requireRecord(t, store, a1.Outpoint, a1)

	// absent outpoints never create a record
	_, err := store.Get(ctx, missing)
	assert.True(t, errors.Is(err, errors.ErrNotFound))

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), count)

	// a later spend overwrites
	require.NoError(t, store.UpdateSpendHeight(ctx, []model.Outpoint{a0.Outpoint}, 9))

	a0.SpendHeight = heightPtr(9)
	requireRecord(t, store, a0.Outpoint, a0)

	require.NoError(t, store.UpdateSpendHeight(ctx, nil, 10))
}

// FirstSpendWins checks a store created with ledger.WithFirstSpendWins(true).
func FirstSpendWins(t *testing.T, store ledger.Store) {
	ctx := context.Background()

	a0 := Record(TxA, 0, model.ScriptP2PKH, 100, 1)
	require.NoError(t, store.InsertIgnoring(ctx, []*model.Record{a0}))

	require.NoError(t, store.UpdateSpendHeight(ctx, []model.Outpoint{a0.Outpoint}, 3))
	require.NoError(t, store.UpdateSpendHeight(ctx, []model.Outpoint{a0.Outpoint}, 7))

	a0.SpendHeight = heightPtr(3)
	requireRecord(t, store, a0.Outpoint, a0)
}

// Summary checks the per category aggregation.
func Summary(t *testing.T, store ledger.Store) {
	ctx := context.Background()

	require.NoError(t, store.InsertIgnoring(ctx, []*model.Record{
		Record(TxA, 0, model.ScriptP2PKH, 100, 1),
		Record(TxA, 1, model.ScriptP2PKH, 50, 1),
		Record(TxB, 0, model.ScriptCoinbaseOutput, 5_000, 2),
	}))
	require.NoError(t, store.UpdateSpendHeight(ctx, []model.Outpoint{model.NewOutpoint(*TxA, 0)}, 5))

	summaries, err := store.Summary(ctx)
	require.NoError(t, err)
	require.Len(t, summaries, 2)

	assert.Equal(t, model.ScriptP2PKH, summaries[0].Category)
	assert.Equal(t, uint64(2), summaries[0].Records)
	assert.Equal(t, uint64(1), summaries[0].Spent)
	assert.Equal(t, int64(150), summaries[0].Amount)
	assert.InDelta(t, 4.0, summaries[0].AvgLifetime, 0.0001)

	assert.Equal(t, model.ScriptCoinbaseOutput, summaries[1].Category)
	assert.Equal(t, uint64(1), summaries[1].Records)
	assert.Equal(t, uint64(0), summaries[1].Spent)
	assert.InDelta(t, 0.0, summaries[1].AvgLifetime, 0.0001)
}

// Health checks the store reports itself healthy.
func Health(t *testing.T, store ledger.Store) {
	status, details, err := store.Health(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, 200, status)
	assert.NotEmpty(t, details)
}
