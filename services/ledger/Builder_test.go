package ledger

import (
	"context"
	"net/url"
	"path/filepath"
	"testing"

	"github.com/bsv-blockchain/utxo-ttl/errors"
	"github.com/bsv-blockchain/utxo-ttl/model"
	"github.com/bsv-blockchain/utxo-ttl/settings"
	"github.com/bsv-blockchain/utxo-ttl/stores/chain/memory"
	"github.com/bsv-blockchain/utxo-ttl/stores/ledger"
	"github.com/bsv-blockchain/utxo-ttl/stores/ledger/sql"
	"github.com/bsv-blockchain/utxo-ttl/ulogger"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// twoBlockChain is a chain whose only spendable outputs are A:0, created at height 1 and spent at
// height 2, and B:0 created at height 2. Every coinbase pays to OP_RETURN.
func twoBlockChain() (blocks []*wire.MsgBlock, txA *wire.MsgTx, txB *wire.MsgTx) {
	genesis := block(nil, coinbaseTx(out(0, opReturn("genesis"))))

	txA = tx([]wire.OutPoint{unrelated}, out(5_000_000_000, p2pkh(0xaa)))
	block1 := block(genesis, coinbaseTx(out(0, opReturn("1"))), txA)

	txB = tx([]wire.OutPoint{outpoint(txA, 0)}, out(4_999_990_000, p2wpkh(0xbb)))
	block2 := block(block1, coinbaseTx(out(0, opReturn("2"))), txB)

	return []*wire.MsgBlock{genesis, block1, block2}, txA, txB
}

func sqliteStore(t *testing.T) ledger.Store {
	t.Helper()

	storeURL, err := url.Parse("sqlitememory:///builder")
	require.NoError(t, err)

	store, err := sql.New(context.Background(), &ulogger.TestLogger{}, &settings.Settings{DataFolder: t.TempDir()}, storeURL)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = store.Close()
	})

	return store
}

func TestBuilderEndToEnd(t *testing.T) {
	stores := map[string]func(t *testing.T) ledger.Store{
		"memory": func(*testing.T) ledger.Store { return newMemoryStore() },
		"sqlite": sqliteStore,
	}

	for storeName, newStore := range stores {
		for extractorName, extractor := range extractors() {
			t.Run(storeName+"/"+extractorName, func(t *testing.T) {
				blocks, txA, txB := twoBlockChain()
				store := newStore(t)

				builder := runChain(t, store, extractor, blocks...)
				assert.Equal(t, StateDone, builder.State())
				assert.Equal(t, uint32(3), builder.NextHeight())

				count, err := store.Count(context.Background())
				require.NoError(t, err)
				assert.Equal(t, uint64(2), count)

				a := getRecord(t, store, outpoint(txA, 0))
				assert.Equal(t, model.ScriptP2PKH, a.Category)
				assert.Equal(t, int64(5_000_000_000), a.Amount)
				assert.Equal(t, uint32(1), a.CreatedHeight)
				require.NotNil(t, a.SpendHeight)
				assert.Equal(t, uint32(2), *a.SpendHeight)

				b := getRecord(t, store, outpoint(txB, 0))
				assert.Equal(t, model.ScriptP2WPKH, b.Category)
				assert.Equal(t, int64(4_999_990_000), b.Amount)
				assert.Equal(t, uint32(2), b.CreatedHeight)
				assert.Nil(t, b.SpendHeight)
			})
		}
	}
}

func TestBuilderCreationCount(t *testing.T) {
	for name, extractor := range extractors() {
		t.Run(name, func(t *testing.T) {
			store := newMemoryStore()

			mixed := tx([]wire.OutPoint{unrelated},
				out(1, p2pkh(0x01)),        // P2PKH
				out(2, opReturn("data")),   // OP_RETURN
				out(3, nil),                // empty script is spendable, category Other
				out(4, []byte{0xba, 0x51}), // undefined opcode
				out(5, p2tr(0x05)),         // P2TR
				out(6, []byte{0x51}),       // OP_TRUE, category Other
				out(7, []byte{0x89, 0x51}), // OP_RESERVED1
			)
			other := tx([]wire.OutPoint{unrelated}, out(8, p2wpkh(0x08)), out(9, opReturn("x")))

			coinbase := coinbaseTx(out(50, p2pkh(0xcb)), out(0, opReturn("witness commitment")))

			genesis := block(nil, coinbase, mixed, other)

			runChain(t, store, extractor, genesis)

			count, err := store.Count(context.Background())
			require.NoError(t, err)

			// 9 outputs minus 4 unspendable, plus one spendable coinbase output
			assert.Equal(t, uint64(6), count)

			assert.Equal(t, model.ScriptOther, getRecord(t, store, outpoint(mixed, 2)).Category)
			assert.Equal(t, model.ScriptP2TR, getRecord(t, store, outpoint(mixed, 4)).Category)
			assert.Equal(t, model.ScriptOther, getRecord(t, store, outpoint(mixed, 5)).Category)

			for _, op := range []wire.OutPoint{outpoint(mixed, 1), outpoint(mixed, 3), outpoint(mixed, 6), outpoint(other, 1), outpoint(coinbase, 1)} {
				_, err := store.Get(context.Background(), model.OutpointFromWire(op))
				assert.True(t, errors.Is(err, errors.ErrNotFound), "unspendable output %s must not be stored", op)
			}
		})
	}
}

func TestBuilderCoinbaseCategory(t *testing.T) {
	store := newMemoryStore()

	coinbase0 := coinbaseTx(out(5_000_000_000, p2pkh(0x01)), out(1, p2wpkh(0x02)))
	genesis := block(nil, coinbase0)

	// height 1 spends the first coinbase output, and its own coinbase pays to taproot
	coinbase1 := coinbaseTx(out(5_000_000_000, p2tr(0x03)))
	spend := tx([]wire.OutPoint{outpoint(coinbase0, 0)}, out(4_000_000_000, p2pkh(0x04)))
	block1 := block(genesis, coinbase1, spend)

	runChain(t, store, SequentialExtractor{}, genesis, block1)

	for _, op := range []wire.OutPoint{outpoint(coinbase0, 0), outpoint(coinbase0, 1), outpoint(coinbase1, 0)} {
		assert.Equal(t, model.ScriptCoinbaseOutput, getRecord(t, store, op).Category)
	}

	spent := getRecord(t, store, outpoint(coinbase0, 0))
	require.NotNil(t, spent.SpendHeight)
	assert.Equal(t, uint32(1), *spent.SpendHeight)
	assert.Equal(t, model.ScriptP2PKH, getRecord(t, store, outpoint(spend, 0)).Category)
}

func TestBuilderSameBlockSpend(t *testing.T) {
	for name, extractor := range extractors() {
		t.Run(name, func(t *testing.T) {
			for _, spendFirst := range []bool{false, true} {
				store := newMemoryStore()

				parent := tx([]wire.OutPoint{unrelated}, out(1_000, p2pkh(0x10)), out(2_000, p2pkh(0x11)))
				child := tx([]wire.OutPoint{outpoint(parent, 1)}, out(1_900, p2wpkh(0x12)))

				txs := []*wire.MsgTx{coinbaseTx(out(0, opReturn("cb"))), parent, child}
				if spendFirst {
					txs = []*wire.MsgTx{txs[0], child, parent}
				}

				genesis := block(nil, coinbaseTx(out(0, opReturn("g"))))
				block1 := block(genesis, txs...)

				runChain(t, store, extractor, genesis, block1)

				spent := getRecord(t, store, outpoint(parent, 1))
				require.NotNil(t, spent.SpendHeight)
				assert.Equal(t, uint32(1), *spent.SpendHeight)
				assert.Equal(t, uint32(1), spent.CreatedHeight)

				assert.Nil(t, getRecord(t, store, outpoint(parent, 0)).SpendHeight)
				assert.Nil(t, getRecord(t, store, outpoint(child, 0)).SpendHeight)
			}
		})
	}
}

func TestBuilderIdempotentRerun(t *testing.T) {
	blocks, txA, txB := twoBlockChain()

	first := newMemoryStore()
	runChain(t, first, SequentialExtractor{}, blocks...)

	second := newMemoryStore()
	runChain(t, second, &ParallelExtractor{Workers: 2, BatchSize: 1}, blocks...)

	// replay over an already built store
	runChain(t, second, SequentialExtractor{}, blocks...)

	for _, op := range []wire.OutPoint{outpoint(txA, 0), outpoint(txB, 0)} {
		assert.Equal(t, getRecord(t, first, op), getRecord(t, second, op))
	}

	firstSummary, err := first.Summary(context.Background())
	require.NoError(t, err)

	secondSummary, err := second.Summary(context.Background())
	require.NoError(t, err)

	assert.Equal(t, firstSummary, secondSummary)
}

func TestBuilderHeightOrder(t *testing.T) {
	ctx := context.Background()
	blocks, _, _ := twoBlockChain()

	t.Run("not started", func(t *testing.T) {
		builder := NewBuilder(&ulogger.TestLogger{}, testSettings(0), newMemoryStore())
		assert.Equal(t, StateNotStarted, builder.State())

		err := builder.ProcessBlock(ctx, model.NewBlock(0, blocks[0]))
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrServiceNotStarted))
	})

	t.Run("skipped height", func(t *testing.T) {
		builder := NewBuilder(&ulogger.TestLogger{}, testSettings(0), newMemoryStore())
		require.NoError(t, builder.Start(ctx, 0))

		require.NoError(t, builder.ProcessBlock(ctx, model.NewBlock(0, blocks[0])))

		err := builder.ProcessBlock(ctx, model.NewBlock(2, blocks[2]))
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrBlockInvalid))
		assert.Equal(t, StateFailed, builder.State())

		// a failed builder accepts nothing more
		err = builder.ProcessBlock(ctx, model.NewBlock(1, blocks[1]))
		assert.True(t, errors.Is(err, errors.ErrServiceNotStarted))
	})

	t.Run("repeated height", func(t *testing.T) {
		builder := NewBuilder(&ulogger.TestLogger{}, testSettings(0), newMemoryStore())
		require.NoError(t, builder.Start(ctx, 1))

		require.NoError(t, builder.ProcessBlock(ctx, model.NewBlock(1, blocks[1])))

		err := builder.ProcessBlock(ctx, model.NewBlock(1, blocks[1]))
		assert.True(t, errors.Is(err, errors.ErrBlockInvalid))
	})

	t.Run("empty block", func(t *testing.T) {
		builder := NewBuilder(&ulogger.TestLogger{}, testSettings(0), newMemoryStore())
		require.NoError(t, builder.Start(ctx, 0))

		err := builder.ProcessBlock(ctx, model.NewBlock(0, block(nil)))
		assert.True(t, errors.Is(err, errors.ErrBlockInvalid))
	})

	t.Run("start twice", func(t *testing.T) {
		builder := NewBuilder(&ulogger.TestLogger{}, testSettings(0), newMemoryStore())
		require.NoError(t, builder.Start(ctx, 0))

		err := builder.Start(ctx, 0)
		assert.True(t, errors.Is(err, errors.ErrServiceError))
	})
}

func TestBuilderRunRange(t *testing.T) {
	ctx := context.Background()
	blocks, txA, txB := twoBlockChain()
	source := memory.New(blocks...)

	t.Run("stop height", func(t *testing.T) {
		store := newMemoryStore()
		builder := NewBuilder(&ulogger.TestLogger{}, testSettings(0), store, WithStopHeight(1))

		last, committed, err := builder.Run(ctx, source, 0)
		require.NoError(t, err)
		assert.True(t, committed)
		assert.Equal(t, uint32(1), last)

		assert.Nil(t, getRecord(t, store, outpoint(txA, 0)).SpendHeight)

		_, err = store.Get(ctx, model.OutpointFromWire(outpoint(txB, 0)))
		assert.True(t, errors.Is(err, errors.ErrNotFound))
	})

	t.Run("resume", func(t *testing.T) {
		store := newMemoryStore()

		_, _, err := NewBuilder(&ulogger.TestLogger{}, testSettings(0), store, WithStopHeight(1)).Run(ctx, source, 0)
		require.NoError(t, err)

		last, committed, err := NewBuilder(&ulogger.TestLogger{}, testSettings(0), store).Run(ctx, source, 2)
		require.NoError(t, err)
		assert.True(t, committed)
		assert.Equal(t, uint32(2), last)

		a := getRecord(t, store, outpoint(txA, 0))
		require.NotNil(t, a.SpendHeight)
		assert.Equal(t, uint32(2), *a.SpendHeight)
	})

	t.Run("beyond tip", func(t *testing.T) {
		builder := NewBuilder(&ulogger.TestLogger{}, testSettings(0), newMemoryStore())

		_, committed, err := builder.Run(ctx, source, 5)
		require.NoError(t, err)
		assert.False(t, committed)
		assert.Equal(t, StateDone, builder.State())
	})

	t.Run("canceled", func(t *testing.T) {
		canceled, cancel := context.WithCancel(ctx)
		cancel()

		builder := NewBuilder(&ulogger.TestLogger{}, testSettings(0), newMemoryStore())

		_, committed, err := builder.Run(canceled, source, 0)
		require.Error(t, err)
		assert.False(t, committed)
		assert.True(t, errors.Is(err, errors.ErrContextCanceled))
		assert.Equal(t, StateFailed, builder.State())
	})
}

// failingStore fails every spend height update.
type failingStore struct {
	ledger.Store
}

func (f *failingStore) UpdateSpendHeight(context.Context, []model.Outpoint, uint32) error {
	return errors.NewStorageError("disk full")
}

func TestBuilderStoreFailure(t *testing.T) {
	blocks, _, _ := twoBlockChain()
	checkpoint := NewCheckpoint(filepath.Join(t.TempDir(), "lastProcessed.dat"), "memory://")

	builder := NewBuilder(&ulogger.TestLogger{}, testSettings(0), &failingStore{Store: newMemoryStore()}, WithCheckpoint(checkpoint))

	_, committed, err := builder.Run(context.Background(), memory.New(blocks...), 0)
	require.Error(t, err)
	assert.False(t, committed)
	assert.True(t, errors.Is(err, errors.ErrStorageError))
	assert.Equal(t, StateFailed, builder.State())

	_, found, err := checkpoint.Read()
	require.NoError(t, err)
	assert.False(t, found)
}

func TestBuilderCheckpoint(t *testing.T) {
	blocks, _, _ := twoBlockChain()
	checkpoint := NewCheckpoint(filepath.Join(t.TempDir(), "data", "lastProcessed.dat"), "memory://")

	builder := NewBuilder(&ulogger.TestLogger{}, testSettings(0), newMemoryStore(), WithCheckpoint(checkpoint))

	_, _, err := builder.Run(context.Background(), memory.New(blocks...), 0)
	require.NoError(t, err)

	height, found, err := checkpoint.Read()
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, uint32(2), height)

	resume, err := checkpoint.ResumeHeight()
	require.NoError(t, err)
	assert.Equal(t, uint32(3), resume)
}

func TestNewBuilderExtractorFromSettings(t *testing.T) {
	sequential := NewBuilder(&ulogger.TestLogger{}, testSettings(0), newMemoryStore())
	assert.IsType(t, SequentialExtractor{}, sequential.extractor)

	parallel := NewBuilder(&ulogger.TestLogger{}, testSettings(8), newMemoryStore())
	require.IsType(t, &ParallelExtractor{}, parallel.extractor)
	assert.Equal(t, 8, parallel.extractor.(*ParallelExtractor).Workers)
}
