package chainstats

import (
	"context"
	"testing"

	"github.com/bsv-blockchain/utxo-ttl/errors"
	"github.com/bsv-blockchain/utxo-ttl/settings"
	"github.com/bsv-blockchain/utxo-ttl/stores/chain/memory"
	"github.com/bsv-blockchain/utxo-ttl/ulogger"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func msgTx(ins, outs int) *wire.MsgTx {
	tx := wire.NewMsgTx(2)

	for i := 0; i < ins; i++ {
		tx.AddTxIn(wire.NewTxIn(wire.NewOutPoint(&chainhash.Hash{byte(i + 1)}, uint32(i)), nil, nil))
	}

	for i := 0; i < outs; i++ {
		tx.AddTxOut(wire.NewTxOut(int64(i), []byte{0x51}))
	}

	return tx
}

func msgBlock(txs ...*wire.MsgTx) *wire.MsgBlock {
	block := wire.NewMsgBlock(wire.NewBlockHeader(1, &chainhash.Hash{}, &chainhash.Hash{}, 0, 0))
	for _, tx := range txs {
		_ = block.AddTransaction(tx)
	}

	return block
}

func TestCollect(t *testing.T) {
	source := memory.New(
		msgBlock(msgTx(1, 1)),                           // coinbase only
		msgBlock(msgTx(1, 2), msgTx(2, 3), msgTx(1, 1)), // 4 outputs, 3 inputs
		msgBlock(msgTx(1, 1), msgTx(5, 8)),              // 8 outputs, 5 inputs
	)

	summary, err := New(&ulogger.TestLogger{}, &settings.Settings{}, source).Collect(context.Background())
	require.NoError(t, err)

	assert.Equal(t, uint32(2), summary.TipHeight)
	assert.Equal(t, uint64(3), summary.Blocks)
	assert.Equal(t, uint64(8), summary.TotalInputs)
	assert.Equal(t, uint64(12), summary.TotalOutputs)
	assert.Equal(t, uint64(4), summary.AvgOutputsPerBlock)
	assert.Equal(t, uint64(8), summary.MaxOutputsInBlock)

	out := summary.String()
	assert.Contains(t, out, "Chain height:        2\n")
	assert.Contains(t, out, "Avg outputs per blk: 4\n")
	assert.Contains(t, out, "Max outputs in blk:  8\n")
}

func TestCollectEmptyChain(t *testing.T) {
	_, err := New(&ulogger.TestLogger{}, &settings.Settings{}, memory.New()).Collect(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrBlockNotFound))
}

func TestCollectCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(&ulogger.TestLogger{}, &settings.Settings{}, memory.New(msgBlock(msgTx(1, 1)))).Collect(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrContextCanceled))
}
