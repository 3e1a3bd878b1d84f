package ledger

import (
	"bytes"
	"context"
	"testing"

	"github.com/bsv-blockchain/utxo-ttl/model"
	"github.com/bsv-blockchain/utxo-ttl/settings"
	"github.com/bsv-blockchain/utxo-ttl/stores/chain/memory"
	"github.com/bsv-blockchain/utxo-ttl/stores/ledger"
	memoryStore "github.com/bsv-blockchain/utxo-ttl/stores/ledger/memory"
	"github.com/bsv-blockchain/utxo-ttl/ulogger"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"
)

func p2pkh(fill byte) []byte {
	script, _ := txscript.NewScriptBuilder().
		AddOp(txscript.OP_DUP).
		AddOp(txscript.OP_HASH160).
		AddData(bytes.Repeat([]byte{fill}, 20)).
		AddOp(txscript.OP_EQUALVERIFY).
		AddOp(txscript.OP_CHECKSIG).
		Script()

	return script
}

func p2wpkh(fill byte) []byte {
	script, _ := txscript.NewScriptBuilder().
		AddOp(txscript.OP_0).
		AddData(bytes.Repeat([]byte{fill}, 20)).
		Script()

	return script
}

func p2tr(fill byte) []byte {
	script, _ := txscript.NewScriptBuilder().
		AddOp(txscript.OP_1).
		AddData(bytes.Repeat([]byte{fill}, 32)).
		Script()

	return script
}

func opReturn(data string) []byte {
	script, _ := txscript.NewScriptBuilder().
		AddOp(txscript.OP_RETURN).
		AddData([]byte(data)).
		Script()

	return script
}

var nextCoinbaseTag byte

func coinbaseTx(outs ...*wire.TxOut) *wire.MsgTx {
	nextCoinbaseTag++

	tx := wire.NewMsgTx(1)
	tx.AddTxIn(wire.NewTxIn(wire.NewOutPoint(&chainhash.Hash{}, wire.MaxPrevOutIndex), []byte{0x01, nextCoinbaseTag}, nil))

	for _, out := range outs {
		tx.AddTxOut(out)
	}

	return tx
}

// tx spends every outpoint in ins and creates outs.
func tx(ins []wire.OutPoint, outs ...*wire.TxOut) *wire.MsgTx {
	t := wire.NewMsgTx(2)

	for i := range ins {
		t.AddTxIn(wire.NewTxIn(&ins[i], nil, nil))
	}

	for _, out := range outs {
		t.AddTxOut(out)
	}

	return t
}

func out(value int64, script []byte) *wire.TxOut {
	return wire.NewTxOut(value, script)
}

func outpoint(t *wire.MsgTx, vout uint32) wire.OutPoint {
	return wire.OutPoint{Hash: t.TxHash(), Index: vout}
}

// unrelated is an outpoint no block of these tests creates.
var unrelated = wire.OutPoint{Hash: chainhash.Hash{0xee}, Index: 3}

func block(prev *wire.MsgBlock, txs ...*wire.MsgTx) *wire.MsgBlock {
	var prevHash chainhash.Hash
	if prev != nil {
		prevHash = prev.BlockHash()
	}

	msg := wire.NewMsgBlock(wire.NewBlockHeader(1, &prevHash, &chainhash.Hash{}, 0x207fffff, 0))
	for _, t := range txs {
		_ = msg.AddTransaction(t)
	}

	return msg
}

func testSettings(workers int) *settings.Settings {
	return &settings.Settings{
		Ledger: settings.LedgerSettings{
			Workers:          workers,
			ProgressInterval: 1,
		},
	}
}

func newMemoryStore() ledger.Store {
	return memoryStore.New(&ulogger.TestLogger{})
}

func extractors() map[string]Extractor {
	return map[string]Extractor{
		"sequential": SequentialExtractor{},
		"parallel":   &ParallelExtractor{Workers: 4, BatchSize: 1},
	}
}

func runChain(t *testing.T, store ledger.Store, extractor Extractor, blocks ...*wire.MsgBlock) *Builder {
	t.Helper()

	builder := NewBuilder(&ulogger.TestLogger{}, testSettings(0), store, WithExtractor(extractor))

	_, _, err := builder.Run(context.Background(), memory.New(blocks...), 0)
	require.NoError(t, err)

	return builder
}

func getRecord(t *testing.T, store ledger.Store, op wire.OutPoint) *model.Record {
	t.Helper()

	record, err := store.Get(context.Background(), model.OutpointFromWire(op))
	require.NoError(t, err)

	return record
}
