// Package bitcoincoretest writes synthetic Bitcoin Core data directories for tests.
//
// It mirrors the on-disk layout read by the bitcoincore package without importing it,
// so tests inside that package can use it too.
package bitcoincoretest

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/bsv-blockchain/utxo-ttl/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/goleveldb/leveldb"
	"github.com/stretchr/testify/require"
)

// block index status bits, see CBlockIndex::nStatus
const (
	statusValidTree    = 2
	statusValidScripts = 5
	statusHaveData     = 8
	statusHaveUndo     = 16
)

var (
	obfuscateKeyKey = []byte("\x0e\x00obfuscate_key")
	bestBlockKey    = []byte("B")
)

// DataDir describes a synthetic Bitcoin Core data directory.
type DataDir struct {
	Params       *chaincfg.Params
	Active       []*wire.MsgBlock
	Stale        []*wire.MsgBlock
	ObfuscateKey []byte
	XORKey       []byte
}

func P2PKHScript(t *testing.T, fill byte) []byte {
	t.Helper()

	script, err := txscript.NewScriptBuilder().
		AddOp(txscript.OP_DUP).
		AddOp(txscript.OP_HASH160).
		AddData(bytes.Repeat([]byte{fill}, 20)).
		AddOp(txscript.OP_EQUALVERIFY).
		AddOp(txscript.OP_CHECKSIG).
		Script()
	require.NoError(t, err)

	return script
}

func CoinbaseTx(height byte, value int64, pkScript []byte) *wire.MsgTx {
	tx := wire.NewMsgTx(1)
	tx.AddTxIn(wire.NewTxIn(wire.NewOutPoint(&chainhash.Hash{}, wire.MaxPrevOutIndex), []byte{0x01, height}, nil))
	tx.AddTxOut(wire.NewTxOut(value, pkScript))

	return tx
}

func SpendTx(prev *wire.MsgTx, vout uint32, value int64, pkScript []byte) *wire.MsgTx {
	prevHash := prev.TxHash()

	tx := wire.NewMsgTx(2)
	tx.AddTxIn(wire.NewTxIn(wire.NewOutPoint(&prevHash, vout), nil, nil))
	tx.AddTxOut(wire.NewTxOut(value, pkScript))

	return tx
}

func NextBlock(prev *wire.MsgBlock, nonce uint32, txs ...*wire.MsgTx) *wire.MsgBlock {
	prevHash := prev.BlockHash()

	msg := wire.NewMsgBlock(wire.NewBlockHeader(1, &prevHash, &chainhash.Hash{}, 0x207fffff, nonce))
	for _, tx := range txs {
		_ = msg.AddTransaction(tx)
	}

	return msg
}

// RegtestChain returns genesis plus two blocks, the second spending the coinbase of the first,
// and a stale block competing with height 1.
func RegtestChain(t *testing.T) (active []*wire.MsgBlock, stale []*wire.MsgBlock) {
	t.Helper()

	genesis := chaincfg.RegressionNetParams.GenesisBlock

	cb1 := CoinbaseTx(1, 5_000_000_000, P2PKHScript(t, 0x11))
	block1 := NextBlock(genesis, 1, cb1)

	cb2 := CoinbaseTx(2, 5_000_000_000, P2PKHScript(t, 0x22))
	block2 := NextBlock(block1, 2, cb2, SpendTx(cb1, 0, 4_999_990_000, P2PKHScript(t, 0x33)))

	fork := NextBlock(genesis, 99, CoinbaseTx(1, 5_000_000_000, P2PKHScript(t, 0x44)))

	return []*wire.MsgBlock{genesis, block1, block2}, []*wire.MsgBlock{fork}
}

// EncodeVarInt encodes n in the MSB base-128 format of the block index, the inverse of
// bitcoincore.DecodeVarIntForIndex.
func EncodeVarInt(n int) []byte {
	if n == 0 {
		return []byte{0x00}
	}

	var tmp []byte

	val := n

	for {
		tmp = append(tmp, byte(val&0x7f))
		val >>= 7

		if val == 0 {
			break
		}

		val--
	}

	encoded := make([]byte, len(tmp))

	for i := 0; i < len(tmp); i++ {
		b := tmp[len(tmp)-1-i]
		if i != len(tmp)-1 {
			b |= 0x80
		}

		encoded[i] = b
	}

	return encoded
}

// IndexValue serializes a blocks/index record.
func IndexValue(t *testing.T, height int, status int, txs int, file int, dataPos int, header *wire.BlockHeader) []byte {
	t.Helper()

	var buf bytes.Buffer

	for _, v := range []int{259900, height, status, txs} {
		buf.Write(EncodeVarInt(v))
	}

	if status&(statusHaveData|statusHaveUndo) != 0 {
		buf.Write(EncodeVarInt(file))
	}

	if status&statusHaveData != 0 {
		buf.Write(EncodeVarInt(dataPos))
	}

	require.NoError(t, header.Serialize(&buf))

	return buf.Bytes()
}

func xor(key []byte, value []byte) []byte {
	if len(key) == 0 {
		return append([]byte{}, value...)
	}

	out := make([]byte, len(value))
	for i := range value {
		out[i] = value[i] ^ key[i%len(key)]
	}

	return out
}

// Write lays the directory out under a temp dir and returns its path.
func (d *DataDir) Write(t *testing.T) string {
	t.Helper()

	root := t.TempDir()
	blocksDir := filepath.Join(root, "blocks")
	require.NoError(t, os.MkdirAll(blocksDir, 0o755))

	// blk00000.dat
	var blk bytes.Buffer

	positions := make(map[chainhash.Hash]int)

	for _, block := range append(append([]*wire.MsgBlock{}, d.Active...), d.Stale...) {
		var raw bytes.Buffer
		require.NoError(t, block.Serialize(&raw))

		require.NoError(t, binary.Write(&blk, binary.LittleEndian, uint32(d.Params.Net)))
		require.NoError(t, binary.Write(&blk, binary.LittleEndian, uint32(raw.Len()))) //nolint:gosec // test blocks are small

		positions[block.BlockHash()] = blk.Len()
		blk.Write(raw.Bytes())
	}

	fileBytes := blk.Bytes()
	if len(d.XORKey) > 0 {
		fileBytes = xor(d.XORKey, fileBytes)

		require.NoError(t, os.WriteFile(filepath.Join(blocksDir, "xor.dat"), d.XORKey, 0o600))
	}

	require.NoError(t, os.WriteFile(filepath.Join(blocksDir, fmt.Sprintf("blk%05d.dat", 0)), fileBytes, 0o600))

	// blocks/index
	index, err := leveldb.OpenFile(filepath.Join(blocksDir, "index"), nil)
	require.NoError(t, err)

	put := func(block *wire.MsgBlock, height int, status int) {
		hash := block.BlockHash()
		key := append([]byte("b"), hash[:]...)
		require.NoError(t, index.Put(key, IndexValue(t, height, status, len(block.Transactions), 0, positions[hash], &block.Header), nil))
	}

	for height, block := range d.Active {
		put(block, height, statusValidScripts|statusHaveData)
	}

	for _, block := range d.Stale {
		put(block, 1, statusValidScripts|statusHaveData)
	}

	// a headers only entry is skipped
	headersOnly := NextBlock(d.Active[len(d.Active)-1], 7)
	put(headersOnly, len(d.Active), statusValidTree)

	require.NoError(t, index.Close())

	// chainstate
	chainstate, err := leveldb.OpenFile(filepath.Join(root, "chainstate"), nil)
	require.NoError(t, err)

	if d.ObfuscateKey != nil {
		require.NoError(t, chainstate.Put(obfuscateKeyKey, append([]byte{byte(len(d.ObfuscateKey))}, d.ObfuscateKey...), nil))
	}

	tip := d.Active[len(d.Active)-1].BlockHash()
	require.NoError(t, chainstate.Put(bestBlockKey, xor(d.ObfuscateKey, tip[:]), nil))
	require.NoError(t, chainstate.Close())

	return root
}
