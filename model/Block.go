package model

import (
	"github.com/bsv-blockchain/utxo-ttl/errors"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

// Block is a block of the active chain together with its height. Transactions[0] is the coinbase.
type Block struct {
	Height       uint32
	Hash         chainhash.Hash
	Header       wire.BlockHeader
	Transactions []*wire.MsgTx
}

func NewBlock(height uint32, msgBlock *wire.MsgBlock) *Block {
	return &Block{
		Height:       height,
		Hash:         msgBlock.BlockHash(),
		Header:       msgBlock.Header,
		Transactions: msgBlock.Transactions,
	}
}

// Coinbase returns the first transaction of the block.
func (b *Block) Coinbase() (*wire.MsgTx, error) {
	if len(b.Transactions) == 0 {
		return nil, errors.NewBlockInvalidError("block %s at height %d has no transactions", b.Hash, b.Height)
	}

	return b.Transactions[0], nil
}

// NonCoinbase returns every transaction after the coinbase.
func (b *Block) NonCoinbase() []*wire.MsgTx {
	if len(b.Transactions) < 2 {
		return nil
	}

	return b.Transactions[1:]
}

// IsProvablyUnspendable reports whether no input can ever satisfy script, judged by its first opcode:
// OP_RETURN, the reserved opcodes, the disabled and always-illegal opcodes, and the undefined range
// from 0xba up. An empty script is spendable. Scripts above the consensus size limit are unspendable too.
func IsProvablyUnspendable(script []byte) bool {
	if len(script) == 0 {
		return false
	}

	if len(script) > txscript.MaxScriptSize {
		return true
	}

	op := script[0]
	if op >= opFirstUndefined {
		return true
	}

	_, ok := unspendableOpcodes[op]

	return ok
}

const opFirstUndefined = 0xba

var unspendableOpcodes = map[byte]struct{}{
	txscript.OP_RETURN:    {},
	txscript.OP_RESERVED:  {},
	txscript.OP_VER:       {},
	txscript.OP_RESERVED1: {},
	txscript.OP_RESERVED2: {},
	txscript.OP_VERIF:     {},
	txscript.OP_VERNOTIF:  {},
	txscript.OP_CAT:       {},
	txscript.OP_SUBSTR:    {},
	txscript.OP_LEFT:      {},
	txscript.OP_RIGHT:     {},
	txscript.OP_INVERT:    {},
	txscript.OP_AND:       {},
	txscript.OP_OR:        {},
	txscript.OP_XOR:       {},
	txscript.OP_2MUL:      {},
	txscript.OP_2DIV:      {},
	txscript.OP_MUL:       {},
	txscript.OP_DIV:       {},
	txscript.OP_MOD:       {},
	txscript.OP_LSHIFT:    {},
	txscript.OP_RSHIFT:    {},
}
