package model

import (
	"testing"

	"github.com/bsv-blockchain/utxo-ttl/errors"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const genesisCoinbaseTxID = "4a5e1e4baab89f3a32518a88c31bc87f618f76673e2cc77ab2127b7afdeda33b"

func TestOutpointString(t *testing.T) {
	txid, err := chainhash.NewHashFromStr(genesisCoinbaseTxID)
	require.NoError(t, err)

	op := NewOutpoint(*txid, 3)
	assert.Equal(t, genesisCoinbaseTxID+":3", op.String())

	parsed, err := NewOutpointFromString(op.String())
	require.NoError(t, err)
	assert.Equal(t, op, parsed)
}

func TestNewOutpointFromStringErrors(t *testing.T) {
	for _, s := range []string{
		"",
		genesisCoinbaseTxID,
		genesisCoinbaseTxID + ":",
		genesisCoinbaseTxID + ":-1",
		genesisCoinbaseTxID + ":4294967296",
		"zz:0",
	} {
		_, err := NewOutpointFromString(s)
		require.Error(t, err, s)
		assert.True(t, errors.Is(err, errors.ErrInvalidArgument), s)
	}
}

func TestOutpointFromWire(t *testing.T) {
	hash := chainhash.Hash{1, 2, 3}
	op := OutpointFromWire(*wire.NewOutPoint(&hash, 7))

	assert.Equal(t, hash, op.TxID)
	assert.Equal(t, uint32(7), op.Vout)
}

func TestRecordLifetime(t *testing.T) {
	r := &Record{CreatedHeight: 10}

	_, ok := r.Lifetime()
	assert.False(t, ok)
	assert.False(t, r.IsSpent())
	assert.Contains(t, r.String(), "unspent")

	spend := uint32(15)
	r.SpendHeight = &spend

	lifetime, ok := r.Lifetime()
	assert.True(t, ok)
	assert.Equal(t, uint32(5), lifetime)
	assert.Contains(t, r.String(), "spent at 15")
}
