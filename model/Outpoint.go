package model

import (
	"strconv"
	"strings"

	"github.com/bsv-blockchain/utxo-ttl/errors"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

// Outpoint identifies a transaction output, it is the primary key of the ledger.
type Outpoint struct {
	TxID chainhash.Hash
	Vout uint32
}

func NewOutpoint(txid chainhash.Hash, vout uint32) Outpoint {
	return Outpoint{TxID: txid, Vout: vout}
}

// OutpointFromWire converts the previous outpoint of a transaction input.
func OutpointFromWire(op wire.OutPoint) Outpoint {
	return Outpoint{TxID: op.Hash, Vout: op.Index}
}

// NewOutpointFromString parses "<txid>:<vout>" with the txid in display (byte reversed) order.
func NewOutpointFromString(s string) (Outpoint, error) {
	txidStr, voutStr, ok := strings.Cut(s, ":")
	if !ok {
		return Outpoint{}, errors.NewInvalidArgumentError("outpoint %q is not in txid:vout form", s)
	}

	txid, err := chainhash.NewHashFromStr(txidStr)
	if err != nil {
		return Outpoint{}, errors.NewInvalidArgumentError("invalid txid in outpoint %q", s, err)
	}

	vout, err := strconv.ParseUint(voutStr, 10, 32)
	if err != nil {
		return Outpoint{}, errors.NewInvalidArgumentError("invalid vout in outpoint %q", s, err)
	}

	return Outpoint{TxID: *txid, Vout: uint32(vout)}, nil
}

func (o Outpoint) String() string {
	return o.TxID.String() + ":" + strconv.FormatUint(uint64(o.Vout), 10)
}
