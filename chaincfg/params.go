// Package chaincfg resolves network names to the btcd chain parameters used to check the genesis block
// of a chain data directory.
package chaincfg

import (
	"strings"

	"github.com/bsv-blockchain/utxo-ttl/errors"
	btcchaincfg "github.com/btcsuite/btcd/chaincfg"
)

type Params = btcchaincfg.Params

var (
	MainNetParams       = &btcchaincfg.MainNetParams
	TestNet3Params      = &btcchaincfg.TestNet3Params
	RegressionNetParams = &btcchaincfg.RegressionNetParams
	SigNetParams        = &btcchaincfg.SigNetParams
	SimNetParams        = &btcchaincfg.SimNetParams
)

func GetChainParams(network string) (*Params, error) {
	switch strings.ToLower(network) {
	case "mainnet", "main":
		return MainNetParams, nil
	case "testnet", "testnet3", "test":
		return TestNet3Params, nil
	case "regtest":
		return RegressionNetParams, nil
	case "signet":
		return SigNetParams, nil
	case "simnet":
		return SimNetParams, nil
	default:
		return nil, errors.NewConfigurationError("unknown network %s", network)
	}
}
