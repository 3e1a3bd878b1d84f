package bitcoincore

import (
	"path/filepath"

	"github.com/bsv-blockchain/utxo-ttl/errors"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/goleveldb/leveldb"
	"github.com/btcsuite/goleveldb/leveldb/opt"
)

var (
	// obfuscateKeyKey is the length prefixed "\x00obfuscate_key" string Bitcoin Core stores the xor key under
	obfuscateKeyKey = []byte("\x0e\x00obfuscate_key")
	bestBlockKey    = []byte("B")
)

// ChainstateTip returns the hash of the block the chainstate database of bitcoinDir was flushed at.
// This is the tip of the active chain as far as the node's UTXO set is concerned.
func ChainstateTip(bitcoinDir string) (*chainhash.Hash, error) {
	db, err := leveldb.OpenFile(filepath.Join(bitcoinDir, "chainstate"), &opt.Options{
		Compression: opt.NoCompression,
		ReadOnly:    true,
	})
	if err != nil {
		return nil, errors.NewStorageUnavailableError("failed to open chainstate in %s", bitcoinDir, err)
	}

	defer db.Close()

	var obfuscateKey []byte

	value, err := db.Get(obfuscateKeyKey, nil)

	switch {
	case err == nil:
		// first byte is the length of the key
		if len(value) > 1 {
			obfuscateKey = value[1:]
		}
	case errors.Is(err, leveldb.ErrNotFound):
		// very old datadirs are not obfuscated
	default:
		return nil, errors.NewStorageError("failed to read obfuscate key", err)
	}

	tip, err := db.Get(bestBlockKey, nil)
	if err != nil {
		if errors.Is(err, leveldb.ErrNotFound) {
			return nil, errors.NewBlockNotFoundError("chainstate has no best block")
		}

		return nil, errors.NewStorageError("failed to read best block", err)
	}

	tip = deobfuscate(obfuscateKey, tip)

	hash, err := chainhash.NewHash(tip)
	if err != nil {
		return nil, errors.NewProcessingError("invalid best block in chainstate", err)
	}

	return hash, nil
}

// extendKey repeats key until it is as long as value.
func extendKey(key []byte, length int) []byte {
	extended := make([]byte, length)

	if len(key) == 0 {
		return extended
	}

	for i := range extended {
		extended[i] = key[i%len(key)]
	}

	return extended
}

// deobfuscate xors value with the repeated key and returns a new slice.
func deobfuscate(key []byte, value []byte) []byte {
	out := make([]byte, len(value))
	ext := extendKey(key, len(value))

	for i := range value {
		out[i] = value[i] ^ ext[i]
	}

	return out
}
