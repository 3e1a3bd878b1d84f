package bitcoincore

import (
	"bytes"
	"path/filepath"
	"sort"

	safeconversion "github.com/bsv-blockchain/go-safe-conversion"
	"github.com/bsv-blockchain/utxo-ttl/errors"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/goleveldb/leveldb"
	"github.com/btcsuite/goleveldb/leveldb/opt"
	"github.com/btcsuite/goleveldb/leveldb/util"
)

// Block validation statuses
const (
	BlockValidReserved     = 1
	BlockValidTree         = 2
	BlockValidTransactions = 3
	BlockValidChain        = 4
	BlockValidScripts      = 5
	BlockValidMask         = BlockValidReserved | BlockValidTree | BlockValidTransactions | BlockValidChain | BlockValidScripts

	BlockHaveData = 8  // !< full block available in blk*.dat
	BlockHaveUndo = 16 // !< undo data available in rev*.dat
)

// blockIndexPrefix prefixes every block index entry, the rest of the key is the block hash.
var blockIndexPrefix = []byte("b")

// BlockIndex is a single entry of the Bitcoin Core block index.
type BlockIndex struct {
	Hash    chainhash.Hash
	Height  uint32
	Status  int
	TxCount uint64
	File    int
	DataPos uint32
	UndoPos uint32
	Header  wire.BlockHeader
}

// HasData reports whether the full block is stored in a blk*.dat file.
func (b *BlockIndex) HasData() bool {
	return b.Status&BlockHaveData != 0
}

// DeserializeBlockIndex deserializes a block index from the given byte slice.
//
// Usage:
//
// The value of a 'b' record in blocks/index is a run of index varints (client version, height, status,
// transaction count, then file, data and undo positions depending on the status bits) followed by the
// 80 byte block header.
//
// Returns:
//   - The decoded BlockIndex, without its Hash, which lives in the key.
//   - An ERR_BLOCK_INVALID error for entries that never got past header validation.
//   - An ERR_PROCESSING error when the value is truncated.
func DeserializeBlockIndex(data []byte) (*BlockIndex, error) {
	var pos int

	next := func(name string) (int, error) {
		v, n := DecodeVarIntForIndex(data[pos:])
		if n == 0 {
			return 0, errors.NewProcessingError("block index truncated reading %s", name)
		}

		pos += n

		return v, nil
	}

	// client version, unused
	if _, err := next("version"); err != nil {
		return nil, err
	}

	height, err := next("height")
	if err != nil {
		return nil, err
	}

	status, err := next("status")
	if err != nil {
		return nil, err
	}

	txs, err := next("tx count")
	if err != nil {
		return nil, err
	}

	if (status & BlockValidMask) <= BlockValidTree {
		return nil, errors.NewBlockInvalidError("block %d is not in active chain, skip it", height)
	}

	bi := &BlockIndex{Status: status}

	if status&(BlockHaveData|BlockHaveUndo) != 0 {
		if bi.File, err = next("file"); err != nil {
			return nil, err
		}
	}

	if status&BlockHaveData != 0 {
		v, err := next("data pos")
		if err != nil {
			return nil, err
		}

		if bi.DataPos, err = safeconversion.IntToUint32(v); err != nil {
			return nil, errors.NewProcessingError("invalid data pos", err)
		}
	}

	if status&BlockHaveUndo != 0 {
		v, err := next("undo pos")
		if err != nil {
			return nil, err
		}

		if bi.UndoPos, err = safeconversion.IntToUint32(v); err != nil {
			return nil, errors.NewProcessingError("invalid undo pos", err)
		}
	}

	if len(data[pos:]) < 80 {
		return nil, errors.NewProcessingError("block header length is less than 80")
	}

	if err = bi.Header.Deserialize(bytes.NewReader(data[pos : pos+80])); err != nil {
		return nil, errors.NewProcessingError("failed to deserialize block header", err)
	}

	if bi.TxCount, err = safeconversion.IntToUint64(txs); err != nil {
		return nil, errors.NewProcessingError("invalid tx count", err)
	}

	if bi.Height, err = safeconversion.IntToUint32(height); err != nil {
		return nil, errors.NewProcessingError("invalid height", err)
	}

	return bi, nil
}

// IndexDB is a read-only handle on blocks/index.
type IndexDB struct {
	db *leveldb.DB
}

func NewIndexDB(blocksDir string) (*IndexDB, error) {
	db, err := leveldb.OpenFile(filepath.Join(blocksDir, "index"), &opt.Options{
		Compression: opt.NoCompression,
		ReadOnly:    true,
	})
	if err != nil {
		return nil, errors.NewStorageUnavailableError("failed to open block index in %s", blocksDir, err)
	}

	return &IndexDB{db: db}, nil
}

func (in *IndexDB) Close() error {
	return in.db.Close()
}

// Get returns the index entry of a single block.
func (in *IndexDB) Get(hash chainhash.Hash) (*BlockIndex, error) {
	value, err := in.db.Get(append(append([]byte{}, blockIndexPrefix...), hash[:]...), nil)
	if err != nil {
		if errors.Is(err, leveldb.ErrNotFound) {
			return nil, errors.NewBlockNotFoundError("block %s not in index", hash)
		}

		return nil, errors.NewStorageError("failed to read block index entry %s", hash, err)
	}

	bi, err := DeserializeBlockIndex(value)
	if err != nil {
		return nil, err
	}

	bi.Hash = hash

	return bi, nil
}

// ActiveChain reads every usable entry of the index and keeps only those on the path from tip back
// to genesis. The result is indexed by height.
func (in *IndexDB) ActiveChain(tip chainhash.Hash) ([]*BlockIndex, error) {
	allBlocks := make(map[chainhash.Hash]*BlockIndex)

	iter := in.db.NewIterator(util.BytesPrefix(blockIndexPrefix), nil)
	defer iter.Release()

	for iter.Next() {
		key := iter.Key()

		hash, err := chainhash.NewHash(key[1:])
		if err != nil {
			continue
		}

		bi, err := DeserializeBlockIndex(iter.Value())
		if err != nil {
			// headers-only and invalid entries are expected in any real index
			continue
		}

		if bi.TxCount == 0 {
			continue
		}

		bi.Hash = *hash
		allBlocks[*hash] = bi
	}

	if err := iter.Error(); err != nil {
		return nil, errors.NewStorageError("failed to iterate block index", err)
	}

	var chain []*BlockIndex

	current := tip

	for {
		block, exists := allBlocks[current]
		if !exists {
			return nil, errors.NewProcessingError("active chain block not found in index: %s", current)
		}

		chain = append(chain, block)

		if block.Height == 0 {
			break
		}

		current = block.Header.PrevBlock
	}

	sort.Slice(chain, func(i, j int) bool {
		return chain[i].Height < chain[j].Height
	})

	for i, block := range chain {
		if int(block.Height) != i {
			return nil, errors.NewProcessingError("active chain has a gap at height %d, found block %s at height %d", i, block.Hash, block.Height)
		}
	}

	return chain, nil
}
