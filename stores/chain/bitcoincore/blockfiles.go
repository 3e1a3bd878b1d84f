package bitcoincore

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bsv-blockchain/utxo-ttl/errors"
	"github.com/btcsuite/btcd/wire"
	"github.com/jellydator/ttlcache/v3"
)

const (
	xorKeyFile = "xor.dat"
	// maxBlockFileSize bounds the size field in front of a block, a blk file never exceeds 128 MiB
	maxBlockFileSize = 128 << 20
)

// BlockFiles reads raw blocks out of blk?????.dat files. Open file handles are kept in a small
// ttl cache since consecutive blocks almost always live in the same file. The cache is never started,
// so handles only expire on access or when capacity is exceeded, both under mu.
type BlockFiles struct {
	dir    string
	net    wire.BitcoinNet
	xorKey []byte

	mu    sync.Mutex
	files *ttlcache.Cache[int, *os.File]
}

// NewBlockFiles opens the blk file reader for blocksDir. When blocksDir holds an xor.dat file its
// contents are used to deobfuscate every read.
func NewBlockFiles(blocksDir string, net wire.BitcoinNet, openFiles uint64) (*BlockFiles, error) {
	xorKey, err := os.ReadFile(filepath.Join(blocksDir, xorKeyFile))
	if err != nil && !os.IsNotExist(err) {
		return nil, errors.NewStorageUnavailableError("failed to read %s", xorKeyFile, err)
	}

	if bytes.Equal(xorKey, make([]byte, len(xorKey))) {
		xorKey = nil
	}

	files := ttlcache.New[int, *os.File](
		ttlcache.WithTTL[int, *os.File](time.Minute),
		ttlcache.WithCapacity[int, *os.File](openFiles),
	)

	files.OnEviction(func(_ context.Context, _ ttlcache.EvictionReason, item *ttlcache.Item[int, *os.File]) {
		_ = item.Value().Close()
	})

	return &BlockFiles{
		dir:    blocksDir,
		net:    net,
		xorKey: xorKey,
		files:  files,
	}, nil
}

func blockFileName(file int) string {
	return fmt.Sprintf("blk%05d.dat", file)
}

func (bf *BlockFiles) open(file int) (*os.File, error) {
	if item := bf.files.Get(file); item != nil {
		return item.Value(), nil
	}

	// closes handles that expired while idle
	bf.files.DeleteExpired()

	f, err := os.Open(filepath.Join(bf.dir, blockFileName(file)))
	if err != nil {
		return nil, errors.NewStorageUnavailableError("failed to open %s", blockFileName(file), err)
	}

	bf.files.Set(file, f, ttlcache.DefaultTTL)

	return f, nil
}

// readAt reads len(buf) bytes at offset and undoes the xor obfuscation, which is keyed on the file offset.
func (bf *BlockFiles) readAt(f *os.File, buf []byte, offset int64) error {
	if _, err := f.ReadAt(buf, offset); err != nil {
		return err
	}

	if len(bf.xorKey) == 0 {
		return nil
	}

	keyLen := int64(len(bf.xorKey))
	for i := range buf {
		buf[i] ^= bf.xorKey[(offset+int64(i))%keyLen]
	}

	return nil
}

// ReadBlock reads the block stored at dataPos of blk file number file. The 8 bytes in front of dataPos
// hold the network magic and the block size.
func (bf *BlockFiles) ReadBlock(file int, dataPos uint32) (*wire.MsgBlock, error) {
	if dataPos < 8 {
		return nil, errors.NewBlockError("invalid data position %d in %s", dataPos, blockFileName(file))
	}

	bf.mu.Lock()
	defer bf.mu.Unlock()

	f, err := bf.open(file)
	if err != nil {
		return nil, err
	}

	prefix := make([]byte, 8)
	if err = bf.readAt(f, prefix, int64(dataPos)-8); err != nil {
		return nil, errors.NewStorageError("failed to read block prefix at %s:%d", blockFileName(file), dataPos, err)
	}

	if magic := wire.BitcoinNet(binary.LittleEndian.Uint32(prefix[:4])); magic != bf.net {
		return nil, errors.NewBlockError("unexpected network magic %s at %s:%d, expected %s", magic, blockFileName(file), dataPos, bf.net)
	}

	size := binary.LittleEndian.Uint32(prefix[4:])
	if size < 80 || size > maxBlockFileSize {
		return nil, errors.NewBlockError("invalid block size %d at %s:%d", size, blockFileName(file), dataPos)
	}

	raw := make([]byte, size)
	if err = bf.readAt(f, raw, int64(dataPos)); err != nil {
		return nil, errors.NewStorageError("failed to read block at %s:%d", blockFileName(file), dataPos, err)
	}

	msg := &wire.MsgBlock{}
	if err = msg.Deserialize(bytes.NewReader(raw)); err != nil {
		return nil, errors.NewBlockError("failed to decode block at %s:%d", blockFileName(file), dataPos, err)
	}

	return msg, nil
}

// Close closes every cached file handle.
func (bf *BlockFiles) Close() error {
	bf.mu.Lock()
	defer bf.mu.Unlock()

	bf.files.DeleteAll()

	return nil
}
