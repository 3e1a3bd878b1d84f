// Package cachehints writes, for every block of the active chain, the outpoints spent by its
// non-coinbase transactions. A UTXO cache can read the file ahead of block processing to learn
// which entries will be needed.
//
// File layout, repeated for each block from genesis to the tip:
//
//	u32 LE  count
//	count × (u32 LE vout, 32 byte txid in internal byte order)
package cachehints

import (
	"bufio"
	"context"
	"encoding/binary"
	"io"
	"os"

	safeconversion "github.com/bsv-blockchain/go-safe-conversion"
	"github.com/bsv-blockchain/utxo-ttl/errors"
	"github.com/bsv-blockchain/utxo-ttl/model"
	"github.com/bsv-blockchain/utxo-ttl/settings"
	"github.com/bsv-blockchain/utxo-ttl/stores/chain"
	"github.com/bsv-blockchain/utxo-ttl/ulogger"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

const defaultProgressInterval = 1_000

type Exporter struct {
	logger   ulogger.Logger
	settings *settings.Settings
	source   chain.Source
}

func New(logger ulogger.Logger, tSettings *settings.Settings, source chain.Source) *Exporter {
	return &Exporter{
		logger:   logger,
		settings: tSettings,
		source:   source,
	}
}

// Export writes the hints to path, which must not exist yet. It returns the number of outpoints written.
// A failed export removes the partial file.
func (e *Exporter) Export(ctx context.Context, path string) (total uint64, err error) {
	// #nosec G304
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return 0, errors.NewInvalidArgumentError("refusing to overwrite %s", path)
		}

		return 0, errors.NewProcessingError("failed to create %s", path, err)
	}

	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = errors.NewProcessingError("failed to close %s", path, cerr)
		}

		if err != nil {
			_ = os.Remove(path)
		}
	}()

	w := bufio.NewWriterSize(f, 1<<20)

	if total, err = e.write(ctx, w); err != nil {
		return 0, err
	}

	if err = w.Flush(); err != nil {
		return 0, errors.NewProcessingError("failed to flush %s", path, err)
	}

	return total, nil
}

func (e *Exporter) write(ctx context.Context, w io.Writer) (uint64, error) {
	tip, err := e.source.ActiveChainHeight(ctx)
	if err != nil {
		return 0, err
	}

	interval := uint32(defaultProgressInterval)
	if e.settings.CacheHints.ProgressInterval > 0 {
		interval = uint32(e.settings.CacheHints.ProgressInterval) //nolint:gosec // positive
	}

	var (
		total   uint64
		hints   []model.Outpoint
		scratch [4]byte
	)

	for h := uint64(0); h <= uint64(tip); h++ {
		height := uint32(h) //nolint:gosec // bounded by tip

		block, err := e.source.GetBlockByHeight(ctx, height)
		if err != nil {
			return 0, err
		}

		hints = hints[:0]

		for _, tx := range block.NonCoinbase() {
			for _, in := range tx.TxIn {
				hints = append(hints, model.OutpointFromWire(in.PreviousOutPoint))
			}
		}

		count, err := safeconversion.IntToUint32(len(hints))
		if err != nil {
			return 0, errors.NewProcessingError("too many inputs in block %d", height, err)
		}

		binary.LittleEndian.PutUint32(scratch[:], count)

		if _, err = w.Write(scratch[:]); err != nil {
			return 0, errors.NewProcessingError("failed to write hints of block %d", height, err)
		}

		for _, op := range hints {
			binary.LittleEndian.PutUint32(scratch[:], op.Vout)

			if _, err = w.Write(scratch[:]); err != nil {
				return 0, errors.NewProcessingError("failed to write hints of block %d", height, err)
			}

			if _, err = w.Write(op.TxID[:]); err != nil {
				return 0, errors.NewProcessingError("failed to write hints of block %d", height, err)
			}
		}

		total += uint64(count)

		if height%interval == 0 {
			e.logger.Infof("%d/%d", height, tip)
		}
	}

	return total, nil
}

// Reader reads a hint file block by block.
type Reader struct {
	r *bufio.Reader
}

func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReader(r)}
}

// Next returns the outpoints of the next block, or io.EOF after the last block.
func (r *Reader) Next() ([]model.Outpoint, error) {
	var scratch [4]byte

	if _, err := io.ReadFull(r.r, scratch[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}

		return nil, errors.NewProcessingError("failed to read hint count", err)
	}

	count := binary.LittleEndian.Uint32(scratch[:])
	hints := make([]model.Outpoint, 0, min(count, 1<<16))

	for i := uint32(0); i < count; i++ {
		if _, err := io.ReadFull(r.r, scratch[:]); err != nil {
			return nil, errors.NewProcessingError("failed to read vout of hint %d", i, err)
		}

		var txid chainhash.Hash

		if _, err := io.ReadFull(r.r, txid[:]); err != nil {
			return nil, errors.NewProcessingError("failed to read txid of hint %d", i, err)
		}

		hints = append(hints, model.NewOutpoint(txid, binary.LittleEndian.Uint32(scratch[:])))
	}

	return hints, nil
}
