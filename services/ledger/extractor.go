package ledger

import (
	"context"
	"sync"

	"github.com/bsv-blockchain/utxo-ttl/errors"
	"github.com/bsv-blockchain/utxo-ttl/model"
	"github.com/bsv-blockchain/utxo-ttl/util"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"golang.org/x/sync/errgroup"
)

// Extraction is what the non-coinbase transactions of one block contribute to the ledger.
type Extraction struct {
	// Created holds a record for every output that is not provably unspendable.
	Created []*model.Record
	// Spent holds the outpoint referenced by every input.
	Spent []model.Outpoint
}

// Extractor turns the non-coinbase transactions of the block at height into an Extraction.
// Implementations return only once every transaction has been scanned.
type Extractor interface {
	Extract(ctx context.Context, height uint32, txs []*wire.MsgTx) (*Extraction, error)
}

// outputRecords appends a record for every output of txid that is not provably unspendable.
func outputRecords(height uint32, txid chainhash.Hash, outs []*wire.TxOut, category func([]byte) model.ScriptCategory, created []*model.Record) []*model.Record {
	for vout, out := range outs {
		if model.IsProvablyUnspendable(out.PkScript) {
			continue
		}

		created = append(created, &model.Record{
			Outpoint:      model.NewOutpoint(txid, uint32(vout)), //nolint:gosec // output count is bounded by block size
			Category:      category(out.PkScript),
			Amount:        out.Value,
			CreatedHeight: height,
		})
	}

	return created
}

// extractTx appends the records created by tx and the outpoints it spends.
func extractTx(height uint32, tx *wire.MsgTx, created []*model.Record, spent []model.Outpoint) ([]*model.Record, []model.Outpoint) {
	created = outputRecords(height, tx.TxHash(), tx.TxOut, model.ClassifyScript, created)

	for _, in := range tx.TxIn {
		spent = append(spent, model.OutpointFromWire(in.PreviousOutPoint))
	}

	return created, spent
}

// SequentialExtractor scans the transactions one after the other on the calling goroutine.
type SequentialExtractor struct{}

func (SequentialExtractor) Extract(ctx context.Context, height uint32, txs []*wire.MsgTx) (*Extraction, error) {
	e := &Extraction{}

	for _, tx := range txs {
		if err := ctx.Err(); err != nil {
			return nil, errors.NewContextCanceledError("extracting block %d", height, err)
		}

		e.Created, e.Spent = extractTx(height, tx, e.Created, e.Spent)
	}

	return e, nil
}

// ParallelExtractor spreads the transactions of a block over at most Workers goroutines.
// Each task scans a batch of BatchSize transactions into local buffers and appends them to the shared
// Extraction under a mutex. Extract waits for every task before returning.
type ParallelExtractor struct {
	Workers   int
	BatchSize int
}

const defaultExtractBatchSize = 64

func NewParallelExtractor(workers int) *ParallelExtractor {
	return &ParallelExtractor{
		Workers:   workers,
		BatchSize: defaultExtractBatchSize,
	}
}

func (p *ParallelExtractor) Extract(ctx context.Context, height uint32, txs []*wire.MsgTx) (*Extraction, error) {
	batchSize := p.BatchSize
	if batchSize <= 0 {
		batchSize = defaultExtractBatchSize
	}

	workers := p.Workers
	if workers <= 0 {
		workers = 1
	}

	var (
		mu sync.Mutex
		e  = &Extraction{}
	)

	g, gCtx := errgroup.WithContext(ctx)
	util.SafeSetLimit(g, workers)

	for start := 0; start < len(txs); start += batchSize {
		batch := txs[start:min(start+batchSize, len(txs))]

		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return errors.NewContextCanceledError("extracting block %d", height, err)
			}

			var (
				created []*model.Record
				spent   []model.Outpoint
			)

			for _, tx := range batch {
				created, spent = extractTx(height, tx, created, spent)
			}

			mu.Lock()
			e.Created = append(e.Created, created...)
			e.Spent = append(e.Spent, spent...)
			mu.Unlock()

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return e, nil
}
