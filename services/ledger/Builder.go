// Package ledger builds the UTXO lifetime ledger by replaying the active chain in height order.
//
// For every block the builder extracts the creation records and spent outpoints of the non-coinbase
// transactions, then applies them to the store in three phases:
//
//	A: InsertIgnoring(creation records)
//	B: UpdateSpendHeight(spent outpoints, height)
//	C: InsertIgnoring(coinbase records, category CoinbaseOutput)
//
// Phases A and B only start once extraction of the whole block has finished, so an output created and
// spent inside the same block resolves no matter in which order its transactions were scanned.
package ledger

import (
	"context"
	"time"

	"github.com/bsv-blockchain/utxo-ttl/errors"
	"github.com/bsv-blockchain/utxo-ttl/model"
	"github.com/bsv-blockchain/utxo-ttl/settings"
	"github.com/bsv-blockchain/utxo-ttl/stores/chain"
	"github.com/bsv-blockchain/utxo-ttl/stores/ledger"
	"github.com/bsv-blockchain/utxo-ttl/ulogger"
	"github.com/btcsuite/btcd/wire"
	"github.com/looplab/fsm"
)

const defaultProgressInterval = 100

type Builder struct {
	logger     ulogger.Logger
	settings   *settings.Settings
	store      ledger.Store
	extractor  Extractor
	checkpoint *Checkpoint
	stopHeight *uint32

	fsm        *fsm.FSM
	nextHeight uint32
}

type Option func(*Builder)

// WithExtractor replaces the extraction strategy chosen from settings.
func WithExtractor(extractor Extractor) Option {
	return func(b *Builder) {
		b.extractor = extractor
	}
}

// WithCheckpoint makes the builder record every committed height in checkpoint.
func WithCheckpoint(checkpoint *Checkpoint) Option {
	return func(b *Builder) {
		b.checkpoint = checkpoint
	}
}

// WithStopHeight makes Run stop at height instead of the tip of the source.
func WithStopHeight(height uint32) Option {
	return func(b *Builder) {
		b.stopHeight = &height
	}
}

// NewBuilder creates a builder applying blocks to store. Without WithExtractor, a positive
// Ledger.Workers setting selects the ParallelExtractor, anything else the SequentialExtractor.
func NewBuilder(logger ulogger.Logger, tSettings *settings.Settings, store ledger.Store, opts ...Option) *Builder {
	initPrometheusMetrics()

	b := &Builder{
		logger:   logger,
		settings: tSettings,
		store:    store,
	}

	if tSettings.Ledger.Workers > 0 {
		b.extractor = NewParallelExtractor(tSettings.Ledger.Workers)
	} else {
		b.extractor = SequentialExtractor{}
	}

	for _, opt := range opts {
		opt(b)
	}

	b.fsm = b.newFiniteStateMachine()

	return b
}

// State returns the current state of the builder, one of the State* constants.
func (b *Builder) State() string {
	return b.fsm.Current()
}

// NextHeight returns the height ProcessBlock expects next.
func (b *Builder) NextHeight() uint32 {
	return b.nextHeight
}

// Start moves the builder to PROCESSING, expecting fromHeight as the first block.
func (b *Builder) Start(ctx context.Context, fromHeight uint32) error {
	if err := b.fsm.Event(context.WithoutCancel(ctx), EventStart); err != nil {
		return errors.NewServiceError("cannot start ledger builder in state %s", b.State(), err)
	}

	b.nextHeight = fromHeight

	return nil
}

// Finish moves the builder to DONE.
func (b *Builder) Finish(ctx context.Context) error {
	if err := b.fsm.Event(context.WithoutCancel(ctx), EventFinish); err != nil {
		return errors.NewServiceError("cannot finish ledger builder in state %s", b.State(), err)
	}

	return nil
}

// fail moves the builder to FAILED. Transitions ignore cancellation of ctx, which is often the cause.
func (b *Builder) fail(ctx context.Context, cause error) {
	if err := b.fsm.Event(context.WithoutCancel(ctx), EventFail); err != nil {
		b.logger.Debugf("[LedgerBuilder] could not move to %s: %v", StateFailed, err)
	}

	b.logger.Errorf("[LedgerBuilder] failed at height %d: %v", b.nextHeight, cause)
}

// ProcessBlock applies block to the store. The block must be at exactly the next expected height.
// Any error moves the builder to FAILED; the store then holds every block up to the last one that
// returned without error, plus whichever phases of the failing block committed.
func (b *Builder) ProcessBlock(ctx context.Context, block *model.Block) error {
	if !b.fsm.Is(StateProcessing) {
		return errors.NewServiceNotStartedError("ledger builder is %s, not %s", b.State(), StateProcessing)
	}

	if err := b.processBlock(ctx, block); err != nil {
		b.fail(ctx, err)
		return err
	}

	b.nextHeight++

	return nil
}

func (b *Builder) processBlock(ctx context.Context, block *model.Block) error {
	if block.Height != b.nextHeight {
		return errors.NewBlockInvalidError("block %s has height %d, expected %d", block.Hash, block.Height, b.nextHeight)
	}

	coinbase, err := block.Coinbase()
	if err != nil {
		return err
	}

	start := time.Now()

	extraction, err := b.extractor.Extract(ctx, block.Height, block.NonCoinbase())
	if err != nil {
		return err
	}

	start = observePhase("extract", start)

	if err = b.store.InsertIgnoring(ctx, extraction.Created); err != nil {
		return err
	}

	start = observePhase("insert", start)

	if err = b.store.UpdateSpendHeight(ctx, extraction.Spent, block.Height); err != nil {
		return err
	}

	start = observePhase("update", start)

	coinbaseRecords := CoinbaseRecords(block.Height, coinbase)

	if err = b.store.InsertIgnoring(ctx, coinbaseRecords); err != nil {
		return err
	}

	observePhase("coinbase", start)

	prometheusLedgerBlocks.Inc()
	prometheusLedgerHeight.Set(float64(block.Height))
	prometheusLedgerCreated.Add(float64(len(extraction.Created)))
	prometheusLedgerSpent.Add(float64(len(extraction.Spent)))
	prometheusLedgerCoinbaseCreated.Add(float64(len(coinbaseRecords)))

	if b.checkpoint != nil {
		if err = b.checkpoint.Write(block.Height); err != nil {
			return err
		}
	}

	return nil
}

func observePhase(phase string, start time.Time) time.Time {
	now := time.Now()
	prometheusLedgerPhaseDuration.WithLabelValues(phase).Observe(now.Sub(start).Seconds())

	return now
}

// CoinbaseRecords returns a record of category CoinbaseOutput for every output of coinbase that is
// not provably unspendable.
func CoinbaseRecords(height uint32, coinbase *wire.MsgTx) []*model.Record {
	return outputRecords(height, coinbase.TxHash(), coinbase.TxOut, coinbaseCategory, nil)
}

func coinbaseCategory([]byte) model.ScriptCategory {
	return model.ScriptCoinbaseOutput
}

// Run replays fromHeight up to the tip of source (or the stop height) through ProcessBlock.
// It returns the height of the last block it committed; committed is false when it committed none.
func (b *Builder) Run(ctx context.Context, source chain.Source, fromHeight uint32) (last uint32, committed bool, err error) {
	tip, err := source.ActiveChainHeight(ctx)
	if err != nil {
		return 0, false, err
	}

	stop := tip
	if b.stopHeight != nil && *b.stopHeight < stop {
		stop = *b.stopHeight
	}

	if err = b.Start(ctx, fromHeight); err != nil {
		return 0, false, err
	}

	interval := b.settings.Ledger.ProgressInterval
	if interval <= 0 {
		interval = defaultProgressInterval
	}

	if fromHeight > stop {
		b.logger.Infof("[LedgerBuilder] nothing to do, start height %d is above %d", fromHeight, stop)
		return 0, false, b.Finish(ctx)
	}

	b.logger.Infof("[LedgerBuilder] replaying heights %d to %d (tip %d)", fromHeight, stop, tip)

	for h := uint64(fromHeight); h <= uint64(stop); h++ {
		height := uint32(h) //nolint:gosec // bounded by stop

		block, err := source.GetBlockByHeight(ctx, height)
		if err != nil {
			b.fail(ctx, err)
			return last, committed, err
		}

		if err = b.ProcessBlock(ctx, block); err != nil {
			return last, committed, err
		}

		last, committed = height, true

		if height%uint32(interval) == 0 { //nolint:gosec // interval is positive
			b.logger.Infof("%d / %d => %s", height, tip, block.Hash)
		}
	}

	return last, committed, b.Finish(ctx)
}
