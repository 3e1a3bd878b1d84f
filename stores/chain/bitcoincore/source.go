// Package bitcoincore reads the active chain out of a stopped Bitcoin Core data directory: the tip from
// chainstate/, the block locations from blocks/index/ and the blocks themselves from blocks/blk*.dat.
package bitcoincore

import (
	"context"
	"path/filepath"

	"github.com/bsv-blockchain/utxo-ttl/errors"
	"github.com/bsv-blockchain/utxo-ttl/model"
	"github.com/bsv-blockchain/utxo-ttl/settings"
	"github.com/bsv-blockchain/utxo-ttl/ulogger"
)

const openBlockFiles = 8

type Source struct {
	logger ulogger.Logger
	index  *IndexDB
	files  *BlockFiles
	chain  []*BlockIndex
}

// New opens the data directory configured in tSettings.Ledger and resolves the active chain.
// The chain is fixed at open time, blocks the node connects later are not seen.
func New(ctx context.Context, logger ulogger.Logger, tSettings *settings.Settings) (*Source, error) {
	bitcoinDir := tSettings.Ledger.BitcoinDir
	if bitcoinDir == "" {
		return nil, errors.NewConfigurationError("ledger_bitcoinDir is not set")
	}

	blocksDir := tSettings.Ledger.BlocksDir
	if blocksDir == "" {
		blocksDir = filepath.Join(bitcoinDir, "blocks")
	}

	params := tSettings.ChainCfgParams
	if params == nil {
		return nil, errors.NewConfigurationError("chain params are not set")
	}

	tip, err := ChainstateTip(bitcoinDir)
	if err != nil {
		return nil, err
	}

	index, err := NewIndexDB(blocksDir)
	if err != nil {
		return nil, err
	}

	chain, err := index.ActiveChain(*tip)
	if err != nil {
		_ = index.Close()
		return nil, err
	}

	if chain[0].Hash != *params.GenesisHash {
		_ = index.Close()
		return nil, errors.NewConfigurationError("genesis block %s does not belong to %s", chain[0].Hash, params.Name)
	}

	if err = ctx.Err(); err != nil {
		_ = index.Close()
		return nil, errors.NewContextCanceledError("opening bitcoin core source", err)
	}

	files, err := NewBlockFiles(blocksDir, params.Net, openBlockFiles)
	if err != nil {
		_ = index.Close()
		return nil, err
	}

	logger.Infof("[bitcoincore] opened %s, active chain tip %s at height %d", bitcoinDir, tip, len(chain)-1)

	return &Source{
		logger: logger,
		index:  index,
		files:  files,
		chain:  chain,
	}, nil
}

func (s *Source) ActiveChainHeight(_ context.Context) (uint32, error) {
	return s.chain[len(s.chain)-1].Height, nil
}

func (s *Source) GetBlockByHeight(ctx context.Context, height uint32) (*model.Block, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.NewContextCanceledError("reading block %d", height, err)
	}

	if int(height) >= len(s.chain) {
		return nil, errors.NewBlockNotFoundError("height %d is above the tip %d", height, len(s.chain)-1)
	}

	bi := s.chain[height]
	if !bi.HasData() {
		return nil, errors.NewBlockNotFoundError("block %s at height %d has no data, is the node pruned?", bi.Hash, height)
	}

	msg, err := s.files.ReadBlock(bi.File, bi.DataPos)
	if err != nil {
		return nil, err
	}

	block := model.NewBlock(height, msg)
	if block.Hash != bi.Hash {
		return nil, errors.NewBlockError("block at %s:%d hashes to %s, index says %s", blockFileName(bi.File), bi.DataPos, block.Hash, bi.Hash)
	}

	return block, nil
}

func (s *Source) Close() error {
	return errors.Join(s.files.Close(), s.index.Close())
}
