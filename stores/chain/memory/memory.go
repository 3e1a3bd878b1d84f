// Package memory is a chain.Source over blocks held in memory, used by tests and small replays.
package memory

import (
	"context"
	"sync"

	safeconversion "github.com/bsv-blockchain/go-safe-conversion"
	"github.com/bsv-blockchain/utxo-ttl/errors"
	"github.com/bsv-blockchain/utxo-ttl/model"
	"github.com/btcsuite/btcd/wire"
)

type Source struct {
	mu     sync.RWMutex
	blocks []*wire.MsgBlock
}

// New returns a source whose block at height i is blocks[i].
func New(blocks ...*wire.MsgBlock) *Source {
	return &Source{blocks: blocks}
}

// Append connects block on top of the current tip.
func (s *Source) Append(block *wire.MsgBlock) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.blocks = append(s.blocks, block)
}

func (s *Source) ActiveChainHeight(_ context.Context) (uint32, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.blocks) == 0 {
		return 0, errors.NewBlockNotFoundError("chain is empty")
	}

	return safeconversion.IntToUint32(len(s.blocks) - 1)
}

func (s *Source) GetBlockByHeight(ctx context.Context, height uint32) (*model.Block, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.NewContextCanceledError("reading block %d", height, err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if int(height) >= len(s.blocks) {
		return nil, errors.NewBlockNotFoundError("height %d is above the tip", height)
	}

	return model.NewBlock(height, s.blocks[height]), nil
}

func (s *Source) Close() error {
	return nil
}
