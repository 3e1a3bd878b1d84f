// Package chain defines where blocks come from: an ordered, forward-only view of the active chain
// that can be restarted at any height, genesis included.
package chain

import (
	"context"

	"github.com/bsv-blockchain/utxo-ttl/model"
)

type Source interface {
	// ActiveChainHeight returns the height of the tip of the active chain.
	ActiveChainHeight(ctx context.Context) (uint32, error)

	// GetBlockByHeight returns the active chain block at height, or an ERR_BLOCK_NOT_FOUND error
	// when height is above the tip.
	GetBlockByHeight(ctx context.Context, height uint32) (*model.Block, error)

	Close() error
}
