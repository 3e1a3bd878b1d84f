// Package chainstats aggregates input and output counts over the active chain.
package chainstats

import (
	"context"
	"fmt"
	"strings"

	"github.com/bsv-blockchain/utxo-ttl/settings"
	"github.com/bsv-blockchain/utxo-ttl/stores/chain"
	"github.com/bsv-blockchain/utxo-ttl/ulogger"
)

const defaultProgressInterval = 10_000

// Summary holds the totals of a collection run. Coinbase transactions are not counted.
type Summary struct {
	TipHeight          uint32
	Blocks             uint64
	TotalInputs        uint64
	TotalOutputs       uint64
	AvgOutputsPerBlock uint64
	MaxOutputsInBlock  uint64
}

func (s *Summary) String() string {
	var sb strings.Builder

	sb.WriteString("=== Summary =============================\n")
	fmt.Fprintf(&sb, "Chain height:        %d\n", s.TipHeight)
	fmt.Fprintf(&sb, "Total inputs:        %d\n", s.TotalInputs)
	fmt.Fprintf(&sb, "Total outputs:       %d\n", s.TotalOutputs)
	fmt.Fprintf(&sb, "Avg outputs per blk: %d\n", s.AvgOutputsPerBlock)
	fmt.Fprintf(&sb, "Max outputs in blk:  %d\n", s.MaxOutputsInBlock)

	return sb.String()
}

type Collector struct {
	logger   ulogger.Logger
	settings *settings.Settings
	source   chain.Source
}

func New(logger ulogger.Logger, tSettings *settings.Settings, source chain.Source) *Collector {
	return &Collector{
		logger:   logger,
		settings: tSettings,
		source:   source,
	}
}

// Collect reads every block from genesis to the tip.
func (c *Collector) Collect(ctx context.Context) (*Summary, error) {
	tip, err := c.source.ActiveChainHeight(ctx)
	if err != nil {
		return nil, err
	}

	interval := uint32(defaultProgressInterval)
	if c.settings.Stats.ProgressInterval > 0 {
		interval = uint32(c.settings.Stats.ProgressInterval) //nolint:gosec // positive
	}

	s := &Summary{TipHeight: tip}

	for h := uint64(0); h <= uint64(tip); h++ {
		height := uint32(h) //nolint:gosec // bounded by tip

		if height%interval == 0 {
			c.logger.Infof("%d / %d", height, tip)
		}

		block, err := c.source.GetBlockByHeight(ctx, height)
		if err != nil {
			return nil, err
		}

		var blockOutputs uint64

		for _, tx := range block.NonCoinbase() {
			blockOutputs += uint64(len(tx.TxOut))
			s.TotalInputs += uint64(len(tx.TxIn))
		}

		s.TotalOutputs += blockOutputs
		s.MaxOutputsInBlock = max(s.MaxOutputsInBlock, blockOutputs)
		s.Blocks++
	}

	if s.Blocks > 0 {
		s.AvgOutputsPerBlock = s.TotalOutputs / s.Blocks
	}

	return s, nil
}
