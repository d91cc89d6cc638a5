// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package processor

import (
	"fmt"

	"github.com/luxfi/log"

	"github.com/luxfi/quorum/chain"
	"github.com/luxfi/quorum/types"
)

// Replay rebuilds the commitment store from the active chain when the
// processed-block marker does not match the tip, e.g. after a crash or an
// upgrade that changed the store format. [readBlock] loads block bodies and
// must fail for blocks that were pruned; replay cannot proceed past a pruned
// block.
func (p *Processor) Replay(readBlock func(*chain.BlockIndex) (*types.Block, error)) error {
	p.lock.Lock()
	defer p.lock.Unlock()

	tip := p.chain.Tip()
	if tip == nil {
		return nil
	}
	marker, ok, err := p.store.LastProcessedBlock()
	if err != nil {
		return err
	}
	if ok && marker == tip.Hash {
		return nil
	}

	p.log.Info("replaying commitments",
		log.Uint64("fromHeight", p.forks.SubsystemHeight),
		log.Uint64("tipHeight", tip.Height),
	)

	for height := p.forks.SubsystemHeight; height <= tip.Height; height++ {
		idx, ok := p.chain.AtHeight(height)
		if !ok {
			return fmt.Errorf("active chain has no block at height %d", height)
		}
		if err := p.replayBlock(readBlock, idx); err != nil {
			p.store.Abort()
			return fmt.Errorf("replaying block %s at height %d: %w", idx.Hash, height, err)
		}
		if err := p.store.Commit(); err != nil {
			return err
		}
	}

	p.log.Info("replay complete", log.Uint64("tipHeight", tip.Height))
	return nil
}

func (p *Processor) replayBlock(readBlock func(*chain.BlockIndex) (*types.Block, error), idx *chain.BlockIndex) error {
	blk, err := readBlock(idx)
	if err != nil {
		return err
	}

	found, err := p.extractCommitments(blk, idx, p.forks.At(idx.Height))
	if err != nil {
		return err
	}
	for _, t := range p.registry.Types() {
		for _, fc := range found[t] {
			if fc.IsNull() {
				continue
			}
			base, ok := p.chain.Lookup(fc.QuorumHash)
			if !ok {
				return fmt.Errorf("unknown committee block %s", fc.QuorumHash)
			}
			if err := p.store.PutCommitment(fc, idx.Hash, idx.Height, base.Height); err != nil {
				return err
			}
		}
	}
	return p.store.SetLastProcessedBlock(idx.Hash)
}
