// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package processor

import (
	"fmt"

	"github.com/luxfi/quorum/cycle"
	"github.com/luxfi/quorum/params"
	"github.com/luxfi/quorum/types"
)

// MineableCommitments returns the commitments of type [t] a block mined at
// [height] on the current chain should carry: the best pooled commitment per
// uncovered active committee, or a null commitment when none is pooled. An
// empty result means the block needs no commitments of this type.
func (p *Processor) MineableCommitments(t params.QuorumType, height uint64) ([]*types.FinalCommitment, error) {
	pm, ok := p.registry.Get(t)
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownCommitteeType, t)
	}

	tip := p.resolveTip(height)
	if tip == nil {
		return nil, nil
	}

	rules := p.forks.At(height)
	if !rules.SubsystemActive || !cycle.IsMiningPhase(pm, height) {
		return nil, nil
	}

	p.lock.Lock()
	defer p.lock.Unlock()

	// Rotation follows the previous block, like the count validation the
	// mined block will face.
	var (
		rotation = p.prevRotation(pm, height)
		version  = types.CommitmentVersion(rotation, rules.BasicScheme)
		ret      []*types.FinalCommitment
	)
	for index := 0; index < cycle.ActiveCommitteeCount(pm, rotation); index++ {
		base := cycle.CommitteeBlock(pm, tip, height, uint16(index))
		if base == nil {
			break
		}
		mined, err := p.store.HasCommitment(t, base.Hash)
		if err != nil {
			return nil, err
		}
		if mined {
			continue
		}

		if fc, ok := p.pool.Get(t, base.Hash, uint16(index)); ok {
			ret = append(ret, fc)
			continue
		}
		// Nothing pooled for this slot: the block still must carry a
		// commitment, so synthesize a null one.
		ret = append(ret, types.NewNullCommitment(pm, base.Hash, uint16(index), version))
	}
	return ret, nil
}

// MineableCommitmentTxs wraps MineableCommitments in ready-to-include
// transactions for a block at [height].
func (p *Processor) MineableCommitmentTxs(t params.QuorumType, height uint64) ([]*types.Tx, error) {
	commitments, err := p.MineableCommitments(t, height)
	if err != nil {
		return nil, err
	}
	txs := make([]*types.Tx, 0, len(commitments))
	for _, fc := range commitments {
		tx, err := types.NewCommitmentTx(height, fc)
		if err != nil {
			return nil, err
		}
		txs = append(txs, tx)
	}
	return txs, nil
}
