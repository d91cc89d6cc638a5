// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package processor

import (
	"fmt"

	"github.com/luxfi/ids"

	"github.com/luxfi/quorum/chain"
	"github.com/luxfi/quorum/cycle"
	"github.com/luxfi/quorum/params"
	"github.com/luxfi/quorum/store"
	"github.com/luxfi/quorum/types"
)

// IndexedCommitteeBlock pairs a committee index with its base block.
type IndexedCommitteeBlock struct {
	Index uint16
	Block *chain.BlockIndex
}

// HasMinedCommitment reports whether a commitment for the committee elected
// at [quorumHash] has been mined.
func (p *Processor) HasMinedCommitment(t params.QuorumType, quorumHash ids.ID) (bool, error) {
	p.lock.Lock()
	defer p.lock.Unlock()

	return p.store.HasCommitment(t, quorumHash)
}

// GetMinedCommitment returns the mined commitment for the committee elected
// at [quorumHash], with the block that mined it.
func (p *Processor) GetMinedCommitment(t params.QuorumType, quorumHash ids.ID) (*store.Entry, error) {
	p.lock.Lock()
	defer p.lock.Unlock()

	return p.store.GetCommitment(t, quorumHash)
}

// HasMineableCommitment reports whether the pool holds a commitment with the
// given commitment hash.
func (p *Processor) HasMineableCommitment(commitmentHash ids.ID) bool {
	return p.pool.Has(commitmentHash)
}

// MineableCommitmentByHash returns the pooled commitment with the given
// commitment hash, typically to serve a network request for it.
func (p *Processor) MineableCommitmentByHash(commitmentHash ids.ID) (*types.FinalCommitment, bool) {
	return p.pool.ByHash(commitmentHash)
}

// MinedCommitteesUntil returns the base blocks of committees of type [t]
// whose commitments were mined at or below [idx], most recently mined first,
// up to [maxCount] entries.
func (p *Processor) MinedCommitteesUntil(t params.QuorumType, idx *chain.BlockIndex, maxCount int) ([]*chain.BlockIndex, error) {
	p.lock.Lock()
	heights, err := p.store.MinedCommitteeHeightsUntil(t, idx.Height, maxCount)
	p.lock.Unlock()
	if err != nil {
		return nil, err
	}
	return resolveCommitteeBlocks(idx, heights)
}

// LastMinedCommitteePerIndexUntil returns, for each active committee index of
// type [t], the base block of the most recent commitment mined at or below
// [idx], skipping the [cycleOffset] most recent matches per index. An offset
// of 0 gives the latest covered cycle, 1 the one before it, and so on.
// Indexes with no matching commitment are omitted.
func (p *Processor) LastMinedCommitteePerIndexUntil(t params.QuorumType, idx *chain.BlockIndex, cycleOffset int) ([]IndexedCommitteeBlock, error) {
	pm, ok := p.registry.Get(t)
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownCommitteeType, t)
	}

	p.lock.Lock()
	defer p.lock.Unlock()

	var ret []IndexedCommitteeBlock
	for index := 0; index < pm.SigningActiveQuorumCount; index++ {
		heights, err := p.store.MinedCommitteeHeightsByIndexUntil(t, uint16(index), idx.Height, cycleOffset+1)
		if err != nil {
			return nil, err
		}
		if len(heights) <= cycleOffset {
			continue
		}
		base := idx.Ancestor(heights[cycleOffset])
		if base == nil {
			return nil, fmt.Errorf("committee height %d above query block %d", heights[cycleOffset], idx.Height)
		}
		ret = append(ret, IndexedCommitteeBlock{
			Index: uint16(index),
			Block: base,
		})
	}
	return ret, nil
}

// MinedCommitteesIndexedUntil flattens the per-index history of type [t]
// cycle-major: the latest covered cycle first, within a cycle ordered by
// committee index, walking back until [maxCount] committees are collected or
// a cycle has no mined commitment at all.
func (p *Processor) MinedCommitteesIndexedUntil(t params.QuorumType, idx *chain.BlockIndex, maxCount int) ([]IndexedCommitteeBlock, error) {
	var ret []IndexedCommitteeBlock
	for offset := 0; len(ret) < maxCount; offset++ {
		entries, err := p.LastMinedCommitteePerIndexUntil(t, idx, offset)
		if err != nil {
			return nil, err
		}
		if len(entries) == 0 {
			break
		}
		for _, entry := range entries {
			if len(ret) == maxCount {
				break
			}
			ret = append(ret, entry)
		}
	}
	return ret, nil
}

// MinedAndActiveCommitteesUntil returns, per committee type, the base blocks
// of the committees that are active for signing as of [idx], most recent
// first.
func (p *Processor) MinedAndActiveCommitteesUntil(idx *chain.BlockIndex) (map[params.QuorumType][]*chain.BlockIndex, error) {
	rules := p.forks.At(idx.Height)

	ret := make(map[params.QuorumType][]*chain.BlockIndex)
	for _, pm := range p.registry.List() {
		if rules.Rotation(pm) {
			indexed, err := p.LastMinedCommitteePerIndexUntil(pm.Type, idx, 0)
			if err != nil {
				return nil, err
			}
			blocks := make([]*chain.BlockIndex, 0, len(indexed))
			for _, entry := range indexed {
				blocks = append(blocks, entry.Block)
			}
			ret[pm.Type] = blocks
			continue
		}
		blocks, err := p.MinedCommitteesUntil(pm.Type, idx, pm.SigningActiveQuorumCount)
		if err != nil {
			return nil, err
		}
		ret[pm.Type] = blocks
	}
	return ret, nil
}

// Cycle returns the DKG schedule position of [height] for committee type [t].
func (p *Processor) Cycle(t params.QuorumType, height uint64) (start uint64, miningBegin uint64, miningEnd uint64, err error) {
	pm, ok := p.registry.Get(t)
	if !ok {
		return 0, 0, 0, fmt.Errorf("%w: %d", ErrUnknownCommitteeType, t)
	}
	begin, end := cycle.MiningWindow(pm, height)
	return cycle.Start(pm, height), begin, end, nil
}

func resolveCommitteeBlocks(idx *chain.BlockIndex, heights []uint64) ([]*chain.BlockIndex, error) {
	blocks := make([]*chain.BlockIndex, 0, len(heights))
	for _, h := range heights {
		base := idx.Ancestor(h)
		if base == nil {
			return nil, fmt.Errorf("committee height %d above query block %d", h, idx.Height)
		}
		blocks = append(blocks, base)
	}
	return blocks, nil
}
