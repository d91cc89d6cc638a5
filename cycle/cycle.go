// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package cycle computes DKG cycle boundaries, mining windows, and committee
// base blocks from committee parameters.
package cycle

import (
	"github.com/luxfi/quorum/chain"
	"github.com/luxfi/quorum/params"
)

// Start returns the first height of the cycle containing [height].
func Start(p params.Params, height uint64) uint64 {
	return height - height%p.DKGInterval
}

// MiningWindow returns the inclusive height range within the cycle containing
// [height] during which commitments for that cycle may be mined.
func MiningWindow(p params.Params, height uint64) (uint64, uint64) {
	start := Start(p, height)
	return start + p.DKGMiningWindowStart, start + p.DKGMiningWindowEnd
}

// IsMiningPhase reports whether a block at [height] is inside the mining
// window of its cycle.
func IsMiningPhase(p params.Params, height uint64) bool {
	begin, end := MiningWindow(p, height)
	return height >= begin && height <= end
}

// CommitteeHeight returns the height of the committee base block for the
// committee at [index] of the cycle containing [height].
func CommitteeHeight(p params.Params, height uint64, index uint16) uint64 {
	return Start(p, height) + uint64(index)
}

// CommitteeBlock resolves the committee base block for [height] and [index]
// against [tip], the last block already connected. It returns nil when the
// base block is not yet known, which happens for index 0 on the first block
// of a cycle.
func CommitteeBlock(p params.Params, tip *chain.BlockIndex, height uint64, index uint16) *chain.BlockIndex {
	return tip.Ancestor(CommitteeHeight(p, height, index))
}

// ActiveCommitteeCount returns how many committees of type [p] run
// concurrently under [rotation].
func ActiveCommitteeCount(p params.Params, rotation bool) int {
	if rotation {
		return p.SigningActiveQuorumCount
	}
	return 1
}

// RequiredCommitments returns how many commitments of type [p] a block at
// [height] on top of [tip] must carry. Outside the mining window the answer
// is zero. Inside it, one commitment is required per active committee whose
// base block is known and for which [hasMined] is false.
func RequiredCommitments(
	p params.Params,
	tip *chain.BlockIndex,
	height uint64,
	rotation bool,
	hasMined func(committeeBlock *chain.BlockIndex) bool,
) int {
	if !IsMiningPhase(p, height) {
		return 0
	}
	required := 0
	for index := 0; index < ActiveCommitteeCount(p, rotation); index++ {
		base := CommitteeBlock(p, tip, height, uint16(index))
		if base != nil && !hasMined(base) {
			required++
		}
	}
	return required
}
