// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package chaintest provides an in-memory block index for tests.
package chaintest

import (
	"github.com/luxfi/ids"

	"github.com/luxfi/quorum/chain"
)

var _ chain.View = (*Chain)(nil)

// Chain is a mutable in-memory chain. The zero value is unusable; use New,
// which installs a genesis block at height 0.
type Chain struct {
	byHash map[ids.ID]*chain.BlockIndex
	active []*chain.BlockIndex
}

func New() *Chain {
	genesis := &chain.BlockIndex{
		Hash:   ids.GenerateTestID(),
		Height: 0,
	}
	return &Chain{
		byHash: map[ids.ID]*chain.BlockIndex{genesis.Hash: genesis},
		active: []*chain.BlockIndex{genesis},
	}
}

// Extend appends [n] blocks to the active chain and returns them.
func (c *Chain) Extend(n int) []*chain.BlockIndex {
	added := make([]*chain.BlockIndex, 0, n)
	for i := 0; i < n; i++ {
		parent := c.active[len(c.active)-1]
		blk := &chain.BlockIndex{
			Hash:   ids.GenerateTestID(),
			Height: parent.Height + 1,
			Parent: parent,
		}
		c.byHash[blk.Hash] = blk
		c.active = append(c.active, blk)
		added = append(added, blk)
	}
	return added
}

// ExtendTo extends the active chain until its tip is at [height].
func (c *Chain) ExtendTo(height uint64) *chain.BlockIndex {
	for c.Tip().Height < height {
		c.Extend(1)
	}
	return c.Tip()
}

// Rewind disconnects the last [n] blocks from the active chain. The blocks
// stay in the index, matching a reorg where they become stale.
func (c *Chain) Rewind(n int) {
	if n >= len(c.active) {
		n = len(c.active) - 1 // keep genesis
	}
	c.active = c.active[:len(c.active)-n]
}

func (c *Chain) Tip() *chain.BlockIndex {
	if len(c.active) == 0 {
		return nil
	}
	return c.active[len(c.active)-1]
}

func (c *Chain) Lookup(hash ids.ID) (*chain.BlockIndex, bool) {
	blk, ok := c.byHash[hash]
	return blk, ok
}

func (c *Chain) AtHeight(height uint64) (*chain.BlockIndex, bool) {
	if height >= uint64(len(c.active)) {
		return nil, false
	}
	return c.active[height], true
}

func (c *Chain) Contains(b *chain.BlockIndex) bool {
	if b == nil || b.Height >= uint64(len(c.active)) {
		return false
	}
	return c.active[b.Height] == b
}
