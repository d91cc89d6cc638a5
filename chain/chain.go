// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package chain exposes the minimal view of the block index that commitment
// processing needs.
package chain

import "github.com/luxfi/ids"

// BlockIndex is one entry of the in-memory block index. Entries form a tree
// through parent links; the genesis entry has a nil parent.
type BlockIndex struct {
	Hash   ids.ID
	Height uint64
	Parent *BlockIndex
}

// Ancestor walks parent links to the entry at [height]. It returns nil when
// [height] is above the entry's own height or the walk runs past genesis.
func (b *BlockIndex) Ancestor(height uint64) *BlockIndex {
	if b == nil || height > b.Height {
		return nil
	}
	cur := b
	for cur != nil && cur.Height > height {
		cur = cur.Parent
	}
	return cur
}

// View is a read-only view of the block index and the active chain.
type View interface {
	// Tip returns the last block of the active chain, or nil before any
	// block is accepted.
	Tip() *BlockIndex

	// Lookup returns the indexed block with [hash], whether or not it is on
	// the active chain.
	Lookup(hash ids.ID) (*BlockIndex, bool)

	// AtHeight returns the active-chain block at [height].
	AtHeight(height uint64) (*BlockIndex, bool)

	// Contains reports whether [b] is on the active chain.
	Contains(b *BlockIndex) bool
}
