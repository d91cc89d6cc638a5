// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package chain

import (
	"testing"

	"github.com/luxfi/ids"
	"github.com/stretchr/testify/require"
)

func TestAncestor(t *testing.T) {
	require := require.New(t)

	var blocks []*BlockIndex
	var parent *BlockIndex
	for h := uint64(0); h < 10; h++ {
		blk := &BlockIndex{
			Hash:   ids.GenerateTestID(),
			Height: h,
			Parent: parent,
		}
		blocks = append(blocks, blk)
		parent = blk
	}
	tip := blocks[9]

	require.Equal(tip, tip.Ancestor(9))
	require.Equal(blocks[4], tip.Ancestor(4))
	require.Equal(blocks[0], tip.Ancestor(0))
	require.Nil(tip.Ancestor(10))

	var nilIdx *BlockIndex
	require.Nil(nilIdx.Ancestor(0))
}
