// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package processor

import (
	"errors"
	"testing"

	"github.com/luxfi/database/memdb"
	"github.com/luxfi/ids"
	"github.com/luxfi/log"
	"github.com/luxfi/metric"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/quorum/chain"
	"github.com/luxfi/quorum/store"
	"github.com/luxfi/quorum/types"
)

func TestReplay(t *testing.T) {
	require := require.New(t)
	p := singleCommitteeParams()
	env := newTestEnv(t, legacyForks(), p)

	// Mine commitments in two cycles, recording each block body.
	blocks := make(map[ids.ID]*types.Block)

	env.chain.ExtendTo(28)
	base0, ok := env.chain.AtHeight(24)
	require.True(ok)
	idx0 := env.nextBlock() // height 29
	blk0 := env.blockWith(idx0.Height, env.signedCommitment(p, base0, 0, types.CommitmentVersionLegacy))
	blocks[idx0.Hash] = blk0
	require.NoError(env.proc.ProcessBlock(blk0, idx0, false, true))

	env.chain.ExtendTo(52)
	base1, ok := env.chain.AtHeight(48)
	require.True(ok)
	idx1 := env.nextBlock() // height 53
	blk1 := env.blockWith(idx1.Height, env.signedCommitment(p, base1, 0, types.CommitmentVersionLegacy))
	blocks[idx1.Hash] = blk1
	require.NoError(env.proc.ProcessBlock(blk1, idx1, false, true))

	readBlock := func(idx *chain.BlockIndex) (*types.Block, error) {
		if blk, ok := blocks[idx.Hash]; ok {
			return blk, nil
		}
		return &types.Block{}, nil
	}

	// A fresh store on the same chain has no marker, so Replay rebuilds it.
	fresh := env.withFreshStore()
	require.NoError(fresh.proc.Replay(readBlock))

	for _, base := range []*chain.BlockIndex{base0, base1} {
		mined, err := fresh.proc.HasMinedCommitment(p.Type, base.Hash)
		require.NoError(err)
		require.True(mined)
	}

	marker, ok, err := fresh.store.LastProcessedBlock()
	require.NoError(err)
	require.True(ok)
	require.Equal(env.chain.Tip().Hash, marker)

	// A second run is a no-op: the marker already matches the tip.
	require.NoError(fresh.proc.Replay(func(*chain.BlockIndex) (*types.Block, error) {
		t.Fatal("readBlock called on an up-to-date store")
		return nil, nil
	}))
}

func TestReplayPrunedBlock(t *testing.T) {
	require := require.New(t)
	p := singleCommitteeParams()
	env := newTestEnv(t, legacyForks(), p)
	env.chain.ExtendTo(10)

	errPruned := errors.New("block pruned")
	err := env.proc.Replay(func(idx *chain.BlockIndex) (*types.Block, error) {
		if idx.Height < 5 {
			return nil, errPruned
		}
		return &types.Block{}, nil
	})
	require.ErrorIs(err, errPruned)

	// Nothing was marked processed.
	_, ok, err := env.store.LastProcessedBlock()
	require.NoError(err)
	require.False(ok)
}

func TestReplayEmptyChain(t *testing.T) {
	p := singleCommitteeParams()
	env := newTestEnv(t, legacyForks(), p)
	env.proc.chain = headlessView{env.chain}

	require.NoError(t, env.proc.Replay(func(*chain.BlockIndex) (*types.Block, error) {
		t.Fatal("readBlock called with no tip")
		return nil, nil
	}))
}

// withFreshStore clones the environment around an empty store, as after a
// crash that lost the commitment database but not the block database.
func (env *testEnv) withFreshStore() *testEnv {
	require := require.New(env.t)

	registerer := metric.NewRegistry()
	freshStore, err := store.New(memdb.New(), registerer, 64)
	require.NoError(err)

	clone := *env
	clone.store = freshStore
	clone.proc, err = New(Config{
		Log:        log.NoLog{},
		Registerer: registerer,
		Registry:   env.registry,
		Forks:      env.forks,
		Chain:      env.chain,
		Store:      freshStore,
		Pool:       env.pool,
		Verifier:   env.proc.verifier,
	})
	require.NoError(err)
	return &clone
}
