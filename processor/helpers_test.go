// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package processor

import (
	"testing"

	"github.com/luxfi/crypto/bls"
	"github.com/luxfi/crypto/bls/signer/localsigner"
	"github.com/luxfi/database/memdb"
	"github.com/luxfi/ids"
	"github.com/luxfi/log"
	"github.com/luxfi/math/set"
	"github.com/luxfi/metric"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/quorum/chain"
	"github.com/luxfi/quorum/chain/chaintest"
	"github.com/luxfi/quorum/params"
	"github.com/luxfi/quorum/pool"
	"github.com/luxfi/quorum/store"
	"github.com/luxfi/quorum/types"
	"github.com/luxfi/quorum/verifier"
)

const testCommitteeSize = 4

func singleCommitteeParams() params.Params {
	return params.Params{
		Type:                     1,
		Name:                     "test-4",
		Size:                     testCommitteeSize,
		MinSize:                  3,
		Threshold:                3,
		DKGInterval:              24,
		DKGMiningWindowStart:     5,
		DKGMiningWindowEnd:       10,
		SigningActiveQuorumCount: 1,
	}
}

func rotatedCommitteeParams() params.Params {
	p := singleCommitteeParams()
	p.Type = 2
	p.Name = "test-4-rotated"
	p.SigningActiveQuorumCount = 2
	return p
}

func legacyForks() params.ForkSchedule {
	return params.ForkSchedule{
		RotationHeight:    params.NeverActive,
		BasicSchemeHeight: params.NeverActive,
	}
}

// testCommittee is a committee's BLS keys, generated per committee base
// block on first use.
type testCommittee struct {
	members []types.Member
	signers []*localsigner.LocalSigner
	quorum  *localsigner.LocalSigner
}

type testEnv struct {
	t          *testing.T
	registry   params.Registry
	forks      params.ForkSchedule
	chain      *chaintest.Chain
	store      *store.Store
	pool       *pool.Pool
	proc       *Processor
	relayed    []ids.ID
	committees map[ids.ID]*testCommittee
}

func newTestEnv(t *testing.T, forks params.ForkSchedule, paramsList ...params.Params) *testEnv {
	require := require.New(t)

	registry, err := params.NewRegistry(paramsList...)
	require.NoError(err)

	registerer := metric.NewRegistry()
	commitmentStore, err := store.New(memdb.New(), registerer, 64)
	require.NoError(err)
	commitmentPool, err := pool.New(log.NoLog{}, registerer)
	require.NoError(err)

	env := &testEnv{
		t:          t,
		registry:   registry,
		forks:      forks,
		chain:      chaintest.New(),
		store:      commitmentStore,
		pool:       commitmentPool,
		committees: make(map[ids.ID]*testCommittee),
	}

	memberSource := verifier.MemberSourceFunc(
		func(_ params.Params, committeeBlock *chain.BlockIndex, _ uint16) ([]types.Member, error) {
			return env.committeeAt(committeeBlock.Hash).members, nil
		},
	)

	env.proc, err = New(Config{
		Log:        log.NoLog{},
		Registerer: registerer,
		Registry:   registry,
		Forks:      forks,
		Chain:      env.chain,
		Store:      commitmentStore,
		Pool:       commitmentPool,
		Verifier:   verifier.NewBLS(registry, memberSource),
		Relayer: RelayerFunc(func(hash ids.ID) {
			env.relayed = append(env.relayed, hash)
		}),
	})
	require.NoError(err)
	return env
}

func (env *testEnv) committeeAt(quorumHash ids.ID) *testCommittee {
	if c, ok := env.committees[quorumHash]; ok {
		return c
	}
	require := require.New(env.t)

	c := &testCommittee{
		members: make([]types.Member, testCommitteeSize),
		signers: make([]*localsigner.LocalSigner, testCommitteeSize),
	}
	for i := range c.members {
		sk, err := localsigner.New()
		require.NoError(err)
		c.signers[i] = sk
		c.members[i] = types.Member{
			ID:        ids.GenerateTestID(),
			PublicKey: bls.PublicKeyToCompressedBytes(sk.PublicKey()),
		}
	}
	quorum, err := localsigner.New()
	require.NoError(err)
	c.quorum = quorum

	env.committees[quorumHash] = c
	return c
}

// signedCommitment builds a fully-signed commitment for the committee elected
// at [base], with all members valid and signing.
func (env *testEnv) signedCommitment(p params.Params, base *chain.BlockIndex, index uint16, version uint16) *types.FinalCommitment {
	require := require.New(env.t)
	c := env.committeeAt(base.Hash)

	bits := set.NewBits()
	for i := range c.members {
		bits.Add(i)
	}
	bitset := types.BitsetFromBits(bits, p.Size)

	fc := &types.FinalCommitment{
		Version:                version,
		QuorumType:             p.Type,
		QuorumHash:             base.Hash,
		QuorumIndex:            index,
		Signers:                bitset,
		ValidMembers:           append([]byte(nil), bitset...),
		PublicKey:              bls.PublicKeyToCompressedBytes(c.quorum.PublicKey()),
		VerificationVectorHash: ids.GenerateTestID(),
	}

	digest := fc.SigningDigest()
	quorumSig, err := c.quorum.Sign(digest[:])
	require.NoError(err)
	fc.QuorumSig = bls.SignatureToBytes(quorumSig)

	sigs := make([]*bls.Signature, len(c.signers))
	for i, sk := range c.signers {
		sig, err := sk.Sign(digest[:])
		require.NoError(err)
		sigs[i] = sig
	}
	aggSig, err := bls.AggregateSignatures(sigs)
	require.NoError(err)
	fc.MembersSig = bls.SignatureToBytes(aggSig)

	return fc
}

// resignCommitment re-signs [fc] after a signer-set change, aggregating the
// member signatures of [signerIdxs] only.
func (env *testEnv) resignCommitment(base *chain.BlockIndex, fc *types.FinalCommitment, signerIdxs []int) {
	require := require.New(env.t)
	c := env.committeeAt(base.Hash)

	digest := fc.SigningDigest()
	quorumSig, err := c.quorum.Sign(digest[:])
	require.NoError(err)
	fc.QuorumSig = bls.SignatureToBytes(quorumSig)

	sigs := make([]*bls.Signature, len(signerIdxs))
	for i, idx := range signerIdxs {
		sig, err := c.signers[idx].Sign(digest[:])
		require.NoError(err)
		sigs[i] = sig
	}
	aggSig, err := bls.AggregateSignatures(sigs)
	require.NoError(err)
	fc.MembersSig = bls.SignatureToBytes(aggSig)
}

// blockWith wraps each commitment in a transaction for a block at [height].
func (env *testEnv) blockWith(height uint64, fcs ...*types.FinalCommitment) *types.Block {
	require := require.New(env.t)

	blk := &types.Block{}
	for _, fc := range fcs {
		tx, err := types.NewCommitmentTx(height, fc)
		require.NoError(err)
		blk.Txs = append(blk.Txs, tx)
	}
	return blk
}

// nextBlock extends the chain by one block and returns its index.
func (env *testEnv) nextBlock() *chain.BlockIndex {
	return env.chain.Extend(1)[0]
}

func requireRejected(t *testing.T, err error, reason string) {
	t.Helper()
	got, ok := RejectReason(err)
	require.True(t, ok, "expected a consensus rejection, got %v", err)
	require.Equal(t, reason, got)
}
