// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package service

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
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
	"github.com/luxfi/quorum/processor"
	"github.com/luxfi/quorum/store"
	"github.com/luxfi/quorum/types"
	"github.com/luxfi/quorum/verifier"

	luxjson "github.com/luxfi/quorum/utils/json"
)

func testParams() params.Params {
	return params.Params{
		Type:                     1,
		Name:                     "test-4",
		Size:                     4,
		MinSize:                  3,
		Threshold:                3,
		DKGInterval:              24,
		DKGMiningWindowStart:     5,
		DKGMiningWindowEnd:       10,
		SigningActiveQuorumCount: 1,
	}
}

type serviceEnv struct {
	chain    *chaintest.Chain
	proc     *processor.Processor
	service  *Service
	gatherer metric.Gatherer
}

// newServiceEnv builds a processor over an in-memory chain and mines one
// commitment for the committee elected at height 24.
func newServiceEnv(t *testing.T) (*serviceEnv, *types.FinalCommitment) {
	require := require.New(t)
	p := testParams()

	registry, err := params.NewRegistry(p)
	require.NoError(err)
	forks := params.ForkSchedule{
		RotationHeight:    params.NeverActive,
		BasicSchemeHeight: params.NeverActive,
	}

	registerer := metric.NewRegistry()
	commitmentStore, err := store.New(memdb.New(), registerer, 64)
	require.NoError(err)
	commitmentPool, err := pool.New(log.NoLog{}, registerer)
	require.NoError(err)

	testChain := chaintest.New()
	members := make([]types.Member, p.Size)
	for i := range members {
		members[i] = types.Member{
			ID:        ids.GenerateTestID(),
			PublicKey: make([]byte, bls.PublicKeyLen),
		}
	}
	memberSource := verifier.MemberSourceFunc(
		func(params.Params, *chain.BlockIndex, uint16) ([]types.Member, error) {
			return members, nil
		},
	)

	proc, err := processor.New(processor.Config{
		Log:        log.NoLog{},
		Registerer: registerer,
		Registry:   registry,
		Forks:      forks,
		Chain:      testChain,
		Store:      commitmentStore,
		Pool:       commitmentPool,
		Verifier:   verifier.NewBLS(registry, memberSource),
	})
	require.NoError(err)

	// Signatures are not checked below, but the committee key must parse.
	quorumKey, err := localsigner.New()
	require.NoError(err)

	testChain.ExtendTo(28)
	base, ok := testChain.AtHeight(24)
	require.True(ok)

	bits := set.NewBits(0, 1, 2, 3)
	bitset := types.BitsetFromBits(bits, p.Size)
	fc := &types.FinalCommitment{
		Version:                types.CommitmentVersionLegacy,
		QuorumType:             p.Type,
		QuorumHash:             base.Hash,
		Signers:                bitset,
		ValidMembers:           append([]byte(nil), bitset...),
		PublicKey:              bls.PublicKeyToCompressedBytes(quorumKey.PublicKey()),
		VerificationVectorHash: ids.GenerateTestID(),
		QuorumSig:              make([]byte, bls.SignatureLen),
		MembersSig:             make([]byte, bls.SignatureLen),
	}

	idx := testChain.Extend(1)[0] // height 29
	tx, err := types.NewCommitmentTx(idx.Height, fc)
	require.NoError(err)
	require.NoError(proc.ProcessBlock(&types.Block{Txs: []*types.Tx{tx}}, idx, false, false))

	return &serviceEnv{
		chain: testChain,
		proc:  proc,
		service: &Service{
			log:  log.NoLog{},
			view: testChain,
			proc: proc,
		},
		gatherer: registerer,
	}, fc
}

func TestServiceHasMinedCommitment(t *testing.T) {
	require := require.New(t)
	env, fc := newServiceEnv(t)

	req := httptest.NewRequest(http.MethodPost, "/", nil)

	reply := &HasMinedCommitmentReply{}
	require.NoError(env.service.HasMinedCommitment(req, &CommitmentArgs{
		CommitteeType: luxjson.Uint8(fc.QuorumType),
		QuorumHash:    fc.QuorumHash,
	}, reply))
	require.True(reply.Mined)

	reply = &HasMinedCommitmentReply{}
	require.NoError(env.service.HasMinedCommitment(req, &CommitmentArgs{
		CommitteeType: luxjson.Uint8(fc.QuorumType),
		QuorumHash:    ids.GenerateTestID(),
	}, reply))
	require.False(reply.Mined)
}

func TestServiceGetMinedCommitment(t *testing.T) {
	require := require.New(t)
	env, fc := newServiceEnv(t)

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	reply := &GetMinedCommitmentReply{}
	require.NoError(env.service.GetMinedCommitment(req, &CommitmentArgs{
		CommitteeType: luxjson.Uint8(fc.QuorumType),
		QuorumHash:    fc.QuorumHash,
	}, reply))

	require.Equal(fc, reply.Commitment)
	require.Equal(luxjson.Uint64(29), reply.MinedHeight)
	require.Equal(luxjson.Uint64(24), reply.CommitteeHeight)

	err := env.service.GetMinedCommitment(req, &CommitmentArgs{
		CommitteeType: luxjson.Uint8(fc.QuorumType),
		QuorumHash:    ids.GenerateTestID(),
	}, &GetMinedCommitmentReply{})
	require.Error(err)
}

func TestServiceListMinedCommitments(t *testing.T) {
	require := require.New(t)
	env, fc := newServiceEnv(t)

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	reply := &ListMinedCommitmentsReply{}
	require.NoError(env.service.ListMinedCommitments(req, &ListMinedCommitmentsArgs{
		CommitteeType: luxjson.Uint8(fc.QuorumType),
		MaxCount:      10,
	}, reply))

	require.Equal([]MinedCommittee{
		{QuorumHash: fc.QuorumHash, Height: 24},
	}, reply.Committees)
}

func TestServiceGetMineableCommitments(t *testing.T) {
	require := require.New(t)
	env, fc := newServiceEnv(t)

	// The only active committee is covered, so the next block carries
	// nothing.
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	reply := &GetMineableCommitmentsReply{}
	require.NoError(env.service.GetMineableCommitments(req, &GetMineableCommitmentsArgs{
		CommitteeType: luxjson.Uint8(fc.QuorumType),
		Height:        30,
	}, reply))
	require.Empty(reply.Commitments)
}

func TestServiceGetCycle(t *testing.T) {
	require := require.New(t)
	env, fc := newServiceEnv(t)

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	reply := &GetCycleReply{}
	require.NoError(env.service.GetCycle(req, &GetCycleArgs{
		CommitteeType: luxjson.Uint8(fc.QuorumType),
		Height:        29,
	}, reply))

	require.Equal(luxjson.Uint64(24), reply.Start)
	require.Equal(luxjson.Uint64(29), reply.MiningWindowStart)
	require.Equal(luxjson.Uint64(34), reply.MiningWindowEnd)
}

func TestRouter(t *testing.T) {
	require := require.New(t)
	env, fc := newServiceEnv(t)

	router, err := NewRouter(log.NoLog{}, env.chain, env.proc, env.gatherer)
	require.NoError(err)
	srv := httptest.NewServer(router)
	defer srv.Close()

	body, err := json.Marshal(map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "quorum.hasMinedCommitment",
		"params": map[string]interface{}{
			"committeeType": luxjson.Uint8(fc.QuorumType),
			"quorumHash":    fc.QuorumHash,
		},
	})
	require.NoError(err)

	resp, err := http.Post(srv.URL+"/ext/quorum", "application/json", bytes.NewReader(body))
	require.NoError(err)
	defer resp.Body.Close()
	require.Equal(http.StatusOK, resp.StatusCode)

	var rpcReply struct {
		Result HasMinedCommitmentReply `json:"result"`
	}
	require.NoError(json.NewDecoder(resp.Body).Decode(&rpcReply))
	require.True(rpcReply.Result.Mined)

	metrics, err := http.Get(srv.URL + "/ext/metrics")
	require.NoError(err)
	defer metrics.Body.Close()
	require.Equal(http.StatusOK, metrics.StatusCode)
}
