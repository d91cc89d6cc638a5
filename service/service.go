// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package service exposes a read-only JSON-RPC surface over the commitment
// processor. It never mutates chain or store state.
package service

import (
	"net/http"

	"github.com/gorilla/rpc/v2"

	"github.com/luxfi/ids"
	"github.com/luxfi/log"

	"github.com/luxfi/quorum/chain"
	"github.com/luxfi/quorum/params"
	"github.com/luxfi/quorum/processor"
	"github.com/luxfi/quorum/types"
	"github.com/luxfi/quorum/utils/json"
)

const Name = "quorum"

type Service struct {
	log  log.Logger
	view chain.View
	proc *processor.Processor
}

// NewService returns an HTTP handler serving the commitment query API under
// the "quorum" namespace.
func NewService(log log.Logger, view chain.View, proc *processor.Processor) (http.Handler, error) {
	server := rpc.NewServer()
	codec := json.NewCodec()
	server.RegisterCodec(codec, "application/json")
	server.RegisterCodec(codec, "application/json;charset=UTF-8")
	return server, server.RegisterService(
		&Service{
			log:  log,
			view: view,
			proc: proc,
		},
		Name,
	)
}

type CommitmentArgs struct {
	CommitteeType json.Uint8 `json:"committeeType"`
	QuorumHash    ids.ID     `json:"quorumHash"`
}

type HasMinedCommitmentReply struct {
	Mined bool `json:"mined"`
}

// HasMinedCommitment reports whether a commitment for the committee elected
// at [args.QuorumHash] has been mined on the active chain.
func (s *Service) HasMinedCommitment(_ *http.Request, args *CommitmentArgs, reply *HasMinedCommitmentReply) error {
	s.log.Debug("API called",
		log.String("service", Name),
		log.String("method", "hasMinedCommitment"),
	)

	mined, err := s.proc.HasMinedCommitment(params.QuorumType(args.CommitteeType), args.QuorumHash)
	reply.Mined = mined
	return err
}

type GetMinedCommitmentReply struct {
	Commitment      *types.FinalCommitment `json:"commitment"`
	BlockHash       ids.ID                 `json:"blockHash"`
	MinedHeight     json.Uint64            `json:"minedHeight"`
	CommitteeHeight json.Uint64            `json:"committeeHeight"`
}

// GetMinedCommitment returns the mined commitment for the committee elected
// at [args.QuorumHash], along with where it was mined.
func (s *Service) GetMinedCommitment(_ *http.Request, args *CommitmentArgs, reply *GetMinedCommitmentReply) error {
	s.log.Debug("API called",
		log.String("service", Name),
		log.String("method", "getMinedCommitment"),
	)

	entry, err := s.proc.GetMinedCommitment(params.QuorumType(args.CommitteeType), args.QuorumHash)
	if err != nil {
		return err
	}
	reply.Commitment = entry.Commitment
	reply.BlockHash = entry.BlockHash
	reply.MinedHeight = json.Uint64(entry.MinedHeight)
	reply.CommitteeHeight = json.Uint64(entry.CommitteeHeight)
	return nil
}

type ListMinedCommitmentsArgs struct {
	CommitteeType json.Uint8  `json:"committeeType"`
	MaxCount      json.Uint32 `json:"maxCount"`
}

type MinedCommittee struct {
	QuorumHash ids.ID      `json:"quorumHash"`
	Height     json.Uint64 `json:"height"`
}

type ListMinedCommitmentsReply struct {
	Committees []MinedCommittee `json:"committees"`
}

// ListMinedCommitments returns the committees of [args.CommitteeType] with a
// commitment mined at or below the active tip, most recently mined first, up
// to [args.MaxCount].
func (s *Service) ListMinedCommitments(_ *http.Request, args *ListMinedCommitmentsArgs, reply *ListMinedCommitmentsReply) error {
	s.log.Debug("API called",
		log.String("service", Name),
		log.String("method", "listMinedCommitments"),
	)

	tip := s.view.Tip()
	if tip == nil {
		return nil
	}
	blocks, err := s.proc.MinedCommitteesUntil(params.QuorumType(args.CommitteeType), tip, int(args.MaxCount))
	if err != nil {
		return err
	}
	reply.Committees = make([]MinedCommittee, len(blocks))
	for i, blk := range blocks {
		reply.Committees[i] = MinedCommittee{
			QuorumHash: blk.Hash,
			Height:     json.Uint64(blk.Height),
		}
	}
	return nil
}

type GetMineableCommitmentsArgs struct {
	CommitteeType json.Uint8  `json:"committeeType"`
	Height        json.Uint64 `json:"height"`
}

type GetMineableCommitmentsReply struct {
	Commitments []*types.FinalCommitment `json:"commitments"`
}

// GetMineableCommitments returns the commitments a block mined at
// [args.Height] on the current chain should carry.
func (s *Service) GetMineableCommitments(_ *http.Request, args *GetMineableCommitmentsArgs, reply *GetMineableCommitmentsReply) error {
	s.log.Debug("API called",
		log.String("service", Name),
		log.String("method", "getMineableCommitments"),
	)

	fcs, err := s.proc.MineableCommitments(params.QuorumType(args.CommitteeType), uint64(args.Height))
	if err != nil {
		return err
	}
	reply.Commitments = fcs
	return nil
}

type GetCycleArgs struct {
	CommitteeType json.Uint8  `json:"committeeType"`
	Height        json.Uint64 `json:"height"`
}

type GetCycleReply struct {
	Start             json.Uint64 `json:"start"`
	MiningWindowStart json.Uint64 `json:"miningWindowStart"`
	MiningWindowEnd   json.Uint64 `json:"miningWindowEnd"`
}

// GetCycle returns the DKG cycle containing [args.Height] for committees of
// [args.CommitteeType].
func (s *Service) GetCycle(_ *http.Request, args *GetCycleArgs, reply *GetCycleReply) error {
	s.log.Debug("API called",
		log.String("service", Name),
		log.String("method", "getCycle"),
	)

	start, miningBegin, miningEnd, err := s.proc.Cycle(params.QuorumType(args.CommitteeType), uint64(args.Height))
	if err != nil {
		return err
	}
	reply.Start = json.Uint64(start)
	reply.MiningWindowStart = json.Uint64(miningBegin)
	reply.MiningWindowEnd = json.Uint64(miningEnd)
	return nil
}
