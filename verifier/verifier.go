// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package verifier validates final commitments against the members elected
// for their committee.
package verifier

import (
	"errors"
	"fmt"

	"github.com/luxfi/quorum/chain"
	"github.com/luxfi/quorum/params"
	"github.com/luxfi/quorum/types"
)

var errUnknownCommitteeType = errors.New("unknown committee type")

// MemberSource resolves the outcome of a DKG election. Implementations
// typically sit on top of the masternode/validator list at the committee base
// block.
type MemberSource interface {
	// CommitteeMembers returns the members of the committee of type [p]
	// elected at [committeeBlock] for [index], in election order.
	CommitteeMembers(p params.Params, committeeBlock *chain.BlockIndex, index uint16) ([]types.Member, error)
}

// Verifier fully validates a non-null commitment.
type Verifier interface {
	// VerifyCommitment checks [fc] against the committee elected at
	// [committeeBlock] under [rules]. BLS verification is skipped when
	// [checkSigs] is false.
	VerifyCommitment(fc *types.FinalCommitment, committeeBlock *chain.BlockIndex, rules params.Rules, checkSigs bool) error
}

// MemberSourceFunc adapts a function to the MemberSource interface.
type MemberSourceFunc func(params.Params, *chain.BlockIndex, uint16) ([]types.Member, error)

func (f MemberSourceFunc) CommitteeMembers(p params.Params, committeeBlock *chain.BlockIndex, index uint16) ([]types.Member, error) {
	return f(p, committeeBlock, index)
}

type blsVerifier struct {
	registry params.Registry
	members  MemberSource
}

// NewBLS returns the standard verifier: member resolution through [members],
// structural and BLS checks through types.FinalCommitment.Verify.
func NewBLS(registry params.Registry, members MemberSource) Verifier {
	return &blsVerifier{
		registry: registry,
		members:  members,
	}
}

func (v *blsVerifier) VerifyCommitment(
	fc *types.FinalCommitment,
	committeeBlock *chain.BlockIndex,
	rules params.Rules,
	checkSigs bool,
) error {
	p, ok := v.registry.Get(fc.QuorumType)
	if !ok {
		return fmt.Errorf("%w: %d", errUnknownCommitteeType, fc.QuorumType)
	}
	members, err := v.members.CommitteeMembers(p, committeeBlock, fc.QuorumIndex)
	if err != nil {
		return fmt.Errorf("resolving committee members: %w", err)
	}
	return fc.Verify(members, p, rules.Rotation(p), rules.BasicScheme, checkSigs)
}
