// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package params defines the committee flavors tracked by the commitment
// processor and the fork schedule that gates their behavior.
package params

import (
	"errors"
	"fmt"
	"slices"
)

var (
	errDuplicateType     = errors.New("duplicate committee type")
	errZeroInterval      = errors.New("cycle interval must be positive")
	errBadMiningWindow   = errors.New("invalid mining window")
	errBadSize           = errors.New("invalid committee size")
	errBadThreshold      = errors.New("invalid signing threshold")
	errBadActiveCount    = errors.New("invalid active committee count")
	errUnknownType       = errors.New("unknown committee type")
	errReservedNonce     = errors.New("committee type zero is reserved")
)

// QuorumType identifies one committee flavor. The zero value is reserved as
// a sentinel for "no committee".
type QuorumType uint8

// QuorumTypeNone is never a valid registered committee type.
const QuorumTypeNone QuorumType = 0

func (t QuorumType) String() string {
	return fmt.Sprintf("quorum-%d", uint8(t))
}

// Params describes the schedule and shape of one committee type.
type Params struct {
	Type QuorumType
	Name string

	// Size is the number of members elected into one committee. MinSize is
	// the minimum number of valid members for the committee to be usable.
	Size    int
	MinSize int

	// Threshold is the number of signature shares needed to recover a
	// committee signature.
	Threshold int

	// ActivationHeight is the first height at which this committee type is
	// enabled. Zero enables it from genesis, subject to the fork schedule.
	ActivationHeight uint64

	// DKGInterval is the cycle length in blocks. A new set of committees is
	// elected every DKGInterval blocks.
	DKGInterval uint64

	// DKGMiningWindowStart and DKGMiningWindowEnd bound the offsets within a
	// cycle during which commitments for that cycle's committees may be
	// included in blocks. Both offsets are inclusive.
	DKGMiningWindowStart uint64
	DKGMiningWindowEnd   uint64

	// SigningActiveQuorumCount is the number of concurrently active
	// committees per cycle once rotation is enabled for this type.
	SigningActiveQuorumCount int
}

// Validate returns nil iff the parameters are internally consistent.
func (p Params) Validate() error {
	switch {
	case p.Type == QuorumTypeNone:
		return errReservedNonce
	case p.DKGInterval == 0:
		return errZeroInterval
	case p.DKGMiningWindowStart > p.DKGMiningWindowEnd,
		p.DKGMiningWindowEnd >= p.DKGInterval:
		return fmt.Errorf("%w: [%d, %d] with interval %d",
			errBadMiningWindow, p.DKGMiningWindowStart, p.DKGMiningWindowEnd, p.DKGInterval)
	case p.Size <= 0, p.MinSize <= 0, p.MinSize > p.Size:
		return fmt.Errorf("%w: size %d min %d", errBadSize, p.Size, p.MinSize)
	case p.Threshold <= 0, p.Threshold > p.Size:
		return fmt.Errorf("%w: %d of %d", errBadThreshold, p.Threshold, p.Size)
	case p.SigningActiveQuorumCount <= 0:
		return fmt.Errorf("%w: %d", errBadActiveCount, p.SigningActiveQuorumCount)
	}
	return nil
}

// Registry is the immutable set of committee types a node tracks.
type Registry struct {
	byType map[QuorumType]Params
	types  []QuorumType
}

// NewRegistry builds a registry from [paramsList], validating each entry and
// rejecting duplicate types. Iteration order is ascending by type.
func NewRegistry(paramsList ...Params) (Registry, error) {
	r := Registry{
		byType: make(map[QuorumType]Params, len(paramsList)),
		types:  make([]QuorumType, 0, len(paramsList)),
	}
	for _, p := range paramsList {
		if err := p.Validate(); err != nil {
			return Registry{}, fmt.Errorf("committee type %d: %w", p.Type, err)
		}
		if _, ok := r.byType[p.Type]; ok {
			return Registry{}, fmt.Errorf("%w: %d", errDuplicateType, p.Type)
		}
		r.byType[p.Type] = p
		r.types = append(r.types, p.Type)
	}
	slices.Sort(r.types)
	return r, nil
}

// Get returns the parameters for [t].
func (r Registry) Get(t QuorumType) (Params, bool) {
	p, ok := r.byType[t]
	return p, ok
}

// MustGet is Get for types known to be registered.
func (r Registry) MustGet(t QuorumType) Params {
	p, ok := r.byType[t]
	if !ok {
		panic(fmt.Errorf("%w: %d", errUnknownType, t))
	}
	return p
}

// Types returns the registered committee types in ascending order.
func (r Registry) Types() []QuorumType {
	return slices.Clone(r.types)
}

// List returns the registered parameters in ascending type order.
func (r Registry) List() []Params {
	list := make([]Params, 0, len(r.types))
	for _, t := range r.types {
		list = append(list, r.byType[t])
	}
	return list
}
