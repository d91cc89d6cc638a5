// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package params

import "math"

// NeverActive disables a fork when used as its activation height.
const NeverActive uint64 = math.MaxUint64

// ForkSchedule holds the heights at which commitment processing behavior
// changes. All heights are inclusive activation heights.
type ForkSchedule struct {
	// SubsystemHeight is the height at which commitment processing itself
	// activates. Below it, blocks carry no commitments and the processor is
	// a pass-through.
	SubsystemHeight uint64

	// RotationHeight activates committee rotation: types with
	// SigningActiveQuorumCount > 1 switch to indexed commitments.
	RotationHeight uint64

	// BasicSchemeHeight activates the basic BLS scheme commitment versions.
	BasicSchemeHeight uint64
}

// SubsystemActive reports whether commitments are processed at [height].
func (f ForkSchedule) SubsystemActive(height uint64) bool {
	return height >= f.SubsystemHeight
}

// At snapshots the rules in force at [height]. Callers evaluating a block
// must snapshot once and use the same rules for every check in that block.
func (f ForkSchedule) At(height uint64) Rules {
	return Rules{
		Height:          height,
		SubsystemActive: height >= f.SubsystemHeight,
		BasicScheme:     height >= f.BasicSchemeHeight,
		rotation:        height >= f.RotationHeight,
	}
}

// Rules is the fork state at a single height.
type Rules struct {
	Height          uint64
	SubsystemActive bool
	BasicScheme     bool

	rotation bool
}

// Rotation reports whether committees of type [p] rotate at this height.
// Rotation requires both the fork and more than one active committee.
func (r Rules) Rotation(p Params) bool {
	return r.rotation && p.SigningActiveQuorumCount > 1
}

// TypeEnabled reports whether committee type [p] is enabled at this height.
func (r Rules) TypeEnabled(p Params) bool {
	return r.SubsystemActive && r.Height >= p.ActivationHeight
}
