// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package types defines the final commitment produced by a completed DKG and
// the transaction envelope that carries it into blocks.
package types

import (
	"errors"
	"fmt"

	"github.com/luxfi/crypto/bls"
	"github.com/luxfi/ids"
	"github.com/luxfi/math/set"

	"github.com/luxfi/quorum/params"
	"github.com/luxfi/quorum/utils/hashing"
)

// Commitment versions. Indexed versions carry a meaningful QuorumIndex and
// are used once rotation is active; basic versions use the basic BLS scheme.
const (
	CommitmentVersionLegacy        uint16 = 1
	CommitmentVersionLegacyIndexed uint16 = 2
	CommitmentVersionBasic         uint16 = 3
	CommitmentVersionBasicIndexed  uint16 = 4
)

var (
	ErrWrongVersion    = errors.New("wrong commitment version")
	ErrWrongSizes      = errors.New("wrong commitment field sizes")
	ErrWrongIndex      = errors.New("wrong committee index")
	ErrNotNull         = errors.New("commitment is not null")
	ErrTooFewMembers   = errors.New("too few valid members")
	ErrTooFewSigners   = errors.New("too few signers")
	ErrSignerNotMember = errors.New("signer is not a valid member")
	ErrInvalidPubKey   = errors.New("invalid committee public key")
	ErrInvalidSig      = errors.New("invalid commitment signature")
)

// CommitmentVersion returns the version a valid commitment must declare under
// the given rotation and scheme rules.
func CommitmentVersion(rotation, basicScheme bool) uint16 {
	switch {
	case basicScheme && rotation:
		return CommitmentVersionBasicIndexed
	case basicScheme:
		return CommitmentVersionBasic
	case rotation:
		return CommitmentVersionLegacyIndexed
	default:
		return CommitmentVersionLegacy
	}
}

// BitsetBytes returns the encoded length of a member bitset for a committee
// of [size] members.
func BitsetBytes(size int) int {
	return (size + 7) / 8
}

// BitsetFromBits encodes [bits] as a fixed-length bitset for a committee of
// [size] members. The minimal big-endian encoding of [bits] is right-aligned
// so that set.BitsFromBytes recovers the same bits.
func BitsetFromBits(bits set.Bits, size int) []byte {
	buf := make([]byte, BitsetBytes(size))
	raw := bits.Bytes()
	copy(buf[len(buf)-len(raw):], raw)
	return buf
}

// Member is one committee member in DKG election order.
type Member struct {
	ID        ids.ID
	PublicKey []byte
}

// FinalCommitment attests that a committee completed its DKG. Signers and
// ValidMembers are fixed-length bitsets over the committee in election order.
// A null commitment has empty bitsets, an empty public key, a zero
// verification vector hash, and empty signatures.
type FinalCommitment struct {
	Version                uint16             `serialize:"true" json:"version"`
	QuorumType             params.QuorumType  `serialize:"true" json:"quorumType"`
	QuorumHash             ids.ID             `serialize:"true" json:"quorumHash"`
	QuorumIndex            uint16             `serialize:"true" json:"quorumIndex"`
	Signers                []byte             `serialize:"true" json:"signers"`
	ValidMembers           []byte             `serialize:"true" json:"validMembers"`
	PublicKey              []byte             `serialize:"true" json:"quorumPublicKey"`
	VerificationVectorHash ids.ID             `serialize:"true" json:"verificationVectorHash"`
	QuorumSig              []byte             `serialize:"true" json:"quorumSig"`
	MembersSig             []byte             `serialize:"true" json:"membersSig"`
}

// NewNullCommitment builds the placeholder commitment miners include when no
// real commitment is available for a committee slot.
func NewNullCommitment(p params.Params, quorumHash ids.ID, index uint16, version uint16) *FinalCommitment {
	return &FinalCommitment{
		Version:      version,
		QuorumType:   p.Type,
		QuorumHash:   quorumHash,
		QuorumIndex:  index,
		Signers:      make([]byte, BitsetBytes(p.Size)),
		ValidMembers: make([]byte, BitsetBytes(p.Size)),
	}
}

// Bytes returns the canonical encoding of the commitment.
func (fc *FinalCommitment) Bytes() []byte {
	b, err := Codec.Marshal(CodecVersion, fc)
	if err != nil {
		panic(err) // only fails on unregistered types
	}
	return b
}

// Hash returns the commitment's identity over its canonical encoding.
func (fc *FinalCommitment) Hash() ids.ID {
	return hashing.ComputeHash256Array(fc.Bytes())
}

// ParseCommitment decodes a commitment from its canonical encoding.
func ParseCommitment(b []byte) (*FinalCommitment, error) {
	fc := &FinalCommitment{}
	if _, err := Codec.Unmarshal(b, fc); err != nil {
		return nil, err
	}
	return fc, nil
}

// commitmentCore is the portion of a commitment covered by both signatures.
type commitmentCore struct {
	QuorumType             params.QuorumType `serialize:"true"`
	QuorumHash             ids.ID            `serialize:"true"`
	QuorumIndex            uint16            `serialize:"true"`
	ValidMembers           []byte            `serialize:"true"`
	PublicKey              []byte            `serialize:"true"`
	VerificationVectorHash ids.ID            `serialize:"true"`
}

// SigningDigest returns the digest both the committee signature and the
// aggregated member signature are verified against.
func (fc *FinalCommitment) SigningDigest() ids.ID {
	core := commitmentCore{
		QuorumType:             fc.QuorumType,
		QuorumHash:             fc.QuorumHash,
		QuorumIndex:            fc.QuorumIndex,
		ValidMembers:           fc.ValidMembers,
		PublicKey:              fc.PublicKey,
		VerificationVectorHash: fc.VerificationVectorHash,
	}
	b, err := Codec.Marshal(CodecVersion, &core)
	if err != nil {
		panic(err)
	}
	return hashing.ComputeHash256Array(b)
}

// CountSigners returns the number of set bits in the signer bitset.
func (fc *FinalCommitment) CountSigners() int {
	return set.BitsFromBytes(fc.Signers).Len()
}

// CountValidMembers returns the number of set bits in the valid member bitset.
func (fc *FinalCommitment) CountValidMembers() int {
	return set.BitsFromBytes(fc.ValidMembers).Len()
}

// IsNull reports whether the commitment is a placeholder with no signers and
// no valid members.
func (fc *FinalCommitment) IsNull() bool {
	return fc.CountSigners() == 0 && fc.CountValidMembers() == 0
}

// VerifySizes checks that all variable-length fields have the exact lengths
// required for a committee shaped by [p]. Null commitments carry empty keys
// and signatures; non-null commitments carry full-length ones.
func (fc *FinalCommitment) VerifySizes(p params.Params) error {
	want := BitsetBytes(p.Size)
	if len(fc.Signers) != want || len(fc.ValidMembers) != want {
		return fmt.Errorf("%w: bitsets %d/%d, want %d bytes",
			ErrWrongSizes, len(fc.Signers), len(fc.ValidMembers), want)
	}
	// Bits beyond the committee size must be unset.
	signers := set.BitsFromBytes(fc.Signers)
	members := set.BitsFromBytes(fc.ValidMembers)
	for i := p.Size; i < want*8; i++ {
		if signers.Contains(i) || members.Contains(i) {
			return fmt.Errorf("%w: bit %d beyond committee size %d set",
				ErrWrongSizes, i, p.Size)
		}
	}
	if fc.IsNull() {
		if len(fc.PublicKey) != 0 || len(fc.QuorumSig) != 0 || len(fc.MembersSig) != 0 {
			return fmt.Errorf("%w: null commitment with key or signature material", ErrWrongSizes)
		}
		return nil
	}
	if len(fc.PublicKey) != bls.PublicKeyLen {
		return fmt.Errorf("%w: public key %d bytes, want %d",
			ErrWrongSizes, len(fc.PublicKey), bls.PublicKeyLen)
	}
	if len(fc.QuorumSig) != bls.SignatureLen || len(fc.MembersSig) != bls.SignatureLen {
		return fmt.Errorf("%w: signatures %d/%d bytes, want %d",
			ErrWrongSizes, len(fc.QuorumSig), len(fc.MembersSig), bls.SignatureLen)
	}
	return nil
}

// VerifyNull checks that the commitment is a well-formed null placeholder for
// a committee shaped by [p].
func (fc *FinalCommitment) VerifyNull(p params.Params) error {
	if !fc.IsNull() {
		return ErrNotNull
	}
	if fc.VerificationVectorHash != ids.Empty {
		return fmt.Errorf("%w: non-zero verification vector hash", ErrNotNull)
	}
	return fc.VerifySizes(p)
}

// Verify fully validates a non-null commitment against the committee member
// set [members], which must be in election order. [rotation] and
// [basicScheme] are the rules in force at the evaluation height. Signature
// verification is skipped when [checkSigs] is false.
func (fc *FinalCommitment) Verify(
	members []Member,
	p params.Params,
	rotation bool,
	basicScheme bool,
	checkSigs bool,
) error {
	if expected := CommitmentVersion(rotation, basicScheme); fc.Version != expected {
		return fmt.Errorf("%w: got %d, want %d", ErrWrongVersion, fc.Version, expected)
	}
	if !rotation && fc.QuorumIndex != 0 {
		return fmt.Errorf("%w: %d without rotation", ErrWrongIndex, fc.QuorumIndex)
	}
	if rotation && int(fc.QuorumIndex) >= p.SigningActiveQuorumCount {
		return fmt.Errorf("%w: %d with %d active committees",
			ErrWrongIndex, fc.QuorumIndex, p.SigningActiveQuorumCount)
	}
	if err := fc.VerifySizes(p); err != nil {
		return err
	}
	if fc.IsNull() {
		return ErrTooFewMembers
	}
	if n := fc.CountValidMembers(); n < p.MinSize {
		return fmt.Errorf("%w: %d of %d", ErrTooFewMembers, n, p.MinSize)
	}
	if n := fc.CountSigners(); n < p.MinSize {
		return fmt.Errorf("%w: %d of %d", ErrTooFewSigners, n, p.MinSize)
	}

	signers := set.BitsFromBytes(fc.Signers)
	valid := set.BitsFromBytes(fc.ValidMembers)
	for i := 0; i < p.Size; i++ {
		if signers.Contains(i) && !valid.Contains(i) {
			return fmt.Errorf("%w: member %d", ErrSignerNotMember, i)
		}
	}

	if len(members) != p.Size {
		return fmt.Errorf("%w: %d members for committee of %d",
			ErrTooFewMembers, len(members), p.Size)
	}

	quorumKey, err := bls.PublicKeyFromCompressedBytes(fc.PublicKey)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidPubKey, err)
	}

	if !checkSigs {
		return nil
	}

	digest := fc.SigningDigest()

	quorumSig, err := bls.SignatureFromBytes(fc.QuorumSig)
	if err != nil {
		return fmt.Errorf("%w: committee signature: %w", ErrInvalidSig, err)
	}
	if !bls.Verify(quorumKey, quorumSig, digest[:]) {
		return fmt.Errorf("%w: committee signature", ErrInvalidSig)
	}

	signerKeys := make([]*bls.PublicKey, 0, signers.Len())
	for i := 0; i < p.Size; i++ {
		if !signers.Contains(i) {
			continue
		}
		pk, err := bls.PublicKeyFromCompressedBytes(members[i].PublicKey)
		if err != nil {
			return fmt.Errorf("%w: member %d: %w", ErrInvalidPubKey, i, err)
		}
		signerKeys = append(signerKeys, pk)
	}
	aggKey, err := bls.AggregatePublicKeys(signerKeys)
	if err != nil {
		return fmt.Errorf("%w: aggregating signer keys: %w", ErrInvalidPubKey, err)
	}
	membersSig, err := bls.SignatureFromBytes(fc.MembersSig)
	if err != nil {
		return fmt.Errorf("%w: member signature: %w", ErrInvalidSig, err)
	}
	if !bls.Verify(aggKey, membersSig, digest[:]) {
		return fmt.Errorf("%w: member signature", ErrInvalidSig)
	}
	return nil
}
