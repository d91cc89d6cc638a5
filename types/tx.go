// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package types

import (
	"errors"
	"fmt"
)

// TxType tags the payload carried by a special transaction.
type TxType uint16

// TxTypeQuorumCommitment marks a transaction whose payload is a CommitmentTx.
const TxTypeQuorumCommitment TxType = 6

// TxVersion is the transaction envelope version that permits special
// payloads.
const TxVersion uint16 = 3

// CommitmentTxVersion is the current version of the commitment payload.
const CommitmentTxVersion uint16 = 1

var (
	ErrWrongTxType      = errors.New("wrong special transaction type")
	ErrWrongTxVersion   = errors.New("wrong transaction version")
	ErrMalformedPayload = errors.New("malformed commitment payload")
)

// CommitmentTx is the payload of a commitment-bearing special transaction.
// Height is the height of the block that includes the transaction.
type CommitmentTx struct {
	Version    uint16          `serialize:"true" json:"version"`
	Height     uint64          `serialize:"true" json:"height"`
	Commitment FinalCommitment `serialize:"true" json:"commitment"`
}

// Tx is the minimal transaction envelope the processor inspects. Payload is
// only decoded for transactions of TxTypeQuorumCommitment.
type Tx struct {
	Version uint16 `serialize:"true" json:"version"`
	Type    TxType `serialize:"true" json:"type"`
	Payload []byte `serialize:"true" json:"payload"`
}

// Block is the slice of a block the processor inspects.
type Block struct {
	Txs []*Tx `serialize:"true" json:"txs"`
}

// NewCommitmentTx wraps [fc] in a special transaction for inclusion at
// [height].
func NewCommitmentTx(height uint64, fc *FinalCommitment) (*Tx, error) {
	payload, err := Codec.Marshal(CodecVersion, &CommitmentTx{
		Version:    CommitmentTxVersion,
		Height:     height,
		Commitment: *fc,
	})
	if err != nil {
		return nil, err
	}
	return &Tx{
		Version: TxVersion,
		Type:    TxTypeQuorumCommitment,
		Payload: payload,
	}, nil
}

// IsCommitment reports whether the transaction claims to carry a commitment.
func (tx *Tx) IsCommitment() bool {
	return tx.Version >= TxVersion && tx.Type == TxTypeQuorumCommitment
}

// CommitmentPayload decodes the commitment payload of the transaction.
func (tx *Tx) CommitmentPayload() (*CommitmentTx, error) {
	if !tx.IsCommitment() {
		return nil, fmt.Errorf("%w: version %d type %d", ErrWrongTxType, tx.Version, tx.Type)
	}
	ctx := &CommitmentTx{}
	if _, err := Codec.Unmarshal(tx.Payload, ctx); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedPayload, err)
	}
	if ctx.Version != CommitmentTxVersion {
		return nil, fmt.Errorf("%w: payload version %d", ErrWrongTxVersion, ctx.Version)
	}
	return ctx, nil
}
