// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package processor

import (
	"errors"
	"fmt"
)

// Reject reasons attached to consensus-invalid blocks and commitments. They
// are stable strings suitable for reporting and metrics.
const (
	ReasonBadPayload        = "bad-qc-payload"
	ReasonBadCommitmentType = "bad-qc-commitment-type"
	ReasonPremature         = "bad-qc-premature"
	ReasonDuplicate         = "bad-qc-dup"
	ReasonNotAllowed        = "bad-qc-not-allowed"
	ReasonMissing           = "bad-qc-missing"
	ReasonBadBlock          = "bad-qc-block"
	ReasonInvalidNull       = "bad-qc-invalid-null"
	ReasonBadHeight         = "bad-qc-height"
	ReasonInvalid           = "bad-qc-invalid"
)

var (
	// ErrMisbehaving wraps rejections on the network path that warrant
	// punishing the sending peer.
	ErrMisbehaving = errors.New("misbehaving peer")

	ErrUnknownCommitteeType  = errors.New("unknown committee type")
	ErrCommitmentPremature   = errors.New("commitment mined before activation")
	ErrDuplicateCommitment   = errors.New("duplicate commitment")
	ErrCommitmentNotAllowed  = errors.New("commitment not allowed in block")
	ErrCommitmentMissing     = errors.New("expected commitment missing from block")
	ErrWrongCommitteeBlock   = errors.New("commitment references wrong committee block")
	ErrInvalidNullCommitment = errors.New("malformed null commitment")
	ErrWrongPayloadHeight    = errors.New("commitment payload height mismatch")
	ErrOutsideMiningPhase    = errors.New("commitment outside mining window")
	ErrInvalidCommitment     = errors.New("commitment failed validation")
)

// RejectError marks a block or commitment as consensus-invalid. Errors that
// are not RejectErrors are local failures (storage, chain state) and say
// nothing about the block's validity.
type RejectError struct {
	Reason string
	Err    error
}

func (e *RejectError) Error() string {
	if e.Err == nil {
		return e.Reason
	}
	return e.Reason + ": " + e.Err.Error()
}

func (e *RejectError) Unwrap() error {
	return e.Err
}

func reject(reason string, err error) error {
	return &RejectError{
		Reason: reason,
		Err:    err,
	}
}

func rejectf(reason string, format string, args ...any) error {
	return &RejectError{
		Reason: reason,
		Err:    fmt.Errorf(format, args...),
	}
}

// RejectReason extracts the reject reason from [err], if any.
func RejectReason(err error) (string, bool) {
	var rejectErr *RejectError
	if errors.As(err, &rejectErr) {
		return rejectErr.Reason, true
	}
	return "", false
}

func misbehave(err error) error {
	return fmt.Errorf("%w: %w", ErrMisbehaving, err)
}
