// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package types

import (
	"github.com/luxfi/codec"
	"github.com/luxfi/codec/linearcodec"
)

// CodecVersion is the current codec version for wire and storage encoding.
const CodecVersion = 0

// Codec serializes commitments and the transaction envelopes carrying them.
var Codec codec.Manager

func init() {
	c := linearcodec.NewDefault()
	Codec = codec.NewDefaultManager()

	if err := c.RegisterType(&FinalCommitment{}); err != nil {
		panic(err)
	}
	if err := c.RegisterType(&CommitmentTx{}); err != nil {
		panic(err)
	}
	if err := Codec.RegisterCodec(CodecVersion, c); err != nil {
		panic(err)
	}
}
