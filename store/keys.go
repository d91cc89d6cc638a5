// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package store

import (
	"encoding/binary"

	"github.com/luxfi/ids"

	"github.com/luxfi/quorum/params"
	"github.com/luxfi/quorum/utils/wrappers"
)

const (
	minedHeightKeyLength        = wrappers.ByteLen + wrappers.IntLen
	indexedMinedHeightKeyLength = wrappers.ByteLen + wrappers.ShortLen + wrappers.IntLen
)

// commitmentKey = [committee type] + [committee base block hash]
func commitmentKey(t params.QuorumType, quorumHash ids.ID) []byte {
	key := make([]byte, wrappers.ByteLen+ids.IDLen)
	key[0] = byte(t)
	copy(key[wrappers.ByteLen:], quorumHash[:])
	return key
}

// minedHeightKey = [committee type] + [bit-flipped mined height]
//
// The height is flipped so that iterating the keys in ascending byte order
// visits commitments from the most recently mined to the oldest.
func minedHeightKey(t params.QuorumType, minedHeight uint64) []byte {
	key := make([]byte, minedHeightKeyLength)
	key[0] = byte(t)
	binary.BigEndian.PutUint32(key[wrappers.ByteLen:], ^uint32(minedHeight))
	return key
}

// indexedMinedHeightKey = [committee type] + [committee index] +
// [bit-flipped mined height]
func indexedMinedHeightKey(t params.QuorumType, index uint16, minedHeight uint64) []byte {
	key := make([]byte, indexedMinedHeightKeyLength)
	key[0] = byte(t)
	binary.BigEndian.PutUint16(key[wrappers.ByteLen:], index)
	binary.BigEndian.PutUint32(key[wrappers.ByteLen+wrappers.ShortLen:], ^uint32(minedHeight))
	return key
}

// minedHeightFromKey recovers the mined height from a flat reverse-index key.
func minedHeightFromKey(key []byte) uint64 {
	return uint64(^binary.BigEndian.Uint32(key[wrappers.ByteLen:]))
}

// indexedMinedHeightFromKey recovers the committee index and mined height
// from a per-index reverse-index key.
func indexedMinedHeightFromKey(key []byte) (uint16, uint64) {
	index := binary.BigEndian.Uint16(key[wrappers.ByteLen:])
	minedHeight := uint64(^binary.BigEndian.Uint32(key[wrappers.ByteLen+wrappers.ShortLen:]))
	return index, minedHeight
}

func typePrefix(t params.QuorumType) []byte {
	return []byte{byte(t)}
}

func indexedTypePrefix(t params.QuorumType, index uint16) []byte {
	prefix := make([]byte, wrappers.ByteLen+wrappers.ShortLen)
	prefix[0] = byte(t)
	binary.BigEndian.PutUint16(prefix[wrappers.ByteLen:], index)
	return prefix
}
