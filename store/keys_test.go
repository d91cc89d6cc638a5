// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package store

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMinedHeightKeyRoundTrip(t *testing.T) {
	require := require.New(t)

	for _, height := range []uint64{0, 1, 24, 1 << 20} {
		key := minedHeightKey(7, height)
		require.Len(key, minedHeightKeyLength)
		require.Equal(byte(7), key[0])
		require.Equal(height, minedHeightFromKey(key))
	}
}

func TestIndexedMinedHeightKeyRoundTrip(t *testing.T) {
	require := require.New(t)

	for _, height := range []uint64{0, 1, 24, 1 << 20} {
		for _, index := range []uint16{0, 1, 300} {
			key := indexedMinedHeightKey(7, index, height)
			require.Len(key, indexedMinedHeightKeyLength)
			require.Equal(byte(7), key[0])
			require.True(bytes.HasPrefix(key, indexedTypePrefix(7, index)))

			gotIndex, gotHeight := indexedMinedHeightFromKey(key)
			require.Equal(index, gotIndex)
			require.Equal(height, gotHeight)
		}
	}
}

// Ascending byte order must visit mined heights newest first, so iterating
// from the key of a maximum height walks backwards through history.
func TestMinedHeightKeyOrdering(t *testing.T) {
	require := require.New(t)

	heights := []uint64{0, 1, 24, 29, 1000, 1 << 20}
	for i := 1; i < len(heights); i++ {
		older := minedHeightKey(1, heights[i-1])
		newer := minedHeightKey(1, heights[i])
		require.Negative(bytes.Compare(newer, older))

		olderIndexed := indexedMinedHeightKey(1, 3, heights[i-1])
		newerIndexed := indexedMinedHeightKey(1, 3, heights[i])
		require.Negative(bytes.Compare(newerIndexed, olderIndexed))
	}
}
