// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package store persists mined commitments. Writes are staged and applied
// atomically per processed block through Commit, or discarded through Abort.
package store

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/luxfi/cache"
	"github.com/luxfi/cache/lru"
	"github.com/luxfi/cache/metercacher"
	"github.com/luxfi/database"
	"github.com/luxfi/database/prefixdb"
	"github.com/luxfi/database/versiondb"
	"github.com/luxfi/ids"
	"github.com/luxfi/metric"

	"github.com/luxfi/quorum/params"
	"github.com/luxfi/quorum/types"
	"github.com/luxfi/quorum/utils/wrappers"
)

var (
	CommitmentPrefix         = []byte("commitment")
	MinedHeightPrefix        = []byte("commitment_mined_height")
	IndexedMinedHeightPrefix = []byte("commitment_mined_height_indexed")
	SingletonPrefix          = []byte("singleton")

	LastProcessedKey = []byte("last_processed_block")
)

var errNilRegisterer = errors.New("nil metrics registerer")

// Entry is a mined commitment together with where it was mined.
type Entry struct {
	Commitment      *types.FinalCommitment
	BlockHash       ids.ID
	MinedHeight     uint64
	CommitteeHeight uint64
}

type storedEntry struct {
	Commitment      types.FinalCommitment `serialize:"true"`
	BlockHash       ids.ID                `serialize:"true"`
	MinedHeight     uint64                `serialize:"true"`
	CommitteeHeight uint64                `serialize:"true"`
}

type existsKey struct {
	quorumType params.QuorumType
	quorumHash ids.ID
}

// Store is the on-disk set of mined commitments. It is not safe for
// concurrent use; the processor serializes access to it.
type Store struct {
	baseDB *versiondb.Database

	commitmentDB  database.Database
	minedHeightDB database.Database
	indexedDB     database.Database
	singletonDB   database.Database

	// existsCache caches whether a commitment is mined for a committee base
	// block. Entries written since the last Commit are tracked in [staged]
	// so that Abort can drop them together with the staged DB writes.
	existsCache cache.Cacher[existsKey, bool]
	staged      []existsKey
}

// New wraps [db] in a staged commitment store. [cacheSize] bounds the number
// of mined-commitment existence entries kept in memory.
func New(db database.Database, metricsReg metric.Registerer, cacheSize int) (*Store, error) {
	if metricsReg == nil {
		return nil, errNilRegisterer
	}
	reg, _ := metricsReg.(metric.Registry)

	existsCache, err := metercacher.New[existsKey, bool](
		"commitment_exists_cache",
		reg,
		lru.NewCache[existsKey, bool](cacheSize),
	)
	if err != nil {
		return nil, err
	}

	baseDB := versiondb.New(db)
	return &Store{
		baseDB:        baseDB,
		commitmentDB:  prefixdb.New(CommitmentPrefix, baseDB),
		minedHeightDB: prefixdb.New(MinedHeightPrefix, baseDB),
		indexedDB:     prefixdb.New(IndexedMinedHeightPrefix, baseDB),
		singletonDB:   prefixdb.New(SingletonPrefix, baseDB),
		existsCache:   existsCache,
	}, nil
}

// PutCommitment stages [fc], mined in [blockHash] at [minedHeight] for the
// committee elected at [committeeHeight].
func (s *Store) PutCommitment(
	fc *types.FinalCommitment,
	blockHash ids.ID,
	minedHeight uint64,
	committeeHeight uint64,
) error {
	entryBytes, err := types.Codec.Marshal(types.CodecVersion, &storedEntry{
		Commitment:      *fc,
		BlockHash:       blockHash,
		MinedHeight:     minedHeight,
		CommitteeHeight: committeeHeight,
	})
	if err != nil {
		return err
	}

	if err := s.commitmentDB.Put(commitmentKey(fc.QuorumType, fc.QuorumHash), entryBytes); err != nil {
		return err
	}
	// Exactly one reverse-index entry per commitment: the per-index key for
	// indexed versions, the flat key otherwise. Rotated commitments mined in
	// the same block would collide on the flat key.
	committeeHeightBytes := database.PackUInt64(committeeHeight)
	if indexedVersion(fc.Version) {
		key := indexedMinedHeightKey(fc.QuorumType, fc.QuorumIndex, minedHeight)
		if err := s.indexedDB.Put(key, committeeHeightBytes); err != nil {
			return err
		}
	} else if err := s.minedHeightDB.Put(minedHeightKey(fc.QuorumType, minedHeight), committeeHeightBytes); err != nil {
		return err
	}

	s.putExists(existsKey{fc.QuorumType, fc.QuorumHash}, true)
	return nil
}

// EraseCommitment stages removal of the commitment for [quorumHash]. It is a
// no-op when no such commitment is stored.
func (s *Store) EraseCommitment(t params.QuorumType, quorumHash ids.ID) error {
	entry, err := s.GetCommitment(t, quorumHash)
	if err == database.ErrNotFound {
		return nil
	}
	if err != nil {
		return err
	}

	if err := s.commitmentDB.Delete(commitmentKey(t, quorumHash)); err != nil {
		return err
	}
	if indexedVersion(entry.Commitment.Version) {
		key := indexedMinedHeightKey(t, entry.Commitment.QuorumIndex, entry.MinedHeight)
		if err := s.indexedDB.Delete(key); err != nil {
			return err
		}
	} else if err := s.minedHeightDB.Delete(minedHeightKey(t, entry.MinedHeight)); err != nil {
		return err
	}

	s.putExists(existsKey{t, quorumHash}, false)
	return nil
}

// HasCommitment reports whether a commitment is mined for [quorumHash].
func (s *Store) HasCommitment(t params.QuorumType, quorumHash ids.ID) (bool, error) {
	key := existsKey{t, quorumHash}
	if has, ok := s.existsCache.Get(key); ok {
		return has, nil
	}
	has, err := s.commitmentDB.Has(commitmentKey(t, quorumHash))
	if err != nil {
		return false, err
	}
	s.existsCache.Put(key, has)
	return has, nil
}

// GetCommitment returns the mined commitment for [quorumHash], or
// database.ErrNotFound.
func (s *Store) GetCommitment(t params.QuorumType, quorumHash ids.ID) (*Entry, error) {
	entryBytes, err := s.commitmentDB.Get(commitmentKey(t, quorumHash))
	if err != nil {
		return nil, err
	}
	stored := &storedEntry{}
	if _, err := types.Codec.Unmarshal(entryBytes, stored); err != nil {
		return nil, fmt.Errorf("parsing stored commitment: %w", err)
	}
	return &Entry{
		Commitment:      &stored.Commitment,
		BlockHash:       stored.BlockHash,
		MinedHeight:     stored.MinedHeight,
		CommitteeHeight: stored.CommitteeHeight,
	}, nil
}

// MinedCommitteeHeightsUntil returns the committee heights of commitments of
// type [t] mined at or below [maxMinedHeight], from the most recently mined
// backwards, up to [limit] entries.
func (s *Store) MinedCommitteeHeightsUntil(t params.QuorumType, maxMinedHeight uint64, limit int) ([]uint64, error) {
	return s.collectCommitteeHeights(
		s.minedHeightDB,
		minedHeightKey(t, maxMinedHeight),
		typePrefix(t),
		limit,
	)
}

// MinedCommitteeHeightsByIndexUntil is MinedCommitteeHeightsUntil restricted
// to commitments mined for committee [index].
func (s *Store) MinedCommitteeHeightsByIndexUntil(t params.QuorumType, index uint16, maxMinedHeight uint64, limit int) ([]uint64, error) {
	return s.collectCommitteeHeights(
		s.indexedDB,
		indexedMinedHeightKey(t, index, maxMinedHeight),
		indexedTypePrefix(t, index),
		limit,
	)
}

func (s *Store) collectCommitteeHeights(db database.Database, start, prefix []byte, limit int) ([]uint64, error) {
	it := db.NewIteratorWithStartAndPrefix(start, prefix)
	defer it.Release()

	var heights []uint64
	for len(heights) < limit && it.Next() {
		value := it.Value()
		if len(value) != database.Uint64Size {
			return nil, fmt.Errorf("unexpected committee height length %d", len(value))
		}
		heights = append(heights, binary.BigEndian.Uint64(value))
	}
	return heights, it.Error()
}

// LastProcessedBlock returns the hash of the last block whose commitments
// were applied. ok is false before any block has been processed.
func (s *Store) LastProcessedBlock() (ids.ID, bool, error) {
	blkID, err := database.GetID(s.singletonDB, LastProcessedKey)
	if err == database.ErrNotFound {
		return ids.Empty, false, nil
	}
	if err != nil {
		return ids.Empty, false, err
	}
	return blkID, true, nil
}

// SetLastProcessedBlock stages the processed-block marker. Setting it to
// ids.Empty clears the marker.
func (s *Store) SetLastProcessedBlock(blkID ids.ID) error {
	if blkID == ids.Empty {
		return s.singletonDB.Delete(LastProcessedKey)
	}
	return database.PutID(s.singletonDB, LastProcessedKey, blkID)
}

// Commit applies all staged writes atomically.
func (s *Store) Commit() error {
	if err := s.baseDB.Commit(); err != nil {
		return err
	}
	s.staged = s.staged[:0]
	return nil
}

// Abort discards all staged writes and the cache entries that reflect them.
func (s *Store) Abort() {
	s.baseDB.Abort()
	for _, key := range s.staged {
		s.existsCache.Evict(key)
	}
	s.staged = s.staged[:0]
}

func (s *Store) Close() error {
	errs := wrappers.Errs{}
	errs.Add(
		s.commitmentDB.Close(),
		s.minedHeightDB.Close(),
		s.indexedDB.Close(),
		s.singletonDB.Close(),
		s.baseDB.Close(),
	)
	return errs.Err
}

func (s *Store) putExists(key existsKey, has bool) {
	s.existsCache.Put(key, has)
	s.staged = append(s.staged, key)
}

func indexedVersion(version uint16) bool {
	return version == types.CommitmentVersionLegacyIndexed ||
		version == types.CommitmentVersionBasicIndexed
}
