// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package pool buffers fully-validated commitments that have not been mined
// yet. It keeps at most one commitment per committee slot, preferring the one
// with the most signers.
package pool

import (
	"errors"
	"sync"

	"github.com/luxfi/ids"
	"github.com/luxfi/log"
	"github.com/luxfi/metric"

	"github.com/luxfi/quorum/params"
	"github.com/luxfi/quorum/types"
)

var errNilRegisterer = errors.New("nil metrics registerer")

// slotKey identifies the committee a commitment attests for.
type slotKey struct {
	quorumType params.QuorumType
	quorumHash ids.ID
	index      uint16
}

// Pool is safe for concurrent use. All commitments in it have already passed
// full validation; the pool itself never runs crypto.
type Pool struct {
	log     log.Logger
	metrics *poolMetrics

	lock   sync.RWMutex
	byHash map[ids.ID]*types.FinalCommitment
	bySlot map[slotKey]ids.ID
}

func New(log log.Logger, registerer metric.Registerer) (*Pool, error) {
	if registerer == nil {
		return nil, errNilRegisterer
	}
	metrics, err := newMetrics(registerer)
	if err != nil {
		return nil, err
	}
	return &Pool{
		log:     log,
		metrics: metrics,
		byHash:  make(map[ids.ID]*types.FinalCommitment),
		bySlot:  make(map[slotKey]ids.ID),
	}, nil
}

// Add offers [fc] for its committee slot. It returns true when the pool now
// holds [fc]: either the slot was empty or [fc] has strictly more signers
// than the commitment it replaces.
func (p *Pool) Add(fc *types.FinalCommitment) bool {
	key := slotKey{fc.QuorumType, fc.QuorumHash, fc.QuorumIndex}
	hash := fc.Hash()

	p.lock.Lock()
	defer p.lock.Unlock()

	if prevHash, ok := p.bySlot[key]; ok {
		if prevHash == hash {
			return false
		}
		prev := p.byHash[prevHash]
		if fc.CountSigners() <= prev.CountSigners() {
			return false
		}
		delete(p.byHash, prevHash)
		p.metrics.replacements.Inc()
		p.log.Debug("replaced pooled commitment",
			log.Stringer("quorumHash", fc.QuorumHash),
			log.Int("index", int(fc.QuorumIndex)),
			log.Int("signers", fc.CountSigners()),
		)
	}

	p.byHash[hash] = fc
	p.bySlot[key] = hash
	p.metrics.numCommitments.Set(float64(len(p.byHash)))
	return true
}

// Get returns the pooled commitment for the committee slot, if any.
func (p *Pool) Get(t params.QuorumType, quorumHash ids.ID, index uint16) (*types.FinalCommitment, bool) {
	p.lock.RLock()
	defer p.lock.RUnlock()

	hash, ok := p.bySlot[slotKey{t, quorumHash, index}]
	if !ok {
		return nil, false
	}
	return p.byHash[hash], true
}

// ByHash returns the pooled commitment with the given commitment hash.
func (p *Pool) ByHash(hash ids.ID) (*types.FinalCommitment, bool) {
	p.lock.RLock()
	defer p.lock.RUnlock()

	fc, ok := p.byHash[hash]
	return fc, ok
}

// Has reports whether the pool holds a commitment with the given hash.
func (p *Pool) Has(hash ids.ID) bool {
	p.lock.RLock()
	defer p.lock.RUnlock()

	_, ok := p.byHash[hash]
	return ok
}

// Evict drops the commitment pooled for the committee slot, typically
// because one was mined.
func (p *Pool) Evict(t params.QuorumType, quorumHash ids.ID, index uint16) {
	key := slotKey{t, quorumHash, index}

	p.lock.Lock()
	defer p.lock.Unlock()

	hash, ok := p.bySlot[key]
	if !ok {
		return
	}
	delete(p.bySlot, key)
	delete(p.byHash, hash)
	p.metrics.numCommitments.Set(float64(len(p.byHash)))
}

// Len returns the number of pooled commitments.
func (p *Pool) Len() int {
	p.lock.RLock()
	defer p.lock.RUnlock()

	return len(p.byHash)
}
