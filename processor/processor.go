// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package processor applies the quorum commitments carried in blocks: it
// validates them against the DKG schedule, persists mined commitments, rolls
// them back on reorgs, and buffers gossiped commitments for mining.
package processor

import (
	"errors"
	"fmt"
	"sync"

	"github.com/luxfi/ids"
	"github.com/luxfi/log"
	"github.com/luxfi/metric"

	"github.com/luxfi/quorum/chain"
	"github.com/luxfi/quorum/cycle"
	"github.com/luxfi/quorum/params"
	"github.com/luxfi/quorum/pool"
	"github.com/luxfi/quorum/store"
	"github.com/luxfi/quorum/types"
	"github.com/luxfi/quorum/verifier"
)

var (
	errMissingConfigField = errors.New("missing required config field")
	errGenesisUndo        = errors.New("cannot undo genesis block")
)

// Relayer announces a new best mineable commitment to the network.
type Relayer interface {
	RelayCommitment(commitmentHash ids.ID)
}

// RelayerFunc adapts a function to the Relayer interface.
type RelayerFunc func(ids.ID)

func (f RelayerFunc) RelayCommitment(commitmentHash ids.ID) {
	f(commitmentHash)
}

// RequestTracker marks an in-flight commitment request as fulfilled when the
// response arrives, regardless of whether the payload validates.
type RequestTracker interface {
	ClearRequest(nodeID ids.NodeID, commitmentHash ids.ID)
}

type Config struct {
	Log        log.Logger
	Registerer metric.Registerer
	Registry   params.Registry
	Forks      params.ForkSchedule
	Chain      chain.View
	Store      *store.Store
	Pool       *pool.Pool
	Verifier   verifier.Verifier

	// Relayer and Requests are optional network hooks.
	Relayer  Relayer
	Requests RequestTracker
}

// Processor is safe for concurrent use. Block processing, undo, and replay
// are serialized; queries may run concurrently with each other.
type Processor struct {
	log      log.Logger
	metrics  *processorMetrics
	registry params.Registry
	forks    params.ForkSchedule
	chain    chain.View
	store    *store.Store
	pool     *pool.Pool
	verifier verifier.Verifier
	relayer  Relayer
	requests RequestTracker

	// lock serializes all store access. The store stages writes per block,
	// so overlapping writers would corrupt each other's staging.
	lock sync.Mutex
}

func New(config Config) (*Processor, error) {
	switch {
	case config.Log == nil:
		return nil, fmt.Errorf("%w: Log", errMissingConfigField)
	case config.Registerer == nil:
		return nil, fmt.Errorf("%w: Registerer", errMissingConfigField)
	case config.Chain == nil:
		return nil, fmt.Errorf("%w: Chain", errMissingConfigField)
	case config.Store == nil:
		return nil, fmt.Errorf("%w: Store", errMissingConfigField)
	case config.Pool == nil:
		return nil, fmt.Errorf("%w: Pool", errMissingConfigField)
	case config.Verifier == nil:
		return nil, fmt.Errorf("%w: Verifier", errMissingConfigField)
	}

	metrics, err := newMetrics(config.Registerer)
	if err != nil {
		return nil, err
	}
	return &Processor{
		log:      config.Log,
		metrics:  metrics,
		registry: config.Registry,
		forks:    config.Forks,
		chain:    config.Chain,
		store:    config.Store,
		pool:     config.Pool,
		verifier: config.Verifier,
		relayer:  config.Relayer,
		requests: config.Requests,
	}, nil
}

// ProcessCommitment handles a commitment gossiped by [nodeID]. A returned
// error wrapping ErrMisbehaving means the peer sent something provably
// invalid; other non-nil errors are local failures. A nil return does not
// imply the commitment was accepted: stale or unresolvable commitments are
// dropped silently because the local node may simply be out of sync.
func (p *Processor) ProcessCommitment(nodeID ids.NodeID, fc *types.FinalCommitment) error {
	commitmentHash := fc.Hash()
	if p.requests != nil {
		p.requests.ClearRequest(nodeID, commitmentHash)
	}

	if fc.IsNull() {
		err := misbehave(reject(ReasonInvalidNull, ErrInvalidNullCommitment))
		p.metrics.markRejected(err)
		return err
	}
	pm, ok := p.registry.Get(fc.QuorumType)
	if !ok {
		err := misbehave(rejectf(ReasonBadCommitmentType, "%w: %d", ErrUnknownCommitteeType, fc.QuorumType))
		p.metrics.markRejected(err)
		return err
	}

	base, ok := p.chain.Lookup(fc.QuorumHash)
	if !ok {
		// We may be behind or on another fork; nothing provable here.
		p.log.Debug("commitment for unknown block",
			log.Stringer("quorumHash", fc.QuorumHash),
			log.Stringer("nodeID", nodeID),
		)
		return nil
	}
	if !p.chain.Contains(base) {
		p.log.Debug("commitment for inactive block",
			log.Stringer("quorumHash", fc.QuorumHash),
			log.Stringer("nodeID", nodeID),
		)
		return nil
	}
	if cycle.CommitteeHeight(pm, base.Height, fc.QuorumIndex) != base.Height {
		err := misbehave(rejectf(ReasonBadBlock,
			"%w: height %d is not the committee base for index %d",
			ErrWrongCommitteeBlock, base.Height, fc.QuorumIndex))
		p.metrics.markRejected(err)
		return err
	}

	tip := p.chain.Tip()
	if tip == nil {
		return nil
	}
	if base.Height+pm.DKGInterval < tip.Height {
		p.log.Debug("commitment too old",
			log.Stringer("quorumHash", fc.QuorumHash),
			log.Uint64("committeeHeight", base.Height),
			log.Uint64("tipHeight", tip.Height),
		)
		return nil
	}

	p.lock.Lock()
	mined, err := p.store.HasCommitment(pm.Type, fc.QuorumHash)
	p.lock.Unlock()
	if err != nil {
		return err
	}
	if mined {
		return nil
	}

	// If the pool already holds an equal-or-better commitment for this slot,
	// skip verification entirely. This keeps flooding with known-covered
	// commitments from costing BLS work.
	if current, ok := p.pool.Get(pm.Type, fc.QuorumHash, fc.QuorumIndex); ok &&
		current.CountSigners() >= fc.CountSigners() {
		return nil
	}

	if err := p.verifier.VerifyCommitment(fc, base, p.forks.At(base.Height), true); err != nil {
		err = misbehave(rejectf(ReasonInvalid, "%w: %w", ErrInvalidCommitment, err))
		p.metrics.markRejected(err)
		return err
	}

	if p.pool.Add(fc) {
		p.log.Debug("pooled gossiped commitment",
			log.Stringer("quorumHash", fc.QuorumHash),
			log.Int("index", int(fc.QuorumIndex)),
			log.Int("signers", fc.CountSigners()),
		)
		if p.relayer != nil {
			p.relayer.RelayCommitment(commitmentHash)
		}
	}
	return nil
}

// ProcessBlock validates and applies the commitments in [blk], connected at
// [idx]. With [justCheck] all checks run but nothing is written. With
// [checkSigs] false, BLS verification is skipped (block came with sufficient
// work to make whole-block recheck redundant).
//
// Writes are staged and committed atomically; a rejected block leaves no
// partial state.
func (p *Processor) ProcessBlock(blk *types.Block, idx *chain.BlockIndex, justCheck, checkSigs bool) error {
	p.lock.Lock()
	defer p.lock.Unlock()

	if err := p.processBlock(blk, idx, justCheck, checkSigs); err != nil {
		p.store.Abort()
		p.metrics.markRejected(err)
		return err
	}
	if justCheck {
		p.store.Abort()
		return nil
	}
	if err := p.store.Commit(); err != nil {
		return err
	}
	p.metrics.blocksProcessed.Inc()
	return nil
}

func (p *Processor) processBlock(blk *types.Block, idx *chain.BlockIndex, justCheck, checkSigs bool) error {
	rules := p.forks.At(idx.Height)

	found, err := p.extractCommitments(blk, idx, rules)
	if err != nil {
		return err
	}
	if !rules.SubsystemActive {
		// Before activation blocks carry no commitments (extractCommitments
		// enforces that); just advance the processed marker.
		return p.store.SetLastProcessedBlock(idx.Hash)
	}

	// Inside the mining window every block must carry exactly one (possibly
	// null) commitment per uncovered active committee, and none otherwise.
	// Replay after a crash skips this: the chain view has no tip yet.
	if p.chain.Tip() != nil && idx.Height > 0 {
		prevRules := p.forks.At(idx.Height - 1)
		for _, pm := range p.registry.List() {
			// Enablement and rotation are both evaluated at the previous
			// block, so a fork boundary block is still validated under the
			// schedule its miner saw.
			var (
				rotation    = prevRules.Rotation(pm)
				commitments = found[pm.Type]
				required    = 0
			)
			if prevRules.TypeEnabled(pm) {
				var hasMinedErr error
				required = cycle.RequiredCommitments(pm, idx.Parent, idx.Height, rotation,
					func(base *chain.BlockIndex) bool {
						mined, err := p.store.HasCommitment(pm.Type, base.Hash)
						if err != nil {
							hasMinedErr = err
						}
						return mined
					},
				)
				if hasMinedErr != nil {
					return hasMinedErr
				}
			}
			if len(commitments) > required {
				return rejectf(ReasonNotAllowed, "%w: %d commitments of type %d, %d allowed",
					ErrCommitmentNotAllowed, len(commitments), pm.Type, required)
			}
			if len(commitments) < required {
				return rejectf(ReasonMissing, "%w: %d commitments of type %d, %d required",
					ErrCommitmentMissing, len(commitments), pm.Type, required)
			}
		}
	}

	for _, t := range p.registry.Types() {
		for _, fc := range found[t] {
			if err := p.processCommitment(fc, idx, justCheck, checkSigs); err != nil {
				return err
			}
		}
	}

	return p.store.SetLastProcessedBlock(idx.Hash)
}

// extractCommitments decodes every commitment transaction in [blk], enforcing
// payload well-formedness, known committee types, the payload height, the
// one-commitment-per-type rule (lifted under rotation), and that blocks
// before activation carry no commitments at all.
func (p *Processor) extractCommitments(
	blk *types.Block,
	idx *chain.BlockIndex,
	rules params.Rules,
) (map[params.QuorumType][]*types.FinalCommitment, error) {
	found := make(map[params.QuorumType][]*types.FinalCommitment)
	for _, tx := range blk.Txs {
		if !tx.IsCommitment() {
			continue
		}
		payload, err := tx.CommitmentPayload()
		if err != nil {
			return nil, reject(ReasonBadPayload, err)
		}
		if payload.Height != idx.Height {
			return nil, rejectf(ReasonBadHeight, "%w: payload says %d, block is at %d",
				ErrWrongPayloadHeight, payload.Height, idx.Height)
		}
		fc := &payload.Commitment
		pm, ok := p.registry.Get(fc.QuorumType)
		if !ok {
			return nil, rejectf(ReasonBadCommitmentType, "%w: %d", ErrUnknownCommitteeType, fc.QuorumType)
		}
		if !rules.Rotation(pm) && len(found[fc.QuorumType]) != 0 {
			return nil, rejectf(ReasonDuplicate, "%w: second commitment of type %d",
				ErrDuplicateCommitment, fc.QuorumType)
		}
		found[fc.QuorumType] = append(found[fc.QuorumType], fc)
	}

	if !rules.SubsystemActive && len(found) != 0 {
		return nil, reject(ReasonPremature, ErrCommitmentPremature)
	}
	return found, nil
}

// processCommitment applies a single commitment from the block at [idx].
func (p *Processor) processCommitment(fc *types.FinalCommitment, idx *chain.BlockIndex, justCheck, checkSigs bool) error {
	pm := p.registry.MustGet(fc.QuorumType)

	// The committee base block is resolved from the parent of the block
	// being connected. During crash replay there is no chain view to resolve
	// against, so the commitment's own reference is trusted: it was already
	// validated when the block was first connected.
	var base *chain.BlockIndex
	if p.chain.Tip() == nil {
		looked, ok := p.chain.Lookup(fc.QuorumHash)
		if !ok {
			return fmt.Errorf("replaying unknown committee block %s", fc.QuorumHash)
		}
		base = looked
	} else {
		base = cycle.CommitteeBlock(pm, idx.Parent, idx.Height, fc.QuorumIndex)
		if base == nil {
			return rejectf(ReasonBadBlock, "%w: base block for index %d not known at height %d",
				ErrWrongCommitteeBlock, fc.QuorumIndex, idx.Height)
		}
		if base.Hash != fc.QuorumHash {
			return rejectf(ReasonBadBlock, "%w: commitment says %s, chain says %s",
				ErrWrongCommitteeBlock, fc.QuorumHash, base.Hash)
		}
	}

	if fc.IsNull() {
		if err := fc.VerifyNull(pm); err != nil {
			return rejectf(ReasonInvalidNull, "%w: %w", ErrInvalidNullCommitment, err)
		}
		return nil
	}

	mined, err := p.store.HasCommitment(pm.Type, fc.QuorumHash)
	if err != nil {
		return err
	}
	if mined {
		return rejectf(ReasonDuplicate, "%w: committee %s already has a mined commitment",
			ErrDuplicateCommitment, fc.QuorumHash)
	}
	if !cycle.IsMiningPhase(pm, idx.Height) {
		return rejectf(ReasonBadHeight, "%w: height %d", ErrOutsideMiningPhase, idx.Height)
	}

	// Rotation and scheme rules are pinned to the committee base block.
	if err := p.verifier.VerifyCommitment(fc, base, p.forks.At(base.Height), checkSigs); err != nil {
		return rejectf(ReasonInvalid, "%w: %w", ErrInvalidCommitment, err)
	}

	if justCheck {
		return nil
	}

	if err := p.store.PutCommitment(fc, idx.Hash, idx.Height, base.Height); err != nil {
		return err
	}
	p.pool.Evict(pm.Type, fc.QuorumHash, fc.QuorumIndex)
	p.metrics.commitmentsMined.With(metric.Labels{typeLabel: pm.Type.String()}).Inc()

	p.log.Info("mined commitment",
		log.Stringer("quorumHash", fc.QuorumHash),
		log.Int("index", int(fc.QuorumIndex)),
		log.Uint64("height", idx.Height),
		log.Int("signers", fc.CountSigners()),
		log.Int("validMembers", fc.CountValidMembers()),
	)
	return nil
}

// UndoBlock rolls back the commitments mined in [blk] at [idx] during a
// reorg. Non-null commitments return to the pool so they can be mined again
// on the new branch.
func (p *Processor) UndoBlock(blk *types.Block, idx *chain.BlockIndex) error {
	p.lock.Lock()
	defer p.lock.Unlock()

	if err := p.undoBlock(blk, idx); err != nil {
		p.store.Abort()
		return err
	}
	if err := p.store.Commit(); err != nil {
		return err
	}
	p.metrics.blocksUndone.Inc()
	return nil
}

func (p *Processor) undoBlock(blk *types.Block, idx *chain.BlockIndex) error {
	rules := p.forks.At(idx.Height)
	found, err := p.extractCommitments(blk, idx, rules)
	if err != nil {
		return err
	}

	for _, t := range p.registry.Types() {
		for _, fc := range found[t] {
			if fc.IsNull() {
				continue
			}
			if err := p.store.EraseCommitment(fc.QuorumType, fc.QuorumHash); err != nil {
				return err
			}
			// The disconnected commitment is valid on the surviving branch's
			// history, so offer it for mining again.
			if p.pool.Add(fc) && p.relayer != nil {
				p.relayer.RelayCommitment(fc.Hash())
			}
			p.log.Debug("unmined commitment",
				log.Stringer("quorumHash", fc.QuorumHash),
				log.Int("index", int(fc.QuorumIndex)),
				log.Uint64("height", idx.Height),
			)
		}
	}

	if idx.Parent == nil {
		if idx.Height != 0 {
			return errGenesisUndo
		}
		return p.store.SetLastProcessedBlock(ids.Empty)
	}
	return p.store.SetLastProcessedBlock(idx.Parent.Hash)
}

// RequiredCommitmentCount returns how many commitments of type [t] a block at
// [height] must carry on the current chain.
func (p *Processor) RequiredCommitmentCount(t params.QuorumType, height uint64) (int, error) {
	pm, ok := p.registry.Get(t)
	if !ok {
		return 0, fmt.Errorf("%w: %d", ErrUnknownCommitteeType, t)
	}

	tip := p.resolveTip(height)
	if tip == nil {
		return 0, nil
	}

	p.lock.Lock()
	defer p.lock.Unlock()

	var hasMinedErr error
	required := cycle.RequiredCommitments(pm, tip, height, p.prevRotation(pm, height),
		func(base *chain.BlockIndex) bool {
			mined, err := p.store.HasCommitment(pm.Type, base.Hash)
			if err != nil {
				hasMinedErr = err
			}
			return mined
		},
	)
	return required, hasMinedErr
}

// prevRotation evaluates rotation for a block at [height] at the block
// before it, matching the count validation in processBlock.
func (p *Processor) prevRotation(pm params.Params, height uint64) bool {
	if height > 0 {
		height--
	}
	return p.forks.At(height).Rotation(pm)
}

// resolveTip returns the active-chain block to resolve committee base blocks
// against when evaluating a (possibly future) block at [height].
func (p *Processor) resolveTip(height uint64) *chain.BlockIndex {
	tip := p.chain.Tip()
	if tip == nil || tip.Height < height {
		return tip
	}
	return tip.Ancestor(height)
}
