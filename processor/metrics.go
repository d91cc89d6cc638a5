// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package processor

import (
	"github.com/luxfi/metric"
)

const (
	typeLabel   = "committee_type"
	reasonLabel = "reason"
)

type processorMetrics struct {
	blocksProcessed  metric.Counter
	blocksUndone     metric.Counter
	commitmentsMined metric.CounterVec
	rejections       metric.CounterVec
}

func newMetrics(registerer metric.Registerer) (*processorMetrics, error) {
	m := &processorMetrics{
		blocksProcessed: metric.NewCounter(metric.CounterOpts{
			Name: "blocks_processed",
			Help: "Number of blocks whose commitments were applied",
		}),
		blocksUndone: metric.NewCounter(metric.CounterOpts{
			Name: "blocks_undone",
			Help: "Number of blocks whose commitments were rolled back",
		}),
		commitmentsMined: metric.NewCounterVec(
			metric.CounterOpts{
				Name: "commitments_mined",
				Help: "Number of non-null commitments stored, by committee type",
			},
			[]string{typeLabel},
		),
		rejections: metric.NewCounterVec(
			metric.CounterOpts{
				Name: "commitment_rejections",
				Help: "Number of consensus rejections, by reason",
			},
			[]string{reasonLabel},
		),
	}

	if err := registerer.Register(metric.AsCollector(m.blocksProcessed)); err != nil {
		return nil, err
	}
	if err := registerer.Register(metric.AsCollector(m.blocksUndone)); err != nil {
		return nil, err
	}
	if err := registerer.Register(metric.AsCollector(m.commitmentsMined)); err != nil {
		return nil, err
	}
	if err := registerer.Register(metric.AsCollector(m.rejections)); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *processorMetrics) markRejected(err error) {
	if reason, ok := RejectReason(err); ok {
		m.rejections.With(metric.Labels{reasonLabel: reason}).Inc()
	}
}
