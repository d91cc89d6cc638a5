// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package pool

import (
	"github.com/luxfi/metric"
)

type poolMetrics struct {
	numCommitments metric.Gauge
	replacements   metric.Counter
}

func newMetrics(registerer metric.Registerer) (*poolMetrics, error) {
	m := &poolMetrics{
		numCommitments: metric.NewGauge(metric.GaugeOpts{
			Name: "pool_num_commitments",
			Help: "Number of mineable commitments in the pool",
		}),
		replacements: metric.NewCounter(metric.CounterOpts{
			Name: "pool_replacements",
			Help: "Number of pooled commitments replaced by better ones",
		}),
	}

	if err := registerer.Register(metric.AsCollector(m.numCommitments)); err != nil {
		return nil, err
	}
	if err := registerer.Register(metric.AsCollector(m.replacements)); err != nil {
		return nil, err
	}
	return m, nil
}
