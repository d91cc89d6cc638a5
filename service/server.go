// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package service

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/luxfi/log"
	"github.com/luxfi/metric"

	"github.com/luxfi/quorum/chain"
	"github.com/luxfi/quorum/processor"
)

const (
	queryEndpoint   = "/ext/quorum"
	metricsEndpoint = "/ext/metrics"
)

// NewRouter mounts the query API and a prometheus metrics endpoint on a
// single HTTP router.
func NewRouter(
	log log.Logger,
	view chain.View,
	proc *processor.Processor,
	gatherer metric.Gatherer,
) (http.Handler, error) {
	handler, err := NewService(log, view, proc)
	if err != nil {
		return nil, err
	}

	router := mux.NewRouter()
	router.Handle(queryEndpoint, handler).Methods(http.MethodPost)
	router.Handle(metricsEndpoint, promhttp.HandlerFor(
		prometheus.GathererFunc(gatherer.Gather),
		promhttp.HandlerOpts{},
	))
	return router, nil
}
