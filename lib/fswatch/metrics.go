// Copyright (C) 2024 The Syncthing Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

package fswatch

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fswatch",
		Name:      "events_total",
		Help:      "Number of logical events delivered to a Watcher, by type.",
	}, []string{"type"})

	metricOverflowTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fswatch",
		Name:      "overflow_total",
		Help:      "Number of kernel notification queue overflows observed, by backend.",
	}, []string{"backend"})

	metricWatchErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fswatch",
		Name:      "watch_errors_total",
		Help:      "Number of WatcherErrors delivered to subscribers, by backend.",
	}, []string{"backend"})

	metricActiveWatches = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "fswatch",
		Name:      "active_watches",
		Help:      "Number of currently active Watcher subscriptions.",
	})
)

func recordEvents(events []Event) {
	for _, e := range events {
		metricEventsTotal.WithLabelValues(e.Type().String()).Inc()
	}
}
