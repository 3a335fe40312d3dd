// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Thermoquad/sextant/pkg/duplex"
)

var (
	registerOnce sync.Once

	engineEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sextant",
			Subsystem: "engine",
			Name:      "events_total",
			Help:      "Engine transitions by kind.",
		},
		[]string{"node", "kind"},
	)
	callDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "sextant",
			Subsystem: "engine",
			Name:      "call_duration_seconds",
			Help:      "Time from first transmission to completion of a send.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"node", "cmd", "result"},
	)
	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sextant",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests to the status endpoint.",
		},
		[]string{"node", "method", "path", "status"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(engineEvents, callDuration, httpRequests)
	})
}

// RecordEvent counts one engine event
func RecordEvent(node string, ev duplex.Event) {
	RegisterMetrics()
	engineEvents.WithLabelValues(node, ev.Kind.String()).Inc()
}

// RecordCall observes a finished send
func RecordCall(node string, call *duplex.Call) {
	RegisterMetrics()
	result := "ok"
	if call.Err != nil {
		result = strconv.Itoa(duplex.Code(call.Err))
	}
	callDuration.WithLabelValues(node, "0x"+strconv.FormatUint(uint64(call.Command), 16), result).
		Observe(call.RTT().Seconds())
}

func RecordHTTPRequest(node, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	httpRequests.WithLabelValues(node, method, path, strconv.Itoa(status)).Inc()
}
