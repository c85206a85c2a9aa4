// Copyright 2025 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package zyre

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "zyre"

// Reasons an inbound frame or outbound message was dropped.
const (
	dropMalformed  = "malformed"
	dropNotReady   = "not_ready"
	dropQueueFull  = "queue_full"
	dropBadBeacon  = "bad_beacon"
	dropNoTarget   = "no_target"
	dropSendFailed = "send_failed"
)

// metrics holds the per-node collectors. Every series carries a constant
// "node" label so several nodes can share one registry.
type metrics struct {
	peers       prometheus.Gauge
	events      *prometheus.CounterVec
	received    *prometheus.CounterVec
	sent        *prometheus.CounterVec
	dropped     *prometheus.CounterVec
	seqGaps     prometheus.Counter
	beaconsSent prometheus.Counter
	beaconsRecv prometheus.Counter

	reg        prometheus.Registerer
	collectors []prometheus.Collector
}

func newMetrics(reg prometheus.Registerer, node string) (*metrics, error) {
	labels := prometheus.Labels{"node": node}
	m := &metrics{
		peers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   metricsNamespace,
			Name:        "peers",
			Help:        "Number of known peers.",
			ConstLabels: labels,
		}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   metricsNamespace,
			Name:        "events_total",
			Help:        "Events delivered to the application, by type.",
			ConstLabels: labels,
		}, []string{"type"}),
		received: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   metricsNamespace,
			Name:        "messages_received_total",
			Help:        "Decoded peer messages, by kind.",
			ConstLabels: labels,
		}, []string{"kind"}),
		sent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   metricsNamespace,
			Name:        "messages_sent_total",
			Help:        "Peer messages queued for sending, by kind.",
			ConstLabels: labels,
		}, []string{"kind"}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   metricsNamespace,
			Name:        "dropped_total",
			Help:        "Frames and messages dropped, by reason.",
			ConstLabels: labels,
		}, []string{"reason"}),
		seqGaps: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   metricsNamespace,
			Name:        "sequence_gaps_total",
			Help:        "Inbound messages whose sequence number was not the expected one.",
			ConstLabels: labels,
		}),
		beaconsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   metricsNamespace,
			Name:        "beacons_sent_total",
			Help:        "Discovery beacons broadcast.",
			ConstLabels: labels,
		}),
		beaconsRecv: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   metricsNamespace,
			Name:        "beacons_received_total",
			Help:        "Valid discovery beacons received from other nodes.",
			ConstLabels: labels,
		}),
	}
	m.collectors = []prometheus.Collector{
		m.peers, m.events, m.received, m.sent, m.dropped,
		m.seqGaps, m.beaconsSent, m.beaconsRecv,
	}

	if reg == nil {
		return m, nil
	}
	for i, c := range m.collectors {
		if err := reg.Register(c); err != nil {
			for _, done := range m.collectors[:i] {
				reg.Unregister(done)
			}
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				return nil, fmt.Errorf("zyre: metrics for node %s already registered: %w", node, err)
			}
			return nil, fmt.Errorf("zyre: could not register metrics: %w", err)
		}
	}
	m.reg = reg
	return m, nil
}

// unregister removes the collectors so a stopped node does not keep
// exporting stale series.
func (m *metrics) unregister() {
	if m.reg == nil {
		return
	}
	for _, c := range m.collectors {
		m.reg.Unregister(c)
	}
	m.reg = nil
}
