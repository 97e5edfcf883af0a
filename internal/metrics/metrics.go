// Copyright (c) 2023 The tlvmux Authors. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package metrics exports the server counters and handler observations to
// Prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/tlvmux/tlvmux"
)

// StatsSource is anything that can report server counters, usually a *tlvmux.Server.
type StatsSource interface {
	Stats() tlvmux.Stats
}

// ServerMetrics holds the collectors reading a StatsSource on every scrape.
type ServerMetrics struct {
	Connections prometheus.GaugeFunc
	Accepted    prometheus.CounterFunc
	Rejected    prometheus.CounterFunc
	Closed      prometheus.CounterFunc
	MessagesIn  prometheus.CounterFunc
	MessagesOut prometheus.CounterFunc
	BytesIn     prometheus.CounterFunc
	BytesOut    prometheus.CounterFunc
}

// NewServerMetrics registers the server collectors with reg.
func NewServerMetrics(reg prometheus.Registerer, src StatsSource) *ServerMetrics {
	f := promauto.With(reg)
	counter := func(name, help string, read func(tlvmux.Stats) uint64) prometheus.CounterFunc {
		return f.NewCounterFunc(prometheus.CounterOpts{Name: name, Help: help},
			func() float64 { return float64(read(src.Stats())) })
	}

	return &ServerMetrics{
		Connections: f.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "tlvmux_connections",
			Help: "Number of live connections",
		}, func() float64 { return float64(src.Stats().Connections) }),
		Accepted: counter("tlvmux_connections_accepted_total", "Connections accepted",
			func(s tlvmux.Stats) uint64 { return s.Accepted }),
		Rejected: counter("tlvmux_connections_rejected_total", "Connections refused by the connection limit",
			func(s tlvmux.Stats) uint64 { return s.Rejected }),
		Closed: counter("tlvmux_connections_closed_total", "Connections closed",
			func(s tlvmux.Stats) uint64 { return s.Closed }),
		MessagesIn: counter("tlvmux_messages_received_total", "TLV frames received",
			func(s tlvmux.Stats) uint64 { return s.MessagesIn }),
		MessagesOut: counter("tlvmux_messages_queued_total", "Payloads queued for sending",
			func(s tlvmux.Stats) uint64 { return s.MessagesOut }),
		BytesIn: counter("tlvmux_bytes_received_total", "Bytes read from peers",
			func(s tlvmux.Stats) uint64 { return s.BytesIn }),
		BytesOut: counter("tlvmux_bytes_sent_total", "Bytes written to peers",
			func(s tlvmux.Stats) uint64 { return s.BytesOut }),
	}
}

// HandlerMetrics observes what a handler does with the frames it receives.
// A nil *HandlerMetrics is valid and records nothing.
type HandlerMetrics struct {
	valueSize   *prometheus.HistogramVec
	replyErrors prometheus.Counter
}

// NewHandlerMetrics registers the handler collectors with reg.
func NewHandlerMetrics(reg prometheus.Registerer) *HandlerMetrics {
	f := promauto.With(reg)
	return &HandlerMetrics{
		valueSize: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tlvmux_message_value_bytes",
			Help:    "Size of received TLV values",
			Buckets: prometheus.ExponentialBuckets(16, 4, 10),
		}, []string{"path"}),
		replyErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "tlvmux_reply_errors_total",
			Help: "Replies that could not be queued",
		}),
	}
}

// ObserveMessage records a received value of size bytes handled on path,
// "loop" or "pool".
func (m *HandlerMetrics) ObserveMessage(path string, size int) {
	if m == nil {
		return
	}
	m.valueSize.WithLabelValues(path).Observe(float64(size))
}

// ReplyFailed counts a reply that could not be queued.
func (m *HandlerMetrics) ReplyFailed() {
	if m == nil {
		return
	}
	m.replyErrors.Inc()
}
