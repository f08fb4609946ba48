// Copyright 2026 TiKV Authors
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

// Package metrics registers the prometheus collectors the executor
// reports through, built with github.com/prometheus/client_golang.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// StageCounter counts command-processing outcomes by stage
// (snapshot_ok, snapshot_err, process, write, async_write_err,
// prepare_write_err).
var StageCounter = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "txn_scheduler",
		Name:      "command_stage_total",
		Help:      "Number of times a command reached a given processing stage.",
	},
	[]string{"command", "stage"},
)

// CommandDuration observes the wall-clock cost of a full command,
// read or write, from the moment the executor dequeues it.
var CommandDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "txn_scheduler",
		Name:      "command_duration_seconds",
		Help:      "Latency of one scheduled command's full processing.",
		Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 18),
	},
	[]string{"command"},
)

// RowsWritten observes how many mutations a write command's engine
// batch touched.
var RowsWritten = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "txn_scheduler",
		Name:      "command_keys_written",
		Help:      "Number of keys written by one write command.",
		Buckets:   prometheus.ExponentialBuckets(1, 2, 16),
	},
	[]string{"command"},
)

// WaiterGauge tracks the number of commands currently suspended in the
// lock-waiter manager.
var WaiterGauge = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "txn_scheduler",
		Name:      "lock_waiters",
		Help:      "Number of commands currently waiting on a pessimistic lock.",
	},
)

func init() {
	prometheus.MustRegister(StageCounter, CommandDuration, RowsWritten, WaiterGauge)
}
