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

// Package config holds the tuning knobs the txn package's executor
// and write processor read: a flat struct with defaults, overridable
// from environment variables, no external file format.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config groups the processor's tuning knobs.
type Config struct {
	// ForwardMinMutationsNum is the minimum mutation-batch size before
	// Prewrite considers switching to its forward-scan fast path.
	ForwardMinMutationsNum int
	// ResolveLockBatchSize caps how many locks one ResolveLock write
	// phase processes before yielding a continuation.
	ResolveLockBatchSize int
	// MaxTxnWriteSize caps the buffered write-batch byte size before
	// ResolveLock yields a continuation, independent of the lock-count
	// cap above.
	MaxTxnWriteSize int
	// WorkerPoolSize is the number of goroutines the executor's pool
	// runs.
	WorkerPoolSize int
	// SlowLogThreshold is the minimum command duration that triggers a
	// slow-log entry.
	SlowLogThreshold time.Duration
}

// Default holds the processor's out-of-the-box tuning values.
var Default = Config{
	ForwardMinMutationsNum: 12,
	ResolveLockBatchSize:   256,
	MaxTxnWriteSize:        32 * 1024,
	WorkerPoolSize:         8,
	SlowLogThreshold:       300 * time.Millisecond,
}

// FromEnv overlays TXN_SCHEDULER_*-prefixed environment variables onto
// Default, the way small internal tools in this corpus pick up
// process-wide tuning without a config file.
func FromEnv() Config {
	c := Default
	if v, ok := lookupInt("TXN_SCHEDULER_FORWARD_MIN_MUTATIONS_NUM"); ok {
		c.ForwardMinMutationsNum = v
	}
	if v, ok := lookupInt("TXN_SCHEDULER_RESOLVE_LOCK_BATCH_SIZE"); ok {
		c.ResolveLockBatchSize = v
	}
	if v, ok := lookupInt("TXN_SCHEDULER_MAX_TXN_WRITE_SIZE"); ok {
		c.MaxTxnWriteSize = v
	}
	if v, ok := lookupInt("TXN_SCHEDULER_WORKER_POOL_SIZE"); ok {
		c.WorkerPoolSize = v
	}
	if v, ok := os.LookupEnv("TXN_SCHEDULER_SLOW_LOG_THRESHOLD"); ok {
		if d, err := time.ParseDuration(v); err == nil {
			c.SlowLogThreshold = d
		}
	}
	return c
}

func lookupInt(name string) (int, bool) {
	v, ok := os.LookupEnv(name)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}
