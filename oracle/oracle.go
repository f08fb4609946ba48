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

// Package oracle provides the timestamp source this repository treats
// as an external collaborator: it never decides transaction order
// itself, only hands back readings from whatever clock backs it,
// whether a PD cluster or an in-process counter.
package oracle

import (
	"context"
	"math"
)

// TimeStamp is a monotone value from the external oracle. The zero
// value denotes "unset".
type TimeStamp uint64

// Zero is the sentinel "unset" timestamp (e.g. a rollback decision).
const Zero TimeStamp = 0

// Max is the largest representable timestamp, used to read "as of
// now" against the write column family.
const Max TimeStamp = math.MaxUint64

// IsZero reports whether ts is the unset sentinel.
func (ts TimeStamp) IsZero() bool { return ts == Zero }

// Prev returns the timestamp immediately preceding ts, used by
// find_mvcc_infos_by_key to keep walking older commit versions.
func (ts TimeStamp) Prev() TimeStamp {
	if ts == Zero {
		return Zero
	}
	return ts - 1
}

const physicalShiftBits = 18

// ComposeTS folds a PD physical/logical timestamp pair into the single
// uint64 TimeStamp this repository threads everywhere.
func ComposeTS(physical, logical int64) TimeStamp {
	return TimeStamp(uint64(physical)<<physicalShiftBits + uint64(logical))
}

// ExtractPhysical pulls the millisecond wall-clock component back out
// of a composed timestamp — used to check lock TTL expiry against
// currentTS, exactly as mvcc_leveldb.go's CheckTxnStatus/Cleanup do.
func ExtractPhysical(ts TimeStamp) int64 {
	return int64(uint64(ts) >> physicalShiftBits)
}

// Oracle hands out timestamps. Implementations must be safe for
// concurrent use; every worker in the executor's pool may call
// GetTimestamp concurrently.
type Oracle interface {
	GetTimestamp(ctx context.Context) (TimeStamp, error)
	Close()
}
