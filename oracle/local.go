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

package oracle

import (
	"context"
	"sync"
	"time"
)

// LocalOracle is an in-process monotonic clock for tests and
// single-binary demos, generating strictly increasing timestamps
// without a PD cluster to talk to.
type LocalOracle struct {
	mu       sync.Mutex
	physical int64
	logical  int64
}

// NewLocalOracle returns a LocalOracle seeded from the wall clock.
func NewLocalOracle() *LocalOracle {
	return &LocalOracle{physical: time.Now().UnixMilli()}
}

// GetTimestamp returns a strictly increasing timestamp: the logical
// counter advances within the same millisecond, and rolls into the
// physical component when it would otherwise repeat.
func (o *LocalOracle) GetTimestamp(_ context.Context) (TimeStamp, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	physical := time.Now().UnixMilli()
	if physical <= o.physical {
		o.logical++
	} else {
		o.physical = physical
		o.logical = 0
	}
	return ComposeTS(o.physical, o.logical), nil
}

// Close is a no-op; LocalOracle owns no external resource.
func (o *LocalOracle) Close() {}
