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

	pd "github.com/tikv/pd/client"
)

// PDOracle wraps a real PD client. This is the only place in the
// repository that imports tikv/pd/client: the command processor never
// talks to PD directly, it only ever asks an Oracle for "now".
type PDOracle struct {
	client pd.Client
}

// NewPDOracle wraps an already-constructed PD client.
func NewPDOracle(client pd.Client) *PDOracle {
	return &PDOracle{client: client}
}

// GetTimestamp requests a fresh (physical, logical) pair from PD and
// composes it into a single TimeStamp.
func (o *PDOracle) GetTimestamp(ctx context.Context) (TimeStamp, error) {
	physical, logical, err := o.client.GetTS(ctx)
	if err != nil {
		return Zero, err
	}
	return ComposeTS(physical, logical), nil
}

// Close releases the underlying PD client.
func (o *PDOracle) Close() {
	o.client.Close()
}
