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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComposeExtractPhysicalRoundTrip(t *testing.T) {
	ts := ComposeTS(1234567, 7)
	assert.Equal(t, int64(1234567), ExtractPhysical(ts))
}

func TestTimeStampPrev(t *testing.T) {
	assert.Equal(t, TimeStamp(4), TimeStamp(5).Prev())
	assert.Equal(t, Zero, Zero.Prev())
}

func TestLocalOracleMonotonic(t *testing.T) {
	o := NewLocalOracle()
	defer o.Close()

	prev := Zero
	for i := 0; i < 100; i++ {
		ts, err := o.GetTimestamp(context.Background())
		require.NoError(t, err)
		assert.True(t, ts > prev, "timestamps must be strictly increasing")
		prev = ts
	}
}
