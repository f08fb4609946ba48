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

package txn

import (
	"testing"

	"github.com/pingcap/kvproto/pkg/kvrpcpb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tikv/txn-scheduler/lockwaiter"
	"github.com/tikv/txn-scheduler/tikverr"
)

// TestExtractLockFromKeyIsLockedResult covers spec.md §8's extract-lock
// scenario: given a KeyIsLocked error over key "key" at lock_version
// 100, the caller should be able to recover both the lock's start_ts
// and the wait-queue hash the lock-waiter manager keys on.
func TestExtractLockFromKeyIsLockedResult(t *testing.T) {
	key := []byte("key")
	err := &tikverr.ErrKeyIsLocked{Info: &kvrpcpb.LockInfo{
		Key: key, LockVersion: 100, PrimaryLock: key,
	}}

	info, ok := tikverr.AsKeyIsLocked(err)
	require.True(t, ok)
	assert.Equal(t, uint64(100), info.GetLockVersion())
	assert.Equal(t, lockwaiter.KeyHash(key), lockwaiter.KeyHash(info.GetKey()))
}
