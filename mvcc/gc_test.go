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

package mvcc

import (
	"context"
	"testing"

	"github.com/pingcap/kvproto/pkg/kvrpcpb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tikv/txn-scheduler/oracle"
)

// TestGCKeepsNewestVersionAtOrBeforeSafePoint covers the reclamation
// pass SPEC_FULL.md's supplemented-features section names: three
// committed versions of one key, and a safePoint landing between the
// second and third commit, should leave exactly the newest version at
// or before safePoint plus whatever is still newer than it.
func TestGCKeepsNewestVersionAtOrBeforeSafePoint(t *testing.T) {
	eng := newTestEngine(t)
	key := []byte("k1")

	for i, startTS := range []oracle.TimeStamp{10, 20, 30} {
		txn := NewTxn(snapshot(t, eng), startTS)
		require.NoError(t, txn.Prewrite(Mutation{Op: kvrpcpb.Op_Put, Key: key, Value: []byte{byte('a' + i)}}, PrewriteOptions{PrimaryLock: key, LockTTL: 1000}))
		apply(t, eng, txn.IntoModifies())

		commitTxn := NewTxn(snapshot(t, eng), startTS)
		_, err := commitTxn.Commit(key, startTS+1)
		require.NoError(t, err)
		apply(t, eng, commitTxn.IntoModifies())
	}

	modifies, err := GC(context.Background(), snapshot(t, eng), key, nil, 25)
	require.NoError(t, err)
	apply(t, eng, modifies)

	reader := NewReader(snapshot(t, eng))
	writes, err := reader.ScanWrites(key)
	require.NoError(t, err)
	require.Len(t, writes, 2, "the safePoint=25 pass should keep commit_ts=21 and the still-newer commit_ts=31")
	for _, w := range writes {
		assert.GreaterOrEqual(t, uint64(w.CommitTS), uint64(21))
	}
}

// TestGCRefusesToRunPastAPendingLock covers the safety check mirroring
// mvcc_leveldb.go:GC: a lock still outstanding at or before safePoint
// must abort the pass rather than silently reclaim a version an
// in-flight transaction might still need.
func TestGCRefusesToRunPastAPendingLock(t *testing.T) {
	eng := newTestEngine(t)
	key := []byte("k1")

	txn := NewTxn(snapshot(t, eng), 10)
	require.NoError(t, txn.Prewrite(Mutation{Op: kvrpcpb.Op_Put, Key: key, Value: []byte("v")}, PrewriteOptions{PrimaryLock: key, LockTTL: 1000}))
	apply(t, eng, txn.IntoModifies())

	_, err := GC(context.Background(), snapshot(t, eng), key, nil, 100)
	assert.Error(t, err)
}
