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
	"github.com/tikv/txn-scheduler/engine"
	"github.com/tikv/txn-scheduler/oracle"
	"github.com/tikv/txn-scheduler/tikverr"
)

func newTestEngine(t *testing.T) engine.Engine {
	e, err := engine.NewMemEngine()
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func apply(t *testing.T, eng engine.Engine, modifies []engine.Modify) {
	t.Helper()
	done := make(chan error, 1)
	err := eng.AsyncWrite(context.Background(), modifies, func(err error) { done <- err })
	require.NoError(t, err)
	require.NoError(t, <-done)
}

func snapshot(t *testing.T, eng engine.Engine) engine.Snapshot {
	t.Helper()
	snap, err := eng.Snapshot(context.Background())
	require.NoError(t, err)
	return snap
}

func TestPrewriteCommitRoundTrip(t *testing.T) {
	eng := newTestEngine(t)
	key, value := []byte("k1"), []byte("v1")

	txn := NewTxn(snapshot(t, eng), 10)
	err := txn.Prewrite(Mutation{Op: kvrpcpb.Op_Put, Key: key, Value: value}, PrewriteOptions{PrimaryLock: key, LockTTL: 1000})
	require.NoError(t, err)
	apply(t, eng, txn.IntoModifies())

	commitTxn := NewTxn(snapshot(t, eng), 10)
	isPessimistic, err := commitTxn.Commit(key, 11)
	require.NoError(t, err)
	assert.False(t, isPessimistic)
	apply(t, eng, commitTxn.IntoModifies())

	reader := NewReader(snapshot(t, eng))
	got, err := reader.Get(key, oracle.Max)
	require.NoError(t, err)
	assert.Equal(t, value, got)

	lock, err := reader.LoadLock(key)
	require.NoError(t, err)
	assert.Nil(t, lock)
}

func TestPrewriteConflict(t *testing.T) {
	eng := newTestEngine(t)
	key := []byte("k1")

	txn1 := NewTxn(snapshot(t, eng), 10)
	require.NoError(t, txn1.Prewrite(Mutation{Op: kvrpcpb.Op_Put, Key: key, Value: []byte("v1")}, PrewriteOptions{PrimaryLock: key, LockTTL: 1000}))
	apply(t, eng, txn1.IntoModifies())

	commitTxn := NewTxn(snapshot(t, eng), 10)
	_, err := commitTxn.Commit(key, 11)
	require.NoError(t, err)
	apply(t, eng, commitTxn.IntoModifies())

	txn2 := NewTxn(snapshot(t, eng), 5)
	err = txn2.Prewrite(Mutation{Op: kvrpcpb.Op_Put, Key: key, Value: []byte("v2")}, PrewriteOptions{PrimaryLock: key, LockTTL: 1000})
	var wc *tikverr.ErrWriteConflict
	assert.ErrorAs(t, err, &wc)
}

func TestInsertAlreadyExist(t *testing.T) {
	eng := newTestEngine(t)
	key := []byte("k1")

	txn1 := NewTxn(snapshot(t, eng), 10)
	require.NoError(t, txn1.Prewrite(Mutation{Op: kvrpcpb.Op_Put, Key: key, Value: []byte("v1")}, PrewriteOptions{PrimaryLock: key, LockTTL: 1000}))
	apply(t, eng, txn1.IntoModifies())
	commitTxn := NewTxn(snapshot(t, eng), 10)
	_, err := commitTxn.Commit(key, 11)
	require.NoError(t, err)
	apply(t, eng, commitTxn.IntoModifies())

	txn2 := NewTxn(snapshot(t, eng), 20)
	err = txn2.Prewrite(Mutation{Op: kvrpcpb.Op_Insert, Key: key, Value: []byte("v2")}, PrewriteOptions{PrimaryLock: key, LockTTL: 1000})
	var ae *tikverr.ErrAlreadyExist
	assert.ErrorAs(t, err, &ae)
}

func TestRollbackThenPrewriteSucceeds(t *testing.T) {
	eng := newTestEngine(t)
	key := []byte("k1")

	txn1 := NewTxn(snapshot(t, eng), 10)
	require.NoError(t, txn1.Prewrite(Mutation{Op: kvrpcpb.Op_Put, Key: key, Value: []byte("v1")}, PrewriteOptions{PrimaryLock: key, LockTTL: 1000}))
	apply(t, eng, txn1.IntoModifies())

	rb := NewTxn(snapshot(t, eng), 10)
	_, err := rb.Rollback(key)
	require.NoError(t, err)
	apply(t, eng, rb.IntoModifies())

	lock, err := NewReader(snapshot(t, eng)).LoadLock(key)
	require.NoError(t, err)
	assert.Nil(t, lock)

	txn2 := NewTxn(snapshot(t, eng), 20)
	err = txn2.Prewrite(Mutation{Op: kvrpcpb.Op_Put, Key: key, Value: []byte("v2")}, PrewriteOptions{PrimaryLock: key, LockTTL: 1000})
	require.NoError(t, err)
}

func TestPessimisticLockAndPrewrite(t *testing.T) {
	eng := newTestEngine(t)
	key := []byte("k1")

	lockTxn := NewTxn(snapshot(t, eng), 10)
	_, err := lockTxn.AcquirePessimisticLock(key, 10, LockWaitOptions{PrimaryLock: key, LockTTL: 1000, ForUpdateTS: 10})
	require.NoError(t, err)
	apply(t, eng, lockTxn.IntoModifies())

	lock, err := NewReader(snapshot(t, eng)).LoadLock(key)
	require.NoError(t, err)
	require.NotNil(t, lock)
	assert.True(t, lock.Pessimistic)

	prewriteTxn := NewTxn(snapshot(t, eng), 10)
	err = prewriteTxn.PessimisticPrewrite(Mutation{Op: kvrpcpb.Op_Put, Key: key, Value: []byte("v1")}, PrewriteOptions{PrimaryLock: key, LockTTL: 1000, ForUpdateTS: 10})
	require.NoError(t, err)
	apply(t, eng, prewriteTxn.IntoModifies())

	lock, err = NewReader(snapshot(t, eng)).LoadLock(key)
	require.NoError(t, err)
	require.NotNil(t, lock)
	assert.False(t, lock.Pessimistic)
}

func TestPessimisticPrewriteWithoutLockAborts(t *testing.T) {
	eng := newTestEngine(t)
	key := []byte("k1")

	txn := NewTxn(snapshot(t, eng), 10)
	err := txn.PessimisticPrewrite(Mutation{Op: kvrpcpb.Op_Put, Key: key, Value: []byte("v1")}, PrewriteOptions{PrimaryLock: key, LockTTL: 1000, ForUpdateTS: 10})
	assert.Error(t, err)
	var abort tikverr.ErrAbort
	assert.ErrorAs(t, err, &abort)
}

func TestCheckTxnStatusExpiresLock(t *testing.T) {
	eng := newTestEngine(t)
	key := []byte("primary")

	startTS := oracle.ComposeTS(1000, 0)
	txn := NewTxn(snapshot(t, eng), startTS)
	require.NoError(t, txn.Prewrite(Mutation{Op: kvrpcpb.Op_Put, Key: key, Value: []byte("v")}, PrewriteOptions{PrimaryLock: key, LockTTL: 100}))
	apply(t, eng, txn.IntoModifies())

	currentTS := oracle.ComposeTS(1000+200, 0)
	checkTxn := NewTxn(snapshot(t, eng), startTS)
	status, isPessimistic, err := checkTxn.CheckTxnStatus(key, oracle.Zero, currentTS, true)
	require.NoError(t, err)
	assert.False(t, isPessimistic)
	assert.Equal(t, ActionTTLExpireRollback, status.Action)
	assert.True(t, status.IsExpired)
	apply(t, eng, checkTxn.IntoModifies())

	lock, err := NewReader(snapshot(t, eng)).LoadLock(key)
	require.NoError(t, err)
	assert.Nil(t, lock)
}

type stubDetector struct {
	called  bool
	lockTS  uint64
	fwdTS   uint64
	keyHash uint64
	err     error
}

func (d *stubDetector) Detect(lockTS, forUpdateTS, keyHash uint64) error {
	d.called = true
	d.lockTS, d.fwdTS, d.keyHash = lockTS, forUpdateTS, keyHash
	return d.err
}

func TestAcquirePessimisticLockConsultsDeadlockDetectorOnConflict(t *testing.T) {
	eng := newTestEngine(t)
	key := []byte("k1")

	holder := NewTxn(snapshot(t, eng), 10)
	_, err := holder.AcquirePessimisticLock(key, 10, LockWaitOptions{PrimaryLock: key, LockTTL: 1000, ForUpdateTS: 10})
	require.NoError(t, err)
	apply(t, eng, holder.IntoModifies())

	det := &stubDetector{}
	waiter := NewTxn(snapshot(t, eng), 20)
	_, err = waiter.AcquirePessimisticLock(key, 20, LockWaitOptions{PrimaryLock: key, LockTTL: 1000, ForUpdateTS: 20, Detector: det})
	assert.Error(t, err)
	assert.True(t, det.called)
	assert.Equal(t, uint64(20), det.lockTS)
	assert.Equal(t, uint64(10), det.fwdTS)
}

func TestAcquirePessimisticLockSurfacesDetectedDeadlock(t *testing.T) {
	eng := newTestEngine(t)
	key := []byte("k1")

	holder := NewTxn(snapshot(t, eng), 10)
	_, err := holder.AcquirePessimisticLock(key, 10, LockWaitOptions{PrimaryLock: key, LockTTL: 1000, ForUpdateTS: 10})
	require.NoError(t, err)
	apply(t, eng, holder.IntoModifies())

	wantErr := &tikverr.ErrDeadlock{LockKey: key, LockTS: 10, DeadlockKeyHash: 42}
	det := &stubDetector{err: wantErr}
	waiter := NewTxn(snapshot(t, eng), 20)
	_, err = waiter.AcquirePessimisticLock(key, 20, LockWaitOptions{PrimaryLock: key, LockTTL: 1000, ForUpdateTS: 20, Detector: det})
	assert.Same(t, wantErr, err)
}

func TestCheckTxnStatusPushesMinCommitTS(t *testing.T) {
	eng := newTestEngine(t)
	key := []byte("primary")
	startTS := oracle.TimeStamp(10)

	txn := NewTxn(snapshot(t, eng), startTS)
	require.NoError(t, txn.Prewrite(Mutation{Op: kvrpcpb.Op_Put, Key: key, Value: []byte("v")}, PrewriteOptions{PrimaryLock: key, LockTTL: 100000, MinCommitTS: startTS + 1}))
	apply(t, eng, txn.IntoModifies())

	checkTxn := NewTxn(snapshot(t, eng), startTS)
	status, _, err := checkTxn.CheckTxnStatus(key, startTS+5, oracle.Zero, false)
	require.NoError(t, err)
	assert.Equal(t, ActionMinCommitTSPushed, status.Action)
	apply(t, eng, checkTxn.IntoModifies())

	lock, err := NewReader(snapshot(t, eng)).LoadLock(key)
	require.NoError(t, err)
	require.NotNil(t, lock)
	assert.Equal(t, startTS+6, lock.MinCommitTS)
}
