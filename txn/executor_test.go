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
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pingcap/kvproto/pkg/kvrpcpb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tikv/txn-scheduler/config"
	"github.com/tikv/txn-scheduler/engine"
	"github.com/tikv/txn-scheduler/lockwaiter"
	"github.com/tikv/txn-scheduler/mvcc"
)

// recordingScheduler collects every Msg posted by an Executor so tests
// can assert the at-most-once message contract without a real
// scheduler loop.
type recordingScheduler struct {
	mu   sync.Mutex
	msgs []Msg
	seen chan struct{}
}

func newRecordingScheduler() *recordingScheduler {
	return &recordingScheduler{seen: make(chan struct{}, 64)}
}

func (s *recordingScheduler) OnMsg(msg Msg) {
	s.mu.Lock()
	s.msgs = append(s.msgs, msg)
	s.mu.Unlock()
	s.seen <- struct{}{}
}

func (s *recordingScheduler) waitForOne(t *testing.T) Msg {
	t.Helper()
	select {
	case <-s.seen:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for a message")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.msgs[len(s.msgs)-1]
}

func newTestExecutor(t *testing.T) (*Executor, *recordingScheduler, engine.Engine) {
	t.Helper()
	eng, err := engine.NewMemEngine()
	require.NoError(t, err)
	t.Cleanup(func() { _ = eng.Close() })

	sched := newRecordingScheduler()
	exec := NewExecutor(eng, config.Default, sched, lockwaiter.NewWaitManager())
	t.Cleanup(exec.Close)
	return exec, sched, eng
}

func TestExecutorPrewriteThenCommitPostsWriteFinished(t *testing.T) {
	exec, sched, _ := newTestExecutor(t)
	key := []byte("k1")

	exec.Schedule(NewTask(1, &Prewrite{
		StartTS:   10,
		Mutations: []mvcc.Mutation{{Op: kvrpcpb.Op_Put, Key: key, Value: []byte("v1")}},
		Primary:   key,
		LockTTL:   1000,
	}, context.Background()))
	msg := sched.waitForOne(t)
	wf, ok := msg.(WriteFinished)
	require.True(t, ok, "expected WriteFinished, got %T", msg)
	assert.Equal(t, uint64(1), wf.CID)
	assert.Empty(t, wf.Result.Prewrite.Errors)

	exec.Schedule(NewTask(2, &Commit{StartTS: 10, Keys: [][]byte{key}, CommitTS: 11}, context.Background()))
	msg = sched.waitForOne(t)
	wf, ok = msg.(WriteFinished)
	require.True(t, ok, "expected WriteFinished, got %T", msg)
	assert.Equal(t, uint64(2), wf.CID)

	exec.Schedule(NewTask(3, &MvccByKey{Key: key}, context.Background()))
	msg = sched.waitForOne(t)
	rf, ok := msg.(ReadFinished)
	require.True(t, ok, "expected ReadFinished, got %T", msg)
	require.NotNil(t, rf.Result.MvccInfo)
	assert.Nil(t, rf.Result.MvccInfo.Lock)
}

func TestExecutorAcquirePessimisticLockWaitsOnConflict(t *testing.T) {
	exec, sched, _ := newTestExecutor(t)
	key := []byte("k1")

	exec.Schedule(NewTask(1, &AcquirePessimisticLock{
		StartTS: 10, ForUpdateTS: 10,
		Mutations: []mvcc.Mutation{{Key: key}},
		Primary:   key, LockTTL: 1000,
	}, context.Background()))
	msg := sched.waitForOne(t)
	_, ok := msg.(WriteFinished)
	require.True(t, ok, "expected WriteFinished, got %T", msg)

	exec.Schedule(NewTask(2, &AcquirePessimisticLock{
		StartTS: 20, ForUpdateTS: 20,
		Mutations:   []mvcc.Mutation{{Key: key}},
		Primary:     key, LockTTL: 1000,
		WaitTimeout: time.Second,
	}, context.Background()))
	msg = sched.waitForOne(t)
	wl, ok := msg.(WaitForLock)
	require.True(t, ok, "expected WaitForLock, got %T", msg)
	assert.Equal(t, uint64(2), wl.CID)
	assert.Equal(t, uint64(10), wl.LockTS)
}

// fakeWaiterManager counts WakeUp calls and always reports no waiters,
// so a test can tell whether a command woke up unconditionally
// (PessimisticRollback) versus only when HasWaiter() is true.
type fakeWaiterManager struct {
	lockwaiter.Manager
	wakeCalls int
}

func (f *fakeWaiterManager) HasWaiter() bool { return false }
func (f *fakeWaiterManager) WakeUp(lockTS uint64, keyHashes []uint64, commitTS uint64, isPessimistic bool) {
	f.wakeCalls++
}

func TestPessimisticRollbackWakesWaitersEvenWithoutHasWaiter(t *testing.T) {
	eng, err := engine.NewMemEngine()
	require.NoError(t, err)
	t.Cleanup(func() { _ = eng.Close() })

	fake := &fakeWaiterManager{}
	sched := newRecordingScheduler()
	exec := NewExecutor(eng, config.Default, sched, fake)
	t.Cleanup(exec.Close)

	key := []byte("k1")
	exec.Schedule(NewTask(1, &AcquirePessimisticLock{
		StartTS: 10, ForUpdateTS: 10,
		Mutations: []mvcc.Mutation{{Key: key}},
		Primary:   key, LockTTL: 1000,
	}, context.Background()))
	sched.waitForOne(t)

	exec.Schedule(NewTask(2, &PessimisticRollback{StartTS: 10, ForUpdateTS: 10, Keys: [][]byte{key}}, context.Background()))
	msg := sched.waitForOne(t)
	_, ok := msg.(WriteFinished)
	require.True(t, ok, "expected WriteFinished, got %T", msg)
	assert.Equal(t, 1, fake.wakeCalls)
}

func TestExecutorPropagatesCbContextTermIntoCommandContext(t *testing.T) {
	exec, sched, _ := newTestExecutor(t)

	cmd := &MvccByKey{Key: []byte("k1")}
	task := NewTask(1, cmd, context.Background()).WithCbContext(CbContext{Term: 7})
	exec.Schedule(task)
	sched.waitForOne(t)

	assert.Equal(t, uint64(7), cmd.Ctx.Term)
}

func TestExecutorReadAgainstClosedEngineReportsFinishedWithErr(t *testing.T) {
	eng, err := engine.NewMemEngine()
	require.NoError(t, err)
	require.NoError(t, eng.Close())

	sched := newRecordingScheduler()
	exec := NewExecutor(eng, config.Default, sched, lockwaiter.NewWaitManager())
	defer exec.Close()

	exec.Schedule(NewTask(1, &MvccByKey{Key: []byte("k1")}, context.Background()))
	msg := sched.waitForOne(t)
	_, ok := msg.(FinishedWithErr)
	assert.True(t, ok, "expected FinishedWithErr, got %T", msg)
}
