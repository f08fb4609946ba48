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
	"encoding/binary"
	"sync"

	"github.com/google/uuid"
	opentracing "github.com/opentracing/opentracing-go"
	"github.com/twmb/murmur3"
	"go.uber.org/zap"

	"github.com/tikv/txn-scheduler/config"
	"github.com/tikv/txn-scheduler/engine"
	"github.com/tikv/txn-scheduler/internal/logutil"
	"github.com/tikv/txn-scheduler/internal/util"
	"github.com/tikv/txn-scheduler/lockwaiter"
	"github.com/tikv/txn-scheduler/metrics"
)

// Executor owns the worker pool that turns scheduled Tasks into
// engine reads/writes and reports exactly one Msg per task back to
// Scheduler, the Go analogue of the Rust source's Executor<E, S, L>.
// Task dispatch is sharded by region id (hashed with murmur3) across
// the pool so repeated traffic against one region tends to land on
// the same worker, the cheap-locality trick spec.md's Non-goals leave
// room for without implementing real scheduler latches.
type Executor struct {
	eng      engine.Engine
	cfg      config.Config
	sched    Scheduler
	waiter   lockwaiter.Manager
	detector lockwaiter.DeadlockDetector

	chans []chan *Task
	ids   []uuid.UUID
	wg    sync.WaitGroup
	done  chan struct{}
}

// NewExecutor starts cfg.WorkerPoolSize worker goroutines, each
// tagged with its own uuid for slow-log/span attribution. Deadlock
// detection defaults to a no-op, per spec.md's Non-goals; wire a real
// one with SetDeadlockDetector.
func NewExecutor(eng engine.Engine, cfg config.Config, sched Scheduler, waiter lockwaiter.Manager) *Executor {
	n := cfg.WorkerPoolSize
	if n <= 0 {
		n = 1
	}
	e := &Executor{
		eng: eng, cfg: cfg, sched: sched, waiter: waiter, detector: lockwaiter.NoopDeadlockDetector{},
		chans: make([]chan *Task, n), ids: make([]uuid.UUID, n), done: make(chan struct{}),
	}
	for i := 0; i < n; i++ {
		e.chans[i] = make(chan *Task, 256)
		e.ids[i] = uuid.New()
		e.wg.Add(1)
		go e.worker(i)
	}
	return e
}

// SetDeadlockDetector installs a non-default detector for pessimistic
// lock acquisition to consult. Must be called before Schedule is used
// concurrently with it.
func (e *Executor) SetDeadlockDetector(d lockwaiter.DeadlockDetector) {
	e.detector = d
}

// Close stops accepting new tasks and waits for every in-flight task
// to finish.
func (e *Executor) Close() {
	close(e.done)
	for _, ch := range e.chans {
		close(ch)
	}
	e.wg.Wait()
}

// Schedule hands t to its sharded worker. It is the only entry point
// into the executor; callers outside this package never touch a
// worker channel directly.
func (e *Executor) Schedule(t *Task) {
	shard := e.shardFor(t.RegionID)
	select {
	case e.chans[shard] <- t:
	case <-e.done:
	}
}

func (e *Executor) shardFor(regionID uint64) int {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], regionID)
	h := murmur3.Sum64(buf[:])
	return int(h % uint64(len(e.chans)))
}

func (e *Executor) worker(idx int) {
	defer e.wg.Done()
	workerID := e.ids[idx]
	for t := range e.chans[idx] {
		e.execute(t, workerID)
	}
}

// execute runs one task to completion: snapshot, process, (for writes)
// apply and wake any parked waiters, then post exactly one Msg.
func (e *Executor) execute(t *Task, workerID uuid.UUID) {
	kind := t.Cmd.Kind().String()

	// spec.md §4.1: if the callback context carries a raft term,
	// propagate it into the command's context before processing.
	if t.CbCtx.Term != 0 {
		t.Cmd.Context().Term = t.CbCtx.Term
	}

	var span opentracing.Span
	if parent := opentracing.SpanFromContext(t.Ctx); parent != nil {
		span = opentracing.StartSpan("txn.execute", opentracing.ChildOf(parent.Context()))
		span.SetTag("command", kind)
		span.SetTag("worker", workerID.String())
		defer span.Finish()
	}
	timer := logutil.NewSlowTimer()

	if _, err := util.EvalFailpoint("scheduler-async-snapshot-finish"); err == nil {
		logutil.Logger(t.Ctx).Info("[failpoint] injected delay before snapshot finish", zap.String("cmd", kind))
	}

	snap, err := e.eng.Snapshot(t.Ctx)
	if err != nil {
		metrics.StageCounter.WithLabelValues(kind, "snapshot_err").Inc()
		e.sched.OnMsg(FinishedWithErr{CID: t.CID, Err: err})
		return
	}
	metrics.StageCounter.WithLabelValues(kind, "snapshot_ok").Inc()

	if !t.Cmd.IsWrite() {
		util.EvalFailpoint("txn-before-process-read") //nolint:errcheck
		res, err := processRead(t.Ctx, snap, t.Cmd)
		metrics.StageCounter.WithLabelValues(kind, "process").Inc()
		if err != nil {
			e.sched.OnMsg(FinishedWithErr{CID: t.CID, Err: err})
			return
		}
		e.sched.OnMsg(ReadFinished{CID: t.CID, Result: res})
		logutil.SlowLog(t.Ctx, e.cfg.SlowLogThreshold, timer, "read command finished", zap.String("cmd", kind), zap.String("worker", workerID.String()))
		return
	}

	util.EvalFailpoint("txn-before-process-write") //nolint:errcheck
	wr, err := processWrite(t.Ctx, snap, e.eng, e.cfg, e.detector, t.Cmd)
	metrics.StageCounter.WithLabelValues(kind, "process").Inc()
	if err != nil {
		metrics.StageCounter.WithLabelValues(kind, "prepare_write_err").Inc()
		e.sched.OnMsg(FinishedWithErr{CID: t.CID, Err: err})
		return
	}

	if wr.LockInfo != nil {
		keyHash := lockwaiter.KeyHash(wr.LockKey)
		e.waiter.Register(wr.LockInfo.LockVersion, keyHash)
		var startTS uint64
		if c, ok := t.Cmd.(*AcquirePessimisticLock); ok {
			startTS = uint64(c.StartTS)
		}
		e.sched.OnMsg(WaitForLock{
			CID: t.CID, StartTS: startTS, Result: wr.Result,
			LockTS: wr.LockInfo.LockVersion, KeyHash: keyHash, Key: wr.LockKey,
			IsFirstLock: wr.IsFirstLock, WaitTimeout: wr.WaitTimeout,
		})
		return
	}

	if len(wr.ToBeWritten) == 0 {
		e.finishWrite(t, wr)
		return
	}

	metrics.StageCounter.WithLabelValues(kind, "write").Inc()
	metrics.RowsWritten.WithLabelValues(kind).Observe(float64(wr.Rows))
	err = e.eng.AsyncWrite(t.Ctx, wr.ToBeWritten, func(werr error) {
		if werr != nil {
			metrics.StageCounter.WithLabelValues(kind, "async_write_err").Inc()
			e.sched.OnMsg(FinishedWithErr{CID: t.CID, Err: werr})
			return
		}
		e.finishWrite(t, wr)
	})
	if err != nil {
		e.sched.OnMsg(FinishedWithErr{CID: t.CID, Err: err})
		return
	}
	logutil.SlowLog(t.Ctx, e.cfg.SlowLogThreshold, timer, "write command dispatched", zap.String("cmd", kind), zap.String("worker", workerID.String()))
}

// finishWrite wakes any parked waiters this command's result frees,
// then posts the final WriteFinished message.
func (e *Executor) finishWrite(t *Task, wr *WriteResult) {
	if wr.WakeLockTS != 0 && len(wr.WakeKeyHashes) > 0 && (wr.WakeForce || e.waiter.HasWaiter()) {
		e.waiter.WakeUp(wr.WakeLockTS, wr.WakeKeyHashes, wr.WakeCommitTS, wr.WakeIsPessimistic)
	}
	e.sched.OnMsg(WriteFinished{CID: t.CID, Result: wr.Result})
}
