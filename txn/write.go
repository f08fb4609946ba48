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
	"bytes"
	"context"
	"sort"

	"github.com/tikv/txn-scheduler/config"
	"github.com/tikv/txn-scheduler/engine"
	"github.com/tikv/txn-scheduler/internal/codec"
	"github.com/tikv/txn-scheduler/lockwaiter"
	"github.com/tikv/txn-scheduler/mvcc"
	"github.com/tikv/txn-scheduler/oracle"
	"github.com/tikv/txn-scheduler/tikverr"
)

// processWrite runs one write-path command's MVCC logic against snap,
// returning the modifies to apply plus whatever the scheduler needs
// to hear back, the Go analogue of the Rust source's
// process_write_impl.
func processWrite(ctx context.Context, snap engine.Snapshot, eng engine.Engine, cfg config.Config, detector lockwaiter.DeadlockDetector, cmd Command) (*WriteResult, error) {
	switch c := cmd.(type) {
	case *Prewrite:
		return writePrewrite(snap, eng, cfg, c)
	case *AcquirePessimisticLock:
		return writeAcquirePessimisticLock(snap, detector, c)
	case *Commit:
		return writeCommit(snap, c)
	case *Cleanup:
		return writeCleanup(snap, c)
	case *Rollback:
		return writeRollback(snap, c)
	case *PessimisticRollback:
		return writePessimisticRollback(snap, c)
	case *ResolveLock:
		return writeResolveLock(ctx, snap, cfg, c)
	case *ResolveLockLite:
		return writeResolveLockLite(snap, c)
	case *TxnHeartBeat:
		return writeTxnHeartBeat(snap, c)
	case *CheckTxnStatus:
		return writeCheckTxnStatus(snap, c)
	case *Pause:
		return &WriteResult{Result: CommandResult{Kind: KindPause}}, nil
	default:
		return nil, errUnsupportedReadCommand(cmd.Kind())
	}
}

// writePrewrite applies the fast-path heuristic spec.md §4.3.1
// describes: when the batch is large and the write CF has no data at
// all in the mutations' key range, every mutation can skip its
// conflict check, since nothing could possibly conflict.
func writePrewrite(snap engine.Snapshot, eng engine.Engine, cfg config.Config, c *Prewrite) (*WriteResult, error) {
	skipCC := c.SkipConstraintCheck
	mode := mvcc.ScanModeNone
	if !skipCC && len(c.Mutations) >= cfg.ForwardMinMutationsNum {
		if c.ForUpdateTS == 0 {
			sort.Slice(c.Mutations, func(i, j int) bool { return bytes.Compare(c.Mutations[i].Key, c.Mutations[j].Key) < 0 })
		}
		lo, hi := mutationKeyRange(c.Mutations)
		hasData, err := eng.HasDataInRange(engine.CFWrite, lo, hi)
		if err != nil {
			return nil, err
		}
		if !hasData {
			skipCC = true
			mode = mvcc.ScanModeForward
		}
	}

	t := mvcc.NewTxnForScan(snap, mode, c.StartTS, c.Ctx.FillCache).WithIsolation(c.Ctx.IsolationLevel)
	result := &PrewriteResult{}
	for i, m := range c.Mutations {
		opts := mvcc.PrewriteOptions{
			PrimaryLock: c.Primary, LockTTL: c.LockTTL, SkipConstraintCheck: skipCC,
			TxnSize: c.TxnSize, MinCommitTS: c.MinCommitTS, MaxCommitTS: c.MaxCommitTS,
		}
		var mErr error
		if c.ForUpdateTS != 0 && i < len(c.IsPessimisticLock) && c.IsPessimisticLock[i] {
			opts.ForUpdateTS = c.ForUpdateTS
			mErr = t.PessimisticPrewrite(m, opts)
		} else {
			mErr = t.Prewrite(m, opts)
		}
		if mErr != nil {
			result.Errors = append(result.Errors, PerKeyError{Key: m.Key, Err: mErr})
		}
	}
	if len(result.Errors) == 0 && !c.MinCommitTS.IsZero() {
		result.MinCommitTS = uint64(c.MinCommitTS)
	}

	modifies := t.IntoModifies()
	return &WriteResult{ToBeWritten: modifies, Rows: len(modifies), Result: CommandResult{Kind: KindPrewrite, Prewrite: result}}, nil
}

func mutationKeyRange(mutations []mvcc.Mutation) (lo, hi []byte) {
	lo, hi = mutations[0].Key, mutations[0].Key
	for _, m := range mutations[1:] {
		if bytes.Compare(m.Key, lo) < 0 {
			lo = m.Key
		}
		if bytes.Compare(m.Key, hi) > 0 {
			hi = m.Key
		}
	}
	return codec.EncodeBytes(nil, lo), codec.EncodeUintDesc(codec.EncodeBytes(nil, hi), 0)
}

// writeAcquirePessimisticLock stops at the first conflicting key
// rather than collecting an error per mutation: pessimistic locking
// is meant to serialize the caller against that conflict, not skip
// past it, mirroring the Rust source's break-on-first-lock behavior.
func writeAcquirePessimisticLock(snap engine.Snapshot, detector lockwaiter.DeadlockDetector, c *AcquirePessimisticLock) (*WriteResult, error) {
	t := mvcc.NewTxn(snap, c.StartTS).WithIsolation(c.Ctx.IsolationLevel)
	result := &PessimisticLockResult{}
	var wr *WriteResult
	for _, m := range c.Mutations {
		opts := mvcc.LockWaitOptions{
			PrimaryLock: c.Primary, LockTTL: c.LockTTL, ForUpdateTS: c.ForUpdateTS,
			TxnSize: c.TxnSize, MinCommitTS: c.MinCommitTS,
			ReturnValue: c.ReturnValues || c.CheckExistence, LockOnly: !c.ReturnValues && !c.CheckExistence,
			Detector: detector,
		}
		value, err := t.AcquirePessimisticLock(m.Key, c.ForUpdateTS, opts)
		if err != nil {
			if info, ok := tikverr.AsKeyIsLocked(err); ok && c.WaitTimeout != 0 {
				modifies := t.IntoModifies()
				wr = &WriteResult{
					ToBeWritten: modifies, Rows: len(modifies),
					Result:      CommandResult{Kind: KindAcquirePessimisticLock, PessimisticLock: result},
					LockInfo:    info, LockKey: m.Key,
					IsFirstLock: c.IsFirstLock, WaitTimeout: c.WaitTimeout,
				}
				return wr, nil
			}
			result.Errors = append(result.Errors, PerKeyError{Key: m.Key, Err: err})
			break
		}
		result.Values = append(result.Values, value)
		result.Existence = append(result.Existence, value != nil)
	}

	modifies := t.IntoModifies()
	return &WriteResult{ToBeWritten: modifies, Rows: len(modifies), Result: CommandResult{Kind: KindAcquirePessimisticLock, PessimisticLock: result}}, nil
}

func writeCommit(snap engine.Snapshot, c *Commit) (*WriteResult, error) {
	t := mvcc.NewTxn(snap, c.StartTS).WithIsolation(c.Ctx.IsolationLevel)
	isPessimistic := false
	hashes := make([]uint64, 0, len(c.Keys))
	for _, k := range c.Keys {
		p, err := t.Commit(k, c.CommitTS)
		if err != nil {
			return nil, err
		}
		isPessimistic = isPessimistic || p
		hashes = append(hashes, lockwaiter.KeyHash(k))
	}
	modifies := t.IntoModifies()
	return &WriteResult{
		ToBeWritten: modifies, Rows: len(modifies),
		Result:            CommandResult{Kind: KindCommit},
		WakeLockTS:        uint64(c.StartTS),
		WakeKeyHashes:     hashes,
		WakeCommitTS:      uint64(c.CommitTS),
		WakeIsPessimistic: isPessimistic,
	}, nil
}

func writeCleanup(snap engine.Snapshot, c *Cleanup) (*WriteResult, error) {
	t := mvcc.NewTxn(snap, c.StartTS).WithIsolation(c.Ctx.IsolationLevel)
	isPessimistic, err := t.Cleanup(c.Key, c.CurrentTS)
	if err != nil {
		return nil, err
	}
	modifies := t.IntoModifies()
	return &WriteResult{
		ToBeWritten: modifies, Rows: len(modifies),
		Result:            CommandResult{Kind: KindCleanup},
		WakeLockTS:        uint64(c.StartTS),
		WakeKeyHashes:     []uint64{lockwaiter.KeyHash(c.Key)},
		WakeIsPessimistic: isPessimistic,
	}, nil
}

func writeRollback(snap engine.Snapshot, c *Rollback) (*WriteResult, error) {
	t := mvcc.NewTxn(snap, c.StartTS).WithIsolation(c.Ctx.IsolationLevel)
	isPessimistic := false
	hashes := make([]uint64, 0, len(c.Keys))
	for _, k := range c.Keys {
		p, err := t.Rollback(k)
		if err != nil {
			return nil, err
		}
		isPessimistic = isPessimistic || p
		hashes = append(hashes, lockwaiter.KeyHash(k))
	}
	modifies := t.IntoModifies()
	return &WriteResult{
		ToBeWritten: modifies, Rows: len(modifies),
		Result:            CommandResult{Kind: KindRollback},
		WakeLockTS:        uint64(c.StartTS),
		WakeKeyHashes:     hashes,
		WakeIsPessimistic: isPessimistic,
	}, nil
}

func writePessimisticRollback(snap engine.Snapshot, c *PessimisticRollback) (*WriteResult, error) {
	t := mvcc.NewTxn(snap, c.StartTS).WithIsolation(c.Ctx.IsolationLevel)
	hashes := make([]uint64, 0, len(c.Keys))
	for _, k := range c.Keys {
		if err := t.PessimisticRollback(k, c.ForUpdateTS); err != nil {
			return nil, err
		}
		hashes = append(hashes, lockwaiter.KeyHash(k))
	}
	modifies := t.IntoModifies()
	return &WriteResult{
		ToBeWritten: modifies, Rows: len(modifies),
		Result:            CommandResult{Kind: KindPessimisticRollback},
		WakeLockTS:        uint64(c.StartTS),
		WakeKeyHashes:     hashes,
		WakeIsPessimistic: true,
		WakeForce:         true,
	}, nil
}

func writeTxnHeartBeat(snap engine.Snapshot, c *TxnHeartBeat) (*WriteResult, error) {
	t := mvcc.NewTxn(snap, c.StartTS).WithIsolation(c.Ctx.IsolationLevel)
	ttl, err := t.TxnHeartBeat(c.PrimaryKey, c.AdviseLockTTL)
	if err != nil {
		return nil, err
	}
	modifies := t.IntoModifies()
	status := &mvcc.TxnStatus{Action: mvcc.ActionNoAction, LockTTL: ttl}
	return &WriteResult{ToBeWritten: modifies, Rows: len(modifies), Result: CommandResult{Kind: KindTxnHeartBeat, TxnStatus: status}}, nil
}

func writeCheckTxnStatus(snap engine.Snapshot, c *CheckTxnStatus) (*WriteResult, error) {
	t := mvcc.NewTxn(snap, c.LockTS).WithIsolation(c.Ctx.IsolationLevel)
	status, isPessimistic, err := t.CheckTxnStatus(c.PrimaryKey, c.CallerStartTS, c.CurrentTS, c.RollbackIfNotExist)
	if err != nil {
		return nil, err
	}
	modifies := t.IntoModifies()
	wr := &WriteResult{ToBeWritten: modifies, Rows: len(modifies), Result: CommandResult{Kind: KindCheckTxnStatus, TxnStatus: &status}}
	// Only a TTL-expire or lock-not-exist rollback actually frees the
	// key, so only those actions are worth a wake-up pass.
	switch status.Action {
	case mvcc.ActionTTLExpireRollback, mvcc.ActionTTLExpirePessimisticRollback, mvcc.ActionLockNotExistRollback:
		wr.WakeLockTS = uint64(c.LockTS)
		wr.WakeKeyHashes = []uint64{lockwaiter.KeyHash(c.PrimaryKey)}
		wr.WakeIsPessimistic = isPessimistic
	}
	return wr, nil
}

// writeResolveLockLite resolves a known, small set of keys for one
// transaction without a prior lock scan, mirroring the Rust source's
// ResolveLockLite.
func writeResolveLockLite(snap engine.Snapshot, c *ResolveLockLite) (*WriteResult, error) {
	t := mvcc.NewTxn(snap, c.StartTS).WithIsolation(c.Ctx.IsolationLevel)
	hashes := make([]uint64, 0, len(c.Keys))
	isPessimistic := false
	for _, k := range c.Keys {
		var p bool
		var err error
		if c.CommitTS.IsZero() {
			p, err = t.Rollback(k)
		} else {
			p, err = t.Commit(k, c.CommitTS)
		}
		if err != nil {
			return nil, err
		}
		isPessimistic = isPessimistic || p
		hashes = append(hashes, lockwaiter.KeyHash(k))
	}
	modifies := t.IntoModifies()
	return &WriteResult{
		ToBeWritten: modifies, Rows: len(modifies),
		Result:            CommandResult{Kind: KindResolveLockLite},
		WakeLockTS:        uint64(c.StartTS),
		WakeKeyHashes:     hashes,
		WakeCommitTS:      uint64(c.CommitTS),
		WakeIsPessimistic: isPessimistic,
	}, nil
}

// writeResolveLock scans CF_LOCK for every lock whose start_ts is a
// key of c.TxnStatus and commits or rolls each one back in scan order,
// mirroring the Rust source's key_locks loop and MAX_TXN_WRITE_SIZE-
// bounded batching. Keys are processed one at a time, in the order
// the scan returned them, rather than grouped by transaction: Go map
// iteration order is randomized, and bucketing would let the
// write-size cap cut the pass short after an arbitrary subset of
// transactions instead of a prefix of the scanned window, silently
// skipping whatever buckets didn't happen to run first. Processing
// sequentially keeps "every lock resolved exactly once" true across
// continuations, since NextScanKey always names the actual last key
// this call touched. The resolved keys' hashes are reported in
// WakeKeyHashes, but WakeLockTS is left zero, so the executor issues no
// waiter wake-up for a ResolveLock batch.
func writeResolveLock(ctx context.Context, snap engine.Snapshot, cfg config.Config, c *ResolveLock) (*WriteResult, error) {
	reader := mvcc.NewScanReader(snap, mvcc.ScanModeForward, c.Ctx.FillCache).WithIsolation(c.Ctx.IsolationLevel)
	locks, hasMore, err := reader.ScanLocks(ctx, c.ScanKey, 0, cfg.ResolveLockBatchSize)
	if err != nil {
		return nil, err
	}

	var modifies []engine.Modify
	var hashes []uint64
	writeSize := 0
	cappedEarly := false
	var lastProcessed []byte

	for _, kl := range locks {
		commitTS, ok := c.TxnStatus[uint64(kl.Lock.StartTS)]
		if !ok {
			continue
		}
		t := mvcc.NewTxn(snap, kl.Lock.StartTS).WithIsolation(c.Ctx.IsolationLevel)
		if commitTS.IsZero() {
			_, err = t.Rollback(kl.Key)
		} else {
			_, err = t.Commit(kl.Key, commitTS)
		}
		if err != nil {
			return nil, err
		}
		hashes = append(hashes, lockwaiter.KeyHash(kl.Key))
		modifies = append(modifies, t.IntoModifies()...)
		writeSize += t.WriteSize()
		lastProcessed = kl.Key

		if writeSize >= cfg.MaxTxnWriteSize {
			cappedEarly = true
			break
		}
	}

	res := CommandResult{Kind: KindResolveLock, HasMore: hasMore || cappedEarly}
	switch {
	case cappedEarly:
		res.NextScanKey = append(append([]byte{}, lastProcessed...), 0)
	case hasMore && len(locks) > 0:
		res.NextScanKey = append(append([]byte{}, locks[len(locks)-1].Key...), 0)
	}
	return &WriteResult{
		ToBeWritten:   modifies,
		Rows:          len(modifies),
		Result:        res,
		WakeKeyHashes: hashes,
	}, nil
}

