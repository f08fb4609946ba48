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
	"github.com/pingcap/kvproto/pkg/kvrpcpb"
	"github.com/tikv/txn-scheduler/engine"
	"github.com/tikv/txn-scheduler/lockwaiter"
	"github.com/tikv/txn-scheduler/oracle"
	"github.com/tikv/txn-scheduler/tikverr"
)

// Txn buffers the column-family modifications one command's write
// phase produces and exposes the MVCC operations spec.md's command
// table lists, adapted key-by-key from the teacher's MVCCLevelDB
// methods (Prewrite, Commit, Rollback, Cleanup, PessimisticLock,
// PessimisticRollback, CheckTxnStatus, TxnHeartBeat) against the
// three-CF engine.Snapshot instead of a single encoded keyspace.
type Txn struct {
	reader    *Reader
	startTS   oracle.TimeStamp
	modifies  []engine.Modify
	writeSize int
}

// NewTxn wraps a snapshot for point-lookup-driven commands (Commit,
// Rollback, Cleanup, PessimisticRollback, TxnHeartBeat,
// CheckTxnStatus).
func NewTxn(snap engine.Snapshot, startTS oracle.TimeStamp) *Txn {
	return &Txn{reader: NewReader(snap), startTS: startTS}
}

// NewTxnForScan wraps a snapshot for Prewrite's fast path, which
// streams the mutation batch in key order instead of point-looking-up
// each key.
func NewTxnForScan(snap engine.Snapshot, mode ScanMode, startTS oracle.TimeStamp, fillCache bool) *Txn {
	return &Txn{reader: NewScanReader(snap, mode, fillCache), startTS: startTS}
}

// WithIsolation threads a command's Context.IsolationLevel (spec.md
// §3) into the transaction's underlying reader.
func (t *Txn) WithIsolation(level kvrpcpb.IsolationLevel) *Txn {
	t.reader.WithIsolation(level)
	return t
}

// IntoModifies drains the buffered column-family writes, the Go
// analogue of the Rust source's MvccTxn::into_modifies.
func (t *Txn) IntoModifies() []engine.Modify { return t.modifies }

// WriteSize reports the accumulated key+value byte size of every
// buffered modify, used by ResolveLock's MAX_TXN_WRITE_SIZE batching
// cutoff.
func (t *Txn) WriteSize() int { return t.writeSize }

// TakeStatistics drains the reader's accumulated CF counters.
func (t *Txn) TakeStatistics() Statistics { return t.reader.TakeStatistics() }

// Reader exposes the underlying Reader for read-only commands that
// share a Txn's snapshot without needing a write phase.
func (t *Txn) Reader() *Reader { return t.reader }

func (t *Txn) record(m engine.Modify) {
	t.writeSize += len(m.Key) + len(m.Value)
	t.modifies = append(t.modifies, m)
}

func (t *Txn) putLock(key []byte, l *Lock) {
	t.record(engine.Modify{CF: engine.CFLock, Op: engine.OpPut, Key: key, Value: l.MarshalBinary()})
}

func (t *Txn) deleteLock(key []byte) {
	t.record(engine.Modify{CF: engine.CFLock, Op: engine.OpDelete, Key: key})
}

func (t *Txn) putWrite(key []byte, commitTS oracle.TimeStamp, rec *WriteRecord) {
	t.record(engine.Modify{CF: engine.CFWrite, Op: engine.OpPut, Key: encodeVersionedKey(key, commitTS), Value: rec.MarshalBinary()})
}

func (t *Txn) putDefault(key []byte, startTS oracle.TimeStamp, value []byte) {
	t.record(engine.Modify{CF: engine.CFDefault, Op: engine.OpPut, Key: encodeVersionedKey(key, startTS), Value: value})
}

func (t *Txn) deleteDefault(key []byte, startTS oracle.TimeStamp) {
	t.record(engine.Modify{CF: engine.CFDefault, Op: engine.OpDelete, Key: encodeVersionedKey(key, startTS)})
}

func mutationWriteType(op kvrpcpb.Op) WriteType {
	switch op {
	case kvrpcpb.Op_Put, kvrpcpb.Op_Insert:
		return WriteTypePut
	case kvrpcpb.Op_Del:
		return WriteTypeDelete
	default:
		return WriteTypeLock
	}
}

func checkAssertion(key []byte, assertion kvrpcpb.Assertion, startTS oracle.TimeStamp, exists bool, existingCommitTS oracle.TimeStamp) error {
	switch assertion {
	case kvrpcpb.Assertion_Exist:
		if !exists {
			return &tikverr.ErrAssertionFailed{StartTS: uint64(startTS), Key: key, Assertion: assertion}
		}
	case kvrpcpb.Assertion_NotExist:
		if exists {
			return &tikverr.ErrAssertionFailed{StartTS: uint64(startTS), Key: key, Assertion: assertion, ExistingCommitTS: uint64(existingCommitTS)}
		}
	}
	return nil
}

// prewriteCore is the constraint-check-plus-lock-write logic shared by
// Prewrite and PessimisticPrewrite, adapted from
// mvcc_leveldb.go:prewriteMutation / checkConflictValue.
func (t *Txn) prewriteCore(m Mutation, opts PrewriteOptions, pessimistic bool) error {
	existing, err := t.reader.LoadLock(m.Key)
	if err != nil {
		return err
	}
	if existing != nil {
		if existing.StartTS == t.startTS {
			// Idempotent retry of an already-prewritten mutation.
			if !existing.Pessimistic {
				return nil
			}
		} else {
			return &tikverr.ErrKeyIsLocked{Info: existing.ToLockInfo(m.Key)}
		}
	}

	if pessimistic {
		if existing == nil || !existing.Pessimistic || existing.ForUpdateTS > opts.ForUpdateTS {
			return tikverr.ErrAbort("pessimistic prewrite observed no matching pessimistic lock")
		}
	} else if !opts.SkipConstraintCheck {
		commitTS, rec, ok, err := t.reader.SeekWrite(m.Key, oracle.Max)
		if err != nil {
			return err
		}
		if ok {
			if commitTS >= t.startTS {
				return &tikverr.ErrWriteConflict{
					StartTS: uint64(t.startTS), ConflictStartTS: uint64(rec.StartTS),
					ConflictCommitTS: uint64(commitTS), Key: m.Key,
				}
			}
			exists := rec.Type == WriteTypePut
			if exists && (m.Op == kvrpcpb.Op_Insert || m.Op == kvrpcpb.Op_CheckNotExists) {
				return &tikverr.ErrAlreadyExist{Key: m.Key}
			}
			if err := checkAssertion(m.Key, m.Assertion, t.startTS, exists, commitTS); err != nil {
				return err
			}
		} else if err := checkAssertion(m.Key, m.Assertion, t.startTS, false, 0); err != nil {
			return err
		}
	}

	l := &Lock{
		Primary: opts.PrimaryLock, StartTS: t.startTS, TTL: opts.LockTTL,
		Op: m.Op, TxnSize: opts.TxnSize, MinCommitTS: opts.MinCommitTS,
		ForUpdateTS: opts.ForUpdateTS,
	}
	if m.Op == kvrpcpb.Op_Put || m.Op == kvrpcpb.Op_Insert {
		if isShortValue(m.Value) {
			l.Value = m.Value
		} else {
			t.putDefault(m.Key, t.startTS, m.Value)
		}
	}
	t.putLock(m.Key, l)
	return nil
}

// Prewrite stages an optimistic mutation.
func (t *Txn) Prewrite(m Mutation, opts PrewriteOptions) error {
	return t.prewriteCore(m, opts, false)
}

// PessimisticPrewrite upgrades a previously acquired pessimistic lock
// into a staged write; it fails with ErrAbort if no matching
// pessimistic lock is present, since the scheduler contract guarantees
// AcquirePessimisticLock always runs first.
func (t *Txn) PessimisticPrewrite(m Mutation, opts PrewriteOptions) error {
	return t.prewriteCore(m, opts, true)
}

// Commit converts a staged lock into a durable write record at
// commitTS, mirroring mvcc_leveldb.go:commitKey/commitLock.
func (t *Txn) Commit(key []byte, commitTS oracle.TimeStamp) (isPessimisticTxn bool, err error) {
	lock, err := t.reader.LoadLock(key)
	if err != nil {
		return false, err
	}
	if lock == nil || lock.StartTS != t.startTS {
		ts, rec, ok, err := t.reader.SeekWrite(key, oracle.Max)
		if err != nil {
			return false, err
		}
		if ok && rec.StartTS == t.startTS && rec.Type != WriteTypeRollback {
			_ = ts
			return false, nil // already committed, idempotent
		}
		return false, tikverr.ErrRetryable("lock not found committing key")
	}
	if commitTS <= lock.StartTS {
		return false, &tikverr.ErrInvalidTxnTso{StartTS: uint64(lock.StartTS), CommitTS: uint64(commitTS)}
	}
	if !lock.MinCommitTS.IsZero() && commitTS < lock.MinCommitTS {
		return false, &tikverr.ErrCommitTSExpired{
			StartTS: uint64(t.startTS), AttemptedCommitTS: uint64(commitTS),
			Key: key, MinCommitTS: uint64(lock.MinCommitTS),
		}
	}

	rec := &WriteRecord{Type: mutationWriteType(lock.Op), StartTS: t.startTS, ShortValue: lock.Value}
	t.putWrite(key, commitTS, rec)
	t.deleteLock(key)
	return lock.Pessimistic, nil
}

// rollbackAt writes a protective rollback record and clears any
// staged default-CF value, shared by Rollback and Cleanup.
func (t *Txn) rollbackAt(key []byte, lock *Lock) {
	if lock != nil {
		if lock.Op == kvrpcpb.Op_Put && len(lock.Value) == 0 {
			t.deleteDefault(key, t.startTS)
		}
		t.deleteLock(key)
	}
	t.putWrite(key, t.startTS, &WriteRecord{Type: WriteTypeRollback, StartTS: t.startTS})
}

// Rollback undoes a staged (not yet committed) mutation, mirroring
// mvcc_leveldb.go:rollbackKey/writeRollback.
func (t *Txn) Rollback(key []byte) (isPessimisticTxn bool, err error) {
	lock, err := t.reader.LoadLock(key)
	if err != nil {
		return false, err
	}
	if lock != nil && lock.StartTS == t.startTS {
		isPessimistic := lock.Pessimistic
		t.rollbackAt(key, lock)
		return isPessimistic, nil
	}
	commitTS, rec, ok, err := t.reader.SeekWrite(key, oracle.Max)
	if err != nil {
		return false, err
	}
	if ok && rec.StartTS == t.startTS {
		if rec.Type == WriteTypeRollback {
			return false, nil
		}
		return false, &tikverr.ErrAlreadyCommitted{CommitTS: uint64(commitTS)}
	}
	t.rollbackAt(key, nil)
	return false, nil
}

// Cleanup is Rollback gated on TTL expiry: a zero currentTS forces the
// rollback unconditionally (used by GC-style callers), mirroring
// mvcc_leveldb.go:Cleanup.
func (t *Txn) Cleanup(key []byte, currentTS oracle.TimeStamp) (isPessimisticTxn bool, err error) {
	lock, err := t.reader.LoadLock(key)
	if err != nil {
		return false, err
	}
	if lock != nil && lock.StartTS == t.startTS && !currentTS.IsZero() {
		expired := oracle.ExtractPhysical(lock.StartTS)+int64(lock.TTL) <= oracle.ExtractPhysical(currentTS)
		if !expired {
			return false, &tikverr.ErrKeyIsLocked{Info: lock.ToLockInfo(key)}
		}
	}
	return t.Rollback(key)
}

// PessimisticRollback releases a pessimistic lock without leaving a
// write record, mirroring mvcc_leveldb.go:pessimisticRollbackKey. It
// is a no-op if the lock is missing, belongs to another transaction,
// has already been upgraded by Prewrite, or was acquired at a higher
// for_update_ts than the caller is rolling back.
func (t *Txn) PessimisticRollback(key []byte, forUpdateTS oracle.TimeStamp) error {
	lock, err := t.reader.LoadLock(key)
	if err != nil {
		return err
	}
	if lock == nil || lock.StartTS != t.startTS || !lock.Pessimistic || lock.ForUpdateTS > forUpdateTS {
		return nil
	}
	t.deleteLock(key)
	return nil
}

// AcquirePessimisticLock stages a pessimistic lock and optionally
// returns the key's current value, mirroring
// mvcc_leveldb.go:pessimisticLockMutation.
func (t *Txn) AcquirePessimisticLock(key []byte, forUpdateTS oracle.TimeStamp, opts LockWaitOptions) ([]byte, error) {
	existing, err := t.reader.LoadLock(key)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if existing.StartTS == t.startTS && existing.Pessimistic {
			if forUpdateTS > existing.ForUpdateTS {
				existing.ForUpdateTS = forUpdateTS
				t.putLock(key, existing)
			}
			var value []byte
			if opts.ReturnValue && !opts.LockOnly {
				value, err = t.reader.Get(key, forUpdateTS)
				if err != nil {
					return nil, err
				}
			}
			return value, nil
		}
		if opts.Detector != nil {
			if errDeadlock := opts.Detector.Detect(uint64(t.startTS), uint64(existing.StartTS), lockwaiter.KeyHash(key)); errDeadlock != nil {
				return nil, errDeadlock
			}
		}
		return nil, &tikverr.ErrKeyIsLocked{Info: existing.ToLockInfo(key)}
	}

	commitTS, rec, ok, err := t.reader.SeekWrite(key, oracle.Max)
	if err != nil {
		return nil, err
	}
	if ok {
		if commitTS >= forUpdateTS {
			return nil, &tikverr.ErrWriteConflict{
				StartTS: uint64(t.startTS), ConflictStartTS: uint64(rec.StartTS),
				ConflictCommitTS: uint64(commitTS), Key: key,
			}
		}
		if opts.ShouldNotExist && rec.Type == WriteTypePut {
			return nil, &tikverr.ErrAlreadyExist{Key: key}
		}
	}

	var value []byte
	if opts.ReturnValue && !opts.LockOnly {
		value, err = t.reader.Get(key, forUpdateTS)
		if err != nil {
			return nil, err
		}
	}

	l := &Lock{
		Primary: opts.PrimaryLock, StartTS: t.startTS, TTL: opts.LockTTL,
		Op: kvrpcpb.Op_PessimisticLock, TxnSize: opts.TxnSize,
		MinCommitTS: opts.MinCommitTS, ForUpdateTS: forUpdateTS, Pessimistic: true,
	}
	t.putLock(key, l)
	return value, nil
}

// TxnHeartBeat extends the primary lock's TTL, mirroring
// mvcc_leveldb.go:TxnHeartBeat.
func (t *Txn) TxnHeartBeat(primaryKey []byte, adviseTTL uint64) (uint64, error) {
	lock, err := t.reader.LoadLock(primaryKey)
	if err != nil {
		return 0, err
	}
	if lock == nil || lock.StartTS != t.startTS {
		return 0, &tikverr.ErrTxnNotFound{StartTS: uint64(t.startTS), PrimaryKey: primaryKey}
	}
	if adviseTTL > lock.TTL {
		lock.TTL = adviseTTL
		t.putLock(primaryKey, lock)
	}
	return lock.TTL, nil
}

// CheckTxnStatus resolves the primary key's status, mirroring
// mvcc_leveldb.go:CheckTxnStatus: expire the lock on TTL timeout,
// push its min_commit_ts forward otherwise, or report the already
// final (committed/rolled back) outcome.
func (t *Txn) CheckTxnStatus(primaryKey []byte, callerStartTS, currentTS oracle.TimeStamp, rollbackIfNotExist bool) (TxnStatus, bool, error) {
	lock, err := t.reader.LoadLock(primaryKey)
	if err != nil {
		return TxnStatus{}, false, err
	}
	if lock != nil && lock.StartTS == t.startTS {
		isPessimistic := lock.Pessimistic
		expired := !currentTS.IsZero() && oracle.ExtractPhysical(lock.StartTS)+int64(lock.TTL) <= oracle.ExtractPhysical(currentTS)
		if expired {
			if isPessimistic {
				t.deleteLock(primaryKey)
				return TxnStatus{Action: ActionTTLExpirePessimisticRollback, IsExpired: true}, true, nil
			}
			t.rollbackAt(primaryKey, lock)
			return TxnStatus{Action: ActionTTLExpireRollback, IsExpired: true}, false, nil
		}
		if !callerStartTS.IsZero() && callerStartTS >= lock.MinCommitTS {
			lock.MinCommitTS = callerStartTS + 1
			t.putLock(primaryKey, lock)
			return TxnStatus{Action: ActionMinCommitTSPushed, LockTTL: lock.TTL}, isPessimistic, nil
		}
		return TxnStatus{Action: ActionNoAction, LockTTL: lock.TTL}, isPessimistic, nil
	}

	commitTS, rec, ok, err := t.reader.SeekWrite(primaryKey, oracle.Max)
	if err != nil {
		return TxnStatus{}, false, err
	}
	if ok && rec.StartTS == t.startTS {
		if rec.Type == WriteTypeRollback {
			return TxnStatus{Action: ActionAlreadyRolledBack}, false, nil
		}
		return TxnStatus{Action: ActionAlreadyCommitted, CommitTS: commitTS}, false, nil
	}
	if rollbackIfNotExist {
		t.rollbackAt(primaryKey, nil)
		return TxnStatus{Action: ActionLockNotExistRollback}, false, nil
	}
	return TxnStatus{}, false, &tikverr.ErrTxnNotFound{StartTS: uint64(t.startTS), PrimaryKey: primaryKey}
}
