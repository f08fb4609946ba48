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

// Package tikverr collects the MVCC/txn error taxonomy the processor
// raises and recognizes. Errors are tagged variants (plain structs
// implementing error), not a wrapped chain: callers that need to
// recognize a specific case use one of the As* helpers below instead
// of type-switch pattern matching on a nested error chain.
package tikverr

import (
	"fmt"

	"github.com/pingcap/kvproto/pkg/kvrpcpb"
	"github.com/pkg/errors"
	"github.com/tikv/txn-scheduler/internal/logutil"
	"go.uber.org/zap"
)

// ErrKeyIsLocked is returned whenever a read or write observes a lock
// left by another transaction. It is not fatal for Prewrite or
// AcquirePessimisticLock (accumulated into the result instead), but is
// fatal for every other write command.
type ErrKeyIsLocked struct {
	Info *kvrpcpb.LockInfo
}

func (e *ErrKeyIsLocked) Error() string {
	return fmt.Sprintf("key is locked, key: %q, lock version: %d, primary: %q",
		e.Info.GetKey(), e.Info.GetLockVersion(), e.Info.GetPrimaryLock())
}

// AsKeyIsLocked extracts the LockInfo from err if it is (or wraps) an
// ErrKeyIsLocked.
func AsKeyIsLocked(err error) (*kvrpcpb.LockInfo, bool) {
	var e *ErrKeyIsLocked
	if errors.As(err, &e) {
		return e.Info, true
	}
	return nil, false
}

// ErrWriteConflict signals that a newer version of the key was
// committed after this transaction started.
type ErrWriteConflict struct {
	StartTS          uint64
	ConflictStartTS  uint64
	ConflictCommitTS uint64
	Key              []byte
}

func (e *ErrWriteConflict) Error() string {
	return fmt.Sprintf("write conflict, startTS: %d, conflictStartTS: %d, conflictCommitTS: %d, key: %q",
		e.StartTS, e.ConflictStartTS, e.ConflictCommitTS, e.Key)
}

// ErrAlreadyExist signals an Insert/CheckNotExists mutation found an
// existing committed value.
type ErrAlreadyExist struct {
	Key []byte
}

func (e *ErrAlreadyExist) Error() string {
	return fmt.Sprintf("key already exists: %q", e.Key)
}

// ErrAlreadyRollbacked signals a rollback record already exists for
// this start_ts at this key.
type ErrAlreadyRollbacked struct {
	StartTS uint64
	Key     []byte
}

func (e *ErrAlreadyRollbacked) Error() string {
	return fmt.Sprintf("txn already rolled back, startTS: %d, key: %q", e.StartTS, e.Key)
}

// ErrAlreadyCommitted signals the transaction has already committed at
// the returned timestamp.
type ErrAlreadyCommitted struct {
	CommitTS uint64
}

func (e *ErrAlreadyCommitted) Error() string {
	return fmt.Sprintf("txn already committed at %d", e.CommitTS)
}

// ErrCommitTSExpired signals a commit whose commitTS is smaller than
// the lock's pushed-forward minCommitTS.
type ErrCommitTSExpired struct {
	StartTS           uint64
	AttemptedCommitTS uint64
	Key               []byte
	MinCommitTS       uint64
}

func (e *ErrCommitTSExpired) Error() string {
	return fmt.Sprintf("commit ts %d expired, startTS: %d, minCommitTS: %d, key: %q",
		e.AttemptedCommitTS, e.StartTS, e.MinCommitTS, e.Key)
}

// ErrTxnNotFound signals CheckTxnStatus found neither a lock nor a
// commit/rollback record and rollbackIfNotExist was false.
type ErrTxnNotFound struct {
	StartTS    uint64
	PrimaryKey []byte
}

func (e *ErrTxnNotFound) Error() string {
	return fmt.Sprintf("txn not found, startTS: %d, primary: %q", e.StartTS, e.PrimaryKey)
}

// ErrInvalidTxnTso is raised locally whenever commitTS <= startTS
// (or lock_ts, for ResolveLock), violating the ordering invariant.
type ErrInvalidTxnTso struct {
	StartTS  uint64
	CommitTS uint64
}

func (e *ErrInvalidTxnTso) Error() string {
	return fmt.Sprintf("invalid transaction tso, startTS: %d, commitTS: %d", e.StartTS, e.CommitTS)
}

// ErrDeadlock is raised by the (optional) deadlock detector hook
// wired into pessimistic lock acquisition.
type ErrDeadlock struct {
	LockKey        []byte
	LockTS         uint64
	DeadlockKeyHash uint64
}

func (e *ErrDeadlock) Error() string {
	return fmt.Sprintf("deadlock detected, lockKey: %q, lockTS: %d, keyHash: %d",
		e.LockKey, e.LockTS, e.DeadlockKeyHash)
}

// ErrAssertionFailed is raised when a mutation's Assertion does not
// match what is actually stored.
type ErrAssertionFailed struct {
	StartTS          uint64
	Key              []byte
	Assertion        kvrpcpb.Assertion
	ExistingStartTS  uint64
	ExistingCommitTS uint64
}

func (e *ErrAssertionFailed) Error() string {
	return fmt.Sprintf("assertion failed, startTS: %d, key: %q, assertion: %v", e.StartTS, e.Key, e.Assertion)
}

// ErrRetryable signals the caller (normally the scheduler) should
// retry the command, e.g. because a lock disappeared out from under a
// commit between prewrite and commit.
type ErrRetryable string

func (e ErrRetryable) Error() string { return "retryable: " + string(e) }

// ErrAbort signals a programming-contract violation that cannot be
// retried, e.g. a pessimistic prewrite arriving without its lock.
type ErrAbort string

func (e ErrAbort) Error() string { return "aborted: " + string(e) }

// Log records a non-fatal error for best-effort cleanup paths (closing
// a raw-KV batch write, releasing an iterator).
func Log(err error) {
	if err != nil {
		logutil.BgLogger().Warn("ignored error", zap.Error(err))
	}
}
