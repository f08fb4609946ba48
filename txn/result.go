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
	"time"

	"github.com/pingcap/kvproto/pkg/kvrpcpb"
	"github.com/tikv/txn-scheduler/engine"
	"github.com/tikv/txn-scheduler/mvcc"
)

// PerKeyError pairs a key with the non-fatal error it hit inside a
// batched command (Prewrite, AcquirePessimisticLock): the command
// still tries the remaining keys instead of aborting the whole batch,
// mirroring the Rust source's per-mutation Result collection.
type PerKeyError struct {
	Key []byte
	Err error
}

// PrewriteResult is the write-path outcome for a Prewrite command.
type PrewriteResult struct {
	Errors []PerKeyError
	// MinCommitTS is the async-commit min_commit_ts the caller should
	// use, non-zero only when every mutation in the batch succeeded.
	MinCommitTS uint64
}

// PessimisticLockResult is the write-path outcome for
// AcquirePessimisticLock.
type PessimisticLockResult struct {
	Values    [][]byte
	Existence []bool
	Errors    []PerKeyError
}

// CommandResult is the value a finished command hands back to the
// scheduler, a Go flattening of the Rust source's ProcessResult enum:
// exactly one of the typed fields below is populated, selected by
// Kind.
type CommandResult struct {
	Kind Kind

	Prewrite       *PrewriteResult
	PessimisticLock *PessimisticLockResult
	TxnStatus      *mvcc.TxnStatus
	Locks          []mvcc.KeyLock
	MvccInfo       *MvccInfo

	// HasMore/NextScanKey carry ResolveLock's bounded-batch
	// continuation: the caller must re-submit a ResolveLock command
	// with ScanKey = NextScanKey to keep going.
	HasMore     bool
	NextScanKey []byte
}

// MvccInfo is the debug projection MvccByKey/MvccByStartTS produce,
// adapted from mvcc_leveldb.go's MvccGetByKey/MvccGetByStartTS.
type MvccInfo struct {
	Key    []byte
	Lock   *mvcc.Lock
	Writes []mvcc.WriteHistoryEntry
	Values []mvcc.KeyValueVersion
}

// WriteResult is what the write phase hands to the executor before
// the engine write happens: the buffered modifies, the row count for
// metrics, the result to eventually report, and any lock this command
// itself observed (used to decide whether to register a waiter).
type WriteResult struct {
	ToBeWritten []engine.Modify
	Rows        int
	Result      CommandResult
	// LockInfo is set when the command needs the caller to wait on a
	// conflicting lock instead of failing outright (AcquirePessimisticLock
	// under WaitTimeout != 0). The executor posts WaitForLock instead of
	// WriteFinished/FinishedWithErr when this is non-nil.
	LockInfo    *kvrpcpb.LockInfo
	LockKey     []byte
	IsFirstLock bool
	WaitTimeout time.Duration

	// WakeLockTS/WakeKeyHashes/WakeCommitTS/WakeIsPessimistic carry a
	// wake-up the executor should issue against the lock-waiter
	// manager after this command's engine write lands, e.g. after a
	// Commit frees the keys a pessimistic AcquirePessimisticLock was
	// parked on.
	WakeLockTS        uint64
	WakeKeyHashes     []uint64
	WakeCommitTS      uint64
	WakeIsPessimistic bool
	// WakeForce bypasses the HasWaiter() check: PessimisticRollback
	// wakes unconditionally per spec.md §4.3.4, since the pessimistic
	// lock it releases may be the only thing a waiter is parked on and
	// the manager's HasWaiter() count is a best-effort hint, not a
	// guarantee, around concurrent Register calls.
	WakeForce bool
}
