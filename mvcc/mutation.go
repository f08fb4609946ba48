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
	"github.com/tikv/txn-scheduler/lockwaiter"
	"github.com/tikv/txn-scheduler/oracle"
)

// Mutation is one key's half of a Prewrite or AcquirePessimisticLock
// request, the Go analogue of the Rust source's txn_types::Mutation.
type Mutation struct {
	Op        kvrpcpb.Op
	Key       []byte
	Value     []byte
	Assertion kvrpcpb.Assertion
}

// PrewriteOptions groups the knobs Prewrite takes beyond the mutation
// list itself, mirroring the PrewriteRequest fields spec.md §4.3
// describes (skip_constraint_check, txn_size, min/max_commit_ts,
// for_update_ts on a pessimistic mutation).
type PrewriteOptions struct {
	PrimaryLock        []byte
	LockTTL            uint64
	SkipConstraintCheck bool
	TxnSize             uint64
	MinCommitTS         oracle.TimeStamp
	MaxCommitTS         oracle.TimeStamp
	// ForUpdateTS is non-zero for PessimisticPrewrite: the mutation's
	// matching pessimistic lock must carry exactly this for_update_ts.
	ForUpdateTS oracle.TimeStamp
	// IsPessimisticLock mirrors the request's per-mutation
	// is_pessimistic_lock bit. Txn does not read it: the caller picks
	// PessimisticPrewrite or Prewrite for each mutation instead.
	IsPessimisticLock bool
}

// LockWaitOptions groups AcquirePessimisticLock's extra knobs.
type LockWaitOptions struct {
	PrimaryLock    []byte
	LockTTL        uint64
	ForUpdateTS    oracle.TimeStamp
	TxnSize        uint64
	MinCommitTS    oracle.TimeStamp
	ShouldNotExist bool
	ReturnValue    bool
	LockOnly       bool
	// Detector, when non-nil, is consulted before reporting a
	// conflicting lock as KeyIsLocked, mirroring
	// mvcc_leveldb.go:pessimisticLockMutation's call site. A nil
	// Detector means the caller wired no deadlock detection, which is
	// always a legal configuration per spec.md's Non-goals.
	Detector lockwaiter.DeadlockDetector
}

// CheckTxnStatusAction reports what CheckTxnStatus did to the lock it
// examined, mirroring the Rust source's TxnStatus used to decide
// whether ResolveLock / the caller needs to wake waiters.
type CheckTxnStatusAction int

const (
	ActionNoAction CheckTxnStatusAction = iota
	ActionTTLExpireRollback
	ActionTTLExpirePessimisticRollback
	ActionLockNotExistRollback
	ActionMinCommitTSPushed
	ActionAlreadyCommitted
	ActionAlreadyRolledBack
)

// TxnStatus is CheckTxnStatus's result: either the lock is still live
// (TTL, possibly pushed forward) or the transaction has a final
// outcome (committed at CommitTS, or rolled back).
type TxnStatus struct {
	Action      CheckTxnStatusAction
	LockTTL     uint64
	CommitTS    oracle.TimeStamp
	IsExpired   bool
}
