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

// Package txn is the command processor: spec.md's core. It turns one
// scheduled Task into MVCC reads and writes against the mvcc/engine
// collaborators and reports the outcome back to a Scheduler through
// exactly one message, per spec.md §5's at-most-once contract.
package txn

import (
	"time"

	"github.com/pingcap/kvproto/pkg/kvrpcpb"
	"github.com/tikv/txn-scheduler/mvcc"
	"github.com/tikv/txn-scheduler/oracle"
)

// Context is the per-command environment spec.md §3 describes every
// Command as carrying alongside its kind-specific payload: the region
// it targets, the isolation level and cache-fill hint the read/write
// processors build their Reader/Txn against, and the raft term the
// executor stamps in when the callback context (spec.md §4.1) carries
// one.
type Context struct {
	RegionID       uint64
	IsolationLevel kvrpcpb.IsolationLevel
	FillCache      bool
	Term           uint64
}

// Kind tags which algorithm a Command runs, the Go analogue of the
// Rust source's Command enum discriminant.
type Kind int

const (
	KindPrewrite Kind = iota
	KindAcquirePessimisticLock
	KindCommit
	KindCleanup
	KindRollback
	KindPessimisticRollback
	KindResolveLock
	KindResolveLockLite
	KindTxnHeartBeat
	KindCheckTxnStatus
	KindMvccByKey
	KindMvccByStartTS
	KindScanLock
	KindPause
)

func (k Kind) String() string {
	switch k {
	case KindPrewrite:
		return "prewrite"
	case KindAcquirePessimisticLock:
		return "acquire_pessimistic_lock"
	case KindCommit:
		return "commit"
	case KindCleanup:
		return "cleanup"
	case KindRollback:
		return "rollback"
	case KindPessimisticRollback:
		return "pessimistic_rollback"
	case KindResolveLock:
		return "resolve_lock"
	case KindResolveLockLite:
		return "resolve_lock_lite"
	case KindTxnHeartBeat:
		return "txn_heart_beat"
	case KindCheckTxnStatus:
		return "check_txn_status"
	case KindMvccByKey:
		return "mvcc_by_key"
	case KindMvccByStartTS:
		return "mvcc_by_start_ts"
	case KindScanLock:
		return "scan_lock"
	case KindPause:
		return "pause"
	default:
		return "unknown"
	}
}

// Command is the dispatchable unit the executor runs. Every concrete
// command below reports whether it belongs to the read path
// (snapshot-only, no engine write) or the write path, plus the shared
// Context spec.md §3 says every command carries.
type Command interface {
	Kind() Kind
	IsWrite() bool
	Context() *Context
}

// Prewrite stages a batch of mutations, the first half of 2PC.
type Prewrite struct {
	Ctx                  Context
	StartTS             oracle.TimeStamp
	Mutations           []mvcc.Mutation
	Primary             []byte
	LockTTL             uint64
	SkipConstraintCheck bool
	TxnSize             uint64
	MinCommitTS         oracle.TimeStamp
	MaxCommitTS         oracle.TimeStamp
	// ForUpdateTS is non-zero for pessimistic prewrite: every mutation
	// must already hold a matching pessimistic lock.
	ForUpdateTS oracle.TimeStamp
	// IsPessimisticLock parallels Mutations: true at index i means
	// mutation i must consume a pessimistic lock rather than run the
	// optimistic constraint check.
	IsPessimisticLock []bool
}

func (*Prewrite) Kind() Kind   { return KindPrewrite }
func (*Prewrite) IsWrite() bool { return true }
func (c *Prewrite) Context() *Context { return &c.Ctx }

// AcquirePessimisticLock stages pessimistic locks for a batch of keys.
type AcquirePessimisticLock struct {
	Ctx Context
	StartTS        oracle.TimeStamp
	ForUpdateTS    oracle.TimeStamp
	Mutations      []mvcc.Mutation
	Primary        []byte
	LockTTL        uint64
	TxnSize        uint64
	MinCommitTS    oracle.TimeStamp
	ReturnValues   bool
	CheckExistence bool
	// WaitTimeout: zero means don't wait on a conflicting lock at all
	// (fail fast); negative means wait indefinitely; positive bounds
	// the wait.
	WaitTimeout time.Duration
	// IsFirstLock tells the scheduler this is the first lock the
	// caller's transaction has ever tried to acquire, which feeds a
	// real deadlock detector's priority heuristic (younger transactions
	// back off first); surfaced unchanged on a WaitForLock message.
	IsFirstLock bool
}

func (*AcquirePessimisticLock) Kind() Kind   { return KindAcquirePessimisticLock }
func (*AcquirePessimisticLock) IsWrite() bool { return true }
func (c *AcquirePessimisticLock) Context() *Context { return &c.Ctx }

// Commit converts a batch of staged locks into durable writes.
type Commit struct {
	Ctx Context
	StartTS  oracle.TimeStamp
	Keys     [][]byte
	CommitTS oracle.TimeStamp
}

func (*Commit) Kind() Kind   { return KindCommit }
func (*Commit) IsWrite() bool { return true }
func (c *Commit) Context() *Context { return &c.Ctx }

// Cleanup rolls back one key if its lock's TTL has expired.
type Cleanup struct {
	Ctx Context
	StartTS   oracle.TimeStamp
	Key       []byte
	CurrentTS oracle.TimeStamp
}

func (*Cleanup) Kind() Kind   { return KindCleanup }
func (*Cleanup) IsWrite() bool { return true }
func (c *Cleanup) Context() *Context { return &c.Ctx }

// Rollback undoes a batch of staged optimistic mutations.
type Rollback struct {
	Ctx Context
	StartTS oracle.TimeStamp
	Keys    [][]byte
}

func (*Rollback) Kind() Kind   { return KindRollback }
func (*Rollback) IsWrite() bool { return true }
func (c *Rollback) Context() *Context { return &c.Ctx }

// PessimisticRollback releases a batch of pessimistic locks.
type PessimisticRollback struct {
	Ctx Context
	StartTS     oracle.TimeStamp
	ForUpdateTS oracle.TimeStamp
	Keys        [][]byte
}

func (*PessimisticRollback) Kind() Kind   { return KindPessimisticRollback }
func (*PessimisticRollback) IsWrite() bool { return true }
func (c *PessimisticRollback) Context() *Context { return &c.Ctx }

// ResolveLock scans a region's locks from ScanKey and resolves each
// lock whose start_ts is a key of TxnStatus (startTS -> either a
// commitTS to commit at, or zero to roll back); locks of transactions
// missing from TxnStatus are left in place. ScanKey carries a
// continuation cursor for the bounded-batch write phase.
type ResolveLock struct {
	Ctx Context
	TxnStatus map[uint64]oracle.TimeStamp
	ScanKey   []byte
}

func (*ResolveLock) Kind() Kind   { return KindResolveLock }
func (*ResolveLock) IsWrite() bool { return true }
func (c *ResolveLock) Context() *Context { return &c.Ctx }

// ResolveLockLite resolves a known, small set of keys for one
// transaction without a preceding ScanLock read phase.
type ResolveLockLite struct {
	Ctx Context
	StartTS  oracle.TimeStamp
	CommitTS oracle.TimeStamp
	Keys     [][]byte
}

func (*ResolveLockLite) Kind() Kind   { return KindResolveLockLite }
func (*ResolveLockLite) IsWrite() bool { return true }
func (c *ResolveLockLite) Context() *Context { return &c.Ctx }

// TxnHeartBeat extends the primary lock's TTL.
type TxnHeartBeat struct {
	Ctx Context
	PrimaryKey    []byte
	StartTS       oracle.TimeStamp
	AdviseLockTTL uint64
}

func (*TxnHeartBeat) Kind() Kind   { return KindTxnHeartBeat }
func (*TxnHeartBeat) IsWrite() bool { return true }
func (c *TxnHeartBeat) Context() *Context { return &c.Ctx }

// CheckTxnStatus resolves the primary key's final or in-flight status.
type CheckTxnStatus struct {
	Ctx Context
	PrimaryKey         []byte
	LockTS             oracle.TimeStamp
	CallerStartTS      oracle.TimeStamp
	CurrentTS          oracle.TimeStamp
	RollbackIfNotExist bool
}

func (*CheckTxnStatus) Kind() Kind   { return KindCheckTxnStatus }
func (*CheckTxnStatus) IsWrite() bool { return true }
func (c *CheckTxnStatus) Context() *Context { return &c.Ctx }

// MvccByKey is a read-only debug projection of one key's full history.
type MvccByKey struct {
	Ctx Context
	Key []byte
}

func (*MvccByKey) Kind() Kind   { return KindMvccByKey }
func (*MvccByKey) IsWrite() bool { return false }
func (c *MvccByKey) Context() *Context { return &c.Ctx }

// MvccByStartTS is a read-only debug projection keyed by start_ts
// instead of by key: the read phase must first find which key the
// transaction's primary lock (if any) sits at.
type MvccByStartTS struct {
	Ctx Context
	StartTS oracle.TimeStamp
}

func (*MvccByStartTS) Kind() Kind   { return KindMvccByStartTS }
func (*MvccByStartTS) IsWrite() bool { return false }
func (c *MvccByStartTS) Context() *Context { return &c.Ctx }

// ScanLock is a read-only scan over CF_LOCK.
type ScanLock struct {
	Ctx Context
	MaxTS    oracle.TimeStamp
	StartKey []byte
	Limit    int
}

func (*ScanLock) Kind() Kind   { return KindScanLock }
func (*ScanLock) IsWrite() bool { return false }
func (c *ScanLock) Context() *Context { return &c.Ctx }

// Pause is a test-only command that sleeps for Duration, used to
// exercise the executor's worker pool and cancellation paths.
type Pause struct {
	Ctx Context
	Duration time.Duration
}

func (*Pause) Kind() Kind   { return KindPause }
func (*Pause) IsWrite() bool { return true }
func (c *Pause) Context() *Context { return &c.Ctx }
