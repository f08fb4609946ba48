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

import "time"

// Msg is the message contract between the executor and the external
// scheduler (spec.md §5): exactly one of these is posted per task id,
// exactly once.
type Msg interface {
	isMsg()
}

// ReadFinished reports a completed read-path command.
type ReadFinished struct {
	CID    uint64
	Result CommandResult
}

func (ReadFinished) isMsg() {}

// WriteFinished reports a completed write-path command, after its
// engine write has been applied (or determined to need none).
type WriteFinished struct {
	CID    uint64
	Result CommandResult
}

func (WriteFinished) isMsg() {}

// FinishedWithErr reports a command that could not complete: a fatal
// MVCC error, a snapshot failure, or an engine write failure.
type FinishedWithErr struct {
	CID uint64
	Err error
}

func (FinishedWithErr) isMsg() {}

// WaitForLock tells the scheduler this command is parked on another
// transaction's lock and will be retried (or separately reported)
// once lockwaiter.Manager wakes it; the scheduler owns deciding what,
// if anything, to do while waiting. StartTS is the caller's own
// transaction start_ts (spec.md §6); LockTS/KeyHash/Key identify the
// lock it is parked on; IsFirstLock and WaitTimeout pass the options
// the caller's AcquirePessimisticLock request carried.
type WaitForLock struct {
	CID         uint64
	StartTS     uint64
	Result      CommandResult
	LockTS      uint64
	KeyHash     uint64
	Key         []byte
	IsFirstLock bool
	WaitTimeout time.Duration
}

func (WaitForLock) isMsg() {}

// Scheduler is the executor's sole output channel, implemented by
// whatever owns the task queue outside this package.
type Scheduler interface {
	OnMsg(msg Msg)
}
