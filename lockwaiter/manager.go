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

package lockwaiter

import (
	"context"
	"sync"

	"github.com/google/btree"
	atomic2 "go.uber.org/atomic"
)

// waiterItem is one registered wait, ordered first by the lock's
// start_ts then by the waiting key's hash, the (lock_ts, key_hash)
// waiter identity. id breaks ties between multiple commands waiting on
// the exact same lock and key.
type waiterItem struct {
	lockTS  uint64
	keyHash uint64
	id      uint64
}

func (w *waiterItem) Less(than btree.Item) bool {
	o := than.(*waiterItem)
	if w.lockTS != o.lockTS {
		return w.lockTS < o.lockTS
	}
	if w.keyHash != o.keyHash {
		return w.keyHash < o.keyHash
	}
	return w.id < o.id
}

// WakeInfo is delivered to a parked waiter when the lock it blocked on
// is resolved, carrying just enough of the resolving command's outcome
// for the waiter to decide whether to retry immediately.
type WakeInfo struct {
	CommitTS          uint64
	IsPessimisticTxn  bool
}

// Manager lets AcquirePessimisticLock register a waiter and suspend on
// Wait;
// whatever later frees the lock (Commit, Rollback, CheckTxnStatus)
// calls WakeUp so the waiting command can retry instead of polling.
type Manager interface {
	// HasWaiter reports whether any command anywhere is currently
	// parked, the cheap check CheckTxnStatus and Commit use to decide
	// whether a wake-up pass is worth doing at all.
	HasWaiter() bool
	// WakeUp releases every waiter parked on lockTS for any of
	// keyHashes, handing each one the resolving command's outcome.
	WakeUp(lockTS uint64, keyHashes []uint64, commitTS uint64, isPessimisticTxn bool)
	Register(lockTS, keyHash uint64) (id uint64, wake <-chan *WakeInfo)
	Wait(ctx context.Context, lockTS, keyHash, id uint64, wake <-chan *WakeInfo) (*WakeInfo, error)
	Cancel(lockTS, keyHash, id uint64)
}

// WaitManager is the concrete Manager, indexing parked waiters in a
// btree keyed by (lockTS, keyHash) so a wake-up for one lock only
// range-scans the waiters blocked on it.
type WaitManager struct {
	mu     sync.Mutex
	tree   *btree.BTree
	notify map[uint64]chan *WakeInfo
	// count is kept outside mu so HasWaiter, the cheap check every
	// Commit/Rollback/CheckTxnStatus does before bothering with a
	// wake-up pass, never contends with Register/WakeUp's tree
	// mutation, mirroring the teacher's use of a typed atomic counter
	// (atomic2.Int64, internal/locate/region_cache.go's tokenCount) for
	// a hot-path counter read alongside a mutex-protected structure.
	count  atomic2.Int64
	nextID uint64
}

// NewWaitManager returns an empty waiter index.
func NewWaitManager() *WaitManager {
	return &WaitManager{tree: btree.New(32), notify: make(map[uint64]chan *WakeInfo)}
}

// Register records a new waiter for (lockTS, keyHash) and returns a
// token to pass to Wait/Cancel along with a channel that receives the
// resolving command's outcome when WakeUp releases it.
func (m *WaitManager) Register(lockTS, keyHash uint64) (id uint64, wake <-chan *WakeInfo) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	id = m.nextID
	m.tree.ReplaceOrInsert(&waiterItem{lockTS: lockTS, keyHash: keyHash, id: id})
	ch := make(chan *WakeInfo, 1)
	m.notify[id] = ch
	m.count.Inc()
	return id, ch
}

// Cancel removes a waiter that gave up (its command timed out or the
// executor is shutting down) without having been woken.
func (m *WaitManager) Cancel(lockTS, keyHash, id uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tree.Delete(&waiterItem{lockTS: lockTS, keyHash: keyHash, id: id}) != nil {
		m.count.Dec()
	}
	delete(m.notify, id)
}

// Wait blocks until WakeUp releases this waiter, the context is
// cancelled, or the executor cancels it directly.
func (m *WaitManager) Wait(ctx context.Context, lockTS, keyHash, id uint64, wake <-chan *WakeInfo) (*WakeInfo, error) {
	select {
	case info := <-wake:
		return info, nil
	case <-ctx.Done():
		m.Cancel(lockTS, keyHash, id)
		return nil, ctx.Err()
	}
}

// HasWaiter reports whether any command anywhere is currently parked.
// Lock-free: callers on the Commit/Rollback/CheckTxnStatus hot path
// call this before deciding whether a WakeUp pass is worth doing.
func (m *WaitManager) HasWaiter() bool {
	return m.count.Load() > 0
}

// WakeUp releases every waiter parked on lockTS for any of keyHashes.
func (m *WaitManager) WakeUp(lockTS uint64, keyHashes []uint64, commitTS uint64, isPessimisticTxn bool) {
	wanted := make(map[uint64]struct{}, len(keyHashes))
	for _, h := range keyHashes {
		wanted[h] = struct{}{}
	}

	m.mu.Lock()
	var toDelete []*waiterItem
	var chans []chan *WakeInfo
	pivot := &waiterItem{lockTS: lockTS}
	m.tree.AscendGreaterOrEqual(pivot, func(i btree.Item) bool {
		w := i.(*waiterItem)
		if w.lockTS != lockTS {
			return false
		}
		if _, ok := wanted[w.keyHash]; ok {
			toDelete = append(toDelete, w)
		}
		return true
	})
	for _, w := range toDelete {
		m.tree.Delete(w)
		m.count.Dec()
		if ch, ok := m.notify[w.id]; ok {
			chans = append(chans, ch)
			delete(m.notify, w.id)
		}
	}
	m.mu.Unlock()

	info := &WakeInfo{CommitTS: commitTS, IsPessimisticTxn: isPessimisticTxn}
	for _, ch := range chans {
		ch <- info
		close(ch)
	}
}

// DeadlockDetector is consulted by pessimistic lock acquisition when it
// finds a conflicting lock: it receives the waiting transaction's
// start_ts, the conflicting lock's start_ts, and the key's hash, and a
// non-nil error it returns is reported in place of KeyIsLocked.
type DeadlockDetector interface {
	Detect(txnTS, lockTS, keyHash uint64) error
}

// NoopDeadlockDetector never detects a cycle, the default extension
// point for pessimistic lock acquisition that the real TiKV deadlock
// detector would otherwise occupy.
type NoopDeadlockDetector struct{}

func (NoopDeadlockDetector) Detect(uint64, uint64, uint64) error { return nil }
