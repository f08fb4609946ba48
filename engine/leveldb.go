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

package engine

import (
	"bytes"
	"context"
	"sync"

	"github.com/pingcap/goleveldb/leveldb"
	"github.com/pingcap/goleveldb/leveldb/iterator"
	"github.com/pingcap/goleveldb/leveldb/opt"
	"github.com/pingcap/goleveldb/leveldb/storage"
	"github.com/pingcap/goleveldb/leveldb/util"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// LevelDBEngine is an in-memory (or on-disk) engine backed by
// goleveldb, one handle per column family. Adapted from the teacher's
// mvcc_leveldb.go: that file multiplexed every CF through a single
// versioned keyspace via mvccEncode; this keeps the same encoding for
// the two CFs that need ordered version history (default, write) but
// gives the lock CF its own handle, since a key has at most one
// pending lock and doesn't need MVCC-style key suffixing at all.
type LevelDBEngine struct {
	mu  sync.RWMutex
	dbs map[CF]*leveldb.DB
}

// NewMemEngine opens three in-memory LevelDB instances, one per CF.
func NewMemEngine() (*LevelDBEngine, error) {
	dbs := make(map[CF]*leveldb.DB, 3)
	for _, cf := range []CF{CFDefault, CFLock, CFWrite} {
		d, err := leveldb.Open(storage.NewMemStorage(), nil)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		dbs[cf] = d
	}
	return &LevelDBEngine{dbs: dbs}, nil
}

// NewFileEngine opens three on-disk LevelDB instances rooted at dir,
// one subdirectory per CF.
func NewFileEngine(dir string) (*LevelDBEngine, error) {
	dbs := make(map[CF]*leveldb.DB, 3)
	opts := &opt.Options{BlockCacheCapacity: 64 * 1024 * 1024}
	for _, cf := range []CF{CFDefault, CFLock, CFWrite} {
		d, err := leveldb.OpenFile(dir+"/"+string(cf), opts)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		dbs[cf] = d
	}
	return &LevelDBEngine{dbs: dbs}, nil
}

func (e *LevelDBEngine) db(cf CF) *leveldb.DB {
	return e.dbs[cf]
}

// Close releases all three LevelDB handles.
func (e *LevelDBEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	var firstErr error
	for _, d := range e.dbs {
		if err := d.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

type memSnapshot struct {
	e *LevelDBEngine
}

// Snapshot returns a read view. goleveldb's DB already serves reads
// against a stable memtable/sstable view under mu.RLock, so the
// "snapshot" here is just the read-locked engine reference; the
// write() path always takes the write lock.
func (e *LevelDBEngine) Snapshot(_ context.Context) (Snapshot, error) {
	return &memSnapshot{e: e}, nil
}

func (s *memSnapshot) Get(cf CF, key []byte) ([]byte, error) {
	s.e.mu.RLock()
	defer s.e.mu.RUnlock()
	v, err := s.e.db(cf).Get(key, nil)
	if err == leveldb.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return v, nil
}

// dbIterator wraps goleveldb's iterator.Iterator to provide a
// pre-positioned Valid()/Next() pair, the same pattern the teacher's
// mvcc_leveldb.go Iterator type uses: construction advances once so
// Valid() can be checked before the first Next().
type dbIterator struct {
	iterator.Iterator
	valid bool
}

func (it *dbIterator) Next() {
	it.valid = it.Iterator.Next()
}

func (it *dbIterator) Valid() bool { return it.valid }

func (it *dbIterator) Close() { it.Release() }

func newForwardIter(e *LevelDBEngine, cf CF, start, end []byte) *dbIterator {
	rng := &util.Range{Start: start, Limit: end}
	inner := e.db(cf).NewIterator(rng, nil)
	it := &dbIterator{Iterator: inner}
	it.Next()
	return it
}

func (e *LevelDBEngine) Iter(cf CF, start, end []byte) (Iterator, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return newForwardIter(e, cf, start, end), nil
}

func (s *memSnapshot) Iter(cf CF, start, end []byte) (Iterator, error) {
	return s.e.Iter(cf, start, end)
}

// reverseIterator walks a CF from its last key matching endKey <=
// key < start, used by ReverseScan-style readers.
type reverseIterator struct {
	iterator.Iterator
	valid  bool
	endKey []byte
}

func (it *reverseIterator) checkBound() {
	if it.valid && len(it.endKey) > 0 && bytes.Compare(it.Key(), it.endKey) < 0 {
		it.valid = false
	}
}

func (it *reverseIterator) Next() {
	it.valid = it.Iterator.Prev()
	it.checkBound()
}

func (it *reverseIterator) Valid() bool { return it.valid }

func (it *reverseIterator) Close() { it.Release() }

func newReverseIter(e *LevelDBEngine, cf CF, start, end []byte) *reverseIterator {
	inner := e.db(cf).NewIterator(&util.Range{Limit: start}, nil)
	it := &reverseIterator{Iterator: inner, endKey: end}
	it.valid = inner.Last()
	it.checkBound()
	return it
}

func (s *memSnapshot) IterReverse(cf CF, start, end []byte) (Iterator, error) {
	s.e.mu.RLock()
	defer s.e.mu.RUnlock()
	return newReverseIter(s.e, cf, start, end), nil
}

// HasDataInRange backs the Prewrite fast-path heuristic: does the
// write CF hold any key in [start, end)?
func (e *LevelDBEngine) HasDataInRange(cf CF, start, end []byte) (bool, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	it := e.db(cf).NewIterator(&util.Range{Start: start, Limit: end}, nil)
	defer it.Release()
	found := it.Next()
	if err := it.Error(); err != nil {
		return false, errors.WithStack(err)
	}
	return found, nil
}

// AsyncWrite applies modifies on a separate goroutine and reports the
// outcome through cb, matching spec.md §5's suspension-point model:
// the engine's asynchronous write registers a callback and returns
// without blocking the worker that called it. Each column family's
// batch lands on its own errgroup goroutine, since a Prewrite/Commit's
// modifies routinely span two or three independent CF handles with no
// ordering dependency between them.
func (e *LevelDBEngine) AsyncWrite(_ context.Context, modifies []Modify, cb WriteCallback) error {
	batches := make(map[CF]*leveldb.Batch)
	for _, m := range modifies {
		b, ok := batches[m.CF]
		if !ok {
			b = &leveldb.Batch{}
			batches[m.CF] = b
		}
		switch m.Op {
		case OpPut:
			b.Put(m.Key, m.Value)
		case OpDelete:
			b.Delete(m.Key)
		}
	}
	go func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		var g errgroup.Group
		for cf, b := range batches {
			cf, b := cf, b
			g.Go(func() error {
				if err := e.db(cf).Write(b, nil); err != nil {
					return errors.WithStack(err)
				}
				return nil
			})
		}
		cb(g.Wait())
	}()
	return nil
}
