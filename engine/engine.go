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

// Package engine is the storage-engine collaborator spec.md places out
// of scope ("the underlying storage engine: snapshot acquisition,
// asynchronous write application"). A command processor cannot be
// built or tested against an engine that doesn't exist, so this
// package supplies one backed by github.com/pingcap/goleveldb, the
// same library the teacher's mockstore uses.
package engine

import "context"

// CF names a column family. Three separate LevelDB handles back the
// three CFs spec.md refers to throughout ("Reader iteration over
// write/lock/default column families", "has_data_in_range(snapshot,
// CF_WRITE, ...)") — a closer match to real TiKV's layout than the
// teacher's single-CF encoding trick in mvcc_leveldb.go.
type CF string

const (
	CFDefault CF = "default"
	CFLock    CF = "lock"
	CFWrite   CF = "write"
)

// ModifyOp tags a pending mutation.
type ModifyOp int

const (
	OpPut ModifyOp = iota
	OpDelete
)

// Modify is a single pending column-family write, the Go analogue of
// the Rust source's storage::kv::Modify. mvcc.Txn buffers these and
// hands them to the engine as to_be_write.
type Modify struct {
	CF    CF
	Op    ModifyOp
	Key   []byte
	Value []byte
}

// Iterator walks a CF's keys in order.
type Iterator interface {
	Valid() bool
	Key() []byte
	Value() []byte
	Next()
	Close()
}

// Snapshot is a read-only, point-in-time view of every CF, valid for
// the lifetime of one command as spec.md's Data Model section
// describes.
type Snapshot interface {
	Get(cf CF, key []byte) ([]byte, error)
	Iter(cf CF, startKey, endKey []byte) (Iterator, error)
	IterReverse(cf CF, startKey, endKey []byte) (Iterator, error)
}

// WriteCallback receives the outcome of an asynchronous write.
type WriteCallback func(err error)

// Engine is the one collaborator allowed to perform storage I/O. The
// executor is the only caller permitted to invoke it, and only from a
// worker goroutine (spec.md §5).
type Engine interface {
	Snapshot(ctx context.Context) (Snapshot, error)
	// AsyncWrite applies modifies without blocking the caller. A
	// non-nil returned error is a synchronous failure (validation,
	// region error); otherwise cb runs exactly once, on another
	// goroutine, with the asynchronous outcome.
	AsyncWrite(ctx context.Context, modifies []Modify, cb WriteCallback) error
	// HasDataInRange backs the Prewrite fast-path heuristic
	// (spec.md §4.3.1): true if cf has any key in [start, end).
	HasDataInRange(cf CF, start, end []byte) (bool, error)
	Close() error
}
