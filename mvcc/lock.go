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
	"encoding/binary"

	"github.com/pingcap/kvproto/pkg/kvrpcpb"
	"github.com/pkg/errors"
	"github.com/tikv/txn-scheduler/oracle"
)

// Lock mirrors the teacher's mockLock in mvcc_leveldb.go, trimmed and
// renamed to the field names spec.md uses. It is the CF_LOCK payload:
// one per key that has an in-flight transaction holding it.
type Lock struct {
	Primary     []byte
	Value       []byte
	StartTS     oracle.TimeStamp
	TTL         uint64
	Op          kvrpcpb.Op
	TxnSize     uint64
	MinCommitTS oracle.TimeStamp
	ForUpdateTS oracle.TimeStamp
	// Pessimistic is true for a lock written by AcquirePessimisticLock
	// that Prewrite has not yet upgraded into a Put/Delete/Lock.
	Pessimistic bool
}

// ToLockInfo projects a Lock into the wire type other commands surface
// to the scheduler when they hit ErrKeyIsLocked.
func (l *Lock) ToLockInfo(key []byte) *kvrpcpb.LockInfo {
	return &kvrpcpb.LockInfo{
		PrimaryLock: l.Primary,
		LockVersion: uint64(l.StartTS),
		Key:         key,
		LockTtl:     l.TTL,
		TxnSize:     l.TxnSize,
		LockType:    l.Op,
		MinCommitTs: uint64(l.MinCommitTS),
	}
}

// MarshalBinary serializes a Lock for storage in CF_LOCK. The layout
// is a flat, hand-rolled tag scheme (not protobuf) to keep CF_LOCK
// self-contained and cheap to decode, matching the teacher's approach
// of a bespoke mockLock encoding rather than round-tripping through
// kvrpcpb on every read.
func (l *Lock) MarshalBinary() []byte {
	buf := make([]byte, 0, 64+len(l.Primary)+len(l.Value))
	buf = appendUvarint(buf, uint64(len(l.Primary)))
	buf = append(buf, l.Primary...)
	buf = appendUvarint(buf, uint64(len(l.Value)))
	buf = append(buf, l.Value...)
	buf = appendUvarint(buf, uint64(l.StartTS))
	buf = appendUvarint(buf, l.TTL)
	buf = appendUvarint(buf, uint64(l.Op))
	buf = appendUvarint(buf, l.TxnSize)
	buf = appendUvarint(buf, uint64(l.MinCommitTS))
	buf = appendUvarint(buf, uint64(l.ForUpdateTS))
	if l.Pessimistic {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}
	return buf
}

// UnmarshalLock decodes a Lock written by MarshalBinary.
func UnmarshalLock(b []byte) (*Lock, error) {
	l := &Lock{}
	var n int
	readBytes := func() ([]byte, error) {
		size, c := binary.Uvarint(b)
		if c <= 0 {
			return nil, errors.WithStack(errShortLockBuffer)
		}
		b = b[c:]
		if uint64(len(b)) < size {
			return nil, errors.WithStack(errShortLockBuffer)
		}
		out := b[:size]
		b = b[size:]
		return out, nil
	}
	readUint := func() (uint64, error) {
		v, c := binary.Uvarint(b)
		if c <= 0 {
			return 0, errors.WithStack(errShortLockBuffer)
		}
		b = b[c:]
		return v, nil
	}

	var err error
	if l.Primary, err = readBytes(); err != nil {
		return nil, err
	}
	if l.Value, err = readBytes(); err != nil {
		return nil, err
	}
	var v uint64
	if v, err = readUint(); err != nil {
		return nil, err
	}
	l.StartTS = oracle.TimeStamp(v)
	if l.TTL, err = readUint(); err != nil {
		return nil, err
	}
	if v, err = readUint(); err != nil {
		return nil, err
	}
	l.Op = kvrpcpb.Op(v)
	if l.TxnSize, err = readUint(); err != nil {
		return nil, err
	}
	if v, err = readUint(); err != nil {
		return nil, err
	}
	l.MinCommitTS = oracle.TimeStamp(v)
	if v, err = readUint(); err != nil {
		return nil, err
	}
	l.ForUpdateTS = oracle.TimeStamp(v)
	if len(b) < 1 {
		return nil, errors.WithStack(errShortLockBuffer)
	}
	l.Pessimistic = b[0] == 1
	n = 1
	_ = n
	return l, nil
}

var errShortLockBuffer = errors.New("truncated lock record")

func appendUvarint(b []byte, v uint64) []byte {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], v)
	return append(b, tmp[:n]...)
}
