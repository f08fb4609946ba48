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

	"github.com/pkg/errors"
	"github.com/tikv/txn-scheduler/oracle"
)

// WriteType tags a CF_WRITE record.
type WriteType byte

const (
	WriteTypePut WriteType = iota + 1
	WriteTypeDelete
	WriteTypeLock
	WriteTypeRollback
)

// shortValueMaxLen bounds inlining: values at or under this length are
// carried inside the write record instead of taking a separate
// CF_DEFAULT entry.
const shortValueMaxLen = 64

func isShortValue(value []byte) bool { return len(value) <= shortValueMaxLen }

// WriteRecord is the CF_WRITE payload: one per committed (or rolled
// back) version of a key, keyed by (key, commitTS descending).
type WriteRecord struct {
	Type       WriteType
	StartTS    oracle.TimeStamp
	ShortValue []byte
}

// HasValue reports whether this record has any payload to read,
// either inlined or in CF_DEFAULT.
func (w *WriteRecord) HasValue() bool {
	return w.Type == WriteTypePut
}

func (w *WriteRecord) MarshalBinary() []byte {
	buf := make([]byte, 0, 10+len(w.ShortValue))
	buf = append(buf, byte(w.Type))
	buf = appendUvarint(buf, uint64(w.StartTS))
	buf = appendUvarint(buf, uint64(len(w.ShortValue)))
	buf = append(buf, w.ShortValue...)
	return buf
}

func UnmarshalWriteRecord(b []byte) (*WriteRecord, error) {
	if len(b) < 1 {
		return nil, errors.WithStack(errShortWriteBuffer)
	}
	w := &WriteRecord{Type: WriteType(b[0])}
	b = b[1:]
	v, c := binary.Uvarint(b)
	if c <= 0 {
		return nil, errors.WithStack(errShortWriteBuffer)
	}
	w.StartTS = oracle.TimeStamp(v)
	b = b[c:]
	size, c := binary.Uvarint(b)
	if c <= 0 {
		return nil, errors.WithStack(errShortWriteBuffer)
	}
	b = b[c:]
	if uint64(len(b)) < size {
		return nil, errors.WithStack(errShortWriteBuffer)
	}
	if size > 0 {
		w.ShortValue = b[:size]
	}
	return w, nil
}

var errShortWriteBuffer = errors.New("truncated write record")
