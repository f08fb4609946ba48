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
	"github.com/tikv/txn-scheduler/internal/codec"
	"github.com/tikv/txn-scheduler/oracle"
)

// encodeVersionedKey encodes a raw key plus a timestamp so that, for a
// fixed raw key, larger timestamps sort first — the write and default
// CFs' key layout.
func encodeVersionedKey(key []byte, ts oracle.TimeStamp) []byte {
	b := codec.EncodeBytes(nil, key)
	return codec.EncodeUintDesc(b, uint64(ts))
}

// decodeVersionedKey is the inverse of encodeVersionedKey.
func decodeVersionedKey(encoded []byte) (key []byte, ts oracle.TimeStamp, err error) {
	remain, key, err := codec.DecodeBytes(encoded)
	if err != nil {
		return nil, 0, err
	}
	_, v, err := codec.DecodeUintDesc(remain)
	if err != nil {
		return nil, 0, err
	}
	return key, oracle.TimeStamp(v), nil
}
