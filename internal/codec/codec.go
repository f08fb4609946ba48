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

// Package codec implements the memory-comparable byte encoding the
// engine's column families are keyed with. It is a direct adaptation
// of the encoding scheme used by the teacher's
// internal/mockstore/mocktikv/mvcc_leveldb.go (mvccEncode/mvccDecode),
// split out so both the engine and mvcc packages can share it.
package codec

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

const (
	encGroupSize = 8
	encMarker    = byte(0xFF)
	encPad       = byte(0x0)
)

// ErrInvalidEncodedKey is returned when a key cannot be decoded back
// into its original bytes and version.
var ErrInvalidEncodedKey = errors.New("invalid encoded key")

// EncodeBytes encodes data into a memory-comparable byte slice, the
// same way TiDB/TiKV's codec.EncodeBytes does: split into groups of 8
// bytes, each followed by a marker byte holding 0xFF minus the number
// of padding bytes used to fill the last group.
func EncodeBytes(b []byte, data []byte) []byte {
	dLen := len(data)
	reallocSize := (dLen/encGroupSize + 1) * (encGroupSize + 1)
	result := make([]byte, len(b), len(b)+reallocSize)
	copy(result, b)

	for idx := 0; idx <= dLen; idx += encGroupSize {
		remain := dLen - idx
		padCount := 0
		if remain >= encGroupSize {
			result = append(result, data[idx:idx+encGroupSize]...)
		} else {
			padCount = encGroupSize - remain
			result = append(result, data[idx:]...)
			result = append(result, make([]byte, padCount)...)
		}
		result = append(result, encMarker-byte(padCount))
	}
	return result
}

// DecodeBytes decodes a key encoded by EncodeBytes, returning the
// remaining bytes and the original data.
func DecodeBytes(b []byte) (remain []byte, data []byte, err error) {
	for {
		if len(b) < encGroupSize+1 {
			return nil, nil, errors.WithStack(ErrInvalidEncodedKey)
		}
		groupBytes := b[:encGroupSize+1]
		group := groupBytes[:encGroupSize]
		marker := groupBytes[encGroupSize]
		padCount := encMarker - marker
		if padCount > encGroupSize {
			return nil, nil, errors.WithStack(ErrInvalidEncodedKey)
		}
		realGroupSize := encGroupSize - padCount
		data = append(data, group[:realGroupSize]...)
		b = b[encGroupSize+1:]
		if padCount != 0 {
			// Check the padding bytes are all zero.
			for _, v := range group[realGroupSize:] {
				if v != encPad {
					return nil, nil, errors.WithStack(ErrInvalidEncodedKey)
				}
			}
			return b, data, nil
		}
	}
}

// EncodeUintDesc appends a big-endian, bit-complemented uint64 so that
// larger values sort first — used to encode MVCC versions descending
// by commit timestamp, exactly as the teacher's mvccEncode does.
func EncodeUintDesc(b []byte, v uint64) []byte {
	var data [8]byte
	binary.BigEndian.PutUint64(data[:], ^v)
	return append(b, data[:]...)
}

// DecodeUintDesc reverses EncodeUintDesc.
func DecodeUintDesc(b []byte) (remain []byte, v uint64, err error) {
	if len(b) < 8 {
		return nil, 0, errors.WithStack(ErrInvalidEncodedKey)
	}
	v = ^binary.BigEndian.Uint64(b[:8])
	return b[8:], v, nil
}
