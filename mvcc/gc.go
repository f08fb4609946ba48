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
	"bytes"
	"context"

	"github.com/pkg/errors"
	"github.com/tikv/txn-scheduler/engine"
	"github.com/tikv/txn-scheduler/oracle"
)

// GC collects every CF_WRITE version in [startKey, endKey) made
// obsolete by safePoint: for each key, the newest Put/Delete record at
// or before safePoint survives if it is a Put (a Delete there is
// reclaimed too), everything older at that key is reclaimed, and a
// Lock/Rollback record at or before safePoint is
// always reclaimed outright, mirroring mvcc_leveldb.go:GC's single
// per-key pass. It never touches the engine itself — like every other
// mvcc-layer operation, the caller applies the returned modifies.
//
// GC refuses to run past a still-pending lock at or before safePoint:
// that would mean some in-flight transaction's write is older than
// the point this pass is about to consider fully obsolete, which the
// caller (a GC coordinator, kept out of scope by spec.md's Non-goals)
// must never let happen.
func GC(ctx context.Context, snap engine.Snapshot, startKey, endKey []byte, safePoint oracle.TimeStamp) ([]engine.Modify, error) {
	if err := checkNoLockUnderSafePoint(ctx, snap, startKey, endKey, safePoint); err != nil {
		return nil, err
	}

	start := encodeVersionedKey(startKey, oracle.Max)
	var end []byte
	if len(endKey) > 0 {
		end = encodeVersionedKey(endKey, oracle.Max)
	}
	it, err := snap.Iter(engine.CFWrite, start, end)
	if err != nil {
		return nil, err
	}
	defer it.Close()

	var modifies []engine.Modify
	var curKey []byte
	keepNext := true
	for ; it.Valid(); it.Next() {
		key, ts, err := decodeVersionedKey(it.Key())
		if err != nil {
			return nil, err
		}
		if curKey == nil || !bytes.Equal(key, curKey) {
			curKey = append([]byte{}, key...)
			keepNext = true
		}
		if ts > safePoint {
			continue
		}

		rec, err := UnmarshalWriteRecord(it.Value())
		if err != nil {
			return nil, err
		}

		reclaim := true
		if rec.Type == WriteTypePut || rec.Type == WriteTypeDelete {
			if keepNext && rec.Type == WriteTypePut {
				reclaim = false
			}
			keepNext = false
		}
		if reclaim {
			encoded := make([]byte, len(it.Key()))
			copy(encoded, it.Key())
			modifies = append(modifies, engine.Modify{CF: engine.CFWrite, Op: engine.OpDelete, Key: encoded})
		}
	}
	return modifies, nil
}

// checkNoLockUnderSafePoint errors if any key in [startKey, endKey)
// still holds a lock at or before safePoint.
func checkNoLockUnderSafePoint(ctx context.Context, snap engine.Snapshot, startKey, endKey []byte, safePoint oracle.TimeStamp) error {
	reader := NewScanReader(snap, ScanModeForward, false)
	cursor := startKey
	for {
		locks, hasMore, err := reader.ScanLocks(ctx, cursor, safePoint, 256)
		if err != nil {
			return err
		}
		for _, kl := range locks {
			if len(endKey) > 0 && bytes.Compare(kl.Key, endKey) >= 0 {
				return nil
			}
			return errors.Errorf("key %q has lock with start_ts %d under safe point %d", kl.Key, kl.Lock.StartTS, safePoint)
		}
		if !hasMore || len(locks) == 0 {
			return nil
		}
		cursor = append(append([]byte{}, locks[len(locks)-1].Key...), 0)
		if len(endKey) > 0 && bytes.Compare(cursor, endKey) >= 0 {
			return nil
		}
	}
}
