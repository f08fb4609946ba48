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

	"github.com/pingcap/kvproto/pkg/kvrpcpb"
	"github.com/pkg/errors"
	"github.com/tikv/txn-scheduler/engine"
	"github.com/tikv/txn-scheduler/oracle"
)

// ScanMode mirrors the Rust source's ScanMode: Prewrite's fast path
// switches a reader from None (point lookups only) to Forward once it
// decides to stream the whole mutation batch in key order.
type ScanMode int

const (
	ScanModeNone ScanMode = iota
	ScanModeForward
	ScanModeBackward
)

// Reader is the read-only collaborator every command's process_read
// phase builds against one engine.Snapshot, adapted from the fields
// the teacher's MVCCLevelDB methods close over (reader, stats).
type Reader struct {
	snap       engine.Snapshot
	scanMode   ScanMode
	fillCache  bool
	isolation  kvrpcpb.IsolationLevel
	stats      Statistics
}

// NewReader wraps a snapshot for point lookups only.
func NewReader(snap engine.Snapshot) *Reader {
	return &Reader{snap: snap, isolation: kvrpcpb.IsolationLevel_SI}
}

// NewScanReader wraps a snapshot for a reader that will stream a key
// range, as Prewrite's fast path and ScanLock/ResolveLock's read phase
// do.
func NewScanReader(snap engine.Snapshot, mode ScanMode, fillCache bool) *Reader {
	return &Reader{snap: snap, scanMode: mode, fillCache: fillCache, isolation: kvrpcpb.IsolationLevel_SI}
}

// WithIsolation overrides the reader's isolation level, letting a
// caller thread a command's Context.IsolationLevel (spec.md §3)
// through instead of the SI default.
func (r *Reader) WithIsolation(level kvrpcpb.IsolationLevel) *Reader {
	r.isolation = level
	return r
}

// Isolation reports the reader's configured isolation level.
func (r *Reader) Isolation() kvrpcpb.IsolationLevel { return r.isolation }

// TakeStatistics drains and resets the accumulated CF counters.
func (r *Reader) TakeStatistics() Statistics {
	s := r.stats
	r.stats = Statistics{}
	return s
}

// LoadLock returns the lock at key, or nil if none is held.
func (r *Reader) LoadLock(key []byte) (*Lock, error) {
	r.stats.LockCF.Get++
	v, err := r.snap.Get(engine.CFLock, key)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, nil
	}
	return UnmarshalLock(v)
}

// SeekWrite returns the newest CF_WRITE record for key whose commitTS
// is <= ts, mirroring the teacher's seek_write: since versioned keys
// are encoded with a descending-order timestamp suffix, a single seek
// positioned at (key, ts) lands on exactly that record if one exists.
func (r *Reader) SeekWrite(key []byte, ts oracle.TimeStamp) (commitTS oracle.TimeStamp, rec *WriteRecord, ok bool, err error) {
	r.stats.WriteCF.Seek++
	start := encodeVersionedKey(key, ts)
	it, err := r.snap.Iter(engine.CFWrite, start, nil)
	if err != nil {
		return 0, nil, false, err
	}
	defer it.Close()
	if !it.Valid() {
		return 0, nil, false, nil
	}
	foundKey, foundTS, err := decodeVersionedKey(it.Key())
	if err != nil {
		return 0, nil, false, err
	}
	if !bytes.Equal(foundKey, key) {
		return 0, nil, false, nil
	}
	rec, err = UnmarshalWriteRecord(it.Value())
	if err != nil {
		return 0, nil, false, err
	}
	return foundTS, rec, true, nil
}

// LoadValue reads the payload for a Put write record: inline if it
// was a short value, otherwise a CF_DEFAULT lookup keyed by the
// record's start_ts.
func (r *Reader) LoadValue(key []byte, rec *WriteRecord) ([]byte, error) {
	if len(rec.ShortValue) > 0 || rec.Type != WriteTypePut {
		return rec.ShortValue, nil
	}
	r.stats.DefaultCF.Get++
	return r.snap.Get(engine.CFDefault, encodeVersionedKey(key, rec.StartTS))
}

// Get returns the value visible to a read at ts, walking CF_WRITE
// backwards from ts until it finds a Put/Delete record or runs out of
// history, mirroring mvcc_leveldb.go's getValue.
func (r *Reader) Get(key []byte, ts oracle.TimeStamp) ([]byte, error) {
	for cur := ts; ; {
		_, rec, ok, err := r.SeekWrite(key, cur)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, nil
		}
		switch rec.Type {
		case WriteTypePut:
			return r.LoadValue(key, rec)
		case WriteTypeDelete:
			return nil, nil
		case WriteTypeLock, WriteTypeRollback:
			cur = rec.StartTS.Prev()
			if cur.IsZero() {
				return nil, nil
			}
		default:
			return nil, errors.Errorf("unknown write type %d", rec.Type)
		}
	}
}

// KeyValueVersion is one entry of a key's CF_DEFAULT history, used by
// the MvccByKey debug projection.
type KeyValueVersion struct {
	StartTS oracle.TimeStamp
	Value   []byte
}

// ScanValuesInDefault returns every CF_DEFAULT entry stored for key,
// newest first.
func (r *Reader) ScanValuesInDefault(key []byte) ([]KeyValueVersion, error) {
	start := encodeVersionedKey(key, oracle.Max)
	end := encodeVersionedKey(key, oracle.Zero)
	it, err := r.snap.Iter(engine.CFDefault, start, end)
	if err != nil {
		return nil, err
	}
	defer it.Close()
	var out []KeyValueVersion
	for ; it.Valid(); it.Next() {
		r.stats.DefaultCF.Next++
		foundKey, ts, err := decodeVersionedKey(it.Key())
		if err != nil {
			return nil, err
		}
		if !bytes.Equal(foundKey, key) {
			break
		}
		val := make([]byte, len(it.Value()))
		copy(val, it.Value())
		out = append(out, KeyValueVersion{StartTS: ts, Value: val})
	}
	return out, nil
}

// WriteHistoryEntry is one CF_WRITE record surfaced by ScanWrites,
// used both by the MvccByKey/MvccByStartTs debug projections and by
// find_mvcc_infos_by_key in the txn package.
type WriteHistoryEntry struct {
	CommitTS oracle.TimeStamp
	Record   *WriteRecord
}

// ScanWrites walks every CF_WRITE version of key, newest first,
// adapting find_mvcc_infos_by_key's repeated seek_write loop into a
// single reverse pass over the already-ordered CF.
func (r *Reader) ScanWrites(key []byte) ([]WriteHistoryEntry, error) {
	start := encodeVersionedKey(key, oracle.Max)
	end := encodeVersionedKey(key, oracle.Zero)
	it, err := r.snap.Iter(engine.CFWrite, start, end)
	if err != nil {
		return nil, err
	}
	defer it.Close()
	var out []WriteHistoryEntry
	for ; it.Valid(); it.Next() {
		r.stats.WriteCF.Next++
		foundKey, ts, err := decodeVersionedKey(it.Key())
		if err != nil {
			return nil, err
		}
		if !bytes.Equal(foundKey, key) {
			break
		}
		rec, err := UnmarshalWriteRecord(it.Value())
		if err != nil {
			return nil, err
		}
		out = append(out, WriteHistoryEntry{CommitTS: ts, Record: rec})
	}
	return out, nil
}

// KeyLock pairs a raw key with the lock found there, as ScanLock
// returns to the scheduler.
type KeyLock struct {
	Key  []byte
	Lock *Lock
}

// ScanLocks walks CF_LOCK from startKey, returning up to limit entries
// whose StartTS <= maxTS (0 means unlimited), and whether more remain
// — the read phase behind the ScanLock command and ResolveLock's
// batching loop.
func (r *Reader) ScanLocks(ctx context.Context, startKey []byte, maxTS oracle.TimeStamp, limit int) (locks []KeyLock, hasRemain bool, err error) {
	it, err := r.snap.Iter(engine.CFLock, startKey, nil)
	if err != nil {
		return nil, false, err
	}
	defer it.Close()
	for ; it.Valid(); it.Next() {
		select {
		case <-ctx.Done():
			return locks, true, ctx.Err()
		default:
		}
		r.stats.LockCF.Next++
		if limit > 0 && len(locks) >= limit {
			return locks, true, nil
		}
		l, err := UnmarshalLock(it.Value())
		if err != nil {
			return nil, false, err
		}
		if !maxTS.IsZero() && l.StartTS > maxTS {
			continue
		}
		key := make([]byte, len(it.Key()))
		copy(key, it.Key())
		locks = append(locks, KeyLock{Key: key, Lock: l})
	}
	return locks, false, nil
}

// KeyWrite pairs a raw key with one CF_WRITE record found there, as
// ScanAllWrites returns to MvccByStartTS's fallback scan. EncodedKey
// is the raw CF_WRITE iterator key (logical key plus descending-ts
// suffix): callers that want to resume the scan just past this entry
// must use EncodedKey, not Key, since Key alone no longer orders the
// same way CF_WRITE does.
type KeyWrite struct {
	Key        []byte
	EncodedKey []byte
	CommitTS   oracle.TimeStamp
	Record     *WriteRecord
}

// ScanAllWrites walks every CF_WRITE entry in key order from startKey,
// across every key (unlike ScanWrites, which is pinned to one key),
// returning up to limit entries and whether more remain. MvccByStartTS
// uses it to find a committed transaction once a CF_LOCK scan comes up
// empty, the Go analogue of the teacher's MvccGetByStartTS walking its
// single combined LevelDB looking for a matching start_ts.
func (r *Reader) ScanAllWrites(ctx context.Context, startKey []byte, limit int) (writes []KeyWrite, hasRemain bool, err error) {
	it, err := r.snap.Iter(engine.CFWrite, startKey, nil)
	if err != nil {
		return nil, false, err
	}
	defer it.Close()
	for ; it.Valid(); it.Next() {
		select {
		case <-ctx.Done():
			return writes, true, ctx.Err()
		default:
		}
		r.stats.WriteCF.Next++
		if limit > 0 && len(writes) >= limit {
			return writes, true, nil
		}
		key, ts, err := decodeVersionedKey(it.Key())
		if err != nil {
			return nil, false, err
		}
		rec, err := UnmarshalWriteRecord(it.Value())
		if err != nil {
			return nil, false, err
		}
		encodedKey := make([]byte, len(it.Key()))
		copy(encodedKey, it.Key())
		writes = append(writes, KeyWrite{Key: key, EncodedKey: encodedKey, CommitTS: ts, Record: rec})
	}
	return writes, false, nil
}
