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

import (
	"context"

	"github.com/tikv/txn-scheduler/engine"
	"github.com/tikv/txn-scheduler/mvcc"
	"github.com/tikv/txn-scheduler/oracle"
)

// processRead runs a read-only command against snap, the Go analogue
// of the Rust source's process_read_impl's MvccByKey/MvccByStartTs/
// ScanLock arms.
func processRead(ctx context.Context, snap engine.Snapshot, cmd Command) (CommandResult, error) {
	switch c := cmd.(type) {
	case *MvccByKey:
		return mvccByKey(snap, c.Ctx, c.Key)
	case *MvccByStartTS:
		return mvccByStartTS(ctx, snap, c.Ctx, c.StartTS)
	case *ScanLock:
		return scanLock(ctx, snap, c)
	default:
		return CommandResult{}, errUnsupportedReadCommand(cmd.Kind())
	}
}

func mvccByKey(snap engine.Snapshot, cctx Context, key []byte) (CommandResult, error) {
	r := mvcc.NewScanReader(snap, mvcc.ScanModeForward, cctx.FillCache).WithIsolation(cctx.IsolationLevel)
	lock, err := r.LoadLock(key)
	if err != nil {
		return CommandResult{}, err
	}
	writes, err := r.ScanWrites(key)
	if err != nil {
		return CommandResult{}, err
	}
	values, err := r.ScanValuesInDefault(key)
	if err != nil {
		return CommandResult{}, err
	}
	return CommandResult{
		Kind: KindMvccByKey,
		MvccInfo: &MvccInfo{
			Key: key, Lock: lock, Writes: writes, Values: values,
		},
	}, nil
}

// mvccByStartTS finds which key (if any) is involved in the
// transaction with the given start_ts and returns the same projection
// mvccByKey would, mirroring mvcc_leveldb.go:MvccGetByStartTS: first
// CF_LOCK is scanned for a still-pending lock at that start_ts, and if
// none turns up — the transaction may already have committed, leaving
// no lock behind — CF_WRITE is scanned for a write record stamped with
// that start_ts instead.
func mvccByStartTS(ctx context.Context, snap engine.Snapshot, cctx Context, startTS oracle.TimeStamp) (CommandResult, error) {
	r := mvcc.NewScanReader(snap, mvcc.ScanModeForward, cctx.FillCache).WithIsolation(cctx.IsolationLevel)

	var lockCursor []byte
	for {
		locks, hasMore, err := r.ScanLocks(ctx, lockCursor, 0, 256)
		if err != nil {
			return CommandResult{}, err
		}
		for _, kl := range locks {
			if kl.Lock.StartTS == startTS {
				return mvccByKey(snap, cctx, kl.Key)
			}
		}
		if !hasMore || len(locks) == 0 {
			break
		}
		lockCursor = append(append([]byte{}, locks[len(locks)-1].Key...), 0)
	}

	var writeCursor []byte
	for {
		writes, hasMore, err := r.ScanAllWrites(ctx, writeCursor, 256)
		if err != nil {
			return CommandResult{}, err
		}
		for _, kw := range writes {
			if kw.Record.StartTS == startTS {
				return mvccByKey(snap, cctx, kw.Key)
			}
		}
		if !hasMore || len(writes) == 0 {
			return CommandResult{Kind: KindMvccByStartTS}, nil
		}
		writeCursor = append(append([]byte{}, writes[len(writes)-1].EncodedKey...), 0)
	}
}

func scanLock(ctx context.Context, snap engine.Snapshot, c *ScanLock) (CommandResult, error) {
	r := mvcc.NewScanReader(snap, mvcc.ScanModeForward, c.Ctx.FillCache).WithIsolation(c.Ctx.IsolationLevel)
	locks, hasMore, err := r.ScanLocks(ctx, c.StartKey, c.MaxTS, c.Limit)
	if err != nil {
		return CommandResult{}, err
	}
	res := CommandResult{Kind: KindScanLock, Locks: locks, HasMore: hasMore}
	if hasMore && len(locks) > 0 {
		res.NextScanKey = append(append([]byte{}, locks[len(locks)-1].Key...), 0)
	}
	return res, nil
}

type errUnsupportedReadCommand Kind

func (e errUnsupportedReadCommand) Error() string {
	return "command is not a read-path command: " + Kind(e).String()
}
