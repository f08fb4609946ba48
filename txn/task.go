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

	opentracing "github.com/opentracing/opentracing-go"
)

// CbContext is the snapshot callback's own context, spec.md §4.1's
// cb_ctx: today it carries only the raft term a region-aware snapshot
// callback would stamp a task with, propagated into the command's
// shared Context before dispatch.
type CbContext struct {
	Term uint64
}

// Task pairs a scheduled command with its id and an optional tracing
// span, the Go analogue of the Rust source's Task struct.
type Task struct {
	CID      uint64
	Cmd      Command
	Ctx      context.Context
	RegionID uint64
	CbCtx    CbContext
	span     opentracing.Span
}

// NewTask wraps cmd for dispatch under cid. RegionID mirrors
// cmd.Context().RegionID so the executor can shard on it without
// reaching into the command on every dispatch.
func NewTask(cid uint64, cmd Command, ctx context.Context) *Task {
	return &Task{CID: cid, Cmd: cmd, Ctx: ctx, RegionID: cmd.Context().RegionID}
}

// WithCbContext attaches the snapshot callback's context, spec.md
// §4.1's cb_ctx, to an already-built Task.
func (t *Task) WithCbContext(cb CbContext) *Task {
	t.CbCtx = cb
	return t
}
