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

// Package logutil wires the repository's structured logging on top of
// pingcap/log (itself a thin wrapper over zap), the way the teacher's
// internal/logutil package does for client-go.
package logutil

import (
	"context"
	"time"

	"github.com/pingcap/log"
	"go.uber.org/zap"
)

// BgLogger returns the background, context-free logger. Most call
// sites in the txn package use this rather than threading a logger
// through every function, matching the teacher's convention.
func BgLogger() *zap.Logger {
	return log.L()
}

type ctxLoggerKey struct{}

// WithTraceFields attaches fields (typically a command id and region
// id) to a context so that Logger(ctx) includes them automatically.
func WithTraceFields(ctx context.Context, fields ...zap.Field) context.Context {
	logger := BgLogger()
	if l, ok := ctx.Value(ctxLoggerKey{}).(*zap.Logger); ok {
		logger = l
	}
	return context.WithValue(ctx, ctxLoggerKey{}, logger.With(fields...))
}

// Logger returns the logger attached to ctx, or the background logger
// if none was attached.
func Logger(ctx context.Context) *zap.Logger {
	if l, ok := ctx.Value(ctxLoggerKey{}).(*zap.Logger); ok {
		return l
	}
	return BgLogger()
}

// SlowTimer tracks elapsed time for a single command's processing, the
// Go equivalent of the Rust source's SlowTimer/slow_log! pair.
type SlowTimer struct {
	start time.Time
}

// NewSlowTimer starts a new timer.
func NewSlowTimer() SlowTimer {
	return SlowTimer{start: time.Now()}
}

// Elapsed returns the time since the timer was created.
func (t SlowTimer) Elapsed() time.Duration {
	return time.Since(t.start)
}

// SlowLog emits a warning if elapsed exceeds threshold, mirroring the
// Rust source's slow_log! call in process_by_worker.
func SlowLog(ctx context.Context, threshold time.Duration, t SlowTimer, msg string, fields ...zap.Field) {
	elapsed := t.Elapsed()
	if elapsed < threshold {
		return
	}
	Logger(ctx).Warn(msg, append(fields, zap.Duration("took", elapsed))...)
}
