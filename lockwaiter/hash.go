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

// Package lockwaiter tracks pessimistic-lock waiters so a Commit,
// Rollback, or CheckTxnStatus that frees a key can wake up whatever
// command is blocked on it, instead of leaving that command to find
// out only on its next poll.
package lockwaiter

import "github.com/dgryski/go-farm"

// KeyHash fingerprints a raw key before handing it to the waiter
// index, the same secondary key a deadlock detector would use.
func KeyHash(key []byte) uint64 {
	return farm.Fingerprint64(key)
}
