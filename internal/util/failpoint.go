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

// Package util holds small cross-cutting helpers that don't belong to
// any one domain package, mirroring the teacher's internal/util.
package util

import "github.com/pingcap/failpoint"

// EvalFailpoint wraps github.com/pingcap/failpoint's raw Eval the same
// way the teacher's internal/util.EvalFailpoint does: err is nil only
// when the named failpoint is both compiled in and currently enabled,
// at which point val carries whatever term the failpoint expression
// evaluated to.
func EvalFailpoint(name string) (interface{}, error) {
	return failpoint.Eval(name)
}
