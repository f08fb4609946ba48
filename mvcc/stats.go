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

// Statistics accumulates per-CF scan/get counters for one command, the
// Go analogue of the Rust source's Statistics struct threaded through
// process_read/process_write so the scheduler can report read-flow
// metrics once the command finishes.
type Statistics struct {
	LockCF    CFStatistics
	WriteCF   CFStatistics
	DefaultCF CFStatistics
}

// CFStatistics counts point-gets and scan steps against one CF.
type CFStatistics struct {
	Get   int
	Next  int
	Seek  int
}

func (s *Statistics) add(other *Statistics) {
	s.LockCF.add(&other.LockCF)
	s.WriteCF.add(&other.WriteCF)
	s.DefaultCF.add(&other.DefaultCF)
}

func (c *CFStatistics) add(other *CFStatistics) {
	c.Get += other.Get
	c.Next += other.Next
	c.Seek += other.Seek
}
