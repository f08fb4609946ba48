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

package txn_test

import (
	"context"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/pingcap/kvproto/pkg/kvrpcpb"

	"github.com/tikv/txn-scheduler/config"
	"github.com/tikv/txn-scheduler/engine"
	"github.com/tikv/txn-scheduler/lockwaiter"
	"github.com/tikv/txn-scheduler/mvcc"
	"github.com/tikv/txn-scheduler/txn"
)

// collector is a txn.Scheduler that records every Msg it receives so
// specs can assert on the at-most-once contract.
type collector struct {
	mu   sync.Mutex
	msgs []txn.Msg
	next chan struct{}
}

func newCollector() *collector {
	return &collector{next: make(chan struct{}, 16)}
}

func (c *collector) OnMsg(msg txn.Msg) {
	c.mu.Lock()
	c.msgs = append(c.msgs, msg)
	c.mu.Unlock()
	c.next <- struct{}{}
}

func (c *collector) await() txn.Msg {
	Eventually(c.next, time.Second).Should(Receive())
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.msgs[len(c.msgs)-1]
}

func (c *collector) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.msgs)
}

var _ = Describe("executor message contract", func() {
	var (
		eng  engine.Engine
		sch  *collector
		exec *txn.Executor
	)

	BeforeEach(func() {
		var err error
		eng, err = engine.NewMemEngine()
		Expect(err).NotTo(HaveOccurred())
		sch = newCollector()
		exec = txn.NewExecutor(eng, config.Default, sch, lockwaiter.NewWaitManager())
	})

	AfterEach(func() {
		exec.Close()
		Expect(eng.Close()).To(Succeed())
	})

	When("a write command succeeds", func() {
		It("posts exactly one WriteFinished for its task id", func() {
			key := []byte("k1")
			exec.Schedule(txn.NewTask(1, &txn.Prewrite{
				StartTS:   10,
				Mutations: []mvcc.Mutation{{Op: kvrpcpb.Op_Put, Key: key, Value: []byte("v1")}},
				Primary:   key,
				LockTTL:   1000,
			}, context.Background()))

			msg := sch.await()
			Expect(msg).To(BeAssignableToTypeOf(txn.WriteFinished{}))
			Expect(msg.(txn.WriteFinished).CID).To(Equal(uint64(1)))
			Consistently(func() int { return sch.count() }, 100*time.Millisecond).Should(Equal(1))
		})
	})

	When("a second pessimistic lock request conflicts with a held lock and asks to wait", func() {
		It("posts WaitForLock instead of WriteFinished or FinishedWithErr", func() {
			key := []byte("k1")
			exec.Schedule(txn.NewTask(1, &txn.AcquirePessimisticLock{
				StartTS: 10, ForUpdateTS: 10,
				Mutations: []mvcc.Mutation{{Key: key}},
				Primary:   key, LockTTL: 1000,
			}, context.Background()))
			Expect(sch.await()).To(BeAssignableToTypeOf(txn.WriteFinished{}))

			exec.Schedule(txn.NewTask(2, &txn.AcquirePessimisticLock{
				StartTS: 20, ForUpdateTS: 20,
				Mutations:   []mvcc.Mutation{{Key: key}},
				Primary:     key, LockTTL: 1000,
				WaitTimeout: time.Second,
			}, context.Background()))

			msg := sch.await()
			Expect(msg).To(BeAssignableToTypeOf(txn.WaitForLock{}))
			Expect(msg.(txn.WaitForLock).CID).To(Equal(uint64(2)))
			Expect(msg.(txn.WaitForLock).LockTS).To(Equal(uint64(10)))
		})
	})

	When("a scan-lock read command runs against an empty lock CF", func() {
		It("posts ReadFinished with no locks and no continuation", func() {
			exec.Schedule(txn.NewTask(1, &txn.ScanLock{Limit: 10}, context.Background()))
			msg := sch.await()
			Expect(msg).To(BeAssignableToTypeOf(txn.ReadFinished{}))
			rf := msg.(txn.ReadFinished)
			Expect(rf.Result.Locks).To(BeEmpty())
			Expect(rf.Result.HasMore).To(BeFalse())
		})
	})
})
