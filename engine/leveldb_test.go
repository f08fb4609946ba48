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

package engine

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T) *LevelDBEngine {
	e, err := NewMemEngine()
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func writeSync(t *testing.T, e *LevelDBEngine, modifies []Modify) {
	t.Helper()
	var wg sync.WaitGroup
	wg.Add(1)
	var writeErr error
	err := e.AsyncWrite(context.Background(), modifies, func(err error) {
		writeErr = err
		wg.Done()
	})
	require.NoError(t, err)
	wg.Wait()
	require.NoError(t, writeErr)
}

func TestAsyncWriteThenGet(t *testing.T) {
	e := newTestEngine(t)
	writeSync(t, e, []Modify{
		{CF: CFDefault, Op: OpPut, Key: []byte("k1"), Value: []byte("v1")},
		{CF: CFLock, Op: OpPut, Key: []byte("k1"), Value: []byte("lock")},
	})

	snap, err := e.Snapshot(context.Background())
	require.NoError(t, err)

	v, err := snap.Get(CFDefault, []byte("k1"))
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), v)

	v, err = snap.Get(CFLock, []byte("k1"))
	require.NoError(t, err)
	assert.Equal(t, []byte("lock"), v)

	v, err = snap.Get(CFWrite, []byte("k1"))
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestForwardIterator(t *testing.T) {
	e := newTestEngine(t)
	writeSync(t, e, []Modify{
		{CF: CFDefault, Op: OpPut, Key: []byte("a"), Value: []byte("1")},
		{CF: CFDefault, Op: OpPut, Key: []byte("b"), Value: []byte("2")},
		{CF: CFDefault, Op: OpPut, Key: []byte("c"), Value: []byte("3")},
	})

	snap, err := e.Snapshot(context.Background())
	require.NoError(t, err)
	it, err := snap.Iter(CFDefault, nil, nil)
	require.NoError(t, err)
	defer it.Close()

	var keys []string
	for ; it.Valid(); it.Next() {
		keys = append(keys, string(it.Key()))
	}
	assert.Equal(t, []string{"a", "b", "c"}, keys)
}

func TestReverseIterator(t *testing.T) {
	e := newTestEngine(t)
	writeSync(t, e, []Modify{
		{CF: CFDefault, Op: OpPut, Key: []byte("a"), Value: []byte("1")},
		{CF: CFDefault, Op: OpPut, Key: []byte("b"), Value: []byte("2")},
		{CF: CFDefault, Op: OpPut, Key: []byte("c"), Value: []byte("3")},
	})

	snap, err := e.Snapshot(context.Background())
	require.NoError(t, err)
	it, err := snap.IterReverse(CFDefault, nil, []byte("b"))
	require.NoError(t, err)
	defer it.Close()

	var keys []string
	for ; it.Valid(); it.Next() {
		keys = append(keys, string(it.Key()))
	}
	assert.Equal(t, []string{"c", "b"}, keys)
}

func TestHasDataInRange(t *testing.T) {
	e := newTestEngine(t)
	has, err := e.HasDataInRange(CFWrite, []byte("a"), []byte("z"))
	require.NoError(t, err)
	assert.False(t, has)

	writeSync(t, e, []Modify{{CF: CFWrite, Op: OpPut, Key: []byte("m"), Value: []byte("x")}})

	has, err = e.HasDataInRange(CFWrite, []byte("a"), []byte("z"))
	require.NoError(t, err)
	assert.True(t, has)

	has, err = e.HasDataInRange(CFWrite, []byte("n"), []byte("z"))
	require.NoError(t, err)
	assert.False(t, has)
}

func TestDeleteModify(t *testing.T) {
	e := newTestEngine(t)
	writeSync(t, e, []Modify{{CF: CFDefault, Op: OpPut, Key: []byte("k"), Value: []byte("v")}})
	writeSync(t, e, []Modify{{CF: CFDefault, Op: OpDelete, Key: []byte("k")}})

	snap, err := e.Snapshot(context.Background())
	require.NoError(t, err)
	v, err := snap.Get(CFDefault, []byte("k"))
	require.NoError(t, err)
	assert.Nil(t, v)
}
