/*
 * Copyright 2025 The hostlink Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package mbox

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func slotOf(b byte, size int) []byte {
	s := make([]byte, size)
	for i := range s {
		s[i] = b
	}
	return s
}

func TestQueueFIFO(t *testing.T) {
	q := NewQueue(4, 8)

	for _, b := range []byte{'a', 'b', 'c'} {
		dropped := q.Enqueue(slotOf(b, 8))
		assert.False(t, dropped)
	}
	assert.Equal(t, 3, q.Len())

	dst := make([]byte, 8)
	for _, want := range []byte{'a', 'b', 'c'} {
		n, ok := q.Dequeue(dst)
		require.True(t, ok)
		require.Equal(t, 8, n)
		assert.Equal(t, slotOf(want, 8), dst)
	}

	_, ok := q.Dequeue(dst)
	assert.False(t, ok)
	assert.True(t, q.IsEmpty())
}

// Drop-oldest law: after capacity+1 enqueues with no dequeues, the queue
// holds exactly the last capacity slots in arrival order.
func TestQueueDropOldest(t *testing.T) {
	const capacity = 4
	q := NewQueue(capacity, 8)

	for i := 0; i < capacity; i++ {
		dropped := q.Enqueue(slotOf(byte('a'+i), 8))
		require.False(t, dropped)
	}
	require.True(t, q.IsFull())

	dropped := q.Enqueue(slotOf('z', 8))
	assert.True(t, dropped)
	assert.Equal(t, capacity, q.Len(), "overflow must not grow the queue")
	assert.Equal(t, uint64(1), q.Overflows())

	dst := make([]byte, 8)
	for _, want := range []byte{'b', 'c', 'd', 'z'} {
		n, ok := q.Dequeue(dst)
		require.True(t, ok)
		require.Equal(t, 8, n)
		assert.Equal(t, slotOf(want, 8), dst, "oldest slot must have been evicted")
	}
}

func TestQueueDequeueTruncates(t *testing.T) {
	q := NewQueue(2, 8)
	q.Enqueue([]byte("abcdefgh"))
	q.Enqueue([]byte("ijklmnop"))

	// A short destination consumes the whole slot; the tail is discarded,
	// not carried over into the next dequeue.
	dst := make([]byte, 3)
	n, ok := q.Dequeue(dst)
	require.True(t, ok)
	assert.Equal(t, 3, n)
	assert.Equal(t, []byte("abc"), dst)

	n, ok = q.Dequeue(dst)
	require.True(t, ok)
	assert.Equal(t, 3, n)
	assert.Equal(t, []byte("ijk"), dst)
}

func TestQueueEnqueueShortSource(t *testing.T) {
	q := NewQueue(2, 8)
	// A short source fills only a prefix; the queue still hands back a
	// full slot on dequeue.
	q.Enqueue([]byte("xy"))

	dst := make([]byte, 8)
	n, ok := q.Dequeue(dst)
	require.True(t, ok)
	assert.Equal(t, 8, n)
	assert.Equal(t, []byte("xy"), dst[:2])
}

func TestQueueReset(t *testing.T) {
	q := NewQueue(4, 8)
	q.Enqueue(slotOf('a', 8))
	q.Enqueue(slotOf('b', 8))
	q.Reset()
	assert.True(t, q.IsEmpty())
	_, ok := q.Dequeue(make([]byte, 8))
	assert.False(t, ok)
}

// The length invariant 0 <= len <= capacity must hold under arbitrary
// interleavings of enqueues and dequeues.
func TestQueueConcurrentInvariant(t *testing.T) {
	const (
		capacity  = 8
		producers = 4
		consumers = 4
		perWorker = 500
	)
	q := NewQueue(capacity, 16)

	var wg sync.WaitGroup
	violation := make(chan string, 1)
	report := func(format string, args ...any) {
		select {
		case violation <- fmt.Sprintf(format, args...):
		default:
		}
	}

	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				q.Enqueue(slotOf(byte(id), 16))
				if l := q.Len(); l < 0 || l > capacity {
					report("queue length %d out of [0,%d]", l, capacity)
				}
			}
		}(p)
	}
	for c := 0; c < consumers; c++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			dst := make([]byte, 16)
			for i := 0; i < perWorker; i++ {
				q.Dequeue(dst)
				if l := q.Len(); l < 0 || l > capacity {
					report("queue length %d out of [0,%d]", l, capacity)
				}
			}
		}()
	}

	wg.Wait()
	select {
	case msg := <-violation:
		t.Fatal(msg)
	default:
	}
	if l := q.Len(); l < 0 || l > capacity {
		t.Fatalf("final queue length %d out of [0,%d]", l, capacity)
	}
}
