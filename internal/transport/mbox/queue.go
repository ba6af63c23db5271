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
	"sync"
	"sync/atomic"
)

// Queue is a fixed-capacity FIFO of fixed-size message slots with a
// drop-oldest overflow policy. Enqueue runs on the doorbell callback path
// and must never block or fail, so all slot storage is allocated up front
// and overflow evicts the oldest slot instead of rejecting the new one.
//
// Enqueue and Dequeue share one mutex; the hold time is a single slot copy.
type Queue struct {
	mu       sync.Mutex
	slots    [][]byte
	head     int // index of the oldest slot
	count    int
	slotSize int
	overflow atomic.Uint64
}

// NewQueue creates a queue holding up to capacity slots of slotSize bytes.
// All slot buffers are preallocated so the enqueue path never allocates.
func NewQueue(capacity, slotSize int) *Queue {
	slots := make([][]byte, capacity)
	for i := range slots {
		slots[i] = make([]byte, slotSize)
	}
	return &Queue{
		slots:    slots,
		slotSize: slotSize,
	}
}

// Enqueue copies one slot's worth of bytes from src into the queue. If the
// queue is full the oldest slot is evicted first. It reports whether an
// eviction happened so the caller can surface the loss; the message itself
// is silently gone, which is the designed back-pressure policy.
func (q *Queue) Enqueue(src []byte) (dropped bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.count == len(q.slots) {
		q.head = (q.head + 1) % len(q.slots)
		q.count--
		q.overflow.Add(1)
		dropped = true
	}
	tail := (q.head + q.count) % len(q.slots)
	copy(q.slots[tail], src[:min(len(src), q.slotSize)])
	q.count++
	return dropped
}

// Dequeue removes the oldest slot and copies up to len(dst) of its bytes
// into dst, returning the number of bytes copied. The slot is consumed
// whole: bytes beyond len(dst) are discarded, not retained for a later
// read. ok is false if the queue was empty.
func (q *Queue) Dequeue(dst []byte) (n int, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.count == 0 {
		return 0, false
	}
	n = copy(dst, q.slots[q.head])
	q.head = (q.head + 1) % len(q.slots)
	q.count--
	return n, true
}

// Len returns the number of queued slots.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count
}

// IsEmpty reports whether the queue holds no slots.
func (q *Queue) IsEmpty() bool {
	return q.Len() == 0
}

// IsFull reports whether the queue is at capacity.
func (q *Queue) IsFull() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count == len(q.slots)
}

// Capacity returns the maximum number of queued slots.
func (q *Queue) Capacity() int {
	return len(q.slots)
}

// Overflows returns the total number of slots evicted by the drop-oldest
// policy since the queue was created.
func (q *Queue) Overflows() uint64 {
	return q.overflow.Load()
}

// Reset discards all queued slots. Used at detach.
func (q *Queue) Reset() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.head = 0
	q.count = 0
}
