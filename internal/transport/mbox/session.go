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
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Protocol constants. These must match the peer exactly; they are
// configuration, never negotiated.
const (
	// DefaultSlotSize is the fixed inbound message size in bytes and must
	// equal the read half of the shared window.
	DefaultSlotSize = 2048

	// DefaultQueueCapacity is the maximum number of queued inbound slots.
	DefaultQueueCapacity = 32

	// DefaultSendTimeout bounds the blocking doorbell send on the write
	// path.
	DefaultSendTimeout = 500 * time.Millisecond
)

// State is the session lifecycle state.
type State int32

const (
	StateUnattached State = iota
	StateAttaching
	StateReady
	StateDetaching
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateUnattached:
		return "unattached"
	case StateAttaching:
		return "attaching"
	case StateReady:
		return "ready"
	case StateDetaching:
		return "detaching"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Config carries the session's protocol constants. Zero fields take the
// package defaults.
type Config struct {
	SlotSize      int
	QueueCapacity int
	SendTimeout   time.Duration
}

func (c Config) withDefaults() Config {
	if c.SlotSize <= 0 {
		c.SlotSize = DefaultSlotSize
	}
	if c.QueueCapacity <= 0 {
		c.QueueCapacity = DefaultQueueCapacity
	}
	if c.SendTimeout <= 0 {
		c.SendTimeout = DefaultSendTimeout
	}
	return c
}

// Session owns the shared window, the inbound queue and the doorbell handle
// for one host/peer pairing. It is created by Attach and torn down by
// Detach.
//
// Two independent exclusion domains are in play and are never nested: the
// queue's mutex, shared by the doorbell callback and the read path with O(1)
// hold time, and the write mutex, which serializes writers across the window
// copy and the doorbell send. An in-flight write therefore never delays
// inbound delivery.
type Session struct {
	cfg   Config
	id    string
	log   zerolog.Logger
	state atomic.Int32

	win   *Window
	queue *Queue
	bell  Notifier

	// writeMu guards the write half of the window and the doorbell send.
	// Detach takes it too, so teardown waits for an in-flight write.
	writeMu sync.Mutex

	stats stats
}

// Attach validates the shared region's geometry, acquires the doorbell and
// returns a Ready session. On any failure the partially acquired resources
// are rolled back and the session is never observable as Ready.
//
// The region is supplied by the platform attach collaborator; the session
// borrows it and does not unmap it at detach.
func Attach(region []byte, bell Notifier, cfg Config, logger zerolog.Logger) (*Session, error) {
	cfg = cfg.withDefaults()

	s := &Session{
		cfg:  cfg,
		id:   uuid.NewString(),
		bell: bell,
	}
	s.log = logger.With().Str("session_id", s.id).Logger()
	s.state.Store(int32(StateAttaching))

	win, err := SplitWindow(region, cfg.SlotSize)
	if err != nil {
		s.state.Store(int32(StateUnattached))
		return nil, err
	}
	s.win = win
	s.queue = NewQueue(cfg.QueueCapacity, cfg.SlotSize)

	if err := bell.Start(s.onRing); err != nil {
		s.state.Store(int32(StateUnattached))
		return nil, fmt.Errorf("%w: %v", ErrResourceUnavailable, err)
	}

	s.state.Store(int32(StateReady))
	s.log.Info().
		Int("write_window", win.WriteSize()).
		Int("slot_size", cfg.SlotSize).
		Int("queue_capacity", cfg.QueueCapacity).
		Msg("mailbox session attached")
	return s, nil
}

// ID returns the session's log-correlation identifier.
func (s *Session) ID() string {
	return s.id
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	return State(s.state.Load())
}

// Stats returns a snapshot of the session's diagnostic counters.
func (s *Session) Stats() StatsSnapshot {
	return s.stats.snapshot()
}

// WriteWindowSize returns the byte capacity of the outbound window half.
func (s *Session) WriteWindowSize() int {
	return s.win.WriteSize()
}

// onRing is the inbound callback. It runs on the doorbell's delivery
// goroutine and must complete in bounded, non-blocking time: one slot copy
// under the queue mutex, never I/O, never the write mutex.
func (s *Session) onRing() {
	if s.State() != StateReady {
		return
	}
	dropped := s.queue.Enqueue(s.win.ReadHalf())
	s.stats.slotsReceived.Add(1)
	if dropped {
		s.stats.overflowDrops.Add(1)
		s.log.Warn().
			Uint64("total_dropped", s.queue.Overflows()).
			Msg("message queue full, oldest message lost")
	}
}

// Read drains one queued slot into p, returning the number of bytes copied.
// A slot is consumed whole: bytes beyond len(p) are discarded.
//
// With nonBlocking set, an empty queue fails with ErrWouldBlock. Without it,
// an empty queue returns 0 bytes rather than parking the caller: this
// transport has no wait-for-data read, blocking mode only suppresses the
// immediate would-block error.
func (s *Session) Read(p []byte, nonBlocking bool) (int, error) {
	if s.State() != StateReady {
		return 0, ErrSessionNotReady
	}
	if nonBlocking && s.queue.IsEmpty() {
		return 0, ErrWouldBlock
	}
	n, ok := s.queue.Dequeue(p)
	if !ok {
		s.stats.emptyReads.Add(1)
		return 0, nil
	}
	s.stats.reads.Add(1)
	return n, nil
}

// Write copies p into the write half of the window and rings the doorbell,
// blocking on the send for up to the configured timeout. Writers are
// serialized; bytes beyond len(p) in the window keep their previous
// contents, so callers must not assume zero padding.
//
// On ErrChannelFailure the payload remains in the window and delivery is at
// most once; the caller may retry at the application level.
func (s *Session) Write(p []byte) (int, error) {
	if s.State() != StateReady {
		return 0, ErrSessionNotReady
	}
	if len(p) > s.win.WriteSize() {
		s.stats.writeRejects.Add(1)
		return 0, fmt.Errorf("%w: %d bytes into %d-byte window", ErrTooLarge, len(p), s.win.WriteSize())
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	copy(s.win.WriteHalf(), p)

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.SendTimeout)
	defer cancel()
	if err := s.bell.Ring(ctx); err != nil {
		s.stats.sendFailures.Add(1)
		s.log.Warn().Err(err).Msg("doorbell send failed")
		return 0, fmt.Errorf("%w: %v", ErrChannelFailure, err)
	}

	s.stats.writes.Add(1)
	return len(p), nil
}

// Detach tears the session down: it waits for an in-flight write by taking
// the write lock, stops the doorbell and discards all queued messages.
// Callers must not invoke Read or Write concurrently with Detach; the
// device layer's open refcount provides that exclusion.
func (s *Session) Detach() error {
	if !s.state.CompareAndSwap(int32(StateReady), int32(StateDetaching)) {
		return fmt.Errorf("%w: detach from state %s", ErrSessionNotReady, s.State())
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	err := s.bell.Stop()
	s.queue.Reset()
	s.state.Store(int32(StateUnattached))

	snap := s.stats.snapshot()
	s.log.Info().
		Uint64("slots_received", snap.SlotsReceived).
		Uint64("overflow_drops", snap.OverflowDrops).
		Uint64("writes", snap.Writes).
		Msg("mailbox session detached")
	return err
}
