//go:build linux && (amd64 || arm64)

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
)

// servePoll bounds each futex wait in the delivery loop so Stop is observed
// promptly even when the peer never rings again.
const servePoll = 100 * time.Millisecond

// FutexDoorbell is a doorbell over the segment's control page: each side
// rings by bumping its sequence word and futex-waking the other side, whose
// delivery goroutine waits on that word.
//
// The two directions are deliberately asymmetric, matching the transport's
// semantics: a host ring (outbound write) blocks until the peer's delivery
// loop acknowledges it or the context expires, while a peer ring (inbound
// slot) is fire-and-forget since the inbound path carries no
// application-level acknowledgement.
type FutexDoorbell struct {
	ctrl   *ctrlView
	isHost bool

	done  chan struct{}
	start sync.Once
	stop  sync.Once
	wg    sync.WaitGroup
}

// NewHostDoorbell returns the host-side doorbell endpoint for seg.
func NewHostDoorbell(seg *Segment) *FutexDoorbell {
	return &FutexDoorbell{ctrl: seg.ctrl, isHost: true, done: make(chan struct{})}
}

// NewPeerDoorbell returns the peer-side doorbell endpoint for seg.
func NewPeerDoorbell(seg *Segment) *FutexDoorbell {
	return &FutexDoorbell{ctrl: seg.ctrl, done: make(chan struct{})}
}

// Ring signals the other side. On the host side it blocks until the peer
// acknowledges the ring or ctx expires.
func (d *FutexDoorbell) Ring(ctx context.Context) error {
	select {
	case <-d.done:
		return ErrDoorbellClosed
	default:
	}
	if d.ctrl.Closed() {
		return ErrDoorbellClosed
	}

	if !d.isHost {
		atomic.AddUint32(d.ctrl.peerRingWord(), 1)
		futexWake(d.ctrl.peerRingWord(), 1)
		return nil
	}

	seq := atomic.AddUint32(d.ctrl.hostRingWord(), 1)
	futexWake(d.ctrl.hostRingWord(), 1)

	deadline, hasDeadline := ctx.Deadline()
	for {
		ack := atomic.LoadUint32(d.ctrl.hostAckWord())
		if int32(ack-seq) >= 0 {
			return nil
		}
		if d.ctrl.Closed() {
			return ErrDoorbellClosed
		}
		select {
		case <-d.done:
			return ErrDoorbellClosed
		default:
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		// Bound each wait so closure and cancellation are re-checked even
		// without a context deadline.
		timeoutNs := servePoll.Nanoseconds()
		if hasDeadline {
			remaining := time.Until(deadline)
			if remaining <= 0 {
				return fmt.Errorf("doorbell acknowledgement: %w", errFutexTimeout)
			}
			if remaining.Nanoseconds() < timeoutNs {
				timeoutNs = remaining.Nanoseconds()
			}
		}
		if err := futexWaitTimeout(d.ctrl.hostAckWord(), ack, timeoutNs); err != nil && err != errFutexTimeout {
			return err
		}
	}
}

// Start launches the delivery goroutine. On the host side it watches the
// peer's ring word and invokes the handler once per ring; on the peer side
// it additionally publishes the acknowledgement the host's Ring waits on.
func (d *FutexDoorbell) Start(handler func()) error {
	d.start.Do(func() {
		watch := d.ctrl.peerRingWord()
		if !d.isHost {
			watch = d.ctrl.hostRingWord()
		}
		last := atomic.LoadUint32(watch)

		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			for {
				select {
				case <-d.done:
					return
				default:
				}
				cur := atomic.LoadUint32(watch)
				for last != cur {
					handler()
					last++
					if !d.isHost {
						atomic.StoreUint32(d.ctrl.hostAckWord(), last)
						futexWake(d.ctrl.hostAckWord(), 1)
					}
				}
				if d.ctrl.Closed() {
					return
				}
				futexWaitTimeout(watch, cur, servePoll.Nanoseconds())
			}
		}()
	})
	return nil
}

// Stop ends delivery. A host Ring still waiting for an acknowledgement
// fails once its bounded wait re-checks the endpoint state.
func (d *FutexDoorbell) Stop() error {
	d.stop.Do(func() {
		close(d.done)
	})
	d.wg.Wait()
	return nil
}
