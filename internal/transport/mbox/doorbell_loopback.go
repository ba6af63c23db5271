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
	"sync"
)

// LoopbackDoorbell is an in-process doorbell endpoint. NewLoopbackPair
// wires two endpoints back to back so a host session and a peer emulator
// can run inside one process, which is how the tests and the demo binary
// exercise the transport on any platform.
//
// Ring blocks until the paired endpoint's handler has run, mirroring the
// blocking send of a real doorbell: when Ring returns nil the receiver has
// taken delivery. If the other side never started, Ring fails once ctx
// expires.
type LoopbackDoorbell struct {
	in     chan struct{}
	out    chan struct{}
	ackIn  chan struct{}
	ackOut chan struct{}

	done  chan struct{}
	start sync.Once
	stop  sync.Once
	wg    sync.WaitGroup
}

// NewLoopbackPair returns two connected doorbell endpoints. A ring on one
// endpoint invokes the handler registered on the other.
func NewLoopbackPair() (*LoopbackDoorbell, *LoopbackDoorbell) {
	ab := make(chan struct{})
	ba := make(chan struct{})
	abAck := make(chan struct{}, 1)
	baAck := make(chan struct{}, 1)
	a := &LoopbackDoorbell{out: ab, in: ba, ackIn: abAck, ackOut: baAck, done: make(chan struct{})}
	b := &LoopbackDoorbell{out: ba, in: ab, ackIn: baAck, ackOut: abAck, done: make(chan struct{})}
	return a, b
}

// Ring delivers one ring to the paired endpoint and blocks until its
// handler has run or ctx expires.
func (d *LoopbackDoorbell) Ring(ctx context.Context) error {
	select {
	case <-d.done:
		return ErrDoorbellClosed
	default:
	}

	// Discard a stale acknowledgement left behind by a ring whose caller
	// gave up before the receiver finished.
	select {
	case <-d.ackIn:
	default:
	}

	select {
	case d.out <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	case <-d.done:
		return ErrDoorbellClosed
	}

	select {
	case <-d.ackIn:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-d.done:
		return ErrDoorbellClosed
	}
}

// Start launches the delivery goroutine. The handler is invoked once per
// inbound ring until Stop; each invocation is acknowledged back to the
// ringer.
func (d *LoopbackDoorbell) Start(handler func()) error {
	d.start.Do(func() {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			for {
				select {
				case <-d.in:
					handler()
					select {
					case d.ackOut <- struct{}{}:
					default:
						// Ringer abandoned the send; drop the ack.
					}
				case <-d.done:
					return
				}
			}
		}()
	})
	return nil
}

// Stop ends delivery and fails all subsequent rings on this endpoint.
func (d *LoopbackDoorbell) Stop() error {
	d.stop.Do(func() {
		close(d.done)
	})
	d.wg.Wait()
	return nil
}
