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

	"github.com/rs/zerolog"
)

// Peer emulates the co-processor end of a mailbox: it deposits full slots
// into the host's read half and collects the host's outbound payloads. The
// tests and the demo binary use it to drive a session end to end; it is not
// part of the production host path.
//
// Deposits are not flow-controlled: a deposit that outruns the host's
// inbound callback overwrites the previous slot, exactly as the real
// hardware window behaves. Callers that care must pace their deposits.
type Peer struct {
	win      *Window
	bell     Notifier
	slotSize int
	log      zerolog.Logger
	outbound chan []byte
}

// NewPeer attaches a peer emulator over the same region and doorbell
// geometry as the host session. Host writes observed via the doorbell are
// buffered on Outbound; if nobody drains them they are dropped.
func NewPeer(region []byte, bell Notifier, slotSize int, logger zerolog.Logger) (*Peer, error) {
	win, err := SplitWindow(region, slotSize)
	if err != nil {
		return nil, err
	}
	p := &Peer{
		win:      win,
		bell:     bell,
		slotSize: slotSize,
		log:      logger.With().Str("role", "peer").Logger(),
		outbound: make(chan []byte, 16),
	}
	if err := bell.Start(p.onRing); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrResourceUnavailable, err)
	}
	return p, nil
}

// onRing snapshots the host's write half. The host does not tell the peer
// how many bytes are meaningful, so the whole half is captured.
func (p *Peer) onRing() {
	buf := make([]byte, p.win.WriteSize())
	copy(buf, p.win.WriteHalf())
	select {
	case p.outbound <- buf:
	default:
		p.log.Warn().Msg("outbound buffer full, host payload dropped")
	}
}

// Deposit copies b into the host's read half and rings the host doorbell.
// Bytes beyond len(b) in the slot keep whatever was previously there; the
// host always receives the full slot.
func (p *Peer) Deposit(ctx context.Context, b []byte) error {
	if len(b) > p.slotSize {
		return fmt.Errorf("%w: %d bytes into %d-byte slot", ErrTooLarge, len(b), p.slotSize)
	}
	copy(p.win.ReadHalf(), b)
	if err := p.bell.Ring(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrChannelFailure, err)
	}
	return nil
}

// Outbound yields the host payloads observed since the peer attached.
func (p *Peer) Outbound() <-chan []byte {
	return p.outbound
}

// Close stops the peer's doorbell endpoint.
func (p *Peer) Close() error {
	return p.bell.Stop()
}
