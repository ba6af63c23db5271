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

// Package device exposes a mailbox session through a byte-stream device
// interface: open a handle, read and write bytes, close. Handles are
// reference counted; closing a handle never tears the session down, and the
// session can only be detached once every handle is closed. That refcount
// is the external synchronization the session relies on to keep reads and
// writes away from a detach in progress.
package device

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/hostlink/mailbox/internal/transport/mbox"
)

var (
	// ErrClosed is returned by I/O on a closed handle.
	ErrClosed = errors.New("device handle closed")

	// ErrBusy is returned by Detach while handles remain open.
	ErrBusy = errors.New("device has open handles")
)

// Node is the device endpoint for one mailbox session.
type Node struct {
	mu   sync.Mutex
	sess *mbox.Session
	refs int
	log  zerolog.Logger
}

// NewNode wraps a Ready session.
func NewNode(sess *mbox.Session, logger zerolog.Logger) *Node {
	return &Node{
		sess: sess,
		log:  logger.With().Str("session_id", sess.ID()).Logger(),
	}
}

// Open acquires a handle on the session. nonBlocking fixes the handle's
// read mode, mirroring a device opened with O_NONBLOCK.
func (n *Node) Open(nonBlocking bool) (*Handle, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.sess.State() != mbox.StateReady {
		return nil, mbox.ErrSessionNotReady
	}
	n.refs++
	n.log.Debug().Int("refs", n.refs).Bool("non_blocking", nonBlocking).Msg("device opened")
	return &Handle{node: n, nonBlocking: nonBlocking}, nil
}

// Refs returns the number of open handles.
func (n *Node) Refs() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.refs
}

// Detach tears the session down. It fails with ErrBusy while any handle
// remains open.
func (n *Node) Detach() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.refs > 0 {
		return fmt.Errorf("%w: %d open", ErrBusy, n.refs)
	}
	return n.sess.Detach()
}

func (n *Node) release() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.refs--
	n.log.Debug().Int("refs", n.refs).Msg("device closed")
}

// Handle is one open reference to the device.
type Handle struct {
	node        *Node
	nonBlocking bool
	closed      atomic.Bool
}

// Read drains one queued inbound slot into p. In non-blocking mode an empty
// queue fails with mbox.ErrWouldBlock; otherwise it reads as 0 bytes.
func (h *Handle) Read(p []byte) (int, error) {
	if h.closed.Load() {
		return 0, ErrClosed
	}
	return h.node.sess.Read(p, h.nonBlocking)
}

// Write sends p to the peer through the mailbox window.
func (h *Handle) Write(p []byte) (int, error) {
	if h.closed.Load() {
		return 0, ErrClosed
	}
	return h.node.sess.Write(p)
}

// Close releases the handle. The session persists until Node.Detach.
func (h *Handle) Close() error {
	if !h.closed.CompareAndSwap(false, true) {
		return nil // already closed
	}
	h.node.release()
	return nil
}
