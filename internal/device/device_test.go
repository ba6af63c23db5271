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

package device

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hostlink/mailbox/internal/transport/mbox"
)

const testSlot = 64

func newTestNode(t *testing.T) (*Node, *mbox.Peer) {
	t.Helper()

	region := make([]byte, 2*testSlot)
	hostBell, peerBell := mbox.NewLoopbackPair()

	sess, err := mbox.Attach(region, hostBell, mbox.Config{SlotSize: testSlot}, zerolog.Nop())
	require.NoError(t, err)

	peer, err := mbox.NewPeer(region, peerBell, testSlot, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { peer.Close() })

	return NewNode(sess, zerolog.Nop()), peer
}

func TestOpenReadWriteClose(t *testing.T) {
	node, peer := newTestNode(t)

	h, err := node.Open(false)
	require.NoError(t, err)
	assert.Equal(t, 1, node.Refs())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, peer.Deposit(ctx, []byte("inbound")))

	buf := make([]byte, testSlot)
	n, err := h.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, testSlot, n)
	assert.Equal(t, "inbound", string(buf[:7]))

	n, err = h.Write([]byte("outbound"))
	require.NoError(t, err)
	assert.Equal(t, 8, n)
	select {
	case got := <-peer.Outbound():
		assert.Equal(t, "outbound", string(got[:8]))
	case <-time.After(2 * time.Second):
		t.Fatal("peer never observed the write")
	}

	require.NoError(t, h.Close())
	assert.Equal(t, 0, node.Refs())
}

func TestNonBlockingHandle(t *testing.T) {
	node, _ := newTestNode(t)

	h, err := node.Open(true)
	require.NoError(t, err)
	defer h.Close()

	_, err = h.Read(make([]byte, testSlot))
	assert.ErrorIs(t, err, mbox.ErrWouldBlock)
}

func TestBlockingHandleEmptyReadsZero(t *testing.T) {
	node, _ := newTestNode(t)

	h, err := node.Open(false)
	require.NoError(t, err)
	defer h.Close()

	n, err := h.Read(make([]byte, testSlot))
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestClosedHandle(t *testing.T) {
	node, _ := newTestNode(t)

	h, err := node.Open(false)
	require.NoError(t, err)
	require.NoError(t, h.Close())
	require.NoError(t, h.Close(), "double close is a no-op")
	assert.Equal(t, 0, node.Refs())

	_, err = h.Read(make([]byte, testSlot))
	assert.ErrorIs(t, err, ErrClosed)
	_, err = h.Write([]byte("x"))
	assert.ErrorIs(t, err, ErrClosed)
}

func TestDetachRefusedWhileOpen(t *testing.T) {
	node, _ := newTestNode(t)

	h, err := node.Open(false)
	require.NoError(t, err)

	assert.ErrorIs(t, node.Detach(), ErrBusy)

	require.NoError(t, h.Close())
	require.NoError(t, node.Detach())

	// The session is gone; new opens must fail.
	_, err = node.Open(false)
	assert.ErrorIs(t, err, mbox.ErrSessionNotReady)
}
