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
	"os"
	"sync/atomic"
	"unsafe"
)

// Segment layout constants.
const (
	// SegmentMagic identifies a mailbox segment file.
	SegmentMagic = "MBOXSEG\x00"

	// SegmentVersion is the current control page version.
	SegmentVersion = uint32(1)

	// ControlPageSize is the size of the control page preceding the shared
	// window, aligned to 64 bytes.
	ControlPageSize = 64
)

// controlPage is the segment's control page. The doorbell sequence words
// are futex targets on Linux and are always accessed atomically.
type controlPage struct {
	magic     [8]byte  // 0x00: "MBOXSEG\0"
	version   uint32   // 0x08: control page version
	flags     uint32   // 0x0C: bit 0 = closed
	totalSize uint64   // 0x10: total segment size including control page
	slotSize  uint32   // 0x18: fixed inbound message size
	hostRing  uint32   // 0x1C: host->peer ring sequence
	hostAck   uint32   // 0x20: peer acknowledgement of host rings
	peerRing  uint32   // 0x24: peer->host ring sequence
	reserved  [24]byte // 0x28-0x3F: padding to 64B
}

const flagClosed = uint32(1)

// ctrlView provides typed access to the control page of a mapped segment.
type ctrlView struct {
	basePtr unsafe.Pointer
}

func (c *ctrlView) page() *controlPage {
	return (*controlPage)(c.basePtr)
}

// Magic returns the magic bytes.
func (c *ctrlView) Magic() [8]byte {
	return c.page().magic
}

// SetMagic sets the magic bytes.
func (c *ctrlView) SetMagic(magic [8]byte) {
	c.page().magic = magic
}

// Version returns the control page version.
func (c *ctrlView) Version() uint32 {
	return atomic.LoadUint32(&c.page().version)
}

// SetVersion sets the control page version.
func (c *ctrlView) SetVersion(v uint32) {
	atomic.StoreUint32(&c.page().version, v)
}

// TotalSize returns the total segment size including the control page.
func (c *ctrlView) TotalSize() uint64 {
	return atomic.LoadUint64(&c.page().totalSize)
}

// SetTotalSize sets the total segment size.
func (c *ctrlView) SetTotalSize(size uint64) {
	atomic.StoreUint64(&c.page().totalSize, size)
}

// SlotSize returns the fixed inbound message size recorded in the segment.
func (c *ctrlView) SlotSize() uint32 {
	return atomic.LoadUint32(&c.page().slotSize)
}

// SetSlotSize sets the fixed inbound message size.
func (c *ctrlView) SetSlotSize(size uint32) {
	atomic.StoreUint32(&c.page().slotSize, size)
}

// Closed returns the closed flag.
func (c *ctrlView) Closed() bool {
	return atomic.LoadUint32(&c.page().flags)&flagClosed != 0
}

// SetClosed marks the segment closed.
func (c *ctrlView) SetClosed() {
	atomic.OrUint32(&c.page().flags, flagClosed)
}

// Doorbell word accessors; the words double as futex targets.

func (c *ctrlView) hostRingWord() *uint32 {
	return &c.page().hostRing
}

func (c *ctrlView) hostAckWord() *uint32 {
	return &c.page().hostAck
}

func (c *ctrlView) peerRingWord() *uint32 {
	return &c.page().peerRing
}

// validateControl checks a mapped control page for consistency against the
// opener's expectations. A slot size disagreement is a geometry mismatch;
// anything else means the segment is unusable.
func validateControl(c *ctrlView, mappedSize int) error {
	magic := c.Magic()
	if string(magic[:]) != SegmentMagic {
		return fmt.Errorf("%w: bad segment magic", ErrResourceUnavailable)
	}
	if c.Version() != SegmentVersion {
		return fmt.Errorf("%w: unsupported segment version %d", ErrResourceUnavailable, c.Version())
	}
	if c.TotalSize() != uint64(mappedSize) {
		return fmt.Errorf("%w: segment size mismatch: header %d, mapped %d",
			ErrResourceUnavailable, c.TotalSize(), mappedSize)
	}
	if c.Closed() {
		return fmt.Errorf("%w: segment is closed", ErrResourceUnavailable)
	}
	return nil
}

// Segment is a mapped mailbox segment: a 64-byte control page followed by
// the shared window region. The host creates it and the peer opens it.
type Segment struct {
	File *os.File
	Mem  []byte
	Path string
	ctrl *ctrlView
}

// Window returns the shared window region after the control page. This is
// the region handed to SplitWindow at attach.
func (s *Segment) Window() []byte {
	return s.Mem[ControlPageSize:]
}

// SlotSize returns the slot size recorded in the control page.
func (s *Segment) SlotSize() int {
	return int(s.ctrl.SlotSize())
}

// Version returns the control page version.
func (s *Segment) Version() uint32 {
	return s.ctrl.Version()
}

// TotalSize returns the total segment size recorded in the control page.
func (s *Segment) TotalSize() uint64 {
	return s.ctrl.TotalSize()
}

// Closed reports whether the segment has been marked closed.
func (s *Segment) Closed() bool {
	return s.ctrl.Closed()
}

// MarkClosed sets the closed flag so the other side's doorbell loops and
// any later OpenSegment observe the teardown. The segment owner calls this
// before Close; read-only inspectors must not.
func (s *Segment) MarkClosed() {
	s.ctrl.SetClosed()
}

// Close unmaps the memory and closes the file. The file itself is not
// unlinked; RemoveSegment does that.
func (s *Segment) Close() error {
	var firstErr error

	if s.Mem != nil {
		if err := unmapMemory(s.Mem); err != nil {
			firstErr = err
		}
		s.Mem = nil
	}
	if s.File != nil {
		if err := s.File.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		s.File = nil
	}
	return firstErr
}

// unmapMemory is set by the platform-specific file.
var unmapMemory func([]byte) error
