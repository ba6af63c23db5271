//go:build unix

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
	"path/filepath"
	"unsafe"

	"golang.org/x/sys/unix"
)

func init() {
	unmapMemory = munmapImpl
}

// CreateSegment creates and maps a new mailbox segment on the host side.
// The segment holds the control page followed by windowSize bytes of shared
// window; the window's read half must come out to slotSize, which is
// checked here so a bad geometry never reaches the filesystem.
func CreateSegment(name string, windowSize, slotSize int) (*Segment, error) {
	if windowSize-windowSize/2 != slotSize {
		return nil, fmt.Errorf("%w: window %d splits into a %d-byte read half, slot size is %d",
			ErrGeometryMismatch, windowSize, windowSize-windowSize/2, slotSize)
	}

	path := segmentPath(name)
	totalSize := ControlPageSize + windowSize

	file, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0600)
	if err != nil {
		return nil, fmt.Errorf("%w: create segment file %s: %v", ErrResourceUnavailable, path, err)
	}
	cleanup := func() {
		file.Close()
		os.Remove(path)
	}

	if err := file.Truncate(int64(totalSize)); err != nil {
		cleanup()
		return nil, fmt.Errorf("%w: resize segment file: %v", ErrResourceUnavailable, err)
	}

	mem, err := mmapFile(file, totalSize)
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("%w: %v", ErrResourceUnavailable, err)
	}

	seg := &Segment{
		File: file,
		Mem:  mem,
		Path: path,
		ctrl: &ctrlView{basePtr: unsafe.Pointer(&mem[0])},
	}

	var magic [8]byte
	copy(magic[:], SegmentMagic)
	seg.ctrl.SetMagic(magic)
	seg.ctrl.SetVersion(SegmentVersion)
	seg.ctrl.SetTotalSize(uint64(totalSize))
	seg.ctrl.SetSlotSize(uint32(slotSize))

	return seg, nil
}

// OpenSegment opens and maps an existing mailbox segment on the peer side,
// validating the control page before use.
func OpenSegment(name string) (*Segment, error) {
	path := segmentPath(name)

	file, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: open segment file %s: %v", ErrResourceUnavailable, path, err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("%w: stat segment file: %v", ErrResourceUnavailable, err)
	}
	size := int(info.Size())
	if size < ControlPageSize {
		file.Close()
		return nil, fmt.Errorf("%w: segment file too small: %d bytes", ErrResourceUnavailable, size)
	}

	mem, err := mmapFile(file, size)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("%w: %v", ErrResourceUnavailable, err)
	}

	ctrl := &ctrlView{basePtr: unsafe.Pointer(&mem[0])}
	if err := validateControl(ctrl, size); err != nil {
		munmapImpl(mem)
		file.Close()
		return nil, err
	}

	return &Segment{
		File: file,
		Mem:  mem,
		Path: path,
		ctrl: ctrl,
	}, nil
}

// RemoveSegment unlinks a segment file.
func RemoveSegment(name string) error {
	err := os.Remove(segmentPath(name))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	if os.IsNotExist(err) {
		return os.ErrNotExist
	}
	return nil
}

// SegmentExists reports whether a segment file exists.
func SegmentExists(name string) bool {
	_, err := os.Stat(segmentPath(name))
	return err == nil
}

// segmentPath places segments in /dev/shm when available, falling back to
// the temporary directory.
func segmentPath(name string) string {
	if info, err := os.Stat("/dev/shm"); err == nil && info.IsDir() {
		return filepath.Join("/dev/shm", "mbox_"+name)
	}
	return filepath.Join(os.TempDir(), "mbox_"+name)
}

func mmapFile(file *os.File, size int) ([]byte, error) {
	mem, err := unix.Mmap(int(file.Fd()), 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("mmap failed: %w", err)
	}
	return mem, nil
}

func munmapImpl(mem []byte) error {
	if len(mem) == 0 {
		return nil
	}
	if err := unix.Munmap(mem); err != nil {
		return fmt.Errorf("munmap failed: %w", err)
	}
	return nil
}
