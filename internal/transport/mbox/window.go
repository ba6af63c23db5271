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

import "fmt"

// Window is the split view of the shared region: the host writes outbound
// payloads into the first half and the peer deposits inbound slots into the
// remainder. It is created once at attach and never resized.
type Window struct {
	region    []byte
	writeSize int
	readSize  int
}

// SplitWindow splits region into a write half of len(region)/2 bytes and a
// read half holding the remainder. The read half must be exactly slotSize
// bytes; a mismatch means the host and peer disagree on the slot size, which
// is reported here at attach time rather than as a confusing transfer
// failure later.
func SplitWindow(region []byte, slotSize int) (*Window, error) {
	if slotSize <= 0 {
		return nil, fmt.Errorf("%w: invalid slot size %d", ErrGeometryMismatch, slotSize)
	}
	writeSize := len(region) / 2
	readSize := len(region) - writeSize
	if readSize != slotSize {
		return nil, fmt.Errorf("%w: read half is %d bytes, slot size is %d",
			ErrGeometryMismatch, readSize, slotSize)
	}
	return &Window{
		region:    region,
		writeSize: writeSize,
		readSize:  readSize,
	}, nil
}

// WriteHalf returns the outbound half of the window. Callers must hold the
// session's write lock while touching it.
func (w *Window) WriteHalf() []byte {
	return w.region[:w.writeSize]
}

// ReadHalf returns the inbound half of the window. It is accessed only from
// the doorbell callback.
func (w *Window) ReadHalf() []byte {
	return w.region[w.writeSize:]
}

// WriteSize returns the capacity of the write half in bytes.
func (w *Window) WriteSize() int {
	return w.writeSize
}

// ReadSize returns the size of the read half, which equals the slot size.
func (w *Window) ReadSize() int {
	return w.readSize
}
