//go:build !unix

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

import "errors"

// Shared segments require a mmap-capable platform. On other platforms the
// in-memory transport (Attach over a plain byte slice with a loopback
// doorbell) is still available.

var errSegmentsUnsupported = errors.New("shared segments are not supported on this platform")

func CreateSegment(name string, windowSize, slotSize int) (*Segment, error) {
	return nil, errSegmentsUnsupported
}

func OpenSegment(name string) (*Segment, error) {
	return nil, errSegmentsUnsupported
}

func RemoveSegment(name string) error {
	return errSegmentsUnsupported
}

func SegmentExists(name string) bool {
	return false
}
