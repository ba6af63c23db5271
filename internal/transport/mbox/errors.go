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

// Attach errors. Both are fatal: the session never reaches Ready.
var (
	// ErrGeometryMismatch indicates the read half of the shared window does
	// not match the configured slot size. The host and peer disagree on the
	// protocol constants, so no traffic can flow.
	ErrGeometryMismatch = errors.New("read window size does not match slot size")

	// ErrResourceUnavailable indicates the shared region or the doorbell
	// channel could not be acquired.
	ErrResourceUnavailable = errors.New("shared region or doorbell unavailable")
)

// I/O errors. All are recoverable by the caller.
var (
	// ErrWouldBlock is returned by a non-blocking read on an empty queue.
	ErrWouldBlock = errors.New("no message available")

	// ErrTooLarge is returned by a write whose payload exceeds the write
	// half of the shared window. The window is not modified.
	ErrTooLarge = errors.New("payload exceeds write window")

	// ErrChannelFailure is returned when the doorbell send times out or the
	// channel reports failure. The payload remains in the write window but
	// delivery is at most once: the peer may or may not have observed it.
	ErrChannelFailure = errors.New("doorbell send failed")

	// ErrSessionNotReady is returned by reads and writes issued outside the
	// Ready lifecycle state.
	ErrSessionNotReady = errors.New("session not ready")
)
