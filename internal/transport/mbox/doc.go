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

// Package mbox implements a local mailbox transport between a host and an
// attached co-processor over a shared memory window plus a doorbell
// notification primitive.
//
// The shared region is split in half: the host writes outbound messages into
// the first half and the peer deposits inbound messages, always one full
// fixed-size slot at a time, into the second half. Inbound slots are copied
// into a bounded FIFO queue by the doorbell callback and drained by client
// reads; when the queue is full the oldest slot is dropped to admit the new
// one. Outbound writes are serialized and block on the doorbell send for a
// bounded time.
//
// The doorbell's own wire protocol is opaque to this package: any Notifier
// implementation can be attached. A futex-backed doorbell over the shared
// segment is provided on Linux, and an in-process loopback doorbell is
// provided for tests and demos.
package mbox
