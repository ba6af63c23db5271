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
	"errors"
)

// ErrDoorbellClosed is returned by Ring after the doorbell has been stopped.
var ErrDoorbellClosed = errors.New("doorbell closed")

// Notifier is the doorbell channel boundary. The transport treats it as an
// opaque collaborator: Ring signals the peer that the write half of the
// window holds a fresh payload, and the handler registered via Start is
// invoked once per inbound ring, after the peer has deposited a full slot
// into the read half.
//
// Ring blocks until the peer has taken delivery or ctx expires; the
// underlying retry or acknowledgement protocol, if any, belongs to the
// implementation. The handler runs on the notifier's delivery goroutine and
// must not block.
type Notifier interface {
	// Ring signals the peer. It blocks up to the context deadline and
	// returns a non-nil error if delivery could not be confirmed in time.
	Ring(ctx context.Context) error

	// Start registers the inbound handler and begins delivering rings.
	// It must be called exactly once before any ring can be observed.
	Start(handler func()) error

	// Stop ends delivery and releases the channel. Ring fails afterwards.
	Stop() error
}
