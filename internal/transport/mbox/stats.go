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

import "sync/atomic"

// stats holds the session's diagnostic counters. All fields are updated
// atomically; the inbound counters are bumped from the doorbell callback.
type stats struct {
	slotsReceived atomic.Uint64
	overflowDrops atomic.Uint64
	reads         atomic.Uint64
	emptyReads    atomic.Uint64
	writes        atomic.Uint64
	writeRejects  atomic.Uint64
	sendFailures  atomic.Uint64
}

// StatsSnapshot is a point-in-time copy of a session's counters.
type StatsSnapshot struct {
	SlotsReceived uint64 // inbound slots copied into the queue
	OverflowDrops uint64 // oldest slots evicted by the drop-oldest policy
	Reads         uint64 // reads that returned a slot
	EmptyReads    uint64 // blocking-mode reads that found the queue empty
	Writes        uint64 // writes acknowledged by the doorbell
	WriteRejects  uint64 // writes rejected as too large
	SendFailures  uint64 // doorbell sends that timed out or failed
}

func (s *stats) snapshot() StatsSnapshot {
	return StatsSnapshot{
		SlotsReceived: s.slotsReceived.Load(),
		OverflowDrops: s.overflowDrops.Load(),
		Reads:         s.reads.Load(),
		EmptyReads:    s.emptyReads.Load(),
		Writes:        s.writes.Load(),
		WriteRejects:  s.writeRejects.Load(),
		SendFailures:  s.sendFailures.Load(),
	}
}
