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
	"errors"
	"testing"
)

func TestSplitWindowGeometry(t *testing.T) {
	tests := []struct {
		name      string
		regionLen int
		slotSize  int
		wantErr   bool
		wantWrite int
	}{
		{name: "even region", regionLen: 4096, slotSize: 2048, wantWrite: 2048},
		{name: "odd region favors read half", regionLen: 4097, slotSize: 2049, wantWrite: 2048},
		{name: "read half too small", regionLen: 4094, slotSize: 2048, wantErr: true},
		{name: "read half too large", regionLen: 4098, slotSize: 2048, wantErr: true},
		{name: "empty region", regionLen: 0, slotSize: 2048, wantErr: true},
		{name: "zero slot size", regionLen: 4096, slotSize: 0, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			win, err := SplitWindow(make([]byte, tt.regionLen), tt.slotSize)
			if tt.wantErr {
				if !errors.Is(err, ErrGeometryMismatch) {
					t.Fatalf("expected ErrGeometryMismatch, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("SplitWindow failed: %v", err)
			}
			if win.WriteSize() != tt.wantWrite {
				t.Fatalf("write half: got %d, want %d", win.WriteSize(), tt.wantWrite)
			}
			if win.ReadSize() != tt.slotSize {
				t.Fatalf("read half: got %d, want slot size %d", win.ReadSize(), tt.slotSize)
			}
		})
	}
}

func TestWindowHalvesDoNotOverlap(t *testing.T) {
	region := make([]byte, 128)
	win, err := SplitWindow(region, 64)
	if err != nil {
		t.Fatalf("SplitWindow failed: %v", err)
	}

	for i := range win.WriteHalf() {
		win.WriteHalf()[i] = 0xAA
	}
	for _, b := range win.ReadHalf() {
		if b != 0 {
			t.Fatal("write half mutation leaked into read half")
		}
	}

	for i := range win.ReadHalf() {
		win.ReadHalf()[i] = 0x55
	}
	for _, b := range win.WriteHalf() {
		if b != 0xAA {
			t.Fatal("read half mutation leaked into write half")
		}
	}
}
