// Copyright 2026 Esteban Alvarez. All Rights Reserved.
//
// Created: August 2026
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package keybatch

import (
	"errors"
	"fmt"
	"testing"
)

// TestAccumulator_Basics validates the foundational behavior of the accumulator.
// It covers:
//   - New: a valid batch size yields an empty accumulator; invalid sizes yield ErrInvalidBatchSize.
//   - Push: items land under their key; counts (per-key and total) track every push.
//   - Introspection: IsActiveKey/AccumulatedItemCount/ActiveKeyCount answer without error for unknown keys.
func TestAccumulator_Basics(t *testing.T) {
	t.Run("New", func(t *testing.T) {
		acc, err := New[string](3)
		if err != nil {
			t.Fatalf("New(3) unexpected error: %v", err)
		}
		if !acc.IsEmpty() || acc.ActiveKeyCount() != 0 || acc.TotalAccumulatedItemCount() != 0 {
			t.Errorf("fresh accumulator not empty: keys=%d total=%d", acc.ActiveKeyCount(), acc.TotalAccumulatedItemCount())
		}
	})

	t.Run("NewRejectsNonPositiveSizes", func(t *testing.T) {
		for _, size := range []int{0, -1, -2, -100} {
			acc, err := New[string](size)
			if !errors.Is(err, ErrInvalidBatchSize) {
				t.Errorf("New(%d) error = %v, want ErrInvalidBatchSize", size, err)
			}
			if acc != nil {
				t.Errorf("New(%d) returned a non-nil accumulator alongside the error", size)
			}
		}
	})

	t.Run("PushAndCounts", func(t *testing.T) {
		acc, _ := New[string](2)
		for _, p := range []struct{ key, item string }{
			{"x", "A"}, {"x", "B"}, {"y", "C"}, {"x", "D"},
		} {
			if err := acc.Push(p.key, p.item); err != nil {
				t.Fatalf("Push(%q, %q) unexpected error: %v", p.key, p.item, err)
			}
		}
		if got := acc.AccumulatedItemCount("x"); got != 3 {
			t.Errorf("AccumulatedItemCount(x) = %d, want 3", got)
		}
		if got := acc.AccumulatedItemCount("y"); got != 1 {
			t.Errorf("AccumulatedItemCount(y) = %d, want 1", got)
		}
		if got := acc.TotalAccumulatedItemCount(); got != 4 {
			t.Errorf("TotalAccumulatedItemCount = %d, want 4", got)
		}
		if got := acc.ActiveKeyCount(); got != 2 {
			t.Errorf("ActiveKeyCount = %d, want 2", got)
		}
		if acc.IsEmpty() {
			t.Error("IsEmpty() = true with items accumulated")
		}
	})

	t.Run("UnknownKeysAreTotal", func(t *testing.T) {
		acc, _ := New[int](5)
		if acc.IsActiveKey("never-seen") {
			t.Error("IsActiveKey(never-seen) = true, want false")
		}
		if got := acc.AccumulatedItemCount("never-seen"); got != 0 {
			t.Errorf("AccumulatedItemCount(never-seen) = %d, want 0", got)
		}
		// The empty key is a normal lookup, just never active.
		if acc.IsActiveKey("") {
			t.Error("IsActiveKey(\"\") = true, want false")
		}
	})
}

// TestAccumulator_PushEmptyKey verifies fail-fast validation on Push: an empty
// key is rejected with ErrEmptyKey and the rejection mutates nothing, not even
// the global counter.
func TestAccumulator_PushEmptyKey(t *testing.T) {
	acc, _ := New[string](3)
	_ = acc.Push("k", "seed")

	if err := acc.Push("", "dropped"); !errors.Is(err, ErrEmptyKey) {
		t.Fatalf("Push with empty key: error = %v, want ErrEmptyKey", err)
	}
	if got := acc.TotalAccumulatedItemCount(); got != 1 {
		t.Errorf("total after rejected push = %d, want 1 (state must be unchanged)", got)
	}
	if got := acc.ActiveKeyCount(); got != 1 {
		t.Errorf("active keys after rejected push = %d, want 1", got)
	}
}

// TestAccumulator_FixedSizeInvariant checks the batch-shape arithmetic across
// several (itemCount, batchSize) combinations: extraction yields ceil(n/b)
// batches, all full except a trailing partial of n mod b items (or a full
// batch when n divides evenly).
func TestAccumulator_FixedSizeInvariant(t *testing.T) {
	testCases := []struct {
		items     int
		batchSize int
	}{
		{1, 1}, {5, 1}, {1, 4}, {4, 4}, {5, 4}, {8, 4}, {9, 4}, {100, 7},
	}

	for _, tc := range testCases {
		t.Run(fmt.Sprintf("n=%d_b=%d", tc.items, tc.batchSize), func(t *testing.T) {
			acc, _ := New[int](tc.batchSize)
			for i := 0; i < tc.items; i++ {
				if err := acc.Push("k", i); err != nil {
					t.Fatalf("Push(%d): %v", i, err)
				}
			}

			batches := acc.ExtractAll()["k"]
			wantBatches := (tc.items + tc.batchSize - 1) / tc.batchSize
			if len(batches) != wantBatches {
				t.Fatalf("got %d batches, want ceil(%d/%d) = %d", len(batches), tc.items, tc.batchSize, wantBatches)
			}
			for i, b := range batches {
				want := tc.batchSize
				if i == len(batches)-1 {
					if rem := tc.items % tc.batchSize; rem != 0 {
						want = rem
					}
				}
				if len(b) != want {
					t.Errorf("batch %d has %d items, want %d", i, len(b), want)
				}
			}
		})
	}
}

// TestAccumulator_OrderPreservation verifies that concatenating the extracted
// batches for a key, in batch order, reproduces the exact push order of that
// key's items — with pushes to other keys interleaved throughout.
func TestAccumulator_OrderPreservation(t *testing.T) {
	acc, _ := New[int](3)
	const items = 20
	for i := 0; i < items; i++ {
		key := "even"
		if i%2 == 1 {
			key = "odd"
		}
		if err := acc.Push(key, i); err != nil {
			t.Fatalf("Push(%d): %v", i, err)
		}
	}

	extracted := acc.ExtractAll()
	for key, parity := range map[string]int{"even": 0, "odd": 1} {
		var flat []int
		for _, b := range extracted[key] {
			flat = append(flat, b...)
		}
		if len(flat) != items/2 {
			t.Fatalf("key %s: %d items extracted, want %d", key, len(flat), items/2)
		}
		for i, v := range flat {
			if want := 2*i + parity; v != want {
				t.Errorf("key %s: item %d = %d, want %d (push order must be preserved)", key, i, v, want)
			}
		}
	}
}

// TestAccumulator_AccountingConsistency verifies that after an arbitrary push
// sequence the incrementally-maintained total equals the sum of the per-key
// counts over ActiveKeys.
func TestAccumulator_AccountingConsistency(t *testing.T) {
	acc, _ := New[int](4)
	pushes := 0
	for k := 0; k < 7; k++ {
		key := fmt.Sprintf("key-%d", k)
		for i := 0; i <= k*3; i++ {
			if err := acc.Push(key, i); err != nil {
				t.Fatalf("Push: %v", err)
			}
			pushes++
		}
	}

	sum := 0
	for _, key := range acc.ActiveKeys() {
		sum += acc.AccumulatedItemCount(key)
	}
	if total := acc.TotalAccumulatedItemCount(); total != sum || total != pushes {
		t.Errorf("total=%d sum(per-key)=%d pushes=%d, all must be equal", total, sum, pushes)
	}
}

// TestAccumulator_ActiveKeysSnapshot ensures ActiveKeys returns a copy:
// mutating the returned slice must not disturb the accumulator.
func TestAccumulator_ActiveKeysSnapshot(t *testing.T) {
	acc, _ := New[string](2)
	_ = acc.Push("a", "1")
	_ = acc.Push("b", "2")

	keys := acc.ActiveKeys()
	if len(keys) != 2 {
		t.Fatalf("ActiveKeys returned %d keys, want 2", len(keys))
	}
	keys[0] = "clobbered"

	if !acc.IsActiveKey("a") || !acc.IsActiveKey("b") {
		t.Error("mutating the ActiveKeys snapshot affected accumulator state")
	}
}
