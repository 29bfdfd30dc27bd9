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

// Package keybatch provides an in-memory, per-key batching accumulator. It
// partitions an incoming stream of items by string key and groups each key's
// items into fixed-size, order-preserving batches, built incrementally as
// items arrive. It is designed to sit between an item-producing layer and a
// bulk-consuming layer, so the latter can operate on ready-made equal-size
// groups per key.
//
// The accumulator is deliberately single-threaded: no locking, no I/O, no
// blocking. Callers that share an instance across goroutines must provide
// their own synchronization (see internal/collector/core for the service-side
// wrapper that does exactly that).
package keybatch

import "errors"

// Validation errors. Both are raised synchronously with no partial mutation:
// a failed call leaves the accumulator exactly as it was.
var (
	// ErrInvalidBatchSize is returned by New when batchSize is not >= 1.
	ErrInvalidBatchSize = errors.New("keybatch: batch size must be a positive integer")

	// ErrEmptyKey is returned by Push when the key is the empty string.
	ErrEmptyKey = errors.New("keybatch: key must be a non-empty string")
)

// batchBuilder holds and grows the ordered batch sequence for a single key.
//
// Invariant: every batch except the last has length exactly batchSize; the
// last batch has length in [1, batchSize]. Items within a key preserve strict
// arrival order.
type batchBuilder[T any] struct {
	batchSize int
	batches   [][]T
	count     int
}

// push appends item to the open batch, starting a fresh batch when none
// exists or the last one is full. Amortized O(1).
func (b *batchBuilder[T]) push(item T) {
	if len(b.batches) == 0 || len(b.batches[len(b.batches)-1]) == b.batchSize {
		b.batches = append(b.batches, make([]T, 0, b.batchSize))
	}
	last := len(b.batches) - 1
	b.batches[last] = append(b.batches[last], item)
	b.count++
}

// extract hands off the full batch sequence to the caller. The builder is
// spent afterward; the parent accumulator discards it.
func (b *batchBuilder[T]) extract() [][]T {
	out := b.batches
	b.batches = nil
	b.count = 0
	return out
}

// Accumulator routes items into per-key batch builders and tracks aggregate
// state. A key is "active" iff it currently holds at least one accumulated
// item; builders are created lazily on first Push for a key and removed only
// by ExtractAll.
//
// No method exposes a live view into an in-progress batch. All inspection
// before extraction is scalar-valued (counts, booleans), so external code can
// never append past batchSize and break the fixed-size invariant. Batch
// contents become observable only after ExtractAll transfers ownership.
type Accumulator[T any] struct {
	batchSize int
	builders  map[string]*batchBuilder[T]
	// total is maintained incrementally on every Push so the aggregate count
	// stays O(1) instead of a summation over active keys.
	total int
}

// New creates an accumulator whose batches hold exactly batchSize items each
// (except a key's trailing partial batch). batchSize is validated once here,
// not per push; values below 1 yield ErrInvalidBatchSize and no instance.
func New[T any](batchSize int) (*Accumulator[T], error) {
	if batchSize < 1 {
		return nil, ErrInvalidBatchSize
	}
	return &Accumulator[T]{
		batchSize: batchSize,
		builders:  make(map[string]*batchBuilder[T]),
	}, nil
}

// Push routes item into the batch builder for key, creating the builder on
// first sight of the key. Returns ErrEmptyKey for "" before any state is
// touched.
func (a *Accumulator[T]) Push(key string, item T) error {
	if key == "" {
		return ErrEmptyKey
	}
	b, ok := a.builders[key]
	if !ok {
		b = &batchBuilder[T]{batchSize: a.batchSize}
		a.builders[key] = b
	}
	b.push(item)
	a.total++
	return nil
}

// BatchSize returns the fixed batch capacity set at construction.
func (a *Accumulator[T]) BatchSize() int {
	return a.batchSize
}

// IsActiveKey reports whether key currently holds accumulated items. A key
// never seen (or already extracted) simply reports false.
func (a *Accumulator[T]) IsActiveKey(key string) bool {
	_, ok := a.builders[key]
	return ok
}

// AccumulatedItemCount returns the number of items currently accumulated for
// key, or 0 when the key is not active. Never fails for unknown keys.
func (a *Accumulator[T]) AccumulatedItemCount(key string) int {
	b, ok := a.builders[key]
	if !ok {
		return 0
	}
	return b.count
}

// ActiveKeyCount returns the number of active keys. O(1).
func (a *Accumulator[T]) ActiveKeyCount() int {
	return len(a.builders)
}

// ActiveKeys returns a snapshot copy of the active keys. Order is
// unspecified.
func (a *Accumulator[T]) ActiveKeys() []string {
	keys := make([]string, 0, len(a.builders))
	for k := range a.builders {
		keys = append(keys, k)
	}
	return keys
}

// TotalAccumulatedItemCount returns the total number of items accumulated
// across all active keys. O(1).
func (a *Accumulator[T]) TotalAccumulatedItemCount() int {
	return a.total
}

// IsEmpty reports whether no key is active.
func (a *Accumulator[T]) IsEmpty() bool {
	return len(a.builders) == 0
}

// ExtractAll harvests every active key's batch sequence into a fresh map and
// resets the accumulator to empty in one step: after it returns, the caller
// exclusively owns the returned batches and the accumulator retains no
// reference to them. Extraction is all-or-nothing across keys; there is no
// per-key extraction path.
//
// Calling ExtractAll on an empty accumulator returns a distinct empty map,
// never nil.
func (a *Accumulator[T]) ExtractAll() map[string][][]T {
	out := make(map[string][][]T, len(a.builders))
	for key, b := range a.builders {
		out[key] = b.extract()
	}
	a.builders = make(map[string]*batchBuilder[T])
	a.total = 0
	return out
}
