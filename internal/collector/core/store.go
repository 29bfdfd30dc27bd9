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

// Package core provides the core business logic for the batch collector
// service. This file wraps the single-threaded keybatch accumulator with the
// synchronization the service needs for concurrent producers.
package core

import (
	"encoding/json"
	"sync"

	"keybatch"
)

// Item is the opaque payload the collector accumulates. The accumulator never
// inspects it; ReceivedAtUnixMs exists only for downstream consumers.
type Item struct {
	Payload          json.RawMessage `json:"payload"`
	ReceivedAtUnixMs int64           `json:"received_at_unix_ms"`
}

// Stats is a scalar-only snapshot of accumulator state. It deliberately
// carries counts rather than batch contents: batches are observable only
// after extraction.
type Stats struct {
	ActiveKeys int            `json:"active_keys"`
	TotalItems int            `json:"total_items"`
	PerKey     map[string]int `json:"per_key"`
}

// Store owns the process-wide accumulator. The keybatch core is deliberately
// single-threaded, so the store serializes every operation behind a mutex;
// producers (HTTP handlers) and the flush worker share one instance safely.
type Store struct {
	mu        sync.Mutex
	acc       *keybatch.Accumulator[Item]
	batchSize int
}

// NewStore creates a store whose batches hold batchSize items each.
// batchSize follows keybatch.New validation: values below 1 are rejected.
func NewStore(batchSize int) (*Store, error) {
	acc, err := keybatch.New[Item](batchSize)
	if err != nil {
		return nil, err
	}
	return &Store{acc: acc, batchSize: batchSize}, nil
}

// BatchSize returns the fixed batch capacity this store was built with.
func (s *Store) BatchSize() int {
	return s.batchSize
}

// Push routes one item into the accumulator under key. Validation failures
// (empty key) come back verbatim from the core and mutate nothing.
func (s *Store) Push(key string, item Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.acc.Push(key, item)
}

// TotalItems returns the current accumulated item count across all keys.
func (s *Store) TotalItems() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.acc.TotalAccumulatedItemCount()
}

// AccumulatedItemCount returns the current item count for key, 0 if inactive.
func (s *Store) AccumulatedItemCount(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.acc.AccumulatedItemCount(key)
}

// ActiveKeyCount returns the number of keys currently holding items.
func (s *Store) ActiveKeyCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.acc.ActiveKeyCount()
}

// Stats returns a consistent snapshot of the counters for the /stats
// endpoint. PerKey is always non-nil so it serializes as {} when empty.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	perKey := make(map[string]int)
	for _, key := range s.acc.ActiveKeys() {
		perKey[key] = s.acc.AccumulatedItemCount(key)
	}
	return Stats{
		ActiveKeys: s.acc.ActiveKeyCount(),
		TotalItems: s.acc.TotalAccumulatedItemCount(),
		PerKey:     perKey,
	}
}

// ExtractAll atomically harvests every key's batches and resets the
// accumulator. The snapshot-and-reset happens under a single lock hold, so
// concurrent pushes land either wholly before or wholly after the harvest.
func (s *Store) ExtractAll() map[string][][]Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.acc.ExtractAll()
}
