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

package publish

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"time"

	"keybatch/internal/collector/core"
)

// IdemShim adapts an IdempotentPublisher to the core.Publisher interface used
// by the worker. It flattens one extraction harvest into BatchRecords (Seq
// assigned per key in batch order) and generates a DeliveryID for each.
//
// Note: In production, you should provide stable IDs across retries. This
// shim generates fresh random IDs per call, which is sufficient for the demo
// wiring and avoids introducing external dependencies.
type IdemShim struct {
	impl IdempotentPublisher
}

func NewIdemShim(impl IdempotentPublisher) *IdemShim { return &IdemShim{impl: impl} }

// PublishAll maps the extraction harvest to BatchRecords and forwards them to
// the idempotent publisher. Records for one key keep the accumulator's batch
// order via ascending Seq.
func (s *IdemShim) PublishAll(extracted map[string][][]core.Item) error {
	if len(extracted) == 0 {
		return nil
	}
	nowMs := time.Now().UnixMilli()
	var records []BatchRecord
	for key, batches := range extracted {
		for seq, batch := range batches {
			records = append(records, BatchRecord{
				Key:        key,
				Seq:        seq,
				Items:      batch,
				DeliveryID: randomID(),
				TsUnixMs:   nowMs,
			})
		}
	}
	return s.impl.PublishBatch(context.Background(), records)
}

// PrintFinalSummary is a no-op for the shim. The worker already tracks global
// counters via the core metrics; real adapters can hook their own summaries
// if desired.
func (s *IdemShim) PrintFinalSummary() {}

func randomID() string {
	var b [16]byte
	_, _ = rand.Read(b[:])
	dst := make([]byte, 32)
	hex.Encode(dst, b[:])
	return string(dst)
}
