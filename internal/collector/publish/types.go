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

// Package publish provides idempotent batch-publish adapters for Kafka,
// Redis, Postgres, and local files.
//
// These adapters share a common BatchRecord shape that includes an
// idempotency key (delivery_id). The goal is that if a batch delivery is
// retried (crash, timeout, duplicate delivery), applying it again is a no-op
// on the receiving side.
package publish

import (
	"context"

	"keybatch/internal/collector/core"
)

// BatchRecord is the adapter-facing shape for a single extracted batch.
//
// Fields:
//   - Key: the partition key the batch was accumulated under.
//   - Seq: the batch's index within its key for this harvest; consumers that
//     care about intra-key ordering apply records in ascending Seq.
//   - Items: the batch contents, in arrival order.
//   - DeliveryID: globally unique idempotency key for this batch. Re-using
//     the same id for a retried delivery makes the operation idempotent.
//
// Notes:
//   - Callers are responsible for generating stable DeliveryIDs across
//     retries. UUIDv4/ULID or a monotonic stream id per key are typical choices.
type BatchRecord struct {
	Key        string      `json:"key"`
	Seq        int         `json:"seq"`
	Items      []core.Item `json:"items"`
	DeliveryID string      `json:"delivery_id"`
	TsUnixMs   int64       `json:"ts_unix_ms"`
}

// IdempotentPublisher defines the minimal API supported by all adapters.
// Implementations must apply each record atomically with respect to its
// idempotency key; a duplicate DeliveryID must become a no-op.
//
// The method accepts a context to allow timeouts and cancellation.
// Implementations should strive to batch operations efficiently where
// backends support it, and must preserve ascending Seq order per Key within
// one call.
type IdempotentPublisher interface {
	PublishBatch(ctx context.Context, records []BatchRecord) error
}
