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
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// KafkaProducer is a minimal abstraction over a Kafka client.
// Implementations should enable idempotent production and, ideally,
// transactions if your topology requires atomic multi-message writes.
//
// Requirements:
//   - Idempotent producer ON (enable.idempotence=true)
//   - Acks=all is recommended
//
// Note: We intentionally avoid importing a specific Kafka library.
type KafkaProducer interface {
	Produce(ctx context.Context, topic string, key []byte, value []byte, headers map[string]string) error
}

// KafkaPublisher publishes extracted batches as Kafka messages, one message
// per batch. The Kafka message key is the batch's partition key, so all of a
// key's batches land on the same Kafka partition and broker-side ordering
// matches the accumulator's intra-key batch order. The DeliveryID travels in
// a header; consumers must track last_applied_delivery_id per key and ignore
// duplicates.
type KafkaPublisher struct {
	producer       KafkaProducer
	topic          string
	defaultTimeout time.Duration
}

func NewKafkaPublisher(p KafkaProducer, topic string) *KafkaPublisher {
	return &KafkaPublisher{producer: p, topic: topic, defaultTimeout: 10 * time.Second}
}

func (k *KafkaPublisher) PublishBatch(ctx context.Context, records []BatchRecord) error {
	if len(records) == 0 {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if _, ok := ctx.Deadline(); !ok && k.defaultTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, k.defaultTimeout)
		defer cancel()
	}
	for _, rec := range records {
		if rec.DeliveryID == "" {
			return errors.New("BatchRecord.DeliveryID must be set")
		}
		b, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("marshal kafka message: %w", err)
		}
		headers := map[string]string{
			"content-type": "application/json",
			"delivery-id":  rec.DeliveryID,
		}
		if err := k.producer.Produce(ctx, k.topic, []byte(rec.Key), b, headers); err != nil {
			return fmt.Errorf("kafka produce key=%s delivery=%s: %w", rec.Key, rec.DeliveryID, err)
		}
	}
	return nil
}
