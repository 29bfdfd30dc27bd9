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

// RedisEvaler abstracts the minimal surface we need from a Redis client.
// Implementations may wrap github.com/redis/go-redis/v9 (Cmdable.Eval) or any equivalent.
type RedisEvaler interface {
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) (interface{}, error)
}

// RedisPublisher appends batches idempotently using a Lua script:
// 1) SETNX delivery:<key>:<delivery_id> 1
// 2) If set -> RPUSH batches:<key> <payload>
// 3) EXPIRE the marker (TTL) for leak protection
// If SETNX fails (already delivered), returns OK and makes no changes, so a
// redelivered batch never appears twice in the list.
type RedisPublisher struct {
	client    RedisEvaler
	markerTTL time.Duration
}

// NewRedisPublisher returns a publisher with the given client and marker TTL.
// markerTTL guards against unbounded growth of delivery markers; choose a
// duration comfortably larger than your maximum retry window.
func NewRedisPublisher(client RedisEvaler, markerTTL time.Duration) *RedisPublisher {
	if markerTTL <= 0 {
		markerTTL = 24 * time.Hour
	}
	return &RedisPublisher{client: client, markerTTL: markerTTL}
}

// redisLuaScript performs the idempotent append. It returns 1 if applied, 0 if already applied.
const redisLuaScript = `
local listKey = KEYS[1]
local markerKey = KEYS[2]
local payload = ARGV[1]
local ttlSeconds = tonumber(ARGV[2])
-- try to set the idempotency marker
local set = redis.call('SETNX', markerKey, 1)
if set == 1 then
  -- append the batch; RPUSH preserves per-key batch order across calls
  redis.call('RPUSH', listKey, payload)
  if ttlSeconds and ttlSeconds > 0 then
    redis.call('EXPIRE', markerKey, ttlSeconds)
  end
  return 1
else
  -- already delivered; no-op
  return 0
end
`

// Keys layout helpers (public for interoperability with other components)
func RedisBatchListKey(key string) string { return fmt.Sprintf("batches:%s", key) }
func RedisDeliveryMarkerKey(key, deliveryID string) string {
	return fmt.Sprintf("delivery:%s:%s", key, deliveryID)
}

// PublishBatch applies records one EVAL at a time, in slice order, so a key's
// batches are RPUSHed in ascending Seq. Some clients support pipelining;
// callers can wrap batching externally if needed.
func (r *RedisPublisher) PublishBatch(ctx context.Context, records []BatchRecord) error {
	if len(records) == 0 {
		return nil
	}
	for _, rec := range records {
		if rec.DeliveryID == "" {
			return errors.New("BatchRecord.DeliveryID must be set")
		}
		payload, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("marshal redis payload: %w", err)
		}
		keys := []string{RedisBatchListKey(rec.Key), RedisDeliveryMarkerKey(rec.Key, rec.DeliveryID)}
		args := []interface{}{string(payload), int(r.markerTTL.Seconds())}
		if _, err := r.client.Eval(ctx, redisLuaScript, keys, args...); err != nil {
			return fmt.Errorf("redis eval key=%s delivery=%s: %w", rec.Key, rec.DeliveryID, err)
		}
	}
	return nil
}
