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
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Postgres schema (reference):
//
// CREATE TABLE IF NOT EXISTS key_batches (
//   delivery_id TEXT PRIMARY KEY,
//   key TEXT NOT NULL,
//   seq BIGINT NOT NULL,
//   items JSONB NOT NULL,
//   ts TIMESTAMPTZ NOT NULL DEFAULT now()
// );
// CREATE INDEX IF NOT EXISTS idx_key_batches_key_seq ON key_batches(key, seq);
//
// Idempotent insert per batch record:
//   INSERT INTO key_batches(delivery_id, key, seq, items)
//     VALUES ($1,$2,$3,$4)
//     ON CONFLICT (delivery_id) DO NOTHING;
//
// A redelivered record hits the conflict path and is skipped; the (key, seq)
// index lets bulk consumers read a key's batches back in accumulation order.

// PostgresPublisher inserts extracted batches idempotently using the pattern above.
type PostgresPublisher struct {
	db *sql.DB
	// Optional: per-call timeout fallback if ctx has no deadline
	defaultTimeout time.Duration
}

// NewPostgresPublisher creates a publisher over an open *sql.DB.
func NewPostgresPublisher(db *sql.DB) *PostgresPublisher {
	return &PostgresPublisher{db: db, defaultTimeout: 10 * time.Second}
}

// PublishBatch inserts the provided records within a single transaction.
// Each record remains idempotent: if the delivery_id already exists, its
// insert is skipped.
func (p *PostgresPublisher) PublishBatch(ctx context.Context, records []BatchRecord) error {
	if len(records) == 0 {
		return nil
	}
	if p.db == nil {
		return errors.New("postgres publisher has no database handle")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	// Provide a default timeout if caller didn't bound it.
	if _, ok := ctx.Deadline(); !ok && p.defaultTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.defaultTimeout)
		defer cancel()
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const insert = `INSERT INTO key_batches(delivery_id, key, seq, items)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (delivery_id) DO NOTHING`
	for _, rec := range records {
		if rec.DeliveryID == "" {
			return errors.New("BatchRecord.DeliveryID must be set")
		}
		items, err := json.Marshal(rec.Items)
		if err != nil {
			return fmt.Errorf("marshal items key=%s: %w", rec.Key, err)
		}
		if _, err := tx.ExecContext(ctx, insert, rec.DeliveryID, rec.Key, rec.Seq, items); err != nil {
			return fmt.Errorf("insert key=%s delivery=%s: %w", rec.Key, rec.DeliveryID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
