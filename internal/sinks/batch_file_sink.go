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

package sinks

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"sync"
	"time"

	"keybatch/internal/collector/publish"
)

// BatchFileSink is a buffered JSONL sink for extracted batch records. It is
// safe for concurrent use and optimized for append-only workloads. It
// implements publish.IdempotentPublisher, so it can back the "file" target of
// the collector; dedup on replay is the reader's job (delivery_id is in every
// line).
type BatchFileSink struct {
	mu   sync.Mutex
	f    *os.File
	w    *bufio.Writer
	path string

	lastFlush time.Time
}

// NewBatchFileSink opens (or creates) the file at path in append mode with
// a buffered writer. Call Close() when done.
func NewBatchFileSink(path string) (*BatchFileSink, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	s := &BatchFileSink{f: f, w: bufio.NewWriterSize(f, 1<<20 /*1MiB*/), path: path, lastFlush: time.Now()}
	return s, nil
}

// PublishBatch writes the records as JSON lines, in slice order, so a key's
// batches appear in the log in ascending Seq.
func (s *BatchFileSink) PublishBatch(ctx context.Context, records []publish.BatchRecord) error {
	if len(records) == 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	enc := json.NewEncoder(s.w)
	for _, rec := range records {
		if err := enc.Encode(&rec); err != nil {
			// best effort: on error, try to flush and retry once
			_ = s.w.Flush()
			if err := enc.Encode(&rec); err != nil {
				return err
			}
		}
	}
	// Flush periodically to bound data loss on crash.
	if time.Since(s.lastFlush) > 100*time.Millisecond {
		_ = s.w.Flush()
		s.lastFlush = time.Now()
	}
	return nil
}

// Flush forces buffered data to be written to disk.
func (s *BatchFileSink) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastFlush = time.Now()
	return s.w.Flush()
}

// Close flushes and closes the underlying file.
func (s *BatchFileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.w.Flush()
	return s.f.Close()
}

// ReadAllBatchLog reads the entire batch log file as a slice. Intended for
// demo/replay; callers dedup by DeliveryID when a run may have retried.
func ReadAllBatchLog(path string) ([]publish.BatchRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var out []publish.BatchRecord
	scanner := bufio.NewScanner(f)
	buf := make([]byte, 0, 1<<20)
	scanner.Buffer(buf, 1<<26)
	for scanner.Scan() {
		var rec publish.BatchRecord
		if err := json.Unmarshal(scanner.Bytes(), &rec); err == nil {
			out = append(out, rec)
		}
	}
	return out, scanner.Err()
}
