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
// service. This file implements the recurring-task collaborator that drains
// the accumulator and drives the bulk publisher.
package core

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"keybatch/internal/collector/telemetry/flowstats"
)

// Worker periodically extracts all accumulated batches and hands them to the
// Publisher. The accumulator itself never schedules anything; this worker is
// the external collaborator that decides when a harvest happens.
type Worker struct {
	store     *Store
	publisher Publisher

	flushInterval time.Duration
	minItems      int
	maxAge        time.Duration

	// lastPublishAt is read/written only by the flush goroutine.
	lastPublishAt time.Time

	stopChan chan struct{}
	wg       sync.WaitGroup
	stopped  uint32
}

// NewWorker creates and configures the background flush worker.
//
// flushInterval: how often we consider draining the accumulator.
// minItems: low-volume gate. A scheduled flush is skipped while the total
//
//	accumulated count is below this value. Set 0 to drain on every tick.
//
// maxAge: freshness bound. If nothing has been published for this long and
//
//	items are pending, we drain even below the minItems gate. Set 0 to disable.
func NewWorker(store *Store, publisher Publisher, flushInterval time.Duration, minItems int, maxAge time.Duration) *Worker {
	return &Worker{
		store:         store,
		publisher:     publisher,
		flushInterval: flushInterval,
		minItems:      minItems,
		maxAge:        maxAge,
		lastPublishAt: time.Now(),
		stopChan:      make(chan struct{}),
	}
}

// Start launches the background flush goroutine.
func (w *Worker) Start() {
	fmt.Println("Starting background flush worker...")
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.flushLoop()
	}()
}

// Stop gracefully stops the worker. A final drain runs before Stop returns so
// sub-threshold remainders are not lost on shutdown.
func (w *Worker) Stop() {
	if !atomic.CompareAndSwapUint32(&w.stopped, 0, 1) {
		return
	}
	fmt.Println("Stopping background flush worker...")
	close(w.stopChan)
	w.wg.Wait()
}

// flushLoop drains the accumulator every flushInterval, honoring the
// minItems/maxAge gates, and performs a final unconditional drain on stop.
func (w *Worker) flushLoop() {
	ticker := time.NewTicker(w.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.runFlushCycle()
		case <-w.stopChan:
			w.runFinalFlush()
			return
		}
	}
}

// runFlushCycle performs one gated harvest-and-publish pass.
func (w *Worker) runFlushCycle() {
	total := w.store.TotalItems()
	if total == 0 {
		return
	}
	if w.minItems > 0 && total < w.minItems {
		// Below the volume gate; only a stale remainder overrides it.
		if w.maxAge <= 0 || time.Since(w.lastPublishAt) < w.maxAge {
			return
		}
	}
	w.publish(w.store.ExtractAll())
}

// runFinalFlush drains everything regardless of gates. It is intended for shutdown.
func (w *Worker) runFinalFlush() {
	extracted := w.store.ExtractAll()
	if len(extracted) == 0 {
		return
	}
	w.publish(extracted)
}

// publish forwards one harvest to the Publisher and updates counters.
// Extraction already transferred ownership, so a failed publish drops the
// harvest: delivery is at-most-once and failures are surfaced via metrics and
// the log rather than re-queued.
func (w *Worker) publish(extracted map[string][][]Item) {
	var items int
	var lengths []int
	for _, keyBatches := range extracted {
		for _, batch := range keyBatches {
			items += len(batch)
			lengths = append(lengths, len(batch))
		}
	}
	if len(lengths) == 0 {
		return
	}

	if err := w.publisher.PublishAll(extracted); err != nil {
		fmt.Printf("ERROR: Failed to publish harvest of %d batches: %v\n", len(lengths), err)
		RecordPublishError(1)
		flowstats.ObservePublishError(1)
		return
	}

	w.lastPublishAt = time.Now()
	RecordPublish(int64(items))
	flowstats.ObserveHarvest(lengths, w.store.BatchSize())
	flowstats.SetActiveKeys(w.store.ActiveKeyCount())
}
