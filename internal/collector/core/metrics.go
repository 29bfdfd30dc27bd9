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

// Package core contains shared, process-level metrics counters used for the
// final end-of-process summary in the mock publisher. These are kept
// lightweight and use atomic counters to avoid allocation and locks on the
// hot path.
package core

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

var (
	pushed        atomic.Int64
	published     atomic.Int64
	publishErrors atomic.Int64

	// thresholds holds human-readable configuration values captured at runtime.
	thresholdsMu sync.RWMutex
	thresholds   = make(map[string]string)
)

// RecordPush increments the number of items accepted into the accumulator.
func RecordPush(n int64) {
	if n > 0 {
		pushed.Add(n)
	}
}

// RecordPublish increments the number of items handed to a publisher.
func RecordPublish(n int64) {
	if n > 0 {
		published.Add(n)
	}
}

// RecordPublishError increments the number of failed publish attempts.
func RecordPublishError(n int64) {
	if n > 0 {
		publishErrors.Add(n)
	}
}

// Threshold setters capture important runtime thresholds/config knobs for final printing.
func SetThreshold(name string, value string) {
	thresholdsMu.Lock()
	thresholds[name] = value
	thresholdsMu.Unlock()
}

func SetThresholdInt64(name string, v int64)            { SetThreshold(name, fmt.Sprintf("%d", v)) }
func SetThresholdDuration(name string, d time.Duration) { SetThreshold(name, d.String()) }
func SetThresholdBool(name string, b bool)              { SetThreshold(name, fmt.Sprintf("%t", b)) }
func SetThresholdFloat64(name string, f float64)        { SetThreshold(name, fmt.Sprintf("%g", f)) }

// getEventTotals provides a snapshot of current counters.
func getEventTotals() (pushedN, publishedN, errorsN int64) {
	return pushed.Load(), published.Load(), publishErrors.Load()
}

// getThresholdSnapshot returns a copy of thresholds for stable iteration/printing.
func getThresholdSnapshot() map[string]string {
	thresholdsMu.RLock()
	defer thresholdsMu.RUnlock()
	out := make(map[string]string, len(thresholds))
	for k, v := range thresholds {
		out[k] = v
	}
	return out
}

// resetEventTotals resets counters to zero. Intended for tests only.
func resetEventTotals() {
	pushed.Store(0)
	published.Store(0)
	publishErrors.Store(0)
}

// resetThresholdsForTests clears the thresholds registry. Intended for tests only.
func resetThresholdsForTests() {
	thresholdsMu.Lock()
	defer thresholdsMu.Unlock()
	for k := range thresholds {
		delete(thresholds, k)
	}
}
