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

// Package core provides the core business logic for the batch collector service.
package core

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// Publisher is the interface for any bulk-consuming backend. The worker hands
// it the full per-key harvest of one extraction; implementations perform the
// grouped bulk operation (network publish, bulk write, file append).
//
// Intra-key batch order in the map values matches the arrival order of the
// items; implementations that care about ordering must publish each key's
// batches in slice order.
type Publisher interface {
	PublishAll(extracted map[string][][]Item) error
	// PrintFinalSummary prints a single, end-of-process summary of publish
	// metrics. Implementations should ensure this is safe to call after all
	// publishing is done.
	PrintFinalSummary()
}

// NewMockPublisher creates a simple publisher that prints batches to the
// console. This is used for demonstration purposes.
func NewMockPublisher() Publisher {
	return &mockPublisher{}
}

type mockPublisher struct {
	mu           sync.Mutex
	totalItems   int64
	totalBatches int64
	totalFlushes int64
}

// PublishAll simulates a grouped bulk publish of one extraction harvest.
func (p *mockPublisher) PublishAll(extracted map[string][][]Item) error {
	if len(extracted) == 0 {
		return nil
	}

	// Sort keys for stable demo output; the accumulator itself makes no
	// cross-key ordering promise.
	keys := make([]string, 0, len(extracted))
	for k := range extracted {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var items, batches int64
	fmt.Printf("[%s] Publishing harvest of %d keys...\n", time.Now().Format(time.RFC3339), len(keys))
	for _, key := range keys {
		for i, batch := range extracted[key] {
			fmt.Printf("  - KEY: %-20s BATCH: %d/%d ITEMS: %d\n", key, i+1, len(extracted[key]), len(batch))
			items += int64(len(batch))
			batches++
		}
	}

	p.mu.Lock()
	p.totalItems += items
	p.totalBatches += batches
	p.totalFlushes++
	p.mu.Unlock()
	return nil
}

// PrintFinalSummary prints a single yellow summary once at the end of the process.
func (p *mockPublisher) PrintFinalSummary() {
	p.mu.Lock()
	totalItems := p.totalItems
	totalBatches := p.totalBatches
	totalFlushes := p.totalFlushes
	p.mu.Unlock()

	pushedN, publishedN, errorsN := getEventTotals()
	th := getThresholdSnapshot()
	names := make([]string, 0, len(th))
	for k := range th {
		names = append(names, k)
	}
	sort.Strings(names)

	yellow := "\x1b[33m"
	reset := "\x1b[0m"
	now := time.Now().Format(time.RFC3339)

	var fillStr string
	if totalBatches > 0 {
		fillStr = fmt.Sprintf("%.1f", float64(totalItems)/float64(totalBatches))
	} else {
		fillStr = "n/a"
	}

	sep := strings.Repeat("-", 60)
	fmt.Printf("%s[%s] Final publish metrics\n", yellow, now)
	fmt.Println(sep)
	fmt.Printf("%-18s %12s\n", "Metric", "Value")
	fmt.Println(sep)
	fmt.Printf("%-18s %12d\n", "Pushed", pushedN)
	fmt.Printf("%-18s %12d\n", "Published", publishedN)
	fmt.Printf("%-18s %12d\n", "Publish errors", errorsN)
	fmt.Printf("%-18s %12d\n", "Batches", totalBatches)
	fmt.Printf("%-18s %12d\n", "Flush cycles", totalFlushes)
	fmt.Printf("%-18s %12s\n", "Items per batch", fillStr)
	fmt.Println(sep)

	if len(names) > 0 {
		fmt.Printf("Configured thresholds\n")
		fmt.Println(sep)
		fmt.Printf("%-30s %24s\n", "Name", "Value")
		fmt.Println(sep)
		for _, k := range names {
			fmt.Printf("%-30s %24s\n", k, th[k])
		}
		fmt.Println(sep)
	}

	fmt.Println("Pending items: sub-threshold remainders are flushed on graceful shutdown; abrupt termination may leave some in-memory until next start.")
	fmt.Print(reset)
}
