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

package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"keybatch/internal/collector/core"
	"keybatch/internal/collector/publish"
	"keybatch/internal/sinks"
)

// metricPublisher wraps a core.Publisher to observe flush intervals and batch
// fill from the simulator's side, independent of the collector's own telemetry.
type metricPublisher struct {
	inner     core.Publisher
	batchSize int
	last      time.Time
	flushHist prometheus.Observer
	fillHist  prometheus.Observer
}

func (m *metricPublisher) PublishAll(extracted map[string][][]core.Item) error {
	if !m.last.IsZero() && m.flushHist != nil {
		m.flushHist.Observe(time.Since(m.last).Seconds())
	}
	m.last = time.Now()
	if m.fillHist != nil && m.batchSize > 0 {
		for _, batches := range extracted {
			for _, b := range batches {
				m.fillHist.Observe(float64(len(b)) / float64(m.batchSize))
			}
		}
	}
	return m.inner.PublishAll(extracted)
}

func (m *metricPublisher) PrintFinalSummary() { m.inner.PrintFinalSummary() }

func main() {
	// Overview:
	//   collector-sim is a synthetic traffic generator and soak tool for the
	//   keybatch pipeline. It produces a configurable, Zipf-skewed stream of
	//   items across many keys, routes them through the in-memory per-key
	//   accumulator and the background flush worker, and appends every
	//   published batch to a JSONL log. It exposes Prometheus metrics for
	//   batch fill and flush cadence, so you can validate batching gains and
	//   tune batch_size / flush_interval on your hardware.
	//
	// What to look for in metrics and logs:
	//   - sim_batch_fill_ratio: how full published batches are. Values near
	//     1.0 mean the batch size matches the traffic; a long low tail means
	//     flushes fire before batches fill.
	//   - sim_flush_interval_seconds: observed publish cadence.
	//   - Batch records in -batch_log (JSONL of BatchRecord).
	//
	// Usage (quick start):
	//   go run ./cmd/collector-sim -qps 20000 -keys 10000 -batch_size 64 \
	//       -flush 50ms -batch_log batches.jsonl -duration 30s
	//   - Observe metrics at GET /metrics (Prometheus exposition).

	batchSize := flag.Int("batch_size", 64, "Items per batch")
	flushEvery := flag.Duration("flush", 50*time.Millisecond, "Worker flush interval")
	batchLog := flag.String("batch_log", "batches.jsonl", "JSONL batch log path")
	httpAddr := flag.String("http", ":8080", "HTTP listen for /metrics")

	keys := flag.Int("keys", 1000, "Number of distinct keys")
	skew := flag.Float64("skew", 1.2, "Zipf skew exponent (>1); higher = hotter hot keys")
	qps := flag.Int("qps", 20000, "Target items per second")
	burst := flag.Int("burst", 1000, "Burst size for the generator")
	duration := flag.Duration("duration", 30*time.Second, "Run duration; 0 for forever")
	flag.Parse()

	if *keys <= 0 {
		*keys = 1000
	}
	if *qps <= 0 {
		*qps = 20000
	}
	if *burst <= 0 {
		*burst = 1000
	}
	if *skew <= 1 {
		*skew = 1.01
	}

	store, err := core.NewStore(*batchSize)
	if err != nil {
		log.Fatalf("invalid batch_size: %v", err)
	}

	// Metrics setup
	totalItems := prometheus.NewCounter(prometheus.CounterOpts{Name: "sim_items_total", Help: "Total items generated"})
	pushErrors := prometheus.NewCounter(prometheus.CounterOpts{Name: "sim_push_errors_total", Help: "Pushes rejected by the accumulator"})
	fillHist := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "sim_batch_fill_ratio",
		Help:    "Published batch length divided by batch_size",
		Buckets: []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0},
	})
	flushHist := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "sim_flush_interval_seconds",
		Help:    "Observed interval between publishes",
		Buckets: prometheus.DefBuckets,
	})
	prometheus.MustRegister(totalItems, pushErrors, fillHist, flushHist)

	// Sink + worker wiring
	fileSink, err := sinks.NewBatchFileSink(*batchLog)
	if err != nil {
		log.Fatalf("open batch log: %v", err)
	}
	publisher := &metricPublisher{
		inner:     publish.NewIdemShim(fileSink),
		batchSize: *batchSize,
		flushHist: flushHist,
		fillHist:  fillHist,
	}
	worker := core.NewWorker(store, publisher, *flushEvery, 0, 0)
	worker.Start()

	http.Handle("/metrics", promhttp.Handler())
	go func() {
		log.Printf("collector-sim listening on %s", *httpAddr)
		if err := http.ListenAndServe(*httpAddr, nil); err != nil {
			log.Fatalf("http: %v", err)
		}
	}()

	// Generator loop: Zipf-skewed keys at a bounded rate.
	stop := make(chan struct{})
	go func() {
		rng := rand.New(rand.NewSource(time.Now().UnixNano()))
		z := rand.NewZipf(rng, *skew, 1, uint64(*keys-1))
		interval := time.Second / time.Duration(*qps)
		if interval <= 0 {
			interval = time.Microsecond
		}
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		var seq uint64
		burstLeft := 0
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				burstLeft += *burst
				for burstLeft > 0 {
					burstLeft--
					seq++
					key := fmt.Sprintf("user:%d", z.Uint64())
					payload, _ := json.Marshal(map[string]uint64{"seq": seq})
					item := core.Item{Payload: payload, ReceivedAtUnixMs: time.Now().UnixMilli()}
					if err := store.Push(key, item); err != nil {
						pushErrors.Inc()
						continue
					}
					totalItems.Inc()
				}
			}
		}
	}()

	// Handle termination
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	var endTimer <-chan time.Time
	if *duration > 0 {
		endTimer = time.After(*duration)
	}
	select {
	case <-sigCh:
	case <-endTimer:
	}
	close(stop)

	// Final drain, then flush the sink before exit.
	worker.Stop()
	if err := fileSink.Close(); err != nil {
		log.Printf("close batch log: %v", err)
	}
	publisher.PrintFinalSummary()
}
