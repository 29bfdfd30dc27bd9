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

// Package main provides the entry point for the keybatch Collector Demo
// Application.
//
// This application serves as a concrete, runnable demonstration of the core
// keybatch library. Producers POST items tagged with a partition key; the
// accumulator groups each key's items into fixed-size, order-preserving
// batches in memory; and a background worker periodically extracts the whole
// harvest and hands it to a pluggable bulk publisher (console, Redis, Kafka,
// or a JSONL file).
//
// This file is responsible for orchestrating the entire service:
// 1. Initializing the core components (Store, Worker, Publisher).
// 2. Starting the background flush worker.
// 3. Starting the API server to handle live traffic.
// 4. Managing graceful shutdown so pending items drain before exit.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"keybatch/internal/collector/api"
	"keybatch/internal/collector/core"
	"keybatch/internal/collector/publish"
	"keybatch/internal/collector/telemetry/flowstats"
	"keybatch/internal/sinks"
)

func main() {
	// 1. Parse configuration flags (these double as production-ready knobs).
	// - batch_size: fixed per-batch item capacity, shared by all keys
	// - flush_interval: how often the worker considers draining the accumulator
	// - flush_min_items: volume gate; a tick is skipped below this total (0 = drain every tick)
	// - flush_max_age: freshness bound that overrides the volume gate for stale remainders
	// - publisher: which bulk backend receives the harvests
	batchSize := flag.Int("batch_size", 50, "Items per batch; every key's batches hold exactly this many items except a trailing partial")
	flushInterval := flag.Duration("flush_interval", 500*time.Millisecond, "How often the background worker considers draining the accumulator")
	flushMinItems := flag.Int("flush_min_items", 0, "Skip a scheduled drain while fewer than this many items are accumulated in total. Set 0 to drain on every tick.")
	flushMaxAge := flag.Duration("flush_max_age", 0, "Freshness bound. If nothing has been published for this long and items are pending, drain even below flush_min_items. Set 0 to disable.")
	httpAddr := flag.String("http_addr", ":8080", "HTTP listen address (e.g., :8080)")
	publisherSel := flag.String("publisher", "mock", "Publish adapter: mock|redis|kafka|file")
	redisAddr := flag.String("redis_addr", "", "Redis address for the redis adapter (empty = logging demo client)")
	redisMarkerTTL := flag.Duration("redis_marker_ttl", 24*time.Hour, "TTL for Redis delivery markers (idempotency window)")
	kafkaTopic := flag.String("kafka_topic", "keybatch-batches", "Kafka topic for the kafka adapter")
	batchLog := flag.String("batch_log", "batches.jsonl", "Path of the JSONL batch log for the file adapter")
	// Telemetry flags (opt-in)
	flowEnabled := flag.Bool("flow_metrics", false, "Enable in-process flow telemetry (opt-in)")
	metricsAddr := flag.String("metrics_addr", "", "If non-empty, expose Prometheus /metrics on this address (e.g., :9090)")
	sampleRate := flag.Float64("flow_sample", 1.0, "Deterministic per-key sampling rate for flow telemetry (0..1)")
	logInterval := flag.Duration("flow_log_interval", 15*time.Second, "If > 0, periodically log a flow summary. 0 disables.")
	topN := flag.Int("flow_top_n", 50, "Top N keys by item volume to include in logs when flow_log_interval > 0")
	keyHashLen := flag.Int("flow_key_hash_len", 8, "Number of hex chars to log for anonymized key hashes")
	flag.Parse()

	// Capture thresholds/configuration for final metrics printing.
	core.SetThresholdInt64("batch_size", int64(*batchSize))
	core.SetThresholdDuration("flush_interval", *flushInterval)
	core.SetThresholdInt64("flush_min_items", int64(*flushMinItems))
	core.SetThresholdDuration("flush_max_age", *flushMaxAge)
	core.SetThreshold("http_addr", *httpAddr)
	core.SetThreshold("publisher", *publisherSel)
	core.SetThresholdBool("flow_metrics", *flowEnabled)
	core.SetThreshold("metrics_addr", *metricsAddr)
	core.SetThresholdFloat64("flow_sample", *sampleRate)
	core.SetThresholdDuration("flow_log_interval", *logInterval)
	core.SetThresholdInt64("flow_top_n", int64(*topN))
	core.SetThresholdInt64("flow_key_hash_len", int64(*keyHashLen))

	// Initialize flow telemetry (no-op if disabled).
	flowstats.Enable(flowstats.Config{
		Enabled:     *flowEnabled,
		SampleRate:  *sampleRate,
		MetricsAddr: *metricsAddr,
		LogInterval: *logInterval,
		TopN:        *topN,
		KeyHashLen:  *keyHashLen,
	})

	// 2. Initialize core components.
	store, err := core.NewStore(*batchSize)
	if err != nil {
		log.Fatalf("Invalid batch_size: %v", err)
	}

	var publisher core.Publisher
	var fileSink *sinks.BatchFileSink
	if *publisherSel == "file" {
		// The file target lives outside the publish package; wire it here.
		fileSink, err = sinks.NewBatchFileSink(*batchLog)
		if err != nil {
			log.Fatalf("Could not open batch log %s: %v", *batchLog, err)
		}
		publisher = publish.NewIdemShim(fileSink)
	} else {
		publisher, err = publish.BuildPublisher(*publisherSel, publish.DemoOptions{
			RedisMarkerTTL: *redisMarkerTTL,
			RedisAddr:      *redisAddr,
			KafkaTopic:     *kafkaTopic,
		})
		if err != nil {
			log.Fatalf("Could not build publisher: %v", err)
		}
	}

	// 3. Create and start the background worker. The worker is the recurring
	// collaborator that drains the accumulator and drives the bulk publisher.
	worker := core.NewWorker(store, publisher, *flushInterval, *flushMinItems, *flushMaxAge)
	worker.Start()

	// 4. Set up the HTTP server and routes. We configure the http.Server here
	// in main so graceful shutdown stays in one place.
	apiServer := api.NewServer(store)
	mux := http.NewServeMux()
	apiServer.RegisterRoutes(mux)
	httpServer := &http.Server{
		Addr:    *httpAddr,
		Handler: mux,
	}

	// 5. Start the HTTP server in a separate goroutine so it doesn't block.
	go func() {
		fmt.Printf("Collector API server listening on %s\n", *httpAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Could not listen on %s: %v\n", *httpAddr, err)
		}
	}()

	// 6. Wait here for an OS signal.
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	fmt.Println("\nShutting down server...")

	// 7. Stop the background worker first. This triggers a final drain so any
	// sub-threshold remainders are published before exit.
	worker.Stop()

	if fileSink != nil {
		if err := fileSink.Close(); err != nil {
			fmt.Printf("ERROR: Failed to close batch log: %v\n", err)
		}
	}

	// Print a single end-of-process publish summary.
	publisher.PrintFinalSummary()

	// 8. Now, gracefully shut down the HTTP server with a timeout.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Fatalf("Server shutdown failed: %v", err)
	}

	fmt.Println("Server gracefully stopped.")
}
