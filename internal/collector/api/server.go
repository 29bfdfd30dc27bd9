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

// Package api implements the public-facing HTTP server for the batch
// collector. It accepts incoming items, routes them into the per-key
// accumulator via the core store, and exposes a scalar-only stats snapshot.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"keybatch"
	"keybatch/internal/collector/core"
	"keybatch/internal/collector/telemetry/flowstats"
)

// maxItemBytes bounds a single item payload to keep memory per push predictable.
const maxItemBytes = 1 << 20 // 1 MiB

// Server handles the HTTP requests for the collector service.
type Server struct {
	store *core.Store
}

// NewServer creates and configures a new API server around the given store.
func NewServer(store *core.Store) *Server {
	return &Server{store: store}
}

// RegisterRoutes sets up the HTTP routes for the server on the given ServeMux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/items", s.handlePushItem)
	mux.HandleFunc("/stats", s.handleStats)
}

// handlePushItem accepts one opaque item for a key. It is designed to be as
// fast as possible: read the body, push, answer 202. The batch contents are
// never echoed back; producers only see counts.
func (s *Server) handlePushItem(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	// 1. Identify the partition key. In a real system this could come from a
	// message attribute, a tenant id, or a routing header.
	key := r.URL.Query().Get("key")
	if key == "" {
		http.Error(w, "key is required", http.StatusBadRequest)
		return
	}

	// 2. Read the opaque payload. The accumulator never inspects it.
	body, err := io.ReadAll(io.LimitReader(r.Body, maxItemBytes+1))
	if err != nil {
		http.Error(w, "failed to read item body", http.StatusBadRequest)
		return
	}
	if len(body) == 0 {
		http.Error(w, "item body is required", http.StatusBadRequest)
		return
	}
	if len(body) > maxItemBytes {
		http.Error(w, "item body too large", http.StatusRequestEntityTooLarge)
		return
	}

	// 3. Route the item into the accumulator. This is a fast, in-memory
	// operation; the background worker handles the eventual bulk publish.
	item := core.Item{Payload: body, ReceivedAtUnixMs: time.Now().UnixMilli()}
	if err := s.store.Push(key, item); err != nil {
		if errors.Is(err, keybatch.ErrEmptyKey) {
			http.Error(w, "key is required", http.StatusBadRequest)
			return
		}
		http.Error(w, "failed to accept item", http.StatusInternalServerError)
		return
	}
	core.RecordPush(1)
	flowstats.ObservePush(key)

	// 4. Answer with counts only; batches stay private until extraction.
	w.Header().Set("X-Accumulated-Items", fmt.Sprintf("%d", s.store.AccumulatedItemCount(key)))
	w.WriteHeader(http.StatusAccepted)
}

// handleStats returns a JSON snapshot of the accumulator counters.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.store.Stats()); err != nil {
		http.Error(w, "failed to encode stats", http.StatusInternalServerError)
	}
}

// ListenAndServe starts the HTTP server on the specified address.
func (s *Server) ListenAndServe(addr string) error {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)

	httpServer := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	fmt.Printf("Collector API server listening on %s\n", addr)
	return httpServer.ListenAndServe()
}
