package flowstats

import (
	"encoding/hex"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

type point struct {
	ts      time.Time
	pushed  int64
	batches int64
	items   int64
	cap     int64
}

// Internal aggregates and exporter loop

type keyAgg struct {
	items      atomic.Int64 // items pushed under this key (sampled)
	lastUpdate atomic.Int64 // unix nano
}

var (
	agg sync.Map // map[uint64]*keyAgg

	pushedAll        atomic.Int64 // unsampled pushes (global baseline)
	batchesInternal  atomic.Int64 // batches published across harvests
	itemsInternal    atomic.Int64 // items published across harvests
	lastBatchCap     atomic.Int64 // most recent batch capacity seen
	sumPushedSampled atomic.Int64 // pushes for sampled keys (top-N feed)

	exporterMu   sync.Mutex
	exporterStop chan struct{}
	exporterDone chan struct{}
	currCfg      atomic.Value // stores Config

	// rolling window points for KPIs (protected by windowMu)
	windowPoints []point
	windowMu     sync.Mutex
)

func startOrUpdateExporter(cfg Config) {
	exporterMu.Lock()
	defer exporterMu.Unlock()

	currCfg.Store(cfg)

	// Stop previous loop if running
	if exporterStop != nil {
		close(exporterStop)
		<-exporterDone
		exporterStop, exporterDone = nil, nil
	}
	if !cfg.Enabled || cfg.LogInterval <= 0 {
		return
	}
	// Start new loop
	exporterStop = make(chan struct{})
	exporterDone = make(chan struct{})
	go exporterLoop(cfg, exporterStop, exporterDone)
}

func exporterLoop(cfg Config, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	// cfg.LogInterval is guaranteed > 0 by the starter
	ticker := time.NewTicker(cfg.LogInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			publishSnapshot()
		case <-stop:
			return
		}
	}
}

func publishSnapshot() {
	// Load current config snapshot safely
	cfgAny := currCfg.Load()
	cfg, _ := cfgAny.(Config)

	// Snapshot aggregates and evict idle keys beyond 2x Window
	type row struct {
		keyHash uint64
		items   int64
	}
	rows := make([]row, 0, 1024)
	var tracked int
	idleTTL := cfg.Window * 2
	cutoff := time.Now().Add(-idleTTL).UnixNano()
	agg.Range(func(k, v any) bool {
		ka := v.(*keyAgg)
		last := ka.lastUpdate.Load()
		if last > 0 && last < cutoff {
			agg.Delete(k)
			return true
		}
		tracked++
		rows = append(rows, row{keyHash: k.(uint64), items: ka.items.Load()})
		return true
	})
	keysTracked.Set(float64(tracked))

	// Pick TopN by pushed item volume
	sort.Slice(rows, func(i, j int) bool { return rows[i].items > rows[j].items })
	if len(rows) > cfg.TopN {
		rows = rows[:cfg.TopN]
	}

	// Windowed KPIs using rolling points
	now := time.Now()
	pt := point{
		ts:      now,
		pushed:  pushedAll.Load(),
		batches: batchesInternal.Load(),
		items:   itemsInternal.Load(),
		cap:     lastBatchCap.Load(),
	}
	windowMu.Lock()
	windowPoints = append(windowPoints, pt)
	winStart := now.Add(-cfg.Window)
	idx := 0
	for idx < len(windowPoints) && windowPoints[idx].ts.Before(winStart) {
		idx++
	}
	if idx > 0 {
		windowPoints = windowPoints[idx:]
	}
	old := windowPoints[0]
	windowMu.Unlock()

	dPushed := pt.pushed - old.pushed
	dBatches := pt.batches - old.batches
	dItems := pt.items - old.items
	var fillWin float64
	if dBatches > 0 && pt.cap > 0 {
		fillWin = float64(dItems) / float64(dBatches*pt.cap)
	}
	fillRatioWindow.Set(fillWin)

	summary := fmt.Sprintf("flow summary: fill_window=%.3f pushed=%d published=%d batches=%d sample=%.2f topN=%d",
		fillWin, dPushed, dItems, dBatches, cfg.SampleRate, cfg.TopN)

	var topLine string
	if len(rows) > 0 {
		first := rows[0]
		topLine = fmt.Sprintf("top key=%s items=%d", shortHash(first.keyHash, cfg.KeyHashLen), first.items)
	} else {
		topLine = "top key: (none yet)"
	}

	ts := time.Now().Format(time.RFC3339)
	fmt.Printf("[%s] %s\n", ts, summary)
	fmt.Printf("  - %s\n", topLine)
}

func shortHash(h uint64, n int) string {
	if n <= 0 {
		n = 8
	}
	b := make([]byte, 8)
	for i := 0; i < 8; i++ {
		b[7-i] = byte(h & 0xff)
		h >>= 8
	}
	s := hex.EncodeToString(b) // 16 hex chars
	if n < len(s) {
		return s[:n]
	}
	return s
}

// --- recording helpers (called from prom_counters.go) ---

func exporterRecordPush(keyHash uint64) {
	ka := getAgg(keyHash)
	ka.items.Add(1)
	ka.lastUpdate.Store(time.Now().UnixNano())
	sumPushedSampled.Add(1)
}

func getAgg(keyHash uint64) *keyAgg {
	if v, ok := agg.Load(keyHash); ok {
		return v.(*keyAgg)
	}
	ka := &keyAgg{}
	actual, _ := agg.LoadOrStore(keyHash, ka)
	return actual.(*keyAgg)
}

func exporterObserveHarvestInternal(batches, items, batchCap int64) {
	if batches > 0 {
		batchesInternal.Add(batches)
	}
	if items > 0 {
		itemsInternal.Add(items)
	}
	if batchCap > 0 {
		lastBatchCap.Store(batchCap)
	}
}
