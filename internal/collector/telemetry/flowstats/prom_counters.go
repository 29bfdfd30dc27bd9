// Package flowstats provides opt-in, low-overhead telemetry for the batch
// collector: item flow, batch fill efficiency, and publish health. It is
// designed to be safe to call from hot paths: when disabled, all public
// functions are no-ops.
package flowstats

import (
	"hash/fnv"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Config controls the behavior of the flowstats module.
//
// Notes:
//   - SampleRate is deterministic per key using a fast FNV-1a 64-bit hash to avoid RNG cost.
//   - MetricsAddr, when non-empty, starts a dedicated HTTP server that serves /metrics.
//     If you already expose Prometheus elsewhere, leave it empty and register promhttp yourself.
//   - LogInterval is used by the exporter (see exporter.go). If LogInterval == 0, the
//     exporter loop is disabled.
//   - KeyHashLen controls how many hex characters to log for anonymized keys (2..16 typical).
type Config struct {
	Enabled     bool
	SampleRate  float64       // 0.0..1.0, probability a given key is included (deterministic)
	MetricsAddr string        // e.g., ":9090". Empty to disable standalone metrics endpoint
	LogInterval time.Duration // e.g., 1*time.Minute; 0 disables exporter logging
	Window      time.Duration // KPI window to compute ratios over; defaults to 1m if 0
	TopN        int           // how many top-volume keys to include in logs
	KeyHashLen  int           // number of hex chars to print for key hash in logs
}

var (
	modEnabled atomic.Bool

	// samplingThreshold is a fixed cut in the 64-bit hash space representing SampleRate.
	samplingThreshold atomic.Uint64

	// Prometheus metrics — global only (no unbounded label cardinality).
	itemsPushedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "keybatch_items_pushed_total",
		Help: "Total items accepted into the per-key accumulator",
	})
	batchesPublishedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "keybatch_batches_published_total",
		Help: "Total batches handed to the publisher across all harvests",
	})
	itemsPublishedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "keybatch_items_published_total",
		Help: "Total items handed to the publisher across all harvests",
	})
	publishErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "keybatch_publish_errors_total",
		Help: "Total number of failed publish attempts (dropped harvests)",
	})
	batchFillRatio = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "keybatch_batch_fill_ratio",
		Help:    "Distribution of batch length divided by the configured batch size",
		Buckets: []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0},
	})
	// First-class KPIs (Gauges) over a rolling window
	fillRatioWindow = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "keybatch_fill_ratio_window",
		Help: "Mean batch fill ratio (items / capacity) over the KPI window",
	})
	activeKeysGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "keybatch_active_keys",
		Help: "Number of keys holding accumulated items after the last harvest",
	})
	keysTracked = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "keybatch_keys_tracked",
		Help: "Number of keys currently tracked in the in-process flow aggregator",
	})
)

func init() {
	// Register metrics eagerly. If no Prometheus endpoint is exposed, the registration is harmless.
	prometheus.MustRegister(itemsPushedTotal, batchesPublishedTotal, itemsPublishedTotal,
		publishErrorsTotal, batchFillRatio, fillRatioWindow, activeKeysGauge, keysTracked)
}

// Enable configures the module. Safe to call multiple times; subsequent calls replace config.
func Enable(cfg Config) {
	if cfg.SampleRate < 0 {
		cfg.SampleRate = 0
	}
	if cfg.SampleRate > 1 {
		cfg.SampleRate = 1
	}
	if cfg.TopN <= 0 {
		cfg.TopN = 50
	}
	if cfg.KeyHashLen <= 0 {
		cfg.KeyHashLen = 8
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	// Compute deterministic sampling threshold once (inclusive bound in [0, 2^64-1]).
	// Handle edge cases explicitly to avoid float rounding gaps at SampleRate=1.0.
	var thr uint64
	switch {
	case cfg.SampleRate <= 0:
		thr = 0 // sample none
	case cfg.SampleRate >= 1:
		thr = ^uint64(0) // sample all keys
	default:
		max := ^uint64(0)
		// We want an inclusive threshold such that (thr+1)/(max+1) ≈ SampleRate
		f := cfg.SampleRate * (float64(max) + 1.0)
		if f < 1 { // ensure at least one slot if rate rounds down
			f = 1
		}
		thr = uint64(f) - 1
	}
	samplingThreshold.Store(thr)

	modEnabled.Store(cfg.Enabled)

	// Start/stop exporter loop according to config.
	startOrUpdateExporter(cfg)

	// Optionally start a tiny HTTP server just for /metrics.
	if cfg.MetricsAddr != "" {
		startMetricsEndpoint(cfg.MetricsAddr)
	}
}

// Enabled reports whether the flowstats module is active.
func Enabled() bool { return modEnabled.Load() }

// ObservePush records one accepted item. Call on the hot path after a
// successful Push.
func ObservePush(key string) {
	if !modEnabled.Load() {
		return
	}
	itemsPushedTotal.Inc()
	pushedAll.Add(1)
	if key != "" && sampled(key) {
		exporterRecordPush(hashKey(key))
	}
}

// ObserveHarvest records one successful publish: the length of every batch in
// the harvest plus the configured batch capacity, feeding the fill histogram
// and the windowed fill KPI.
func ObserveHarvest(batchLengths []int, batchCap int) {
	if !modEnabled.Load() || len(batchLengths) == 0 || batchCap <= 0 {
		return
	}
	var items int64
	for _, n := range batchLengths {
		if n <= 0 {
			continue
		}
		items += int64(n)
		batchFillRatio.Observe(float64(n) / float64(batchCap))
	}
	batchesPublishedTotal.Add(float64(len(batchLengths)))
	itemsPublishedTotal.Add(float64(items))
	exporterObserveHarvestInternal(int64(len(batchLengths)), items, int64(batchCap))
}

// ObservePublishError increments the publish error counter when a harvest fails.
func ObservePublishError(n int) {
	if !modEnabled.Load() || n <= 0 {
		return
	}
	publishErrorsTotal.Add(float64(n))
}

// SetActiveKeys records the number of active keys after a harvest.
func SetActiveKeys(n int) {
	if !modEnabled.Load() || n < 0 {
		return
	}
	activeKeysGauge.Set(float64(n))
}

// startMetricsEndpoint exposes /metrics on the given addr in a background goroutine.
// Safe to call multiple times; only one server per unique addr will be started (best-effort).
func startMetricsEndpoint(addr string) {
	// To keep it simple and dependency-free, we do not deduplicate addr strictly.
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		_ = server.ListenAndServe()
	}()
}

// sampled deterministically decides whether a key participates given SampleRate.
func sampled(key string) bool {
	thr := samplingThreshold.Load()
	if thr == 0 {
		return false
	}
	return hashKey(key) <= thr
}

// hashKey returns a 64-bit FNV-1a hash of the key.
func hashKey(key string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(key))
	return h.Sum64()
}
