package benchmarks

import "sync"

// NaiveAccumulator is the comparison baseline: a mutex-guarded map of flat
// per-key slices with no batch segmentation. Extraction has to re-slice every
// key's items into batches, which is the work keybatch amortizes per push.
type NaiveAccumulator struct {
	mu        sync.Mutex
	items     map[string][]int
	batchSize int
}

func NewNaiveAccumulator(batchSize int) *NaiveAccumulator {
	return &NaiveAccumulator{items: make(map[string][]int), batchSize: batchSize}
}

func (n *NaiveAccumulator) Push(key string, item int) {
	n.mu.Lock()
	n.items[key] = append(n.items[key], item)
	n.mu.Unlock()
}

// ExtractAll slices each key's flat item list into fixed-size batches and
// resets the map.
func (n *NaiveAccumulator) ExtractAll() map[string][][]int {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make(map[string][][]int, len(n.items))
	for key, flat := range n.items {
		var batches [][]int
		for len(flat) > n.batchSize {
			batches = append(batches, flat[:n.batchSize])
			flat = flat[n.batchSize:]
		}
		if len(flat) > 0 {
			batches = append(batches, flat)
		}
		out[key] = batches
	}
	n.items = make(map[string][]int)
	return out
}
