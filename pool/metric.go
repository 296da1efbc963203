package pool

import (
	"sync"

	jsoniter "github.com/json-iterator/go"
)

func newPoolMetric(capacity int) *poolMetric {
	return &poolMetric{Capacity: capacity}
}

type poolMetric struct {
	mtx       sync.RWMutex
	GraphsNum int   `json:"graphs_num"` // graphs currently tracked
	Capacity  int   `json:"capacity"`
	Rejected  int64 `json:"rejected"` // inserts refused because the pool was full
	Pruned    int64 `json:"pruned"`   // graphs dropped for targeting a past round
}

func (pm *poolMetric) JSONString() string {
	pm.mtx.RLock()
	defer pm.mtx.RUnlock()
	s, _ := jsoniter.MarshalToString(pm)
	return s
}

func (pm *poolMetric) MarkGraphsNum(n int) {
	pm.mtx.Lock()
	defer pm.mtx.Unlock()
	pm.GraphsNum = n
}

func (pm *poolMetric) MarkRejected() {
	pm.mtx.Lock()
	defer pm.mtx.Unlock()
	pm.Rejected++
}

func (pm *poolMetric) MarkPruned(n int) {
	pm.mtx.Lock()
	defer pm.mtx.Unlock()
	pm.Pruned += int64(n)
}
