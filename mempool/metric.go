package mempool

import (
	"sync"

	jsoniter "github.com/json-iterator/go"
)

func newMemMetric() *memMetric {
	return &memMetric{}
}

type memMetric struct {
	mtx           sync.RWMutex
	TxsNum        int   `json:"txs_num"`         // txs waiting for a block
	TotalTxsBytes int64 `json:"total_txs_bytes"` // payload size of the waiting txs
	AddedTxsNum   int64 `json:"added_txs_num"`
	RejectedNum   int64 `json:"rejected_txs_num"`
	CommittedNum  int64 `json:"committed_txs_num"` // txs removed by Update
}

func (mm *memMetric) JSONString() string {
	mm.mtx.RLock()
	defer mm.mtx.RUnlock()
	s, _ := jsoniter.MarshalToString(mm)
	return s
}

func (mm *memMetric) MarkTxs(txsNum int, totalTxsBytes int64) {
	mm.mtx.Lock()
	defer mm.mtx.Unlock()
	mm.TxsNum = txsNum
	mm.TotalTxsBytes = totalTxsBytes
}

func (mm *memMetric) MarkAdded() {
	mm.mtx.Lock()
	defer mm.mtx.Unlock()
	mm.AddedTxsNum++
}

func (mm *memMetric) MarkRejected() {
	mm.mtx.Lock()
	defer mm.mtx.Unlock()
	mm.RejectedNum++
}

func (mm *memMetric) MarkCommitted(n int) {
	mm.mtx.Lock()
	defer mm.mtx.Unlock()
	mm.CommittedNum += int64(n)
}
