package pool

import (
	"sync"

	"github.com/tendermint/tendermint/libs/log"

	"graphbft/libs/metric"
	"graphbft/types"
)

// DefaultCapacity is the number of block graphs a pool tracks at most.
const DefaultCapacity = 10000

// PreCheckFunc rejects a block graph before it takes a slot.
type PreCheckFunc func(*types.BlockGraph) error

// GraphPool is the working set of block graphs that were admitted but not
// finalized. It is a fixed capacity arena: slots are reused through a free
// list and a full pool rejects new entries instead of evicting old ones.
type GraphPool struct {
	mtx sync.Mutex

	entries []*types.BlockGraph
	index   map[string]int // identifier -> slot
	free    []int

	preCheck PreCheckFunc

	metric *poolMetric
	logger log.Logger
}

type GraphPoolOption func(pool *GraphPool)

func SetPreCheck(preCheck PreCheckFunc) GraphPoolOption {
	return func(pool *GraphPool) {
		pool.preCheck = preCheck
	}
}

func NewGraphPool(capacity int, options ...GraphPoolOption) *GraphPool {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	pool := &GraphPool{
		entries: make([]*types.BlockGraph, capacity),
		index:   make(map[string]int, capacity),
		free:    make([]int, capacity),
		metric:  newPoolMetric(capacity),
		logger:  log.NewNopLogger(),
	}
	// hand out low slots first
	for i := range pool.free {
		pool.free[i] = capacity - 1 - i
	}
	for _, option := range options {
		option(pool)
	}
	return pool
}

func (pool *GraphPool) SetLogger(logger log.Logger) {
	pool.logger = logger
}

// Add stores bg under its identifier. It returns ErrGraphInPool when the
// identifier is already tracked and ErrPoolFull when no slot is left.
func (pool *GraphPool) Add(bg *types.BlockGraph) error {
	if pool.preCheck != nil {
		if err := pool.preCheck(bg); err != nil {
			return err
		}
	}
	id := bg.Identifier()

	pool.mtx.Lock()
	defer pool.mtx.Unlock()

	if _, ok := pool.index[id]; ok {
		return ErrGraphInPool
	}
	if len(pool.free) == 0 {
		pool.metric.MarkRejected()
		return ErrPoolFull
	}
	slot := pool.free[len(pool.free)-1]
	pool.free = pool.free[:len(pool.free)-1]
	pool.entries[slot] = bg
	pool.index[id] = slot

	pool.metric.MarkGraphsNum(len(pool.index))
	pool.logger.Debug("added block graph", "graph", bg, "slot", slot)
	return nil
}

func (pool *GraphPool) Has(identifier string) bool {
	pool.mtx.Lock()
	defer pool.mtx.Unlock()
	_, ok := pool.index[identifier]
	return ok
}

// Get returns the tracked graph or nil.
func (pool *GraphPool) Get(identifier string) *types.BlockGraph {
	pool.mtx.Lock()
	defer pool.mtx.Unlock()
	slot, ok := pool.index[identifier]
	if !ok {
		return nil
	}
	return pool.entries[slot]
}

// Remove frees the slot of identifier and reports whether it was tracked.
func (pool *GraphPool) Remove(identifier string) bool {
	pool.mtx.Lock()
	defer pool.mtx.Unlock()
	if !pool.removeLocked(identifier) {
		return false
	}
	pool.metric.MarkGraphsNum(len(pool.index))
	return true
}

// HasRound reports whether a graph targeting round is tracked.
func (pool *GraphPool) HasRound(round uint64) bool {
	pool.mtx.Lock()
	defer pool.mtx.Unlock()
	for _, slot := range pool.index {
		if pool.entries[slot].Block.Round == round {
			return true
		}
	}
	return false
}

// Prune drops every graph targeting a round below minRound and returns how
// many were dropped.
func (pool *GraphPool) Prune(minRound uint64) int {
	pool.mtx.Lock()
	defer pool.mtx.Unlock()

	var stale []string
	for id, slot := range pool.index {
		if pool.entries[slot].Block.Round < minRound {
			stale = append(stale, id)
		}
	}
	for _, id := range stale {
		pool.removeLocked(id)
	}
	if len(stale) > 0 {
		pool.metric.MarkPruned(len(stale))
		pool.metric.MarkGraphsNum(len(pool.index))
		pool.logger.Debug("pruned block graphs", "min_round", minRound, "count", len(stale))
	}
	return len(stale)
}

func (pool *GraphPool) removeLocked(identifier string) bool {
	slot, ok := pool.index[identifier]
	if !ok {
		return false
	}
	delete(pool.index, identifier)
	pool.entries[slot] = nil
	pool.free = append(pool.free, slot)
	return true
}

// Flush empties the pool.
func (pool *GraphPool) Flush() {
	pool.mtx.Lock()
	defer pool.mtx.Unlock()

	capacity := len(pool.entries)
	pool.index = make(map[string]int, capacity)
	pool.free = pool.free[:0]
	for i := 0; i < capacity; i++ {
		pool.entries[i] = nil
		pool.free = append(pool.free, capacity-1-i)
	}
	pool.metric.MarkGraphsNum(0)
}

func (pool *GraphPool) Size() int {
	pool.mtx.Lock()
	defer pool.mtx.Unlock()
	return len(pool.index)
}

func (pool *GraphPool) Capacity() int {
	return len(pool.entries)
}

// Metric exposes the pool counters to the node metric set.
func (pool *GraphPool) Metric() metric.MetricItem {
	return pool.metric
}
