package mempool

import (
	"sync"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru"
	cfg "github.com/tendermint/tendermint/config"
	"github.com/tendermint/tendermint/crypto/tmhash"
	"github.com/tendermint/tendermint/libs/clist"
	"github.com/tendermint/tendermint/libs/log"
	tmmath "github.com/tendermint/tendermint/libs/math"

	"graphbft/libs/metric"
	"graphbft/types"
)

const (
	TxKeySize = tmhash.Size
)

// ListMempool is an ordered in-memory pool of transactions. Transactions
// are kept in a concurrent linked list so the reactor can gossip them in
// arrival order while new ones are appended.
type ListMempool struct {
	// Atomic integers
	height   uint64 // the last block Update()'d to
	txsBytes int64  // total size of mempool, in bytes

	txsAvailable chan struct{} // fires when the mempool is not empty

	config *cfg.MempoolConfig

	updateMtx sync.RWMutex
	preCheck  PreCheckFunc

	txs    *clist.CList // concurrent linked-list of valid txs
	txsMap sync.Map     // TxKey -> *clist.CElement

	// Keep a cache of already-seen txs.
	// Committed txs stay in the cache so gossip can't add them back.
	cache txCache

	metric *memMetric
	logger log.Logger
}

var _ Mempool = (*ListMempool)(nil)

type ListMempoolOption func(mempool *ListMempool)

func SetPreCheck(precheck PreCheckFunc) ListMempoolOption {
	return func(mem *ListMempool) {
		mem.preCheck = precheck
	}
}

func NewListMempool(config *cfg.MempoolConfig, height uint64, options ...ListMempoolOption) *ListMempool {
	mem := &ListMempool{
		height:       height,
		config:       config,
		txs:          clist.New(),
		txsAvailable: make(chan struct{}, 1),
		metric:       newMemMetric(),
		logger:       log.NewNopLogger(),
	}
	if config.CacheSize > 0 {
		mem.cache = newLRUTxCache(config.CacheSize)
	} else {
		mem.cache = nopTxCache{}
	}
	for _, option := range options {
		option(mem)
	}
	return mem
}

func (mem *ListMempool) SetLogger(logger log.Logger) {
	mem.logger = logger
}

// Lock locks the update mutex.
func (mem *ListMempool) Lock() {
	mem.updateMtx.Lock()
}

// Unlock unlocks the update mutex.
func (mem *ListMempool) Unlock() {
	mem.updateMtx.Unlock()
}

func (mem *ListMempool) Size() int {
	return mem.txs.Len()
}

func (mem *ListMempool) TxsBytes() int64 {
	return atomic.LoadInt64(&mem.txsBytes)
}

// Height returns the height of the last Update.
func (mem *ListMempool) Height() uint64 {
	return atomic.LoadUint64(&mem.height)
}

func (mem *ListMempool) TxsAvailable() <-chan struct{} {
	return mem.txsAvailable
}

// TxsWaitChan returns a channel that is closed once the mempool is not
// empty.
func (mem *ListMempool) TxsWaitChan() <-chan struct{} {
	return mem.txs.WaitChan()
}

// TxsFront returns the first transaction, or nil.
func (mem *ListMempool) TxsFront() *clist.CElement {
	return mem.txs.Front()
}

func (mem *ListMempool) Metric() metric.MetricItem {
	return mem.metric
}

func (mem *ListMempool) CheckTx(tx types.Tx, txInfo TxInfo) error {
	mem.updateMtx.RLock()
	defer mem.updateMtx.RUnlock()

	txSize := len(tx.Payload)
	if err := mem.isFull(txSize); err != nil {
		mem.metric.MarkRejected()
		return err
	}
	if txSize > mem.config.MaxTxBytes {
		mem.metric.MarkRejected()
		return ErrTxTooLarge{Max: mem.config.MaxTxBytes, Actual: txSize}
	}
	if err := tx.ValidateBasic(); err != nil {
		mem.metric.MarkRejected()
		return err
	}
	if mem.preCheck != nil {
		if err := mem.preCheck(tx); err != nil {
			mem.metric.MarkRejected()
			return ErrPreCheck{Reason: err}
		}
	}

	key := TxKey(tx)
	if e, ok := mem.txsMap.Load(key); ok {
		// remember the sender so the tx is not gossiped back
		memTx := e.(*clist.CElement).Value.(*mempoolTx)
		memTx.senders.LoadOrStore(txInfo.SenderID, true)
		return ErrTxInMap
	}
	if !mem.cache.Push(tx) {
		return ErrTxInCache
	}

	memTx := &mempoolTx{
		height: mem.Height(),
		tx:     tx,
	}
	memTx.senders.Store(txInfo.SenderID, true)
	mem.addTx(memTx)

	mem.logger.Debug("added good transaction", "tx", tx.TxnID, "sender", txInfo.SenderP2PID, "total", mem.Size())
	mem.notifyTxsAvailable()
	return nil
}

func (mem *ListMempool) ReapMaxTxs(max int) types.Txs {
	mem.updateMtx.RLock()
	defer mem.updateMtx.RUnlock()

	if max < 0 {
		max = mem.txs.Len()
	}
	txs := make(types.Txs, 0, tmmath.MinInt(mem.txs.Len(), max))
	for e := mem.txs.Front(); e != nil && len(txs) < max; e = e.Next() {
		txs = append(txs, e.Value.(*mempoolTx).tx)
	}
	return txs
}

// Update implements Mempool. The caller must hold the lock.
func (mem *ListMempool) Update(height uint64, txs types.Txs) error {
	atomic.StoreUint64(&mem.height, height)

	removed := 0
	for _, tx := range txs {
		// a committed tx may come back through gossip, keep it cached
		_ = mem.cache.Push(tx)

		if e, ok := mem.txsMap.Load(TxKey(tx)); ok {
			mem.removeTx(tx, e.(*clist.CElement))
			removed++
		}
	}
	mem.metric.MarkCommitted(removed)
	mem.metric.MarkTxs(mem.Size(), mem.TxsBytes())

	if mem.Size() > 0 {
		mem.notifyTxsAvailable()
	}
	return nil
}

func (mem *ListMempool) Flush() {
	mem.updateMtx.Lock()
	defer mem.updateMtx.Unlock()

	atomic.StoreInt64(&mem.txsBytes, 0)
	mem.cache.Reset()

	for e := mem.txs.Front(); e != nil; e = e.Next() {
		mem.txs.Remove(e)
		e.DetachPrev()
	}
	mem.txsMap.Range(func(key, _ interface{}) bool {
		mem.txsMap.Delete(key)
		return true
	})
	mem.metric.MarkTxs(0, 0)
}

// addTx appends memTx to the list and updates the lookup map and the
// mempool size.
func (mem *ListMempool) addTx(memTx *mempoolTx) {
	e := mem.txs.PushBack(memTx)
	mem.txsMap.Store(TxKey(memTx.tx), e)
	atomic.AddInt64(&mem.txsBytes, int64(len(memTx.tx.Payload)))
	mem.metric.MarkAdded()
	mem.metric.MarkTxs(mem.Size(), mem.TxsBytes())
}

func (mem *ListMempool) removeTx(tx types.Tx, elem *clist.CElement) {
	mem.txs.Remove(elem)
	elem.DetachPrev()
	mem.txsMap.Delete(TxKey(tx))
	atomic.AddInt64(&mem.txsBytes, int64(-len(tx.Payload)))
}

func (mem *ListMempool) isFull(txSize int) error {
	var (
		memSize  = mem.Size()
		txsBytes = mem.TxsBytes()
	)
	if memSize >= mem.config.Size || int64(txSize)+txsBytes > mem.config.MaxTxsBytes {
		return ErrMempoolIsFull{
			NumTxs:      memSize,
			MaxTxs:      mem.config.Size,
			TxsBytes:    txsBytes,
			MaxTxsBytes: mem.config.MaxTxsBytes,
		}
	}
	return nil
}

func (mem *ListMempool) notifyTxsAvailable() {
	select {
	case mem.txsAvailable <- struct{}{}:
	default:
	}
}

// ------------------------------

type txCache interface {
	Reset()
	// Push adds tx and reports whether it was not cached yet.
	Push(tx types.Tx) bool
	Remove(tx types.Tx)
}

// lruTxCache keeps the keys of the most recently seen txs.
type lruTxCache struct {
	cache *lru.Cache
}

func newLRUTxCache(size int) *lruTxCache {
	cache, err := lru.New(size)
	if err != nil {
		panic(err)
	}
	return &lruTxCache{cache: cache}
}

func (c *lruTxCache) Reset() {
	c.cache.Purge()
}

func (c *lruTxCache) Push(tx types.Tx) bool {
	contained, _ := c.cache.ContainsOrAdd(TxKey(tx), struct{}{})
	return !contained
}

func (c *lruTxCache) Remove(tx types.Tx) {
	c.cache.Remove(TxKey(tx))
}

type nopTxCache struct{}

func (nopTxCache) Reset()             {}
func (nopTxCache) Push(types.Tx) bool { return true }
func (nopTxCache) Remove(types.Tx)    {}

// ------------------------------

type mempoolTx struct {
	height uint64 // height that this tx had been validated in

	tx      types.Tx
	senders sync.Map // ids of peers who've sent us this tx (as a map for quick lookups)
}

// Height returns the height for this transaction
func (memTx *mempoolTx) Height() uint64 {
	return atomic.LoadUint64(&memTx.height)
}

// ------------------------------

// TxKey is the fixed length array hash used as the key in maps.
func TxKey(tx types.Tx) [TxKeySize]byte {
	var key [TxKeySize]byte
	copy(key[:], tx.Hash())
	return key
}
