package mempool

import (
	"github.com/tendermint/tendermint/p2p"

	"graphbft/types"
)

// Mempool holds the transactions waiting for a block.
type Mempool interface {
	// CheckTx validates tx and appends it to the mempool.
	CheckTx(tx types.Tx, txInfo TxInfo) error

	// ReapMaxTxs returns at most max transactions in arrival order. A
	// negative max returns all of them.
	ReapMaxTxs(max int) types.Txs

	// Lock locks the mempool. The caller must hold the lock around Update.
	Lock()

	// Unlock unlocks the mempool.
	Unlock()

	// Update removes the transactions committed up to height. The caller
	// is responsible for Lock/Unlock.
	Update(height uint64, txs types.Txs) error

	// Flush removes every transaction and resets the cache.
	Flush()

	// Size returns the number of transactions in the mempool.
	Size() int

	// TxsBytes returns the total payload size of the mempool.
	TxsBytes() int64

	// TxsAvailable returns a channel that fires when transactions were
	// added, or are left after an Update.
	TxsAvailable() <-chan struct{}
}

//--------------------------------------------------------------------------------

// PreCheckFunc is an optional filter executed before CheckTx. It rejects a
// transaction if an error is returned.
type PreCheckFunc func(types.Tx) error

// TxInfo are parameters that get passed when attempting to add a tx to the
// mempool.
type TxInfo struct {
	// SenderID is the internal peer ID used in the mempool to identify the
	// sender, storing 2 bytes with each tx instead of 20 bytes for the p2p.ID.
	SenderID uint16
	// SenderP2PID is the actual p2p.ID of the sender, used e.g. for logging.
	SenderP2PID p2p.ID
}
