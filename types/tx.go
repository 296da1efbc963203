package types

import (
	"bytes"
	"time"

	"github.com/tendermint/tendermint/crypto/merkle"
	"github.com/tendermint/tendermint/crypto/tmhash"
	tmbytes "github.com/tendermint/tendermint/libs/bytes"
)

// TxnIDSize is the length of a transaction id.
const TxnIDSize = tmhash.Size

// Tx is a ledger transaction carried inside a block.
type Tx struct {
	TxnID     tmbytes.HexBytes `msgpack:"txn_id" json:"txn_id"`
	Payload   []byte           `msgpack:"payload" json:"payload"`
	Timestamp int64            `msgpack:"timestamp" json:"timestamp"` // unix nano when the tx was created
}

// NewTx wraps payload into a transaction whose id is the hash of the payload.
func NewTx(payload []byte) Tx {
	return Tx{
		TxnID:     tmhash.Sum(payload),
		Payload:   payload,
		Timestamp: time.Now().UnixNano(),
	}
}

func (tx Tx) Hash() []byte {
	if len(tx.TxnID) == TxnIDSize {
		return tx.TxnID
	}
	return tmhash.Sum(tx.Payload)
}

func (tx Tx) ValidateBasic() error {
	if len(tx.TxnID) != TxnIDSize {
		return ErrInvalidTxnID
	}
	return nil
}

// ===== tx array =====
type Txs []Tx

// Hash returns the merkle root of the transaction ids.
func (txs Txs) Hash() []byte {
	txBzs := make([][]byte, len(txs))
	for i := 0; i < len(txs); i++ {
		txBzs[i] = txs[i].Hash()
	}
	return merkle.HashFromByteSlices(txBzs)
}

// Find returns the transaction with the given id, or nil.
func (txs Txs) Find(txnID []byte) *Tx {
	for i := range txs {
		if bytes.Equal(txs[i].TxnID, txnID) {
			tx := txs[i]
			return &tx
		}
	}
	return nil
}

func (txs Txs) Contains(txnID []byte) bool {
	return txs.Find(txnID) != nil
}
