package rpc

import (
	"github.com/tendermint/tendermint/libs/bytes"
	rpctypes "github.com/tendermint/tendermint/rpc/jsonrpc/types"

	mempl "graphbft/mempool"
	"graphbft/types"
)

const maxTxsPerPage = 100

type ResultBroadcastTx struct {
	TxnID bytes.HexBytes `json:"txn_id"`
}

type ResultUnconfirmedTxs struct {
	Count      int       `json:"n_txs"`
	Total      int       `json:"total"`
	TotalBytes int64     `json:"total_bytes"`
	Txs        types.Txs `json:"txs"`
}

// BroadcastTx checks a transaction carrying tx into the mempool. It returns
// once the transaction passed CheckTx, the block producer picks it up later.
func BroadcastTx(ctx *rpctypes.Context, tx []byte) (*ResultBroadcastTx, error) {
	mempoolTx := types.NewTx(tx)
	if err := env.Mempool.CheckTx(mempoolTx, mempl.TxInfo{SenderID: mempl.UnknownPeerID}); err != nil {
		return nil, err
	}
	return &ResultBroadcastTx{TxnID: mempoolTx.TxnID}, nil
}

// UnconfirmedTxs returns at most limit (100 max) transactions waiting in
// the mempool.
func UnconfirmedTxs(ctx *rpctypes.Context, limit int) (*ResultUnconfirmedTxs, error) {
	if limit <= 0 || limit > maxTxsPerPage {
		limit = maxTxsPerPage
	}
	txs := env.Mempool.ReapMaxTxs(limit)
	return &ResultUnconfirmedTxs{
		Count:      len(txs),
		Total:      env.Mempool.Size(),
		TotalBytes: env.Mempool.TxsBytes(),
		Txs:        txs,
	}, nil
}

func NumUnconfirmedTxs(ctx *rpctypes.Context) (*ResultUnconfirmedTxs, error) {
	return &ResultUnconfirmedTxs{
		Count:      env.Mempool.Size(),
		Total:      env.Mempool.Size(),
		TotalBytes: env.Mempool.TxsBytes(),
	}, nil
}
