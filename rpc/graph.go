package rpc

import (
	"errors"

	"github.com/tendermint/tendermint/libs/bytes"
	rpctypes "github.com/tendermint/tendermint/rpc/jsonrpc/types"

	"graphbft/types"
)

type ResultSubmit struct {
	Code   types.VerifyResult `json:"code"`
	Result string             `json:"result"`
}

type ResultPropose struct {
	ResultSubmit
	Round uint64           `json:"round"`
	Hash  string           `json:"hash"`
	Txs   []bytes.HexBytes `json:"txs"`
}

func newResultSubmit(result types.VerifyResult) ResultSubmit {
	return ResultSubmit{Code: result, Result: result.String()}
}

// SubmitBlockGraph admits a msgpack encoded block graph.
func SubmitBlockGraph(ctx *rpctypes.Context, graph []byte) (*ResultSubmit, error) {
	if len(graph) == 0 {
		return nil, errors.New("empty block graph")
	}
	result := newResultSubmit(env.Graph.SubmitProposalBytes(graph))
	return &result, nil
}

// ProposeBlock proposes the next block carrying one transaction per
// payload.
func ProposeBlock(ctx *rpctypes.Context, txs [][]byte) (*ResultPropose, error) {
	blockTxs := make(types.Txs, len(txs))
	ids := make([]bytes.HexBytes, len(txs))
	for i, payload := range txs {
		blockTxs[i] = types.NewTx(payload)
		ids[i] = blockTxs[i].TxnID
	}
	bg, result, err := env.Graph.ProposeTxs(blockTxs)
	if err != nil {
		return nil, err
	}
	return &ResultPropose{
		ResultSubmit: newResultSubmit(result),
		Round:        bg.Block.Round,
		Hash:         bg.Block.Hash,
		Txs:          ids,
	}, nil
}
