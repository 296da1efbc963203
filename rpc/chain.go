package rpc

import (
	"github.com/tendermint/tendermint/libs/bytes"
	rpctypes "github.com/tendermint/tendermint/rpc/jsonrpc/types"

	"graphbft/types"
)

const maxBlocksPerPage = 100

type ResultHeight struct {
	Height uint64 `json:"height"`
	Round  uint64 `json:"round"`
}

type ResultBlocks struct {
	Blocks []*types.Block `json:"blocks"`
}

func Height(ctx *rpctypes.Context) (*ResultHeight, error) {
	height, err := env.Graph.GetHeight()
	if err != nil {
		return nil, err
	}
	return &ResultHeight{Height: height, Round: types.CurrentRound(height)}, nil
}

// Blocks pages through the chain in height order. At most 100 blocks are
// returned per call.
func Blocks(ctx *rpctypes.Context, skip, take int) (*ResultBlocks, error) {
	if take <= 0 || take > maxBlocksPerPage {
		take = maxBlocksPerPage
	}
	blocks, err := env.Graph.GetBlocks(skip, take)
	if err != nil {
		return nil, err
	}
	return &ResultBlocks{Blocks: blocks}, nil
}

func SafeguardBlocks(ctx *rpctypes.Context) (*ResultBlocks, error) {
	blocks, err := env.Graph.GetSafeguardBlocks()
	if err != nil {
		return nil, err
	}
	return &ResultBlocks{Blocks: blocks}, nil
}

// BlockHash returns the hash of the block at height-1, or of the last block
// when height is zero.
func BlockHash(ctx *rpctypes.Context, height uint64) (*types.BlockHash, error) {
	return env.Graph.GetHash(height)
}

func Transaction(ctx *rpctypes.Context, txnID bytes.HexBytes) (*types.Tx, error) {
	return env.Graph.GetTransaction(txnID)
}
