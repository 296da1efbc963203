package consensus

import (
	"bytes"

	"graphbft/store"
	"graphbft/types"
)

// GetTransaction searches the chain for the transaction with the given id.
func (g *Graph) GetTransaction(txnID []byte) (*types.Tx, error) {
	if len(txnID) != types.TxnIDSize {
		return nil, types.ErrInvalidTxnID
	}
	block, err := g.uow.HashChain.Get(func(b *types.Block) bool {
		for _, tx := range b.Txs {
			if bytes.Equal(tx.TxnID, txnID) {
				return true
			}
		}
		return false
	})
	if err != nil {
		return nil, err
	}
	return block.Txs.Find(txnID), nil
}

// GetBlocks returns up to take committed blocks after skipping skip, in
// height order.
func (g *Graph) GetBlocks(skip, take int) ([]*types.Block, error) {
	return g.uow.HashChain.OrderByRange(skip, take)
}

// safeguardBlocks is the size of the verification window every node serves.
const safeguardBlocks = 147

// GetSafeguardBlocks returns the most recent committed blocks a joining
// node checks its chain against.
func (g *Graph) GetSafeguardBlocks() ([]*types.Block, error) {
	size := safeguardBlocks
	count, err := g.uow.HashChain.Count()
	if err != nil {
		return nil, err
	}
	skip := count - size
	if skip < 0 {
		skip = 0
	}
	return g.uow.HashChain.OrderByRange(skip, size)
}

// GetHeight returns the number of committed blocks, genesis included.
func (g *Graph) GetHeight() (uint64, error) {
	count, err := g.uow.HashChain.Count()
	if err != nil {
		return 0, err
	}
	return uint64(count), nil
}

// GetHash returns the hash of the block at height-1. Height zero stands for
// the current height, so it returns the hash of the last block.
func (g *Graph) GetHash(height uint64) (*types.BlockHash, error) {
	if height == 0 {
		count, err := g.uow.HashChain.Count()
		if err != nil {
			return nil, err
		}
		height = uint64(count)
	}
	if height == 0 {
		return nil, store.ErrNotFound
	}
	blocks, err := g.uow.HashChain.ByHeight(height - 1)
	if err != nil {
		return nil, err
	}
	if len(blocks) == 0 {
		return nil, store.ErrNotFound
	}
	return &types.BlockHash{Height: height, Hash: blocks[0].Hash()}, nil
}
