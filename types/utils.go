package types

import "time"

// MakeGenesisBlock returns the block at height zero. Every node of a cluster
// must build it from the same chain id and genesis time.
func MakeGenesisBlock(chainID string, genesisTime time.Time) *Block {
	block := &Block{
		ChainID:  chainID,
		Height:   0,
		Time:     genesisTime.UTC(),
		PrevHash: []byte{},
		Txs:      Txs{},
	}
	block.fillHeader()
	return block
}

// MakeBlock returns the block following prev.
func MakeBlock(prev *Block, txs Txs, blockTime time.Time) *Block {
	if txs == nil {
		txs = Txs{}
	}
	block := &Block{
		ChainID:  prev.ChainID,
		Height:   prev.Height + 1,
		Time:     blockTime.UTC(),
		PrevHash: prev.Hash(),
		Txs:      txs,
	}
	block.fillHeader()
	return block
}
