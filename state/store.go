package state

import (
	"time"

	"github.com/pkg/errors"

	"graphbft/store"
	"graphbft/types"
)

// LoadState reads the tip of chain. An empty chain yields an empty state.
func LoadState(chain store.BlockStore, chainID string) (State, error) {
	last, err := chain.Last()
	if err == store.ErrNotFound {
		return State{ChainID: chainID}, nil
	}
	if err != nil {
		return State{}, errors.Wrap(err, "failed to load chain tip")
	}
	return MakeState(last), nil
}

// EnsureGenesis commits the genesis block when chain is empty and returns
// the block at height zero.
func EnsureGenesis(chain store.BlockStore, chainID string, genesisTime time.Time) (*types.Block, error) {
	blocks, err := chain.ByHeight(0)
	if err != nil {
		return nil, err
	}
	if len(blocks) > 0 {
		if blocks[0].ChainID != chainID {
			return nil, errors.Errorf("chain id mismatch: stored %q, configured %q", blocks[0].ChainID, chainID)
		}
		return blocks[0], nil
	}
	genesis := types.MakeGenesisBlock(chainID, genesisTime)
	if err := chain.Put(genesis); err != nil {
		return nil, errors.Wrap(err, "failed to save genesis block")
	}
	return genesis, nil
}
