package state

import (
	"bytes"
	"sync"

	"github.com/tendermint/tendermint/libs/log"

	"graphbft/store"
	"graphbft/types"
)

type BlockExecutor interface {
	// ApplyBlock validates block against state and appends it to the hash
	// chain. It returns the new state, or state unchanged on error.
	ApplyBlock(state State, block *types.Block) (State, error)

	// ApplyDelivered moves delivered blocks into the hash chain in height
	// order, as long as the next height is available. It returns the number
	// of blocks committed.
	ApplyDelivered() (int, error)

	// State returns a copy of the current state.
	State() State

	SetLogger(logger log.Logger)
}

// NewBlockExecutor loads the current state from the hash chain of uow.
func NewBlockExecutor(uow *store.UnitOfWork, chainID string) (BlockExecutor, error) {
	state, err := LoadState(uow.HashChain, chainID)
	if err != nil {
		return nil, err
	}
	return &blockExecutor{
		uow:    uow,
		state:  state,
		logger: log.NewNopLogger(),
	}, nil
}

type blockExecutor struct {
	uow *store.UnitOfWork

	mtx   sync.Mutex
	state State

	logger log.Logger
}

// SetLogger implements BlockExecutor
func (exec *blockExecutor) SetLogger(logger log.Logger) {
	exec.logger = logger
}

// State implements BlockExecutor
func (exec *blockExecutor) State() State {
	exec.mtx.Lock()
	defer exec.mtx.Unlock()
	return exec.state.Copy()
}

// ApplyBlock implements BlockExecutor
func (exec *blockExecutor) ApplyBlock(state State, block *types.Block) (State, error) {
	if err := exec.validateBlock(state, block); err != nil {
		return state, ErrInvalidBlock(err)
	}
	if err := exec.uow.HashChain.Put(block); err != nil {
		return state, err
	}
	exec.logger.Info("committed block", "height", block.Height, "hash", block.Hash(), "txs", len(block.Txs))
	return MakeState(block), nil
}

// ApplyDelivered implements BlockExecutor
func (exec *blockExecutor) ApplyDelivered() (int, error) {
	exec.mtx.Lock()
	defer exec.mtx.Unlock()

	if err := exec.purgeStale(); err != nil {
		return 0, err
	}

	committed := 0
	for {
		candidates, err := exec.uow.Delivered.ByHeight(exec.state.Height)
		if err != nil {
			return committed, err
		}
		if len(candidates) == 0 {
			return committed, nil
		}

		applied := false
		for _, block := range candidates {
			if !applied {
				newState, err := exec.ApplyBlock(exec.state, block)
				if err == nil {
					exec.state = newState
					applied = true
					committed++
				} else if _, ok := err.(errInvalidBlock); ok {
					exec.logger.Error("drop delivered block", "height", block.Height, "hash", block.Hash(), "err", err)
				} else {
					return committed, err
				}
			}
			// competing blocks of a committed height can never apply
			if err := exec.uow.Delivered.Remove(block); err != nil {
				exec.logger.Error("failed to remove delivered block", "height", block.Height, "err", err)
			}
		}
		if !applied {
			return committed, nil
		}
	}
}

// purgeStale removes delivered blocks below the chain height.
func (exec *blockExecutor) purgeStale() error {
	height := exec.state.Height
	stale, err := exec.uow.Delivered.Where(func(b *types.Block) bool {
		return b.Height < height
	})
	if err != nil {
		return err
	}
	for _, block := range stale {
		if err := exec.uow.Delivered.Remove(block); err != nil {
			exec.logger.Error("failed to remove stale delivered block", "height", block.Height, "err", err)
		}
	}
	return nil
}

func (exec *blockExecutor) validateBlock(state State, block *types.Block) error {
	if err := block.ValidateBasic(); err != nil {
		return err
	}
	if block.ChainID != state.ChainID {
		return ErrChainIDDiff
	}
	if block.Height != state.Height {
		return ErrHeightMismatch
	}
	if state.Height > 0 && !bytes.Equal(block.PrevHash, state.LastBlockHash) {
		return ErrPrevHashDiff
	}
	return nil
}
