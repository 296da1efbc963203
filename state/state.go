package state

import (
	"fmt"
	"time"

	tmbytes "github.com/tendermint/tendermint/libs/bytes"

	"graphbft/types"
)

// State is the tip of the hash chain.
type State struct {
	ChainID string

	// Height is the number of committed blocks, so the next block to commit
	// has this height.
	Height        uint64
	LastBlockHash tmbytes.HexBytes
	LastBlockTime time.Time
}

// MakeState returns the state after last was committed.
func MakeState(last *types.Block) State {
	return State{
		ChainID:       last.ChainID,
		Height:        last.Height + 1,
		LastBlockHash: last.Hash(),
		LastBlockTime: last.Time,
	}
}

func (state State) Copy() State {
	newState := state
	newState.LastBlockHash = make([]byte, len(state.LastBlockHash))
	copy(newState.LastBlockHash, state.LastBlockHash)
	return newState
}

func (state State) IsEmpty() bool {
	return state.Height == 0
}

// Round is the agreement round of the last committed block.
func (state State) Round() uint64 {
	return types.CurrentRound(state.Height)
}

func (state State) String() string {
	return fmt.Sprintf("State{%v #%v %v}", state.ChainID, state.Height, state.LastBlockHash)
}
