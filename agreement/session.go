// Package agreement models the byzantine agreement oracle the graph feeds.
// A Session runs one agreement instance: block graphs go in through Add and
// agreed results come out of Delivered.
package agreement

import (
	"errors"

	"github.com/tendermint/tendermint/libs/log"

	"graphbft/types"
)

var ErrSessionClosed = errors.New("agreement session closed")

// Config scopes one session.
type Config struct {
	Round     uint64
	NodeCount int
	SelfID    uint64
	// LastInterpreted is the round of the last result this node committed.
	LastInterpreted uint64
}

type Session interface {
	Add(bg *types.BlockGraph) error
	// Delivered is closed when the session is closed.
	Delivered() <-chan *types.Interpreted
	Close()
}

// Factory creates the session for a configuration.
type Factory func(cfg Config, logger log.Logger) Session
