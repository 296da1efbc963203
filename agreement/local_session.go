package agreement

import (
	"fmt"
	"sync"

	"github.com/tendermint/tendermint/libs/log"

	"graphbft/types"
)

// LocalSession agrees on a block hash once a quorum of distinct nodes
// proposed it in the session round. Every node receiving the same graphs
// delivers the same result, so it stands in for a full byzantine agreement
// instance in a cluster of honest nodes.
type LocalSession struct {
	cfg    Config
	logger log.Logger

	mtx       sync.Mutex
	proposals map[string]map[uint64]*types.BlockGraph // block hash -> node -> graph
	delivered bool
	closed    bool

	deliveredCh chan *types.Interpreted
}

var _ Session = (*LocalSession)(nil)

// NewLocalSession is a Factory.
func NewLocalSession(cfg Config, logger log.Logger) Session {
	return &LocalSession{
		cfg:         cfg,
		logger:      logger,
		proposals:   make(map[string]map[uint64]*types.BlockGraph),
		deliveredCh: make(chan *types.Interpreted, 1),
	}
}

func (s *LocalSession) Add(bg *types.BlockGraph) error {
	if bg.Block.Round != s.cfg.Round {
		return fmt.Errorf("block graph round %d, session round %d", bg.Block.Round, s.cfg.Round)
	}

	s.mtx.Lock()
	defer s.mtx.Unlock()

	if s.closed {
		return ErrSessionClosed
	}
	nodes, ok := s.proposals[bg.Block.Hash]
	if !ok {
		nodes = make(map[uint64]*types.BlockGraph)
		s.proposals[bg.Block.Hash] = nodes
	}
	nodes[bg.Block.Node] = bg

	if s.delivered || !types.HasQuorum(len(nodes), s.cfg.NodeCount) {
		return nil
	}
	s.delivered = true
	result := &types.Interpreted{
		Round:  s.cfg.Round,
		Blocks: []types.GraphBlock{s.pick(nodes).Block},
	}
	s.logger.Info("agreed", "round", s.cfg.Round, "hash", bg.Block.Hash, "nodes", len(nodes))
	select {
	case s.deliveredCh <- result:
	default:
		// the channel holds one result and a session delivers once
	}
	return nil
}

// pick returns the graph of the lowest node id so every node delivers the
// same entry.
func (s *LocalSession) pick(nodes map[uint64]*types.BlockGraph) *types.BlockGraph {
	var (
		picked *types.BlockGraph
		minID  uint64
	)
	for id, bg := range nodes {
		if picked == nil || id < minID {
			picked, minID = bg, id
		}
	}
	return picked
}

func (s *LocalSession) Delivered() <-chan *types.Interpreted {
	return s.deliveredCh
}

func (s *LocalSession) Close() {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.deliveredCh)
}

func (s *LocalSession) Config() Config {
	return s.cfg
}
