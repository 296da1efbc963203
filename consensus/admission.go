package consensus

import (
	"fmt"

	"graphbft/pool"
	"graphbft/signing"
	"graphbft/store"
	"graphbft/types"
)

func (g *Graph) onBlockGraphAdded(bg *types.BlockGraph) {
	if round := g.nextRound(); bg.Block.Round != round {
		g.Logger.Debug("drop block graph of inactive round", "graph", bg, "round", round)
		g.pool.Remove(bg.Identifier())
		return
	}
	g.addBuffer.Add(bg.Block.Hash, bg)
}

// onBatch is called by the add buffer, possibly from a timer goroutine.
func (g *Graph) onBatch(hash string, batch []*types.BlockGraph) {
	if !g.submit("process batch", func() { g.processBatch(hash, batch) }) {
		g.Logger.Debug("dropped batch, graph stopped", "hash", hash, "size", len(batch))
	}
}

func (g *Graph) processBatch(hash string, batch []*types.BlockGraph) {
	round := g.nextRound()
	for _, bg := range batch {
		if bg.Block.Round != round {
			g.pool.Remove(bg.Identifier())
			continue
		}
		if err := g.processSafe(bg); err != nil {
			g.Logger.Error("failed to process block graph", "graph", bg, "err", err)
		}
	}
}

// processSafe keeps a panicking graph from dropping the rest of its batch.
func (g *Graph) processSafe(bg *types.BlockGraph) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return g.processBlockGraph(bg)
}

// processBlockGraph applies the sign or forward rule. A graph of this node
// is signed and published. A graph of another node is persisted and answered
// with this node's own copy of the same block.
func (g *Graph) processBlockGraph(bg *types.BlockGraph) error {
	if bg.Block.Node == g.nodeID {
		if !bg.IsSigned() {
			if err := signing.SignBlockGraph(g.signer, g.keyName, bg); err != nil {
				g.pool.Remove(bg.Identifier())
				return err
			}
		}
		if err := g.saveBlockGraph(bg); err != nil {
			g.pool.Remove(bg.Identifier())
			return err
		}
		g.publish(bg)
		g.eventSwitch.FireEvent(EventBlockGraphCompleted, bg.Block.Hash)
		return nil
	}

	// Until the copy is out, a failure releases bg so a re-gossip of it
	// is processed again.
	if err := g.saveBlockGraph(bg); err != nil {
		g.pool.Remove(bg.Identifier())
		return err
	}

	own, err := g.copyBlockGraph(bg)
	if err != nil {
		g.pool.Remove(bg.Identifier())
		return err
	}
	switch err := g.pool.Add(own); err {
	case nil:
		if err := signing.SignBlockGraph(g.signer, g.keyName, own); err != nil {
			g.pool.Remove(own.Identifier())
			g.pool.Remove(bg.Identifier())
			return err
		}
		if err := g.saveBlockGraph(own); err != nil {
			g.pool.Remove(own.Identifier())
			g.pool.Remove(bg.Identifier())
			return err
		}
		g.metric.Copies.Inc(1)
		g.publish(own)
	case pool.ErrGraphInPool:
		// this node already holds its copy
	default:
		g.pool.Remove(bg.Identifier())
		return err
	}

	g.eventSwitch.FireEvent(EventBlockGraphCompleted, bg.Block.Hash)
	return nil
}

// copyBlockGraph builds this node's graph for the block carried by bg.
func (g *Graph) copyBlockGraph(bg *types.BlockGraph) (*types.BlockGraph, error) {
	block, err := types.UnmarshalBlock(bg.Block.Data)
	if err != nil {
		return nil, err
	}
	prev, err := g.lastCommittedBlock()
	if err != nil {
		return nil, err
	}
	if prev == nil && len(bg.Prev.Data) > 0 {
		if prev, err = types.UnmarshalBlock(bg.Prev.Data); err != nil {
			return nil, err
		}
	}
	return types.NewBlockGraph(block, prev, g.nodeID)
}

// saveBlockGraph persists bg once it passed verification.
func (g *Graph) saveBlockGraph(bg *types.BlockGraph) error {
	if err := VerifyBlockGraph(bg); err != nil {
		g.metric.Invalid.Inc(1)
		return fmt.Errorf("unable to verify %v: %w", bg, err)
	}
	if err := g.uow.BlockGraphs.Put(bg); err != nil {
		return err
	}
	g.metric.Saved.Inc(1)
	return nil
}

func (g *Graph) publish(bg *types.BlockGraph) {
	localNode := g.getLocalNode()
	if localNode == nil {
		return
	}
	peers, err := localNode.GetPeers(g.ctx)
	if err != nil {
		g.Logger.Error("failed to get peers", "err", err)
		return
	}
	if peers.IsNilOrEmpty() {
		return
	}
	payload, err := bg.Marshal()
	if err != nil {
		g.Logger.Error("failed to encode block graph", "graph", bg, "err", err)
		return
	}
	if err := localNode.Broadcast(g.ctx, peers, types.TopicAddBlockGraph, payload); err != nil {
		g.Logger.Error("failed to broadcast block graph", "graph", bg, "err", err)
		return
	}
	g.metric.Published.Inc(1)
}

// lastCommittedBlock returns the chain tip, or nil on an empty chain.
func (g *Graph) lastCommittedBlock() (*types.Block, error) {
	last, err := g.uow.HashChain.Last()
	if err == store.ErrNotFound {
		return nil, nil
	}
	return last, err
}
