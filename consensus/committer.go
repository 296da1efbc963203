package consensus

import (
	"graphbft/types"
)

// deliver commits the blocks of an agreed result in the order they were
// agreed. Entries that were already committed, are unknown here or fail
// verification are skipped.
func (g *Graph) deliver(result *types.Interpreted) {
	g.Logger.Info("delivered", "round", result.Round, "blocks", len(result.Blocks))
	for _, entry := range result.Blocks {
		g.metric.Delivered.Inc(1)
		if len(entry.Data) == 0 {
			continue
		}
		if g.committed.Contains(entry.Hash) {
			continue
		}
		g.commitEntry(entry)
	}
}

func (g *Graph) commitEntry(entry types.GraphBlock) {
	bg, err := g.uow.BlockGraphs.Get(func(bg *types.BlockGraph) bool {
		return bg.Block.Hash == entry.Hash && bg.Block.Round == entry.Round
	})
	if err != nil {
		g.Logger.Error("unable to find the matching block graph",
			"hash", entry.Hash, "round", entry.Round, "node", entry.Node, "err", err)
		return
	}

	g.pool.Remove(bg.Identifier())
	if err := g.uow.BlockGraphs.Remove(bg.Identifier()); err != nil {
		g.Logger.Error("failed to remove block graph", "graph", bg, "err", err)
	}

	block, err := types.UnmarshalBlock(entry.Data)
	if err != nil {
		g.Logger.Error("failed to decode delivered block", "hash", entry.Hash, "err", err)
		return
	}
	exists, err := blockExists(g.uow, block)
	if err != nil {
		g.Logger.Error("failed to check block", "block", block, "err", err)
		return
	}
	if exists {
		g.committed.Add(entry.Hash, struct{}{})
		return
	}

	if err := VerifyBlockGraph(bg); err != nil {
		g.metric.VerifyFailures.Inc(1)
		g.Logger.Error("unable to verify the node signatures",
			"hash", entry.Hash, "round", entry.Round, "node", entry.Node, "err", err)
		return
	}
	if err := g.uow.Delivered.Put(block); err != nil {
		g.Logger.Error("unable to save the block", "block", block, "err", err)
		return
	}
	g.committed.Add(entry.Hash, struct{}{})

	n, err := g.blockExec.ApplyDelivered()
	if err != nil {
		g.Logger.Error("failed to apply delivered blocks", "err", err)
	}
	if n > 0 {
		g.metric.Committed.Inc(int64(n))
		g.Logger.Info("committed block", "height", block.Height, "hash", entry.Hash, "count", n)
		g.pruneFinished()
	}
}

// pruneFinished drops the graphs and sessions of rounds the chain moved past.
func (g *Graph) pruneFinished() {
	round := g.nextRound()
	g.metric.Round.Update(int64(round - 1))

	pruned := g.pool.Prune(round)
	stale, err := g.uow.BlockGraphs.Where(func(bg *types.BlockGraph) bool {
		return bg.Block.Round < round
	})
	if err != nil {
		g.Logger.Error("failed to query stale block graphs", "err", err)
	}
	for _, bg := range stale {
		if err := g.uow.BlockGraphs.Remove(bg.Identifier()); err != nil {
			g.Logger.Error("failed to remove block graph", "graph", bg, "err", err)
		}
	}
	closed := g.sessions.Prune(round)
	g.metric.Sessions.Update(int64(g.sessions.Size()))
	g.Logger.Debug("pruned finished rounds", "round", round, "pooled", pruned, "stored", len(stale), "sessions", closed)
}
