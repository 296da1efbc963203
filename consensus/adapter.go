package consensus

import (
	"graphbft/agreement"
	"graphbft/types"
)

func (g *Graph) onBlockGraphCompleted(hash string) {
	g.agreeDelay.Trigger(hash)
}

func (g *Graph) onAgreementDue(hash string) {
	g.submit("agreement", func() { g.tryAgreement(hash) })
}

// tryAgreement feeds the persisted graphs of hash in the active round to the
// agreement session of that hash, once enough distinct nodes proposed it.
// Without a quorum nothing happens; the next completed graph of the hash
// triggers another attempt.
func (g *Graph) tryAgreement(hash string) {
	round := g.nextRound()
	graphs, err := g.uow.BlockGraphs.Where(func(bg *types.BlockGraph) bool {
		return bg.Block.Round == round && bg.Block.Hash == hash
	})
	if err != nil {
		g.Logger.Error("failed to query block graphs", "round", round, "hash", hash, "err", err)
		return
	}
	if len(graphs) == 0 {
		return
	}

	nodes := make(map[uint64]struct{}, len(graphs))
	for _, bg := range graphs {
		nodes[bg.Block.Node] = struct{}{}
	}
	n := len(nodes)
	members := g.membership(n)
	if !types.HasQuorum(n, members) {
		g.Logger.Debug("no quorum yet", "round", round, "hash", hash, "nodes", n,
			"members", members, "quorum", types.QuorumSize(members))
		return
	}

	session, created := g.sessions.GetOrCreate(round, hash, func() agreement.Session {
		cfg := agreement.Config{
			Round:           round,
			NodeCount:       n,
			SelfID:          g.nodeID,
			LastInterpreted: g.CurrentRound(),
		}
		return g.newSession(cfg, g.Logger.With("round", round, "hash", hash))
	})
	if created {
		g.metric.Agreements.Inc(1)
		g.metric.Sessions.Update(int64(g.sessions.Size()))
		g.Logger.Info("agreement started", "round", round, "hash", hash, "nodes", n)
		go g.drain(session)
	}

	for _, bg := range graphs {
		if !g.sessions.MarkFed(round, hash, bg.Identifier()) {
			continue
		}
		if err := session.Add(bg); err != nil {
			g.Logger.Error("failed to feed agreement", "graph", bg, "err", err)
		}
	}
}

// membership is the node count the quorum is taken from: the connected
// cluster including this node, or the observed proposers when more.
func (g *Graph) membership(observed int) int {
	members := observed
	localNode := g.getLocalNode()
	if localNode == nil {
		return members
	}
	peers, err := localNode.GetPeers(g.ctx)
	if err != nil {
		g.Logger.Error("failed to get peers", "err", err)
		return members
	}
	if peers.Size()+1 > members {
		members = peers.Size() + 1
	}
	return members
}

// drain hands every delivered result of session to the committer.
func (g *Graph) drain(session agreement.Session) {
	for {
		select {
		case result, ok := <-session.Delivered():
			if !ok {
				return
			}
			g.submit("deliver", func() { g.deliver(result) })
		case <-g.ctx.Done():
			return
		}
	}
}
