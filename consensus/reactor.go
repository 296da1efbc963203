package consensus

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/tendermint/tendermint/libs/cmap"
	"github.com/tendermint/tendermint/p2p"

	"graphbft/types"
)

const (
	GraphChannel = byte(0x40)

	maxMsgSize = 1048576 // 1MB
)

// Reactor carries block graphs between nodes on GraphChannel. It is the
// LocalNode of its graph.
type Reactor struct {
	p2p.BaseReactor

	graph *Graph
	peers *cmap.CMap // p2p.ID -> p2p.Peer
}

var _ LocalNode = (*Reactor)(nil)

func NewReactor(graph *Graph) *Reactor {
	graphR := &Reactor{
		graph: graph,
		peers: cmap.NewCMap(),
	}
	graphR.BaseReactor = *p2p.NewBaseReactor("Graph", graphR)
	graph.SetLocalNode(graphR)
	return graphR
}

func (graphR *Reactor) OnStart() error {
	graphR.Logger.Info("Graph reactor started", "node", graphR.graph.NodeID())
	return nil
}

func (graphR *Reactor) GetChannels() []*p2p.ChannelDescriptor {
	return []*p2p.ChannelDescriptor{
		{
			ID:                  GraphChannel,
			Priority:            10,
			SendQueueCapacity:   100,
			RecvBufferCapacity:  maxMsgSize,
			RecvMessageCapacity: maxMsgSize,
		},
	}
}

func (graphR *Reactor) AddPeer(peer p2p.Peer) {
	graphR.Logger.Debug("add peer", "peer", peer.ID())
	graphR.peers.Set(string(peer.ID()), peer)
}

func (graphR *Reactor) RemovePeer(peer p2p.Peer, reason interface{}) {
	graphR.Logger.Debug("remove peer", "peer", peer.ID(), "reason", reason)
	graphR.peers.Delete(string(peer.ID()))
}

func (graphR *Reactor) Receive(chID byte, src p2p.Peer, msgBytes []byte) {
	if !graphR.IsRunning() {
		graphR.Logger.Debug("Receive", "src", src, "chID", chID, "bytes", msgBytes)
		return
	}
	if chID != GraphChannel {
		graphR.Logger.Error(fmt.Sprintf("Unknown chID %X", chID))
		return
	}

	env, err := types.UnmarshalEnvelope(msgBytes)
	if err != nil {
		graphR.Logger.Error("failed to decode envelope", "src", src.ID(), "err", err)
		return
	}
	switch env.Topic {
	case types.TopicAddBlockGraph:
		result := graphR.graph.SubmitProposalBytes(env.Payload)
		graphR.Logger.Debug("received block graph", "src", src.ID(), "result", result)
	default:
		graphR.Logger.Error("unknown topic", "src", src.ID(), "topic", env.Topic)
	}
}

// GetPeers implements LocalNode
func (graphR *Reactor) GetPeers(ctx context.Context) (*types.PeerSet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	values := graphR.peers.Values()
	peers := make([]*types.Peer, 0, len(values))
	for _, v := range values {
		peers = append(peers, toPeer(v.(p2p.Peer)))
	}
	return types.NewPeerSet(peers), nil
}

// Broadcast implements LocalNode
func (graphR *Reactor) Broadcast(ctx context.Context, peers *types.PeerSet, topic types.TopicType, payload []byte) error {
	env := &types.Envelope{Topic: topic, Payload: payload}
	bz, err := env.Marshal()
	if err != nil {
		return err
	}

	var result *multierror.Error
	for _, id := range peers.IDs() {
		if err := ctx.Err(); err != nil {
			return multierror.Append(result, err).ErrorOrNil()
		}
		v := graphR.peers.Get(id)
		if v == nil {
			result = multierror.Append(result, fmt.Errorf("peer %s is not connected", id))
			continue
		}
		if !v.(p2p.Peer).Send(GraphChannel, bz) {
			result = multierror.Append(result, fmt.Errorf("failed to send to peer %s", id))
		}
	}
	return result.ErrorOrNil()
}

func toPeer(peer p2p.Peer) *types.Peer {
	host := ""
	if addr := peer.SocketAddr(); addr != nil {
		host = addr.DialString()
	}
	p := types.NewPeer(string(peer.ID()), host)
	if info, ok := peer.NodeInfo().(p2p.DefaultNodeInfo); ok {
		p.NodeName = info.Moniker
		p.NodeVersion = info.Version
	}
	return p
}
