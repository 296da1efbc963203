package consensus

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/tendermint/tendermint/libs/log"

	"graphbft/config"
	"graphbft/signing"
	"graphbft/state"
	"graphbft/store"
	"graphbft/types"
)

func genKeyRing(t *testing.T) *signing.KeyRing {
	kr, err := signing.GenKeyRing("", "", signing.KeyTypeEd25519)
	require.NoError(t, err)
	return kr
}

// newTestGraph returns a graph over an in-memory store holding the genesis
// block. It is not started.
func newTestGraph(t *testing.T, conf *config.GraphConfig, options ...GraphOption) *Graph {
	return newTestGraphWithSigner(t, conf, genKeyRing(t), options...)
}

func newTestGraphWithSigner(t *testing.T, conf *config.GraphConfig, signer signing.Signer, options ...GraphOption) *Graph {
	if conf == nil {
		conf = config.TestGraphConfig()
	}
	logger := log.TestingLogger()
	uow := store.NewMemUnitOfWork(logger)

	genesisTime, err := conf.GenesisTimestamp()
	require.NoError(t, err)
	_, err = state.EnsureGenesis(uow.HashChain, conf.ChainID, genesisTime)
	require.NoError(t, err)
	blockExec, err := state.NewBlockExecutor(uow, conf.ChainID)
	require.NoError(t, err)

	g, err := NewGraph(conf, uow, blockExec, signer, options...)
	require.NoError(t, err)
	g.SetLogger(logger.With("node", g.NodeID()))
	return g
}

func startTestGraph(t *testing.T, conf *config.GraphConfig, options ...GraphOption) *Graph {
	g := newTestGraph(t, conf, options...)
	require.NoError(t, g.Start())
	t.Cleanup(func() {
		if err := g.Stop(); err != nil {
			t.Error(err)
		}
	})
	return g
}

func chainTip(t *testing.T, g *Graph) *types.Block {
	last, err := g.uow.HashChain.Last()
	require.NoError(t, err)
	return last
}

func chainHeight(g *Graph) uint64 {
	height, err := g.GetHeight()
	if err != nil {
		return 0
	}
	return height
}

// signedGraph returns the graph of block as proposed by the owner of kr.
func signedGraph(t *testing.T, kr *signing.KeyRing, block, prev *types.Block) *types.BlockGraph {
	nodeID, err := signing.NodeID(kr, kr.DefaultSigningKeyName())
	require.NoError(t, err)
	bg, err := types.NewBlockGraph(block, prev, nodeID)
	require.NoError(t, err)
	require.NoError(t, signing.SignBlockGraph(kr, kr.DefaultSigningKeyName(), bg))
	return bg
}

// flakySigner fails the first failures signatures.
type flakySigner struct {
	signing.Signer

	mtx      sync.Mutex
	failures int
}

func (s *flakySigner) Sign(keyName string, hash []byte) ([]byte, error) {
	s.mtx.Lock()
	if s.failures > 0 {
		s.failures--
		s.mtx.Unlock()
		return nil, errors.New("signer unavailable")
	}
	s.mtx.Unlock()
	return s.Signer.Sign(keyName, hash)
}

func testTxs(n int) types.Txs {
	txs := make(types.Txs, n)
	for i := range txs {
		txs[i] = types.NewTx([]byte(fmt.Sprintf("tx-%d-%d", i, time.Now().UnixNano())))
	}
	return txs
}

// fakeLocalNode reports a fixed peer set and records what is broadcast.
type fakeLocalNode struct {
	peers *types.PeerSet

	mtx  sync.Mutex
	sent []*types.BlockGraph
}

var _ LocalNode = (*fakeLocalNode)(nil)

func newFakeLocalNode(peerCount int) *fakeLocalNode {
	peers := make([]*types.Peer, peerCount)
	for i := range peers {
		peers[i] = types.NewPeer(fmt.Sprintf("peer-%d", i), fmt.Sprintf("127.0.0.1:%d", 26656+i))
	}
	return &fakeLocalNode{peers: types.NewPeerSet(peers)}
}

func (n *fakeLocalNode) GetPeers(ctx context.Context) (*types.PeerSet, error) {
	return n.peers, nil
}

func (n *fakeLocalNode) Broadcast(ctx context.Context, peers *types.PeerSet, topic types.TopicType, payload []byte) error {
	if topic != types.TopicAddBlockGraph {
		return fmt.Errorf("unexpected topic %v", topic)
	}
	bg, err := types.UnmarshalBlockGraph(payload)
	if err != nil {
		return err
	}
	n.mtx.Lock()
	n.sent = append(n.sent, bg)
	n.mtx.Unlock()
	return nil
}

func (n *fakeLocalNode) Sent() []*types.BlockGraph {
	n.mtx.Lock()
	defer n.mtx.Unlock()
	sent := make([]*types.BlockGraph, len(n.sent))
	copy(sent, n.sent)
	return sent
}

// memNetwork connects graphs in process: a broadcast is submitted straight
// to the receiving graphs.
type memNetwork struct {
	mtx    sync.RWMutex
	graphs map[string]*Graph
}

func newMemNetwork() *memNetwork {
	return &memNetwork{graphs: make(map[string]*Graph)}
}

func (net *memNetwork) join(id string, g *Graph) {
	net.mtx.Lock()
	net.graphs[id] = g
	net.mtx.Unlock()
	g.SetLocalNode(&memNode{net: net, id: id})
}

type memNode struct {
	net *memNetwork
	id  string
}

func (n *memNode) GetPeers(ctx context.Context) (*types.PeerSet, error) {
	n.net.mtx.RLock()
	defer n.net.mtx.RUnlock()
	var peers []*types.Peer
	for id := range n.net.graphs {
		if id != n.id {
			peers = append(peers, types.NewPeer(id, id))
		}
	}
	return types.NewPeerSet(peers), nil
}

func (n *memNode) Broadcast(ctx context.Context, peers *types.PeerSet, topic types.TopicType, payload []byte) error {
	for _, id := range peers.IDs() {
		n.net.mtx.RLock()
		g, ok := n.net.graphs[id]
		n.net.mtx.RUnlock()
		if !ok {
			return fmt.Errorf("unknown peer %s", id)
		}
		g.SubmitProposalBytes(payload)
	}
	return nil
}
