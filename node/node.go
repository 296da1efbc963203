package node

import (
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/tendermint/tendermint/libs/log"
	"github.com/tendermint/tendermint/libs/service"
	"github.com/tendermint/tendermint/p2p"
	rpcserver "github.com/tendermint/tendermint/rpc/jsonrpc/server"
	"github.com/tendermint/tendermint/version"

	"graphbft/config"
	"graphbft/consensus"
	"graphbft/libs/metric"
	mempl "graphbft/mempool"
	"graphbft/rpc"
	"graphbft/signing"
	"graphbft/state"
	"graphbft/store"
)

type Provider func(*config.Config, log.Logger) (*Node, error)

type Node struct {
	service.BaseService

	// config
	config *config.Config

	// network
	transport *p2p.MultiplexTransport
	sw        *p2p.Switch // p2p connections
	nodeInfo  p2p.NodeInfo
	nodeKey   *p2p.NodeKey // our node privkey

	// services
	uow            *store.UnitOfWork
	graph          *consensus.Graph
	graphReactor   *consensus.Reactor
	mempool        *mempl.ListMempool
	mempoolReactor *mempl.Reactor
	producer       *consensus.Producer
	metricSet      *metric.MetricSet
	rpcListeners   []net.Listener
}

type Option func(*Node)

// DefaultNewNode loads the node key and the signing key ring from the
// config, generating them on first start.
func DefaultNewNode(config *config.Config, logger log.Logger) (*Node, error) {
	nodeKey, err := p2p.LoadOrGenNodeKey(config.NodeKeyFile())
	if err != nil {
		return nil, fmt.Errorf("failed to load or gen node key %s: %w", config.NodeKeyFile(), err)
	}
	keyRing, err := signing.LoadOrGenKeyRing(config.Graph.KeyRingFile(), config.Graph.SigningKeyName, config.Graph.KeyType)
	if err != nil {
		return nil, fmt.Errorf("failed to load or gen key ring %s: %w", config.Graph.KeyRingFile(), err)
	}
	return NewNode(config, nodeKey, keyRing, logger)
}

func createTransport(
	config *config.Config,
	nodeInfo p2p.NodeInfo,
	nodeKey *p2p.NodeKey,
) *p2p.MultiplexTransport {
	var (
		mConnConfig = p2p.MConnConfig(config.P2P)
		transport   = p2p.NewMultiplexTransport(nodeInfo, *nodeKey, mConnConfig)
	)
	p2p.MultiplexTransportMaxIncomingConnections(config.P2P.MaxNumInboundPeers)(transport)
	return transport
}

func createMempoolAndMempoolReactor(config *config.Config, height uint64,
	logger log.Logger) (*mempl.Reactor, *mempl.ListMempool) {

	mempool := mempl.NewListMempool(config.Mempool, height)
	mempoolLogger := logger.With("module", "mempool")
	mempoolReactor := mempl.NewReactor(config.Mempool, mempool)
	mempoolReactor.SetLogger(mempoolLogger)
	return mempoolReactor, mempool
}

func createSwitch(config *config.Config,
	transport p2p.Transport,
	graphReactor *consensus.Reactor,
	mempoolReactor *mempl.Reactor,
	nodeInfo p2p.NodeInfo,
	nodeKey *p2p.NodeKey,
	p2pLogger log.Logger) *p2p.Switch {

	sw := p2p.NewSwitch(
		config.P2P,
		transport,
	)
	sw.SetLogger(p2pLogger)
	sw.AddReactor("MEMPOOL", mempoolReactor)
	sw.AddReactor("GRAPH", graphReactor)

	sw.SetNodeInfo(nodeInfo)
	sw.SetNodeKey(nodeKey)

	p2pLogger.Info("P2P Node ID", "ID", nodeKey.ID(), "file", config.NodeKeyFile())
	return sw
}

func makeNodeInfo(
	config *config.Config,
	nodeKey *p2p.NodeKey,
) (p2p.NodeInfo, error) {
	nodeInfo := p2p.DefaultNodeInfo{
		ProtocolVersion: p2p.NewProtocolVersion(
			version.P2PProtocol,
			version.BlockProtocol,
			0,
		),
		DefaultNodeID: nodeKey.ID(),
		Network:       config.Graph.ChainID,
		Version:       version.TMCoreSemVer,
		Channels: []byte{
			consensus.GraphChannel,
			mempl.MempoolChannel,
		},
		Moniker: config.Moniker,
		Other: p2p.DefaultNodeInfoOther{
			TxIndex:    "off",
			RPCAddress: config.RPC.ListenAddress,
		},
	}

	lAddr := config.P2P.ExternalAddress
	if lAddr == "" {
		lAddr = config.P2P.ListenAddress
	}
	nodeInfo.ListenAddr = lAddr

	err := nodeInfo.Validate()
	return nodeInfo, err
}

func NewNode(config *config.Config, nodeKey *p2p.NodeKey, signer signing.Signer, logger log.Logger, options ...Option) (*Node, error) {
	uow, err := store.NewUnitOfWork(config.Storage.Backend, config.Storage.DBDir(), config.Storage.Compress, logger)
	if err != nil {
		return nil, err
	}
	node, err := newNodeWithStore(config, nodeKey, signer, uow, logger, options...)
	if err != nil {
		if cerr := uow.Close(); cerr != nil {
			logger.Error("failed to close store", "err", cerr)
		}
		return nil, err
	}
	return node, nil
}

func newNodeWithStore(
	config *config.Config,
	nodeKey *p2p.NodeKey,
	signer signing.Signer,
	uow *store.UnitOfWork,
	logger log.Logger,
	options ...Option,
) (*Node, error) {
	genesisTime, err := config.Graph.GenesisTimestamp()
	if err != nil {
		return nil, err
	}
	genesis, err := state.EnsureGenesis(uow.HashChain, config.Graph.ChainID, genesisTime)
	if err != nil {
		return nil, err
	}
	logger.Info("genesis", "chain", config.Graph.ChainID, "hash", genesis.Hash())

	blockExec, err := state.NewBlockExecutor(uow, config.Graph.ChainID)
	if err != nil {
		return nil, err
	}

	graph, err := consensus.NewGraph(config.Graph, uow, blockExec, signer)
	if err != nil {
		return nil, err
	}
	graph.SetLogger(logger.With("module", "graph"))

	graphReactor := consensus.NewReactor(graph)
	graphReactor.SetLogger(logger.With("module", "graph-reactor"))

	height, err := graph.GetHeight()
	if err != nil {
		return nil, err
	}
	mempoolReactor, mempool := createMempoolAndMempoolReactor(config, height, logger)

	producer := consensus.NewProducer(config.Graph, graph, mempool)
	producer.SetLogger(logger.With("module", "producer"))

	metricSet := metric.NewMetricSet()
	for label, item := range map[string]metric.MetricItem{
		"graph":   graph.MetricItem(),
		"pool":    graph.Pool().Metric(),
		"mempool": mempool.Metric(),
	} {
		if err := metricSet.SetMetrics(label, item); err != nil {
			return nil, err
		}
	}

	p2pLogger := logger.With("module", "p2p")

	// setup node identity
	nodeInfo, err := makeNodeInfo(config, nodeKey)
	if err != nil {
		return nil, err
	}

	// Setup Transport.
	transport := createTransport(config, nodeInfo, nodeKey)

	// Setup Switch.
	sw := createSwitch(
		config, transport, graphReactor, mempoolReactor, nodeInfo, nodeKey, p2pLogger,
	)

	node := &Node{
		config:         config,
		transport:      transport,
		sw:             sw,
		nodeInfo:       nodeInfo,
		nodeKey:        nodeKey,
		uow:            uow,
		graph:          graph,
		graphReactor:   graphReactor,
		mempool:        mempool,
		mempoolReactor: mempoolReactor,
		producer:       producer,
		metricSet:      metricSet,
	}
	node.BaseService = *service.NewBaseService(logger, "Node", node)
	for _, option := range options {
		option(node)
	}

	return node, nil
}

func (n *Node) Switch() *p2p.Switch {
	return n.sw
}

func (n *Node) NodeInfo() p2p.NodeInfo {
	return n.nodeInfo
}

func (n *Node) Graph() *consensus.Graph {
	return n.graph
}

func (n *Node) Mempool() mempl.Mempool {
	return n.mempool
}

func (n *Node) MetricSet() *metric.MetricSet {
	return n.metricSet
}

func (n *Node) OnStart() error {
	// the graph takes messages as soon as the switch runs
	if err := n.graph.Start(); err != nil {
		return err
	}
	if err := n.producer.Start(); err != nil {
		return err
	}

	if n.config.RPC.ListenAddress != "" {
		listeners, err := n.startRPC()
		if err != nil {
			return err
		}
		n.rpcListeners = listeners
	}

	// start the transport
	addr, err := p2p.NewNetAddressString(p2p.IDAddressString(n.nodeKey.ID(), n.config.P2P.ListenAddress))
	if err != nil {
		return err
	}
	if err := n.transport.Listen(*addr); err != nil {
		return err
	}

	// start the Switch
	if err := n.sw.Start(); err != nil {
		return err
	}

	n.Logger.Info("dialing persistent peers", "peers", n.config.P2P.PersistentPeers)
	err = n.sw.DialPeersAsync(splitAndTrimEmpty(n.config.P2P.PersistentPeers, ",", " "))
	if err != nil {
		return fmt.Errorf("could not dial peers from persistent_peers field: %w", err)
	}

	return nil
}

func (n *Node) OnStop() {
	n.Logger.Info("Stopping Node")

	if err := n.sw.Stop(); err != nil {
		n.Logger.Error("Error closing switch", "err", err)
	}
	if err := n.producer.Stop(); err != nil {
		n.Logger.Error("Error stopping producer", "err", err)
	}
	if err := n.graph.Stop(); err != nil {
		n.Logger.Error("Error stopping graph", "err", err)
	}
	if err := n.transport.Close(); err != nil {
		n.Logger.Error("Error closing transport", "err", err)
	}
	for _, l := range n.rpcListeners {
		n.Logger.Info("Closing rpc listener", "listener", l)
		if err := l.Close(); err != nil {
			n.Logger.Error("Error closing listener", "listener", l, "err", err)
		}
	}
	if err := n.uow.Close(); err != nil {
		n.Logger.Error("Error closing store", "err", err)
	}
}

func (n *Node) startRPC() ([]net.Listener, error) {
	rpc.SetEnvironment(&rpc.Environment{
		Graph:     n.graph,
		Mempool:   n.mempool,
		MetricSet: n.metricSet,
		Logger:    n.Logger.With("module", "rpc"),
	})

	listenAddrs := splitAndTrimEmpty(n.config.RPC.ListenAddress, ",", " ")
	config := rpcserver.DefaultConfig()
	config.MaxBodyBytes = n.config.RPC.MaxBodyBytes
	config.MaxHeaderBytes = n.config.RPC.MaxHeaderBytes
	config.MaxOpenConnections = n.config.RPC.MaxOpenConnections

	listeners := make([]net.Listener, 0, len(listenAddrs))
	for _, listenAddr := range listenAddrs {
		mux := http.NewServeMux()
		rpcLogger := n.Logger.With("module", "rpc-server")
		wm := rpcserver.NewWebsocketManager(rpc.Routes, rpcserver.ReadLimit(config.MaxBodyBytes))
		wm.SetLogger(rpcLogger.With("protocol", "websocket"))
		mux.HandleFunc("/websocket", wm.WebsocketHandler)
		rpcserver.RegisterRPCFuncs(mux, rpc.Routes, rpcLogger)

		listener, err := rpcserver.Listen(listenAddr, config)
		if err != nil {
			return nil, err
		}
		go func() {
			if err := rpcserver.Serve(listener, mux, rpcLogger, config); err != nil {
				n.Logger.Error("Error serving rpc server", "err", err)
			}
		}()
		listeners = append(listeners, listener)
	}
	return listeners, nil
}

// splitAndTrimEmpty slices s into all subslices separated by sep and returns a
// slice of the string s with all leading and trailing Unicode code points
// contained in cutset removed. If sep is empty, SplitAndTrim splits after each
// UTF-8 sequence. First part is equivalent to strings.SplitN with a count of
// -1.  also filter out empty strings, only return non-empty strings.
func splitAndTrimEmpty(s, sep, cutset string) []string {
	if s == "" {
		return []string{}
	}

	spl := strings.Split(s, sep)
	nonEmptyStrings := make([]string, 0, len(spl))
	for i := 0; i < len(spl); i++ {
		element := strings.Trim(spl[i], cutset)
		if element != "" {
			nonEmptyStrings = append(nonEmptyStrings, element)
		}
	}
	return nonEmptyStrings
}
