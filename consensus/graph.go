package consensus

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/gammazero/workerpool"
	lru "github.com/hashicorp/golang-lru"
	"github.com/tendermint/tendermint/libs/events"
	"github.com/tendermint/tendermint/libs/log"
	"github.com/tendermint/tendermint/libs/service"
	tmtime "github.com/tendermint/tendermint/types/time"

	"graphbft/agreement"
	"graphbft/config"
	cstypes "graphbft/consensus/types"
	"graphbft/libs/metric"
	"graphbft/pool"
	"graphbft/signing"
	"graphbft/state"
	"graphbft/store"
	"graphbft/types"
)

// Graph takes block graphs from the network, forwards them by the sign or
// forward rule, runs one agreement session per round and block hash, and
// commits what the sessions deliver.
type Graph struct {
	service.BaseService

	config *config.GraphConfig

	uow       *store.UnitOfWork
	pool      *pool.GraphPool
	blockExec state.BlockExecutor

	signer  signing.Signer
	keyName string
	nodeID  uint64

	newSession agreement.Factory
	sessions   *cstypes.SessionSet

	localNodeMtx sync.RWMutex
	localNode    LocalNode

	eventSwitch events.EventSwitch
	addBuffer   *groupBuffer
	agreeDelay  *debouncer
	committed   *lru.Cache // recently committed block hashes

	workerMtx sync.Mutex
	workers   *workerpool.WorkerPool
	stopped   bool

	ctx    context.Context
	cancel context.CancelFunc

	metric *graphMetric
}

type GraphOption func(*Graph)

// SetSessionFactory replaces the agreement sessions.
func SetSessionFactory(factory agreement.Factory) GraphOption {
	return func(g *Graph) {
		g.newSession = factory
	}
}

// WithLocalNode sets the gossip layer at construction.
func WithLocalNode(localNode LocalNode) GraphOption {
	return func(g *Graph) {
		g.localNode = localNode
	}
}

func NewGraph(
	config *config.GraphConfig,
	uow *store.UnitOfWork,
	blockExec state.BlockExecutor,
	signer signing.Signer,
	options ...GraphOption,
) (*Graph, error) {
	keyName := config.SigningKeyName
	if keyName == "" {
		keyName = signer.DefaultSigningKeyName()
	}
	keyName, err := signer.GetOrUpsertKeyName(keyName)
	if err != nil {
		return nil, fmt.Errorf("failed to load signing key: %w", err)
	}
	nodeID, err := signing.NodeID(signer, keyName)
	if err != nil {
		return nil, err
	}
	committed, err := lru.New(config.CommittedCacheSize)
	if err != nil {
		return nil, err
	}

	g := &Graph{
		config:      config,
		uow:         uow,
		blockExec:   blockExec,
		signer:      signer,
		keyName:     keyName,
		nodeID:      nodeID,
		newSession:  agreement.NewLocalSession,
		sessions:    cstypes.NewSessionSet(),
		eventSwitch: events.NewEventSwitch(),
		committed:   committed,
		metric:      newGraphMetric(),
	}
	g.pool = pool.NewGraphPool(config.MaxBlockGraphs, pool.SetPreCheck(func(bg *types.BlockGraph) error {
		return bg.ValidateBasic()
	}))
	g.addBuffer = newGroupBuffer(config.GroupIdleTimeout, config.BatchFlushInterval, config.BatchSize, g.onBatch)
	g.agreeDelay = newDebouncer(config.AgreementDelay, g.onAgreementDue)
	g.BaseService = *service.NewBaseService(nil, "Graph", g)

	for _, option := range options {
		option(g)
	}
	return g, nil
}

func (g *Graph) SetLogger(logger log.Logger) {
	g.BaseService.SetLogger(logger)
	g.eventSwitch.SetLogger(logger.With("module", "events"))
	g.pool.SetLogger(logger.With("module", "pool"))
	g.blockExec.SetLogger(logger.With("module", "state"))
}

// SetLocalNode sets the gossip layer. It may be called after start, the
// reactor needs the graph before it can be built.
func (g *Graph) SetLocalNode(localNode LocalNode) {
	g.localNodeMtx.Lock()
	defer g.localNodeMtx.Unlock()
	g.localNode = localNode
}

func (g *Graph) getLocalNode() LocalNode {
	g.localNodeMtx.RLock()
	defer g.localNodeMtx.RUnlock()
	return g.localNode
}

func (g *Graph) OnStart() error {
	g.ctx, g.cancel = context.WithCancel(context.Background())
	g.workers = workerpool.New(g.config.Workers)

	if err := g.eventSwitch.Start(); err != nil {
		return err
	}
	if err := g.eventSwitch.AddListenerForEvent(graphListener, EventBlockGraphAdded, func(data events.EventData) {
		g.onBlockGraphAdded(data.(*types.BlockGraph))
	}); err != nil {
		return err
	}
	if err := g.eventSwitch.AddListenerForEvent(graphListener, EventBlockGraphCompleted, func(data events.EventData) {
		g.onBlockGraphCompleted(data.(string))
	}); err != nil {
		return err
	}

	// delivered blocks left over from the last run
	if n, err := g.blockExec.ApplyDelivered(); err != nil {
		g.Logger.Error("failed to apply pending delivered blocks", "err", err)
	} else if n > 0 {
		g.Logger.Info("applied pending delivered blocks", "count", n)
	}

	g.addBuffer.Start()
	g.replay()

	g.Logger.Info("graph started", "node", g.nodeID, "round", g.CurrentRound())
	return nil
}

func (g *Graph) OnStop() {
	g.addBuffer.Stop()
	g.agreeDelay.Stop()
	g.cancel()

	g.workerMtx.Lock()
	g.stopped = true
	g.workerMtx.Unlock()
	g.workers.StopWait()

	g.sessions.CloseAll()
	g.eventSwitch.RemoveListener(graphListener)
	if err := g.eventSwitch.Stop(); err != nil {
		g.Logger.Error("failed trying to stop eventSwitch", "error", err)
	}
	g.Logger.Info("graph stopped")
}

// submit runs task on the worker pool. Tasks submitted after stop are
// dropped.
func (g *Graph) submit(name string, task func()) bool {
	g.workerMtx.Lock()
	defer g.workerMtx.Unlock()
	if g.stopped || g.workers == nil {
		return false
	}
	g.workers.Submit(func() {
		defer func() {
			if r := recover(); r != nil {
				g.Logger.Error("graph task panicked", "task", name, "err", r, "stack", string(debug.Stack()))
			}
		}()
		task()
	})
	return true
}

// ------ Admission ------

// SubmitProposal admits bg into the pool. The add event is handled
// asynchronously.
func (g *Graph) SubmitProposal(bg *types.BlockGraph) types.VerifyResult {
	if !g.IsRunning() {
		return types.Invalid
	}
	g.metric.Submitted.Inc(1)

	err := g.pool.Add(bg)
	switch err {
	case nil:
	case pool.ErrGraphInPool:
		g.metric.Duplicates.Inc(1)
		return types.AlreadyExists
	default:
		g.metric.Invalid.Inc(1)
		g.Logger.Error("rejected block graph", "graph", bg, "err", err)
		return types.Invalid
	}

	g.eventSwitch.FireEvent(EventBlockGraphAdded, bg)
	return types.Succeed
}

// SubmitProposalBytes decodes a msgpack encoded block graph and admits it.
func (g *Graph) SubmitProposalBytes(bz []byte) types.VerifyResult {
	bg, err := types.UnmarshalBlockGraph(bz)
	if err != nil {
		g.metric.Invalid.Inc(1)
		g.Logger.Error("failed to decode block graph", "err", err)
		return types.Invalid
	}
	return g.SubmitProposal(bg)
}

// ProposeBlock wraps a block built by this node into a block graph owned by
// this node and submits it.
func (g *Graph) ProposeBlock(block *types.Block) (*types.BlockGraph, types.VerifyResult, error) {
	if err := block.ValidateBasic(); err != nil {
		return nil, types.Invalid, err
	}
	prev, err := g.lastCommittedBlock()
	if err != nil {
		return nil, types.Invalid, err
	}
	bg, err := types.NewBlockGraph(block, prev, g.nodeID)
	if err != nil {
		return nil, types.Invalid, err
	}
	return bg, g.SubmitProposal(bg), nil
}

// ProposeTxs proposes the block following the chain tip with txs.
func (g *Graph) ProposeTxs(txs types.Txs) (*types.BlockGraph, types.VerifyResult, error) {
	prev, err := g.lastCommittedBlock()
	if err != nil {
		return nil, types.Invalid, err
	}
	if prev == nil {
		return nil, types.Invalid, store.ErrNotFound
	}
	return g.ProposeBlock(types.MakeBlock(prev, txs, tmtime.Now()))
}

// ------ Round ------

// CurrentRound is the round of the last committed block. It is zero when
// the chain is empty or its height can not be read.
func (g *Graph) CurrentRound() uint64 {
	height, err := g.uow.HashChain.Count()
	if err != nil {
		g.Logger.Info("failed to read chain height", "warn", "round falls back to zero", "err", err)
		return 0
	}
	return types.CurrentRound(uint64(height))
}

// nextRound is the only round whose block graphs are processed.
func (g *Graph) nextRound() uint64 {
	return g.CurrentRound() + 1
}

// replay re-emits the persisted block graphs of the active round as
// completed, so their agreement resumes after a restart.
func (g *Graph) replay() {
	round := g.nextRound()
	graphs, err := g.uow.BlockGraphs.Where(func(bg *types.BlockGraph) bool {
		return bg.Block.Round == round
	})
	if err != nil {
		g.Logger.Error("replay failed", "round", round, "err", err)
		return
	}

	hashes := make(map[string]struct{})
	for _, bg := range graphs {
		if err := g.pool.Add(bg); err != nil && err != pool.ErrGraphInPool {
			g.Logger.Error("failed to restore block graph", "graph", bg, "err", err)
		}
		hashes[bg.Block.Hash] = struct{}{}
	}
	for hash := range hashes {
		g.eventSwitch.FireEvent(EventBlockGraphCompleted, hash)
	}
	if len(graphs) > 0 {
		g.Logger.Info("replayed block graphs", "round", round, "graphs", len(graphs), "hashes", len(hashes))
	}
}

// ------ Accessors ------

func (g *Graph) NodeID() uint64 {
	return g.nodeID
}

func (g *Graph) Pool() *pool.GraphPool {
	return g.pool
}

// MetricItem exposes the pipeline counters.
func (g *Graph) MetricItem() metric.MetricItem {
	return g.metric
}
